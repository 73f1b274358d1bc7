// Package mactable implements the switch core's MAC address table:
// hashed (mac,vlan)->port lookup, dynamic-entry aging, static/dynamic
// precedence, LRU eviction on overflow, and move-event notification.
// Grounded on pkg/switcher/mactable.go's MACTable (max-size + aging
// timeout fields, findOldestDynamicEntry LRU scan, StartAgingManager
// ticker) generalized from its single-placeholder-entry demo into the
// full keyed table, with additional fields (hit_count, static/dynamic
// counters, per-port learning map, move counter) from
// include/l2/mac_table.h.
package mactable

import (
	"sync"

	"github.com/stella/switchsim/pkg/coreerr"
	"github.com/stella/switchsim/pkg/switchtype"
)

// EntryKind distinguishes how a MAC table entry came to exist.
type EntryKind int

const (
	Dynamic EntryKind = iota
	Static
	Management
)

// AgingState marks whether an entry is subject to the aging sweep.
type AgingState int

const (
	AgingActive AgingState = iota
	AgingDisabled
)

// Entry is one (mac,vlan) -> port binding.
type Entry struct {
	Mac        switchtype.MacAddr
	Vlan       switchtype.VlanId
	Port       switchtype.PortId
	Kind       EntryKind
	Aging      AgingState
	AgeTs      int64
	HitCount   uint64
	CreatedTs  int64
	LastUsedTs int64
}

type key struct {
	mac  switchtype.MacAddr
	vlan switchtype.VlanId
}

// EventCallback is invoked whenever a MAC moves to a new port.
type EventCallback func(entry Entry, oldPort switchtype.PortId)

// Table is the switch core's MAC address table.
type Table struct {
	mu               sync.RWMutex
	entries          map[key]*Entry
	maxEntries       int
	agingTime        int64
	learningEnabled  bool
	portLearningMap  map[switchtype.PortId]bool
	moveCount        uint64
	dynamicCount     int
	staticCount      int
	onMove           EventCallback
}

// New creates an empty table bounded to maxEntries, with the given
// default dynamic-entry aging time in seconds (0 disables aging).
func New(maxEntries int, agingTimeSeconds int64) *Table {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &Table{
		entries:         make(map[key]*Entry),
		maxEntries:      maxEntries,
		agingTime:       agingTimeSeconds,
		learningEnabled: true,
		portLearningMap: make(map[switchtype.PortId]bool),
	}
}

// SetEventCallback registers the callback invoked on MAC moves.
func (t *Table) SetEventCallback(cb EventCallback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMove = cb
}

// SetPortLearning enables or disables MAC learning on a specific port.
// SUPPLEMENTED: per-port learning suppression, not present in the
// distilled spec but present in the original mac_table_t.port_learning_map.
func (t *Table) SetPortLearning(port switchtype.PortId, enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.portLearningMap[port] = enabled
}

// IsPortLearningEnabled reports whether learning is enabled on port,
// defaulting to true for ports with no explicit entry.
func (t *Table) IsPortLearningEnabled(port switchtype.PortId) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.portLearningMap[port]
	if !ok {
		return true
	}
	return v
}

// MoveCount returns the lifetime count of MAC moves observed.
// SUPPLEMENTED: mac_move_count from include/l2/mac_table.h.
func (t *Table) MoveCount() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.moveCount
}

// Add inserts or updates a MAC table entry directly (used for Static and
// Management entries, and as the building block under Learn). A Dynamic
// insert never overwrites a Static entry for the same key.
func (t *Table) Add(mac switchtype.MacAddr, vlan switchtype.VlanId, port switchtype.PortId, kind EntryKind, now int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addLocked(mac, vlan, port, kind, now)
}

func (t *Table) addLocked(mac switchtype.MacAddr, vlan switchtype.VlanId, port switchtype.PortId, kind EntryKind, now int64) error {
	k := key{mac: mac, vlan: vlan}

	if existing, ok := t.entries[k]; ok {
		if existing.Kind == Static && kind == Dynamic {
			return nil
		}
		oldPort := existing.Port
		t.adjustCounts(existing.Kind, -1)
		existing.Port = port
		existing.Kind = kind
		existing.LastUsedTs = now
		existing.HitCount++
		t.adjustCounts(kind, 1)
		if oldPort != port {
			t.moveCount++
			if t.onMove != nil {
				cb := t.onMove
				entry := *existing
				t.mu.Unlock()
				cb(entry, oldPort)
				t.mu.Lock()
			}
		}
		return nil
	}

	if len(t.entries) >= t.maxEntries {
		if err := t.evictOldestDynamicLocked(); err != nil {
			return err
		}
	}

	aging := AgingActive
	if kind != Dynamic {
		aging = AgingDisabled
	}

	t.entries[k] = &Entry{
		Mac:        mac,
		Vlan:       vlan,
		Port:       port,
		Kind:       kind,
		Aging:      aging,
		AgeTs:      now,
		HitCount:   1,
		CreatedTs:  now,
		LastUsedTs: now,
	}
	t.adjustCounts(kind, 1)
	return nil
}

func (t *Table) adjustCounts(kind EntryKind, delta int) {
	switch kind {
	case Dynamic:
		t.dynamicCount += delta
	case Static, Management:
		t.staticCount += delta
	}
}

// evictOldestDynamicLocked removes the least-recently-used Dynamic entry.
// Must be called with t.mu held.
func (t *Table) evictOldestDynamicLocked() error {
	var oldestKey key
	var oldestTime int64
	found := false

	for k, e := range t.entries {
		if e.Kind != Dynamic {
			continue
		}
		if !found || e.LastUsedTs < oldestTime {
			oldestKey = k
			oldestTime = e.LastUsedTs
			found = true
		}
	}

	if !found {
		return coreerr.New(coreerr.KindTableFull, "mac table full and no dynamic entry available for eviction")
	}

	delete(t.entries, oldestKey)
	t.dynamicCount--
	return nil
}

// Lookup returns the port bound to (mac, vlan), if any.
func (t *Table) Lookup(mac switchtype.MacAddr, vlan switchtype.VlanId) (switchtype.PortId, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[key{mac: mac, vlan: vlan}]
	if !ok {
		return 0, false
	}
	return e.Port, true
}

// GetPort is an alias for Lookup matching the spec's get_port name.
func (t *Table) GetPort(dstMac switchtype.MacAddr, vlan switchtype.VlanId) (switchtype.PortId, bool) {
	return t.Lookup(dstMac, vlan)
}

// Learn records the observed (srcMac, vlan) -> inPort binding as a
// Dynamic entry, refreshing LastUsedTs and HitCount, and firing the move
// callback if the port changed. No-op if learning is globally or
// per-port disabled.
func (t *Table) Learn(srcMac switchtype.MacAddr, vlan switchtype.VlanId, inPort switchtype.PortId, now int64) error {
	if srcMac.IsMulticast() || srcMac.IsBroadcast() {
		return coreerr.New(coreerr.KindInvalidArgument, "cannot learn a multicast or broadcast source address")
	}

	t.mu.RLock()
	globalEnabled := t.learningEnabled
	portEnabled, explicit := t.portLearningMap[inPort]
	t.mu.RUnlock()
	if !globalEnabled {
		return nil
	}
	if explicit && !portEnabled {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addLocked(srcMac, vlan, inPort, Dynamic, now)
}

// Delete removes the entry for (mac, vlan), if present.
func (t *Table) Delete(mac switchtype.MacAddr, vlan switchtype.VlanId) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key{mac: mac, vlan: vlan}
	e, ok := t.entries[k]
	if !ok {
		return coreerr.New(coreerr.KindNotFound, "mac table entry not found")
	}
	t.adjustCounts(e.Kind, -1)
	delete(t.entries, k)
	return nil
}

// Flush removes entries matching the given filters. A nil vlan or port
// pointer means "any"; includeStatic controls whether Static/Management
// entries are also removed.
func (t *Table) Flush(vlan *switchtype.VlanId, port *switchtype.PortId, includeStatic bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for k, e := range t.entries {
		if vlan != nil && e.Vlan != *vlan {
			continue
		}
		if port != nil && e.Port != *port {
			continue
		}
		if !includeStatic && e.Kind != Dynamic {
			continue
		}
		t.adjustCounts(e.Kind, -1)
		delete(t.entries, k)
		removed++
	}
	return removed
}

// ProcessAging evicts Dynamic entries whose last use exceeds the aging
// timeout. agingTime <= 0 disables aging entirely.
func (t *Table) ProcessAging(now int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.agingTime <= 0 {
		return 0
	}

	removed := 0
	for k, e := range t.entries {
		if e.Kind != Dynamic || e.Aging != AgingActive {
			continue
		}
		if now-e.LastUsedTs > t.agingTime {
			delete(t.entries, k)
			t.dynamicCount--
			removed++
		}
	}
	return removed
}

// Iterate invokes cb for every entry until cb returns false.
func (t *Table) Iterate(cb func(Entry) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.entries {
		if !cb(*e) {
			return
		}
	}
}

// Stats summarizes the table's occupancy. SUPPLEMENTED from
// include/l2/mac_table.h's mac_table_stats_t.
type Stats struct {
	TotalEntries   int
	StaticEntries  int
	DynamicEntries int
	TableSize      int
	AgingTime      int64
}

// Stats returns a snapshot of the table's current occupancy counters.
func (t *Table) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Stats{
		TotalEntries:   len(t.entries),
		StaticEntries:  t.staticCount,
		DynamicEntries: t.dynamicCount,
		TableSize:      t.maxEntries,
		AgingTime:      t.agingTime,
	}
}
