// Package routing implements the dual IPv4/IPv6 longest-prefix-match
// routing table: an exact-match hash for add/delete/update keyed on the
// masked prefix, and a binary trie per address family for lookup.
package routing

import (
	"sync"

	"github.com/stella/switchsim/pkg/coreerr"
	"github.com/stella/switchsim/pkg/switchtype"
)

// Family distinguishes the IPv4 and IPv6 trie/hash pair a route lives in.
type Family int

const (
	FamilyIpv4 Family = iota
	FamilyIpv6
)

// RouteType is the protocol that installed a route.
type RouteType int

const (
	RouteConnected RouteType = iota
	RouteStatic
	RouteRip
	RouteOspf
	RouteBgp
)

// Default administrative distances; Connected and Static are fixed by
// spec.md §3, the others follow the conventional IOS-style defaults.
const (
	AdminDistanceConnected = 0
	AdminDistanceStatic    = 1
	AdminDistanceOspf      = 110
	AdminDistanceBgp       = 20
	AdminDistanceRip       = 120
)

// RouteEntry is one routing-table row. Exactly one of Ipv4Prefix/NextHopV4
// or Ipv6Prefix/NextHopV6 is meaningful, selected by Family.
type RouteEntry struct {
	Family        Family
	Ipv4Prefix    switchtype.Ipv4Prefix
	Ipv6Prefix    switchtype.Ipv6Prefix
	NextHopV4     switchtype.Ipv4Addr
	NextHopV6     switchtype.Ipv6Addr
	IfaceIndex    switchtype.PortId
	IfaceName     string
	Type          RouteType
	AdminDistance uint8
	Metric        uint32
	Active        bool
	Timestamp     int64
}

// HwOpKind is the kind of hardware-sync event emitted when hw_sync is
// enabled.
type HwOpKind int

const (
	HwOpAdd HwOpKind = iota
	HwOpRemove
	HwOpUpdate
)

// HwOp is one hardware-sync notification.
type HwOp struct {
	Kind  HwOpKind
	Entry RouteEntry
}

// HwSyncFunc receives HwOp events when hw sync is enabled.
type HwSyncFunc func(HwOp)

// routeKey identifies one (prefix, length, family) slot in the exact-match
// hash. The address bytes are masked to Length before being stored here —
// hashing the full address regardless of prefix length would let two
// routes of different length but matching high bits collide inconsistently.
type routeKey struct {
	family Family
	bytes  [16]byte
	length int
}

func keyFor(e RouteEntry) routeKey {
	k := routeKey{family: e.Family}
	switch e.Family {
	case FamilyIpv4:
		masked := e.Ipv4Prefix.Addr
		if nm, err := switchtype.PrefixLenToIpv4Netmask(e.Ipv4Prefix.Length); err == nil {
			masked = masked.Mask(nm)
		}
		b := masked.Bytes()
		copy(k.bytes[:4], b[:])
		k.length = e.Ipv4Prefix.Length
	case FamilyIpv6:
		masked := e.Ipv6Prefix.Addr.Mask(e.Ipv6Prefix.Length)
		copy(k.bytes[:16], masked.Bytes())
		k.length = e.Ipv6Prefix.Length
	}
	return k
}

// slot holds every candidate registered for one routeKey; at most one is
// Active (the current winner of admin-distance/metric/timestamp
// resolution). A non-winning candidate is retained only when it shares the
// winner's RouteType — otherwise it is discarded outright per §4.8's add
// resolution rule.
type slot struct {
	candidates []RouteEntry
}

// trieNode is one node of an arena-indexed binary trie: children are
// slice indices into the owning Table's node arena rather than pointers,
// so the trie has no pointer cycles to reason about.
type trieNode struct {
	children [2]int32
	hasEntry bool
	key      routeKey
}

const trieNil int32 = -1

// Table is the dual-family LPM routing table. Locked per §5's engine
// lock order (Port Registry -> VLAN -> MAC Table -> STP -> Routing Table
// -> ARP Cache): callers hold at most this one engine lock at a time.
type Table struct {
	mu sync.RWMutex

	slots map[routeKey]*slot

	nodesV4 []trieNode
	rootV4  int32
	nodesV6 []trieNode
	rootV6  int32

	hwSyncEnabled bool
	hwSyncHook    HwSyncFunc
}

// New creates an empty routing table. hook, if non-nil, receives HwOp
// events once SetHwSync(true) is called.
func New(hook HwSyncFunc) *Table {
	t := &Table{
		slots:      make(map[routeKey]*slot),
		rootV4:     trieNil,
		rootV6:     trieNil,
		hwSyncHook: hook,
	}
	return t
}

// SetHwSync toggles whether add/delete/update emit HwOp events to the
// configured hook.
func (t *Table) SetHwSync(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hwSyncEnabled = enabled
}

func (t *Table) emit(kind HwOpKind, entry RouteEntry) {
	if t.hwSyncEnabled && t.hwSyncHook != nil {
		t.hwSyncHook(HwOp{Kind: kind, Entry: entry})
	}
}

// Add inserts entry, resolving any conflicting (prefix, family) per
// §4.8: smaller admin_distance wins, tie-break smaller metric, tie-break
// older (smaller) timestamp. The winner is installed in the trie; a
// losing candidate of the same RouteType as the winner is retained as an
// inactive candidate, any other losing candidate is discarded.
func (t *Table) Add(entry RouteEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	k := keyFor(entry)
	s, ok := t.slots[k]
	if !ok {
		s = &slot{}
		t.slots[k] = s
	}

	entry.Active = false
	s.candidates = append(s.candidates, entry)
	winner, winnerIdx := bestCandidate(s.candidates)

	kept := s.candidates[:0]
	for i, c := range s.candidates {
		if i == winnerIdx {
			continue
		}
		if c.Type == winner.Type {
			c.Active = false
			kept = append(kept, c)
		}
	}
	winner.Active = true
	s.candidates = append(kept, winner)

	t.installLocked(k, winner)
	t.emit(HwOpAdd, winner)
	return nil
}

func validateEntry(e RouteEntry) error {
	switch e.Family {
	case FamilyIpv4:
		if e.Ipv4Prefix.Length < 0 || e.Ipv4Prefix.Length > 32 {
			return coreerr.New(coreerr.KindInvalidArgument, "ipv4 prefix length out of range")
		}
	case FamilyIpv6:
		if e.Ipv6Prefix.Length < 0 || e.Ipv6Prefix.Length > 128 {
			return coreerr.New(coreerr.KindInvalidArgument, "ipv6 prefix length out of range")
		}
	default:
		return coreerr.New(coreerr.KindInvalidArgument, "unknown address family")
	}
	return nil
}

// bestCandidate returns the winner among candidates and its index.
func bestCandidate(candidates []RouteEntry) (RouteEntry, int) {
	best := candidates[0]
	bestIdx := 0
	for i := 1; i < len(candidates); i++ {
		c := candidates[i]
		if lessRoute(c, best) {
			best = c
			bestIdx = i
		}
	}
	return best, bestIdx
}

// lessRoute reports whether a should win over b.
func lessRoute(a, b RouteEntry) bool {
	if a.AdminDistance != b.AdminDistance {
		return a.AdminDistance < b.AdminDistance
	}
	if a.Metric != b.Metric {
		return a.Metric < b.Metric
	}
	return a.Timestamp < b.Timestamp
}

func (t *Table) installLocked(k routeKey, winner RouteEntry) {
	switch k.family {
	case FamilyIpv4:
		t.rootV4 = insertTrie(&t.nodesV4, t.rootV4, k, 32)
	case FamilyIpv6:
		t.rootV6 = insertTrie(&t.nodesV6, t.rootV6, k, 128)
	}
}

func insertTrie(arena *[]trieNode, root int32, k routeKey, maxBits int) int32 {
	if root == trieNil {
		*arena = append(*arena, trieNode{children: [2]int32{trieNil, trieNil}})
		root = int32(len(*arena) - 1)
	}
	cur := root
	for i := 0; i < k.length; i++ {
		bit := bitAt(k.bytes[:], i)
		next := (*arena)[cur].children[bit]
		if next == trieNil {
			*arena = append(*arena, trieNode{children: [2]int32{trieNil, trieNil}})
			next = int32(len(*arena) - 1)
			(*arena)[cur].children[bit] = next
		}
		cur = next
	}
	(*arena)[cur].hasEntry = true
	(*arena)[cur].key = k
	return root
}

func bitAt(b []byte, i int) int {
	byteIdx := i / 8
	bitIdx := 7 - (i % 8)
	return int((b[byteIdx] >> uint(bitIdx)) & 1)
}

// Delete removes the route matching (prefix, prefixLen, family) from
// both the hash and the trie.
func (t *Table) Delete(family Family, ipv4 switchtype.Ipv4Prefix, ipv6 switchtype.Ipv6Prefix) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	probe := RouteEntry{Family: family, Ipv4Prefix: ipv4, Ipv6Prefix: ipv6}
	k := keyFor(probe)
	s, ok := t.slots[k]
	if !ok {
		return coreerr.New(coreerr.KindNotFound, "route not found")
	}
	var removed RouteEntry
	for _, c := range s.candidates {
		if c.Active {
			removed = c
		}
	}
	delete(t.slots, k)
	t.removeFromTrie(k)
	t.emit(HwOpRemove, removed)
	return nil
}

func (t *Table) removeFromTrie(k routeKey) {
	switch k.family {
	case FamilyIpv4:
		clearTrieEntry(t.nodesV4, t.rootV4, k)
	case FamilyIpv6:
		clearTrieEntry(t.nodesV6, t.rootV6, k)
	}
}

func clearTrieEntry(arena []trieNode, root int32, k routeKey) {
	if root == trieNil {
		return
	}
	cur := root
	for i := 0; i < k.length; i++ {
		bit := bitAt(k.bytes[:], i)
		next := arena[cur].children[bit]
		if next == trieNil {
			return
		}
		cur = next
	}
	arena[cur].hasEntry = false
}

// Lookup walks the family's trie for addr, returning the entry with the
// longest matching active prefix, per §4.8's core invariant.
func (t *Table) Lookup(addr switchtype.Ipv4Addr) (RouteEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	b := addr.Bytes()
	k, ok := lookupTrie(t.nodesV4, t.rootV4, b[:], 32)
	if !ok {
		return RouteEntry{}, false
	}
	s := t.slots[k]
	for _, c := range s.candidates {
		if c.Active {
			return c, true
		}
	}
	return RouteEntry{}, false
}

// LookupV6 mirrors Lookup for the IPv6 family.
func (t *Table) LookupV6(addr switchtype.Ipv6Addr) (RouteEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	b := addr.Bytes()
	k, ok := lookupTrie(t.nodesV6, t.rootV6, b, 128)
	if !ok {
		return RouteEntry{}, false
	}
	s := t.slots[k]
	for _, c := range s.candidates {
		if c.Active {
			return c, true
		}
	}
	return RouteEntry{}, false
}

func lookupTrie(arena []trieNode, root int32, addrBytes []byte, maxBits int) (routeKey, bool) {
	if root == trieNil {
		return routeKey{}, false
	}
	cur := root
	var best routeKey
	found := false
	if arena[cur].hasEntry {
		best = arena[cur].key
		found = true
	}
	for i := 0; i < maxBits; i++ {
		bit := bitAt(addrBytes, i)
		next := arena[cur].children[bit]
		if next == trieNil {
			break
		}
		cur = next
		if arena[cur].hasEntry {
			best = arena[cur].key
			found = true
		}
	}
	return best, found
}

// GetAllRoutes returns up to max currently-active routes.
func (t *Table) GetAllRoutes(max int) []RouteEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]RouteEntry, 0, len(t.slots))
	for _, s := range t.slots {
		for _, c := range s.candidates {
			if c.Active {
				out = append(out, c)
				break
			}
		}
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}
