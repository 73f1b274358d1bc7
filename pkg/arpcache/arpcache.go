// Package arpcache implements the IPv4-to-MAC resolution cache: lookup,
// add_or_update, frame handling, and the Incomplete/Reachable/Stale/
// Delay/Probe/Failed retry lifecycle. Retry bookkeeping is grounded on
// pkg/transport/udp.go's pendingPacket map + retry-interval/max-retries
// fields, adapted from UDP ACK retransmission to ARP request retransmission.
package arpcache

import (
	"sync"

	"github.com/stella/switchsim/pkg/coreerr"
	"github.com/stella/switchsim/pkg/mactable"
	"github.com/stella/switchsim/pkg/switchtype"
)

// State is the resolution state of one ArpEntry.
type State int

const (
	StateIncomplete State = iota
	StateReachable
	StateStale
	StateDelay
	StateProbe
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIncomplete:
		return "INCOMPLETE"
	case StateReachable:
		return "REACHABLE"
	case StateStale:
		return "STALE"
	case StateDelay:
		return "DELAY"
	case StateProbe:
		return "PROBE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

const (
	// CacheSize is the fixed capacity of the cache (ARP_CACHE_SIZE).
	CacheSize = 1024
	// RequestRetryIntervalMs is the resend interval for an Incomplete entry.
	RequestRetryIntervalMs = 1000
	// RequestRetryCount is the number of resends before giving up.
	RequestRetryCount = 3
	// CacheTimeoutSeconds is how long a Reachable entry survives untouched.
	CacheTimeoutSeconds = 1200
)

// Entry is one cached IPv4-to-MAC resolution.
type Entry struct {
	IP          switchtype.Ipv4Addr
	Mac         switchtype.MacAddr
	State       State
	Port        switchtype.PortId
	RetryPort   switchtype.PortId // interface to retry an Incomplete resolution toward
	CreatedTs   int64
	UpdatedTs   int64
	RetryCount  int
	nextRetryAt int64
}

// RequestSender abstracts the capability to emit an ARP request broadcast
// through C10, sourced from the egress interface's configured IP/MAC per
// §9's fix for arp_send_request's uninitialized-sender bug.
type RequestSender interface {
	SenderAddr(port switchtype.PortId) (switchtype.Ipv4Addr, switchtype.MacAddr, error)
	SendArpRequest(port switchtype.PortId, senderIP switchtype.Ipv4Addr, senderMac switchtype.MacAddr, targetIP switchtype.Ipv4Addr) error
}

// Stats tallies cache activity (SUPPLEMENTED feature: exposed counters
// mirroring pkg/mactable's Stats()).
type Stats struct {
	RequestsSent    uint64
	RepliesReceived uint64
	Resolved        uint64
	Failed          uint64
	Evictions       uint64
	Aged            uint64
}

// Cache is the IPv4->MAC resolution cache.
type Cache struct {
	mu      sync.Mutex
	entries map[switchtype.Ipv4Addr]*Entry
	maxSize int
	sender  RequestSender
	macs    *mactable.Table
	defVlan switchtype.VlanId
	stats   Stats
}

// New creates an empty cache. macs, when non-nil, receives a Dynamic
// learn on every successful resolution for L2 forwarding reuse.
func New(sender RequestSender, macs *mactable.Table, defaultVlan switchtype.VlanId) *Cache {
	return &Cache{
		entries: make(map[switchtype.Ipv4Addr]*Entry),
		maxSize: CacheSize,
		sender:  sender,
		macs:    macs,
		defVlan: defaultVlan,
	}
}

// LookupResult is the three-way outcome of Lookup.
type LookupResult int

const (
	LookupOk LookupResult = iota
	LookupPending
	LookupNotFound
)

// Lookup resolves ip to a MAC/port pair per §4.9: Ok when Reachable,
// Pending when absent or Incomplete (inserting an Incomplete entry and
// emitting one ARP request broadcast on first absence), NotFound when
// Failed.
func (c *Cache) Lookup(ip switchtype.Ipv4Addr, outPort switchtype.PortId, now int64) (switchtype.MacAddr, switchtype.PortId, LookupResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[ip]
	if !ok {
		e, err := c.insertIncompleteLocked(ip, outPort, now)
		if err != nil {
			return switchtype.MacAddr{}, 0, LookupNotFound, err
		}
		c.sendRequestLocked(e, now)
		return switchtype.MacAddr{}, 0, LookupPending, nil
	}

	switch e.State {
	case StateReachable, StateStale:
		return e.Mac, e.Port, LookupOk, nil
	case StateFailed:
		return switchtype.MacAddr{}, 0, LookupNotFound, nil
	default:
		return switchtype.MacAddr{}, 0, LookupPending, nil
	}
}

func (c *Cache) insertIncompleteLocked(ip switchtype.Ipv4Addr, outPort switchtype.PortId, now int64) (*Entry, error) {
	if len(c.entries) >= c.maxSize {
		if !c.evictLruLocked() {
			return nil, coreerr.New(coreerr.KindTableFull, "arp cache full")
		}
	}
	e := &Entry{IP: ip, State: StateIncomplete, RetryPort: outPort, CreatedTs: now, UpdatedTs: now}
	c.entries[ip] = e
	return e, nil
}

// evictLruLocked recycles the least-recently-updated entry, per §4.9's
// "when the cache is full, recycle the least-recently-updated entry".
func (c *Cache) evictLruLocked() bool {
	var oldestIP switchtype.Ipv4Addr
	var oldest *Entry
	for ip, e := range c.entries {
		if oldest == nil || e.UpdatedTs < oldest.UpdatedTs {
			oldest = e
			oldestIP = ip
		}
	}
	if oldest == nil {
		return false
	}
	delete(c.entries, oldestIP)
	c.stats.Evictions++
	return true
}

// sendRequestLocked resends toward e.RetryPort, the interface that
// originally needed this resolution — not whatever port last happened to
// call ProcessRetries — per §4.9's per-entry retry lifecycle.
func (c *Cache) sendRequestLocked(e *Entry, now int64) {
	e.RetryCount++
	e.nextRetryAt = now + RequestRetryIntervalMs/1000
	c.stats.RequestsSent++
	if c.sender == nil {
		return
	}
	senderIP, senderMac, err := c.sender.SenderAddr(e.RetryPort)
	if err != nil {
		return
	}
	_ = c.sender.SendArpRequest(e.RetryPort, senderIP, senderMac, e.IP)
}

// AddOrUpdate moves ip's entry to Reachable, refreshing updated_ts, and
// learns the mapping into the MAC table for L2 forwarding reuse.
func (c *Cache) AddOrUpdate(ip switchtype.Ipv4Addr, mac switchtype.MacAddr, port switchtype.PortId, now int64) error {
	c.mu.Lock()
	e, ok := c.entries[ip]
	if !ok {
		var err error
		e, err = c.insertIncompleteLocked(ip, port, now)
		if err != nil {
			c.mu.Unlock()
			return err
		}
	}
	wasIncomplete := e.State == StateIncomplete
	e.Mac = mac
	e.Port = port
	e.State = StateReachable
	e.UpdatedTs = now
	e.RetryCount = 0
	c.stats.Resolved++
	if wasIncomplete {
		c.stats.RepliesReceived++
	}
	c.mu.Unlock()

	if c.macs != nil {
		return c.macs.Learn(mac, c.defVlan, port, now)
	}
	return nil
}

// Frame is the parsed subset of an RFC 826 ARP payload handle_frame acts
// on.
type Frame struct {
	Operation   uint16 // 1 = request, 2 = reply
	SenderMac   switchtype.MacAddr
	SenderIP    switchtype.Ipv4Addr
	TargetMac   switchtype.MacAddr
	TargetIP    switchtype.Ipv4Addr
}

// HandleFrame validates and processes one ARP frame per §4.9: learns the
// sender unconditionally, and if it's a request targeting a local IP,
// reports that a reply is owed (the caller sends it via C10 using
// localMac). Reply frames are fully handled by the AddOrUpdate learn step.
func (c *Cache) HandleFrame(frame Frame, inPort switchtype.PortId, localIPs []switchtype.Ipv4Addr, now int64) (shouldReply bool, err error) {
	if err := c.AddOrUpdate(frame.SenderIP, frame.SenderMac, inPort, now); err != nil {
		return false, err
	}
	if frame.Operation != 1 {
		return false, nil
	}
	for _, local := range localIPs {
		if local == frame.TargetIP {
			return true, nil
		}
	}
	return false, nil
}

// ProcessRetries advances the Incomplete retry lifecycle for every entry
// whose next retry is due: resend up to RequestRetryCount times toward
// the interface recorded on the entry itself, then transition to Failed.
func (c *Cache) ProcessRetries(now int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if e.State != StateIncomplete {
			continue
		}
		if now < e.nextRetryAt {
			continue
		}
		// RetryCount includes the initial request, so RequestRetryCount
		// resends have been made once it exceeds RequestRetryCount.
		if e.RetryCount > RequestRetryCount {
			e.State = StateFailed
			c.stats.Failed++
			continue
		}
		c.sendRequestLocked(e, now)
	}
}

// AgeEntries evicts Reachable entries older than CacheTimeoutSeconds,
// per §4.9.
func (c *Cache) AgeEntries(now int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	aged := 0
	for ip, e := range c.entries {
		if e.State == StateReachable && now-e.UpdatedTs > CacheTimeoutSeconds {
			delete(c.entries, ip)
			aged++
		}
	}
	c.stats.Aged += uint64(aged)
	return aged
}

// Get returns a copy of the entry for ip, if any.
func (c *Cache) Get(ip switchtype.Ipv4Addr) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ip]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Stats returns a snapshot of cache activity counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Count returns the number of entries currently cached.
func (c *Cache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
