// Package portreg implements the switch core's port registry: the fixed
// set of physical ports plus one CPU port, their administrative and
// operational state, and the capability boundary to the host-provided
// port backend. Grounded on pkg/switcher/port.go's Port struct (mutex
// guarded state, admin/oper separation) and pkg/transport/interface.go's
// Transport capability interface, adapted from a single-port transport
// abstraction to a registry of many ports backed by one shared backend.
package portreg

import (
	"sync"

	"github.com/stella/switchsim/pkg/coreerr"
	"github.com/stella/switchsim/pkg/packet"
	"github.com/stella/switchsim/pkg/switchtype"
)

// PortKind classifies a port's role in the registry.
type PortKind int

const (
	KindPhysical PortKind = iota
	KindLag
	KindLoopback
	KindCpu
)

// OperState is a port's observed operational state.
type OperState int

const (
	OperDown OperState = iota
	OperUp
	OperLearning
	OperForwarding
	OperBlocking
	OperTesting
)

func (s OperState) String() string {
	switch s {
	case OperDown:
		return "Down"
	case OperUp:
		return "Up"
	case OperLearning:
		return "Learning"
	case OperForwarding:
		return "Forwarding"
	case OperBlocking:
		return "Blocking"
	case OperTesting:
		return "Testing"
	default:
		return "Unknown"
	}
}

// Entry is a single port's mutable state.
type Entry struct {
	ID        switchtype.PortId
	Kind      PortKind
	Name      string
	AdminUp   bool
	OperState OperState
	Speed     int
	Duplex    bool
	MTU       int
	Pvid      switchtype.VlanId
	MacAddr   switchtype.MacAddr

	Counters Counters
}

// Counters tracks per-port traffic statistics (supplemented from
// include/l2/mac_table.h-adjacent port accounting fields in the original
// switch simulator).
type Counters struct {
	RxFrames  uint64
	TxFrames  uint64
	RxBytes   uint64
	TxBytes   uint64
	RxErrors  uint64
	TxErrors  uint64
	RxDropped uint64
}

// Delivery is one frame crossing the C10 boundary: a received frame when
// read from Backend.Receive(), keyed by the port it arrived on.
type Delivery struct {
	Port switchtype.PortId
	Data []byte
}

// LinkEvent is a port operational up/down transition delivered by the
// backend, per spec.md §4.10's link_event_stream().
type LinkEvent struct {
	Port switchtype.PortId
	Up   bool
}

// Backend is the capability set the core requires from the host program.
// Implementations are out of scope for the core; a loopback test backend
// is provided for use in tests. Receive and LinkEvents implement §4.10's
// streaming-delivery form of receive()/link_event_stream(): the core
// ranges over each channel from its own goroutine rather than polling.
type Backend interface {
	DeclaredPortCount() uint32
	Transmit(port switchtype.PortId, buf *packet.Buffer) error
	Receive() <-chan Delivery
	LinkEvents() <-chan LinkEvent
	NowMicros() int64
	NowSeconds() int64
}

// Config is the mutable, caller-settable subset of a port's fields.
type Config struct {
	Name   string
	Speed  int
	Duplex bool
	MTU    int
	Pvid   switchtype.VlanId
}

// baseMac is the OUI-style prefix XORed with port index to derive default
// MAC addresses for ports that weren't assigned one explicitly.
var baseMac = switchtype.MacAddr{}

func init() {
	mac, _ := switchtype.NewMACFromString("02:00:00:00:00:00")
	baseMac = mac
}

// cpuPortMac is the CPU port's deterministic MAC address.
var cpuPortMac = mustMAC("00:00:00:00:00:01")

func mustMAC(s string) switchtype.MacAddr {
	m, err := switchtype.NewMACFromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Registry owns the fixed set of ports: `physCount` physical ports plus
// one CPU port at index `physCount`.
type Registry struct {
	mu        sync.RWMutex
	ports     map[switchtype.PortId]*Entry
	physCount uint32
	cpuPort   switchtype.PortId
	backend   Backend
}

// New builds a registry from the backend's declared port count, appending
// one CPU port. defaultMtu is applied to every physical port.
func New(backend Backend, defaultMtu int) (*Registry, error) {
	if backend == nil {
		return nil, coreerr.New(coreerr.KindInvalidArgument, "port backend cannot be nil")
	}

	physCount := backend.DeclaredPortCount()
	cpuID := switchtype.PortId(physCount)

	r := &Registry{
		ports:     make(map[switchtype.PortId]*Entry, physCount+1),
		physCount: physCount,
		cpuPort:   cpuID,
		backend:   backend,
	}

	for i := uint32(0); i < physCount; i++ {
		id := switchtype.PortId(i)
		r.ports[id] = &Entry{
			ID:        id,
			Kind:      KindPhysical,
			Name:      "",
			AdminUp:   false,
			OperState: OperDown,
			Speed:     1000,
			Duplex:    true,
			MTU:       defaultMtu,
			Pvid:      switchtype.DefaultVlan,
			MacAddr:   switchtype.NewMACFromBaseAndPort(baseMac, uint16(i)),
		}
	}

	r.ports[cpuID] = &Entry{
		ID:        cpuID,
		Kind:      KindCpu,
		Name:      "cpu",
		AdminUp:   true,
		OperState: OperUp,
		Speed:     0,
		Duplex:    true,
		MTU:       defaultMtu,
		Pvid:      switchtype.DefaultVlan,
		MacAddr:   cpuPortMac,
	}

	return r, nil
}

// Count returns the number of physical ports (excluding the CPU port).
func (r *Registry) Count() uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.physCount
}

// TotalCount returns physCount + 1, including the CPU port.
func (r *Registry) TotalCount() uint32 {
	return r.Count() + 1
}

// CpuPort returns the id of the CPU port.
func (r *Registry) CpuPort() switchtype.PortId {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cpuPort
}

// IsValid reports whether id names a port in the registry.
func (r *Registry) IsValid(id switchtype.PortId) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ports[id]
	return ok
}

func (r *Registry) get(id switchtype.PortId) (*Entry, error) {
	e, ok := r.ports[id]
	if !ok {
		return nil, coreerr.New(coreerr.KindNotFound, "port not found")
	}
	return e, nil
}

// GetInfo returns a copy of the port's full entry.
func (r *Registry) GetInfo(id switchtype.PortId) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.get(id)
	if err != nil {
		return Entry{}, err
	}
	return *e, nil
}

// GetConfig returns the caller-settable subset of a port's fields.
func (r *Registry) GetConfig(id switchtype.PortId) (Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.get(id)
	if err != nil {
		return Config{}, err
	}
	return Config{Name: e.Name, Speed: e.Speed, Duplex: e.Duplex, MTU: e.MTU, Pvid: e.Pvid}, nil
}

// SetConfig applies cfg to the named port.
func (r *Registry) SetConfig(id switchtype.PortId, cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.get(id)
	if err != nil {
		return err
	}
	if e.Kind == KindCpu {
		return coreerr.New(coreerr.KindInvalidState, "cpu port configuration is fixed")
	}
	e.Name = cfg.Name
	e.Speed = cfg.Speed
	e.Duplex = cfg.Duplex
	e.MTU = cfg.MTU
	e.Pvid = cfg.Pvid
	return nil
}

// GetAdminState reports whether the port is administratively enabled.
func (r *Registry) GetAdminState(id switchtype.PortId) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.get(id)
	if err != nil {
		return false, err
	}
	return e.AdminUp, nil
}

// SetAdminState enables or disables the port administratively. Disabling
// forces oper_state to Down; the CPU port's admin state cannot change.
func (r *Registry) SetAdminState(id switchtype.PortId, up bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.get(id)
	if err != nil {
		return err
	}
	if e.Kind == KindCpu {
		return coreerr.New(coreerr.KindInvalidState, "cpu port is always admin-up")
	}
	e.AdminUp = up
	if !up {
		e.OperState = OperDown
	}
	return nil
}

// SetOperState sets a port's observed operational state (called by the
// scheduler in response to backend link events, not by arbitrary callers).
func (r *Registry) SetOperState(id switchtype.PortId, state OperState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.get(id)
	if err != nil {
		return err
	}
	e.OperState = state
	return nil
}

// GetMac returns the port's configured MAC address.
func (r *Registry) GetMac(id switchtype.PortId) (switchtype.MacAddr, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.get(id)
	if err != nil {
		return switchtype.MacAddr{}, err
	}
	return e.MacAddr, nil
}

// SetMac assigns a new MAC address to the port. Unicast-zero and
// multicast addresses are rejected.
func (r *Registry) SetMac(id switchtype.PortId, mac switchtype.MacAddr) error {
	if mac.IsZero() {
		return coreerr.New(coreerr.KindInvalidArgument, "mac address cannot be the zero address")
	}
	if mac.IsMulticast() {
		return coreerr.New(coreerr.KindInvalidArgument, "mac address cannot be multicast")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.get(id)
	if err != nil {
		return err
	}
	e.MacAddr = mac
	return nil
}

// GetAllMacs returns a snapshot of every port's MAC address, keyed by id.
func (r *Registry) GetAllMacs() map[switchtype.PortId]switchtype.MacAddr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[switchtype.PortId]switchtype.MacAddr, len(r.ports))
	for id, e := range r.ports {
		out[id] = e.MacAddr
	}
	return out
}

// StateOf returns the port's operational state.
func (r *Registry) StateOf(id switchtype.PortId) (OperState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.get(id)
	if err != nil {
		return OperDown, err
	}
	return e.OperState, nil
}

// RecordRx updates receive counters for a port.
func (r *Registry) RecordRx(id switchtype.PortId, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.ports[id]; ok {
		e.Counters.RxFrames++
		e.Counters.RxBytes += uint64(n)
	}
}

// RecordRxDropped increments the drop counter for a port.
func (r *Registry) RecordRxDropped(id switchtype.PortId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.ports[id]; ok {
		e.Counters.RxDropped++
	}
}

// RecordTx updates transmit counters for a port.
func (r *Registry) RecordTx(id switchtype.PortId, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.ports[id]; ok {
		e.Counters.TxFrames++
		e.Counters.TxBytes += uint64(n)
	}
}

// Transmit hands a packet to the backend on behalf of the named port,
// recording counters on success.
func (r *Registry) Transmit(id switchtype.PortId, buf *packet.Buffer) error {
	if !r.IsValid(id) {
		return coreerr.New(coreerr.KindNotFound, "port not found")
	}
	up, err := r.GetAdminState(id)
	if err != nil {
		return err
	}
	if !up {
		r.RecordRxDropped(id)
		return coreerr.New(coreerr.KindPortDown, "port is administratively down")
	}
	if err := r.backend.Transmit(id, buf); err != nil {
		r.mu.Lock()
		if e, ok := r.ports[id]; ok {
			e.Counters.TxErrors++
		}
		r.mu.Unlock()
		return coreerr.Wrap(coreerr.KindBackendError, "backend transmit failed", err)
	}
	r.RecordTx(id, buf.Len())
	return nil
}
