// Package vlan implements the switch core's VLAN engine: membership
// tracking, per-port VLAN configuration, and the 802.1Q ingress/egress
// tag transforms. Grounded on pkg/switcher/vlan.go's VlanManager (mutex
// guarded CRUD over a VLAN config map) extended with the membership and
// port-mode fields of the original switch simulator's VLAN header, and
// with 802.1Q bit-packing styled after pkg/packet/packet.go's
// FlagMask/CipherMask constant-and-shift idiom.
package vlan

import (
	"encoding/binary"
	"sync"

	"github.com/stella/switchsim/pkg/coreerr"
	"github.com/stella/switchsim/pkg/switchtype"
)

// TPID is the 802.1Q tag protocol identifier EtherType.
const TPID uint16 = 0x8100

// PortMode classifies how a port handles VLAN tagging.
type PortMode int

const (
	ModeAccess PortMode = iota
	ModeTrunk
	ModeHybrid
)

// Entry is one VLAN's membership and configuration.
type Entry struct {
	ID              switchtype.VlanId
	Name            string
	Active          bool
	MemberPorts     map[switchtype.PortId]bool
	UntaggedPorts   map[switchtype.PortId]bool
	LearningEnabled bool
	StpEnabled      bool
}

// PortConfig is one port's VLAN-facing configuration.
type PortConfig struct {
	Mode           PortMode
	Pvid           switchtype.VlanId
	NativeVlan     switchtype.VlanId
	AcceptUntagged bool
	AcceptTagged   bool
	IngressFilter  bool
}

// EventKind enumerates the VLAN engine's notification types.
type EventKind int

const (
	EventCreate EventKind = iota
	EventDelete
	EventPortAdded
	EventPortRemoved
	EventConfigChange
)

// Event is delivered to the single registered callback on any VLAN
// membership or configuration change.
type Event struct {
	Kind EventKind
	Vlan switchtype.VlanId
	Port switchtype.PortId
}

// EventCallback receives VLAN engine events.
type EventCallback func(Event)

// Engine owns every VLAN entry and every port's VLAN configuration.
type Engine struct {
	mu       sync.RWMutex
	vlans    map[switchtype.VlanId]*Entry
	ports    map[switchtype.PortId]*PortConfig
	callback EventCallback
}

// New creates an empty VLAN engine.
func New() *Engine {
	return &Engine{
		vlans: make(map[switchtype.VlanId]*Entry),
		ports: make(map[switchtype.PortId]*PortConfig),
	}
}

// SetEventCallback registers the single callback for engine events.
func (e *Engine) SetEventCallback(cb EventCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callback = cb
}

func (e *Engine) emit(evt Event) {
	if e.callback != nil {
		e.callback(evt)
	}
}

// CreateVlan adds a new VLAN entry.
func (e *Engine) CreateVlan(id switchtype.VlanId, name string) error {
	if !id.IsValid() {
		return coreerr.New(coreerr.KindInvalidArgument, "vlan id out of range")
	}

	e.mu.Lock()
	if _, exists := e.vlans[id]; exists {
		e.mu.Unlock()
		return coreerr.New(coreerr.KindAlreadyExists, "vlan already exists")
	}
	e.vlans[id] = &Entry{
		ID:              id,
		Name:            name,
		Active:          true,
		MemberPorts:     make(map[switchtype.PortId]bool),
		UntaggedPorts:   make(map[switchtype.PortId]bool),
		LearningEnabled: true,
		StpEnabled:      true,
	}
	e.mu.Unlock()

	e.emit(Event{Kind: EventCreate, Vlan: id})
	return nil
}

// DeleteVlan removes a VLAN entry.
func (e *Engine) DeleteVlan(id switchtype.VlanId) error {
	e.mu.Lock()
	if _, exists := e.vlans[id]; !exists {
		e.mu.Unlock()
		return coreerr.New(coreerr.KindNotFound, "vlan not found")
	}
	delete(e.vlans, id)
	e.mu.Unlock()

	e.emit(Event{Kind: EventDelete, Vlan: id})
	return nil
}

// GetVlan returns a copy of the named VLAN's entry (membership maps are
// shared references; callers must not mutate them).
func (e *Engine) GetVlan(id switchtype.VlanId) (*Entry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.vlans[id]
	if !ok {
		return nil, coreerr.New(coreerr.KindNotFound, "vlan not found")
	}
	return entry, nil
}

// AddPortToVlan adds port as a member of vlan; untagged also marks the
// port in the untagged set, maintaining the untagged ⊆ member invariant.
func (e *Engine) AddPortToVlan(vlanID switchtype.VlanId, port switchtype.PortId, untagged bool) error {
	e.mu.Lock()
	entry, ok := e.vlans[vlanID]
	if !ok {
		e.mu.Unlock()
		return coreerr.New(coreerr.KindNotFound, "vlan not found")
	}
	entry.MemberPorts[port] = true
	if untagged {
		entry.UntaggedPorts[port] = true
	}
	e.mu.Unlock()

	e.emit(Event{Kind: EventPortAdded, Vlan: vlanID, Port: port})
	return nil
}

// RemovePortFromVlan removes port from vlan's membership and untagged set.
func (e *Engine) RemovePortFromVlan(vlanID switchtype.VlanId, port switchtype.PortId) error {
	e.mu.Lock()
	entry, ok := e.vlans[vlanID]
	if !ok {
		e.mu.Unlock()
		return coreerr.New(coreerr.KindNotFound, "vlan not found")
	}
	delete(entry.MemberPorts, port)
	delete(entry.UntaggedPorts, port)
	e.mu.Unlock()

	e.emit(Event{Kind: EventPortRemoved, Vlan: vlanID, Port: port})
	return nil
}

// SetPortConfig installs or replaces a port's VLAN configuration.
func (e *Engine) SetPortConfig(port switchtype.PortId, cfg PortConfig) error {
	if cfg.Mode == ModeAccess && !cfg.Pvid.IsValid() {
		return coreerr.New(coreerr.KindInvalidArgument, "access port requires a valid pvid")
	}

	e.mu.Lock()
	e.ports[port] = &cfg
	e.mu.Unlock()

	e.emit(Event{Kind: EventConfigChange, Port: port})
	return nil
}

// GetPortConfig returns a copy of port's VLAN configuration.
func (e *Engine) GetPortConfig(port switchtype.PortId) (PortConfig, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cfg, ok := e.ports[port]
	if !ok {
		return PortConfig{}, coreerr.New(coreerr.KindNotFound, "port vlan configuration not found")
	}
	return *cfg, nil
}

// Frame is the subset of Ethernet header fields the ingress/egress
// algorithms need to read and rewrite.
type Frame struct {
	HasTag    bool
	Vid       switchtype.VlanId
	EtherType uint16
}

// IngressResult is the outcome of running the ingress algorithm.
type IngressResult struct {
	Vlan     switchtype.VlanId
	IsTagged bool
	Accept   bool
}

// Ingress applies §4.5's ingress algorithm for a frame received on inPort.
func (e *Engine) Ingress(inPort switchtype.PortId, frame Frame) (IngressResult, error) {
	e.mu.RLock()
	portCfg, ok := e.ports[inPort]
	if !ok {
		e.mu.RUnlock()
		return IngressResult{}, coreerr.New(coreerr.KindNotFound, "port vlan configuration not found")
	}
	cfg := *portCfg

	var vlanID switchtype.VlanId
	if frame.HasTag {
		vlanID = frame.Vid
	} else {
		vlanID = cfg.Pvid
	}

	vlanEntry, vlanOk := e.vlans[vlanID]
	e.mu.RUnlock()

	if cfg.IngressFilter {
		if !vlanOk || !vlanEntry.MemberPorts[inPort] {
			return IngressResult{Vlan: vlanID, IsTagged: frame.HasTag, Accept: false}, nil
		}
	}

	if frame.HasTag && !cfg.AcceptTagged {
		return IngressResult{Vlan: vlanID, IsTagged: true, Accept: false}, nil
	}
	if !frame.HasTag && !cfg.AcceptUntagged {
		return IngressResult{Vlan: vlanID, IsTagged: false, Accept: false}, nil
	}

	return IngressResult{Vlan: vlanID, IsTagged: frame.HasTag, Accept: true}, nil
}

// EgressAction describes how to rewrite a frame's tag before transmission.
type EgressAction int

const (
	// EgressStrip removes any 802.1Q tag before transmission.
	EgressStrip EgressAction = iota
	// EgressTag ensures an 802.1Q tag with the given vid is present.
	EgressTag
)

// Egress applies §4.5's egress algorithm for vlan on outPort.
func (e *Engine) Egress(outPort switchtype.PortId, vlanID switchtype.VlanId) (EgressAction, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cfg, ok := e.ports[outPort]
	if !ok {
		return EgressStrip, coreerr.New(coreerr.KindNotFound, "port vlan configuration not found")
	}

	switch cfg.Mode {
	case ModeAccess:
		return EgressStrip, nil
	case ModeTrunk:
		if vlanID == cfg.NativeVlan {
			return EgressStrip, nil
		}
		return EgressTag, nil
	case ModeHybrid:
		entry := e.vlans[vlanID]
		if entry != nil && entry.UntaggedPorts[outPort] {
			return EgressStrip, nil
		}
		if vlanID == cfg.NativeVlan {
			return EgressStrip, nil
		}
		return EgressTag, nil
	default:
		return EgressStrip, coreerr.New(coreerr.KindInternal, "unknown port vlan mode")
	}
}

// AddTag inserts an 802.1Q tag after the source MAC field (offset 12) of
// an untagged Ethernet II frame, preserving the rest of the payload.
func AddTag(data []byte, vid switchtype.VlanId, pcp uint8, dei bool) ([]byte, error) {
	if len(data) < 14 {
		return nil, coreerr.New(coreerr.KindInvalidPacket, "frame too short to carry an ethernet header")
	}

	tci := packTCI(vid, pcp, dei)

	out := make([]byte, 0, len(data)+4)
	out = append(out, data[:12]...)
	out = append(out, 0, 0, 0, 0)
	binary.BigEndian.PutUint16(out[12:14], TPID)
	binary.BigEndian.PutUint16(out[14:16], tci)
	out = append(out, data[12:]...)
	return out, nil
}

// RemoveTag strips a present 802.1Q tag, restoring the original EtherType
// in its place. A no-op if no tag is present.
func RemoveTag(data []byte) ([]byte, error) {
	if len(data) < 18 {
		return data, nil
	}
	if binary.BigEndian.Uint16(data[12:14]) != TPID {
		return data, nil
	}

	out := make([]byte, 0, len(data)-4)
	out = append(out, data[:12]...)
	out = append(out, data[16:]...)
	return out, nil
}

// ReplaceTag rewrites the vid of an already-tagged frame's 802.1Q tag.
func ReplaceTag(data []byte, vid switchtype.VlanId) error {
	if len(data) < 16 || binary.BigEndian.Uint16(data[12:14]) != TPID {
		return coreerr.New(coreerr.KindInvalidPacket, "frame does not carry an 802.1q tag")
	}
	existing := binary.BigEndian.Uint16(data[14:16])
	pcp := uint8(existing >> 13)
	dei := (existing>>12)&0x1 == 1
	binary.BigEndian.PutUint16(data[14:16], packTCI(vid, pcp, dei))
	return nil
}

func packTCI(vid switchtype.VlanId, pcp uint8, dei bool) uint16 {
	var deiBit uint16
	if dei {
		deiBit = 1
	}
	return (uint16(pcp&0x7) << 13) | (deiBit << 12) | (uint16(vid) & 0x0FFF)
}
