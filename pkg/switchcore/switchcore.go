// Package switchcore owns one instance of every engine (port registry,
// VLAN engine, MAC table, STP bridge, routing table, ARP cache) and
// drives the packet dispatch pipeline and the periodic scheduler tick.
// Grounded on pkg/switcher/switcher.go's Switcher: a state enum
// (Stopped/Starting/Running/Stopping/Error), a stopChan-driven aging
// goroutine, and a HandlePacket entry point — generalized here to own
// every C1-C10 engine explicitly rather than one MAC table, which is
// the §9 fix for the original's package-level globals
// (g_stp_bridge, g_arp_table, g_routing_table -> an explicit Core value).
package switchcore

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/stella/switchsim/pkg/arpcache"
	"github.com/stella/switchsim/pkg/config"
	"github.com/stella/switchsim/pkg/coreerr"
	"github.com/stella/switchsim/pkg/ipstack"
	"github.com/stella/switchsim/pkg/mactable"
	"github.com/stella/switchsim/pkg/packet"
	"github.com/stella/switchsim/pkg/pipeline"
	"github.com/stella/switchsim/pkg/portreg"
	"github.com/stella/switchsim/pkg/routing"
	"github.com/stella/switchsim/pkg/stp"
	"github.com/stella/switchsim/pkg/switchlog"
	"github.com/stella/switchsim/pkg/switchtype"
	"github.com/stella/switchsim/pkg/vlan"
)

// State mirrors the teacher's SwitchState lifecycle enum.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateError
)

const (
	etherTypeArp  = 0x0806
	etherTypeIpv4 = 0x0800
	etherTypeIpv6 = 0x86DD
	ethHeaderLen  = 14
)

// Core wires every engine together per §5's lock-ordering requirement
// (Port Registry -> VLAN Engine -> MAC Table -> STP Bridge -> Routing
// Table -> ARP Cache): Core itself never holds two engine locks at
// once, so the order is enforced by construction rather than by
// explicit nested-lock discipline.
type Core struct {
	mu    sync.RWMutex
	state State

	Registry *portreg.Registry
	Vlans    *vlan.Engine
	Macs     *mactable.Table
	Stp      *stp.Bridge
	Routes   *routing.Table
	Arps     *arpcache.Cache
	Pipe     *pipeline.Pipeline

	reassembleV4 *ipstack.Reassembler
	reassembleV6 *ipstack.Reassembler

	backend portreg.Backend
	log     *switchlog.Logger
	cfg     *config.Config

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// arpSender adapts Core to arpcache.RequestSender, sourcing the ARP
// request's sender IP/MAC from the egress port's configured address
// per §9's fix for arp_send_request's uninitialized sender bug.
type arpSender struct {
	core *Core
}

func (s arpSender) SenderAddr(port switchtype.PortId) (switchtype.Ipv4Addr, switchtype.MacAddr, error) {
	mac, err := s.core.Registry.GetMac(port)
	if err != nil {
		return 0, switchtype.MacAddr{}, err
	}
	return s.core.localIPv4(port), mac, nil
}

func (s arpSender) SendArpRequest(port switchtype.PortId, senderIP switchtype.Ipv4Addr, senderMac switchtype.MacAddr, targetIP switchtype.Ipv4Addr) error {
	payload := encodeArpPacket(1, senderMac, senderIP, switchtype.MacAddr{}, targetIP)
	buf, err := packet.Allocate(ethHeaderLen + len(payload))
	if err != nil {
		return err
	}
	frame := buildEthernetFrame(switchtype.BroadcastMAC, senderMac, etherTypeArp, payload)
	if err := buf.Append(frame); err != nil {
		return err
	}
	return s.core.Registry.Transmit(port, buf)
}

// New builds a Core with every engine sized from cfg and bound to
// backend.
func New(cfg *config.Config, backend portreg.Backend, log *switchlog.Logger) (*Core, error) {
	registry, err := portreg.New(backend, cfg.DefaultMTU)
	if err != nil {
		return nil, err
	}

	cpuMac, err := registry.GetMac(registry.CpuPort())
	if err != nil {
		return nil, err
	}

	c := &Core{
		state:        StateStopped,
		Registry:     registry,
		Vlans:        vlan.New(),
		Macs:         mactable.New(cfg.MaxMacTableEntries, int64(cfg.DefaultMacAgingTime)),
		Stp:          stp.New(switchtype.BridgeId{Priority: stp.DefaultBridgePriority, Mac: cpuMac}),
		Routes:       routing.New(nil),
		Pipe:         pipeline.New(log),
		reassembleV4: ipstack.NewReassembler(cfg.MaxIPFragments),
		reassembleV6: ipstack.NewReassembler(cfg.MaxIPFragments),
		backend:      backend,
		log:          log,
		cfg:          cfg,
		stopChan:     make(chan struct{}),
	}
	c.Arps = arpcache.New(arpSender{core: c}, c.Macs, switchtype.DefaultVlan)

	if err := c.Vlans.CreateVlan(switchtype.DefaultVlan, "default"); err != nil {
		return nil, err
	}
	for id := switchtype.PortId(0); uint32(id) < registry.TotalCount(); id++ {
		c.Stp.AddPort(id, stp.DefaultPathCost)
		if err := c.Vlans.AddPortToVlan(switchtype.DefaultVlan, id, true); err != nil {
			return nil, err
		}
		if err := c.Vlans.SetPortConfig(id, vlan.PortConfig{
			Mode:           vlan.ModeAccess,
			Pvid:           switchtype.DefaultVlan,
			NativeVlan:     switchtype.DefaultVlan,
			AcceptUntagged: true,
			AcceptTagged:   false,
			IngressFilter:  true,
		}); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// localIPv4 returns the configured local address for port; the
// simulator has no separate interface-address table, so this returns
// the zero address when none is configured. Kept as a seam so a future
// interface-address table can replace it without touching callers.
func (c *Core) localIPv4(port switchtype.PortId) switchtype.Ipv4Addr {
	return 0
}

// localIPv6 mirrors localIPv4 for the IPv6 family.
func (c *Core) localIPv6(port switchtype.PortId) switchtype.Ipv6Addr {
	return switchtype.Ipv6Addr{}
}

// Start begins the periodic scheduler tick, per §5's single-scheduler-
// thread requirement: one goroutine calls stp.Update, arp aging/retry,
// mac aging, and fragment-context sweep, each taking its own engine lock.
// It also starts the two goroutines that consume the backend's §4.10
// receive() and link_event_stream() channels, since without them
// HandleIngress and Registry.SetOperState are never driven by the
// running program at all.
func (c *Core) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStopped {
		return coreerr.New(coreerr.KindInvalidState, "core is not stopped")
	}
	c.state = StateStarting
	c.stopChan = make(chan struct{})

	c.wg.Add(3)
	go c.schedulerLoop()
	go c.rxLoop()
	go c.linkEventLoop()

	c.Stp.SetEnabled(true)
	c.state = StateRunning
	return nil
}

// rxLoop delivers every backend-received frame into HandleIngress, per
// §4.10's callback/streaming form of receive().
func (c *Core) rxLoop() {
	defer c.wg.Done()
	rx := c.backend.Receive()
	for {
		select {
		case <-c.stopChan:
			return
		case d, ok := <-rx:
			if !ok {
				return
			}
			buf, err := packet.Allocate(len(d.Data))
			if err != nil {
				c.log.Debug("rx allocate failed on port %s: %v", d.Port, err)
				continue
			}
			if err := buf.Append(d.Data); err != nil {
				c.log.Debug("rx append failed on port %s: %v", d.Port, err)
				continue
			}
			if err := c.HandleIngress(d.Port, buf); err != nil {
				c.log.Debug("ingress error on port %s: %v", d.Port, err)
			}
		}
	}
}

// linkEventLoop applies backend link_event_stream() transitions to the
// port registry's operational state.
func (c *Core) linkEventLoop() {
	defer c.wg.Done()
	events := c.backend.LinkEvents()
	for {
		select {
		case <-c.stopChan:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			state := portreg.OperDown
			if ev.Up {
				state = portreg.OperUp
			}
			if err := c.Registry.SetOperState(ev.Port, state); err != nil {
				c.log.Debug("link event for unknown port %s: %v", ev.Port, err)
				continue
			}
			evt := stp.EventLinkDown
			if ev.Up {
				evt = stp.EventLinkUp
			}
			if err := c.Stp.HandlePortEvent(ev.Port, evt); err != nil {
				c.log.Debug("stp link event for unknown port %s: %v", ev.Port, err)
			}
		}
	}
}

// Stop halts the scheduler, receive and link-event goroutines and waits
// for them to exit.
func (c *Core) Stop() error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return coreerr.New(coreerr.KindInvalidState, "core is not running")
	}
	c.state = StateStopping
	close(c.stopChan)
	c.mu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()
	return nil
}

func (c *Core) GetState() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Core) schedulerLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Core) tick() {
	now := c.backend.NowSeconds()
	if c.Stp.Update(1) {
		c.emitHelloBpdus()
	}
	c.Macs.ProcessAging(now)
	c.Arps.AgeEntries(now)
	c.Arps.ProcessRetries(now)
	c.reassembleV4.Sweep(now)
	c.reassembleV6.Sweep(now)
}

// emitHelloBpdus sends a Config BPDU out every non-Disabled port, per
// §4.6: "Root bridge emits Config BPDUs every hello_time on non-Disabled
// ports." Stp.Update only returns true when this bridge is currently root
// and its hello timer has just elapsed.
func (c *Core) emitHelloBpdus() {
	for _, port := range c.Stp.NonDisabledPorts() {
		cfg, ok := c.Stp.HelloConfig(port)
		if !ok {
			continue
		}
		mac, err := c.Registry.GetMac(port)
		if err != nil {
			continue
		}
		frame := stp.EncodeConfigBPDU(mac, cfg)
		buf, err := packet.Allocate(len(frame))
		if err != nil {
			continue
		}
		if err := buf.Append(frame); err != nil {
			continue
		}
		if err := c.Registry.Transmit(port, buf); err != nil {
			c.log.Debug("hello bpdu transmit failed on port %s: %v", port, err)
		}
	}
}

// HandleIngress runs one received frame through the full dispatch
// pipeline: Port Registry stamps ingress metadata, the processor
// pipeline runs, VLAN ingress classifies the frame, control protocols
// (STP BPDUs, ARP) are consumed by their engines, and everything else
// is MAC-learned and forwarded (bridged or routed).
func (c *Core) HandleIngress(inPort switchtype.PortId, buf *packet.Buffer) error {
	now := c.backend.NowSeconds()
	buf.Metadata.Port = inPort
	buf.Metadata.Direction = packet.DirRx
	buf.Metadata.TimestampUs = c.backend.NowMicros()
	c.Registry.RecordRx(inPort, buf.Len())

	if v := c.Pipe.Process(buf, 0); v == pipeline.Drop || v == pipeline.Consume {
		return nil
	}

	eth, err := parseEthernetHeader(buf.Bytes())
	if err != nil {
		c.Registry.RecordRxDropped(inPort)
		return err
	}
	buf.Metadata.SrcMac = eth.src
	buf.Metadata.DstMac = eth.dst
	buf.Metadata.EtherType = eth.etherType
	buf.Metadata.IsTagged = eth.hasTag

	ingress, err := c.Vlans.Ingress(inPort, vlan.Frame{HasTag: eth.hasTag, Vid: eth.vid, EtherType: eth.etherType})
	if err != nil || !ingress.Accept {
		c.Registry.RecordRxDropped(inPort)
		return nil
	}
	buf.Metadata.Vlan = ingress.Vlan
	buf.Metadata.IsTagged = ingress.IsTagged

	if eth.dst.Equals(stp.BridgeGroupAddress) {
		return c.handleBpdu(inPort, buf.Bytes()[ethHeaderLen:])
	}

	portState, err := c.Stp.VlanStateOf(inPort, ingress.Vlan, true)
	if err != nil || portState == stp.StateBlocking || portState == stp.StateDisabled || portState == stp.StateListening {
		return nil
	}

	if eth.etherType == etherTypeArp {
		return c.handleArp(inPort, buf.Bytes()[ethHeaderLen:], now)
	}

	if err := c.Macs.Learn(eth.src, ingress.Vlan, inPort, now); err != nil {
		c.log.Debug("mac learn failed on port %s: %v", inPort, err)
	}

	if (eth.etherType == etherTypeIpv4 || eth.etherType == etherTypeIpv6) && eth.dst.Equals(c.routerMac(inPort)) {
		return c.routeIp(inPort, eth, buf, now)
	}

	return c.forwardL2(inPort, ingress.Vlan, eth.dst, buf)
}

func (c *Core) routerMac(port switchtype.PortId) switchtype.MacAddr {
	mac, _ := c.Registry.GetMac(port)
	return mac
}

// forwardL2 looks up the destination MAC in the VLAN-scoped MAC table
// and unicasts, or floods to every forwarding member port of the VLAN
// when the destination is unknown or broadcast/multicast.
func (c *Core) forwardL2(inPort switchtype.PortId, vid switchtype.VlanId, dst switchtype.MacAddr, buf *packet.Buffer) error {
	if !dst.IsBroadcast() && !dst.IsMulticast() {
		if outPort, ok := c.Macs.Lookup(dst, vid); ok {
			return c.egress(outPort, vid, buf)
		}
	}

	entry, err := c.Vlans.GetVlan(vid)
	if err != nil {
		return err
	}
	for port := range entry.MemberPorts {
		if port == inPort {
			continue
		}
		state, err := c.Stp.VlanStateOf(port, vid, true)
		if err != nil || state != stp.StateForwarding {
			continue
		}
		clone, err := buf.Clone()
		if err != nil {
			continue
		}
		_ = c.egress(port, vid, clone)
	}
	return nil
}

func (c *Core) egress(outPort switchtype.PortId, vid switchtype.VlanId, buf *packet.Buffer) error {
	action, err := c.Vlans.Egress(outPort, vid)
	if err != nil {
		return err
	}
	switch action {
	case vlan.EgressStrip:
		if stripped, err := vlan.RemoveTag(buf.Bytes()); err == nil {
			buf.Reset()
			_ = buf.Append(stripped)
		}
	case vlan.EgressTag:
		if tagged, err := vlan.AddTag(buf.Bytes(), vid, 0, false); err == nil {
			buf.Reset()
			_ = buf.Append(tagged)
		}
	}
	buf.Metadata.Direction = packet.DirTx
	return c.Registry.Transmit(outPort, buf)
}

func (c *Core) handleBpdu(inPort switchtype.PortId, payload []byte) error {
	bpduType, cfg, err := stp.DecodeBPDU(payload)
	if err != nil {
		return err
	}
	if bpduType == stp.BpduTcn {
		return nil
	}
	return c.Stp.ReceiveConfigBPDU(inPort, *cfg)
}

func (c *Core) handleArp(inPort switchtype.PortId, payload []byte, now int64) error {
	frame, err := decodeArpPacket(payload)
	if err != nil {
		return err
	}
	localIPs := []switchtype.Ipv4Addr{c.localIPv4(inPort)}
	shouldReply, err := c.Arps.HandleFrame(frame, inPort, localIPs, now)
	if err != nil || !shouldReply {
		return err
	}
	localMac, err := c.Registry.GetMac(inPort)
	if err != nil {
		return err
	}
	reply := encodeArpPacket(2, localMac, frame.TargetIP, frame.SenderMac, frame.SenderIP)
	buf, err := packet.Allocate(ethHeaderLen + len(reply))
	if err != nil {
		return err
	}
	ethFrame := buildEthernetFrame(frame.SenderMac, localMac, etherTypeArp, reply)
	if err := buf.Append(ethFrame); err != nil {
		return err
	}
	return c.Registry.Transmit(inPort, buf)
}

// routeIp dispatches to the IPv4 or IPv6 leg of §4.7's IP pipeline.
func (c *Core) routeIp(inPort switchtype.PortId, eth ethernetHeader, buf *packet.Buffer, now int64) error {
	switch eth.etherType {
	case etherTypeIpv4:
		return c.routeIpv4(inPort, buf.Bytes()[ethHeaderLen:], now)
	case etherTypeIpv6:
		return c.routeIpv6(inPort, buf.Bytes()[ethHeaderLen:], now)
	default:
		return nil
	}
}

// routeIpv4 implements §4.7's IPv4 pipeline in full: fragment reassembly
// keyed by (src,dst,ident,proto), local-destination demux, TTL decrement,
// C8 next-hop lookup, C9 MAC resolution (enqueueing a retry and dropping
// without blocking the pipeline if pending), and egress fragmentation to
// the outgoing interface's MTU.
func (c *Core) routeIpv4(inPort switchtype.PortId, payload []byte, now int64) error {
	hdr, err := ipstack.ParseIpv4Header(payload)
	if err != nil {
		c.Registry.RecordRxDropped(inPort)
		return err
	}
	body := payload[hdr.HeaderLen:hdr.TotalLen]

	if hdr.FlagsMF || hdr.FragOffset > 0 {
		reassembled, complete, err := c.reassembleV4.AddIpv4Fragment(hdr.Src, hdr.Dst, hdr.Ident, hdr.Protocol, int(hdr.FragOffset), body, hdr.FlagsMF, now)
		if err != nil {
			c.Registry.RecordRxDropped(inPort)
			return err
		}
		if !complete {
			return nil
		}
		body = reassembled
		hdr.FlagsMF = false
		hdr.FragOffset = 0
	}

	if ipstack.IsLocalDestination(hdr.Dst, []switchtype.Ipv4Addr{c.localIPv4(inPort)}) {
		c.log.Debug("ipv4 packet for local address on port %s, protocol %d: no local stack demux modeled", inPort, hdr.Protocol)
		return nil
	}

	route, ok := c.Routes.Lookup(hdr.Dst)
	if !ok {
		c.Registry.RecordRxDropped(inPort)
		return coreerr.New(coreerr.KindNotFound, "no route to host")
	}

	newTTL, err := ipstack.DecrementTTL(hdr.TTL)
	if err != nil {
		c.Registry.RecordRxDropped(inPort)
		return err
	}

	mac, _, result, err := c.Arps.Lookup(route.NextHopV4, route.IfaceIndex, now)
	if err != nil {
		return err
	}
	if result != arpcache.LookupOk {
		return nil
	}

	srcMac, err := c.Registry.GetMac(route.IfaceIndex)
	if err != nil {
		return err
	}
	egressInfo, err := c.Registry.GetInfo(route.IfaceIndex)
	if err != nil {
		return err
	}

	headerTemplate := make([]byte, hdr.HeaderLen)
	copy(headerTemplate, payload[:hdr.HeaderLen])

	if hdr.HeaderLen+len(body) <= egressInfo.MTU {
		datagram := rewriteIpv4Datagram(headerTemplate, newTTL, hdr.HeaderLen+len(body), 0, false, body)
		return c.sendIpv4Frame(route.IfaceIndex, mac, srcMac, datagram)
	}

	if hdr.FlagsDF {
		c.Registry.RecordRxDropped(inPort)
		return coreerr.New(coreerr.KindFragmentationNeeded, "egress mtu too small and df set")
	}

	fragments, err := ipstack.FragmentIpv4(hdr, body, egressInfo.MTU)
	if err != nil {
		c.Registry.RecordRxDropped(inPort)
		return err
	}
	offset := 0
	for i, frag := range fragments {
		more := i != len(fragments)-1
		datagram := rewriteIpv4Datagram(headerTemplate, newTTL, hdr.HeaderLen+len(frag), offset, more, frag)
		if err := c.sendIpv4Frame(route.IfaceIndex, mac, srcMac, datagram); err != nil {
			c.log.Debug("fragment egress failed on port %s: %v", route.IfaceIndex, err)
		}
		offset += len(frag)
	}
	return nil
}

// rewriteIpv4Datagram builds one outgoing IPv4 datagram. headerTemplate's
// option bytes (beyond the fixed 20) are carried over unchanged; ttl,
// total_length, the flags/fragment-offset word, and the header checksum
// are overwritten for this fragment.
func rewriteIpv4Datagram(headerTemplate []byte, ttl uint8, totalLen int, fragOffsetBytes int, moreFragments bool, body []byte) []byte {
	hdrLen := len(headerTemplate)
	out := make([]byte, hdrLen+len(body))
	copy(out[:hdrLen], headerTemplate)
	out[8] = ttl
	binary.BigEndian.PutUint16(out[2:4], uint16(totalLen))

	df := binary.BigEndian.Uint16(headerTemplate[6:8]) & 0x4000
	flagsFrag := df | uint16(fragOffsetBytes/8)
	if moreFragments {
		flagsFrag |= 0x2000
	}
	binary.BigEndian.PutUint16(out[6:8], flagsFrag)

	copy(out[hdrLen:], body)
	binary.BigEndian.PutUint16(out[10:12], 0)
	binary.BigEndian.PutUint16(out[10:12], ipstack.Checksum(out[:hdrLen]))
	return out
}

func (c *Core) sendIpv4Frame(outPort switchtype.PortId, dstMac, srcMac switchtype.MacAddr, datagram []byte) error {
	frame := buildEthernetFrame(dstMac, srcMac, etherTypeIpv4, datagram)
	out, err := packet.Allocate(len(frame))
	if err != nil {
		return err
	}
	if err := out.Append(frame); err != nil {
		return err
	}
	return c.egress(outPort, switchtype.DefaultVlan, out)
}

// routeIpv6 mirrors routeIpv4 per §4.7's IPv6 paragraph: fixed 40-byte
// header, extension-header walk, hop_limit in place of TTL. C9 (the
// next-hop MAC resolver) is IPv4-only by spec.md's module table, so an
// IPv6 route that clears reassembly, local-destination demux, hop-limit
// decrement, and the egress-MTU check still cannot complete the final
// L2 resolution; it is logged and dropped rather than forwarded with a
// fabricated neighbor-discovery result.
func (c *Core) routeIpv6(inPort switchtype.PortId, payload []byte, now int64) error {
	hdr, err := ipstack.ParseIpv6Header(payload)
	if err != nil {
		c.Registry.RecordRxDropped(inPort)
		return err
	}

	exts, upperOffset, upperProto, err := ipstack.WalkExtensionHeaders(payload, hdr.NextHeader)
	if err != nil {
		c.Registry.RecordRxDropped(inPort)
		return err
	}

	bodyEnd := ipstack.Ipv6HeaderLen + int(hdr.PayloadLen)
	if bodyEnd > len(payload) {
		bodyEnd = len(payload)
	}
	body := payload[upperOffset:bodyEnd]

	var frag *ipstack.ExtensionHeader
	for i := range exts {
		if exts[i].Type == ipstack.NextHeaderFragment {
			frag = &exts[i]
			break
		}
	}
	if frag != nil {
		reassembled, complete, err := c.reassembleV6.AddIpv6Fragment(hdr.Src, hdr.Dst, uint16(frag.FragIdent), int(frag.FragOffset), body, frag.MoreFrags, now)
		if err != nil {
			c.Registry.RecordRxDropped(inPort)
			return err
		}
		if !complete {
			return nil
		}
		body = reassembled
	}

	if ipstack.IsLocalDestinationV6(hdr.Dst, []switchtype.Ipv6Addr{c.localIPv6(inPort)}) {
		c.log.Debug("ipv6 packet for local address on port %s, next header %d: no local stack demux modeled", inPort, upperProto)
		return nil
	}

	route, ok := c.Routes.LookupV6(hdr.Dst)
	if !ok {
		c.Registry.RecordRxDropped(inPort)
		return coreerr.New(coreerr.KindNotFound, "no route to host")
	}

	if _, err := ipstack.DecrementHopLimit(hdr.HopLimit); err != nil {
		c.Registry.RecordRxDropped(inPort)
		return err
	}

	egressInfo, err := c.Registry.GetInfo(route.IfaceIndex)
	if err != nil {
		return err
	}
	if ipstack.Ipv6HeaderLen+len(body) > egressInfo.MTU {
		c.Registry.RecordRxDropped(inPort)
		return coreerr.New(coreerr.KindFragmentationNeeded, "egress mtu too small for ipv6 datagram")
	}

	c.log.Debug("ipv6 route to %s resolved via iface %s, no neighbor cache to complete l2 resolution", hdr.Dst, route.IfaceIndex)
	c.Registry.RecordRxDropped(inPort)
	return nil
}
