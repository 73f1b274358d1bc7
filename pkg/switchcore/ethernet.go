package switchcore

import (
	"encoding/binary"

	"github.com/stella/switchsim/pkg/arpcache"
	"github.com/stella/switchsim/pkg/coreerr"
	"github.com/stella/switchsim/pkg/switchtype"
	"github.com/stella/switchsim/pkg/vlan"
)

// ethernetHeader is the parsed subset of an Ethernet II (optionally
// 802.1Q-tagged) frame header HandleIngress needs to make its dispatch
// decision.
type ethernetHeader struct {
	dst       switchtype.MacAddr
	src       switchtype.MacAddr
	etherType uint16
	hasTag    bool
	vid       switchtype.VlanId
}

// parseEthernetHeader reads the destination/source MAC, an optional
// 802.1Q tag, and the EtherType from the start of data.
func parseEthernetHeader(data []byte) (ethernetHeader, error) {
	if len(data) < 14 {
		return ethernetHeader{}, coreerr.New(coreerr.KindInvalidPacket, "frame shorter than an ethernet header")
	}
	dst, err := switchtype.NewMACFromBytes(data[0:6])
	if err != nil {
		return ethernetHeader{}, coreerr.Wrap(coreerr.KindInvalidPacket, "invalid destination mac", err)
	}
	src, err := switchtype.NewMACFromBytes(data[6:12])
	if err != nil {
		return ethernetHeader{}, coreerr.Wrap(coreerr.KindInvalidPacket, "invalid source mac", err)
	}

	eth := ethernetHeader{dst: dst, src: src}

	if binary.BigEndian.Uint16(data[12:14]) == vlan.TPID {
		if len(data) < 18 {
			return ethernetHeader{}, coreerr.New(coreerr.KindInvalidPacket, "tagged frame too short")
		}
		tci := binary.BigEndian.Uint16(data[14:16])
		eth.hasTag = true
		eth.vid = switchtype.VlanId(tci & 0x0FFF)
		eth.etherType = binary.BigEndian.Uint16(data[16:18])
	} else {
		eth.etherType = binary.BigEndian.Uint16(data[12:14])
	}

	return eth, nil
}

// buildEthernetFrame renders an untagged Ethernet II frame.
func buildEthernetFrame(dst, src switchtype.MacAddr, etherType uint16, payload []byte) []byte {
	out := make([]byte, 0, 14+len(payload))
	out = append(out, dst.Bytes()...)
	out = append(out, src.Bytes()...)
	out = append(out, byte(etherType>>8), byte(etherType))
	out = append(out, payload...)
	return out
}

// arpPacketLen is the wire length of an RFC 826 Ethernet/IPv4 ARP packet.
const arpPacketLen = 28

// encodeArpPacket renders an RFC 826 ARP packet for Ethernet/IPv4:
// hardware type 1, protocol type 0x0800, hardware/protocol length 6/4.
func encodeArpPacket(operation uint16, senderMac switchtype.MacAddr, senderIP switchtype.Ipv4Addr, targetMac switchtype.MacAddr, targetIP switchtype.Ipv4Addr) []byte {
	out := make([]byte, arpPacketLen)
	binary.BigEndian.PutUint16(out[0:2], 1)      // hardware type: Ethernet
	binary.BigEndian.PutUint16(out[2:4], 0x0800) // protocol type: IPv4
	out[4] = 6                                   // hardware address length
	out[5] = 4                                   // protocol address length
	binary.BigEndian.PutUint16(out[6:8], operation)
	copy(out[8:14], senderMac.Bytes())
	senderBytes := senderIP.Bytes()
	copy(out[14:18], senderBytes[:])
	copy(out[18:24], targetMac.Bytes())
	targetBytes := targetIP.Bytes()
	copy(out[24:28], targetBytes[:])
	return out
}

// decodeArpPacket parses an RFC 826 ARP packet into an arpcache.Frame.
func decodeArpPacket(data []byte) (arpcache.Frame, error) {
	if len(data) < arpPacketLen {
		return arpcache.Frame{}, coreerr.New(coreerr.KindHeaderError, "arp packet too short")
	}
	if binary.BigEndian.Uint16(data[0:2]) != 1 || binary.BigEndian.Uint16(data[2:4]) != 0x0800 {
		return arpcache.Frame{}, coreerr.New(coreerr.KindHeaderError, "unsupported arp hardware/protocol type")
	}

	senderMac, err := switchtype.NewMACFromBytes(data[8:14])
	if err != nil {
		return arpcache.Frame{}, coreerr.Wrap(coreerr.KindHeaderError, "invalid arp sender mac", err)
	}
	senderIP, err := switchtype.NewIpv4FromBytes(data[14:18])
	if err != nil {
		return arpcache.Frame{}, coreerr.Wrap(coreerr.KindHeaderError, "invalid arp sender ip", err)
	}
	targetMac, err := switchtype.NewMACFromBytes(data[18:24])
	if err != nil {
		return arpcache.Frame{}, coreerr.Wrap(coreerr.KindHeaderError, "invalid arp target mac", err)
	}
	targetIP, err := switchtype.NewIpv4FromBytes(data[24:28])
	if err != nil {
		return arpcache.Frame{}, coreerr.Wrap(coreerr.KindHeaderError, "invalid arp target ip", err)
	}

	return arpcache.Frame{
		Operation: binary.BigEndian.Uint16(data[6:8]),
		SenderMac: senderMac,
		SenderIP:  senderIP,
		TargetMac: targetMac,
		TargetIP:  targetIP,
	}, nil
}
