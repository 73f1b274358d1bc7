package ipstack

import (
	"encoding/binary"

	"github.com/stella/switchsim/pkg/coreerr"
	"github.com/stella/switchsim/pkg/switchtype"
)

// Ipv6HeaderLen is the fixed size of the IPv6 fixed header.
const Ipv6HeaderLen = 40

// Next-header values for the extension headers walked by WalkExtensionHeaders.
const (
	NextHeaderHopByHop  = 0
	NextHeaderRouting   = 43
	NextHeaderFragment  = 44
	NextHeaderDestOpts  = 60
	NextHeaderNoNext    = 59
)

// Ipv6Header is the parsed fixed header. NextHeader is the fixed header's
// own next-header byte; extension headers are not walked here.
type Ipv6Header struct {
	Version      uint8
	TrafficClass uint8
	FlowLabel    uint32
	PayloadLen   uint16
	NextHeader   uint8
	HopLimit     uint8
	Src          switchtype.Ipv6Addr
	Dst          switchtype.Ipv6Addr
}

// ParseIpv6Header validates and decodes the fixed 40-byte IPv6 header,
// per §4.7: version must be 6 and payload_length must not exceed what
// follows the fixed header in the frame.
func ParseIpv6Header(data []byte) (Ipv6Header, error) {
	if len(data) < Ipv6HeaderLen {
		return Ipv6Header{}, coreerr.New(coreerr.KindHeaderError, "ipv6 header too short")
	}

	verClassFlow := binary.BigEndian.Uint32(data[0:4])
	version := uint8(verClassFlow >> 28)
	if version != 6 {
		return Ipv6Header{}, coreerr.New(coreerr.KindHeaderError, "ipv6 version field is not 6")
	}

	payloadLen := binary.BigEndian.Uint16(data[4:6])
	if int(payloadLen) > len(data)-Ipv6HeaderLen {
		return Ipv6Header{}, coreerr.New(coreerr.KindHeaderError, "ipv6 payload_length exceeds frame length")
	}

	src, err := switchtype.NewIpv6FromBytes(data[8:24])
	if err != nil {
		return Ipv6Header{}, coreerr.Wrap(coreerr.KindHeaderError, "invalid source address", err)
	}
	dst, err := switchtype.NewIpv6FromBytes(data[24:40])
	if err != nil {
		return Ipv6Header{}, coreerr.Wrap(coreerr.KindHeaderError, "invalid destination address", err)
	}

	return Ipv6Header{
		Version:      version,
		TrafficClass: uint8(verClassFlow >> 20),
		FlowLabel:    verClassFlow & 0x000FFFFF,
		PayloadLen:   payloadLen,
		NextHeader:   data[6],
		HopLimit:     data[7],
		Src:          src,
		Dst:          dst,
	}, nil
}

// ExtensionHeader describes one header found while walking the chain.
type ExtensionHeader struct {
	Type       uint8
	Offset     int
	Len        int
	SegLeft    uint8 // populated only for NextHeaderRouting
	FragOffset uint16
	MoreFrags  bool
	FragIdent  uint32
}

// WalkExtensionHeaders walks Hop-by-Hop, Routing, Fragment, and
// Destination Options headers starting at offset Ipv6HeaderLen in data,
// per §4.7's IPv6 paragraph. Routing header segments_left handling is a
// no-op beyond recording it: this pipeline only forwards. Returns the
// walked headers and the offset and next-header value of the upper-layer
// payload that follows the chain.
func WalkExtensionHeaders(data []byte, firstNext uint8) ([]ExtensionHeader, int, uint8, error) {
	offset := Ipv6HeaderLen
	next := firstNext
	var headers []ExtensionHeader

	for {
		switch next {
		case NextHeaderHopByHop, NextHeaderDestOpts, NextHeaderRouting:
			if offset+2 > len(data) {
				return headers, offset, next, coreerr.New(coreerr.KindHeaderError, "truncated ipv6 extension header")
			}
			hdrLen := (int(data[offset+1]) + 1) * 8
			if offset+hdrLen > len(data) {
				return headers, offset, next, coreerr.New(coreerr.KindHeaderError, "ipv6 extension header exceeds frame")
			}
			eh := ExtensionHeader{Type: next, Offset: offset, Len: hdrLen}
			if next == NextHeaderRouting && hdrLen >= 4 {
				eh.SegLeft = data[offset+3]
			}
			headers = append(headers, eh)
			nextHeader := data[offset]
			offset += hdrLen
			next = nextHeader

		case NextHeaderFragment:
			if offset+8 > len(data) {
				return headers, offset, next, coreerr.New(coreerr.KindHeaderError, "truncated ipv6 fragment header")
			}
			fragWord := binary.BigEndian.Uint16(data[offset+2 : offset+4])
			eh := ExtensionHeader{
				Type:       next,
				Offset:     offset,
				Len:        8,
				FragOffset: (fragWord >> 3) * 8,
				MoreFrags:  fragWord&0x1 != 0,
				FragIdent:  binary.BigEndian.Uint32(data[offset+4 : offset+8]),
			}
			headers = append(headers, eh)
			nextHeader := data[offset]
			offset += 8
			next = nextHeader

		default:
			return headers, offset, next, nil
		}
	}
}

// DecrementHopLimit mirrors DecrementTTL for the IPv6 hop_limit field.
func DecrementHopLimit(hopLimit uint8) (uint8, error) {
	if hopLimit == 0 {
		return 0, coreerr.New(coreerr.KindTtlExceeded, "hop limit already zero")
	}
	next := hopLimit - 1
	if next < TTLThreshold {
		return next, coreerr.New(coreerr.KindTtlExceeded, "hop limit exceeded after decrement")
	}
	return next, nil
}

// IsLocalDestinationV6 reports whether dst matches one of the interface
// addresses the local stack owns.
func IsLocalDestinationV6(dst switchtype.Ipv6Addr, localAddrs []switchtype.Ipv6Addr) bool {
	for _, a := range localAddrs {
		if a.Equals(dst) {
			return true
		}
	}
	return false
}
