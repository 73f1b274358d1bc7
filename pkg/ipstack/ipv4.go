package ipstack

import (
	"encoding/binary"

	"github.com/stella/switchsim/pkg/coreerr"
	"github.com/stella/switchsim/pkg/switchtype"
)

// TTLThreshold is the minimum post-decrement TTL that survives forwarding.
const TTLThreshold = 1

// Ipv4Header is the parsed subset of an IPv4 header the pipeline acts on.
type Ipv4Header struct {
	Version    uint8
	IHL        uint8
	TotalLen   uint16
	Ident      uint16
	FlagsMF    bool
	FlagsDF    bool
	FragOffset uint16
	TTL        uint8
	Protocol   uint8
	Checksum   uint16
	Src        switchtype.Ipv4Addr
	Dst        switchtype.Ipv4Addr
	HeaderLen  int
}

// ParseIpv4Header validates and decodes an IPv4 header from the start of
// data, per §4.7 step 1: version must be 4, IHL in [5,15], total_length
// must not exceed the frame length, and the header checksum must verify.
func ParseIpv4Header(data []byte) (Ipv4Header, error) {
	if len(data) < 20 {
		return Ipv4Header{}, coreerr.New(coreerr.KindHeaderError, "ipv4 header too short")
	}

	versionIhl := data[0]
	version := versionIhl >> 4
	ihl := versionIhl & 0x0F

	if version != 4 {
		return Ipv4Header{}, coreerr.New(coreerr.KindHeaderError, "ipv4 version field is not 4")
	}
	if ihl < 5 || ihl > 15 {
		return Ipv4Header{}, coreerr.New(coreerr.KindHeaderError, "ipv4 ihl out of range [5,15]")
	}

	headerLen := int(ihl) * 4
	if len(data) < headerLen {
		return Ipv4Header{}, coreerr.New(coreerr.KindHeaderError, "ipv4 header shorter than ihl declares")
	}

	totalLen := binary.BigEndian.Uint16(data[2:4])
	if int(totalLen) > len(data) {
		return Ipv4Header{}, coreerr.New(coreerr.KindHeaderError, "ipv4 total_length exceeds frame length")
	}

	if !VerifyChecksum(data[:headerLen]) {
		return Ipv4Header{}, coreerr.New(coreerr.KindChecksumError, "ipv4 header checksum mismatch")
	}

	flagsFrag := binary.BigEndian.Uint16(data[6:8])
	src, err := switchtype.NewIpv4FromBytes(data[12:16])
	if err != nil {
		return Ipv4Header{}, coreerr.Wrap(coreerr.KindHeaderError, "invalid source address", err)
	}
	dst, err := switchtype.NewIpv4FromBytes(data[16:20])
	if err != nil {
		return Ipv4Header{}, coreerr.Wrap(coreerr.KindHeaderError, "invalid destination address", err)
	}

	return Ipv4Header{
		Version:    version,
		IHL:        ihl,
		TotalLen:   totalLen,
		Ident:      binary.BigEndian.Uint16(data[4:6]),
		FlagsDF:    flagsFrag&0x4000 != 0,
		FlagsMF:    flagsFrag&0x2000 != 0,
		FragOffset: (flagsFrag & 0x1FFF) * 8,
		TTL:        data[8],
		Protocol:   data[9],
		Checksum:   binary.BigEndian.Uint16(data[10:12]),
		Src:        src,
		Dst:        dst,
		HeaderLen:  headerLen,
	}, nil
}

// DecrementTTL returns the post-decrement TTL and an error if it falls
// below TTLThreshold, per §4.7 step 5.
func DecrementTTL(ttl uint8) (uint8, error) {
	if ttl == 0 {
		return 0, coreerr.New(coreerr.KindTtlExceeded, "ttl already zero")
	}
	next := ttl - 1
	if next < TTLThreshold {
		return next, coreerr.New(coreerr.KindTtlExceeded, "ttl exceeded after decrement")
	}
	return next, nil
}

// IsLocalDestination reports whether dst matches one of the interface
// addresses the local stack owns.
func IsLocalDestination(dst switchtype.Ipv4Addr, localAddrs []switchtype.Ipv4Addr) bool {
	for _, a := range localAddrs {
		if a == dst {
			return true
		}
	}
	return false
}

// FragmentIpv4 splits payload (the IPv4 payload following the header)
// into egress-MTU-sized chunks on 8-byte boundaries, per §4.7 step 6. It
// returns payload bytes only; the caller builds each fragment's header,
// including the MF flag and fragment offset.
func FragmentIpv4(header Ipv4Header, payload []byte, egressMTU int) ([][]byte, error) {
	maxPayload := (egressMTU - header.HeaderLen) &^ 7
	if maxPayload <= 0 {
		return nil, coreerr.New(coreerr.KindFragmentationNeeded, "egress mtu too small to carry any fragment payload")
	}

	var fragments [][]byte
	offset := 0
	for offset < len(payload) {
		end := offset + maxPayload
		last := end >= len(payload)
		if last {
			end = len(payload)
		}
		fragments = append(fragments, payload[offset:end])
		offset = end
		if last {
			break
		}
	}
	return fragments, nil
}
