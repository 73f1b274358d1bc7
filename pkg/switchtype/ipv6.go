package switchtype

import (
	"errors"
	"net"
)

// Ipv6Length is the byte length of an IPv6 address.
const Ipv6Length = 16

// Ipv6Addr is a 128-bit IPv6 address.
type Ipv6Addr struct {
	bytes [Ipv6Length]byte
}

// NewIpv6FromString parses a textual IPv6 address.
func NewIpv6FromString(s string) (Ipv6Addr, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return Ipv6Addr{}, errors.New("invalid IPv6 address")
	}
	ip16 := ip.To16()
	if ip16 == nil {
		return Ipv6Addr{}, errors.New("invalid IPv6 address")
	}
	var addr Ipv6Addr
	copy(addr.bytes[:], ip16)
	return addr, nil
}

// NewIpv6FromBytes builds an Ipv6Addr from a 16-byte slice.
func NewIpv6FromBytes(b []byte) (Ipv6Addr, error) {
	if len(b) != Ipv6Length {
		return Ipv6Addr{}, errors.New("invalid IPv6 address length")
	}
	var addr Ipv6Addr
	copy(addr.bytes[:], b)
	return addr, nil
}

// Bytes returns a defensive copy of the address bytes.
func (a Ipv6Addr) Bytes() []byte {
	b := make([]byte, Ipv6Length)
	copy(b, a.bytes[:])
	return b
}

func (a Ipv6Addr) String() string {
	return net.IP(a.bytes[:]).String()
}

// Mask applies a prefix length, zeroing bits beyond it.
func (a Ipv6Addr) Mask(prefixLen int) Ipv6Addr {
	var out Ipv6Addr
	full := prefixLen / 8
	rem := prefixLen % 8
	copy(out.bytes[:full], a.bytes[:full])
	if rem > 0 && full < Ipv6Length {
		out.bytes[full] = a.bytes[full] & (0xFF << (8 - rem))
	}
	return out
}

// Equals reports whether a and other are the same address.
func (a Ipv6Addr) Equals(other Ipv6Addr) bool {
	return a.bytes == other.bytes
}

// Ipv6Prefix is a CIDR-style IPv6 prefix used as a routing-table key.
type Ipv6Prefix struct {
	Addr   Ipv6Addr
	Length int
}

// PrefixLenToIpv6Netmask converts a prefix length (0..128) to a netmask.
func PrefixLenToIpv6Netmask(prefixLen int) (Ipv6Addr, error) {
	if prefixLen < 0 || prefixLen > 128 {
		return Ipv6Addr{}, errors.New("invalid IPv6 prefix length")
	}
	var mask Ipv6Addr
	full := prefixLen / 8
	rem := prefixLen % 8
	for i := 0; i < full; i++ {
		mask.bytes[i] = 0xFF
	}
	if rem > 0 && full < Ipv6Length {
		mask.bytes[full] = 0xFF << (8 - rem)
	}
	return mask, nil
}

// Ipv6NetmaskToPrefixLen is the inverse of PrefixLenToIpv6Netmask.
func Ipv6NetmaskToPrefixLen(mask Ipv6Addr) (int, error) {
	count := 0
	seenZero := false
	for _, b := range mask.bytes {
		for bit := 7; bit >= 0; bit-- {
			set := b&(1<<uint(bit)) != 0
			if set {
				if seenZero {
					return 0, errors.New("netmask is not a contiguous prefix")
				}
				count++
			} else {
				seenZero = true
			}
		}
	}
	return count, nil
}
