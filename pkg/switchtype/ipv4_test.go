package switchtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIpv4StringRoundTrip(t *testing.T) {
	addr, err := NewIpv4FromString("10.0.0.2")
	assert.NoError(t, err)
	assert.Equal(t, "10.0.0.2", addr.String())
}

func TestIpv4InvalidOctet(t *testing.T) {
	_, err := NewIpv4FromString("10.0.0.256")
	assert.Error(t, err)

	_, err = NewIpv4FromString("10.0.0")
	assert.Error(t, err)
}

func TestIpv4PrefixLenNetmaskRoundTrip(t *testing.T) {
	for prefixLen := 0; prefixLen <= 32; prefixLen++ {
		mask, err := PrefixLenToIpv4Netmask(prefixLen)
		assert.NoError(t, err)

		back, err := Ipv4NetmaskToPrefixLen(mask)
		assert.NoError(t, err)
		assert.Equal(t, prefixLen, back, "round trip must be identity for every prefix length 0..32")
	}
}

func TestIpv4NetmaskNonContiguousRejected(t *testing.T) {
	bogus := Ipv4Addr(0xFF00FF00)
	_, err := Ipv4NetmaskToPrefixLen(bogus)
	assert.Error(t, err, "expected error for a non-contiguous netmask")
}

func TestIpv4Mask(t *testing.T) {
	addr, _ := NewIpv4FromString("192.168.1.100")
	mask, _ := PrefixLenToIpv4Netmask(24)
	masked := addr.Mask(mask)
	assert.Equal(t, "192.168.1.0", masked.String())
}

func TestIpv4IsMulticast(t *testing.T) {
	mcast, _ := NewIpv4FromString("224.0.0.1")
	assert.True(t, mcast.IsMulticast())

	unicast, _ := NewIpv4FromString("10.0.0.1")
	assert.False(t, unicast.IsMulticast())
}
