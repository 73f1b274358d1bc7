package switchtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIpv6BytesRoundTrip(t *testing.T) {
	addr, err := NewIpv6FromString("2001:db8::1")
	assert.NoError(t, err)

	back, err := NewIpv6FromBytes(addr.Bytes())
	assert.NoError(t, err)
	assert.True(t, addr.Equals(back))
}

func TestIpv6PrefixLenNetmaskRoundTrip(t *testing.T) {
	for _, prefixLen := range []int{0, 1, 7, 8, 9, 64, 127, 128} {
		mask, err := PrefixLenToIpv6Netmask(prefixLen)
		assert.NoError(t, err)

		back, err := Ipv6NetmaskToPrefixLen(mask)
		assert.NoError(t, err)
		assert.Equal(t, prefixLen, back)
	}
}

func TestIpv6Mask(t *testing.T) {
	addr, _ := NewIpv6FromString("2001:db8:1234::1")
	masked := addr.Mask(32)

	expected, _ := NewIpv6FromString("2001:db8::")
	assert.True(t, masked.Equals(expected))
}
