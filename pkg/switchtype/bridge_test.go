package switchtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBridgeIdOrdering(t *testing.T) {
	macLow, _ := NewMACFromString("00:00:00:00:00:01")
	macHigh, _ := NewMACFromString("00:00:00:00:00:02")

	a := BridgeId{Priority: 4096, Mac: macLow}
	b := BridgeId{Priority: 4096, Mac: macHigh}
	c := BridgeId{Priority: 8192, Mac: macLow}

	assert.True(t, a.Less(b), "lower MAC should sort first at equal priority")
	assert.True(t, a.Less(c), "lower priority should sort first regardless of MAC")
	assert.False(t, c.Less(a))
}
