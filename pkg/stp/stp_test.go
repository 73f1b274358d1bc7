package stp

import (
	"testing"

	"github.com/stella/switchsim/pkg/switchtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBridgeID(priority uint16, macStr string) switchtype.BridgeId {
	m, err := switchtype.NewMACFromString(macStr)
	if err != nil {
		panic(err)
	}
	return switchtype.BridgeId{Priority: priority, Mac: m}
}

func TestNewBridgeDefaults(t *testing.T) {
	id := testBridgeID(DefaultBridgePriority, "00:00:00:00:00:01")
	b := New(id)
	assert.Equal(t, uint32(DefaultMaxAge), b.MaxAge)
	assert.Equal(t, uint32(DefaultHelloTime), b.HelloTime)
	assert.Equal(t, uint32(DefaultForwardDelay), b.ForwardDelay)
	assert.False(t, b.Enabled)
}

func TestEnableSetsPortsToBlocking(t *testing.T) {
	id := testBridgeID(DefaultBridgePriority, "00:00:00:00:00:01")
	b := New(id)
	b.AddPort(1, DefaultPathCost)

	b.SetEnabled(true)
	p, err := b.GetPort(1)
	require.NoError(t, err)
	assert.Equal(t, StateBlocking, p.State)
}

func TestDisableForcesForwarding(t *testing.T) {
	id := testBridgeID(DefaultBridgePriority, "00:00:00:00:00:01")
	b := New(id)
	b.AddPort(1, DefaultPathCost)
	b.SetEnabled(true)

	b.SetEnabled(false)
	p, err := b.GetPort(1)
	require.NoError(t, err)
	assert.Equal(t, StateForwarding, p.State, "disabling stp forces all ports to forwarding per the preserved original behavior")
}

func TestAdminDownDisablesPort(t *testing.T) {
	id := testBridgeID(DefaultBridgePriority, "00:00:00:00:00:01")
	b := New(id)
	b.AddPort(1, DefaultPathCost)
	b.SetEnabled(true)

	require.NoError(t, b.HandlePortEvent(1, EventAdminDown))
	p, err := b.GetPort(1)
	require.NoError(t, err)
	assert.Equal(t, StateDisabled, p.State)
}

func TestEncodeDecodeConfigBPDURoundTrip(t *testing.T) {
	srcMac, _ := switchtype.NewMACFromString("00:11:22:33:44:55")
	root := testBridgeID(4096, "00:00:00:00:00:01")
	bridge := testBridgeID(8192, "00:11:22:33:44:55")

	cfg := Config{
		Flags:        0,
		RootID:       root,
		RootPathCost: 19,
		BridgeID:     bridge,
		PortPriority: 128,
		PortIndex:    3,
		MessageAge:   0,
		MaxAge:       DefaultMaxAge * 256,
		HelloTime:    DefaultHelloTime * 256,
		ForwardDelay: DefaultForwardDelay * 256,
	}

	wire := EncodeConfigBPDU(srcMac, cfg)
	assert.Len(t, wire, 52)
	assert.Equal(t, BridgeGroupAddress.Bytes(), wire[0:6])

	bpduType, decoded, err := DecodeBPDU(wire)
	require.NoError(t, err)
	assert.Equal(t, BpduConfig, bpduType)
	require.NotNil(t, decoded)
	assert.True(t, decoded.RootID.Mac.Equals(root.Mac))
	assert.Equal(t, cfg.RootPathCost, decoded.RootPathCost)
	assert.Equal(t, cfg.PortIndex, decoded.PortIndex)
	assert.Equal(t, cfg.ForwardDelay, decoded.ForwardDelay)
}

func TestEncodeTcnBPDU(t *testing.T) {
	srcMac, _ := switchtype.NewMACFromString("00:11:22:33:44:55")
	wire := EncodeTcnBPDU(srcMac)
	assert.Len(t, wire, 21)

	bpduType, cfg, err := DecodeBPDU(wire)
	require.NoError(t, err)
	assert.Equal(t, BpduTcn, bpduType)
	assert.Nil(t, cfg)
}

func TestReceiveSuperiorBPDUElectsNewRoot(t *testing.T) {
	localID := testBridgeID(32768, "00:00:00:00:00:02")
	b := New(localID)
	b.AddPort(1, DefaultPathCost)
	b.SetEnabled(true)

	superiorRoot := testBridgeID(4096, "00:00:00:00:00:01")
	cfg := Config{
		RootID:       superiorRoot,
		RootPathCost: 0,
		BridgeID:     superiorRoot,
		PortIndex:    1,
		MaxAge:       DefaultMaxAge * 256,
		HelloTime:    DefaultHelloTime * 256,
		ForwardDelay: DefaultForwardDelay * 256,
	}

	require.NoError(t, b.ReceiveConfigBPDU(1, cfg))

	assert.True(t, b.RootID.Mac.Equals(superiorRoot.Mac))
	assert.True(t, b.HasRootPort)
	assert.Equal(t, switchtype.PortId(1), b.RootPort)

	p, _ := b.GetPort(1)
	assert.Equal(t, StateListening, p.State)
}

func TestUpdateAdvancesListeningToForwarding(t *testing.T) {
	id := testBridgeID(DefaultBridgePriority, "00:00:00:00:00:01")
	b := New(id)
	b.AddPort(1, DefaultPathCost)
	b.SetEnabled(true)

	superiorRoot := testBridgeID(4096, "00:00:00:00:00:01")
	cfg := Config{RootID: superiorRoot, BridgeID: superiorRoot, PortIndex: 1}
	_ = b.ReceiveConfigBPDU(1, cfg)

	b.Update(DefaultForwardDelay)
	p, _ := b.GetPort(1)
	assert.Equal(t, StateLearning, p.State)

	b.Update(DefaultForwardDelay)
	p, _ = b.GetPort(1)
	assert.Equal(t, StateForwarding, p.State)
}

func TestVlanStateDefaultsToPortState(t *testing.T) {
	id := testBridgeID(DefaultBridgePriority, "00:00:00:00:00:01")
	b := New(id)
	b.AddPort(1, DefaultPathCost)
	b.SetEnabled(true)

	state, err := b.VlanStateOf(1, 10, true)
	require.NoError(t, err)
	assert.Equal(t, StateBlocking, state)

	state, err = b.VlanStateOf(1, 10, false)
	require.NoError(t, err)
	assert.Equal(t, StateForwarding, state, "vlan with stp disabled always forwards")
}
