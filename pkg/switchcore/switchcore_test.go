package switchcore

import (
	"sync"
	"testing"

	"github.com/stella/switchsim/pkg/config"
	"github.com/stella/switchsim/pkg/packet"
	"github.com/stella/switchsim/pkg/portreg"
	"github.com/stella/switchsim/pkg/switchlog"
	"github.com/stella/switchsim/pkg/switchtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu   sync.Mutex
	tx   map[switchtype.PortId][][]byte
	now  int64
	rx   chan portreg.Delivery
	link chan portreg.LinkEvent
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tx:   make(map[switchtype.PortId][][]byte),
		rx:   make(chan portreg.Delivery, 16),
		link: make(chan portreg.LinkEvent, 16),
	}
}

func (f *fakeBackend) DeclaredPortCount() uint32 { return 4 }

func (f *fakeBackend) Transmit(port switchtype.PortId, buf *packet.Buffer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, buf.Len())
	copy(cp, buf.Bytes())
	f.tx[port] = append(f.tx[port], cp)
	return nil
}

func (f *fakeBackend) Receive() <-chan portreg.Delivery      { return f.rx }
func (f *fakeBackend) LinkEvents() <-chan portreg.LinkEvent  { return f.link }
func (f *fakeBackend) NowMicros() int64                      { return f.now * 1_000_000 }
func (f *fakeBackend) NowSeconds() int64                     { return f.now }

func (f *fakeBackend) transmitCount(port switchtype.PortId) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tx[port])
}

func newTestCore(t *testing.T) (*Core, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	cfg := config.DefaultConfig()
	log := switchlog.New("test", "error")
	core, err := New(cfg, backend, log)
	require.NoError(t, err)
	for id := switchtype.PortId(0); uint32(id) < backend.DeclaredPortCount(); id++ {
		require.NoError(t, core.Registry.SetAdminState(id, true))
		require.NoError(t, core.Registry.SetOperState(id, portreg.OperUp))
	}
	return core, backend
}

func ethFrame(t *testing.T, dst, src switchtype.MacAddr, etherType uint16, payload []byte) *packet.Buffer {
	t.Helper()
	raw := buildEthernetFrame(dst, src, etherType, payload)
	buf, err := packet.Allocate(len(raw))
	require.NoError(t, err)
	require.NoError(t, buf.Append(raw))
	return buf
}

func TestNewCoreConfiguresEveryPortIntoDefaultVlan(t *testing.T) {
	core, _ := newTestCore(t)
	entry, err := core.Vlans.GetVlan(switchtype.DefaultVlan)
	require.NoError(t, err)
	assert.Len(t, entry.MemberPorts, 5) // 4 physical + cpu port
}

func TestStartStopTransitionsState(t *testing.T) {
	core, _ := newTestCore(t)
	assert.Equal(t, StateStopped, core.GetState())

	require.NoError(t, core.Start())
	assert.Equal(t, StateRunning, core.GetState())

	require.NoError(t, core.Stop())
	assert.Equal(t, StateStopped, core.GetState())
}

func TestHandleIngressFloodsUnknownUnicastToOtherForwardingPorts(t *testing.T) {
	core, backend := newTestCore(t)
	core.Stp.SetEnabled(false) // forces every port to Forwarding

	src, err := switchtype.NewMACFromString("00:11:22:33:44:01")
	require.NoError(t, err)
	dst, err := switchtype.NewMACFromString("00:11:22:33:44:99")
	require.NoError(t, err)

	buf := ethFrame(t, dst, src, 0x0800, []byte{1, 2, 3, 4})
	require.NoError(t, core.HandleIngress(0, buf))

	assert.Equal(t, 1, backend.transmitCount(1))
	assert.Equal(t, 1, backend.transmitCount(2))
	assert.Equal(t, 1, backend.transmitCount(3))
	assert.Equal(t, 0, backend.transmitCount(0), "must not flood back out the ingress port")
}

func TestHandleIngressLearnsSourceThenUnicasts(t *testing.T) {
	core, backend := newTestCore(t)
	core.Stp.SetEnabled(false)

	hostA, err := switchtype.NewMACFromString("00:11:22:33:44:01")
	require.NoError(t, err)
	hostB, err := switchtype.NewMACFromString("00:11:22:33:44:02")
	require.NoError(t, err)

	// B -> A arrives on port 1 first; A is unknown, so it floods once to
	// ports 0, 2 and 3, and the table learns B is on port 1.
	learn := ethFrame(t, hostA, hostB, 0x0800, []byte{0xaa})
	require.NoError(t, core.HandleIngress(1, learn))

	// Now A -> B arrives on port 0; the table should know B is on port 1.
	reply := ethFrame(t, hostB, hostA, 0x0800, []byte{0xbb})
	require.NoError(t, core.HandleIngress(0, reply))

	// Ports 2 and 3 carry only the first frame's flood; the reply is unicast.
	assert.Equal(t, 1, backend.transmitCount(1))
	assert.Equal(t, 1, backend.transmitCount(2))
	assert.Equal(t, 1, backend.transmitCount(3))
}

func TestHandleIngressDropsOnBlockedStpPort(t *testing.T) {
	core, backend := newTestCore(t)
	// STP is only enabled by Start, so after New every STP port is still
	// Disabled and ingress is dropped.

	src, err := switchtype.NewMACFromString("00:11:22:33:44:01")
	require.NoError(t, err)
	buf := ethFrame(t, switchtype.BroadcastMAC, src, 0x0800, []byte{1})
	require.NoError(t, core.HandleIngress(0, buf))

	assert.Equal(t, 0, backend.transmitCount(1))
	assert.Equal(t, 0, backend.transmitCount(2))
}

func TestHandleIngressLearnsArpRequesterIntoCache(t *testing.T) {
	core, _ := newTestCore(t)
	core.Stp.SetEnabled(false)

	hostMac, err := switchtype.NewMACFromString("00:11:22:33:44:01")
	require.NoError(t, err)
	hostIP, err := switchtype.NewIpv4FromString("10.0.0.5")
	require.NoError(t, err)

	req := encodeArpPacket(1, hostMac, hostIP, switchtype.MacAddr{}, 0)
	buf := ethFrame(t, switchtype.BroadcastMAC, hostMac, 0x0806, req)

	require.NoError(t, core.HandleIngress(0, buf))

	entry, ok := core.Arps.Get(hostIP)
	require.True(t, ok, "handle_frame should learn the requester regardless of target")
	assert.Equal(t, hostMac, entry.Mac)
}
