package arpcache

import (
	"testing"

	"github.com/stella/switchsim/pkg/mactable"
	"github.com/stella/switchsim/pkg/switchtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	senderIP  switchtype.Ipv4Addr
	senderMac switchtype.MacAddr
	sent      []switchtype.Ipv4Addr
	fail      bool
}

func (f *fakeSender) SenderAddr(port switchtype.PortId) (switchtype.Ipv4Addr, switchtype.MacAddr, error) {
	return f.senderIP, f.senderMac, nil
}

func (f *fakeSender) SendArpRequest(port switchtype.PortId, senderIP switchtype.Ipv4Addr, senderMac switchtype.MacAddr, targetIP switchtype.Ipv4Addr) error {
	f.sent = append(f.sent, targetIP)
	return nil
}

func ip(t *testing.T, s string) switchtype.Ipv4Addr {
	t.Helper()
	a, err := switchtype.NewIpv4FromString(s)
	require.NoError(t, err)
	return a
}

func mac(t *testing.T, s string) switchtype.MacAddr {
	t.Helper()
	m, err := switchtype.NewMACFromString(s)
	require.NoError(t, err)
	return m
}

func TestLookupAbsentInsertsIncompleteAndSendsRequest(t *testing.T) {
	sender := &fakeSender{senderIP: ip(t, "10.0.0.1"), senderMac: mac(t, "00:00:00:00:00:01")}
	c := New(sender, nil, switchtype.DefaultVlan)

	_, _, result, err := c.Lookup(ip(t, "10.0.0.2"), 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, LookupPending, result)
	assert.Len(t, sender.sent, 1)

	entry, ok := c.Get(ip(t, "10.0.0.2"))
	require.True(t, ok)
	assert.Equal(t, StateIncomplete, entry.State)
}

func TestLookupReachableReturnsOk(t *testing.T) {
	c := New(nil, nil, switchtype.DefaultVlan)
	target := ip(t, "10.0.0.2")
	require.NoError(t, c.AddOrUpdate(target, mac(t, "00:00:00:00:00:02"), 3, 1000))

	gotMac, gotPort, result, err := c.Lookup(target, 1, 1001)
	require.NoError(t, err)
	assert.Equal(t, LookupOk, result)
	assert.Equal(t, switchtype.PortId(3), gotPort)
	assert.Equal(t, mac(t, "00:00:00:00:00:02"), gotMac)
}

func TestLookupFailedReturnsNotFound(t *testing.T) {
	c := New(nil, nil, switchtype.DefaultVlan)
	target := ip(t, "10.0.0.5")
	_, _, _, err := c.Lookup(target, 1, 0)
	require.NoError(t, err)

	// RequestRetryCount resends, then one more due check marks it Failed.
	for i := 0; i < RequestRetryCount+1; i++ {
		c.ProcessRetries(int64(i+1) * 2)
	}
	entry, _ := c.Get(target)
	assert.Equal(t, StateFailed, entry.State)

	_, _, result, err := c.Lookup(target, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, LookupNotFound, result)
}

func TestAddOrUpdateLearnsIntoMacTable(t *testing.T) {
	macs := mactable.New(1024, 300)
	c := New(nil, macs, switchtype.VlanId(1))

	m := mac(t, "aa:bb:cc:dd:ee:ff")
	require.NoError(t, c.AddOrUpdate(ip(t, "10.0.0.9"), m, 4, 500))

	port, ok := macs.Lookup(m, switchtype.VlanId(1))
	require.True(t, ok)
	assert.Equal(t, switchtype.PortId(4), port)
}

func TestHandleFrameRequestForLocalIPSignalsReply(t *testing.T) {
	c := New(nil, nil, switchtype.DefaultVlan)
	locals := []switchtype.Ipv4Addr{ip(t, "10.0.0.1")}

	frame := Frame{
		Operation: 1,
		SenderMac: mac(t, "00:11:22:33:44:55"),
		SenderIP:  ip(t, "10.0.0.2"),
		TargetIP:  ip(t, "10.0.0.1"),
	}
	shouldReply, err := c.HandleFrame(frame, 2, locals, 10)
	require.NoError(t, err)
	assert.True(t, shouldReply)

	entry, ok := c.Get(ip(t, "10.0.0.2"))
	require.True(t, ok)
	assert.Equal(t, StateReachable, entry.State, "handle_frame learns the sender regardless of operation")
}

func TestHandleFrameReplyDoesNotSignalReply(t *testing.T) {
	c := New(nil, nil, switchtype.DefaultVlan)
	frame := Frame{
		Operation: 2,
		SenderMac: mac(t, "00:11:22:33:44:66"),
		SenderIP:  ip(t, "10.0.0.3"),
	}
	shouldReply, err := c.HandleFrame(frame, 1, nil, 10)
	require.NoError(t, err)
	assert.False(t, shouldReply)
}

func TestAgeEntriesEvictsStaleReachable(t *testing.T) {
	c := New(nil, nil, switchtype.DefaultVlan)
	target := ip(t, "10.0.0.7")
	require.NoError(t, c.AddOrUpdate(target, mac(t, "00:00:00:00:00:07"), 1, 0))

	aged := c.AgeEntries(CacheTimeoutSeconds - 1)
	assert.Equal(t, 0, aged)
	assert.Equal(t, 1, c.Count())

	aged = c.AgeEntries(CacheTimeoutSeconds + 1)
	assert.Equal(t, 1, aged)
	assert.Equal(t, 0, c.Count())
}

func TestCacheEvictsLruWhenFull(t *testing.T) {
	c := New(nil, nil, switchtype.DefaultVlan)
	c.maxSize = 2

	require.NoError(t, c.AddOrUpdate(ip(t, "10.0.0.1"), mac(t, "00:00:00:00:00:01"), 1, 100))
	require.NoError(t, c.AddOrUpdate(ip(t, "10.0.0.2"), mac(t, "00:00:00:00:00:02"), 1, 200))

	_, _, _, err := c.Lookup(ip(t, "10.0.0.3"), 1, 300)
	require.NoError(t, err)

	_, ok := c.Get(ip(t, "10.0.0.1"))
	assert.False(t, ok, "oldest entry should have been recycled")
	assert.Equal(t, 2, c.Count())
}

func TestStatsTallyActivity(t *testing.T) {
	sender := &fakeSender{senderIP: ip(t, "10.0.0.1"), senderMac: mac(t, "00:00:00:00:00:01")}
	c := New(sender, nil, switchtype.DefaultVlan)

	_, _, _, err := c.Lookup(ip(t, "10.0.0.8"), 1, 0)
	require.NoError(t, err)
	require.NoError(t, c.AddOrUpdate(ip(t, "10.0.0.8"), mac(t, "00:00:00:00:00:08"), 1, 1))

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.RequestsSent)
	assert.Equal(t, uint64(1), stats.RepliesReceived)
	assert.Equal(t, uint64(1), stats.Resolved)
}
