package mactable

import (
	"testing"

	"github.com/stella/switchsim/pkg/switchtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mac(s string) switchtype.MacAddr {
	m, err := switchtype.NewMACFromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

func TestLearnThenLookup(t *testing.T) {
	tbl := New(16, 300)
	require.NoError(t, tbl.Learn(mac("00:11:22:33:44:01"), 1, 3, 1000))

	port, ok := tbl.Lookup(mac("00:11:22:33:44:01"), 1)
	require.True(t, ok)
	assert.Equal(t, switchtype.PortId(3), port)
}

func TestStaticOverridesDynamicNotViceVersa(t *testing.T) {
	tbl := New(16, 300)
	m := mac("00:11:22:33:44:02")

	require.NoError(t, tbl.Add(m, 1, 5, Static, 1000))
	require.NoError(t, tbl.Learn(m, 1, 9, 1001))

	port, ok := tbl.Lookup(m, 1)
	require.True(t, ok)
	assert.Equal(t, switchtype.PortId(5), port, "dynamic learn must not override a static entry")
}

func TestMoveEventFires(t *testing.T) {
	tbl := New(16, 300)
	m := mac("00:11:22:33:44:03")

	var movedFrom switchtype.PortId
	moved := false
	tbl.SetEventCallback(func(e Entry, oldPort switchtype.PortId) {
		moved = true
		movedFrom = oldPort
	})

	require.NoError(t, tbl.Learn(m, 1, 1, 1000))
	require.NoError(t, tbl.Learn(m, 1, 2, 1001))

	assert.True(t, moved)
	assert.Equal(t, switchtype.PortId(1), movedFrom)
	assert.Equal(t, uint64(1), tbl.MoveCount())
}

func TestTableFullEvictsLRUDynamic(t *testing.T) {
	tbl := New(2, 300)
	require.NoError(t, tbl.Learn(mac("00:00:00:00:00:01"), 1, 1, 1000))
	require.NoError(t, tbl.Learn(mac("00:00:00:00:00:02"), 1, 2, 1001))
	require.NoError(t, tbl.Learn(mac("00:00:00:00:00:03"), 1, 3, 1002))

	_, ok := tbl.Lookup(mac("00:00:00:00:00:01"), 1)
	assert.False(t, ok, "oldest dynamic entry should have been evicted")

	_, ok = tbl.Lookup(mac("00:00:00:00:00:03"), 1)
	assert.True(t, ok)
}

func TestTableFullAllStaticFails(t *testing.T) {
	tbl := New(1, 300)
	require.NoError(t, tbl.Add(mac("00:00:00:00:00:01"), 1, 1, Static, 1000))

	err := tbl.Add(mac("00:00:00:00:00:02"), 1, 2, Static, 1001)
	assert.Error(t, err)
}

func TestProcessAgingEvictsExpiredDynamic(t *testing.T) {
	tbl := New(16, 100)
	require.NoError(t, tbl.Learn(mac("00:00:00:00:00:01"), 1, 1, 1000))

	removed := tbl.ProcessAging(1000 + 50)
	assert.Equal(t, 0, removed)

	removed = tbl.ProcessAging(1000 + 200)
	assert.Equal(t, 1, removed)

	_, ok := tbl.Lookup(mac("00:00:00:00:00:01"), 1)
	assert.False(t, ok)
}

func TestProcessAgingDisabledWithZeroTimeout(t *testing.T) {
	tbl := New(16, 0)
	require.NoError(t, tbl.Learn(mac("00:00:00:00:00:01"), 1, 1, 1000))

	removed := tbl.ProcessAging(1000 + 1_000_000)
	assert.Equal(t, 0, removed)
}

func TestFlushByVlanAndPort(t *testing.T) {
	tbl := New(16, 300)
	require.NoError(t, tbl.Learn(mac("00:00:00:00:00:01"), 1, 1, 1000))
	require.NoError(t, tbl.Learn(mac("00:00:00:00:00:02"), 2, 1, 1000))
	require.NoError(t, tbl.Add(mac("00:00:00:00:00:03"), 1, 1, Static, 1000))

	vlan1 := switchtype.VlanId(1)
	removed := tbl.Flush(&vlan1, nil, false)
	assert.Equal(t, 1, removed, "only the dynamic vlan-1 entry should be flushed")

	_, ok := tbl.Lookup(mac("00:00:00:00:00:03"), 1)
	assert.True(t, ok, "static entry survives a non-static flush")
}

func TestPortLearningSuppression(t *testing.T) {
	tbl := New(16, 300)
	tbl.SetPortLearning(7, false)

	require.NoError(t, tbl.Learn(mac("00:00:00:00:00:09"), 1, 7, 1000))
	_, ok := tbl.Lookup(mac("00:00:00:00:00:09"), 1)
	assert.False(t, ok, "learning is suppressed on port 7")
}

func TestStats(t *testing.T) {
	tbl := New(16, 300)
	require.NoError(t, tbl.Learn(mac("00:00:00:00:00:01"), 1, 1, 1000))
	require.NoError(t, tbl.Add(mac("00:00:00:00:00:02"), 1, 1, Static, 1000))

	stats := tbl.Stats()
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 1, stats.DynamicEntries)
	assert.Equal(t, 1, stats.StaticEntries)
	assert.Equal(t, 16, stats.TableSize)
}

func TestIterateStopsEarly(t *testing.T) {
	tbl := New(16, 300)
	require.NoError(t, tbl.Learn(mac("00:00:00:00:00:01"), 1, 1, 1000))
	require.NoError(t, tbl.Learn(mac("00:00:00:00:00:02"), 1, 2, 1000))

	count := 0
	tbl.Iterate(func(e Entry) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}
