package schedules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bililive-go/livesched/src/types"
)

func sc(id, status string) types.Schedule {
	return types.Schedule{ID: types.ScheduleID(id), Title: "title-" + id, Status: types.Status(status)}
}

// TestStore_ZeroValue 零值 Store 可以直接读写
func TestStore_ZeroValue(t *testing.T) {
	var s Store

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, uint64(0), s.Version())
	assert.NotNil(t, s.List())
	assert.Empty(t, s.List())
	_, ok := s.Get("a")
	assert.False(t, ok)

	s.ApplyBroadcast([]types.Schedule{sc("a", "LIVE")})
	assert.Equal(t, 1, s.Len())
}

// TestStore_ApplyBroadcastReplaces 每次广播后内容严格等于最近一次下发的列表
func TestStore_ApplyBroadcastReplaces(t *testing.T) {
	s := NewStore()

	sequence := [][]types.Schedule{
		{sc("a", "PENDING"), sc("b", "LIVE")},
		{sc("b", "STOPPING")},
		{},
		{sc("c", "FAILED"), sc("a", "COMPLETED"), sc("b", "COMPLETED")},
		nil,
	}
	for i, list := range sequence {
		v := s.ApplyBroadcast(list)
		assert.Equal(t, uint64(i+1), v)

		got := s.List()
		require.Len(t, got, len(list))
		for j := range list {
			assert.Equal(t, list[j], got[j], "broadcast %d position %d", i, j)
		}
	}

	// 最后一次是 nil，之前的记录不能残留
	_, ok := s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

// TestStore_KeepsServerOrder 不在本地重新排序
func TestStore_KeepsServerOrder(t *testing.T) {
	s := NewStore()
	s.ApplyBroadcast([]types.Schedule{sc("z", "LIVE"), sc("a", "PENDING"), sc("m", "FAILED")})

	ids := make([]types.ScheduleID, 0, 3)
	for _, x := range s.List() {
		ids = append(ids, x.ID)
	}
	assert.Equal(t, []types.ScheduleID{"z", "a", "m"}, ids)
}

// TestStore_CopiesInput 调用方修改传入或取出的切片都不影响 Store
func TestStore_CopiesInput(t *testing.T) {
	s := NewStore()
	in := []types.Schedule{sc("a", "LIVE")}
	s.ApplyBroadcast(in)

	in[0].Status = types.StatusFailed
	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, types.StatusLive, got.Status)

	out := s.List()
	out[0].Title = "changed"
	got, _ = s.Get("a")
	assert.Equal(t, "title-a", got.Title)
}

func TestStore_GetAndCount(t *testing.T) {
	s := NewStore()
	s.ApplyBroadcast([]types.Schedule{sc("a", "LIVE"), sc("b", "LIVE"), sc("c", "BOGUS")})

	got, ok := s.Get("b")
	require.True(t, ok)
	assert.Equal(t, types.ScheduleID("b"), got.ID)

	counts := s.CountByStatus()
	assert.Equal(t, 2, counts[types.StatusLive])
	assert.Equal(t, 1, counts[types.Status("BOGUS")])
}
