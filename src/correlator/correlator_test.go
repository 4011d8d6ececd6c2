package correlator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/bililive-go/livesched/src/channel"
	"github.com/bililive-go/livesched/src/channel/mock"
	"github.com/bililive-go/livesched/src/consts"
	"github.com/bililive-go/livesched/src/notify"
	"github.com/bililive-go/livesched/src/schedules"
	"github.com/bililive-go/livesched/src/types"
)

func newTestCorrelator(t *testing.T, timeout time.Duration) (*Correlator, *mock.MockChannel, *notify.Center) {
	ctrl := gomock.NewController(t)
	ch := mock.NewMockChannel(ctrl)
	center := notify.NewCenter(nil, 0)
	return New(ch, center, notify.MustNewRenderer(), timeout), ch, center
}

func sched(id, title string, status types.Status) types.Schedule {
	return types.Schedule{ID: types.ScheduleID(id), Title: title, Status: status}
}

func TestBeginStopThenCompleted(t *testing.T) {
	c, ch, center := newTestCorrelator(t, 0)
	ch.EXPECT().Emit(consts.EventStopSchedule, stopRequest{ID: "a"}, gomock.Nil()).Return(nil)

	store := schedules.NewStore()
	store.ApplyBroadcast([]types.Schedule{sched("a", "X", types.StatusLive)})

	h, err := c.BeginStop("a", "X")
	require.NoError(t, err)
	assert.True(t, c.IsPending("a"))
	n, ok := center.Get(h)
	require.True(t, ok)
	assert.Equal(t, notify.LevelLoading, n.Level)

	// 仍在 LIVE，保持挂起
	assert.Empty(t, c.Reconcile(store))
	assert.Equal(t, 1, c.Len())

	store.ApplyBroadcast([]types.Schedule{sched("a", "X", types.StatusCompleted)})
	res := c.Reconcile(store)
	require.Len(t, res, 1)
	assert.Equal(t, OutcomeConfirmed, res[0].Outcome)
	assert.Equal(t, h, res[0].Handle)
	assert.Equal(t, 0, c.Len())

	n, _ = center.Get(h)
	assert.Equal(t, notify.LevelSuccess, n.Level)
	assert.Contains(t, n.Message, "X")

	// 只结算一次
	assert.Empty(t, c.Reconcile(store))
}

func TestReconcileFailed(t *testing.T) {
	c, ch, center := newTestCorrelator(t, 0)
	ch.EXPECT().Emit(consts.EventStopSchedule, gomock.Any(), gomock.Nil()).Return(nil)

	h, err := c.BeginStop("b", "Y")
	require.NoError(t, err)
	res := c.ReconcileList([]types.Schedule{sched("b", "Y", types.StatusFailed)})
	require.Len(t, res, 1)
	assert.Equal(t, OutcomeFailed, res[0].Outcome)
	n, _ := center.Get(h)
	assert.Equal(t, notify.LevelError, n.Level)
	assert.Equal(t, 0, c.Len())
}

func TestPendingStaysWhenScheduleVanishes(t *testing.T) {
	c, ch, _ := newTestCorrelator(t, 0)
	ch.EXPECT().Emit(consts.EventStopSchedule, gomock.Any(), gomock.Nil()).Return(nil)

	_, err := c.BeginStop("a", "X")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		assert.Empty(t, c.ReconcileList(nil))
		assert.Empty(t, c.ReconcileList([]types.Schedule{sched("other", "Z", types.StatusCompleted)}))
	}
	// 未配置超时时 Sweep 不处理
	assert.Empty(t, c.Sweep(time.Now().Add(24*time.Hour)))
	assert.True(t, c.IsPending("a"))
}

func TestBeginStopDuplicate(t *testing.T) {
	c, ch, _ := newTestCorrelator(t, 0)
	ch.EXPECT().Emit(consts.EventStopSchedule, gomock.Any(), gomock.Nil()).Return(nil).Times(1)

	h1, err := c.BeginStop("a", "X")
	require.NoError(t, err)
	h2, err := c.BeginStop("a", "X")
	assert.ErrorIs(t, err, ErrStopPending)
	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, c.Len())
}

func TestBeginStopEmitFailure(t *testing.T) {
	c, ch, center := newTestCorrelator(t, 0)
	ch.EXPECT().Emit(consts.EventStopSchedule, gomock.Any(), gomock.Nil()).Return(channel.ErrNotConnected)

	h, err := c.BeginStop("a", "X")
	assert.True(t, errors.Is(err, channel.ErrNotConnected))
	assert.False(t, c.IsPending("a"))
	n, ok := center.Get(h)
	require.True(t, ok)
	assert.Equal(t, notify.LevelError, n.Level)
}

func TestSweepTimeout(t *testing.T) {
	c, ch, center := newTestCorrelator(t, time.Minute)
	ch.EXPECT().Emit(consts.EventStopSchedule, gomock.Any(), gomock.Nil()).Return(nil).Times(2)

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return start }
	h, _ := c.BeginStop("a", "X")
	c.now = func() time.Time { return start.Add(30 * time.Second) }
	_, _ = c.BeginStop("b", "Y")

	assert.Empty(t, c.Sweep(start.Add(59*time.Second)))
	res := c.Sweep(start.Add(61 * time.Second))
	require.Len(t, res, 1)
	assert.Equal(t, types.ScheduleID("a"), res[0].ScheduleID)
	assert.Equal(t, OutcomeTimedOut, res[0].Outcome)
	n, _ := center.Get(h)
	assert.Equal(t, notify.LevelError, n.Level)
	assert.Contains(t, n.Message, "1m1s")
	assert.Equal(t, []types.ScheduleID{"b"}, ids(c.Pending()))
}

func TestAbandon(t *testing.T) {
	c, ch, center := newTestCorrelator(t, 0)
	ch.EXPECT().Emit(consts.EventStopSchedule, gomock.Any(), gomock.Nil()).Return(nil)

	h, _ := c.BeginStop("a", "X")
	res, ok := c.Abandon("a")
	require.True(t, ok)
	assert.Equal(t, OutcomeAbandoned, res.Outcome)
	n, _ := center.Get(h)
	assert.Equal(t, notify.LevelError, n.Level)

	_, ok = c.Abandon("a")
	assert.False(t, ok)
}

func TestPendingOrder(t *testing.T) {
	c, ch, _ := newTestCorrelator(t, 0)
	ch.EXPECT().Emit(consts.EventStopSchedule, gomock.Any(), gomock.Nil()).Return(nil).Times(3)

	base := time.Now()
	for i, id := range []types.ScheduleID{"c", "a", "b"} {
		at := base.Add(time.Duration(i) * time.Second)
		c.now = func() time.Time { return at }
		_, err := c.BeginStop(id, string(id))
		require.NoError(t, err)
	}
	assert.Equal(t, []types.ScheduleID{"c", "a", "b"}, ids(c.Pending()))
}

func ids(list []PendingStop) []types.ScheduleID {
	out := make([]types.ScheduleID, 0, len(list))
	for _, p := range list {
		out = append(out, p.ScheduleID)
	}
	return out
}
