package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bililive-go/livesched/src/pkg/events"
)

func newTestCenter(limit int) (*Center, *[]Notification) {
	ed := events.NewSyncDispatcher()
	got := &[]Notification{}
	ed.AddEventListener(NotificationUpdated, events.NewEventListener(func(e *events.Event) {
		*got = append(*got, e.Object.(Notification))
	}))
	c := NewCenter(ed, limit)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return c, got
}

func TestCenter_LoadingThenSuccess(t *testing.T) {
	c, got := newTestCenter(0)

	h := c.Loading("working")
	require.NotEmpty(t, h)
	n, ok := c.Get(h)
	require.True(t, ok)
	assert.Equal(t, LevelLoading, n.Level)

	assert.Equal(t, h, c.Success(h, "done"))
	n, _ = c.Get(h)
	assert.Equal(t, LevelSuccess, n.Level)
	assert.Equal(t, "done", n.Message)
	assert.True(t, n.UpdatedAt.After(n.CreatedAt))

	require.Len(t, *got, 2)
	assert.Equal(t, LevelLoading, (*got)[0].Level)
	assert.Equal(t, LevelSuccess, (*got)[1].Level)
	assert.Equal(t, h, (*got)[1].Handle)
}

func TestCenter_ErrorWithoutHandle(t *testing.T) {
	c, _ := newTestCenter(0)

	h := c.Error("", "boom")
	n, ok := c.Get(h)
	require.True(t, ok)
	assert.Equal(t, LevelError, n.Level)
	assert.Equal(t, ErrorDuration, n.Duration)
}

func TestCenter_Evicts(t *testing.T) {
	c, _ := newTestCenter(2)

	first := c.Loading("1")
	c.Loading("2")
	c.Loading("3")

	_, ok := c.Get(first)
	assert.False(t, ok, "oldest notification should be evicted")
	assert.Len(t, c.Recent(0), 2)
}

func TestCenter_Recent(t *testing.T) {
	c, _ := newTestCenter(0)

	a := c.Loading("a")
	b := c.Loading("b")
	c.Success(a, "a done")

	recent := c.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, a, recent[0].Handle)
	assert.Equal(t, b, recent[1].Handle)
	assert.Len(t, c.Recent(1), 1)
}
