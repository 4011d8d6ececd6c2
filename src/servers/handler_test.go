package servers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/mock/gomock"

	"github.com/bililive-go/livesched/src/channel"
	"github.com/bililive-go/livesched/src/channel/mock"
	"github.com/bililive-go/livesched/src/consts"
	"github.com/bililive-go/livesched/src/metrics"
	"github.com/bililive-go/livesched/src/notify"
	"github.com/bililive-go/livesched/src/pkg/events"
	"github.com/bililive-go/livesched/src/session"
	"github.com/bililive-go/livesched/src/types"
)

type testEnv struct {
	srv  *Server
	http *httptest.Server
	ch   *mock.MockChannel
	ed   events.Dispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	ctrl := gomock.NewController(t)
	ch := mock.NewMockChannel(ctrl)
	ch.EXPECT().Connected().Return(true).AnyTimes()

	ed := events.NewSyncDispatcher()
	center := notify.NewCenter(ed, 0)
	sess := session.New(context.Background(), session.Deps{
		Channel:    ch,
		Dispatcher: ed,
		Notifier:   center,
	}, session.Options{CreateAckTimeout: time.Second, Location: time.UTC})
	require.NoError(t, sess.Start(context.Background()))

	srv := NewServer(context.Background(), Deps{
		Session:       sess,
		Notifications: center,
		Dispatcher:    ed,
		Metrics:       metrics.NewCollector(nil),
	})
	srv.registerSSEListeners()
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.unregisterSSEListeners()
		srv.hub.Close()
		hs.Close()
		sess.Close(context.Background())
	})
	return &testEnv{srv: srv, http: hs, ch: ch, ed: ed}
}

func (e *testEnv) broadcast(t *testing.T, list ...types.Schedule) {
	raw, err := json.Marshal(list)
	require.NoError(t, err)
	e.ed.DispatchEvent(events.NewEvent(consts.EventBroadcastUpdate, json.RawMessage(raw)))
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, gjson.Result) {
	req, err := http.NewRequest(method, e.http.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf strings.Builder
	_, err = bufio.NewReader(resp.Body).WriteTo(&buf)
	require.NoError(t, err)
	return resp.StatusCode, gjson.Parse(buf.String())
}

func TestGetSchedules(t *testing.T) {
	e := newTestEnv(t)
	e.broadcast(t,
		types.Schedule{ID: "a", Title: "A", Status: types.StatusLive},
		types.Schedule{ID: "b", Title: "B", Status: types.StatusPending},
	)
	code, body := e.do(t, "GET", "/api/schedules", "")
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, body.Array(), 2)
	assert.Equal(t, "a", body.Get("0.id").String())
	assert.True(t, body.Get("0.can_stop").Bool())
	assert.True(t, body.Get("1.can_delete").Bool())

	code, body = e.do(t, "GET", "/api/schedules/b", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "B", body.Get("title").String())

	code, _ = e.do(t, "GET", "/api/schedules/zzz", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStopNeedsConfirm(t *testing.T) {
	e := newTestEnv(t)
	e.broadcast(t, types.Schedule{ID: "a", Title: "A", Status: types.StatusLive})

	code, body := e.do(t, "POST", "/api/schedules/a/stop", "")
	assert.Equal(t, http.StatusPreconditionRequired, code)
	assert.Equal(t, "cancelled", body.Get("data.delivery").String())

	e.ch.EXPECT().Emit(consts.EventStopSchedule, gomock.Any(), gomock.Nil()).Return(nil)
	code, body = e.do(t, "POST", "/api/schedules/a/stop?confirm=true", "")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "pending", body.Get("data.delivery").String())

	code, _ = e.do(t, "POST", "/api/schedules/a/stop?confirm=true", "")
	assert.Equal(t, http.StatusConflict, code)

	_, body = e.do(t, "GET", "/api/status", "")
	assert.Equal(t, "a", body.Get("pending_stops.0.id").String())
}

func TestStopNotAllowed(t *testing.T) {
	e := newTestEnv(t)
	e.broadcast(t, types.Schedule{ID: "a", Title: "A", Status: types.StatusCompleted})
	code, _ := e.do(t, "POST", "/api/schedules/a/stop?confirm=true", "")
	assert.Equal(t, http.StatusConflict, code)
}

func TestCreateSchedule(t *testing.T) {
	e := newTestEnv(t)
	e.ch.EXPECT().Emit(consts.EventCreateSchedule, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ string, _ interface{}, ack channel.AckFunc) error {
			go ack(json.RawMessage(`{"success":false,"error":"bad key"}`))
			return nil
		})

	body := `{"title":"T","videoInput":"https://x/v.mp4","date":"2024-05-01","time":"20:30","streamKey":"k"}`
	code, resp := e.do(t, "POST", "/api/schedules", body)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "bad key", resp.Get("data.result.message").String())
	assert.Equal(t, "T", resp.Get("data.form.title").String())

	code, resp = e.do(t, "POST", "/api/schedules", `{"title":""}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.True(t, resp.Get("data.field_errors.title").Exists())
	assert.True(t, resp.Get("data.field_errors.streamKey").Exists())
	assert.False(t, resp.Get("data.field_errors.date").Exists())

	code, _ = e.do(t, "POST", "/api/schedules", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDeleteAndEmergency(t *testing.T) {
	e := newTestEnv(t)
	e.broadcast(t,
		types.Schedule{ID: "a", Title: "A", Status: types.StatusLive},
		types.Schedule{ID: "b", Title: "B", Status: types.StatusFailed},
	)
	e.ch.EXPECT().Emit(consts.EventDeleteSchedule, gomock.Any(), gomock.Nil()).Return(nil)
	e.ch.EXPECT().Emit(consts.EventEmergencyStopAll, gomock.Nil(), gomock.Nil()).Return(nil)

	code, body := e.do(t, "DELETE", "/api/schedules/b?confirm=true", "")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "requested", body.Get("data.delivery").String())

	code, _ = e.do(t, "DELETE", "/api/schedules/a?confirm=true", "")
	assert.Equal(t, http.StatusConflict, code)

	code, body = e.do(t, "POST", "/api/emergency-stop?confirm=true", "")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "requested", body.Get("data.delivery").String())

	e.broadcast(t, types.Schedule{ID: "a", Title: "A", Status: types.StatusCompleted})
	code, _ = e.do(t, "POST", "/api/emergency-stop?confirm=true", "")
	assert.Equal(t, http.StatusConflict, code)
}

func TestDebugToggle(t *testing.T) {
	e := newTestEnv(t)
	code, body := e.do(t, "GET", "/api/debug", "")
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, body.Get("visible").Bool())

	e.ch.EXPECT().Emit(consts.EventGetProcessStats, gomock.Nil(), gomock.Nil()).Return(channel.ErrNotConnected)
	code, body = e.do(t, "PUT", "/api/debug", `{"visible":true}`)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, body.Get("visible").Bool())

	code, _ = e.do(t, "PUT", "/api/debug", `{"visible":"yes"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	e.ed.DispatchEvent(events.NewEvent(consts.EventProcessStats, json.RawMessage(`{"running_streams_count":3}`)))
	_, body = e.do(t, "GET", "/api/debug", "")
	assert.Equal(t, int64(3), body.Get("snapshot.running_streams_count").Int())
}

func TestNotificationsAndMetrics(t *testing.T) {
	e := newTestEnv(t)
	e.ed.DispatchEvent(events.NewEvent(consts.EventDisconnect, nil))

	code, body := e.do(t, "GET", "/api/notifications?limit=5", "")
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, body.Array(), 1)
	assert.Equal(t, "error", body.Get("0.level").String())

	code, _ = e.do(t, "GET", "/api/notifications?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, code)

	resp, err := http.Get(e.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSSEReceivesSchedules(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", e.http.URL+"/api/sse", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	require.Eventually(t, func() bool { return e.srv.Hub().ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	e.broadcast(t, types.Schedule{ID: "a", Title: "A", Status: types.StatusLive})

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if line == "event: schedules\n" {
			break
		}
	}
	data, err := reader.ReadString('\n')
	require.NoError(t, err)
	msg := gjson.Parse(strings.TrimPrefix(data, "data: "))
	assert.Equal(t, "schedules", msg.Get("type").String())
	assert.Equal(t, "a", msg.Get("data.0.id").String())
}
