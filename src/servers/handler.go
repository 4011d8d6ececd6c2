package servers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/tidwall/gjson"

	"github.com/bililive-go/livesched/src/channel"
	"github.com/bililive-go/livesched/src/correlator"
	"github.com/bililive-go/livesched/src/form"
	applog "github.com/bililive-go/livesched/src/log"
	"github.com/bililive-go/livesched/src/session"
	"github.com/bililive-go/livesched/src/types"
)

type commonResp struct {
	ErrNo  int         `json:"err_no"`
	ErrMsg string      `json:"err_msg"`
	Data   interface{} `json:"data"`
}

func writeJSON(writer http.ResponseWriter, obj interface{}) {
	writeJsonWithStatusCode(writer, http.StatusOK, obj)
}

func writeJsonWithStatusCode(writer http.ResponseWriter, statusCode int, obj interface{}) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(statusCode)
	if err := json.NewEncoder(writer).Encode(obj); err != nil {
		applog.GetLogger().WithError(err).Error("failed to write json response")
	}
}

func writeError(writer http.ResponseWriter, statusCode int, err error, data interface{}) {
	writeJsonWithStatusCode(writer, statusCode, commonResp{
		ErrNo:  statusCode,
		ErrMsg: err.Error(),
		Data:   data,
	})
}

// statusCodeFor 把会话错误映射为 HTTP 状态码
func statusCodeFor(err error) int {
	switch {
	case errors.Is(err, form.ErrInvalidForm):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrScheduleNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrActionNotAllowed),
		errors.Is(err, session.ErrNoActiveStreams),
		errors.Is(err, session.ErrCreateInFlight),
		errors.Is(err, correlator.ErrStopPending):
		return http.StatusConflict
	case errors.Is(err, session.ErrCreateRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, channel.ErrNotConnected), errors.Is(err, channel.ErrSendBufferFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrNoResponse), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeActionResult 输出操作结果。请求已发出但只有乐观保证或等待确认时返回 202
func writeActionResult(writer http.ResponseWriter, res types.ActionResult, err error) {
	if err != nil {
		writeError(writer, statusCodeFor(err), err, res)
		return
	}
	switch res.Delivery {
	case types.DeliveryCancelled:
		writeJsonWithStatusCode(writer, http.StatusPreconditionRequired, commonResp{
			ErrNo:  http.StatusPreconditionRequired,
			ErrMsg: "confirmation required, retry with confirm=true",
			Data:   res,
		})
	case types.DeliveryPending, types.DeliveryRequested:
		writeJsonWithStatusCode(writer, http.StatusAccepted, commonResp{Data: res})
	default:
		writeJSON(writer, commonResp{Data: res})
	}
}

// actionContext 请求上下文，带 confirm=true 时视为已确认
func actionContext(r *http.Request) context.Context {
	if confirmed(r) {
		return session.WithConfirmation(r.Context())
	}
	return r.Context()
}

func (s *Server) getSchedules(writer http.ResponseWriter, r *http.Request) {
	writeJSON(writer, s.deps.Session.Views())
}

func (s *Server) getSchedule(writer http.ResponseWriter, r *http.Request) {
	id := types.ScheduleID(mux.Vars(r)["id"])
	for _, v := range s.deps.Session.Views() {
		if v.ID == id {
			writeJSON(writer, v)
			return
		}
	}
	writeError(writer, http.StatusNotFound, session.ErrScheduleNotFound, nil)
}

type createResp struct {
	Result      types.ActionResult `json:"result"`
	Form        *form.CreateForm   `json:"form"`
	FieldErrors form.FieldErrors   `json:"field_errors,omitempty"`
}

/*
	Post data example

	{
		"title": "Morning show",
		"videoInput": "https://example.com/video.mp4",
		"date": "2024-05-01",
		"time": "20:30",
		"streamKey": "xxxx-xxxx",
		"durationType": "custom",
		"duration": 90
	}

rtmpServer / durationType / date / time 缺省时使用表单默认值
*/
func (s *Server) createSchedule(writer http.ResponseWriter, r *http.Request) {
	opts := s.deps.Session.Options()
	f := form.NewCreateForm(time.Now().In(opts.Location), opts.DefaultRTMPServer)
	b, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(writer, http.StatusBadRequest, err, nil)
		return
	}
	if err := json.Unmarshal(b, f); err != nil {
		writeError(writer, http.StatusBadRequest, err, nil)
		return
	}

	res, err := s.deps.Session.CreateSchedule(r.Context(), f)
	resp := createResp{Result: res, Form: f}
	if err != nil {
		if errors.Is(err, form.ErrInvalidForm) {
			resp.FieldErrors = f.Validate()
		}
		writeError(writer, statusCodeFor(err), err, resp)
		return
	}
	writeJsonWithStatusCode(writer, http.StatusCreated, commonResp{Data: resp})
}

func (s *Server) stopSchedule(writer http.ResponseWriter, r *http.Request) {
	id := types.ScheduleID(mux.Vars(r)["id"])
	res, err := s.deps.Session.StopSchedule(actionContext(r), id)
	writeActionResult(writer, res, err)
}

func (s *Server) deleteSchedule(writer http.ResponseWriter, r *http.Request) {
	id := types.ScheduleID(mux.Vars(r)["id"])
	res, err := s.deps.Session.DeleteSchedule(actionContext(r), id)
	writeActionResult(writer, res, err)
}

func (s *Server) emergencyStop(writer http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Session.EmergencyStopAll(actionContext(r))
	writeActionResult(writer, res, err)
}

type debugResp struct {
	Visible  bool        `json:"visible"`
	Snapshot interface{} `json:"snapshot"`
}

func (s *Server) debugState() debugResp {
	resp := debugResp{Visible: s.deps.Session.DebugVisible()}
	if snap, ok := s.deps.Session.Snapshot(); ok {
		resp.Snapshot = snap
	}
	return resp
}

func (s *Server) getDebug(writer http.ResponseWriter, r *http.Request) {
	writeJSON(writer, s.debugState())
}

// putDebug 打开或关闭调试面板，打开时会请求新的快照
func (s *Server) putDebug(writer http.ResponseWriter, r *http.Request) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(writer, http.StatusBadRequest, err, nil)
		return
	}
	visible := gjson.GetBytes(b, "visible")
	if !visible.IsBool() {
		writeError(writer, http.StatusBadRequest, errors.New(`expected {"visible": bool}`), nil)
		return
	}
	// 快照请求失败不影响面板状态
	if err := s.deps.Session.SetDebugVisible(visible.Bool()); err != nil {
		applog.GetLogger().WithError(err).Warn("failed to request process stats")
	}
	writeJSON(writer, s.debugState())
}

func (s *Server) refreshDebug(writer http.ResponseWriter, r *http.Request) {
	if err := s.deps.Session.RequestSnapshot(); err != nil {
		writeError(writer, statusCodeFor(err), err, nil)
		return
	}
	writeJsonWithStatusCode(writer, http.StatusAccepted, commonResp{Data: "OK"})
}

func (s *Server) getStatus(writer http.ResponseWriter, r *http.Request) {
	writeJSON(writer, s.deps.Session.Status())
}

func (s *Server) getNotifications(writer http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(writer, http.StatusBadRequest, err, nil)
			return
		}
		limit = n
	}
	writeJSON(writer, s.deps.Notifications.Recent(limit))
}
