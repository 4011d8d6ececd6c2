package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/bililive-go/livesched/src/consts"
	"github.com/bililive-go/livesched/src/correlator"
	"github.com/bililive-go/livesched/src/form"
	"github.com/bililive-go/livesched/src/notify"
	"github.com/bililive-go/livesched/src/policy"
	"github.com/bililive-go/livesched/src/types"
)

type idRequest struct {
	ID types.ScheduleID `json:"id"`
}

type createAck struct {
	// replied 为 false 表示 ack 不是对象（如 null），视为没有响应
	replied bool
	ok      bool
	msg     string
}

func parseCreateAck(data json.RawMessage) createAck {
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return createAck{}
	}
	return createAck{
		replied: true,
		ok:      res.Get("success").Bool(),
		msg:     res.Get("error").String(),
	}
}

func (s *Session) result(r types.ActionResult) types.ActionResult {
	s.metrics.IncAction(r.Action, r.Delivery)
	logrus.WithFields(logrus.Fields{
		"action":   r.Action,
		"id":       r.ScheduleID,
		"delivery": r.Delivery,
	}).Info("action finished")
	return r
}

// CreateSchedule 校验表单并发出 create_schedule，等待服务端 ack。
// 成功时重置表单（保留日期、时间、RTMP 服务器）；失败时原样展示服务端错误且不动表单。
func (s *Session) CreateSchedule(ctx context.Context, f *form.CreateForm) (types.ActionResult, error) {
	res := types.ActionResult{Action: types.ActionCreate}

	payload, err := f.Payload(s.opts.Location)
	if err != nil {
		h := s.notifier.Error("", s.messages.Render(notify.MsgValidationFailed, notify.MessageData{}))
		res.Delivery = types.DeliveryRejected
		res.Handle = string(h)
		res.Message = err.Error()
		return s.result(res), err
	}

	if !s.scheduling.CompareAndSwap(false, true) {
		return res, ErrCreateInFlight
	}
	defer s.scheduling.Store(false)

	data := notify.MessageData{Title: f.Title}
	h := s.notifier.Loading(s.messages.Render(notify.MsgCreateLoading, data))
	res.Handle = string(h)

	acks := make(chan createAck, 1)
	err = s.ch.Emit(consts.EventCreateSchedule, payload, func(raw json.RawMessage) {
		select {
		case acks <- parseCreateAck(raw):
		default:
		}
	})
	if err != nil {
		data.Error = err.Error()
		s.notifier.Error(h, s.messages.Render(notify.MsgCreateError, data))
		res.Delivery = types.DeliveryRejected
		res.Message = err.Error()
		return s.result(res), fmt.Errorf("create schedule: %w", err)
	}

	timer := time.NewTimer(s.opts.CreateAckTimeout)
	defer timer.Stop()

	var ack createAck
	select {
	case ack = <-acks:
	case <-timer.C:
		s.notifier.Error(h, s.messages.Render(notify.MsgNoResponse, data))
		res.Delivery = types.DeliveryRejected
		res.Message = ErrNoResponse.Error()
		return s.result(res), ErrNoResponse
	case <-ctx.Done():
		s.notifier.Error(h, s.messages.Render(notify.MsgNoResponse, data))
		res.Delivery = types.DeliveryRejected
		res.Message = ctx.Err().Error()
		return s.result(res), ctx.Err()
	}

	if !ack.replied {
		s.notifier.Error(h, s.messages.Render(notify.MsgNoResponse, data))
		res.Delivery = types.DeliveryRejected
		res.Message = ErrNoResponse.Error()
		return s.result(res), ErrNoResponse
	}
	if !ack.ok {
		key := notify.MsgCreateError
		data.Error = ack.msg
		if data.Error == "" {
			key = notify.MsgCreateRejected
			data.Error = "rejected without reason"
		}
		s.notifier.Error(h, s.messages.Render(key, data))
		res.Delivery = types.DeliveryRejected
		res.Message = data.Error
		return s.result(res), fmt.Errorf("%w: %s", ErrCreateRejected, data.Error)
	}

	s.notifier.Success(h, s.messages.Render(notify.MsgCreateSuccess, data))
	f.Reset()
	res.Delivery = types.DeliveryConfirmed
	return s.result(res), nil
}

// eligible 查找排程并检查操作是否合法，不合法时给出错误通知
func (s *Session) eligible(action types.Action, id types.ScheduleID, allowed func(types.Status) bool) (types.Schedule, error) {
	sch, ok := s.store.Get(id)
	if !ok {
		return sch, fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}
	if !allowed(sch.Status) {
		s.notifier.Error("", s.messages.Render(notify.MsgActionNotAllowed, notify.MessageData{
			Title:  sch.Title,
			Action: string(action),
			Status: string(sch.Status),
		}))
		return sch, fmt.Errorf("%w: %s %s", ErrActionNotAllowed, action, sch.Status)
	}
	return sch, nil
}

// StopSchedule 确认后发出停止请求，结果由之后的广播确认
func (s *Session) StopSchedule(ctx context.Context, id types.ScheduleID) (types.ActionResult, error) {
	res := types.ActionResult{Action: types.ActionStop, ScheduleID: id}
	sch, err := s.eligible(types.ActionStop, id, policy.CanStop)
	if err != nil {
		return res, err
	}
	prompt := s.messages.Render(notify.MsgConfirmStop, notify.MessageData{Title: sch.Title})
	if !s.confirmer.Confirm(ctx, prompt) {
		res.Delivery = types.DeliveryCancelled
		return s.result(res), nil
	}

	s.mu.Lock()
	h, err := s.correlator.BeginStop(id, sch.Title)
	pending := s.correlator.Len()
	s.mu.Unlock()
	res.Handle = string(h)

	switch {
	case errors.Is(err, correlator.ErrStopPending):
		res.Delivery = types.DeliveryPending
		res.Message = err.Error()
		return s.result(res), err
	case err != nil:
		res.Delivery = types.DeliveryRejected
		res.Message = err.Error()
		return s.result(res), err
	}
	s.metrics.SetPendingStops(pending)
	res.Delivery = types.DeliveryPending
	return s.result(res), nil
}

// DeleteSchedule 乐观删除：发出请求后等待固定时长即视为成功，服务端失败不可见
func (s *Session) DeleteSchedule(ctx context.Context, id types.ScheduleID) (types.ActionResult, error) {
	res := types.ActionResult{Action: types.ActionDelete, ScheduleID: id}
	sch, err := s.eligible(types.ActionDelete, id, policy.CanDelete)
	if err != nil {
		return res, err
	}
	data := notify.MessageData{Title: sch.Title}
	if !s.confirmer.Confirm(ctx, s.messages.Render(notify.MsgConfirmDelete, data)) {
		res.Delivery = types.DeliveryCancelled
		return s.result(res), nil
	}

	h := s.notifier.Loading(s.messages.Render(notify.MsgDeleteLoading, data))
	res.Handle = string(h)
	if err := s.ch.Emit(consts.EventDeleteSchedule, idRequest{ID: id}, nil); err != nil {
		s.notifier.Error(h, s.messages.Render(notify.MsgDeleteError, data))
		res.Delivery = types.DeliveryRejected
		res.Message = err.Error()
		return s.result(res), fmt.Errorf("delete schedule %s: %w", id, err)
	}
	// 被删除的排程不会再出现在广播里，挂起的停止请求无法再被确认
	s.AbandonStop(id)

	settle(ctx, s.opts.DeleteSettle)
	s.notifier.Success(h, s.messages.Render(notify.MsgDeleteSuccess, data))
	res.Delivery = types.DeliveryRequested
	return s.result(res), nil
}

// EmergencyStopAll 乐观的全量紧急停止，仅在有活跃排程时可用
func (s *Session) EmergencyStopAll(ctx context.Context) (types.ActionResult, error) {
	res := types.ActionResult{Action: types.ActionEmergencyStop}
	if !policy.AnyActive(s.store.List()) {
		return res, ErrNoActiveStreams
	}
	if !s.confirmer.Confirm(ctx, s.messages.Render(notify.MsgConfirmEmergency, notify.MessageData{})) {
		res.Delivery = types.DeliveryCancelled
		return s.result(res), nil
	}

	h := s.notifier.Loading(s.messages.Render(notify.MsgEmergencyLoading, notify.MessageData{}))
	res.Handle = string(h)
	if err := s.ch.Emit(consts.EventEmergencyStopAll, nil, nil); err != nil {
		s.notifier.Error(h, s.messages.Render(notify.MsgEmergencyError, notify.MessageData{Error: err.Error()}))
		res.Delivery = types.DeliveryRejected
		res.Message = err.Error()
		return s.result(res), fmt.Errorf("emergency stop: %w", err)
	}

	settle(ctx, s.opts.EmergencyStopSettle)
	s.notifier.Success(h, s.messages.Render(notify.MsgEmergencySuccess, notify.MessageData{}))
	res.Delivery = types.DeliveryRequested
	return s.result(res), nil
}

// settle 请求已经发出，ctx 取消只会提前结束等待
func settle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
