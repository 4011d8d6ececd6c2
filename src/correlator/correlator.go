// Package correlator 把用户发起的停止请求与之后广播中的终态关联起来
package correlator

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bililive-go/livesched/src/channel"
	"github.com/bililive-go/livesched/src/consts"
	"github.com/bililive-go/livesched/src/notify"
	"github.com/bililive-go/livesched/src/types"
)

// ErrStopPending 该排程已有一个未确认的停止请求
var ErrStopPending = errors.New("stop already pending for schedule")

// Outcome 待确认停止请求的结局
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeAbandoned Outcome = "abandoned"
)

// PendingStop 一个等待广播确认的停止请求，每个排程最多一个
type PendingStop struct {
	ScheduleID types.ScheduleID `json:"id"`
	Title      string           `json:"title"`
	Handle     notify.Handle    `json:"handle"`
	IssuedAt   time.Time        `json:"issued_at"`
}

// Resolution 一次结算的结果
type Resolution struct {
	PendingStop
	Outcome Outcome      `json:"outcome"`
	Status  types.Status `json:"status,omitempty"`
}

// Lookup 按 id 查询排程，schedules.Store 满足该接口
type Lookup interface {
	Get(id types.ScheduleID) (types.Schedule, bool)
}

type stopRequest struct {
	ID types.ScheduleID `json:"id"`
}

// Correlator 待确认停止请求表
type Correlator struct {
	ch       channel.Channel
	notifier notify.Notifier
	messages *notify.Renderer
	// timeout<=0 时不超时，请求一直挂起直到确认或 Abandon
	timeout time.Duration

	mu      sync.Mutex
	pending map[types.ScheduleID]*PendingStop
	now     func() time.Time
}

// New 创建 Correlator
func New(ch channel.Channel, notifier notify.Notifier, messages *notify.Renderer, timeout time.Duration) *Correlator {
	if messages == nil {
		messages = notify.MustNewRenderer()
	}
	return &Correlator{
		ch:       ch,
		notifier: notifier,
		messages: messages,
		timeout:  timeout,
		pending:  make(map[types.ScheduleID]*PendingStop),
		now:      time.Now,
	}
}

// Timeout 返回确认超时，0 表示不超时
func (c *Correlator) Timeout() time.Duration {
	return c.timeout
}

// BeginStop 发出 stop_schedule（不带 ack），打开 loading 通知并登记待确认项。
// 调用方负责在此之前取得用户确认。
func (c *Correlator) BeginStop(id types.ScheduleID, title string) (notify.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.pending[id]; ok {
		return p.Handle, ErrStopPending
	}

	data := notify.MessageData{Title: title}
	if err := c.ch.Emit(consts.EventStopSchedule, stopRequest{ID: id}, nil); err != nil {
		data.Error = err.Error()
		h := c.notifier.Error("", c.messages.Render(notify.MsgStopSendFailed, data))
		return h, fmt.Errorf("stop schedule %s: %w", id, err)
	}

	h := c.notifier.Loading(c.messages.Render(notify.MsgStopLoading, data))
	c.pending[id] = &PendingStop{
		ScheduleID: id,
		Title:      title,
		Handle:     h,
		IssuedAt:   c.now(),
	}
	logrus.WithFields(logrus.Fields{"id": id, "handle": h}).Info("stop requested")
	return h, nil
}

// Reconcile 在每次整表替换之后调用。只遍历待确认表，
// 排程出现且为 COMPLETED 时通知成功，为 FAILED 时通知失败，两种情况都移除该项；
// 其它情况（不存在或非终态）保持挂起。
func (c *Correlator) Reconcile(l Lookup) []Resolution {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return nil
	}
	var out []Resolution
	for id, p := range c.pending {
		s, ok := l.Get(id)
		if !ok {
			continue
		}
		title := s.Title
		if title == "" {
			title = p.Title
		}
		data := notify.MessageData{Title: title}
		switch s.Status {
		case types.StatusCompleted:
			c.notifier.Success(p.Handle, c.messages.Render(notify.MsgStopSuccess, data))
			out = append(out, Resolution{PendingStop: *p, Outcome: OutcomeConfirmed, Status: s.Status})
		case types.StatusFailed:
			c.notifier.Error(p.Handle, c.messages.Render(notify.MsgStopFailed, data))
			out = append(out, Resolution{PendingStop: *p, Outcome: OutcomeFailed, Status: s.Status})
		default:
			continue
		}
		delete(c.pending, id)
	}
	sortResolutions(out)
	return out
}

// ReconcileList 针对一个广播列表结算
func (c *Correlator) ReconcileList(list []types.Schedule) []Resolution {
	return c.Reconcile(listLookup(list))
}

// Sweep 把超过确认超时的请求结算为超时失败；未配置超时时什么也不做
func (c *Correlator) Sweep(now time.Time) []Resolution {
	if c.timeout <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Resolution
	for id, p := range c.pending {
		elapsed := now.Sub(p.IssuedAt)
		if elapsed < c.timeout {
			continue
		}
		c.notifier.Error(p.Handle, c.messages.Render(notify.MsgStopTimeout, notify.MessageData{
			Title:   p.Title,
			Elapsed: elapsed.Truncate(time.Second).String(),
		}))
		out = append(out, Resolution{PendingStop: *p, Outcome: OutcomeTimedOut})
		delete(c.pending, id)
	}
	sortResolutions(out)
	return out
}

// Abandon 显式放弃一个待确认请求（例如排程已被删除），通知以失败结束
func (c *Correlator) Abandon(id types.ScheduleID) (Resolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[id]
	if !ok {
		return Resolution{}, false
	}
	delete(c.pending, id)
	c.notifier.Error(p.Handle, c.messages.Render(notify.MsgStopAbandoned, notify.MessageData{Title: p.Title}))
	return Resolution{PendingStop: *p, Outcome: OutcomeAbandoned}, true
}

// IsPending 该排程是否有待确认的停止请求
func (c *Correlator) IsPending(id types.ScheduleID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[id]
	return ok
}

// Pending 返回待确认请求的副本，按发出时间排序
func (c *Correlator) Pending() []PendingStop {
	c.mu.Lock()
	out := make([]PendingStop, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, *p)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].ScheduleID < out[j].ScheduleID
		}
		return out[i].IssuedAt.Before(out[j].IssuedAt)
	})
	return out
}

// Len 待确认请求数量
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func sortResolutions(out []Resolution) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].ScheduleID < out[j].ScheduleID
		}
		return out[i].IssuedAt.Before(out[j].IssuedAt)
	})
}

type listLookup []types.Schedule

func (l listLookup) Get(id types.ScheduleID) (types.Schedule, bool) {
	for _, s := range l {
		if s.ID == id {
			return s, true
		}
	}
	return types.Schedule{}, false
}
