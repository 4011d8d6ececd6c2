// Package session 进程内唯一的会话控制器：持有排程表、停止请求关联表和调试快照，
// 处理入站事件并执行用户操作。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bluele/gcache"
	"github.com/sirupsen/logrus"

	"github.com/bililive-go/livesched/src/channel"
	"github.com/bililive-go/livesched/src/configs"
	"github.com/bililive-go/livesched/src/consts"
	"github.com/bililive-go/livesched/src/correlator"
	"github.com/bililive-go/livesched/src/instance"
	"github.com/bililive-go/livesched/src/metrics"
	"github.com/bililive-go/livesched/src/notify"
	"github.com/bililive-go/livesched/src/pkg/events"
	bilisentry "github.com/bililive-go/livesched/src/pkg/sentry"
	"github.com/bililive-go/livesched/src/procstats"
	"github.com/bililive-go/livesched/src/schedules"
	"github.com/bililive-go/livesched/src/types"
)

// 会话向展示层分发的事件
const (
	// SchedulesUpdated Object 为 SchedulesUpdate
	SchedulesUpdated events.EventType = "SchedulesUpdated"
	// ConnectionChanged Object 为 bool
	ConnectionChanged events.EventType = "ConnectionChanged"
	// SnapshotUpdated Object 为 procstats.Snapshot
	SnapshotUpdated events.EventType = "SnapshotUpdated"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrActionNotAllowed = errors.New("action not allowed for current status")
	ErrNoActiveStreams  = errors.New("no active streams")
	ErrCreateInFlight   = errors.New("another create request is in flight")
	ErrCreateRejected   = errors.New("create rejected by server")
	ErrNoResponse       = errors.New("no response from server")
)

// SchedulesUpdate 一次整表替换的结果
type SchedulesUpdate struct {
	Version     uint64                  `json:"version"`
	Schedules   []types.Schedule        `json:"schedules"`
	Resolutions []correlator.Resolution `json:"resolutions,omitempty"`
}

// Options 会话参数
type Options struct {
	DeleteSettle        time.Duration
	EmergencyStopSettle time.Duration
	CreateAckTimeout    time.Duration
	// StopConfirmTimeout 为 0 时停止请求一直等待广播确认
	StopConfirmTimeout time.Duration
	DefaultRTMPServer  string
	Location           *time.Location
}

// OptionsFromConfig 从配置生成会话参数
func OptionsFromConfig(cfg *configs.Config) (Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Options{}, err
	}
	return Options{
		DeleteSettle:        cfg.Actions.DeleteSettle,
		EmergencyStopSettle: cfg.Actions.EmergencyStopSettle,
		CreateAckTimeout:    cfg.Actions.CreateAckTimeout,
		StopConfirmTimeout:  cfg.Actions.StopConfirmTimeout,
		DefaultRTMPServer:   cfg.Form.DefaultRTMPServer,
		Location:            loc,
	}, nil
}

// Deps 会话依赖，均由调用方显式传入
type Deps struct {
	Channel    channel.Channel
	Dispatcher events.Dispatcher
	Notifier   notify.Notifier
	Messages   *notify.Renderer
	// Confirmer 为 nil 时使用 ContextConfirmer
	Confirmer Confirmer
	// Metrics 可以为 nil
	Metrics *metrics.Collector
	// Cache 调试快照使用的缓存，可以为 nil
	Cache gcache.Cache
}

// Session 会话控制器。
// 入站事件由通道的读 goroutine 逐个同步分发；用户操作与入站处理在 mu 上串行。
type Session struct {
	ch        channel.Channel
	ed        events.Dispatcher
	notifier  notify.Notifier
	messages  *notify.Renderer
	confirmer Confirmer
	metrics   *metrics.Collector
	opts      Options

	store      *schedules.Store
	correlator *correlator.Correlator
	stats      *procstats.Cache

	mu           sync.Mutex
	connected    atomic.Bool
	debugVisible atomic.Bool
	scheduling   atomic.Bool

	listeners map[events.EventType]*events.EventListener
	cancel    context.CancelFunc
	done      chan struct{}
}

// New 创建会话并挂到 instance 上
func New(ctx context.Context, deps Deps, opts Options) *Session {
	if deps.Messages == nil {
		deps.Messages = notify.MustNewRenderer()
	}
	if deps.Confirmer == nil {
		deps.Confirmer = ContextConfirmer
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.CreateAckTimeout <= 0 {
		opts.CreateAckTimeout = 30 * time.Second
	}
	s := &Session{
		ch:         deps.Channel,
		ed:         deps.Dispatcher,
		notifier:   deps.Notifier,
		messages:   deps.Messages,
		confirmer:  deps.Confirmer,
		metrics:    deps.Metrics,
		opts:       opts,
		store:      schedules.NewStore(),
		correlator: correlator.New(deps.Channel, deps.Notifier, deps.Messages, opts.StopConfirmTimeout),
		stats:      procstats.NewCache(deps.Channel, deps.Cache),
	}
	if inst := instance.GetInstance(ctx); inst != nil {
		inst.Session = s
	}
	return s
}

// Start 注册入站事件监听器；配置了停止确认超时时启动定期清扫
func (s *Session) Start(ctx context.Context) error {
	s.listeners = map[events.EventType]*events.EventListener{
		consts.EventConnect:         events.NewEventListener(s.onConnect),
		consts.EventDisconnect:      events.NewEventListener(s.onDisconnect),
		consts.EventBroadcastUpdate: events.NewEventListener(s.onBroadcast),
		consts.EventProcessStats:    events.NewEventListener(s.onProcessStats),
	}
	for typ, l := range s.listeners {
		s.ed.AddEventListener(typ, l)
	}
	if s.ch != nil && s.ch.Connected() {
		s.connected.Store(true)
		s.metrics.SetConnected(true)
	}

	if s.opts.StopConfirmTimeout > 0 {
		ctx, s.cancel = context.WithCancel(ctx)
		s.done = make(chan struct{})
		bilisentry.GoWithContext(ctx, s.sweepLoop)
	}
	return nil
}

// Close 注销监听器并停止清扫
func (s *Session) Close(ctx context.Context) {
	for typ, l := range s.listeners {
		_ = s.ed.RemoveEventListener(typ, l)
	}
	if s.cancel != nil {
		s.cancel()
		select {
		case <-s.done:
		case <-ctx.Done():
		}
	}
}

func (s *Session) sweepLoop(ctx context.Context) {
	defer close(s.done)
	interval := s.opts.StopConfirmTimeout / 4
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	if interval > 5*time.Second {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

// Sweep 结算超时的停止请求
func (s *Session) Sweep(now time.Time) []correlator.Resolution {
	s.mu.Lock()
	res := s.correlator.Sweep(now)
	s.mu.Unlock()
	s.recordResolutions(res)
	return res
}

func (s *Session) onConnect(*events.Event) {
	s.connected.Store(true)
	s.metrics.SetConnected(true)
	s.notifier.Success("", s.messages.Render(notify.MsgConnected, notify.MessageData{}))
	s.ed.DispatchEvent(events.NewEvent(ConnectionChanged, true))
	if s.debugVisible.Load() {
		if err := s.stats.Request(); err != nil {
			logrus.WithError(err).Debug("failed to refresh process stats after reconnect")
		}
	}
}

// onDisconnect 只更新连接状态，排程表和待确认表保持不变，重连后的第一次广播会整体替换
func (s *Session) onDisconnect(*events.Event) {
	s.connected.Store(false)
	s.metrics.SetConnected(false)
	s.notifier.Error("", s.messages.Render(notify.MsgDisconnected, notify.MessageData{}))
	s.ed.DispatchEvent(events.NewEvent(ConnectionChanged, false))
}

func (s *Session) onBroadcast(e *events.Event) {
	raw, _ := e.Object.(json.RawMessage)
	var list []types.Schedule
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &list); err != nil {
			logrus.WithError(err).WithField("event", e.Type).Warn("dropping malformed broadcast")
			s.metrics.IncMalformed(string(e.Type))
			return
		}
	}
	s.ApplyBroadcast(list)
}

// ApplyBroadcast 整表替换并立即结算待确认的停止请求
func (s *Session) ApplyBroadcast(list []types.Schedule) SchedulesUpdate {
	s.mu.Lock()
	version := s.store.ApplyBroadcast(list)
	res := s.correlator.Reconcile(s.store)
	pending := s.correlator.Len()
	s.mu.Unlock()

	s.metrics.ObserveBroadcast(s.store.CountByStatus())
	s.recordResolutions(res)
	s.metrics.SetPendingStops(pending)
	logrus.WithFields(logrus.Fields{
		"version":   version,
		"schedules": len(list),
		"resolved":  len(res),
	}).Debug("broadcast applied")

	update := SchedulesUpdate{
		Version:     version,
		Schedules:   s.store.List(),
		Resolutions: res,
	}
	s.ed.DispatchEvent(events.NewEvent(SchedulesUpdated, update))
	return update
}

func (s *Session) onProcessStats(e *events.Event) {
	raw, _ := e.Object.(json.RawMessage)
	snap, err := procstats.Decode(raw)
	if err != nil {
		logrus.WithError(err).WithField("event", e.Type).Warn("dropping malformed process stats")
		s.metrics.IncMalformed(string(e.Type))
		return
	}
	s.stats.Apply(snap)
	s.metrics.IncSnapshot()
	if current, ok := s.stats.Current(); ok {
		s.ed.DispatchEvent(events.NewEvent(SnapshotUpdated, current))
	}
}

func (s *Session) recordResolutions(res []correlator.Resolution) {
	for _, r := range res {
		s.metrics.IncStopResolution(string(r.Outcome))
	}
	if len(res) > 0 {
		s.metrics.SetPendingStops(s.correlator.Len())
	}
}

// SetDebugVisible 打开调试面板时请求一次新的快照
func (s *Session) SetDebugVisible(visible bool) error {
	s.debugVisible.Store(visible)
	if !visible {
		return nil
	}
	return s.stats.Request()
}

// RequestSnapshot 手动刷新调试快照
func (s *Session) RequestSnapshot() error {
	return s.stats.Request()
}

func (s *Session) DebugVisible() bool {
	return s.debugVisible.Load()
}

// Snapshot 最近一次调试快照
func (s *Session) Snapshot() (procstats.Snapshot, bool) {
	return s.stats.Current()
}

func (s *Session) Connected() bool {
	return s.connected.Load()
}

// Scheduling 是否有 create 请求在等待确认
func (s *Session) Scheduling() bool {
	return s.scheduling.Load()
}

// Schedules 当前排程表（服务端顺序）
func (s *Session) Schedules() []types.Schedule {
	return s.store.List()
}

// Schedule 按 id 查询排程
func (s *Session) Schedule(id types.ScheduleID) (types.Schedule, bool) {
	return s.store.Get(id)
}

// PendingStops 待确认的停止请求
func (s *Session) PendingStops() []correlator.PendingStop {
	return s.correlator.Pending()
}

// AbandonStop 放弃跟踪某个停止请求
func (s *Session) AbandonStop(id types.ScheduleID) bool {
	s.mu.Lock()
	res, ok := s.correlator.Abandon(id)
	s.mu.Unlock()
	if ok {
		s.recordResolutions([]correlator.Resolution{res})
	}
	return ok
}

// Options 会话参数
func (s *Session) Options() Options {
	return s.opts
}
