package notify

import (
	"sort"
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"

	"github.com/bililive-go/livesched/src/pkg/events"
)

// NotificationUpdated 通知创建或状态变化时分发的事件，Object 为 Notification
const NotificationUpdated events.EventType = "NotificationUpdated"

// ErrorDuration 错误通知的展示时长
const ErrorDuration = 5 * time.Second

// Handle 通知句柄，用于把后续的成功/失败结果更新到同一条通知上
type Handle string

// Level 通知状态
type Level string

const (
	LevelLoading Level = "loading"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification 一条短暂展示的通知
type Notification struct {
	Handle    Handle        `json:"handle"`
	Level     Level         `json:"level"`
	Message   string        `json:"message"`
	Duration  time.Duration `json:"duration,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Notifier 通知出口。传入空句柄时会新建一条通知。
type Notifier interface {
	Loading(msg string) Handle
	Success(h Handle, msg string) Handle
	Error(h Handle, msg string) Handle
}

// Center 内存中的通知中心：记录最近的通知，写日志，并通过事件分发给 SSE 等展示层
type Center struct {
	mu    sync.Mutex
	items map[Handle]*Notification
	limit int
	ed    events.Dispatcher
	now   func() time.Time
}

// NewCenter 创建通知中心，limit 为保留的最近通知条数（<=0 时取 100）
func NewCenter(ed events.Dispatcher, limit int) *Center {
	if limit <= 0 {
		limit = 100
	}
	return &Center{
		items: make(map[Handle]*Notification),
		limit: limit,
		ed:    ed,
		now:   time.Now,
	}
}

func (c *Center) Loading(msg string) Handle {
	return c.set("", LevelLoading, msg, 0)
}

func (c *Center) Success(h Handle, msg string) Handle {
	return c.set(h, LevelSuccess, msg, 0)
}

func (c *Center) Error(h Handle, msg string) Handle {
	return c.set(h, LevelError, msg, ErrorDuration)
}

func (c *Center) set(h Handle, level Level, msg string, d time.Duration) Handle {
	c.mu.Lock()
	now := c.now()
	n, ok := c.items[h]
	if h == "" || !ok {
		if h == "" {
			h = Handle(uuid.Must(uuid.NewV4()).String())
		}
		n = &Notification{Handle: h, CreatedAt: now}
		c.items[h] = n
		c.evictLocked()
	}
	n.Level = level
	n.Message = msg
	n.Duration = d
	n.UpdatedAt = now
	snapshot := *n
	c.mu.Unlock()

	entry := logrus.WithFields(logrus.Fields{"handle": h, "level": level})
	if level == LevelError {
		entry.Warn(msg)
	} else {
		entry.Info(msg)
	}
	if c.ed != nil {
		c.ed.DispatchEvent(events.NewEvent(NotificationUpdated, snapshot))
	}
	return h
}

// evictLocked 超出上限时丢弃最早创建的通知
func (c *Center) evictLocked() {
	for len(c.items) > c.limit {
		var oldest *Notification
		for _, n := range c.items {
			if oldest == nil || n.CreatedAt.Before(oldest.CreatedAt) {
				oldest = n
			}
		}
		delete(c.items, oldest.Handle)
	}
}

// Get 查询通知
func (c *Center) Get(h Handle) (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.items[h]
	if !ok {
		return Notification{}, false
	}
	return *n, true
}

// Recent 返回最近更新的 n 条通知，最新的在前；n<=0 返回全部
func (c *Center) Recent(n int) []Notification {
	c.mu.Lock()
	out := make([]Notification, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, *item)
	}
	c.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
