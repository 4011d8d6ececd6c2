package servers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bililive-go/livesched/src/notify"
	"github.com/bililive-go/livesched/src/pkg/events"
	"github.com/bililive-go/livesched/src/session"
)

// SSEEventType SSE 事件类型
type SSEEventType string

const (
	// SSEEventSchedules 排程表整体更新
	SSEEventSchedules SSEEventType = "schedules"
	// SSEEventConnection 与服务端的连接状态变化
	SSEEventConnection SSEEventType = "connection"
	// SSEEventNotification 通知创建或更新
	SSEEventNotification SSEEventType = "notification"
	// SSEEventProcessStats 调试快照更新
	SSEEventProcessStats SSEEventType = "process_stats"
)

// SSEMessage SSE 消息结构
type SSEMessage struct {
	Type SSEEventType `json:"type"`
	Data interface{}  `json:"data"`
}

// SSEHub 管理所有 SSE 连接
type SSEHub struct {
	mu      sync.RWMutex
	clients map[chan SSEMessage]struct{}
	closeCh chan struct{}
	closed  bool
}

func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[chan SSEMessage]struct{}),
		closeCh: make(chan struct{}),
	}
}

// AddClient 添加一个 SSE 客户端，hub 已关闭时返回 false
func (h *SSEHub) AddClient(ch chan SSEMessage) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[ch] = struct{}{}
	return true
}

// RemoveClient 移除一个 SSE 客户端
func (h *SSEHub) RemoveClient(ch chan SSEMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

// Broadcast 向所有客户端广播消息，客户端缓冲满时丢弃
func (h *SSEHub) Broadcast(msg SSEMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// ClientCount 获取当前连接的客户端数量
func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close 关闭所有 SSE 连接
func (h *SSEHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.closeCh)
	for ch := range h.clients {
		close(ch)
		delete(h.clients, ch)
	}
}

// Done 返回关闭信号 channel
func (h *SSEHub) Done() <-chan struct{} {
	return h.closeCh
}

// ServeHTTP 处理 SSE 连接请求
func (h *SSEHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	clientCh := make(chan SSEMessage, 100)
	if !h.AddClient(clientCh) {
		http.Error(w, "server closing", http.StatusServiceUnavailable)
		return
	}

	fmt.Fprintf(w, "event: connected\ndata: {\"message\":\"SSE connected\",\"clients\":%d}\n\n", h.ClientCount())
	flusher.Flush()

	heartbeatTicker := time.NewTicker(30 * time.Second)
	defer heartbeatTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.RemoveClient(clientCh)
			return

		case <-h.Done():
			return

		case <-heartbeatTicker.C:
			fmt.Fprintf(w, ":heartbeat\n\n")
			flusher.Flush()

		case msg, ok := <-clientCh:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, data)
			flusher.Flush()
		}
	}
}

// registerSSEListeners 把会话和通知事件转成 SSE 消息
func (s *Server) registerSSEListeners() {
	if s.deps.Dispatcher == nil {
		return
	}
	s.listeners = map[events.EventType]*events.EventListener{
		session.SchedulesUpdated: events.NewEventListener(func(*events.Event) {
			s.hub.Broadcast(SSEMessage{Type: SSEEventSchedules, Data: s.deps.Session.Views()})
		}),
		session.ConnectionChanged: events.NewEventListener(func(e *events.Event) {
			s.hub.Broadcast(SSEMessage{Type: SSEEventConnection, Data: map[string]interface{}{
				"connected": e.Object,
			}})
		}),
		session.SnapshotUpdated: events.NewEventListener(func(e *events.Event) {
			s.hub.Broadcast(SSEMessage{Type: SSEEventProcessStats, Data: e.Object})
		}),
		notify.NotificationUpdated: events.NewEventListener(func(e *events.Event) {
			s.hub.Broadcast(SSEMessage{Type: SSEEventNotification, Data: e.Object})
		}),
	}
	for typ, l := range s.listeners {
		s.deps.Dispatcher.AddEventListener(typ, l)
	}
}

func (s *Server) unregisterSSEListeners() {
	if s.deps.Dispatcher == nil {
		return
	}
	for typ, l := range s.listeners {
		_ = s.deps.Dispatcher.RemoveEventListener(typ, l)
	}
	s.listeners = nil
}
