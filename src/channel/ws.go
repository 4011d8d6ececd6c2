package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/bililive-go/livesched/src/consts"
	"github.com/bililive-go/livesched/src/instance"
	"github.com/bililive-go/livesched/src/pkg/events"
	bilisentry "github.com/bililive-go/livesched/src/pkg/sentry"
)

// ackEvent 服务端确认帧的事件名
const ackEvent = "ack"

const sendBufferSize = 256

// Options WSClient 连接参数
type Options struct {
	URL               string
	Header            http.Header
	ReconnectInterval time.Duration
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	PingInterval      time.Duration
	PongWait          time.Duration
	MaxMessageSize    int64
}

func (o *Options) applyDefaults() {
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = 3 * time.Second
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4 << 20
	}
}

// envelope 线上帧格式 {"event": name, "data": any, "ack": n}
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   uint64          `json:"ack,omitempty"`
}

// WSClient 基于 gorilla/websocket 的通道实现，断线后按 ReconnectInterval 自动重连。
// 入站事件在读 goroutine 上按到达顺序同步分发。
type WSClient struct {
	opts   Options
	ed     events.Dispatcher
	dialer *websocket.Dialer

	mu      sync.Mutex
	send    chan []byte
	acks    map[uint64]AckFunc
	nextAck uint64

	connected atomic.Bool
	started   atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewWSClient 创建通道，Start 之前不会发起连接
func NewWSClient(ctx context.Context, opts Options, ed events.Dispatcher) *WSClient {
	opts.applyDefaults()
	c := &WSClient{
		opts: opts,
		ed:   ed,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		done: make(chan struct{}),
	}
	if inst := instance.GetInstance(ctx); inst != nil {
		inst.Channel = c
	}
	return c
}

// Start 启动连接循环，立即返回
func (c *WSClient) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return nil
	}
	ctx, c.cancel = context.WithCancel(ctx)
	bilisentry.GoWithContext(ctx, c.run)
	logrus.WithField("url", c.opts.URL).Info("channel started")
	return nil
}

// Close 断开连接并等待连接循环退出
func (c *WSClient) Close(ctx context.Context) {
	if !c.started.Load() {
		return
	}
	c.cancel()
	select {
	case <-c.done:
	case <-ctx.Done():
		logrus.Warn("channel close timed out")
	}
}

// Connected 当前是否已连接
func (c *WSClient) Connected() bool {
	return c.connected.Load()
}

// Emit 发送一个出站事件。未连接时返回 ErrNotConnected；
// ack 不为 nil 时会在服务端确认帧到达后于读 goroutine 上回调，断线时未确认的回调直接丢弃。
func (c *WSClient) Emit(event string, payload interface{}, ack AckFunc) error {
	env := envelope{Event: event}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		env.Data = raw
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.send == nil {
		return ErrNotConnected
	}
	if ack != nil {
		c.nextAck++
		env.Ack = c.nextAck
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return err
	}
	select {
	case c.send <- frame:
	default:
		return ErrSendBufferFull
	}
	if ack != nil {
		c.acks[env.Ack] = ack
	}
	return nil
}

func (c *WSClient) run(ctx context.Context) {
	defer close(c.done)
	for {
		if err := c.serve(ctx); err != nil && ctx.Err() == nil {
			logrus.WithError(err).WithField("url", c.opts.URL).Warn("channel connection lost")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.opts.ReconnectInterval):
		}
	}
}

// serve 建立一次连接并阻塞到连接断开
func (c *WSClient) serve(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
	if err != nil {
		return err
	}

	send := make(chan []byte, sendBufferSize)
	c.mu.Lock()
	c.send = send
	c.acks = make(map[uint64]AckFunc)
	c.mu.Unlock()
	c.connected.Store(true)
	logrus.WithField("url", c.opts.URL).Info("channel connected")
	c.ed.DispatchEvent(events.NewEvent(consts.EventConnect, nil))

	writeDone := make(chan struct{})
	bilisentry.Go(func() {
		defer close(writeDone)
		c.writePump(conn, send)
	})
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})

	err = c.readPump(conn)

	stop()
	c.mu.Lock()
	c.send = nil
	dropped := len(c.acks)
	c.acks = nil
	c.mu.Unlock()
	close(send)
	<-writeDone
	conn.Close()

	c.connected.Store(false)
	logrus.WithFields(logrus.Fields{
		"url":          c.opts.URL,
		"dropped_acks": dropped,
	}).Info("channel disconnected")
	c.ed.DispatchEvent(events.NewEvent(consts.EventDisconnect, nil))
	return err
}

func (c *WSClient) readPump(conn *websocket.Conn) error {
	conn.SetReadLimit(c.opts.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		c.handleFrame(message)
	}
}

func (c *WSClient) writePump(conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithError(err).Debug("channel write failed")
				// 让读循环退出
				conn.Close()
				drain(send)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				drain(send)
				return
			}
		}
	}
}

// drain 丢弃剩余待发送帧直到 send 被关闭
func drain(send <-chan []byte) {
	for range send {
	}
}

func (c *WSClient) handleFrame(message []byte) {
	if !gjson.ValidBytes(message) {
		logrus.WithField("size", len(message)).Warn("channel: dropping malformed frame")
		return
	}
	frame := gjson.ParseBytes(message)
	name := frame.Get("event").String()
	var data json.RawMessage
	if raw := frame.Get("data").Raw; raw != "" {
		data = json.RawMessage(raw)
	}

	if name == ackEvent {
		id := frame.Get("ack").Uint()
		c.mu.Lock()
		fn := c.acks[id]
		delete(c.acks, id)
		c.mu.Unlock()
		if fn == nil {
			logrus.WithField("ack", id).Debug("channel: ack without pending request")
			return
		}
		fn(data)
		return
	}
	if name == "" {
		logrus.Warn("channel: dropping frame without event name")
		return
	}
	c.ed.DispatchEvent(events.NewEvent(events.EventType(name), data))
}
