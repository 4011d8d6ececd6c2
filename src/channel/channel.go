// Package channel 与排程服务之间的双向事件通道
package channel

//go:generate go run go.uber.org/mock/mockgen -package mock -destination mock/mock.go github.com/bililive-go/livesched/src/channel Channel

import (
	"encoding/json"
	"errors"
)

var (
	// ErrNotConnected 通道当前未连接
	ErrNotConnected = errors.New("channel not connected")
	// ErrSendBufferFull 发送缓冲区已满
	ErrSendBufferFull = errors.New("channel send buffer full")
)

// AckFunc 请求级确认回调，data 为服务端回传的原始 JSON
type AckFunc func(data json.RawMessage)

// Channel 出站请求接口。ack 为 nil 时不等待确认。
// 入站事件（broadcast_update、process_stats、connect、disconnect）通过 events.Dispatcher 分发。
type Channel interface {
	Emit(event string, payload interface{}, ack AckFunc) error
	Connected() bool
}
