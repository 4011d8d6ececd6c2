package instance

import (
	"context"
	"sync"

	"github.com/bluele/gcache"

	"github.com/bililive-go/livesched/src/interfaces"
)

type key int

// Key 在 context 中保存 *Instance 的键
const Key key = 0

// Instance 进程内唯一的组件集合，通过 context 显式传递，不使用包级全局变量
type Instance struct {
	WaitGroup       sync.WaitGroup
	Cache           gcache.Cache
	EventDispatcher interfaces.Module
	Channel         interfaces.Module
	Session         interfaces.Module
	Server          interfaces.Module
}

// GetInstance 从 context 中取出 Instance，不存在时返回 nil
func GetInstance(ctx context.Context) *Instance {
	if ctx == nil {
		return nil
	}
	if inst, ok := ctx.Value(Key).(*Instance); ok {
		return inst
	}
	return nil
}

// WithInstance 返回携带 inst 的子 context
func WithInstance(ctx context.Context, inst *Instance) context.Context {
	return context.WithValue(ctx, Key, inst)
}
