package events

import (
	"context"
	"errors"
	"sync"

	"github.com/bililive-go/livesched/src/instance"
	"github.com/bililive-go/livesched/src/interfaces"
)

// ErrListenerNotFound 移除不存在的监听器
var ErrListenerNotFound = errors.New("event listener not found")

// Dispatcher 事件分发器
type Dispatcher interface {
	interfaces.Module
	AddEventListener(eventType EventType, listener *EventListener)
	RemoveEventListener(eventType EventType, listener *EventListener) error
	RemoveAllEventListener(eventType EventType)
	DispatchEvent(event *Event)
}

// NewDispatcher 创建分发器并挂到 instance 上
func NewDispatcher(ctx context.Context) Dispatcher {
	ed := NewSyncDispatcher()
	if inst := instance.GetInstance(ctx); inst != nil {
		inst.EventDispatcher = ed
	}
	return ed
}

// NewSyncDispatcher 创建不依赖 instance 的分发器，主要用于测试
func NewSyncDispatcher() Dispatcher {
	return &dispatcher{
		saver: make(map[EventType][]*EventListener),
	}
}

// dispatcher 同步分发：DispatchEvent 返回时所有监听器都已执行完毕。
// 入站广播必须按到达顺序逐个处理，所以这里不能为每个监听器单独起 goroutine。
type dispatcher struct {
	sync.RWMutex
	saver map[EventType][]*EventListener
}

func (d *dispatcher) Start(ctx context.Context) error {
	return nil
}

func (d *dispatcher) Close(ctx context.Context) {
	d.Lock()
	defer d.Unlock()
	d.saver = make(map[EventType][]*EventListener)
}

func (d *dispatcher) AddEventListener(eventType EventType, listener *EventListener) {
	d.Lock()
	defer d.Unlock()
	d.saver[eventType] = append(d.saver[eventType], listener)
}

func (d *dispatcher) RemoveEventListener(eventType EventType, listener *EventListener) error {
	d.Lock()
	defer d.Unlock()
	listeners := d.saver[eventType]
	for i, l := range listeners {
		if l == listener {
			d.saver[eventType] = append(listeners[:i:i], listeners[i+1:]...)
			return nil
		}
	}
	return ErrListenerNotFound
}

func (d *dispatcher) RemoveAllEventListener(eventType EventType) {
	d.Lock()
	defer d.Unlock()
	delete(d.saver, eventType)
}

func (d *dispatcher) DispatchEvent(event *Event) {
	if event == nil {
		return
	}
	// 复制一份再释放锁，监听器内部可以继续分发事件或注册监听器
	d.RLock()
	listeners := make([]*EventListener, len(d.saver[event.Type]))
	copy(listeners, d.saver[event.Type])
	d.RUnlock()

	for _, l := range listeners {
		if l != nil && l.Handler != nil {
			l.Handler(event)
		}
	}
}
