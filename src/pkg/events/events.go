package events

// EventType 事件类型。入站的通道事件直接使用服务端事件名（如 broadcast_update）。
type EventType string

// Event 事件对象
type Event struct {
	Type   EventType
	Object interface{}
}

// NewEvent 创建事件
func NewEvent(eventType EventType, object interface{}) *Event {
	return &Event{
		Type:   eventType,
		Object: object,
	}
}

// EventHandler 事件处理函数
type EventHandler func(event *Event)

// EventListener 事件监听器，使用指针身份区分不同监听器
type EventListener struct {
	Handler EventHandler
}

// NewEventListener 创建事件监听器
func NewEventListener(handler EventHandler) *EventListener {
	return &EventListener{Handler: handler}
}
