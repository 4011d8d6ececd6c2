package types

// Delivery 描述一次用户操作得到的保证强度。
// 乐观操作（删除、紧急停止）只能得到 DeliveryRequested，不要把它当作服务端确认。
type Delivery string

const (
	// DeliveryRequested 请求已发出，服务端没有确认通道
	DeliveryRequested Delivery = "requested"
	// DeliveryPending 请求已发出，等待后续广播确认
	DeliveryPending Delivery = "pending"
	// DeliveryConfirmed 服务端已确认成功
	DeliveryConfirmed Delivery = "confirmed"
	// DeliveryRejected 服务端拒绝或请求未能发出
	DeliveryRejected Delivery = "rejected"
	// DeliveryCancelled 用户在确认环节取消，未发出任何请求
	DeliveryCancelled Delivery = "cancelled"
)

// Action 用户操作类型
type Action string

const (
	ActionCreate        Action = "create"
	ActionStop          Action = "stop"
	ActionDelete        Action = "delete"
	ActionEmergencyStop Action = "emergency_stop"
)

// ActionResult 用户操作的结果
type ActionResult struct {
	Action     Action     `json:"action"`
	ScheduleID ScheduleID `json:"schedule_id,omitempty"`
	Delivery   Delivery   `json:"delivery"`
	// Handle 关联的通知句柄
	Handle string `json:"handle,omitempty"`
	// Message 服务端返回的错误信息（原样展示）
	Message string `json:"message,omitempty"`
}
