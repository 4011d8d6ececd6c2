package consts

// 与服务端约定的通道事件名
const (
	// 出站
	EventCreateSchedule   = "create_schedule"
	EventStopSchedule     = "stop_schedule"
	EventDeleteSchedule   = "delete_schedule"
	EventEmergencyStopAll = "emergency_stop_all"
	EventGetProcessStats  = "get_process_stats"

	// 入站
	EventBroadcastUpdate = "broadcast_update"
	EventProcessStats    = "process_stats"

	// 连接状态，由通道适配器产生
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)
