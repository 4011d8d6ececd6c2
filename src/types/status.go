package types

// Status 直播计划状态。状态转换完全由服务端通过广播决定，客户端只负责分类。
type Status string

const (
	// StatusPending 已排期，尚未开始
	StatusPending Status = "PENDING"
	// StatusQueuedForDownload 等待下载源视频
	StatusQueuedForDownload Status = "QUEUED_FOR_DOWNLOAD"
	// StatusDownloadingVideo 正在下载源视频
	StatusDownloadingVideo Status = "DOWNLOADING_VIDEO"
	// StatusLive 正在推流
	StatusLive Status = "LIVE"
	// StatusRetrying 推流中断后正在重连
	StatusRetrying Status = "RETRYING"
	// StatusStopping 用户请求停止，正在处理
	StatusStopping Status = "STOPPING"
	// StatusCompleted 终态：成功结束
	StatusCompleted Status = "COMPLETED"
	// StatusFailed 终态：失败
	StatusFailed Status = "FAILED"
)

// AllStatuses 所有已知状态，顺序与生命周期大致一致
var AllStatuses = []Status{
	StatusPending,
	StatusQueuedForDownload,
	StatusDownloadingVideo,
	StatusLive,
	StatusRetrying,
	StatusStopping,
	StatusCompleted,
	StatusFailed,
}

// IsKnown 判断是否为已知状态
func (s Status) IsKnown() bool {
	switch s {
	case StatusPending, StatusQueuedForDownload, StatusDownloadingVideo, StatusLive,
		StatusRetrying, StatusStopping, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal 终态之后不会再有状态转换
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
