package types

// ScheduleID 由服务端分配的直播计划唯一标识，在计划的整个生命周期内保持不变
type ScheduleID string

// Schedule 直播计划记录，字段名与服务端推送的 JSON 保持一致
type Schedule struct {
	ID     ScheduleID `json:"id"`
	Title  string     `json:"title"`
	Status Status     `json:"status"`
	// BroadcastDateTime 缺失或格式不对时为零值，展示为 N/A
	BroadcastDateTime Timestamp `json:"broadcastDateTime"`
	// DurationMinutes 为 nil 表示无限循环播放
	DurationMinutes *int   `json:"durationMinutes"`
	VideoURL        string `json:"videoUrl,omitempty"`
	// VideoIdentifier 服务端解析/下载完成后才会填充，展示时优先于 VideoURL
	VideoIdentifier string `json:"videoIdentifier,omitempty"`
	RTMPServer      string `json:"rtmpServer,omitempty"`
	StreamKey       string `json:"streamKey,omitempty"`
}

// Source 返回用于展示的视频来源
func (s Schedule) Source() string {
	if s.VideoIdentifier != "" {
		return s.VideoIdentifier
	}
	return s.VideoURL
}

// HasDuration 是否设置了固定时长
func (s Schedule) HasDuration() bool {
	return s.DurationMinutes != nil && *s.DurationMinutes > 0
}
