package session

import (
	"github.com/bililive-go/livesched/src/correlator"
	"github.com/bililive-go/livesched/src/policy"
	"github.com/bililive-go/livesched/src/types"
)

// ScheduleView 展示层需要的一条排程及其派生信息
type ScheduleView struct {
	types.Schedule
	Display       policy.Display `json:"display"`
	CanStop       bool           `json:"can_stop"`
	CanDelete     bool           `json:"can_delete"`
	Source        string         `json:"source"`
	DurationText  string         `json:"duration_text"`
	BroadcastTime string         `json:"broadcast_time"`
	StopPending   bool           `json:"stop_pending"`
	// PID 仅在调试面板可见且快照中有该排程时填充
	PID int `json:"pid,omitempty"`
}

// Status 会话整体状态
type Status struct {
	Connected         bool                     `json:"connected"`
	Scheduling        bool                     `json:"scheduling"`
	DebugVisible      bool                     `json:"debug_visible"`
	ShowEmergencyStop bool                     `json:"show_emergency_stop"`
	Version           uint64                   `json:"version"`
	ScheduleCount     int                      `json:"schedule_count"`
	PendingStops      []correlator.PendingStop `json:"pending_stops"`
}

// Views 按服务端顺序为每条排程计算展示信息
func (s *Session) Views() []ScheduleView {
	list := s.store.List()
	debug := s.debugVisible.Load()
	views := make([]ScheduleView, 0, len(list))
	for _, sch := range list {
		v := ScheduleView{
			Schedule:      sch,
			Display:       policy.DisplayFor(sch.Status),
			CanStop:       policy.CanStop(sch.Status),
			CanDelete:     policy.CanDelete(sch.Status),
			Source:        sch.Source(),
			DurationText:  policy.DurationText(sch.DurationMinutes),
			BroadcastTime: policy.FormatBroadcastTime(sch.BroadcastDateTime.Time, s.opts.Location),
			StopPending:   s.correlator.IsPending(sch.ID),
		}
		if debug {
			if pid, ok := s.stats.PIDFor(sch.ID); ok {
				v.PID = pid
			}
		}
		views = append(views, v)
	}
	return views
}

// ShowEmergencyStop 是否展示紧急停止入口
func (s *Session) ShowEmergencyStop() bool {
	return policy.AnyActive(s.store.List())
}

// Status 返回会话状态快照
func (s *Session) Status() Status {
	return Status{
		Connected:         s.Connected(),
		Scheduling:        s.Scheduling(),
		DebugVisible:      s.DebugVisible(),
		ShowEmergencyStop: s.ShowEmergencyStop(),
		Version:           s.store.Version(),
		ScheduleCount:     s.store.Len(),
		PendingStops:      s.correlator.Pending(),
	}
}
