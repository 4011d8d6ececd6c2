// Package policy 根据直播计划的状态推导展示信息和可执行的操作。
// 所有函数都是纯函数，只依赖传入的状态值。
package policy

import (
	"github.com/bililive-go/livesched/src/types"
)

// Indicator 状态旁的动画提示
type Indicator string

const (
	IndicatorNone   Indicator = ""
	IndicatorPing   Indicator = "ping"
	IndicatorSpin   Indicator = "spin"
	IndicatorBounce Indicator = "bounce"
	IndicatorPulse  Indicator = "pulse"
)

// Display 状态的展示元数据
type Display struct {
	Label      string    `json:"label"`
	Color      string    `json:"color"`
	Background string    `json:"background"`
	Indicator  Indicator `json:"indicator,omitempty"`
	// Notice 部分状态需要额外的提示条
	Notice string `json:"notice,omitempty"`
	Known  bool   `json:"known"`
}

var unknownDisplay = Display{Label: "UNKNOWN", Color: "text-gray-500", Background: "bg-gray-800"}

// DisplayFor 返回状态的展示信息，未知状态回落为 UNKNOWN 而不是报错
func DisplayFor(status types.Status) Display {
	switch status {
	case types.StatusLive:
		return Display{Label: "LIVE", Color: "text-green-400", Background: "bg-green-900/50", Indicator: IndicatorPing, Known: true}
	case types.StatusCompleted:
		return Display{Label: "COMPLETED", Color: "text-gray-400", Background: "bg-gray-700/80", Known: true}
	case types.StatusFailed:
		return Display{Label: "FAILED", Color: "text-red-400", Background: "bg-red-900/50", Known: true}
	case types.StatusPending:
		return Display{Label: "WAITING", Color: "text-yellow-400", Background: "bg-yellow-900/50", Known: true}
	case types.StatusStopping:
		return Display{Label: "STOPPING", Color: "text-orange-400", Background: "bg-orange-900/50", Indicator: IndicatorSpin, Known: true}
	case types.StatusRetrying:
		return Display{
			Label: "RECONNECTING", Color: "text-blue-400", Background: "bg-blue-900/50", Indicator: IndicatorSpin,
			Notice: "Reconnecting the stream... the system will retry automatically.", Known: true,
		}
	case types.StatusDownloadingVideo:
		return Display{
			Label: "DOWNLOADING VIDEO", Color: "text-indigo-400", Background: "bg-indigo-900/50", Indicator: IndicatorBounce,
			Notice: "Downloading video from URL. Please wait...", Known: true,
		}
	case types.StatusQueuedForDownload:
		return Display{
			Label: "QUEUED FOR DOWNLOAD", Color: "text-purple-400", Background: "bg-purple-900/50", Indicator: IndicatorPulse,
			Notice: "Video is waiting to be downloaded.", Known: true,
		}
	default:
		return unknownDisplay
	}
}

// CanStop 是否允许停止
func CanStop(status types.Status) bool {
	switch status {
	case types.StatusLive, types.StatusRetrying, types.StatusDownloadingVideo, types.StatusQueuedForDownload:
		return true
	case types.StatusPending, types.StatusStopping, types.StatusCompleted, types.StatusFailed:
		return false
	default:
		return false
	}
}

// CanDelete 是否允许删除。
// 与 CanStop 有重叠：下载中的计划既可以停止也可以直接删除，停止中的计划也可以删除。
func CanDelete(status types.Status) bool {
	switch status {
	case types.StatusPending, types.StatusCompleted, types.StatusFailed, types.StatusStopping,
		types.StatusDownloadingVideo, types.StatusQueuedForDownload:
		return true
	case types.StatusLive, types.StatusRetrying:
		return false
	default:
		return false
	}
}

// IsActive 是否计入“有直播正在进行”，用于控制紧急停止按钮
func IsActive(status types.Status) bool {
	switch status {
	case types.StatusLive, types.StatusRetrying, types.StatusDownloadingVideo, types.StatusQueuedForDownload:
		return true
	case types.StatusPending, types.StatusStopping, types.StatusCompleted, types.StatusFailed:
		return false
	default:
		return false
	}
}

// AnyActive 列表中是否至少有一个活跃计划，空列表返回 false
func AnyActive(list []types.Schedule) bool {
	for _, s := range list {
		if IsActive(s.Status) {
			return true
		}
	}
	return false
}
