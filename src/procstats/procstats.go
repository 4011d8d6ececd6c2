// Package procstats 缓存按需获取的后端进程/资源快照，仅用于调试展示
package procstats

import (
	"encoding/json"
	"time"

	"github.com/bluele/gcache"
	"github.com/sirupsen/logrus"

	"github.com/bililive-go/livesched/src/channel"
	"github.com/bililive-go/livesched/src/consts"
	"github.com/bililive-go/livesched/src/types"
)

// cacheKey 快照在 gcache 中的键
type cacheKey struct{}

// Snapshot process_stats 事件的内容
type Snapshot struct {
	RunningStreamsCount int                          `json:"running_streams_count"`
	SchedulePIDs        map[types.ScheduleID]int     `json:"schedule_pids"`
	RetryCounts         map[types.ScheduleID]float64 `json:"retry_counts"`
	DownloadQueueLength int                          `json:"download_queue_length"`
	DownloadsInProgress []types.ScheduleID           `json:"downloads_in_progress"`
	FFmpegProcesses     []string                     `json:"ffmpeg_processes"`
	// ReceivedAt 客户端收到快照的时间
	ReceivedAt time.Time `json:"received_at"`
}

// Decode 解析 process_stats 负载
func Decode(raw json.RawMessage) (Snapshot, error) {
	var s Snapshot
	err := json.Unmarshal(raw, &s)
	return s, err
}

// Clone 深拷贝
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.SchedulePIDs != nil {
		out.SchedulePIDs = make(map[types.ScheduleID]int, len(s.SchedulePIDs))
		for k, v := range s.SchedulePIDs {
			out.SchedulePIDs[k] = v
		}
	}
	if s.RetryCounts != nil {
		out.RetryCounts = make(map[types.ScheduleID]float64, len(s.RetryCounts))
		for k, v := range s.RetryCounts {
			out.RetryCounts[k] = v
		}
	}
	if s.DownloadsInProgress != nil {
		out.DownloadsInProgress = append([]types.ScheduleID(nil), s.DownloadsInProgress...)
	}
	if s.FFmpegProcesses != nil {
		out.FFmpegProcesses = append([]string(nil), s.FFmpegProcesses...)
	}
	return out
}

// Cache 调试快照缓存。与排程表相互独立，永远不阻塞主流程操作。
type Cache struct {
	ch    channel.Channel
	cache gcache.Cache
	now   func() time.Time
}

// NewCache 创建快照缓存。cache 为 nil 时使用单槽缓存，
// 否则与进程内共享的 gcache 共用（快照只占一个键）。
func NewCache(ch channel.Channel, cache gcache.Cache) *Cache {
	if cache == nil {
		cache = gcache.New(1).Simple().Build()
	}
	return &Cache{
		ch:    ch,
		cache: cache,
		now:   time.Now,
	}
}

// Request 发出 get_process_stats，结果随后通过 process_stats 事件到达
func (c *Cache) Request() error {
	if err := c.ch.Emit(consts.EventGetProcessStats, nil, nil); err != nil {
		logrus.WithError(err).Debug("failed to request process stats")
		return err
	}
	return nil
}

// Apply 整体替换缓存的快照
func (c *Cache) Apply(s Snapshot) {
	s = s.Clone()
	if s.ReceivedAt.IsZero() {
		s.ReceivedAt = c.now()
	}
	if err := c.cache.Set(cacheKey{}, s); err != nil {
		logrus.WithError(err).Warn("failed to store process stats")
	}
}

// Current 返回当前快照的副本；从未收到过快照时 ok 为 false
func (c *Cache) Current() (Snapshot, bool) {
	obj, err := c.cache.Get(cacheKey{})
	if err != nil {
		return Snapshot{}, false
	}
	s, ok := obj.(Snapshot)
	if !ok {
		return Snapshot{}, false
	}
	return s.Clone(), true
}

// PIDFor 查询排程对应的进程号，快照中没有该排程时视为没有关联进程
func (c *Cache) PIDFor(id types.ScheduleID) (int, bool) {
	obj, err := c.cache.Get(cacheKey{})
	if err != nil {
		return 0, false
	}
	s, ok := obj.(Snapshot)
	if !ok {
		return 0, false
	}
	pid, ok := s.SchedulePIDs[id]
	return pid, ok
}
