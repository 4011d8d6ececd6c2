package schedules

import (
	"sync"

	"github.com/bililive-go/livesched/src/types"
)

// Store 保存当前的直播计划列表。
//
// 列表以服务端广播为唯一数据源：每次广播整体替换，客户端从不局部修改某条记录，
// 任何过期数据都等待下一次广播来纠正。顺序保持服务端下发的顺序，不在本地重排。
//
// Store 的零值可直接使用。
type Store struct {
	mu      sync.RWMutex
	list    []types.Schedule
	index   map[types.ScheduleID]int
	version uint64
}

// NewStore 创建空的 Store
func NewStore() *Store {
	return &Store{}
}

// ApplyBroadcast 用一次广播的完整列表替换当前内容（全量替换，不做合并）。
// 传入的切片会被复制，调用方之后修改它不会影响 Store。返回替换后的版本号。
func (s *Store) ApplyBroadcast(list []types.Schedule) uint64 {
	next := make([]types.Schedule, len(list))
	copy(next, list)
	index := make(map[types.ScheduleID]int, len(next))
	for i, sc := range next {
		// 服务端理论上不会下发重复 id；若出现，以第一条为准
		if _, ok := index[sc.ID]; !ok {
			index[sc.ID] = i
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = next
	s.index = index
	s.version++
	return s.version
}

// List 返回当前列表的副本，顺序与最近一次广播一致
func (s *Store) List() []types.Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Schedule, len(s.list))
	copy(out, s.list)
	return out
}

// Get 根据 id 查找计划
func (s *Store) Get(id types.ScheduleID) (types.Schedule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return types.Schedule{}, false
	}
	return s.list[i], true
}

// Len 当前计划数量
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.list)
}

// Version 已应用的广播次数，0 表示尚未收到任何广播
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// CountByStatus 按状态统计数量
func (s *Store) CountByStatus() map[types.Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[types.Status]int)
	for _, sc := range s.list {
		counts[sc.Status]++
	}
	return counts
}
