// Package metrics 会话状态的 Prometheus 指标
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bililive-go/livesched/src/consts"
	"github.com/bililive-go/livesched/src/types"
)

const namespace = consts.AppName

// Collector 指标集合。nil *Collector 上的所有方法都是空操作，便于在未启用指标时直接传 nil。
type Collector struct {
	registry prometheus.Gatherer

	connected        prometheus.Gauge
	schedules        *prometheus.GaugeVec
	pendingStops     prometheus.Gauge
	broadcasts       prometheus.Counter
	malformed        *prometheus.CounterVec
	actions          *prometheus.CounterVec
	stopResolutions  *prometheus.CounterVec
	snapshotsApplied prometheus.Counter
}

// NewCollector 创建并注册指标。reg 为 nil 时使用独立的 registry。
func NewCollector(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collector{
		registry: reg,
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_connected",
			Help:      "1 when the channel to the scheduling service is connected",
		}),
		schedules: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schedules",
			Help:      "Schedules in the last broadcast by status",
		}, []string{"status"}),
		pendingStops: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_stops",
			Help:      "Stop requests waiting for a confirming broadcast",
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Broadcasts applied to the schedule store",
		}),
		malformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_events_total",
			Help:      "Inbound events dropped because their payload could not be decoded",
		}, []string{"event"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "User actions by action and delivery",
		}, []string{"action", "delivery"}),
		stopResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stop_resolutions_total",
			Help:      "Resolved stop requests by outcome",
		}, []string{"outcome"}),
		snapshotsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_stats_total",
			Help:      "Process stats snapshots received",
		}),
	}
	reg.MustRegister(
		c.connected,
		c.schedules,
		c.pendingStops,
		c.broadcasts,
		c.malformed,
		c.actions,
		c.stopResolutions,
		c.snapshotsApplied,
	)
	return c
}

// Handler /metrics 处理器
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) SetConnected(connected bool) {
	if c == nil {
		return
	}
	if connected {
		c.connected.Set(1)
	} else {
		c.connected.Set(0)
	}
}

// ObserveBroadcast 记录一次整表替换，未出现的状态置 0
func (c *Collector) ObserveBroadcast(counts map[types.Status]int) {
	if c == nil {
		return
	}
	c.broadcasts.Inc()
	for _, s := range types.AllStatuses {
		c.schedules.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
	unknown := 0
	for s, n := range counts {
		if !s.IsKnown() {
			unknown += n
		}
	}
	c.schedules.WithLabelValues("UNKNOWN").Set(float64(unknown))
}

func (c *Collector) SetPendingStops(n int) {
	if c == nil {
		return
	}
	c.pendingStops.Set(float64(n))
}

func (c *Collector) IncMalformed(event string) {
	if c == nil {
		return
	}
	c.malformed.WithLabelValues(event).Inc()
}

func (c *Collector) IncAction(action types.Action, delivery types.Delivery) {
	if c == nil {
		return
	}
	c.actions.WithLabelValues(string(action), string(delivery)).Inc()
}

func (c *Collector) IncStopResolution(outcome string) {
	if c == nil {
		return
	}
	c.stopResolutions.WithLabelValues(outcome).Inc()
}

func (c *Collector) IncSnapshot() {
	if c == nil {
		return
	}
	c.snapshotsApplied.Inc()
}
