// Package servers 本地展示层：JSON API、SSE 推送和 /metrics
package servers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/bililive-go/livesched/src/instance"
	applog "github.com/bililive-go/livesched/src/log"
	"github.com/bililive-go/livesched/src/metrics"
	"github.com/bililive-go/livesched/src/notify"
	"github.com/bililive-go/livesched/src/pkg/events"
	bilisentry "github.com/bililive-go/livesched/src/pkg/sentry"
	"github.com/bililive-go/livesched/src/session"
)

const (
	apiRouterPrefix = "/api"
)

// Deps 展示层依赖
type Deps struct {
	Bind          string
	Session       *session.Session
	Notifications *notify.Center
	Dispatcher    events.Dispatcher
	// Metrics 为 nil 时 /metrics 返回 404
	Metrics *metrics.Collector
}

type Server struct {
	server *http.Server
	hub    *SSEHub
	deps   Deps

	listeners map[events.EventType]*events.EventListener
}

func (s *Server) initMux() *mux.Router {
	m := mux.NewRouter()
	m.Use(log)

	apiRoute := m.PathPrefix(apiRouterPrefix).Subrouter()
	apiRoute.Use(mux.CORSMethodMiddleware(apiRoute))
	apiRoute.HandleFunc("/schedules", s.getSchedules).Methods("GET")
	apiRoute.HandleFunc("/schedules", s.createSchedule).Methods("POST")
	apiRoute.HandleFunc("/schedules/{id}", s.getSchedule).Methods("GET")
	apiRoute.HandleFunc("/schedules/{id}/stop", s.stopSchedule).Methods("POST")
	apiRoute.HandleFunc("/schedules/{id}", s.deleteSchedule).Methods("DELETE")
	apiRoute.HandleFunc("/emergency-stop", s.emergencyStop).Methods("POST")
	apiRoute.HandleFunc("/debug", s.getDebug).Methods("GET")
	apiRoute.HandleFunc("/debug", s.putDebug).Methods("PUT")
	apiRoute.HandleFunc("/debug/refresh", s.refreshDebug).Methods("POST")
	apiRoute.HandleFunc("/status", s.getStatus).Methods("GET")
	apiRoute.HandleFunc("/notifications", s.getNotifications).Methods("GET")
	apiRoute.HandleFunc("/sse", s.hub.ServeHTTP).Methods("GET")

	m.Handle("/metrics", s.deps.Metrics.Handler())
	return m
}

// NewServer 创建 HTTP 服务并挂到 instance 上
func NewServer(ctx context.Context, deps Deps) *Server {
	s := &Server{
		hub:  NewSSEHub(),
		deps: deps,
	}
	s.server = &http.Server{
		Addr:              deps.Bind,
		Handler:           s.initMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if inst := instance.GetInstance(ctx); inst != nil {
		inst.Server = s
	}
	return s
}

// Handler 路由，测试时直接挂到 httptest 上
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Hub SSE 连接管理
func (s *Server) Hub() *SSEHub {
	return s.hub
}

func (s *Server) Start(ctx context.Context) error {
	s.registerSSEListeners()

	inst := instance.GetInstance(ctx)
	if inst != nil {
		inst.WaitGroup.Add(1)
	}
	bilisentry.Go(func() {
		if inst != nil {
			defer inst.WaitGroup.Done()
		}
		switch err := s.server.ListenAndServe(); err {
		case nil, http.ErrServerClosed:
		default:
			applog.GetLogger().WithError(err).Error("http server stopped")
		}
	})
	applog.GetLogger().Infof("Server start at %s", s.server.Addr)
	return nil
}

func (s *Server) Close(ctx context.Context) {
	s.unregisterSSEListeners()
	// 先关闭 SSE 长连接，否则 Shutdown 会一直等待
	s.hub.Close()

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx2); err != nil {
		applog.GetLogger().WithError(err).Error("failed to shutdown server")
	}
	applog.GetLogger().Infof("Server close")
}
