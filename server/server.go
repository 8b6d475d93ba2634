package server

import (
	"context"
	"net/http"
	"time"

	"bopus/config"
	"bopus/core/audio"
	"bopus/core/events"
	"bopus/logger"
	"bopus/model"
	"bopus/repository"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Splitter 执行一次切分，由 audio.PipelineProcessor 实现
type Splitter interface {
	Process(ctx context.Context, req audio.SplitRequest) (*model.Run, error)
}

// Server HTTP API
type Server struct {
	cfg      *config.Config
	splitter Splitter
	runs     repository.RunRepository // nil 表示未启用运行历史
	hub      *events.Hub
	upgrader websocket.Upgrader
}

// New 创建 HTTP 服务
func New(cfg *config.Config, splitter Splitter, runs repository.RunRepository, hub *events.Hub) *Server {
	return &Server{
		cfg:      cfg,
		splitter: splitter,
		runs:     runs,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Router 构建路由
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/split", s.handleSplit).Methods(http.MethodPost)
	api.HandleFunc("/runs", s.handleListRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", s.handleGetRun).Methods(http.MethodGet)

	ws := router.PathPrefix("/ws").Subrouter()
	ws.Use(s.authMiddleware)
	ws.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	// 包在路由外层，预检请求不会被方法匹配拦截
	return corsMiddleware(router)
}

// ListenAndServe 启动服务，ctx 取消后优雅关闭
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.cfg.HTTPAddr,
		Handler:      s.Router(),
		ReadTimeout:  5 * time.Minute, // 上传大文件
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP 服务启动", logger.String("addr", s.cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("正在关闭 HTTP 服务")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("HTTP 服务已停止")
	return nil
}

// corsMiddleware 添加 CORS 头
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
