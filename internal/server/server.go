package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/packagewjx/gpu-usage-recorder/internal/render"
	"github.com/packagewjx/gpu-usage-recorder/internal/store"
	"github.com/packagewjx/gpu-usage-recorder/internal/timeline"
	"github.com/packagewjx/gpu-usage-recorder/pkg/core"
	api "github.com/packagewjx/gpu-usage-recorder/pkg/server"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultPort = 2000
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Port      uint16  // 本服务器监听端口
	MaxMemory float64 // 归一化显存曲线使用的显存容量，单位MiB
	Rows      int     // 绘图时每个用户的显卡行数
}

func (c Config) String() string {
	marshal, _ := json.Marshal(c)
	return string(marshal)
}

func (c *Config) Complete() error {
	if c.Port < 1024 {
		return fmt.Errorf("端口号应该在1024到65535之间，现在为%d", c.Port)
	}
	if c.MaxMemory <= 0 {
		c.MaxMemory = core.DefaultMaxMemory
	}
	if c.Rows <= 0 {
		c.Rows = render.DefaultRows
	}
	return nil
}

type Server interface {
	// 启动HTTP服务器，直到ctx被取消
	Start(ctx context.Context) error
	Handler() http.Handler
}

func NewServer(config *Config, dao store.QueryDao) (Server, error) {
	if err := config.Complete(); err != nil {
		return nil, err
	}

	s := &serverImpl{
		config:  config,
		builder: timeline.NewBuilder(dao),
		router:  mux.NewRouter(),
		logger:  log.WithField("component", "server"),
	}
	s.registerRoutes()
	return s, nil
}

type serverImpl struct {
	config  *Config
	builder *timeline.Builder
	router  *mux.Router
	logger  *log.Entry
}

func (s *serverImpl) registerRoutes() {
	s.router.HandleFunc(api.PathHealthz, s.healthz).Methods(http.MethodGet)
	s.router.HandleFunc(api.PathUsage, s.usage).Methods(http.MethodGet)
	s.router.HandleFunc(api.PathDetails, s.details).Methods(http.MethodGet)
	s.router.HandleFunc(api.PathUserUsage, s.userUsage).Methods(http.MethodGet)
	s.router.HandleFunc(api.PathChart, s.chart).Methods(http.MethodGet)
}

func (s *serverImpl) Handler() http.Handler {
	return s.router
}

func (s *serverImpl) Start(ctx context.Context) error {
	s.logger.Infof("服务器启动。配置：%v", s.config)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "HTTP服务器异常退出")
	case <-ctx.Done():
	}

	s.logger.Info("收到中断信号，关闭HTTP服务器")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "关闭HTTP服务器失败")
	}

	// 等待HTTP服务器结束
	if err := <-errCh; err != nil {
		return errors.Wrap(err, "HTTP关闭出现错误")
	}
	return nil
}
