package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/container/di"
	"github.com/gocrud/container/logging"
)

// Builder 容器检查器主机构建器（基于 Gin）
type Builder struct {
	logger logging.Logger
	port   int
	engine *gin.Engine
	lock   sync.Locker
}

// NewBuilder 创建 Web 构建器
func NewBuilder() *Builder {
	// 设置 Gin 为发布模式（默认）
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	// 默认中间件：恢复 panic
	engine.Use(gin.Recovery())

	return &Builder{
		logger: logging.NewNopLogger(),
		port:   8080,
		engine: engine,
		lock:   &sync.Mutex{},
	}
}

// UseLogger 设置日志记录器
func (b *Builder) UseLogger(logger logging.Logger) *Builder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// UsePort 设置端口，0 表示随机端口
func (b *Builder) UsePort(port int) *Builder {
	b.port = port
	return b
}

// UseLock 设置访问容器时持有的锁。
// 容器本身不是并发安全的，与其他写入方（例如定时任务）共用同一把锁。
func (b *Builder) UseLock(lock sync.Locker) *Builder {
	if lock != nil {
		b.lock = lock
	}
	return b
}

// Use 使用全局中间件
func (b *Builder) Use(middleware ...gin.HandlerFunc) *Builder {
	b.engine.Use(middleware...)
	return b
}

// Engine 获取 Gin 引擎（用于高级定制）
func (b *Builder) Engine() *gin.Engine {
	return b.engine
}

// Build 构建 Web 主机并挂载只读路由
func (b *Builder) Build(container *di.Container) *Host {
	h := &Host{
		port:      b.port,
		engine:    b.engine,
		container: container,
		lock:      b.lock,
		logger:    b.logger,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", b.port),
			Handler: b.engine,
		},
	}
	h.mountRoutes(b.engine)
	return h
}

// Host 容器检查器主机
type Host struct {
	port      int
	engine    *gin.Engine
	server    *http.Server
	logger    logging.Logger
	container *di.Container
	lock      sync.Locker

	mu      sync.Mutex
	address string
}

// Handler 返回 HTTP 处理器，便于测试或嵌入其他服务
func (h *Host) Handler() http.Handler {
	return h.engine
}

// Address 获取监听地址 (e.g., "[::]:50234")
// 仅在 Start 后有效
func (h *Host) Address() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.address
}

// Start 启动 Web 主机
// 注意：此方法会阻塞，直到服务退出。
func (h *Host) Start(ctx context.Context) error {
	// 监听端口 (同步，确保端口可用)
	addr := fmt.Sprintf(":%d", h.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web: failed to listen on %s: %w", addr, err)
	}

	h.mu.Lock()
	h.address = ln.Addr().String()
	h.mu.Unlock()

	h.logger.Info("Inspector started",
		logging.Field{Key: "address", Value: ln.Addr().String()})

	// Serve 会一直阻塞直到 Shutdown 被调用或发生错误
	if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		h.logger.Error("Inspector error", logging.Field{Key: "error", Value: err.Error()})
		return err
	}
	return nil
}

// Stop 停止 Web 主机
func (h *Host) Stop(ctx context.Context) error {
	h.logger.Info("Stopping inspector")

	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Error("Failed to shutdown inspector gracefully",
			logging.Field{Key: "error", Value: err.Error()})
		return err
	}

	h.logger.Info("Inspector stopped")
	return nil
}
