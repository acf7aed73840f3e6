package web

import (
	"sync"

	"github.com/gocrud/container/di"
	"github.com/gocrud/container/logging"
)

// BuilderOption 用于配置 Web Builder
type BuilderOption func(*Builder)

// WithPort 设置端口
func WithPort(port int) BuilderOption {
	return func(b *Builder) {
		b.UsePort(port)
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger logging.Logger) BuilderOption {
	return func(b *Builder) {
		b.UseLogger(logger)
	}
}

// WithLock 设置访问容器时持有的锁
func WithLock(lock sync.Locker) BuilderOption {
	return func(b *Builder) {
		b.UseLock(lock)
	}
}

// New 为容器创建检查器主机
func New(container *di.Container, opts ...BuilderOption) *Host {
	builder := NewBuilder()
	for _, opt := range opts {
		opt(builder)
	}
	return builder.Build(container)
}
