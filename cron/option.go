package cron

import "github.com/gocrud/container/logging"

// BuilderOption 用于配置 Cron Builder
type BuilderOption func(*Builder)

// WithSeconds 启用秒级精度
func WithSeconds() BuilderOption {
	return func(b *Builder) {
		b.WithSeconds()
	}
}

// WithLocation 设置时区
func WithLocation(location string) BuilderOption {
	return func(b *Builder) {
		b.WithLocation(location)
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger logging.Logger) BuilderOption {
	return func(b *Builder) {
		b.WithLogger(logger)
	}
}

// EnableCronLogger 启用 cron 库的内部调度日志
func EnableCronLogger() BuilderOption {
	return func(b *Builder) {
		b.EnableCronLogger()
	}
}

// AddJob 添加任务
func AddJob(spec, name string, handler JobFunc) BuilderOption {
	return func(b *Builder) {
		b.AddJob(spec, name, handler)
	}
}

// New 按选项创建调度器
func New(opts ...BuilderOption) (*Scheduler, error) {
	builder := NewBuilder()
	for _, opt := range opts {
		opt(builder)
	}
	return builder.Build()
}
