package cron

import "github.com/gocrud/container/logging"

// Builder Cron 配置构建器
type Builder struct {
	enableSeconds    bool
	enableCronLogger bool
	location         string
	logger           logging.Logger
	jobs             []jobDefinition
}

// NewBuilder 创建 Cron 构建器
func NewBuilder() *Builder {
	return &Builder{
		location: "UTC",
		logger:   logging.NewNopLogger(),
	}
}

// WithSeconds 启用秒级精度
func (b *Builder) WithSeconds() *Builder {
	b.enableSeconds = true
	return b
}

// WithLocation 设置时区
func (b *Builder) WithLocation(location string) *Builder {
	b.location = location
	return b
}

// WithLogger 设置日志记录器
func (b *Builder) WithLogger(logger logging.Logger) *Builder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// EnableCronLogger 启用 cron 库的内部调度日志
func (b *Builder) EnableCronLogger() *Builder {
	b.enableCronLogger = true
	return b
}

// AddJob 添加任务
func (b *Builder) AddJob(spec, name string, handler JobFunc) *Builder {
	b.jobs = append(b.jobs, jobDefinition{
		spec:    spec,
		name:    name,
		handler: handler,
	})
	return b
}

// Build 构建调度器并注册全部任务，表达式无效时返回错误
func (b *Builder) Build() (*Scheduler, error) {
	s, err := newScheduler(func(opts *options) {
		opts.EnableSeconds = b.enableSeconds
		opts.EnableCronLogger = b.enableCronLogger
		opts.Location = b.location
		opts.Logger = b.logger
	})
	if err != nil {
		return nil, err
	}

	for _, job := range b.jobs {
		if err := s.AddJob(job.spec, job.name, job.handler); err != nil {
			return nil, err
		}
	}
	return s, nil
}
