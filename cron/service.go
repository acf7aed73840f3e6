package cron

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gocrud/container/logging"
	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
)

// JobFunc 定时任务函数，ctx 在调度器停止时取消
type JobFunc func(ctx context.Context) error

// jobDefinition 任务定义
type jobDefinition struct {
	spec    string
	name    string
	handler JobFunc
}

// Scheduler Cron 定时任务托管服务
// 实现 hosting.HostedService 接口
type Scheduler struct {
	cron   *cron.Cron
	logger logging.Logger
	mu     sync.RWMutex
	jobs   map[string]cron.EntryID // 任务名称到任务ID的映射
	runs   map[string]int

	ctx    context.Context
	cancel context.CancelFunc
}

// options Cron 服务配置选项
type options struct {
	// Location 时区设置，默认 UTC
	Location string
	// EnableSeconds 是否启用秒级精度（默认分钟级）
	EnableSeconds bool
	// Logger 自定义日志记录器
	Logger logging.Logger
	// EnableCronLogger 是否启用 cron 库的内部调度日志（默认 false）
	EnableCronLogger bool
}

// newScheduler 创建 Cron 托管服务
func newScheduler(opts ...func(*options)) (*Scheduler, error) {
	opt := &options{
		Location: "UTC",
		Logger:   logging.NewNopLogger(),
	}
	for _, o := range opts {
		o(opt)
	}

	loc, err := time.LoadLocation(opt.Location)
	if err != nil {
		return nil, fmt.Errorf("cron: invalid location %q: %w", opt.Location, err)
	}

	cronOpts := []cron.Option{cron.WithLocation(loc)}

	// 只在启用时添加 cron 库的日志记录器
	if opt.EnableCronLogger {
		cronOpts = append(cronOpts, cron.WithLogger(newCronLogger(opt.Logger)))
	}

	cronOpts = append(cronOpts, cron.WithChain(
		cron.Recover(newCronLogger(opt.Logger)),
		cron.SkipIfStillRunning(newCronLogger(opt.Logger)),
	))

	if opt.EnableSeconds {
		cronOpts = append(cronOpts, cron.WithSeconds())
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cronOpts...),
		logger: opt.Logger,
		jobs:   make(map[string]cron.EntryID),
		runs:   make(map[string]int),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// AddJob 添加定时任务
// spec: cron 表达式，如 "*/5 * * * *" (每5分钟) 或 "@every 1h"
// name: 任务名称（用于管理和日志），同名任务会被替换
func (s *Scheduler) AddJob(spec, name string, job JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("cron: failed to add job %q: %w", name, err)
	}

	if old, exists := s.jobs[name]; exists {
		s.cron.Remove(old)
	}
	s.jobs[name] = entryID
	s.logger.Info("Cron job registered",
		logging.Field{Key: "job", Value: name},
		logging.Field{Key: "spec", Value: spec})
	return nil
}

func (s *Scheduler) run(name string, job JobFunc) {
	s.logger.Debug("Cron job started", logging.Field{Key: "job", Value: name})
	err := job(s.ctx)

	s.mu.Lock()
	s.runs[name]++
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Cron job failed",
			logging.Field{Key: "job", Value: name},
			logging.Field{Key: "error", Value: err.Error()})
		return
	}
	s.logger.Debug("Cron job completed", logging.Field{Key: "job", Value: name})
}

// RemoveJob 移除定时任务
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, exists := s.jobs[name]; exists {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		s.logger.Info("Cron job removed", logging.Field{Key: "job", Value: name})
	}
}

// Jobs 返回已注册的任务名（有序）
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := lo.Keys(s.jobs)
	slices.Sort(names)
	return names
}

// Runs 返回任务已执行的次数
func (s *Scheduler) Runs(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runs[name]
}

// Start 启动调度并阻塞，直到 ctx 取消
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Scheduler starting", logging.Field{Key: "jobs", Value: len(s.Jobs())})
	s.cron.Start()

	select {
	case <-ctx.Done():
	case <-s.ctx.Done():
	}
	return nil
}

// Stop 停止调度，等待正在执行的任务结束或 ctx 超时
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("Scheduler stopping")
	stopCtx := s.cron.Stop()
	defer s.cancel()

	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
