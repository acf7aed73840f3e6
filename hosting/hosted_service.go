package hosting

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gocrud/container/logging"
)

// HostedService 托管服务接口
// 管理器会在独立的 goroutine 中调用 Start
type HostedService interface {
	// Start 启动服务。该方法应阻塞执行，直到 context 被取消或发生错误。
	Start(ctx context.Context) error

	// Stop 执行优雅关闭逻辑。
	Stop(ctx context.Context) error
}

// HostedServiceManager 托管服务管理器
type HostedServiceManager struct {
	services []HostedService
	names    []string
	logger   logging.Logger
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

// NewHostedServiceManager 创建托管服务管理器
func NewHostedServiceManager(logger logging.Logger) *HostedServiceManager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &HostedServiceManager{
		services: make([]HostedService, 0),
		logger:   logger,
	}
}

// Add 添加托管服务，name 仅用于日志
func (m *HostedServiceManager) Add(name string, service HostedService) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, service)
	m.names = append(m.names, name)
}

// Len 返回托管服务数量
func (m *HostedServiceManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.services)
}

// StartAll 启动所有托管服务
// 每个服务在独立的 goroutine 中启动，返回的通道接收服务的启动错误
func (m *HostedServiceManager) StartAll(ctx context.Context) <-chan error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errCh := make(chan error, len(m.services))

	m.logger.Info(fmt.Sprintf("Starting %d hosted services", len(m.services)))

	for i, service := range m.services {
		name := m.names[i]
		m.wg.Add(1)
		go func(svc HostedService) {
			defer m.wg.Done()

			m.logger.Debug("Starting hosted service", logging.Field{Key: "service", Value: name})

			if err := svc.Start(ctx); err != nil {
				// 区分正常的 context 取消和真正的错误
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					m.logger.Debug("Hosted service stopped (context done)", logging.Field{Key: "service", Value: name})
					return
				}
				m.logger.Error("Hosted service error",
					logging.Field{Key: "service", Value: name},
					logging.Field{Key: "error", Value: err.Error()})
				errCh <- fmt.Errorf("hosting: %s: %w", name, err)
				return
			}

			m.logger.Debug("Hosted service completed", logging.Field{Key: "service", Value: name})
		}(service)
	}

	return errCh
}

// StopAll 反向并发停止所有托管服务，返回全部停止错误
func (m *HostedServiceManager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.logger.Info(fmt.Sprintf("Stopping %d hosted services", len(m.services)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := len(m.services) - 1; i >= 0; i-- {
		name, svc := m.names[i], m.services[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Stop(ctx); err != nil {
				m.logger.Error("Failed to stop hosted service",
					logging.Field{Key: "service", Value: name},
					logging.Field{Key: "error", Value: err.Error()})
				mu.Lock()
				errs = append(errs, fmt.Errorf("hosting: stop %s: %w", name, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	m.logger.Info("All hosted services stopped")
	return errors.Join(errs...)
}

// Wait 等待所有服务的 Start 返回
func (m *HostedServiceManager) Wait() {
	m.wg.Wait()
}
