package hosting

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gocrud/container/logging"
)

// DefaultShutdownTimeout 默认的优雅关闭超时
const DefaultShutdownTimeout = 5 * time.Second

// Run 启动全部托管服务并阻塞，直到 ctx 取消、收到退出信号或某个服务出错，随后优雅关闭。
// 服务出错时返回该错误与关闭错误的合并。
func (m *HostedServiceManager) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := m.StartAll(runCtx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		m.logger.Info("Received signal", logging.Field{Key: "signal", Value: sig.String()})
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	stopErr := m.StopAll(shutdownCtx)
	m.Wait()
	return errors.Join(runErr, stopErr)
}
