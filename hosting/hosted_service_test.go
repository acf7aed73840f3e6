package hosting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingService 阻塞直到 ctx 取消
type blockingService struct {
	mu      sync.Mutex
	started bool
	stopped bool
	stopErr error
}

func (s *blockingService) Start(ctx context.Context) error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (s *blockingService) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return s.stopErr
}

func (s *blockingService) state() (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, s.stopped
}

// failingService 启动即失败
type failingService struct{ err error }

func (s failingService) Start(context.Context) error { return s.err }
func (s failingService) Stop(context.Context) error  { return nil }

func TestRunStopsOnContextCancel(t *testing.T) {
	m := NewHostedServiceManager(nil)
	a, b := &blockingService{}, &blockingService{}
	m.Add("a", a)
	m.Add("b", b)
	assert.Equal(t, 2, m.Len())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, time.Second) }()

	require.Eventually(t, func() bool {
		startedA, _ := a.state()
		startedB, _ := b.state()
		return startedA && startedB
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	_, stoppedA := a.state()
	_, stoppedB := b.state()
	assert.True(t, stoppedA)
	assert.True(t, stoppedB)
}

func TestRunReturnsServiceError(t *testing.T) {
	m := NewHostedServiceManager(nil)
	boom := errors.New("boom")
	other := &blockingService{}
	m.Add("other", other)
	m.Add("broken", failingService{err: boom})

	err := m.Run(context.Background(), time.Second)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "broken")

	_, stopped := other.state()
	assert.True(t, stopped)
}

func TestStopAllJoinsErrors(t *testing.T) {
	m := NewHostedServiceManager(nil)
	bad := errors.New("cannot stop")
	m.Add("ok", &blockingService{})
	m.Add("bad", &blockingService{stopErr: bad})

	err := m.StopAll(context.Background())
	assert.ErrorIs(t, err, bad)
	assert.ErrorContains(t, err, "stop bad")
}
