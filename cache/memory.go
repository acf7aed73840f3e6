package cache

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/gocrud/container/di"
)

// Memory 进程内缓存，同一进程中的多个容器可以共享
type Memory struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemory 创建内存缓存
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return nil, fmt.Errorf("%w: memory cache is empty", di.ErrCacheDataNotFound)
	}
	return slices.Clone(m.data), nil
}

func (m *Memory) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = slices.Clone(data)
	return nil
}

func (m *Memory) Flush(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}
