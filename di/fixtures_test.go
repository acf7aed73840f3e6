package di_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/gocrud/container/di"
)

// SimpleService 非零大小，保证不同实例的地址不同
type SimpleService struct {
	_ byte
}

func NewSimpleService() *SimpleService { return &SimpleService{} }

type ArgumentedService struct {
	Simple *SimpleService
	Name   string
}

func NewArgumentedService(simple *SimpleService, name string) *ArgumentedService {
	return &ArgumentedService{Simple: simple, Name: name}
}

type ParametrizedService struct {
	Host string
	Port int
}

func NewParametrizedService(host string, port int) *ParametrizedService {
	return &ParametrizedService{Host: host, Port: port}
}

// CalledService 记录 setter 注入
type CalledService struct {
	Peer  any
	Calls int
}

func NewCalledService() *CalledService { return &CalledService{} }

func (s *CalledService) SetPeer(peer any) {
	s.Peer = peer
	s.Calls++
}

type SimpleFactory struct{}

func NewSimpleFactory() *SimpleFactory { return &SimpleFactory{} }

func (f *SimpleFactory) Get() *SimpleService { return &SimpleService{} }

func (f *SimpleFactory) Create(name string) *ArgumentedService {
	return &ArgumentedService{Name: name}
}

func (f *SimpleFactory) Broken() (*SimpleService, error) {
	return nil, errors.New("factory is broken")
}

// CollectionService 接收通知
type CollectionService struct {
	Services []any
	Names    []string
}

func NewCollectionService() *CollectionService { return &CollectionService{} }

func (c *CollectionService) AddService(service any) {
	c.Services = append(c.Services, service)
}

func (c *CollectionService) AddNamed(name string) {
	c.Names = append(c.Names, name)
}

type CircularA struct{ B *CircularB }
type CircularB struct{ A *CircularA }

func NewCircularA(b *CircularB) *CircularA { return &CircularA{B: b} }
func NewCircularB(a *CircularA) *CircularB { return &CircularB{A: a} }

func newTypes() *di.TypeRegistry {
	return di.NewTypeRegistry().
		MustRegister("SimpleService", NewSimpleService).
		MustRegister("ArgumentedService", NewArgumentedService).
		MustRegister("ParametrizedService", NewParametrizedService).
		MustRegister("CalledService", NewCalledService).
		MustRegister("SimpleFactory", NewSimpleFactory).
		MustRegister("CollectionService", NewCollectionService).
		MustRegister("CircularA", NewCircularA).
		MustRegister("CircularB", NewCircularB)
}

func newContainer(t *testing.T) *di.Container {
	t.Helper()
	return di.New(di.WithTypes(newTypes()))
}

// memoryCache 测试用的缓存后端
type memoryCache struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

func (m *memoryCache) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, fmt.Errorf("%w: memory cache is empty", di.ErrCacheDataNotFound)
	}
	return append([]byte(nil), m.data...), nil
}

func (m *memoryCache) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.saves++
	return nil
}

func (m *memoryCache) Flush(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}
