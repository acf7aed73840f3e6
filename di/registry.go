package di

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// TypeRegistry 把类型标识映射到构造函数。
// 构造函数返回 T 或 (T, error)，参数按位置注入。
type TypeRegistry struct {
	mu    sync.RWMutex
	ctors map[string]reflect.Value
}

// NewTypeRegistry 创建空的类型注册表
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{ctors: make(map[string]reflect.Value)}
}

// Register 注册构造函数。
func (r *TypeRegistry) Register(name string, ctor any) error {
	if name == "" {
		return fmt.Errorf("di: type name is empty")
	}
	fn := reflect.ValueOf(ctor)
	if fn.Kind() != reflect.Func {
		return fmt.Errorf("di: constructor for type %q must be a function, got %T", name, ctor)
	}
	fnType := fn.Type()
	if fnType.NumOut() == 0 || fnType.NumOut() > 2 {
		return fmt.Errorf("di: constructor for type %q must return T or (T, error)", name)
	}
	if fnType.NumOut() == 2 && fnType.Out(1) != errorType {
		return fmt.Errorf("di: constructor for type %q must return T or (T, error)", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[name] = fn
	return nil
}

// MustRegister 注册构造函数，失败时 panic
func (r *TypeRegistry) MustRegister(name string, ctor any) *TypeRegistry {
	if err := r.Register(name, ctor); err != nil {
		panic(err)
	}
	return r
}

// Has 报告类型是否已注册。
func (r *TypeRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ctors[name]
	return ok
}

// Names 返回已注册的类型标识（有序）。
func (r *TypeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := lo.Keys(r.ctors)
	slices.Sort(names)
	return names
}

// Invoker 返回类型的构造调用器。
func (r *TypeRegistry) Invoker(name string) (Invoker, error) {
	r.mu.RLock()
	fn, ok := r.ctors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("di: type %q is not registered", name)
	}

	invoke, err := newFuncInvoker(fn, fmt.Sprintf("constructor of %s", name))
	if err != nil {
		return nil, err
	}
	return func(args []any) (any, error) {
		instance, err := invoke(args)
		if err != nil {
			return nil, err
		}
		if instance == nil {
			return nil, fmt.Errorf("di: constructor of %s returned nil instance", name)
		}
		return instance, nil
	}, nil
}

// New 使用位置参数创建类型实例。
func (r *TypeRegistry) New(name string, args ...any) (any, error) {
	invoke, err := r.Invoker(name)
	if err != nil {
		return nil, err
	}
	return invoke(args)
}
