package di

import (
	"fmt"
	"reflect"
)

type queuedInstance struct {
	name     string
	instance any
}

// NotificationResolver 管理服务之间的延迟方法调用。
// 目标服务创建后按注册顺序（FIFO）投递，每条通知只投递一次。
type NotificationResolver struct {
	definitions DefinitionLookup
	args        *ArgumentResolver

	pending   map[string][]Notification
	delivered map[string][]Notification
	queue     []queuedInstance

	resolving  bool
	delivering int
}

// NewNotificationResolver 创建通知解析器
func NewNotificationResolver(definitions DefinitionLookup, args *ArgumentResolver) *NotificationResolver {
	return &NotificationResolver{
		definitions: definitions,
		args:        args,
		pending:     make(map[string][]Notification),
		delivered:   make(map[string][]Notification),
	}
}

// Register 注册通知。目标已经创建时立即投递并返回 true，否则加入目标的等待队列。
func (r *NotificationResolver) Register(n Notification) (bool, error) {
	n.Target = normalizeName(n.Target)
	if canonical, err := r.definitions.ResolveServiceName(n.Target); err == nil {
		n.Target = canonical
		if def, err := r.definitions.GetDefinition(canonical); err == nil && def.IsInstantiated() {
			instance, _ := def.Instance()
			return r.deliver(instance, n)
		}
	}

	r.pending[n.Target] = append(r.pending[n.Target], n)
	return false, nil
}

// QueueForResolving 把新创建的实例加入投递队列，同一名称的同一实例只入队一次。
func (r *NotificationResolver) QueueForResolving(name string, instance any) {
	for _, item := range r.queue {
		if item.name == name && sameInstance(item.instance, instance) {
			return
		}
	}
	r.queue = append(r.queue, queuedInstance{name: name, instance: instance})
}

// ResolveQueue 依次向队列中的实例投递等待的通知。
// 投递过程中可能再次获取服务，重入时直接返回。
// 投递失败的通知放回目标队列的最前面，下次获取该目标时重试。
func (r *NotificationResolver) ResolveQueue() error {
	if r.resolving {
		return nil
	}
	r.resolving = true
	defer func() { r.resolving = false }()

	for len(r.queue) > 0 {
		item := r.queue[0]
		r.queue = r.queue[1:]

		for len(r.pending[item.name]) > 0 {
			n := r.pending[item.name][0]
			r.pending[item.name] = r.pending[item.name][1:]
			if _, err := r.deliver(item.instance, n); err != nil {
				r.pending[item.name] = append([]Notification{n}, r.pending[item.name]...)
				return err
			}
		}
		delete(r.pending, item.name)
	}
	return nil
}

// IsResolving 报告是否正在投递通知。
func (r *NotificationResolver) IsResolving() bool {
	return r.resolving || r.delivering > 0
}

// Reroute 把发给别名的通知转移到别名最终指向的服务。
func (r *NotificationResolver) Reroute(alias, target string) error {
	alias = normalizeName(alias)
	list := r.pending[alias]
	if len(list) == 0 {
		return nil
	}
	delete(r.pending, alias)

	canonical := normalizeName(target)
	if resolved, err := r.definitions.ResolveServiceName(canonical); err == nil {
		canonical = resolved
	}

	for _, n := range list {
		n.Target = canonical
		if _, err := r.Register(n); err != nil {
			return err
		}
	}
	return nil
}

// Pending 返回等待投递的通知副本
func (r *NotificationResolver) Pending() map[string][]Notification {
	return copyNotifications(r.pending)
}

// Delivered 返回已投递的通知副本
func (r *NotificationResolver) Delivered() map[string][]Notification {
	return copyNotifications(r.delivered)
}

// deliver 在目标实例上调用方法。目标没有该方法时跳过。
func (r *NotificationResolver) deliver(target any, n Notification) (bool, error) {
	if !hasMethod(target, n.Method) {
		return false, nil
	}

	r.delivering++
	defer func() { r.delivering-- }()

	args, err := r.args.ResolveList(n.Arguments, n.Sender)
	if err != nil {
		return false, fmt.Errorf("di: notify %q.%s from %q: %w", n.Target, n.Method, n.Sender, err)
	}
	if _, err := callMethod(target, n.Method, args); err != nil {
		return false, fmt.Errorf("di: notify %q.%s from %q: %w", n.Target, n.Method, n.Sender, err)
	}

	r.delivered[n.Target] = append(r.delivered[n.Target], n)
	return true, nil
}

func copyNotifications(src map[string][]Notification) map[string][]Notification {
	out := make(map[string][]Notification, len(src))
	for target, list := range src {
		if len(list) == 0 {
			continue
		}
		out[target] = append([]Notification(nil), list...)
	}
	return out
}

// sameInstance 比较两个实例的身份，引用类型比较指针。
func sameInstance(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}
	if va.Type().Comparable() {
		return a == b
	}
	return false
}
