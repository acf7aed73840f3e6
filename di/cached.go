package di

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/gocrud/container/logging"
)

// Cache 缓存后端，只处理字节数据。
// 没有缓存数据时 Load 返回 ErrCacheDataNotFound。
type Cache interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Flush(ctx context.Context) error
}

// CachedContainer 可以把定义快照保存到缓存并从缓存恢复的容器。
// 闭包服务与对象服务不能缓存，应在恢复之后再设置。
type CachedContainer struct {
	*Container

	cache           Cache
	preCache        []queuedInstance
	loadedFromCache bool
}

// NewCached 创建带缓存的容器
func NewCached(cache Cache, opts ...Option) *CachedContainer {
	cc := &CachedContainer{
		Container: newContainer(opts...),
		cache:     cache,
	}
	cc.registerSelf(cc)
	cc.serviceResolver.locator = cc
	cc.observer = cc.remember
	return cc
}

// remember 记录缓存加载之前获取过的服务，加载后向它们投递缓存中的通知。
func (cc *CachedContainer) remember(name string, instance any) {
	if cc.loadedFromCache {
		return
	}
	for i, item := range cc.preCache {
		if item.name == name {
			cc.preCache[i].instance = instance
			return
		}
	}
	cc.preCache = append(cc.preCache, queuedInstance{name: name, instance: instance})
}

// LoadedFromCache 报告是否已经从缓存恢复
func (cc *CachedContainer) LoadedFromCache() bool {
	return cc.loadedFromCache
}

// LoadFromCache 从缓存恢复容器状态。容器中已有的数据优先于缓存数据。
func (cc *CachedContainer) LoadFromCache(ctx context.Context) error {
	data, err := cc.cache.Load(ctx)
	if err != nil {
		return err
	}

	snap, err := decodeSnapshot(data)
	if err != nil {
		return err
	}
	if err := cc.merge(snap); err != nil {
		return err
	}

	cc.notifications.queue = append(slices.Clone(cc.preCache), cc.notifications.queue...)
	cc.preCache = nil
	cc.loadedFromCache = true
	cc.clearInternalCaches()

	cc.logger.Info("Loaded container from cache",
		logging.Field{Key: "services", Value: len(snap.Services)},
		logging.Field{Key: "parameters", Value: len(snap.Parameters)})

	return cc.notifications.ResolveQueue()
}

func (cc *CachedContainer) merge(snap *snapshot) error {
	for name, value := range snap.Parameters {
		if _, ok := cc.parameters[name]; !ok {
			cc.parameters[name] = value
		}
	}

	for name, rec := range snap.Services {
		name = normalizeName(name)
		if _, ok := cc.services[name]; ok {
			continue
		}
		def, err := definitionFromRecord(name, rec)
		if err != nil {
			return err
		}
		cc.services[name] = def
	}

	for alias, target := range snap.Aliases {
		if _, ok := cc.aliases[alias]; ok {
			continue
		}
		if _, ok := cc.services[alias]; ok {
			continue
		}
		cc.aliases[alias] = target
	}

	delivered := cc.notifications.delivered
	for target, records := range snap.Notifications {
		if _, ok := cc.notifications.pending[target]; ok {
			continue
		}
		var list []Notification
		for _, rec := range records {
			n := notificationFromRecord(rec)
			if containsNotification(delivered[target], n) {
				continue
			}
			list = append(list, n)
		}
		if len(list) > 0 {
			cc.notifications.pending[target] = list
		}
	}

	for _, file := range snap.LoadedFiles {
		if !slices.Contains(cc.loadedFiles, file) {
			cc.loadedFiles = append(cc.loadedFiles, file)
		}
	}
	return nil
}

// CacheCurrentState 校验全部定义后把当前状态写入缓存。校验失败时不写入任何数据。
func (cc *CachedContainer) CacheCurrentState(ctx context.Context) error {
	snap, err := cc.snapshot()
	if err != nil {
		return err
	}
	data, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("di: encode cache snapshot: %w", err)
	}
	if err := cc.cache.Save(ctx, data); err != nil {
		return err
	}

	cc.logger.Info("Saved container to cache",
		logging.Field{Key: "services", Value: len(snap.Services)},
		logging.Field{Key: "bytes", Value: len(data)})
	return nil
}

func (cc *CachedContainer) snapshot() (*snapshot, error) {
	for _, name := range cc.ServiceNames() {
		def := cc.services[name]
		if err := cacheable(def); err != nil {
			return nil, err
		}
	}
	for _, name := range sortedKeys(cc.parameters) {
		if err := checkPlain(cc.parameters[name]); err != nil {
			return nil, fmt.Errorf("%w: parameter %q: %w", ErrNotCacheable, name, err)
		}
	}

	snap := &snapshot{
		Parameters:    make(map[string]any, len(cc.parameters)),
		Services:      make(map[string]serviceRecord, len(cc.services)),
		Aliases:       make(map[string]string, len(cc.aliases)),
		Notifications: make(map[string][]notificationRecord),
		LoadedFiles:   slices.Clone(cc.loadedFiles),
	}
	if snap.LoadedFiles == nil {
		snap.LoadedFiles = []string{}
	}

	for name, value := range cc.parameters {
		snap.Parameters[name] = value
	}
	for name, def := range cc.services {
		if name == ContainerName {
			continue
		}
		snap.Services[name] = recordFromDefinition(def)
	}
	for alias, target := range cc.aliases {
		if target == ContainerName {
			continue
		}
		snap.Aliases[alias] = target
	}

	// 已投递的通知排在等待中的通知之前
	for target, list := range cc.notifications.delivered {
		for _, n := range list {
			snap.Notifications[target] = append(snap.Notifications[target], recordFromNotification(n))
		}
	}
	for target, list := range cc.notifications.pending {
		for _, n := range list {
			snap.Notifications[target] = append(snap.Notifications[target], recordFromNotification(n))
		}
	}
	for target, records := range snap.Notifications {
		for _, rec := range records {
			if err := checkPlain(rec.Arguments); err != nil {
				return nil, fmt.Errorf("%w: notification %s.%s: %w", ErrNotCacheable, target, rec.Method, err)
			}
		}
	}
	return snap, nil
}

// ClearCache 清空缓存
func (cc *CachedContainer) ClearCache(ctx context.Context) error {
	return cc.cache.Flush(ctx)
}

func cacheable(def *ServiceDefinition) error {
	switch def.Kind {
	case KindClosure:
		return fmt.Errorf("%w: closure service %q, set it after loading the cache", ErrNotCacheable, def.Name)
	case KindObject:
		if def.Name != ContainerName {
			return fmt.Errorf("%w: object service %q, set it after loading the cache", ErrNotCacheable, def.Name)
		}
		return nil
	}

	values := []any{def.Arguments, def.FactoryArguments}
	for _, call := range def.Calls {
		values = append(values, call.Arguments)
	}
	for _, n := range def.Notify {
		values = append(values, n.Arguments)
	}
	for _, v := range values {
		if err := checkPlain(v); err != nil {
			return fmt.Errorf("%w: service %q: %w", ErrNotCacheable, def.Name, err)
		}
	}
	return nil
}

func containsNotification(list []Notification, n Notification) bool {
	for _, item := range list {
		if item.Sender == n.Sender && item.Target == n.Target && item.Method == n.Method &&
			reflect.DeepEqual(normalizeList(item.Arguments), normalizeList(n.Arguments)) {
			return true
		}
	}
	return false
}
