package di

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gocrud/container/logging"
	"github.com/samber/lo"
)

// ContainerName 容器把自身注册为该名称的只读服务。
const ContainerName = "container"

var containerAliases = []string{"service_container", "services_container", "di_container"}

// Option 配置容器。
type Option func(*Container)

// WithLogger 设置容器日志记录器。
func WithLogger(logger logging.Logger) Option {
	return func(c *Container) {
		c.logger = logger
	}
}

// WithTypes 设置类型注册表。
func WithTypes(types *TypeRegistry) Option {
	return func(c *Container) {
		c.types = types
	}
}

// Container 按名称管理参数与服务定义，负责循环引用检测与通知投递。
// Container 不是并发安全的。
type Container struct {
	parameters  map[string]any
	services    map[string]*ServiceDefinition
	aliases     map[string]string
	loadedFiles []string

	// 正在解析的服务名，用于循环引用检测
	loading []string

	types  *TypeRegistry
	logger logging.Logger

	paramResolver   *ParameterResolver
	argResolver     *ArgumentResolver
	serviceResolver *ServiceResolver
	notifications   *NotificationResolver

	// 每次成功获取服务后回调
	observer func(name string, instance any)
}

// New 创建新的容器
func New(opts ...Option) *Container {
	c := newContainer(opts...)
	c.registerSelf(c)
	return c
}

func newContainer(opts ...Option) *Container {
	c := &Container{
		parameters: make(map[string]any),
		services:   make(map[string]*ServiceDefinition),
		aliases:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.types == nil {
		c.types = NewTypeRegistry()
	}
	if c.logger == nil {
		c.logger = logging.NewNopLogger()
	}

	c.paramResolver = NewParameterResolver(c)
	c.argResolver = NewArgumentResolver(c, c.paramResolver)
	c.serviceResolver = NewServiceResolver(c, c, c.paramResolver, c.argResolver, c.types)
	c.notifications = NewNotificationResolver(c, c.argResolver)
	return c
}

func (c *Container) registerSelf(self any) {
	err := c.Set(ContainerName, self, Options{
		"read_only": true,
		"aliases":   containerAliases,
	})
	if err != nil {
		panic(err)
	}
}

// Types 返回容器使用的类型注册表
func (c *Container) Types() *TypeRegistry {
	return c.types
}

// RegisterType 向类型注册表注册构造函数。
func (c *Container) RegisterType(name string, ctor any) error {
	return c.types.Register(name, ctor)
}

// Set 注册现成的对象或闭包。
// 支持 Closure、func(Locator) (any, error) 与 func(Locator) any，其余值作为对象服务。
func (c *Container) Set(name string, value any, options ...Options) error {
	name = c.nameForWrite(name)

	def := &ServiceDefinition{}
	switch v := value.(type) {
	case nil:
		return invalidService(name, "cannot set a nil service")
	case Closure:
		def.Kind, def.Closure = KindClosure, v
	case func(Locator) (any, error):
		def.Kind, def.Closure = KindClosure, v
	case func(Locator) any:
		def.Kind = KindClosure
		def.Closure = func(l Locator) (any, error) { return v(l), nil }
	default:
		def.Kind, def.Object = KindObject, v
	}

	merged := Options{}
	for _, o := range options {
		for k, v := range o {
			merged[k] = v
		}
	}
	return c.addService(name, def, merged)
}

// Register 按选项注册服务。options 可以是类名字符串、Options 或紧凑工厂列表。
func (c *Container) Register(name string, options any) error {
	name = c.nameForWrite(name)
	return c.addService(name, &ServiceDefinition{Kind: KindClass}, options)
}

// nameForWrite 写入别名时实际覆盖其指向的服务。
func (c *Container) nameForWrite(name string) string {
	name = normalizeName(name)
	if resolved, err := c.ResolveServiceName(name); err == nil {
		return resolved
	}
	return name
}

func (c *Container) addService(name string, def *ServiceDefinition, raw any) error {
	if name == "" {
		return invalidService(name, "service name is empty")
	}
	if existing, ok := c.services[name]; ok && existing.ReadOnly {
		return fmt.Errorf("%w: cannot overwrite %q", ErrReadOnly, name)
	}

	o, err := expandOptions(name, raw)
	if err != nil {
		return err
	}

	if o.alias != "" {
		return c.addAlias(name, o.alias)
	}

	def.Name = name
	if o.factoryService != "" {
		def.Kind = KindFactory
		def.Object, def.Closure = nil, nil
		def.FactoryService = normalizeName(o.factoryService)
		def.FactoryMethod = o.factoryMethod
		def.FactoryArguments = o.factoryArguments
	}
	if def.Kind == KindClass {
		if o.class == "" && o.extends == "" {
			return invalidService(name, "class or extends is required")
		}
		def.Class = o.class
	}
	def.Extends = o.extends
	def.Arguments = o.arguments
	def.Calls = o.calls
	def.Notify = o.notify
	def.Abstract = o.abstract
	def.Singleton = o.singleton
	def.Private = o.private
	def.ReadOnly = o.readOnly

	aliases, err := c.checkAliases(name, o.aliases)
	if err != nil {
		return err
	}

	c.services[name] = def
	c.logger.Debug("Registered service",
		logging.Field{Key: "service", Value: name},
		logging.Field{Key: "kind", Value: def.Kind.String()})

	for _, alias := range aliases {
		if err := c.addAlias(alias, name); err != nil {
			return err
		}
	}

	for _, n := range def.Notify {
		delivered, err := c.notifications.Register(n)
		if err != nil {
			return err
		}
		c.logger.Debug("Registered notification",
			logging.Field{Key: "sender", Value: n.Sender},
			logging.Field{Key: "target", Value: n.Target},
			logging.Field{Key: "method", Value: n.Method},
			logging.Field{Key: "delivered", Value: delivered})
	}

	c.clearInternalCaches()
	return nil
}

// checkAliases 在写入定义之前检查别名冲突，返回需要新增的别名。
func (c *Container) checkAliases(name string, aliases []string) ([]string, error) {
	var out []string
	for _, alias := range aliases {
		alias = normalizeName(alias)
		if alias == name {
			return nil, invalidService(name, "service cannot alias itself")
		}
		if target, ok := c.aliases[alias]; ok && target == name {
			continue
		}
		if _, ok := c.services[alias]; ok {
			return nil, invalidService(name, fmt.Sprintf("alias %q would overwrite a defined service", alias))
		}
		if c.Has(alias) {
			return nil, invalidService(name, fmt.Sprintf("alias %q is already defined", alias))
		}
		out = append(out, alias)
	}
	return out, nil
}

// addAlias 添加别名，并把已发给别名的通知转移到目标服务。
func (c *Container) addAlias(alias, target string) error {
	alias, target = normalizeName(alias), normalizeName(target)
	if alias == target {
		return invalidService(alias, "service cannot alias itself")
	}
	if existing, ok := c.aliases[alias]; ok && existing == target {
		return nil
	}
	if c.Has(alias) {
		return invalidService(alias, fmt.Sprintf("trying to overwrite a defined service with an alias for %q", target))
	}

	// 别名链不能回到自身
	seen := map[string]bool{}
	for cur := target; ; {
		if cur == alias {
			return invalidService(alias, fmt.Sprintf("alias cycle through %q", target))
		}
		next, ok := c.aliases[cur]
		if !ok || seen[cur] {
			break
		}
		seen[cur] = true
		cur = next
	}

	c.aliases[alias] = target
	c.logger.Debug("Registered alias",
		logging.Field{Key: "alias", Value: alias},
		logging.Field{Key: "target", Value: target})
	return c.notifications.Reroute(alias, target)
}

// Get 获取服务实例。
func (c *Container) Get(name string) (any, error) {
	canonical, err := c.ResolveServiceName(name)
	if err != nil {
		return nil, err
	}

	if slices.Contains(c.loading, canonical) {
		chain := strings.Join(append(slices.Clone(c.loading), canonical), " -> ")
		return nil, fmt.Errorf("%w: %s", ErrCircularReference, chain)
	}

	def := c.services[canonical]
	if def.Private && len(c.loading) == 0 && !c.notifications.IsResolving() {
		return nil, fmt.Errorf("%w: %s", ErrPrivateService, describeName(name, canonical))
	}

	// 出错时只回退本层及以上的帧，外层调用者处理错误后仍可继续解析
	depth := len(c.loading)
	c.loading = append(c.loading, canonical)
	instance, err := c.serviceResolver.Resolve(def)
	if err != nil {
		c.loading = c.loading[:depth]
		return nil, err
	}

	c.notifications.QueueForResolving(canonical, instance)
	c.loading = c.loading[:depth]
	c.logger.Trace("Resolved service", logging.Field{Key: "service", Value: canonical})

	if c.observer != nil {
		c.observer(canonical, instance)
	}

	if len(c.loading) == 0 {
		if err := c.notifications.ResolveQueue(); err != nil {
			return nil, err
		}
	}
	return instance, nil
}

// Has 报告服务或别名是否已定义。
func (c *Container) Has(name string) bool {
	_, err := c.ResolveServiceName(name)
	return err == nil
}

// GetDefinition 返回服务定义
func (c *Container) GetDefinition(name string) (*ServiceDefinition, error) {
	canonical, err := c.ResolveServiceName(name)
	if err != nil {
		return nil, err
	}
	return c.services[canonical], nil
}

// ResolveServiceName 沿别名链解析出服务的真实名称。
func (c *Container) ResolveServiceName(name string) (string, error) {
	requested := normalizeName(name)
	seen := make(map[string]bool)
	for cur := requested; ; {
		if _, ok := c.services[cur]; ok {
			return cur, nil
		}
		next, ok := c.aliases[cur]
		if !ok || seen[cur] {
			break
		}
		seen[cur] = true
		cur = next
	}
	return "", fmt.Errorf("%w: %q", ErrServiceNotFound, requested)
}

// SetParameter 设置参数，覆盖已有值。
func (c *Container) SetParameter(name string, value any) {
	c.parameters[name] = value
	c.clearInternalCaches()
}

// GetParameter 返回已解析占位符的参数值。
func (c *Container) GetParameter(name string) (any, error) {
	raw, ok := c.parameters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrParameterNotFound, name)
	}
	return c.paramResolver.Resolve(raw)
}

// HasParameter 报告参数是否已定义
func (c *Container) HasParameter(name string) bool {
	_, ok := c.parameters[name]
	return ok
}

// DumpParameters 返回全部参数（已解析）。
func (c *Container) DumpParameters() (map[string]any, error) {
	resolved, err := c.paramResolver.Resolve(map[string]any(c.parameters))
	if err != nil {
		return nil, err
	}
	return resolved.(map[string]any), nil
}

// ResolveParameters 解析任意值中的占位符。
func (c *Container) ResolveParameters(value any) (any, error) {
	return c.paramResolver.Resolve(value)
}

// LoadFromArray 从定义结构加载参数与服务：{parameters: {...}, services: {...}}。
// 服务按名称排序后注册。
func (c *Container) LoadFromArray(definitions map[string]any) error {
	if raw, ok := definitions["parameters"]; ok && raw != nil {
		params, ok := toMap(raw)
		if !ok {
			return fmt.Errorf("%w: parameters must be a map, got %T", ErrInvalidFile, raw)
		}
		for _, name := range sortedKeys(params) {
			c.SetParameter(name, params[name])
		}
	}

	if raw, ok := definitions["services"]; ok && raw != nil {
		services, ok := toMap(raw)
		if !ok {
			return fmt.Errorf("%w: services must be a map, got %T", ErrInvalidFile, raw)
		}
		for _, name := range sortedKeys(services) {
			if err := c.Register(name, services[name]); err != nil {
				return err
			}
		}
	}
	return nil
}

// ServiceNames 返回全部服务名（有序）
func (c *Container) ServiceNames() []string {
	return sortedKeys(c.services)
}

// Aliases 返回别名映射副本
func (c *Container) Aliases() map[string]string {
	return lo.Assign(c.aliases)
}

// PendingNotifications 返回尚未投递的通知
func (c *Container) PendingNotifications() map[string][]Notification {
	return c.notifications.Pending()
}

// DeliveredNotifications 返回已投递的通知
func (c *Container) DeliveredNotifications() map[string][]Notification {
	return c.notifications.Delivered()
}

// LoadedFiles 返回已加载的定义文件
func (c *Container) LoadedFiles() []string {
	return slices.Clone(c.loadedFiles)
}

func (c *Container) clearInternalCaches() {
	c.serviceResolver.ClearPlans()
}

func describeName(requested, canonical string) string {
	requested = normalizeName(requested)
	if requested == canonical {
		return fmt.Sprintf("%q", canonical)
	}
	return fmt.Sprintf("%q (alias for %q)", requested, canonical)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
