package di

import (
	"errors"
	"fmt"
)

// plan 是按服务名缓存的实例化计划：展开继承后的定义与构造调用器。
// 参数值不在缓存中，每次实例化都会重新解析。
type plan struct {
	def   *ServiceDefinition
	class string
	ctor  Invoker
}

// ServiceResolver 把服务定义解析为实例。
//
// 状态: 单例短路 -> 抽象检查 -> 展开继承 -> 实例化 -> 绑定实例 -> 方法调用
type ServiceResolver struct {
	locator     Locator
	definitions DefinitionLookup
	params      *ParameterResolver
	args        *ArgumentResolver
	types       *TypeRegistry
	plans       map[string]*plan
}

// NewServiceResolver 创建服务解析器
func NewServiceResolver(locator Locator, definitions DefinitionLookup, params *ParameterResolver, args *ArgumentResolver, types *TypeRegistry) *ServiceResolver {
	return &ServiceResolver{
		locator:     locator,
		definitions: definitions,
		params:      params,
		args:        args,
		types:       types,
		plans:       make(map[string]*plan),
	}
}

// Resolve 创建或返回服务实例。
func (r *ServiceResolver) Resolve(def *ServiceDefinition) (any, error) {
	if def.retainsInstance() && def.instantiated {
		return def.instance, nil
	}

	if def.Abstract {
		return nil, fmt.Errorf("%w: %q", ErrAbstractService, def.Name)
	}

	p, err := r.plan(def)
	if err != nil {
		return nil, wrapServiceError(def.Name, err)
	}

	instance, err := r.instantiate(p)
	if err != nil {
		return nil, wrapServiceError(def.Name, err)
	}

	// 方法调用之前绑定实例
	retain := def.retainsInstance()
	if retain {
		def.attach(instance)
	}

	if err := r.applyCalls(instance, p.def.Calls); err != nil {
		if retain {
			def.detach()
		}
		return nil, wrapServiceError(def.Name, err)
	}

	return instance, nil
}

// ClearPlans 清空实例化计划缓存。
func (r *ServiceResolver) ClearPlans() {
	clear(r.plans)
}

func (r *ServiceResolver) plan(def *ServiceDefinition) (*plan, error) {
	if p, ok := r.plans[def.Name]; ok {
		return p, nil
	}

	flat, err := r.flatten(def, map[string]bool{def.Name: true})
	if err != nil {
		return nil, err
	}

	p := &plan{def: flat}
	if flat.Kind == KindClass {
		class, err := r.className(flat.Class)
		if err != nil {
			return nil, err
		}
		ctor, err := r.types.Invoker(class)
		if err != nil {
			return nil, err
		}
		p.class = class
		p.ctor = ctor
	}

	r.plans[def.Name] = p
	return p, nil
}

// flatten 展开 extends 链，返回合并后的新定义，不修改原定义。
func (r *ServiceResolver) flatten(def *ServiceDefinition, seen map[string]bool) (*ServiceDefinition, error) {
	if def.Extends == "" {
		return def.clone(), nil
	}

	parentName, err := r.params.Resolve(def.Extends)
	if err != nil {
		return nil, err
	}
	name, ok := parentName.(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("extends must resolve to a service name, got %T", parentName)
	}

	canonical, err := r.definitions.ResolveServiceName(name)
	if err != nil {
		return nil, fmt.Errorf("extends undefined service %q: %w", name, err)
	}
	if seen[canonical] {
		return nil, fmt.Errorf("extends cycle at %q", canonical)
	}
	seen[canonical] = true

	parentDef, err := r.definitions.GetDefinition(canonical)
	if err != nil {
		return nil, err
	}
	if parentDef.Kind == KindObject || parentDef.Kind == KindFactory {
		return nil, fmt.Errorf("cannot extend %s service %q", parentDef.Kind, canonical)
	}

	parent, err := r.flatten(parentDef, seen)
	if err != nil {
		return nil, err
	}

	merged := def.clone()
	merged.Extends = ""
	if merged.Kind == KindClass && merged.Class == "" {
		if parent.Kind == KindClosure {
			merged.Kind = KindClosure
			merged.Closure = parent.Closure
		} else {
			merged.Class = parent.Class
		}
	}
	if len(merged.Arguments) == 0 {
		merged.Arguments = append([]any(nil), parent.Arguments...)
	}
	merged.Calls = append(append([]MethodCall(nil), parent.Calls...), def.Calls...)
	return merged, nil
}

func (r *ServiceResolver) className(class string) (string, error) {
	if class == "" {
		return "", fmt.Errorf("no class defined")
	}
	resolved, err := r.params.Resolve(class)
	if err != nil {
		return "", err
	}
	name, ok := resolved.(string)
	if !ok || name == "" {
		return "", fmt.Errorf("class %q must resolve to a type name, got %T", class, resolved)
	}
	return name, nil
}

func (r *ServiceResolver) instantiate(p *plan) (any, error) {
	def := p.def
	switch def.Kind {
	case KindClosure:
		if def.Closure == nil {
			return nil, fmt.Errorf("closure is nil")
		}
		return def.Closure(r.locator)

	case KindObject:
		return def.Object, nil

	case KindFactory:
		factory, err := r.locator.Get(def.FactoryService)
		if err != nil {
			return nil, err
		}
		args, err := r.args.ResolveList(def.FactoryArguments, "")
		if err != nil {
			return nil, err
		}
		if !hasMethod(factory, def.FactoryMethod) {
			return nil, fmt.Errorf("factory %q (%T) has no method %s", def.FactoryService, factory, def.FactoryMethod)
		}
		instance, err := callMethod(factory, def.FactoryMethod, args)
		if err != nil {
			return nil, err
		}
		if instance == nil {
			return nil, fmt.Errorf("factory %q returned nil", def.FactoryService)
		}
		return instance, nil

	default:
		args, err := r.args.ResolveList(def.Arguments, "")
		if err != nil {
			return nil, err
		}
		return p.ctor(args)
	}
}

// applyCalls 在新实例上按顺序执行方法调用（setter 注入）。
func (r *ServiceResolver) applyCalls(instance any, calls []MethodCall) error {
	for _, call := range calls {
		args, err := r.args.ResolveList(call.Arguments, "")
		if err != nil {
			return err
		}
		if !hasMethod(instance, call.Method) {
			return fmt.Errorf("method %s not found on %T", call.Method, instance)
		}
		if _, err := callMethod(instance, call.Method, args); err != nil {
			return err
		}
	}
	return nil
}

// wrapServiceError 包装为 ErrInvalidService，循环引用原样返回。
func wrapServiceError(name string, err error) error {
	if errors.Is(err, ErrCircularReference) {
		return err
	}
	if errors.Is(err, ErrInvalidService) {
		return fmt.Errorf("service %q: %w", name, err)
	}
	return fmt.Errorf("%w: service %q: %w", ErrInvalidService, name, err)
}
