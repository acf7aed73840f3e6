package di

import (
	"errors"
	"fmt"
	"strings"
)

// dependency 是定义之间的一条边。
type dependency struct {
	name     string
	optional bool
	extends  bool
}

// graphBuilder 处理依赖图的构建和验证。
type graphBuilder struct {
	c *Container
}

func newGraphBuilder(c *Container) *graphBuilder {
	return &graphBuilder{c: c}
}

// Validate 静态检查服务依赖图，不创建任何实例。
// 报告循环依赖、缺失的非可选依赖以及缺失的父服务，多个错误用 errors.Join 合并。
func (c *Container) Validate() error {
	return newGraphBuilder(c).validate()
}

func (g *graphBuilder) validate() error {
	var errs []error
	dependencies := make(map[string][]dependency)

	// 1. 提取所有服务的依赖关系
	for _, name := range g.c.ServiceNames() {
		deps, err := g.inspectDependencies(g.c.services[name])
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: service %q: %w", ErrInvalidService, name, err))
			continue
		}
		dependencies[name] = deps

		for _, dep := range deps {
			if g.c.Has(dep.name) || dep.optional {
				continue
			}
			if dep.extends {
				errs = append(errs, fmt.Errorf("%w: service %q extends undefined service %q", ErrInvalidService, name, dep.name))
			} else {
				errs = append(errs, fmt.Errorf("%w: %q required by %q", ErrServiceNotFound, dep.name, name))
			}
		}
	}

	// 2. 基于 DFS 的循环检测
	visited := make(map[string]bool)
	recursionStack := make(map[string]bool)
	var path []string

	var visit func(string) error
	visit = func(u string) error {
		visited[u] = true
		recursionStack[u] = true
		path = append(path, u)

		for _, dep := range dependencies[u] {
			v, err := g.c.ResolveServiceName(dep.name)
			if err != nil {
				continue
			}
			if !visited[v] {
				if err := visit(v); err != nil {
					return err
				}
			} else if recursionStack[v] {
				return fmt.Errorf("%w: %s -> %s", ErrCircularReference, strings.Join(cycleFrom(path, v), " -> "), v)
			}
		}

		recursionStack[u] = false
		path = path[:len(path)-1]
		return nil
	}

	for _, name := range g.c.ServiceNames() {
		if !visited[name] {
			if err := visit(name); err != nil {
				errs = append(errs, err)
				// 从下一个未访问的服务继续
				clear(recursionStack)
				path = path[:0]
			}
		}
	}

	return errors.Join(errs...)
}

// inspectDependencies 返回服务依赖的服务列表。
func (g *graphBuilder) inspectDependencies(def *ServiceDefinition) ([]dependency, error) {
	var deps []dependency

	if def.Extends != "" {
		parent, err := g.c.paramResolver.Resolve(def.Extends)
		if err != nil {
			return nil, err
		}
		if name, ok := parent.(string); ok && name != "" {
			deps = append(deps, dependency{name: normalizeName(name), extends: true})
		}
	}

	if def.Kind == KindFactory {
		deps = append(deps, dependency{name: def.FactoryService})
	}

	values := []any{def.Arguments, def.FactoryArguments}
	for _, call := range def.Calls {
		values = append(values, call.Arguments)
	}
	for _, v := range values {
		found, err := g.collectLinks(v)
		if err != nil {
			return nil, err
		}
		deps = append(deps, found...)
	}
	return deps, nil
}

// collectLinks 在参数结构中查找 @name 与 @name? 链接。
func (g *graphBuilder) collectLinks(value any) ([]dependency, error) {
	switch v := value.(type) {
	case []any:
		var deps []dependency
		for _, item := range v {
			found, err := g.collectLinks(item)
			if err != nil {
				return nil, err
			}
			deps = append(deps, found...)
		}
		return deps, nil
	case map[string]any:
		var deps []dependency
		for _, key := range sortedKeys(v) {
			found, err := g.collectLinks(v[key])
			if err != nil {
				return nil, err
			}
			deps = append(deps, found...)
		}
		return deps, nil
	case string:
		resolved, err := g.c.paramResolver.Resolve(v)
		if err != nil {
			return nil, err
		}
		s, ok := resolved.(string)
		if !ok || !isLink(s) {
			return nil, nil
		}
		name := s[1:]
		optional := strings.HasSuffix(name, "?")
		return []dependency{{name: normalizeName(strings.TrimSuffix(name, "?")), optional: optional}}, nil
	}
	return nil, nil
}

func cycleFrom(path []string, start string) []string {
	for i, name := range path {
		if name == start {
			return path[i:]
		}
	}
	return path
}
