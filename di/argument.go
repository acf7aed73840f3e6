package di

import (
	"errors"
	"fmt"
	"strings"
)

// ArgumentResolver 解析参数中的占位符与服务链接。
//
//	@name   引用服务
//	@name?  可选引用，服务不存在时为 nil
//	@       发送方服务实例（仅通知投递时）
//	@=      发送方服务名称（仅通知投递时）
type ArgumentResolver struct {
	services ServiceLookup
	params   *ParameterResolver
}

// NewArgumentResolver 创建参数解析器
func NewArgumentResolver(services ServiceLookup, params *ParameterResolver) *ArgumentResolver {
	return &ArgumentResolver{services: services, params: params}
}

// Resolve 递归解析单个参数，sender 为空表示没有发送方上下文。
func (r *ArgumentResolver) Resolve(argument any, sender string) (any, error) {
	switch v := argument.(type) {
	case []any:
		return r.ResolveList(v, sender)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			resolved, err := r.Resolve(item, sender)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case string:
		resolved, err := r.params.Resolve(v)
		if err != nil {
			return nil, err
		}
		s, ok := resolved.(string)
		if !ok {
			return resolved, nil
		}
		return r.resolveLink(s, sender)
	default:
		return argument, nil
	}
}

// ResolveList 按顺序解析参数列表
func (r *ArgumentResolver) ResolveList(arguments []any, sender string) ([]any, error) {
	out := make([]any, len(arguments))
	for i, arg := range arguments {
		resolved, err := r.Resolve(arg, sender)
		if err != nil {
			return nil, err
		}
		out[i] = resolved
	}
	return out, nil
}

func (r *ArgumentResolver) resolveLink(link, sender string) (any, error) {
	if !strings.HasPrefix(link, "@") {
		return link, nil
	}

	if sender != "" {
		switch link {
		case "@":
			return r.get(sender, link)
		case "@=":
			return sender, nil
		}
	}

	name := link[1:]
	optional := strings.HasSuffix(name, "?")
	if optional {
		name = strings.TrimSuffix(name, "?")
		if !r.services.Has(name) {
			return nil, nil
		}
	}
	return r.get(name, link)
}

func (r *ArgumentResolver) get(name, link string) (any, error) {
	instance, err := r.services.Get(name)
	if err != nil {
		if errors.Is(err, ErrCircularReference) {
			return nil, err
		}
		return nil, fmt.Errorf("argument %q: %w", link, err)
	}
	return instance, nil
}

// isLink 报告字符串是否是服务链接（供依赖图分析使用）。
func isLink(s string) bool {
	return strings.HasPrefix(s, "@") && s != "@" && s != "@="
}
