package di

import (
	"fmt"
	"reflect"
	"strings"
)

// Options 服务注册选项，键与定义文件中的键一致。
//
// 支持的键:
//
//	class, extends, arguments, call, factory, factory_service, factory_method,
//	factory_arguments, notify, abstract, singleton, alias, aliases, private, read_only
type Options map[string]any

// serviceOptions 是展开并校验之后的注册选项。
type serviceOptions struct {
	class            string
	extends          string
	arguments        []any
	calls            []MethodCall
	factoryService   string
	factoryMethod    string
	factoryArguments []any
	notify           []Notification
	abstract         bool
	singleton        bool
	private          bool
	readOnly         bool
	alias            string
	aliases          []string
}

func defaultServiceOptions() *serviceOptions {
	return &serviceOptions{singleton: true}
}

// expandOptions 展开简写形式，合并默认值并校验。
//
//  1. 字符串视为类名
//  2. 2~3 个元素的列表视为紧凑工厂 [service, method, args?]
//  3. factory: [service, method, args?] 展开为 factory_* 选项
func expandOptions(name string, raw any) (*serviceOptions, error) {
	opts, err := normalizeOptions(name, raw)
	if err != nil {
		return nil, err
	}

	if factory, ok := opts["factory"]; ok && factory != nil {
		list, ok := toList(factory)
		if !ok || len(list) < 2 {
			return nil, invalidService(name, "factory must be [service, method, arguments?]")
		}
		opts["factory_service"] = list[0]
		opts["factory_method"] = list[1]
		if len(list) > 2 {
			opts["factory_arguments"] = list[2]
		} else {
			opts["factory_arguments"] = nil
		}
	}

	o := defaultServiceOptions()
	for key, value := range opts {
		if err := o.apply(name, key, value); err != nil {
			return nil, err
		}
	}

	if o.factoryService != "" && o.factoryMethod == "" {
		return nil, invalidService(name, "factory service requires a factory method")
	}
	if o.factoryService != "" {
		if o.abstract {
			return nil, invalidService(name, "factory service cannot be abstract")
		}
		if o.extends != "" {
			return nil, invalidService(name, "factory service cannot extend another service")
		}
	}

	return o, nil
}

func normalizeOptions(name string, raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case string:
		return map[string]any{"class": v}, nil
	case Options:
		return copyMap(v), nil
	case map[string]any:
		return copyMap(v), nil
	}

	if list, ok := toList(raw); ok {
		if len(list) == 2 || len(list) == 3 {
			return map[string]any{"factory": list}, nil
		}
		return nil, invalidService(name, "list definition must be [service, method, arguments?]")
	}
	if m, ok := toMap(raw); ok {
		return m, nil
	}

	return nil, invalidService(name, fmt.Sprintf("unsupported definition type %T", raw))
}

func (o *serviceOptions) apply(name, key string, value any) error {
	var err error
	switch key {
	case "class":
		o.class, err = optionalString(name, key, value)
	case "extends":
		o.extends, err = optionalString(name, key, value)
	case "arguments":
		if value == nil {
			return nil
		}
		list, ok := toList(value)
		if !ok {
			return invalidService(name, "arguments must be a list")
		}
		o.arguments = list
	case "call":
		o.calls, err = parseCalls(name, value)
	case "factory":
		// 已经展开为 factory_*
	case "factory_service":
		var svc string
		svc, err = optionalString(name, key, value)
		o.factoryService = strings.TrimLeft(svc, "@")
	case "factory_method":
		o.factoryMethod, err = optionalString(name, key, value)
	case "factory_arguments":
		o.factoryArguments = wrapList(value)
	case "notify":
		o.notify, err = parseNotify(name, value)
	case "abstract":
		o.abstract, err = flag(name, key, value, false)
	case "singleton":
		o.singleton, err = flag(name, key, value, true)
	case "private":
		o.private, err = flag(name, key, value, false)
	case "read_only":
		o.readOnly, err = flag(name, key, value, false)
	case "alias":
		switch v := value.(type) {
		case nil:
		case bool:
			if v {
				return invalidService(name, "alias must name a service")
			}
		case string:
			o.alias = v
		default:
			return invalidService(name, "alias must be a string")
		}
	case "aliases":
		o.aliases, err = parseAliases(name, value)
	default:
		return invalidService(name, fmt.Sprintf("unknown option %q", key))
	}
	return err
}

// parseCalls 解析 [[method, args], ...]，标量参数会被包装成单元素列表。
func parseCalls(name string, value any) ([]MethodCall, error) {
	if value == nil {
		return nil, nil
	}
	entries, ok := toList(value)
	if !ok {
		return nil, invalidService(name, "call must be a list of [method, arguments]")
	}

	calls := make([]MethodCall, 0, len(entries))
	for _, entry := range entries {
		call, ok := toList(entry)
		if !ok || len(call) == 0 {
			return nil, invalidService(name, "invalid method call definition")
		}
		method, ok := call[0].(string)
		if !ok || method == "" {
			return nil, invalidService(name, "invalid method call definition")
		}
		var args []any
		if len(call) > 1 {
			args = wrapList(call[1])
		}
		calls = append(calls, MethodCall{Method: method, Arguments: args})
	}
	return calls, nil
}

// parseNotify 解析 [[target, method, args], ...]，目标名去掉开头的 @。
func parseNotify(name string, value any) ([]Notification, error) {
	if value == nil {
		return nil, nil
	}
	entries, ok := toList(value)
	if !ok {
		return nil, invalidService(name, "notify must be a list of [service, method, arguments]")
	}

	notifications := make([]Notification, 0, len(entries))
	for _, entry := range entries {
		n, ok := toList(entry)
		if !ok || len(n) == 0 {
			return nil, invalidService(name, "invalid service name to notify")
		}
		target, ok := n[0].(string)
		if !ok || target == "" {
			return nil, invalidService(name, "invalid service name to notify")
		}
		target = strings.TrimLeft(target, "@")

		var method string
		if len(n) > 1 {
			method, _ = n[1].(string)
		}
		if method == "" {
			return nil, invalidService(name, fmt.Sprintf("invalid method name to notify %q", target))
		}

		var args []any
		if len(n) > 2 {
			args = wrapList(n[2])
		}
		notifications = append(notifications, Notification{
			Sender:    name,
			Target:    normalizeName(target),
			Method:    method,
			Arguments: args,
		})
	}
	return notifications, nil
}

func parseAliases(name string, value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	}
	list, ok := toList(value)
	if !ok {
		return nil, invalidService(name, "aliases must be a string or a list of strings")
	}
	aliases := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok || s == "" {
			return nil, invalidService(name, "aliases must be a string or a list of strings")
		}
		aliases = append(aliases, s)
	}
	return aliases, nil
}

func optionalString(name, key string, value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", invalidService(name, fmt.Sprintf("option %q must be a string", key))
	}
}

func flag(name, key string, value any, def bool) (bool, error) {
	switch v := value.(type) {
	case nil:
		return def, nil
	case bool:
		return v, nil
	default:
		return false, invalidService(name, fmt.Sprintf("option %q must be a bool", key))
	}
}

func invalidService(name, msg string) error {
	return fmt.Errorf("%w: service %q: %s", ErrInvalidService, name, msg)
}

// wrapList 列表原样返回，标量包装成单元素列表，nil 返回空。
func wrapList(value any) []any {
	if value == nil {
		return nil
	}
	if list, ok := toList(value); ok {
		return list
	}
	return []any{value}
}

// toList 把任意切片或数组转换为 []any。
func toList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		list := make([]any, len(v))
		for i, s := range v {
			list[i] = s
		}
		return list, true
	}

	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		// []byte 按标量处理
		return nil, false
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}

// toMap 把键为字符串的 map 转换为 map[string]any。
func toMap(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case Options:
		return v, true
	}

	rv := reflect.ValueOf(value)
	if !rv.IsValid() || rv.Kind() != reflect.Map {
		return nil, false
	}
	m := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key, ok := iter.Key().Interface().(string)
		if !ok {
			return nil, false
		}
		m[key] = iter.Value().Interface()
	}
	return m, true
}

func copyMap(m map[string]any) map[string]any {
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// normalizeName 服务名与别名不区分大小写。
func normalizeName(name string) string {
	return strings.ToLower(name)
}
