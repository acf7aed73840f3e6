package di

import (
	"fmt"
	"strconv"
	"strings"
)

// ParameterResolver 替换值中的 %name% 占位符。
//
//   - 至少包含两个 % 才会尝试替换
//   - %% 输出字面量 %
//   - 整个字符串恰好是一个占位符时返回参数原值（不转换类型）
//   - 未定义的占位符原样保留
//   - 在更长的字符串中嵌入非标量参数会返回 ErrInvalidParameter
type ParameterResolver struct {
	params ParameterLookup
	active map[string]bool
}

// NewParameterResolver 创建参数解析器
func NewParameterResolver(params ParameterLookup) *ParameterResolver {
	return &ParameterResolver{
		params: params,
		active: make(map[string]bool),
	}
}

// Resolve 递归解析列表与 map 中的占位符。
func (r *ParameterResolver) Resolve(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return r.resolveString(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := r.Resolve(item)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			resolved, err := r.Resolve(item)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

func (r *ParameterResolver) resolveString(s string) (any, error) {
	if strings.Count(s, "%") < 2 {
		return s, nil
	}

	if name, ok := wholeToken(s); ok {
		if !r.params.HasParameter(name) {
			return s, nil
		}
		return r.lookup(name)
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '%' {
			b.WriteByte(s[i])
			i++
			continue
		}
		if i+1 < len(s) && s[i+1] == '%' {
			b.WriteByte('%')
			i += 2
			continue
		}

		end := scanName(s, i+1)
		if end == i+1 || end >= len(s) || s[end] != '%' {
			b.WriteByte('%')
			i++
			continue
		}

		name := s[i+1 : end]
		if !r.params.HasParameter(name) {
			b.WriteString(s[i : end+1])
		} else {
			value, err := r.lookup(name)
			if err != nil {
				return nil, err
			}
			text, err := scalarString(value)
			if err != nil {
				return nil, fmt.Errorf("%w: parameter %q in %q: %w", ErrInvalidParameter, name, s, err)
			}
			b.WriteString(text)
		}
		i = end + 1
	}
	return b.String(), nil
}

// lookup 读取参数，检测参数之间的循环引用。
func (r *ParameterResolver) lookup(name string) (any, error) {
	if r.active[name] {
		return nil, fmt.Errorf("%w: parameter %q references itself", ErrInvalidParameter, name)
	}
	r.active[name] = true
	defer delete(r.active, name)

	return r.params.GetParameter(name)
}

func wholeToken(s string) (string, bool) {
	if len(s) < 3 || s[0] != '%' || s[len(s)-1] != '%' {
		return "", false
	}
	name := s[1 : len(s)-1]
	if scanName(name, 0) != len(name) {
		return "", false
	}
	return name, true
}

// scanName 返回从 start 开始的参数名结束位置，参数名由 [A-Za-z0-9_.] 组成。
func scanName(s string, start int) int {
	i := start
	for i < len(s) {
		c := s[i]
		if c == '_' || c == '.' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			i++
			continue
		}
		break
	}
	return i
}

// scalarString 把标量转换为可嵌入字符串的形式。
func scalarString(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", v), nil
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("non-scalar value of type %T", value)
	}
}
