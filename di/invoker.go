package di

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Invoker 封装反射调用的细节，预先检查参数、错误和返回值
type Invoker func(args []any) (any, error)

// newFuncInvoker 为构造函数或方法创建调用器。
// 缺少的尾部参数使用零值填充，支持可变参数。
func newFuncInvoker(fn reflect.Value, label string) (Invoker, error) {
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("di: %s is not a function (%s)", label, fn.Kind())
	}
	fnType := fn.Type()

	return func(args []any) (any, error) {
		in, err := buildArgs(fnType, args)
		if err != nil {
			return nil, fmt.Errorf("di: %s: %w", label, err)
		}

		return unpackResults(fn.Call(in), label)
	}, nil
}

func buildArgs(fnType reflect.Type, args []any) ([]reflect.Value, error) {
	numIn := fnType.NumIn()
	fixed := numIn
	if fnType.IsVariadic() {
		fixed = numIn - 1
	}

	if !fnType.IsVariadic() && len(args) > numIn {
		return nil, fmt.Errorf("too many arguments: want %d, got %d", numIn, len(args))
	}

	in := make([]reflect.Value, 0, max(len(args), fixed))
	for i := 0; i < fixed; i++ {
		paramType := fnType.In(i)
		if i >= len(args) {
			in = append(in, reflect.Zero(paramType))
			continue
		}
		v, err := convertArg(args[i], paramType)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in = append(in, v)
	}

	if fnType.IsVariadic() {
		elemType := fnType.In(numIn - 1).Elem()
		for i := fixed; i < len(args); i++ {
			v, err := convertArg(args[i], elemType)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			in = append(in, v)
		}
	}
	return in, nil
}

// unpackResults 处理 (T)、(T, error) 以及 (error) 形式的返回值。
func unpackResults(results []reflect.Value, label string) (any, error) {
	if len(results) == 0 {
		return nil, nil
	}

	last := results[len(results)-1]
	if last.Type() == errorType || (last.Kind() == reflect.Interface && last.Type().Implements(errorType)) {
		if !last.IsNil() {
			return nil, fmt.Errorf("di: %s failed: %w", label, last.Interface().(error))
		}
		results = results[:len(results)-1]
	}
	if len(results) == 0 {
		return nil, nil
	}

	first := results[0]
	if isNil(first) {
		return nil, nil
	}
	return first.Interface(), nil
}

// convertArg 把解析后的参数值转换为目标参数类型。
func convertArg(arg any, target reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch target.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(target), nil
		default:
			return reflect.Value{}, fmt.Errorf("cannot use nil as %s", target)
		}
	}

	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(target) {
		return v, nil
	}

	switch {
	case isNumber(v.Kind()) && isNumber(target.Kind()):
		return v.Convert(target), nil
	case v.Kind() == reflect.String && target.Kind() == reflect.String:
		return v.Convert(target), nil
	case v.Kind() == reflect.Slice && target.Kind() == reflect.Slice:
		out := reflect.MakeSlice(target, v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			elem, err := convertArg(v.Index(i).Interface(), target.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			out.Index(i).Set(elem)
		}
		return out, nil
	case v.Kind() == reflect.Map && target.Kind() == reflect.Map:
		out := reflect.MakeMapWithSize(target, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key, err := convertArg(iter.Key().Interface(), target.Key())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("key %v: %w", iter.Key(), err)
			}
			val, err := convertArg(iter.Value().Interface(), target.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("key %v: %w", iter.Key(), err)
			}
			out.SetMapIndex(key, val)
		}
		return out, nil
	case v.Type().ConvertibleTo(target) && v.Kind() == target.Kind():
		return v.Convert(target), nil
	}

	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", arg, target)
}

// findMethod 先按原名查找方法，再尝试首字母大写（setName -> SetName）。
func findMethod(instance any, method string) (reflect.Value, bool) {
	if instance == nil || method == "" {
		return reflect.Value{}, false
	}
	v := reflect.ValueOf(instance)
	if m := v.MethodByName(method); m.IsValid() {
		return m, true
	}
	r, size := utf8.DecodeRuneInString(method)
	exported := string(unicode.ToUpper(r)) + method[size:]
	if exported != method {
		if m := v.MethodByName(exported); m.IsValid() {
			return m, true
		}
	}
	return reflect.Value{}, false
}

// hasMethod 报告实例是否有可调用的方法。
func hasMethod(instance any, method string) bool {
	_, ok := findMethod(instance, method)
	return ok
}

// callMethod 通过反射调用实例上的方法。
func callMethod(instance any, method string, args []any) (any, error) {
	m, ok := findMethod(instance, method)
	if !ok {
		return nil, fmt.Errorf("di: method %s not found on %T", method, instance)
	}
	invoke, err := newFuncInvoker(m, fmt.Sprintf("%T.%s", instance, upperFirst(method)))
	if err != nil {
		return nil, err
	}
	return invoke(args)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + s[size:]
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
