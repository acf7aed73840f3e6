package di

import "fmt"

// Kind 服务定义的种类。
type Kind int

const (
	// KindClass 通过类型注册表中的构造函数创建实例。
	KindClass Kind = iota
	// KindClosure 通过闭包创建实例。
	KindClosure
	// KindObject 直接持有现成的实例。
	KindObject
	// KindFactory 调用另一个服务上的工厂方法创建实例。
	KindFactory
)

// String 返回种类名称
func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindClosure:
		return "closure"
	case KindObject:
		return "object"
	case KindFactory:
		return "factory"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Closure 闭包服务的构造函数，参数为容器本身。
type Closure func(c Locator) (any, error)

// MethodCall 实例创建后要调用的方法（setter 注入）。
type MethodCall struct {
	Method    string
	Arguments []any
}

// Notification 发送方服务投递给目标服务的延迟方法调用。
type Notification struct {
	Sender    string
	Target    string
	Method    string
	Arguments []any
}

// ServiceDefinition 包含注册服务的元数据。
type ServiceDefinition struct {
	Name string
	Kind Kind

	Class   string // 类型注册表中的标识，可以是 %param% 占位符
	Closure Closure
	Object  any

	FactoryService   string
	FactoryMethod    string
	FactoryArguments []any

	Arguments []any
	Calls     []MethodCall
	Notify    []Notification
	Extends   string

	Abstract  bool
	Singleton bool
	ReadOnly  bool
	Private   bool

	// 仅单例持有实例
	instance     any
	instantiated bool
}

// Instance 返回已创建的实例
func (d *ServiceDefinition) Instance() (any, bool) {
	return d.instance, d.instantiated
}

// IsInstantiated 报告服务是否已经创建过实例。
func (d *ServiceDefinition) IsInstantiated() bool {
	return d.instantiated
}

func (d *ServiceDefinition) attach(instance any) {
	d.instance = instance
	d.instantiated = true
}

func (d *ServiceDefinition) detach() {
	d.instance = nil
	d.instantiated = false
}

// retainsInstance 报告解析结果是否要保存在定义上。
// Object 服务只在首次解析后才视为已创建，保证方法调用只执行一次。
func (d *ServiceDefinition) retainsInstance() bool {
	return d.Singleton || d.Kind == KindObject
}

// clone 返回不带实例的副本，切片会被复制。
func (d *ServiceDefinition) clone() *ServiceDefinition {
	c := *d
	c.instance = nil
	c.instantiated = false
	c.Arguments = append([]any(nil), d.Arguments...)
	c.FactoryArguments = append([]any(nil), d.FactoryArguments...)
	c.Calls = append([]MethodCall(nil), d.Calls...)
	c.Notify = append([]Notification(nil), d.Notify...)
	return &c
}

// String 便于日志输出
func (d *ServiceDefinition) String() string {
	switch d.Kind {
	case KindFactory:
		return fmt.Sprintf("%s(factory @%s::%s)", d.Name, d.FactoryService, d.FactoryMethod)
	case KindClass:
		if d.Class == "" && d.Extends != "" {
			return fmt.Sprintf("%s(extends %s)", d.Name, d.Extends)
		}
		return fmt.Sprintf("%s(class %s)", d.Name, d.Class)
	default:
		return fmt.Sprintf("%s(%s)", d.Name, d.Kind)
	}
}
