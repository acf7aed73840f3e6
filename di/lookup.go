package di

// ServiceLookup 按名称获取服务。
type ServiceLookup interface {
	Get(name string) (any, error)
	Has(name string) bool
}

// ParameterLookup 按名称获取参数（已解析占位符）。
type ParameterLookup interface {
	GetParameter(name string) (any, error)
	HasParameter(name string) bool
}

// DefinitionLookup 读取服务定义。
type DefinitionLookup interface {
	GetDefinition(name string) (*ServiceDefinition, error)
	ResolveServiceName(name string) (string, error)
}

// Locator 是传给闭包服务的容器视图。
type Locator interface {
	ServiceLookup
	ParameterLookup
}
