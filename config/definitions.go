package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat 定义文件扩展名不受支持
var ErrUnsupportedFormat = errors.New("config: unsupported definitions format")

// ServiceEntry 定义文件中的一个服务，Options 可以是类名、选项 map 或紧凑工厂列表。
type ServiceEntry struct {
	Name    string
	Options any
}

// Definitions 定义文件的内容
type Definitions struct {
	Parameters map[string]any
	Services   []ServiceEntry
}

// ReadDefinitionsFile 读取 YAML、JSON 或 TOML 定义文件。
// YAML 文件中的服务按文档顺序返回，其他格式按名称排序。
func ReadDefinitionsFile(path string) (*Definitions, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch format {
	case "yml", "yaml", "json", "toml":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDefinitions(data, format)
}

// ParseDefinitions 按格式解析定义内容
func ParseDefinitions(data []byte, format string) (*Definitions, error) {
	switch format {
	case "yml", "yaml":
		return parseYamlDefinitions(data)
	case "json":
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
		return definitionsFromMap(normalizeJSON(raw).(map[string]any))
	case "toml":
		var raw map[string]any
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
		return definitionsFromMap(normalizeTOML(raw).(map[string]any))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

type yamlDocument struct {
	Parameters map[string]any `yaml:"parameters"`
	Services   yaml.Node      `yaml:"services"`
}

func parseYamlDefinitions(data []byte) (*Definitions, error) {
	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	defs := &Definitions{Parameters: doc.Parameters}
	if doc.Services.Kind == 0 {
		return defs, nil
	}
	if doc.Services.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("services must be a mapping at line %d", doc.Services.Line)
	}

	// 键值交替出现
	content := doc.Services.Content
	for i := 0; i+1 < len(content); i += 2 {
		var options any
		if err := content[i+1].Decode(&options); err != nil {
			return nil, fmt.Errorf("service %q: %w", content[i].Value, err)
		}
		defs.Services = append(defs.Services, ServiceEntry{Name: content[i].Value, Options: options})
	}
	return defs, nil
}

func definitionsFromMap(raw map[string]any) (*Definitions, error) {
	defs := &Definitions{}
	if params, ok := raw["parameters"]; ok && params != nil {
		m, ok := params.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parameters must be a map, got %T", params)
		}
		defs.Parameters = m
	}
	if services, ok := raw["services"]; ok && services != nil {
		m, ok := services.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("services must be a map, got %T", services)
		}
		names := make([]string, 0, len(m))
		for name := range m {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			defs.Services = append(defs.Services, ServiceEntry{Name: name, Options: m[name]})
		}
	}
	return defs, nil
}

// normalizeJSON 把整数形式的 float64 还原为 int。
func normalizeJSON(value any) any {
	switch v := value.(type) {
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
		return v
	case []any:
		for i := range v {
			v[i] = normalizeJSON(v[i])
		}
		return v
	case map[string]any:
		for k := range v {
			v[k] = normalizeJSON(v[k])
		}
		return v
	default:
		return value
	}
}

// normalizeTOML 把 int64 转换为 int，把表数组转换为 []any。
func normalizeTOML(value any) any {
	switch v := value.(type) {
	case int64:
		return int(v)
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeTOML(item)
		}
		return out
	case []any:
		for i := range v {
			v[i] = normalizeTOML(v[i])
		}
		return v
	case map[string]any:
		for k := range v {
			v[k] = normalizeTOML(v[k])
		}
		return v
	default:
		return value
	}
}
