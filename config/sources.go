package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	clientv3 "go.etcd.io/etcd/client/v3"
	"gopkg.in/yaml.v3"
)

// readFile 读取配置文件，可选文件不存在时返回 nil
func readFile(path string, optional bool) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// loadFile 读取并解码配置文件，空文件或缺失的可选文件返回空 map
func loadFile(path string, optional bool, format string, decode func([]byte, *map[string]any) error) (map[string]any, error) {
	data, err := readFile(path, optional)
	if err != nil {
		return nil, err
	}
	result := make(map[string]any)
	if len(data) == 0 {
		return result, nil
	}
	if err := decode(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", format, err)
	}
	if result == nil {
		result = make(map[string]any)
	}
	return result, nil
}

// JsonFileSource JSON 文件配置源
type JsonFileSource struct {
	Path     string
	Optional bool
}

func (s *JsonFileSource) Name() string {
	return fmt.Sprintf("JsonFile(%s)", s.Path)
}

func (s *JsonFileSource) Load() (map[string]any, error) {
	return loadFile(s.Path, s.Optional, "JSON", func(data []byte, out *map[string]any) error {
		if err := json.Unmarshal(data, out); err != nil {
			return err
		}
		normalizeJSON(*out)
		return nil
	})
}

// YamlFileSource YAML 文件配置源
type YamlFileSource struct {
	Path     string
	Optional bool
}

func (s *YamlFileSource) Name() string {
	return fmt.Sprintf("YamlFile(%s)", s.Path)
}

func (s *YamlFileSource) Load() (map[string]any, error) {
	return loadFile(s.Path, s.Optional, "YAML", func(data []byte, out *map[string]any) error {
		return yaml.Unmarshal(data, out)
	})
}

// TomlFileSource TOML 文件配置源
type TomlFileSource struct {
	Path     string
	Optional bool
}

func (s *TomlFileSource) Name() string {
	return fmt.Sprintf("TomlFile(%s)", s.Path)
}

func (s *TomlFileSource) Load() (map[string]any, error) {
	return loadFile(s.Path, s.Optional, "TOML", func(data []byte, out *map[string]any) error {
		if _, err := toml.Decode(string(data), out); err != nil {
			return err
		}
		normalizeTOML(*out)
		return nil
	})
}

// EnvironmentVariableSource 环境变量配置源
type EnvironmentVariableSource struct {
	Prefix string
}

func (s *EnvironmentVariableSource) Name() string {
	return fmt.Sprintf("EnvironmentVariables(%s)", s.Prefix)
}

func (s *EnvironmentVariableSource) Load() (map[string]any, error) {
	vars := make(map[string]string)
	for _, env := range os.Environ() {
		if key, value, ok := strings.Cut(env, "="); ok {
			vars[key] = value
		}
	}
	return envToMap(vars, s.Prefix), nil
}

// EnvFileSource .env 文件配置源
type EnvFileSource struct {
	Path     string
	Prefix   string
	Optional bool
}

func (s *EnvFileSource) Name() string {
	return fmt.Sprintf("EnvFile(%s)", s.Path)
}

func (s *EnvFileSource) Load() (map[string]any, error) {
	data, err := readFile(s.Path, s.Optional)
	if err != nil || data == nil {
		return make(map[string]any), err
	}
	vars, err := godotenv.UnmarshalBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse env file: %w", err)
	}
	return envToMap(vars, s.Prefix), nil
}

// envToMap 过滤前缀，键转小写，_ 作为层级分隔符
func envToMap(vars map[string]string, prefix string) map[string]any {
	result := make(map[string]any)
	for key, value := range vars {
		if prefix != "" {
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			key = strings.TrimPrefix(key, prefix)
		}
		key = strings.ReplaceAll(strings.ToLower(key), "_", ":")
		setNestedValue(result, key, coerceScalar(value))
	}
	return result
}

// InMemorySource 内存配置源
type InMemorySource struct {
	Data map[string]any
}

func (s *InMemorySource) Name() string {
	return "InMemory"
}

func (s *InMemorySource) Load() (map[string]any, error) {
	result := make(map[string]any)
	mergeMaps(result, s.Data)
	return result, nil
}

// setNestedValue 按 : 分隔的路径写入值，路径上的非 map 值保持不变
func setNestedValue(data map[string]any, path string, value any) {
	parts := globalPathCache.GetPathSegments(path)
	if len(parts) == 0 {
		return
	}

	current := data
	for _, part := range parts[:len(parts)-1] {
		next, exists := current[part]
		if !exists {
			next = make(map[string]any)
			current[part] = next
		}
		m, ok := next.(map[string]any)
		if !ok {
			return
		}
		current = m
	}
	current[parts[len(parts)-1]] = value
}

// coerceScalar 把字符串转换为整数、浮点数或布尔值，否则保持原样
func coerceScalar(s string) any {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// EtcdSource etcd 配置源，前缀下的每个键映射为一个配置路径
type EtcdSource struct {
	Options EtcdOptions
}

func (s *EtcdSource) Name() string {
	return fmt.Sprintf("Etcd(%v)", s.Options.Endpoints)
}

func (s *EtcdSource) Load() (map[string]any, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   s.Options.Endpoints,
		Username:    s.Options.Username,
		Password:    s.Options.Password,
		DialTimeout: s.Options.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.Options.Timeout)
	defer cancel()

	prefix := s.Options.Prefix
	if prefix == "" {
		prefix = "/"
	}
	resp, err := cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to get config from etcd: %w", err)
	}

	result := make(map[string]any)
	for _, kv := range resp.Kvs {
		key := strings.Trim(strings.TrimPrefix(string(kv.Key), s.Options.Prefix), "/")
		if key == "" {
			continue
		}
		setNestedValue(result, strings.ReplaceAll(key, "/", ":"), decodeEtcdValue(kv.Value))
	}
	return result, nil
}

// decodeEtcdValue 依次尝试 JSON 与 YAML，都失败时按普通字符串处理
func decodeEtcdValue(raw []byte) any {
	var value any
	if err := json.Unmarshal(raw, &value); err == nil {
		return normalizeJSON(value)
	}
	if err := yaml.Unmarshal(raw, &value); err == nil && value != nil {
		return value
	}
	return string(raw)
}
