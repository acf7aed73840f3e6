package di

import (
	"bytes"
	"fmt"
	"math"

	"github.com/goccy/go-json"
)

// snapshot 是容器状态的序列化形式，对缓存后端不透明。
type snapshot struct {
	Parameters    map[string]any                  `json:"parameters"`
	Services      map[string]serviceRecord        `json:"services"`
	Aliases       map[string]string               `json:"aliases"`
	Notifications map[string][]notificationRecord `json:"notifications"`
	LoadedFiles   []string                        `json:"loaded_files"`
}

type serviceRecord struct {
	Kind             string               `json:"kind"`
	Class            string               `json:"class,omitempty"`
	Extends          string               `json:"extends,omitempty"`
	Arguments        []any                `json:"arguments,omitempty"`
	Calls            []callRecord         `json:"calls,omitempty"`
	FactoryService   string               `json:"factory_service,omitempty"`
	FactoryMethod    string               `json:"factory_method,omitempty"`
	FactoryArguments []any                `json:"factory_arguments,omitempty"`
	Notify           []notificationRecord `json:"notify,omitempty"`
	Abstract         bool                 `json:"abstract"`
	Singleton        bool                 `json:"singleton"`
	ReadOnly         bool                 `json:"read_only"`
	Private          bool                 `json:"private"`
}

type callRecord struct {
	Method    string `json:"method"`
	Arguments []any  `json:"arguments,omitempty"`
}

type notificationRecord struct {
	Sender    string `json:"sender"`
	Target    string `json:"target"`
	Method    string `json:"method"`
	Arguments []any  `json:"arguments,omitempty"`
}

var snapshotKeys = []string{"parameters", "services", "aliases", "notifications", "loaded_files"}

// encodeSnapshot 序列化快照
func encodeSnapshot(s *snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// decodeSnapshot 反序列化并校验快照，五个键缺一不可。
func decodeSnapshot(data []byte) (*snapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty cache data", ErrCacheDataNotFound)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheDataNotFound, err)
	}
	for _, key := range snapshotKeys {
		value, ok := raw[key]
		if !ok || string(bytes.TrimSpace(value)) == "null" {
			return nil, fmt.Errorf("%w: missing %q", ErrCacheDataNotFound, key)
		}
	}

	s := &snapshot{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheDataNotFound, err)
	}

	s.Parameters = normalizeNumbers(s.Parameters).(map[string]any)
	for name, rec := range s.Services {
		rec.Arguments = normalizeList(rec.Arguments)
		rec.FactoryArguments = normalizeList(rec.FactoryArguments)
		for i := range rec.Calls {
			rec.Calls[i].Arguments = normalizeList(rec.Calls[i].Arguments)
		}
		for i := range rec.Notify {
			rec.Notify[i].Arguments = normalizeList(rec.Notify[i].Arguments)
		}
		s.Services[name] = rec
	}
	for target, list := range s.Notifications {
		for i := range list {
			list[i].Arguments = normalizeList(list[i].Arguments)
		}
		s.Notifications[target] = list
	}
	return s, nil
}

// normalizeNumbers 把 json.Number 还原为 int（整数）或 float64。
func normalizeNumbers(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil && i >= math.MinInt && i <= math.MaxInt {
			return int(i)
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case []any:
		for i := range v {
			v[i] = normalizeNumbers(v[i])
		}
		return v
	case map[string]any:
		for k := range v {
			v[k] = normalizeNumbers(v[k])
		}
		return v
	default:
		return value
	}
}

func normalizeList(list []any) []any {
	if list == nil {
		return nil
	}
	return normalizeNumbers(list).([]any)
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "class":
		return KindClass, nil
	case "factory":
		return KindFactory, nil
	case "closure":
		return KindClosure, nil
	case "object":
		return KindObject, nil
	}
	return 0, fmt.Errorf("%w: unknown service kind %q", ErrCacheDataNotFound, s)
}

func recordFromDefinition(def *ServiceDefinition) serviceRecord {
	rec := serviceRecord{
		Kind:             def.Kind.String(),
		Class:            def.Class,
		Extends:          def.Extends,
		Arguments:        def.Arguments,
		FactoryService:   def.FactoryService,
		FactoryMethod:    def.FactoryMethod,
		FactoryArguments: def.FactoryArguments,
		Abstract:         def.Abstract,
		Singleton:        def.Singleton,
		ReadOnly:         def.ReadOnly,
		Private:          def.Private,
	}
	for _, call := range def.Calls {
		rec.Calls = append(rec.Calls, callRecord{Method: call.Method, Arguments: call.Arguments})
	}
	for _, n := range def.Notify {
		rec.Notify = append(rec.Notify, recordFromNotification(n))
	}
	return rec
}

func definitionFromRecord(name string, rec serviceRecord) (*ServiceDefinition, error) {
	kind, err := parseKind(rec.Kind)
	if err != nil {
		return nil, err
	}
	if kind == KindClosure || kind == KindObject {
		return nil, fmt.Errorf("%w: service %q of kind %s cannot be restored", ErrCacheDataNotFound, name, kind)
	}

	def := &ServiceDefinition{
		Name:             name,
		Kind:             kind,
		Class:            rec.Class,
		Extends:          rec.Extends,
		Arguments:        rec.Arguments,
		FactoryService:   rec.FactoryService,
		FactoryMethod:    rec.FactoryMethod,
		FactoryArguments: rec.FactoryArguments,
		Abstract:         rec.Abstract,
		Singleton:        rec.Singleton,
		ReadOnly:         rec.ReadOnly,
		Private:          rec.Private,
	}
	for _, call := range rec.Calls {
		def.Calls = append(def.Calls, MethodCall{Method: call.Method, Arguments: call.Arguments})
	}
	for _, n := range rec.Notify {
		def.Notify = append(def.Notify, notificationFromRecord(n))
	}
	return def, nil
}

func recordFromNotification(n Notification) notificationRecord {
	return notificationRecord{Sender: n.Sender, Target: n.Target, Method: n.Method, Arguments: n.Arguments}
}

func notificationFromRecord(rec notificationRecord) Notification {
	return Notification{Sender: rec.Sender, Target: rec.Target, Method: rec.Method, Arguments: rec.Arguments}
}

// checkPlain 确认值只包含可序列化的纯数据。
func checkPlain(value any) error {
	switch v := value.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return nil
	case []string:
		return nil
	case []any:
		for i, item := range v {
			if err := checkPlain(item); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	case map[string]any:
		for k, item := range v {
			if err := checkPlain(item); err != nil {
				return fmt.Errorf("[%q]: %w", k, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("value of type %T is not plain data", value)
	}
}
