package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocrud/container/cache"
	"github.com/gocrud/container/config"
	"github.com/gocrud/container/di"
	"github.com/gocrud/container/logging"
	"github.com/urfave/cli"
)

const envPrefix = "DICACHE_"

// 退出码
const (
	exitConfig      = 3
	exitDefinitions = 4
	exitInvalid     = 5
	exitCache       = 6
	exitServe       = 10
)

// settings dicache 的配置，来源依次为默认值、配置文件、.env 文件与 DICACHE_ 环境变量
type settings struct {
	Definitions []string       `json:"definitions"`
	Cache       cache.Settings `json:"cache"`
	Schedule    string         `json:"schedule"`
	Log         logSettings    `json:"log"`
}

type logSettings struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

func defaultSettings() map[string]any {
	return map[string]any{
		"cache": map[string]any{"driver": "file"},
		"log":   map[string]any{"level": "info"},
	}
}

// loadSettings 构建配置并应用命令行覆盖项
func loadSettings(c *cli.Context) (settings, error) {
	builder := config.NewConfigurationBuilder().AddInMemory(defaultSettings())

	if path := c.GlobalString("config"); path != "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yml", ".yaml":
			builder.AddYamlFile(path)
		case ".json":
			builder.AddJsonFile(path)
		case ".toml":
			builder.AddTomlFile(path)
		default:
			return settings{}, fmt.Errorf("unsupported config file %q", path)
		}
	}
	builder.AddEnvFile(c.GlobalString("env-file"), envPrefix, true)
	builder.AddEnvironmentVariables(envPrefix)

	cfg, err := builder.Build()
	if err != nil {
		return settings{}, err
	}
	s, err := config.Load[settings](cfg, "")
	if err != nil {
		return settings{}, err
	}

	if files := c.GlobalStringSlice("definitions"); len(files) > 0 {
		s.Definitions = files
	}
	if driver := c.GlobalString("driver"); driver != "" {
		s.Cache.Driver = driver
	}
	if level := c.GlobalString("log-level"); level != "" {
		s.Log.Level = level
	}
	return s, nil
}

// newLoggerFactory 日志输出到 stderr，避免干扰命令输出
func newLoggerFactory(s logSettings) (logging.LoggerFactory, error) {
	level, err := logging.ParseLevel(s.Level)
	if err != nil {
		return nil, err
	}
	builder := logging.NewLoggingBuilder().
		SetMinimumLevel(level).
		AddConsole(logging.ConsoleLoggerOptions{Output: os.Stderr, ColorOutput: true})
	if s.File != "" {
		builder.AddFile(s.File)
	}
	return builder.Build(), nil
}

// session 一次命令执行所需的配置、日志与缓存后端
type session struct {
	settings settings
	factory  logging.LoggerFactory
	logger   logging.Logger
	backend  *cache.Backend
}

func openSession(c *cli.Context, withBackend bool) (*session, error) {
	s, err := loadSettings(c)
	if err != nil {
		return nil, cli.NewExitError(fmt.Sprintf("failed to load settings: %v", err), exitConfig)
	}
	factory, err := newLoggerFactory(s.Log)
	if err != nil {
		return nil, cli.NewExitError(err.Error(), exitConfig)
	}

	sess := &session{
		settings: s,
		factory:  factory,
		logger:   factory.CreateLogger("dicache"),
	}
	if withBackend {
		backend, err := cache.Open(context.Background(), s.Cache, sess.logger.WithCategory("cache"))
		if err != nil {
			factory.Close()
			return nil, cli.NewExitError(err.Error(), exitCache)
		}
		sess.backend = backend
	}
	return sess, nil
}

func (s *session) Close() {
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			s.logger.Warn("Failed to close cache backend", logging.Field{Key: "error", Value: err.Error()})
		}
	}
	s.factory.Close()
}

// newContainer 创建带缓存的容器，没有后端时使用内存缓存
func (s *session) newContainer() *di.CachedContainer {
	var backend di.Cache = cache.NewMemory()
	if s.backend != nil {
		backend = s.backend
	}
	return di.NewCached(backend, di.WithLogger(s.logger.WithCategory("di")))
}

// loadDefinitions 加载全部定义文件
func (s *session) loadDefinitions(c *di.CachedContainer) error {
	if len(s.settings.Definitions) == 0 {
		return cli.NewExitError("no definition files given (use --definitions or the definitions setting)", exitDefinitions)
	}
	for _, path := range s.settings.Definitions {
		if err := c.LoadFromFile(path); err != nil {
			return cli.NewExitError(err.Error(), exitDefinitions)
		}
	}
	return nil
}
