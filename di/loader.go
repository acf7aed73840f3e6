package di

import (
	"fmt"
	"os"
	"slices"

	"github.com/gocrud/container/config"
	"github.com/gocrud/container/logging"
)

// LoadFromFile 从定义文件加载参数与服务，同一文件只加载一次。
// 支持 .yml/.yaml/.json/.toml。
func (c *Container) LoadFromFile(path string) error {
	if slices.Contains(c.loadedFiles, path) {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	defs, err := config.ReadDefinitionsFile(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidFile, path, err)
	}

	if err := c.LoadDefinitions(defs); err != nil {
		return err
	}

	c.loadedFiles = append(c.loadedFiles, path)
	c.logger.Info("Loaded definitions file",
		logging.Field{Key: "file", Value: path},
		logging.Field{Key: "services", Value: len(defs.Services)},
		logging.Field{Key: "parameters", Value: len(defs.Parameters)})
	return nil
}

// LoadDefinitions 注册解析后的定义，服务按定义顺序注册。
func (c *Container) LoadDefinitions(defs *config.Definitions) error {
	for _, name := range sortedKeys(defs.Parameters) {
		c.SetParameter(name, defs.Parameters[name])
	}
	for _, entry := range defs.Services {
		if err := c.Register(entry.Name, entry.Options); err != nil {
			return err
		}
	}
	return nil
}
