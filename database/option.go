package database

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Options 数据库配置选项
type Options struct {
	Dialector    gorm.Dialector
	GormConfig   *gorm.Config
	MaxIdleConns int
	MaxOpenConns int
	MaxLifetime  time.Duration
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(dialector gorm.Dialector) *Options {
	return &Options{
		Dialector:    dialector,
		GormConfig:   &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)},
		MaxIdleConns: 2,
		MaxOpenConns: 10,
		MaxLifetime:  time.Hour,
	}
}

// NewSqliteOptions 使用 sqlite 方言创建默认配置
func NewSqliteOptions(dsn string) *Options {
	return NewDefaultOptions(sqlite.Open(dsn))
}

// Validate 验证配置
func (o *Options) Validate() error {
	if o.Dialector == nil {
		return fmt.Errorf("database dialector is required")
	}
	return nil
}

// Open 打开数据库连接并配置连接池
func Open(opts *Options) (*gorm.DB, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	config := opts.GormConfig
	if config == nil {
		config = &gorm.Config{}
	}
	db, err := gorm.Open(opts.Dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.MaxLifetime)
	return db, nil
}

// Close 关闭底层连接
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
