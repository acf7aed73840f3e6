package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ConsoleLoggerOptions 控制台日志选项
type ConsoleLoggerOptions struct {
	IncludeTimestamp bool
	TimestampFormat  string
	ColorOutput      bool
	Output           io.Writer
	// Formatter 为空时使用 TextFormatter
	Formatter Formatter
}

// ConsoleLoggerProvider 控制台日志提供者，同步写入
type ConsoleLoggerProvider struct {
	options      ConsoleLoggerOptions
	formatter    Formatter
	minimumLevel LogLevel
	mu           sync.Mutex
}

func NewConsoleLoggerProvider(options ConsoleLoggerOptions) *ConsoleLoggerProvider {
	if options.Output == nil {
		options.Output = os.Stdout
	}
	if options.TimestampFormat == "" {
		options.TimestampFormat = "2006-01-02 15:04:05"
	}
	formatter := options.Formatter
	if formatter == nil {
		formatter = &TextFormatter{
			IncludeTimestamp: options.IncludeTimestamp,
			TimestampFormat:  options.TimestampFormat,
			ColorOutput:      options.ColorOutput,
		}
	}
	return &ConsoleLoggerProvider{
		options:      options,
		formatter:    formatter,
		minimumLevel: LogLevelInfo,
	}
}

func (p *ConsoleLoggerProvider) CreateLogger(category string) Logger {
	return &writerLogger{
		category: category,
		level:    p.level,
		sink:     p.write,
	}
}

func (p *ConsoleLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minimumLevel = level
}

func (p *ConsoleLoggerProvider) level() LogLevel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.minimumLevel
}

func (p *ConsoleLoggerProvider) write(entry *LogEntry) {
	data, err := p.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "console logger format error: %v\n", err)
		return
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.options.Output.Write(data)
}

// FileLoggerOptions 文件日志选项
type FileLoggerOptions struct {
	Path       string
	BufferSize int
	// Formatter 为空时使用不带颜色的 TextFormatter
	Formatter Formatter
}

// FileLoggerProvider 文件日志提供者，通过 AsyncWriter 异步写入
type FileLoggerProvider struct {
	options      FileLoggerOptions
	minimumLevel LogLevel
	file         *os.File
	writer       *AsyncWriter
	mu           sync.RWMutex
}

func NewFileLoggerProvider(options FileLoggerOptions) *FileLoggerProvider {
	if options.BufferSize <= 0 {
		options.BufferSize = 1024
	}
	if options.Formatter == nil {
		options.Formatter = NewTextFormatter()
	}
	return &FileLoggerProvider{
		options:      options,
		minimumLevel: LogLevelInfo,
	}
}

func (p *FileLoggerProvider) CreateLogger(category string) Logger {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 打开或创建文件
	if p.writer == nil {
		file, err := os.OpenFile(p.options.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			return NewConsoleLoggerProvider(ConsoleLoggerOptions{Output: os.Stderr}).CreateLogger(category)
		}
		p.file = file
		p.writer = NewAsyncWriter(file, p.options.Formatter, p.options.BufferSize)
	}

	writer := p.writer
	return &writerLogger{
		category: category,
		level:    p.level,
		sink:     writer.WriteLog,
	}
}

func (p *FileLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minimumLevel = level
}

func (p *FileLoggerProvider) level() LogLevel {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.minimumLevel
}

// Close 刷新异步写入器并关闭文件
func (p *FileLoggerProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer == nil {
		return nil
	}
	p.writer.Close()
	p.writer = nil
	err := p.file.Close()
	p.file = nil
	return err
}

// writerLogger 把日志条目交给提供者的写入函数
type writerLogger struct {
	category string
	fields   []Field
	level    func() LogLevel
	sink     func(*LogEntry)
}

func (l *writerLogger) Trace(msg string, fields ...Field) {
	l.Log(LogLevelTrace, msg, fields...)
}

func (l *writerLogger) Debug(msg string, fields ...Field) {
	l.Log(LogLevelDebug, msg, fields...)
}

func (l *writerLogger) Info(msg string, fields ...Field) {
	l.Log(LogLevelInfo, msg, fields...)
}

func (l *writerLogger) Warn(msg string, fields ...Field) {
	l.Log(LogLevelWarn, msg, fields...)
}

func (l *writerLogger) Error(msg string, fields ...Field) {
	l.Log(LogLevelError, msg, fields...)
}

func (l *writerLogger) Fatal(msg string, fields ...Field) {
	l.Log(LogLevelFatal, msg, fields...)
	os.Exit(1)
}

func (l *writerLogger) Log(level LogLevel, msg string, fields ...Field) {
	if level < l.level() {
		return
	}
	l.sink(&LogEntry{
		Time:     time.Now(),
		Level:    level,
		Category: l.category,
		Message:  msg,
		Fields:   joinFields(l.fields, fields),
	})
}

func (l *writerLogger) WithFields(fields ...Field) Logger {
	return &writerLogger{
		category: l.category,
		fields:   joinFields(l.fields, fields),
		level:    l.level,
		sink:     l.sink,
	}
}

func (l *writerLogger) WithCategory(category string) Logger {
	return &writerLogger{
		category: category,
		fields:   l.fields,
		level:    l.level,
		sink:     l.sink,
	}
}

// colorize 为日志级别添加颜色
func colorize(level LogLevel, text string) string {
	const (
		reset   = "\033[0m"
		gray    = "\033[90m"
		cyan    = "\033[36m"
		green   = "\033[32m"
		yellow  = "\033[33m"
		red     = "\033[31m"
		magenta = "\033[35m"
	)

	switch level {
	case LogLevelTrace:
		return gray + text + reset
	case LogLevelDebug:
		return cyan + text + reset
	case LogLevelInfo:
		return green + text + reset
	case LogLevelWarn:
		return yellow + text + reset
	case LogLevelError:
		return red + text + reset
	case LogLevelFatal:
		return magenta + text + reset
	default:
		return text
	}
}
