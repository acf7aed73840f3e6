package logging

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextFormatter(t *testing.T) {
	f := NewTextFormatter()
	f.ColorOutput = false
	entry := &LogEntry{
		Time:     time.Now(),
		Level:    LogLevelInfo,
		Category: "Test",
		Message:  "Hello",
		Fields:   []Field{{Key: "key", Value: "val"}},
	}

	out, err := f.Format(entry)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	str := string(out)
	if !strings.Contains(str, "INFO") {
		t.Error("Expected level INFO")
	}
	if !strings.Contains(str, "[Test]") {
		t.Error("Expected category [Test]")
	}
	if !strings.Contains(str, "Hello") {
		t.Error("Expected message Hello")
	}
	if !strings.Contains(str, "key=val") {
		t.Error("Expected field key=val")
	}
}

func TestJsonFormatter(t *testing.T) {
	f := NewJsonFormatter()
	entry := &LogEntry{
		Time:     time.Now(),
		Level:    LogLevelInfo,
		Category: "Test",
		Message:  "Hello",
		Fields:   []Field{{Key: "key", Value: "val"}},
	}

	out, err := f.Format(entry)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	var data map[string]any
	if err := json.Unmarshal(out, &data); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if data["level"] != "INFO" {
		t.Error("Expected level INFO")
	}
	if data["category"] != "Test" {
		t.Error("Expected category Test")
	}
	fields, ok := data["fields"].(map[string]any)
	if !ok {
		t.Error("Expected fields map")
	} else if fields["key"] != "val" {
		t.Error("Expected key=val")
	}
}

func TestAsyncWriter(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex

	// 简单的线程安全 Writer wrapper
	writer := &syncWriter{buf: &buf, mu: &mu}

	formatter := NewTextFormatter()
	asyncWriter := NewAsyncWriter(writer, formatter, 10)

	entry := &LogEntry{
		Time:    time.Now(),
		Level:   LogLevelInfo,
		Message: "Async",
	}

	// 写入多条日志
	for i := 0; i < 5; i++ {
		asyncWriter.WriteLog(entry)
	}

	// 关闭以刷新
	asyncWriter.Close()

	// 检查输出行数
	output := writer.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 5 {
		t.Errorf("Expected 5 lines, got %d", len(lines))
	}
}

type syncWriter struct {
	buf *bytes.Buffer
	mu  *sync.Mutex
}

func (w *syncWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func BenchmarkAsyncLogging(b *testing.B) {
	formatter := NewTextFormatter()
	// 使用 io.Discard 避免 I/O 瓶颈，测试 AsyncWriter 自身的开销
	asyncWriter := NewAsyncWriter(io.Discard, formatter, 10000)
	defer asyncWriter.Close()

	entry := &LogEntry{
		Time:    time.Now(),
		Level:   LogLevelInfo,
		Message: "Benchmark",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		asyncWriter.WriteLog(entry)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"trace":   LogLevelTrace,
		"DEBUG":   LogLevelDebug,
		"":        LogLevelInfo,
		"warning": LogLevelWarn,
		"Error":   LogLevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestConsoleProviderRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	factory := NewLoggingBuilder().
		SetMinimumLevel(LogLevelWarn).
		AddConsole(ConsoleLoggerOptions{Output: &buf}).
		Build()

	logger := factory.CreateLogger("di").WithFields(Field{Key: "service", Value: "mailer"})
	logger.Info("skipped")
	logger.Warn("kept", Field{Key: "attempt", Value: 2})

	out := buf.String()
	assert.NotContains(t, out, "skipped")
	assert.Contains(t, out, "WARN [di] kept {service=mailer, attempt=2}")
}

func TestJsonConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggingBuilder().AddJsonConsole(&buf).Build().CreateLogger("cache")
	logger.Info("saved", Field{Key: "bytes", Value: 42})

	var data map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &data))
	assert.Equal(t, "saved", data["msg"])
	assert.Equal(t, "cache", data["category"])
}

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "container.log")
	factory := NewLoggingBuilder().AddFile(path).Build()

	logger := factory.CreateLogger("file")
	logger.Info("first")
	logger.Error("second")
	require.NoError(t, factory.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[1], "ERROR [file] second")
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger().WithCategory("x").WithFields(Field{Key: "k", Value: 1})
	assert.NotPanics(t, func() {
		logger.Info("nothing")
		logger.Log(LogLevelError, "nothing")
	})
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAsyncWriterReportsErrors(t *testing.T) {
	var reported []error
	w := NewAsyncWriter(failingWriter{}, NewTextFormatter(), 4)
	w.SetErrorHandler(func(err error) { reported = append(reported, err) })

	w.WriteLog(&LogEntry{Time: time.Now(), Level: LogLevelInfo, Message: "lost"})
	require.NoError(t, w.Close())

	require.Len(t, reported, 1)
	assert.ErrorContains(t, reported[0], "write: disk full")
}

func TestJsonFormatterStringifiesErrors(t *testing.T) {
	out, err := NewJsonFormatter().Format(&LogEntry{
		Time:    time.Now(),
		Level:   LogLevelError,
		Message: "failed",
		Fields:  []Field{{Key: "error", Value: errors.New("boom")}, {Key: "after", Value: time.Second}},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(out, []byte("\n")))

	var data map[string]any
	require.NoError(t, json.Unmarshal(out, &data))
	fields := data["fields"].(map[string]any)
	assert.Equal(t, "boom", fields["error"])
	assert.Equal(t, "1s", fields["after"])
}
