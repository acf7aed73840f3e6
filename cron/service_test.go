package cron

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocrud/container/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsJobs(t *testing.T) {
	var calls atomic.Int32
	s, err := New(AddJob("@every 1s", "count", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"count"}, s.Jobs())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	assert.GreaterOrEqual(t, s.Runs("count"), 1)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, s.Stop(context.Background()))
}

func TestSchedulerLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLoggingBuilder().
		AddConsole(logging.ConsoleLoggerOptions{Output: &buf}).
		Build().
		CreateLogger("cron")

	failed := make(chan struct{}, 1)
	s, err := New(
		WithLogger(logger),
		AddJob("@every 1s", "broken", func(ctx context.Context) error {
			select {
			case failed <- struct{}{}:
			default:
			}
			return errors.New("backend down")
		}),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Start(ctx)

	select {
	case <-failed:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
	cancel()
	require.NoError(t, s.Stop(context.Background()))
	assert.Contains(t, buf.String(), "backend down")
}

func TestInvalidSpec(t *testing.T) {
	_, err := New(AddJob("not a schedule", "bad", func(context.Context) error { return nil }))
	assert.ErrorContains(t, err, `"bad"`)
}

func TestInvalidLocation(t *testing.T) {
	_, err := New(WithLocation("Nowhere/Special"))
	assert.Error(t, err)
}

func TestSecondsAndRemove(t *testing.T) {
	s, err := New(WithSeconds(), WithLocation("UTC"))
	require.NoError(t, err)

	noop := func(context.Context) error { return nil }
	require.NoError(t, s.AddJob("*/30 * * * * *", "a", noop))
	require.NoError(t, s.AddJob("0 0 * * * *", "b", noop))
	// 同名任务被替换
	require.NoError(t, s.AddJob("0 0 * * * *", "b", noop))
	assert.Len(t, s.cron.Entries(), 2)

	s.RemoveJob("a")
	assert.Equal(t, []string{"b"}, s.Jobs())
	assert.Len(t, s.cron.Entries(), 1)
}

func TestConvertToFields(t *testing.T) {
	fields := convertToFields([]any{"entry", 1, "next", "soon", "dangling"})
	assert.Equal(t, []logging.Field{{Key: "entry", Value: 1}, {Key: "next", Value: "soon"}}, fields)
}
