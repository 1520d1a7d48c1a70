package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opforge/opforge/pkg/operations"
)

func TestMetrics_Disabled(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	require.NoError(t, err)

	assert.Nil(t, m.Registry())
	assert.NotPanics(t, func() {
		m.RecordOperationStarted()
		m.ItemSubmitted("q")
		m.ItemFinished("q", time.Second, errors.New("boom"))
		m.SetPoolThreads(4)
	})

	addr, err := m.StartServer("127.0.0.1:0", zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, addr)
}

func TestMetrics_PoolObserver(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	require.NoError(t, err)

	p, err := operations.NewProcessor(2, operations.WithPoolObserver(m))
	require.NoError(t, err)
	defer p.Stop(context.Background())
	m.SetPoolThreads(p.Threads())

	q := operations.NewQueue(p, "resolve", func(i int) error {
		if i == 3 {
			return errors.New("unresolvable")
		}
		return nil
	})
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Add(i))
	}
	require.Error(t, q.Wait())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.poolThreads))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.queueItemsFinished.WithLabelValues("resolve", statusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queueItemsFinished.WithLabelValues("resolve", statusFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.errorsByClass.WithLabelValues(string(operations.ErrorClassWorker), operations.ErrCodeWorkerFailed)))

	// ItemSubmitted fires after the submit returns and may trail the item itself.
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.queueItemsSubmitted.WithLabelValues("resolve")) == 5
	}, time.Second, 10*time.Millisecond)
}

func TestMetrics_Server(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	require.NoError(t, err)
	m.RecordOperationStarted()

	addr, err := m.StartServer("127.0.0.1:0", zerolog.Nop())
	require.NoError(t, err)
	defer m.Shutdown(context.Background())

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "forge_operations_started_total 1"))
}

func TestEventPublisher_AsyncDrainsOnShutdown(t *testing.T) {
	ep := NewEventPublisher(EventsConfig{Enabled: true, EnableAsync: true, BufferSize: 64})

	var delivered atomic.Int32
	ep.Subscribe(func(Event) {
		time.Sleep(time.Millisecond)
		delivered.Add(1)
	}, nil)

	for i := 0; i < 20; i++ {
		require.NoError(t, ep.Publish(Event{Type: EventTypeOperationStarted}))
	}
	require.NoError(t, ep.Shutdown(context.Background()))

	assert.Equal(t, int32(20), delivered.Load())
	assert.ErrorIs(t, ep.Publish(Event{Type: EventTypeOperationStarted}), ErrPublisherClosed)
	assert.NoError(t, ep.Shutdown(context.Background()))
}

func TestEventPublisher_StampsAndFilters(t *testing.T) {
	ep := NewEventPublisher(EventsConfig{Enabled: true})
	sink := &eventSink{}
	ep.Subscribe(sink.collect, FilterByOperation("op-1"))

	require.NoError(t, ep.Publish(Event{Type: EventTypeOperationStarted, OperationID: "op-1"}))
	require.NoError(t, ep.Publish(Event{Type: EventTypeOperationStarted, OperationID: "op-2"}))

	require.Len(t, sink.events, 1)
	assert.NotEmpty(t, sink.events[0].ID)
	assert.False(t, sink.events[0].Timestamp.IsZero())
}

func TestEventPublisher_Disabled(t *testing.T) {
	ep := NewEventPublisher(EventsConfig{Enabled: false})
	called := false
	ep.Subscribe(func(Event) { called = true }, nil)

	require.NoError(t, ep.Publish(Event{Type: EventTypeOperationStarted}))
	assert.False(t, called)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "invalid log format"},
		{"otlp without endpoint", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
		}, "requires an endpoint"},
		{"bad sampling", func(c *Config) { c.Tracing.SamplingRate = 2 }, "sampling rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
