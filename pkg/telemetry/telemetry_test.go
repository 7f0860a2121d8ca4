package telemetry

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerDomainFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LoggingConfig{Level: "debug", Format: "json"}, &buf)

	logger.NewComponentLogger("attribute").
		WithPart(7, 2).
		WithNode(3).
		WithAsset("rock_gen").
		WithError(errors.New("boom")).
		Warn("attribute missing")

	out := buf.String()
	assert.Contains(t, out, `"component":"attribute"`)
	assert.Contains(t, out, `"geo_id":7`)
	assert.Contains(t, out, `"part_id":2`)
	assert.Contains(t, out, `"node_id":3`)
	assert.Contains(t, out, `"asset":"rock_gen"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestFromContextDefaultsToNop(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
	logger.Error("discarded")

	var buf bytes.Buffer
	l := NewLoggerWithWriter(LoggingConfig{Level: "info", Format: "json"}, &buf)
	ctx := l.WithContext(context.Background())
	FromContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "production", mutate: func(c *Config) { *c = *ProductionConfig() }},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "bad exporter", mutate: func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "jaeger"
		}, wantErr: true},
		{name: "sampling out of range", mutate: func(c *Config) { c.Tracing.SamplingRate = 2 }, wantErr: true},
		{name: "redis without channel", mutate: func(c *Config) {
			c.Events.Redis = &RedisSinkConfig{Addr: "localhost:6379"}
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordCookStarted("cook")
	m.RecordCookCompleted("cook", "ready", time.Second)
	m.RecordPoll("cook")
	m.RecordAttributeFetch("int", "float", "coerced")
	m.RecordSessionLost()
	assert.Nil(t, m.Registry())
	assert.Nil(t, m.NewMetricsServer())

	disabled, err := NewMetrics(MetricsConfig{Enabled: false})
	require.NoError(t, err)
	disabled.RecordStateTransition("cooking", "post_cook")
	assert.Nil(t, disabled.Registry())
}

func TestMetricsHandlerExposesCookCounters(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: true, Namespace: "cb", ListenAddress: ":0"})
	require.NoError(t, err)

	m.RecordCookStarted("cook")
	m.RecordPoll("cook")
	m.RecordPoll("cook")
	m.RecordCookCompleted("cook", "ready_with_cook_errors", 250*time.Millisecond)
	m.RecordAttributeFetch("string", "float", "coerced")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `cb_cooks_started_total{kind="cook"} 1`)
	assert.Contains(t, body, `cb_cook_poll_iterations_total{kind="cook"} 2`)
	assert.Contains(t, body, `cb_cooks_completed_total{kind="cook",state="ready_with_cook_errors"} 1`)
	assert.Contains(t, body, `cb_attribute_fetches_total{native="string",outcome="coerced",requested="float"} 1`)
	assert.Contains(t, body, "cb_active_cooks 0")
}

func TestEventPublisherSync(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 4})
	require.NoError(t, err)

	var got []Event
	ep.Subscribe(func(e Event) { got = append(got, e) }, FilterByType(EventTypeCookCompleted, EventTypeSessionLost))

	require.NoError(t, ep.PublishCookStarted("rock", 3, "cook"))
	require.NoError(t, ep.PublishCookCompleted("rock", 3, "ready", time.Second))
	require.NoError(t, ep.PublishSessionLost("invalid session"))

	require.Len(t, got, 2)
	assert.Equal(t, EventTypeCookCompleted, got[0].Type)
	assert.Equal(t, "rock", got[0].Asset)
	require.NotNil(t, got[0].NodeID)
	assert.Equal(t, int32(3), *got[0].NodeID)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].Timestamp.IsZero())
	assert.Equal(t, EventLevelError, got[1].Level)
}

func TestEventPublisherAsyncDrainsOnShutdown(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 16, EnableAsync: true})
	require.NoError(t, err)

	var mu sync.Mutex
	var count int
	ep.Subscribe(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	}, nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, ep.PublishStateChanged("rock", "cooking", "post_cook", "success"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ep.Shutdown(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, count)
}

func TestPublishSettingsReloaded(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 4})
	require.NoError(t, err)

	var got []Event
	ep.Subscribe(func(e Event) { got = append(got, e) }, nil)

	require.NoError(t, ep.PublishSettingsReloaded("cookbridge.yaml", nil))
	require.NoError(t, ep.PublishSettingsReloaded("cookbridge.yaml", errors.New("bad poll interval")))

	require.Len(t, got, 2)
	assert.Equal(t, EventLevelInfo, got[0].Level)
	assert.Equal(t, "cookbridge.yaml", got[0].Data["path"])
	assert.Equal(t, EventLevelWarning, got[1].Level)
	assert.Contains(t, got[1].Message, "bad poll interval")
}

func TestEventFilters(t *testing.T) {
	warn := FilterByLevel(EventLevelWarning)
	assert.False(t, warn(Event{Level: EventLevelInfo}))
	assert.True(t, warn(Event{Level: EventLevelError}))

	byAsset := FilterByAsset("a")
	assert.True(t, byAsset(Event{Asset: "a"}))
	assert.False(t, byAsset(Event{Asset: "b"}))
}

func TestNilTelemetryAccessors(t *testing.T) {
	var tel *Telemetry
	assert.NotNil(t, tel.Log())
	assert.Nil(t, tel.M())
	assert.Nil(t, tel.E())

	events, err := Nop().RecentEvents(context.Background(), 10)
	assert.NoError(t, err)
	assert.Nil(t, events)

	op := Nop().StartOperation(context.Background(), "cook")
	op.End(errors.New("failed"))
	assert.NotNil(t, op.Logger)
}
