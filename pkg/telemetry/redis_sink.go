package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const (
	redisPublishTimeout = 2 * time.Second
	recentEventsLimit   = 500
)

// RedisSink forwards events to a redis pub/sub channel and keeps the most recent
// ones in a capped list named "<channel>:recent".
type RedisSink struct {
	client  *redis.Client
	channel string
	logger  *Logger
}

// NewRedisSink connects to redis and verifies the connection.
func NewRedisSink(ctx context.Context, cfg RedisSinkConfig, logger *Logger) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisSink{
		client:  client,
		channel: cfg.Channel,
		logger:  OrNop(logger).NewComponentLogger("redis_sink"),
	}, nil
}

// Attach subscribes the sink to a publisher.
func (s *RedisSink) Attach(ep *EventPublisher, filter EventFilter) {
	ep.Subscribe(s.Handle, filter)
}

// Handle publishes one event. Failures are logged, never returned, so a redis
// outage does not stall cooks.
func (s *RedisSink) Handle(event Event) {
	data, err := sonic.Marshal(event)
	if err != nil {
		s.logger.WithError(err).Warn("failed to encode event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
	defer cancel()

	recent := s.channel + ":recent"
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, s.channel, data)
		pipe.LPush(ctx, recent, data)
		pipe.LTrim(ctx, recent, 0, recentEventsLimit-1)
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("event_type", event.Type).Warn("failed to publish event to redis")
	}
}

// Recent returns up to n of the most recently forwarded events, newest first.
func (s *RedisSink) Recent(ctx context.Context, n int64) ([]Event, error) {
	raw, err := s.client.LRange(ctx, s.channel+":recent", 0, n-1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read recent events: %w", err)
	}

	events := make([]Event, 0, len(raw))
	for _, r := range raw {
		var e Event
		if err := sonic.UnmarshalString(r, &e); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}

// Close closes the redis client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
