package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Handler func(ctx context.Context, event Event) error

type Subscriber struct {
	client        redis.UniversalClient
	group         string
	consumer      string
	stream        string
	handler       Handler
	batchSize     int64
	blockDuration time.Duration
	claimMinIdle  time.Duration
	logger        *zap.Logger
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
	// ClaimMinIdle is how long a delivered but unacknowledged message waits
	// before it is handed to a handler again.
	ClaimMinIdle time.Duration
	Logger       *zap.Logger
}

func NewSubscriber(client redis.UniversalClient, config SubscriberConfig) *Subscriber {
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = 5 * time.Second
	}
	if config.ClaimMinIdle == 0 {
		config.ClaimMinIdle = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Subscriber{
		client:        client,
		group:         config.Group,
		consumer:      config.Consumer,
		stream:        config.Stream,
		handler:       config.Handler,
		batchSize:     config.BatchSize,
		blockDuration: config.BlockDuration,
		claimMinIdle:  config.ClaimMinIdle,
		logger:        config.Logger,
	}
}

// Start blocks, consuming the stream until ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	if err := s.ensureGroup(ctx); err != nil {
		return err
	}

	s.logger.Info("subscriber started",
		zap.String("stream", s.stream), zap.String("group", s.group), zap.String("consumer", s.consumer))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("subscriber stopping", zap.String("stream", s.stream))
			return ctx.Err()
		default:
			if _, err := s.Poll(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("error reading messages", zap.Error(err))
				time.Sleep(time.Second)
			}
		}
	}
}

func (s *Subscriber) ensureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Poll first retries messages that stayed unacknowledged for ClaimMinIdle, from
// this consumer or from one that died, then reads one batch of new messages. It
// returns how many messages were handled and acknowledged.
func (s *Subscriber) Poll(ctx context.Context) (int, error) {
	reclaimed, err := s.reclaim(ctx)
	if err != nil {
		return 0, err
	}
	handled := s.handleAll(ctx, reclaimed)

	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    s.batchSize,
		Block:    s.blockDuration,
	}).Result()

	if errors.Is(err, redis.Nil) {
		return handled, nil // No messages
	}
	if err != nil {
		return handled, fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		handled += s.handleAll(ctx, stream.Messages)
	}
	return handled, nil
}

// reclaim takes over pending messages idle for at least claimMinIdle.
func (s *Subscriber) reclaim(ctx context.Context) ([]redis.XMessage, error) {
	messages, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.stream,
		Group:    s.group,
		Consumer: s.consumer,
		MinIdle:  s.claimMinIdle,
		Start:    "0-0",
		Count:    s.batchSize,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending messages: %w", err)
	}
	if len(messages) > 0 {
		s.logger.Info("retrying pending messages", zap.String("stream", s.stream), zap.Int("count", len(messages)))
	}
	return messages, nil
}

func (s *Subscriber) handleAll(ctx context.Context, messages []redis.XMessage) int {
	handled := 0
	for _, message := range messages {
		if err := s.processMessage(ctx, message); err != nil {
			// stays pending until reclaim picks it up again
			s.logger.Warn("failed to process message", zap.String("message_id", message.ID), zap.Error(err))
			continue
		}

		if err := s.client.XAck(ctx, s.stream, s.group, message.ID).Err(); err != nil {
			s.logger.Warn("failed to ack message", zap.String("message_id", message.ID), zap.Error(err))
			continue
		}
		handled++
	}
	return handled
}

func (s *Subscriber) processMessage(ctx context.Context, message redis.XMessage) error {
	eventData, ok := message.Values["event"].(string)
	if !ok {
		return fmt.Errorf("invalid message format")
	}

	var event Event
	if err := json.Unmarshal([]byte(eventData), &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return s.handler(ctx, event)
}

// Decode converts the generic Data payload of an event into a typed struct.
func Decode[T any](event Event) (T, error) {
	var out T
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return out, fmt.Errorf("failed to re-encode %s payload: %w", event.Type, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode %s payload: %w", event.Type, err)
	}
	return out, nil
}
