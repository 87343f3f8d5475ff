package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/taskmate/backend/internal/config"
	"github.com/taskmate/backend/pkg/logger"
)

const relayChannelPrefix = "taskmate:chat:"

// RedisRelay mirrors hub events between instances over Redis pub/sub. Events
// are stamped with this instance's origin so its own echoes are dropped.
type RedisRelay struct {
	client  *redis.Client
	hub     *ChatHub
	origin  string
	timeout time.Duration
}

// NewRedisRelay connects to Redis and attaches the relay to hub.
func NewRedisRelay(ctx context.Context, cfg *config.RedisConfig, hub *ChatHub) (*RedisRelay, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	r := &RedisRelay{
		client:  client,
		hub:     hub,
		origin:  uuid.NewString(),
		timeout: 2 * time.Second,
	}
	hub.SetRelay(r)
	return r, nil
}

func relayChannel(projectID uint) string {
	return relayChannelPrefix + strconv.FormatUint(uint64(projectID), 10)
}

func (r *RedisRelay) Origin() string {
	return r.origin
}

// Forward publishes a locally originated event. Failures only cost remote
// subscribers the event; the durable log is unaffected.
func (r *RedisRelay) Forward(event ChatEvent) {
	if event.Origin == "" {
		event.Origin = r.origin
	}
	if event.Origin != r.origin {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Warn().Err(err).Msg("[Relay] encode event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.client.Publish(ctx, relayChannel(event.ProjectID), payload).Err(); err != nil {
		logger.Warn().Err(err).Uint("project_id", event.ProjectID).Msg("[Relay] publish failed")
	}
}

// Run delivers events published by other instances to local subscribers
// until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) {
	pubsub := r.client.PSubscribe(ctx, relayChannelPrefix+"*")
	defer pubsub.Close()

	logger.Infof("[Relay] Listening on %s* as %s", relayChannelPrefix, r.origin)
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.handle(msg.Channel, msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(channel, payload string) {
	var event ChatEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		logger.Warn().Err(err).Str("channel", channel).Msg("[Relay] malformed event")
		return
	}
	if event.Origin == r.origin {
		return
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(channel, relayChannelPrefix), 10, 64)
	if err != nil || uint(id) != event.ProjectID {
		logger.Warn().Str("channel", channel).Uint("project_id", event.ProjectID).Msg("[Relay] channel mismatch")
		return
	}
	r.hub.Deliver(event)
}

func (r *RedisRelay) Close() error {
	r.hub.SetRelay(nil)
	return r.client.Close()
}
