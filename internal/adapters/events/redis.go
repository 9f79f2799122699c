package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/im-knots/ea-monorepo/internal/app/dto"
	"github.com/im-knots/ea-monorepo/internal/infrastructure/metrics"
)

const defaultRedisChannel = "agentbuilder:events"

// RedisConfig describes the Redis connection.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// RedisPublisher sends events with PUBLISH on one channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher connects and pings Redis.
func NewRedisPublisher(cfg RedisConfig) (*RedisPublisher, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	channel := cfg.Channel
	if channel == "" {
		channel = defaultRedisChannel
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisPublisher{client: client, channel: channel}, nil
}

// Publish sends ev as JSON.
func (p *RedisPublisher) Publish(ctx context.Context, ev dto.Event) error {
	data, err := encode(ev)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	metrics.EventPublished(string(ev.Type))
	return nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
