// Package events fans session status changes out to observers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/im-knots/ea-monorepo/internal/app/dto"
)

var (
	ErrUnknownDriver = errors.New("unknown event driver")
	ErrClosed        = errors.New("publisher closed")
	ErrBufferFull    = errors.New("event buffer full, event dropped")
)

// Publisher delivers session events.
type Publisher interface {
	Publish(ctx context.Context, ev dto.Event) error
	Close() error
}

// Config selects and configures a driver.
type Config struct {
	Driver   string         `yaml:"driver"`
	Memory   MemoryConfig   `yaml:"memory"`
	Redis    RedisConfig    `yaml:"redis"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

// New builds the publisher named by cfg.Driver. An empty driver means none.
func New(cfg Config) (Publisher, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "none":
		return Nop{}, nil
	case "memory":
		return NewMemoryPublisher(cfg.Memory.Buffer), nil
	case "redis":
		return NewRedisPublisher(cfg.Redis)
	case "rabbitmq", "amqp":
		return NewRabbitMQPublisher(cfg.RabbitMQ)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func encode(ev dto.Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, dto.Event) error { return nil }
func (Nop) Close() error                             { return nil }
