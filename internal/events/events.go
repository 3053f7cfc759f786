// Package events publishes domain events about users and todos to an
// external broker. Delivery is best effort: callers log failures and move on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/todolist-api/apiserver/config"
)

// Type names a domain event.
type Type string

const (
	UserCreated Type = "user.created"
	UserUpdated Type = "user.updated"
	UserDeleted Type = "user.deleted"
	TodoCreated Type = "todo.created"
	TodoUpdated Type = "todo.updated"
	TodoDeleted Type = "todo.deleted"
)

// Event is the JSON payload sent to the broker.
type Event struct {
	Type       Type      `json:"type"`
	UserID     int       `json:"user_id"`
	TodoID     int       `json:"todo_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Attributes are attached to the broker message so consumers can route
// without decoding the body.
func (e Event) Attributes() map[string]string {
	return map[string]string{
		"type":    string(e.Type),
		"user_id": fmt.Sprint(e.UserID),
	}
}

// Encode marshals the event body.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error {
	return nil
}

func (Nop) Close() error {
	return nil
}

// New builds the publisher selected by cfg.Backend.
func New(ctx context.Context, cfg config.EventsConfig) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		return Nop{}, nil
	case "rabbitmq":
		publisher, err := NewRabbitMQPublisher(cfg.RabbitMQ, cfg.Channel)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq publisher: %w", err)
		}
		return publisher, nil
	case "pubsub":
		publisher, err := NewPubSubPublisher(ctx, cfg.PubSub, cfg.Channel)
		if err != nil {
			return nil, fmt.Errorf("pubsub publisher: %w", err)
		}
		return publisher, nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}
