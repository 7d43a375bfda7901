package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"emberlink/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventType represents the type of event
type EventType string

const (
	EventLivenessChanged EventType = "liveness.changed"
	EventEndpointSeen    EventType = "endpoint.seen"
)

// Event is one cross-instance console message. InstanceID lets a console
// skip its own publications when more than one console shares a redis.
type Event struct {
	Type       EventType         `json:"type"`
	InstanceID string            `json:"instance_id"`
	Timestamp  time.Time         `json:"timestamp"`
	Endpoint   domain.EndpointID `json:"endpoint,omitempty"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
}

// EventBus shares liveness events between console instances over redis
// pub/sub, so an operator watching a standby console still sees alerts.
type EventBus struct {
	client     *redis.Client
	instanceID string
	logger     *zap.SugaredLogger
	pubsub     *redis.PubSub
	channels   []string
}

func NewEventBus(client *redis.Client, instanceID string, logger *zap.SugaredLogger) *EventBus {
	return &EventBus{
		client:     client,
		instanceID: instanceID,
		logger:     logger,
		channels:   []string{"emberlink:events"},
	}
}

// Publish publishes an event to the event bus.
func (eb *EventBus) Publish(ctx context.Context, event *Event) error {
	event.InstanceID = eb.instanceID
	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := eb.client.Publish(ctx, eb.channels[0], data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("published event", "type", event.Type, "endpoint", event.Endpoint)
	return nil
}

// PublishLivenessChanged shares one transition with the other instances.
func (eb *EventBus) PublishLivenessChanged(ctx context.Context, tr domain.LivenessTransition) error {
	payload, _ := json.Marshal(tr)
	return eb.Publish(ctx, &Event{
		Type:     EventLivenessChanged,
		Endpoint: tr.Endpoint,
		Payload:  payload,
	})
}

// Subscribe blocks handling events until ctx is cancelled. Events from
// this instance are skipped.
func (eb *EventBus) Subscribe(ctx context.Context, handler func(*Event) error) error {
	if eb.pubsub != nil {
		return fmt.Errorf("already subscribed")
	}

	eb.pubsub = eb.client.Subscribe(ctx, eb.channels...)
	defer eb.pubsub.Close()

	ch := eb.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				eb.logger.Warnw("failed to unmarshal event", "error", err, "payload", msg.Payload)
				continue
			}

			if event.InstanceID == eb.instanceID {
				continue
			}

			if err := handler(&event); err != nil {
				eb.logger.Warnw("error handling event", "type", event.Type, "error", err)
			}
		}
	}
}

// DecodeTransition extracts the transition from a liveness event payload.
func DecodeTransition(event *Event) (domain.LivenessTransition, error) {
	var tr domain.LivenessTransition
	if err := json.Unmarshal(event.Payload, &tr); err != nil {
		return domain.LivenessTransition{}, fmt.Errorf("decode liveness payload: %w", err)
	}
	return tr, nil
}

// Close closes the event bus.
func (eb *EventBus) Close() error {
	if eb.pubsub != nil {
		return eb.pubsub.Close()
	}
	return nil
}
