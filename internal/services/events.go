package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type EventType string

const (
	EventBetPlaced       EventType = "bet.placed"
	EventBetResolved     EventType = "bet.resolved"
	EventRoundRevealed   EventType = "round.revealed"
	EventRoundAbandoned  EventType = "round.abandoned"
	EventSecurityFlagged EventType = "security.flagged"
	EventIntegrityAlert  EventType = "fairness.integrity_alert"
	EventAccountCredited EventType = "account.credited"
	EventRewardClaimed   EventType = "reward.claimed"
)

type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id,omitempty"`
	RoundID   string      `json:"round_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewEvent stamps a fresh event with at, which callers take from their
// injected clock.
func NewEvent(at time.Time, typ EventType, userID, roundID string, data interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		UserID:    userID,
		RoundID:   roundID,
		Data:      data,
		CreatedAt: at,
	}
}

// Publisher hands events to the notification channel. Publish never blocks the
// caller and never fails the operation that produced the event.
type Publisher interface {
	Publish(e Event)
}

type Sink interface {
	Deliver(ctx context.Context, e Event) error
}

// Dispatcher fans events out to its sinks from a single goroutine.
type Dispatcher struct {
	events  chan Event
	sinks   []Sink
	log     *zap.Logger
	metrics *Metrics
}

func NewDispatcher(buffer int, log *zap.Logger, metrics *Metrics, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	return &Dispatcher{
		events:  make(chan Event, buffer),
		sinks:   sinks,
		log:     log,
		metrics: metrics,
	}
}

func (d *Dispatcher) AddSink(s Sink) {
	d.sinks = append(d.sinks, s)
}

func (d *Dispatcher) Publish(e Event) {
	select {
	case d.events <- e:
	default:
		d.metrics.EventsDropped.Inc(1)
		d.log.Warn("event buffer full, dropping event",
			zap.String("type", string(e.Type)),
			zap.String("user_id", e.UserID),
			zap.String("round_id", e.RoundID))
	}
}

// Run delivers events until ctx is cancelled, then drains what is buffered.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case e := <-d.events:
			d.deliver(ctx, e)
		case <-ctx.Done():
			for {
				select {
				case e := <-d.events:
					d.deliver(context.Background(), e)
				default:
					return nil
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e Event) {
	for _, s := range d.sinks {
		if err := s.Deliver(ctx, e); err != nil {
			d.log.Warn("event delivery failed",
				zap.String("type", string(e.Type)),
				zap.String("sink", fmt.Sprintf("%T", s)),
				zap.Error(err))
		}
	}
}

// RedisEventSink publishes every event on a Redis channel so other API
// processes can forward them to their websocket clients.
type RedisEventSink struct {
	client  *redis.Client
	channel string
}

func NewRedisEventSink(client *redis.Client, channel string) *RedisEventSink {
	return &RedisEventSink{client: client, channel: channel}
}

func (s *RedisEventSink) Deliver(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %v", err)
	}
	return s.client.Publish(ctx, s.channel, data).Err()
}

// RelayEvents forwards events published on channel to sink until ctx is
// cancelled.
func RelayEvents(ctx context.Context, client *redis.Client, channel string, sink Sink, log *zap.Logger) error {
	pubsub := client.Subscribe(ctx, channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				log.Warn("discarding malformed event", zap.Error(err))
				continue
			}
			if err := sink.Deliver(ctx, e); err != nil {
				log.Warn("event relay failed", zap.String("type", string(e.Type)), zap.Error(err))
			}
		}
	}
}

// AuditLogSink writes security and integrity events to the log.
type AuditLogSink struct {
	log *zap.Logger
}

func NewAuditLogSink(log *zap.Logger) *AuditLogSink {
	return &AuditLogSink{log: log.Named("audit")}
}

func (s *AuditLogSink) Deliver(_ context.Context, e Event) error {
	fields := []zap.Field{
		zap.String("event_id", e.ID),
		zap.String("user_id", e.UserID),
		zap.String("round_id", e.RoundID),
		zap.Any("data", e.Data),
	}
	switch e.Type {
	case EventIntegrityAlert:
		s.log.Error(string(e.Type), fields...)
	case EventSecurityFlagged:
		s.log.Warn(string(e.Type), fields...)
	default:
		s.log.Debug(string(e.Type), fields...)
	}
	return nil
}
