package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"careerloop-engine/pkg/config"
	"careerloop-engine/pkg/task"
	"careerloop-engine/pkg/taskname"

	"github.com/hibiken/asynq"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:generate mockgen -destination=mock/notifier.go -package=mock careerloop-engine/services/orchestrator Notifier

// Notifier publishes verification events for downstream delivery.
type Notifier interface {
	TaskVerified(ctx context.Context, e TaskVerifiedEvent) error
	ScoreUpdated(ctx context.Context, e ScoreUpdatedEvent) error
}

type TaskVerifiedEvent struct {
	UserID     string    `json:"user_id"`
	PeriodKey  string    `json:"period"`
	UserTaskID string    `json:"user_task_id"`
	TaskCode   string    `json:"task_code"`
	Points     int       `json:"points"`
	Awarded    bool      `json:"awarded"`
	VerifiedAt time.Time `json:"verified_at"`
}

type ScoreUpdatedEvent struct {
	UserID      string `json:"user_id"`
	PeriodKey   string `json:"period"`
	PointsTotal int    `json:"points_total"`
	StreakWeeks int    `json:"streak_weeks"`
}

type nopNotifier struct{}

func (nopNotifier) TaskVerified(context.Context, TaskVerifiedEvent) error { return nil }
func (nopNotifier) ScoreUpdated(context.Context, ScoreUpdatedEvent) error { return nil }

// NopNotifier drops every event.
func NopNotifier() Notifier { return nopNotifier{} }

type asynqNotifier struct {
	enqueuer task.Enqueuer
}

// NewAsynqNotifier enqueues one low priority task per event.
func NewAsynqNotifier(enqueuer task.Enqueuer) Notifier {
	return &asynqNotifier{enqueuer: enqueuer}
}

func (n *asynqNotifier) enqueue(typename string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = n.enqueuer.Enqueue(asynq.NewTask(typename, payload), asynq.Queue(taskname.QueueLow), asynq.MaxRetry(5))
	return err
}

func (n *asynqNotifier) TaskVerified(_ context.Context, e TaskVerifiedEvent) error {
	return n.enqueue(taskname.NotifyTaskVerified, e)
}

func (n *asynqNotifier) ScoreUpdated(_ context.Context, e ScoreUpdatedEvent) error {
	return n.enqueue(taskname.NotifyScoreUpdated, e)
}

type rabbitNotifier struct {
	conn       *amqp.Connection
	exchange   string
	routingKey string

	mu sync.Mutex
	ch *amqp.Channel
}

// newRabbitNotifier publishes persistent JSON messages to the configured
// exchange. The channel is reopened lazily after it closes.
func newRabbitNotifier(cfg *config.Config) (*rabbitNotifier, error) {
	conn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	routingKey := cfg.RabbitMQ.RoutingKey
	if routingKey == "" {
		routingKey = "engine.events"
	}
	return &rabbitNotifier{conn: conn, exchange: cfg.RabbitMQ.Exchange, routingKey: routingKey}, nil
}

func (n *rabbitNotifier) channel() (*amqp.Channel, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.ch != nil && !n.ch.IsClosed() {
		return n.ch, nil
	}
	ch, err := n.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publish channel: %w", err)
	}
	n.ch = ch
	return ch, nil
}

func (n *rabbitNotifier) publish(ctx context.Context, eventType string, v any) error {
	ch, err := n.channel()
	if err != nil {
		return err
	}

	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return ch.PublishWithContext(ctx, n.exchange, n.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Type:         eventType,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
}

func (n *rabbitNotifier) TaskVerified(ctx context.Context, e TaskVerifiedEvent) error {
	return n.publish(ctx, taskname.NotifyTaskVerified, e)
}

func (n *rabbitNotifier) ScoreUpdated(ctx context.Context, e ScoreUpdatedEvent) error {
	return n.publish(ctx, taskname.NotifyScoreUpdated, e)
}

func (n *rabbitNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ch != nil {
		_ = n.ch.Close()
	}
	return n.conn.Close()
}

type NotifierParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Enqueuer  task.Enqueuer `optional:"true"`
}

// NewNotifier picks the backend named by ENGINE.NOTIFIER.
func NewNotifier(p NotifierParams) (Notifier, error) {
	switch p.Config.Engine.Notifier {
	case "rabbitmq":
		n, err := newRabbitNotifier(p.Config)
		if err != nil {
			return nil, err
		}
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error { return n.Close() },
		})
		zap.L().Info("[Notifier] publishing to rabbitmq", zap.String("exchange", p.Config.RabbitMQ.Exchange))
		return n, nil
	case "none":
		return NopNotifier(), nil
	default:
		if p.Enqueuer == nil {
			zap.L().Warn("[Notifier] no asynq client, events are dropped")
			return NopNotifier(), nil
		}
		return NewAsynqNotifier(p.Enqueuer), nil
	}
}
