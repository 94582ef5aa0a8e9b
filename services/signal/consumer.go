package signal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"careerloop-engine/pkg/config"
	"careerloop-engine/pkg/errutil"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// SourceKafka marks signals consumed from the ingestion topic.
const SourceKafka = "kafka"

const pollTimeout = 500 * time.Millisecond

// HandleMessage appends one Kafka message. Malformed or invalid messages are
// dropped with a log line so the partition keeps moving.
func (s *Service) HandleMessage(ctx context.Context, value []byte) error {
	var p AppendParams
	if err := json.Unmarshal(value, &p); err != nil {
		zap.L().Warn("[Kafka] dropping malformed signal", zap.Error(err))
		return nil
	}
	if p.Source == "" {
		p.Source = SourceKafka
	}

	_, _, err := s.Append(ctx, p)
	if err != nil {
		var be errutil.BaseError
		if errors.As(err, &be) && be.Code != errutil.StatusInternal {
			zap.L().Warn("[Kafka] dropping invalid signal", zap.String("user_id", p.UserID), zap.Error(err))
			return nil
		}
		return err
	}
	return nil
}

type Consumer struct {
	consumer *kafka.Consumer
	svc      *Service
	topic    string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer returns nil when KAFKA.BROKERS is not configured.
func NewConsumer(cfg *config.Config, svc *Service) (*Consumer, error) {
	if cfg.Kafka.Brokers == "" {
		return nil, nil
	}

	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = cfg.AppName + "-signals"
	}

	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Kafka.Brokers,
		"group.id":           groupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return nil, err
	}

	return &Consumer{consumer: c, svc: svc, topic: cfg.Kafka.Topic}, nil
}

func (c *Consumer) Start() error {
	if err := c.consumer.SubscribeTopics([]string{c.topic}, nil); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go c.run(ctx)

	zap.L().Info("[Kafka] signal consumer started", zap.String("topic", c.topic))
	return nil
}

func (c *Consumer) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := c.consumer.ReadMessage(pollTimeout)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			zap.L().Error("[Kafka] read failed", zap.Error(err))
			continue
		}

		if err := c.svc.HandleMessage(ctx, msg.Value); err != nil {
			zap.L().Error("[Kafka] failed to store signal, retrying", zap.String("partition", msg.TopicPartition.String()), zap.Error(err))
			time.Sleep(time.Second)
			if err := c.consumer.Seek(msg.TopicPartition, 0); err != nil {
				zap.L().Error("[Kafka] seek failed", zap.Error(err))
			}
			continue
		}

		if _, err := c.consumer.CommitMessage(msg); err != nil {
			zap.L().Warn("[Kafka] commit failed", zap.Error(err))
		}
	}
}

func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.consumer.Close()
}

func registerConsumer(lc fx.Lifecycle, c *Consumer) {
	if c == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return c.Start() },
		OnStop:  func(context.Context) error { return c.Stop() },
	})
}
