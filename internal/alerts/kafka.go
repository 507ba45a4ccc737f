package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/therealtplum/watch-heat/internal/domain"
)

// DefaultTopic is the topic hot-watch alerts are published to when the
// deployment does not override it.
const DefaultTopic = "watch-heat.hot"

// KafkaOption configures a KafkaPublisher.
type KafkaOption func(*KafkaPublisher)

// WithTopic overrides the alert topic.
func WithTopic(topic string) KafkaOption {
	return func(p *KafkaPublisher) {
		p.writer.Topic = topic
	}
}

// WithKafkaLogger sets the publisher's logger.
func WithKafkaLogger(logger *log.Logger) KafkaOption {
	return func(p *KafkaPublisher) {
		p.logger = logger
	}
}

// KafkaPublisher writes one alert message per hot row. Messages are keyed by
// "brand/reference" so repeated alerts for the same watch land on the same
// partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *log.Logger
}

// NewKafkaPublisher connects a publisher to the given brokers.
func NewKafkaPublisher(brokers []string, opts ...KafkaOption) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("alerts: no kafka brokers configured")
	}

	p := &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        DefaultTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		logger: log.New(os.Stderr, "[alerts] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// PublishHot implements Publisher.
func (p *KafkaPublisher) PublishHot(ctx context.Context, runDate time.Time, rows []domain.PricedRow) error {
	msgs, err := hotMessages(runDate, rows)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("alerts: write messages: %w", err)
	}
	p.logger.Printf("published %d hot alert(s) to %s", len(msgs), p.writer.Topic)
	return nil
}

// Close implements Publisher.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// hotMessages builds one keyed message per hot row.
func hotMessages(runDate time.Time, rows []domain.PricedRow) ([]kafka.Message, error) {
	var msgs []kafka.Message
	for _, row := range rows {
		if !row.IsHot {
			continue
		}

		payload, err := json.Marshal(newAlert(runDate, row))
		if err != nil {
			return nil, fmt.Errorf("alerts: marshal alert for %s %s: %w", row.Brand, row.Reference, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(row.Brand + "/" + row.Reference),
			Value: payload,
			Time:  time.Now(),
		})
	}
	return msgs, nil
}
