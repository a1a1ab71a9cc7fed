// Package events publishes committed seating changes to a RabbitMQ queue.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/seating/internal/seating"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const contentTypeJSON = "application/json"

var (
	errMissingQueue  = errors.New("events: queue name required")
	errMissingOpener = errors.New("events: channel opener required")
	errClosed        = errors.New("events: publisher closed")
)

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// ChannelOpener opens a fresh channel; it is called again after a publish failure.
type ChannelOpener func() (Channel, error)

// PublisherConfig describes the queue and collaborators.
type PublisherConfig struct {
	Queue  string
	Open   ChannelOpener
	Clock  func() time.Time
	Logger *zap.Logger
}

// Publisher implements seating.ChangeNotifier over a durable queue.
type Publisher struct {
	queue  string
	open   ChannelOpener
	clock  func() time.Time
	logger *zap.Logger

	mu      sync.Mutex
	channel Channel
	closed  bool
	closers []func() error
}

var _ seating.ChangeNotifier = (*Publisher)(nil)

// NewPublisher constructs a publisher. The channel is opened on first use.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	queue := strings.TrimSpace(cfg.Queue)
	if queue == "" {
		return nil, errMissingQueue
	}
	if cfg.Open == nil {
		return nil, errMissingOpener
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{queue: queue, open: cfg.Open, clock: clock, logger: logger}, nil
}

// Dial connects to the broker and returns a publisher whose channels come from that connection.
// A closed connection is redialed the next time a channel is needed.
func Dial(url string, cfg PublisherConfig) (*Publisher, error) {
	connector := newConnector(url, dialAMQP, cfg.Logger)
	if err := connector.connect(); err != nil {
		return nil, err
	}
	cfg.Open = connector.open
	publisher, err := NewPublisher(cfg)
	if err != nil {
		_ = connector.close()
		return nil, err
	}
	publisher.closers = append(publisher.closers, connector.close)
	return publisher, nil
}

// NotifyChange publishes the change as a persistent JSON message.
func (p *Publisher) NotifyChange(ctx context.Context, change seating.Change) error {
	body, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("events: marshal change: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errClosed
	}
	channel, err := p.channelLocked()
	if err != nil {
		return err
	}
	err = channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.clock().UTC(),
		Type:         string(change.Kind),
		Body:         body,
	})
	if err != nil {
		p.logger.Warn("seating change publish failed",
			zap.String("queue", p.queue),
			zap.String("kind", string(change.Kind)),
			zap.Error(err))
		_ = channel.Close()
		p.channel = nil
		return err
	}
	return nil
}

func (p *Publisher) channelLocked() (Channel, error) {
	if p.channel != nil {
		return p.channel, nil
	}
	channel, err := p.open()
	if err != nil {
		return nil, fmt.Errorf("events: open channel: %w", err)
	}
	if _, err := channel.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		return nil, fmt.Errorf("events: declare queue %s: %w", p.queue, err)
	}
	p.channel = channel
	return channel, nil
}

// Close releases the channel and, for dialed publishers, the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
		p.channel = nil
	}
	for _, closer := range p.closers {
		errs = append(errs, closer())
	}
	return errors.Join(errs...)
}
