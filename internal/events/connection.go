package events

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// connection is the subset of *amqp.Connection the connector needs.
type connection interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

type dialFunc func(url string) (connection, error)

type amqpConnection struct {
	conn *amqp.Connection
}

func dialAMQP(url string) (connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn: conn}, nil
}

func (c amqpConnection) Channel() (Channel, error) {
	channel, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	return channel, nil
}

func (c amqpConnection) IsClosed() bool {
	return c.conn.IsClosed()
}

func (c amqpConnection) Close() error {
	return c.conn.Close()
}

// connector owns the broker connection. amqp091 does not reconnect on its own, so a
// connection found closed is replaced before a channel is opened. Callers serialize
// access through the publisher mutex.
type connector struct {
	url    string
	dial   dialFunc
	logger *zap.Logger
	conn   connection
}

func newConnector(url string, dial dialFunc, logger *zap.Logger) *connector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &connector{url: url, dial: dial, logger: logger}
}

func (c *connector) connect() error {
	conn, err := c.dial(c.url)
	if err != nil {
		return fmt.Errorf("events: dial failed: %w", err)
	}
	c.conn = conn
	return nil
}

func (c *connector) open() (Channel, error) {
	if c.conn == nil || c.conn.IsClosed() {
		if err := c.reconnect(); err != nil {
			return nil, err
		}
	}
	channel, err := c.conn.Channel()
	if err == nil {
		return channel, nil
	}
	if !errors.Is(err, amqp.ErrClosed) {
		return nil, err
	}
	if err := c.reconnect(); err != nil {
		return nil, err
	}
	return c.conn.Channel()
}

func (c *connector) reconnect() error {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	if err := c.connect(); err != nil {
		c.logger.Warn("broker redial failed", zap.Error(err))
		return err
	}
	c.logger.Info("broker connection reestablished")
	return nil
}

func (c *connector) close() error {
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}
