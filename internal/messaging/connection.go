package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection wraps an AMQP connection.
type Connection struct {
	URL  string
	Conn *amqp.Connection
}

// Connect dials url, retrying every interval until attempts run out or ctx ends.
func Connect(ctx context.Context, url string, attempts int, interval time.Duration, logger *slog.Logger) (*Connection, error) {
	var (
		conn *amqp.Connection
		err  error
	)
	for i := 1; i <= attempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			logger.Info("connected to rabbitmq", "attempt", i)
			return &Connection{URL: url, Conn: conn}, nil
		}
		logger.Warn("failed to connect to rabbitmq, retrying", "attempt", i, "retry_in", interval, "error", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq connect cancelled: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
	return nil, fmt.Errorf("could not connect to rabbitmq after %d attempts: %w", attempts, err)
}

func (c *Connection) Channel() (*amqp.Channel, error) {
	return c.Conn.Channel()
}

func (c *Connection) Close() error {
	if c.Conn != nil {
		return c.Conn.Close()
	}
	return nil
}
