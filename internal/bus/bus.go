// Package bus provides the NATS connection used for outbound notifications
// and containment command delegation.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Config holds NATS connection settings.
type Config struct {
	URL           string
	Name          string
	MaxReconnects int // -1 for infinite
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultConfig returns connection settings suitable for local development.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "sentinel",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// Conn wraps a NATS connection with JSON publishing helpers.
type Conn struct {
	nc *nats.Conn
}

// Connect establishes a NATS connection with reconnect handling.
func Connect(cfg Config) (*Conn, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Conn{nc: nc}, nil
}

// PublishJSON marshals v and publishes it to the subject.
func (c *Conn) PublishJSON(ctx context.Context, subject string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.nc.Publish(subject, data)
}

// IsConnected reports whether the connection is currently established.
func (c *Conn) IsConnected() bool {
	return c.nc.IsConnected()
}

// Drain gracefully closes the connection, flushing in-flight messages.
func (c *Conn) Drain() error {
	return c.nc.Drain()
}

// Close closes the connection immediately.
func (c *Conn) Close() {
	c.nc.Close()
}
