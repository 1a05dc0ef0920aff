// Package natsclient provides a managed NATS connection for event delivery.
package natsclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/rulegate/errors"
	"github.com/c360/rulegate/metric"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusClosed
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client manages a NATS connection with reconnect handling and optional
// health metrics. The zero value is not usable; construct with NewClient.
type Client struct {
	url           string
	clientName    string
	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration

	logger  *slog.Logger
	metrics *metric.Metrics

	conn   *nats.Conn
	status atomic.Value // ConnectionStatus
	closed atomic.Bool

	mu sync.RWMutex // protects conn
}

// Option configures a Client
type Option func(*Client)

// WithClientName sets the connection name reported to the server
func WithClientName(name string) Option {
	return func(c *Client) { c.clientName = name }
}

// WithTimeout sets the initial connect timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithReconnectWait sets the delay between reconnect attempts
func WithReconnectWait(d time.Duration) Option {
	return func(c *Client) { c.reconnectWait = d }
}

// WithMaxReconnects sets the reconnect attempt limit (-1 = unlimited)
func WithMaxReconnects(n int) Option {
	return func(c *Client) { c.maxReconnects = n }
}

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics wires connection health into the core platform metrics
func WithMetrics(m *metric.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a new NATS client with optional configuration. The
// client does not connect until Connect is called.
func NewClient(url string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"Client", "NewClient", "NATS URL validation")
	}

	c := &Client{
		url:           url,
		clientName:    "rulegate",
		maxReconnects: -1, // infinite by default
		reconnectWait: 2 * time.Second,
		timeout:       5 * time.Second,
		drainTimeout:  30 * time.Second,
		logger:        slog.Default(),
	}
	c.status.Store(StatusDisconnected)

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Connect establishes the NATS connection. It respects ctx for the initial
// dial; reconnects afterwards are handled by the underlying library.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStarted,
			"Client", "Connect", "connect after close")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.conn.IsConnected() {
		return nil
	}

	c.status.Store(StatusConnecting)

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	conn, err := nats.Connect(c.url,
		nats.Name(c.clientName),
		nats.Timeout(timeout),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, derr error) {
			c.status.Store(StatusReconnecting)
			c.recordHealth(0)
			c.logger.Warn("NATS disconnected", "url", c.url, "error", derr)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.status.Store(StatusConnected)
			c.recordHealth(1)
			if c.metrics != nil {
				c.metrics.RecordNATSReconnect()
			}
			c.logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.status.Store(StatusClosed)
			c.recordHealth(0)
			c.logger.Info("NATS connection closed", "url", c.url)
		}),
	)
	if err != nil {
		c.status.Store(StatusDisconnected)
		c.recordHealth(0)
		return errors.WrapTransient(err, "Client", "Connect",
			fmt.Sprintf("dial %s", c.url))
	}

	c.conn = conn
	c.status.Store(StatusConnected)
	c.recordHealth(1)
	c.logger.Info("NATS connected", "url", conn.ConnectedUrl(), "client", c.clientName)
	return nil
}

// Publish sends data to subject. Returns ErrNoConnection when the client
// has not connected or the connection is down.
func (c *Client) Publish(subject string, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return errors.WrapTransient(errors.ErrNoConnection,
			"Client", "Publish", fmt.Sprintf("publish to %s", subject))
	}

	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "Client", "Publish",
			fmt.Sprintf("publish to %s", subject))
	}
	return nil
}

// IsConnected reports whether the underlying connection is up
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	return c.status.Load().(ConnectionStatus)
}

// Close drains and closes the connection. Safe to call more than once.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		if err := c.conn.Drain(); err != nil {
			c.logger.Warn("NATS drain failed, closing directly", "error", err)
			c.conn.Close()
		}
		c.conn = nil
	}
	c.status.Store(StatusClosed)
	c.recordHealth(0)
}

func (c *Client) recordHealth(healthy float64) {
	if c.metrics != nil {
		c.metrics.RecordNATSHealth(healthy)
	}
}
