// Package notify delivers engine events to interested parties.
//
// The engine itself only knows the Notifier contract; this package
// provides the concrete sinks: structured logs, NATS subjects, and a
// fan-out combinator for using several at once.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/c360/rulegate/engine"
	"github.com/c360/rulegate/errors"
	"github.com/c360/rulegate/metric"
	"github.com/c360/rulegate/natsclient"
	"github.com/c360/rulegate/pkg/retry"
)

// DefaultSubjectPrefix is used when no subject prefix is configured.
const DefaultSubjectPrefix = "rulegate"

// LogNotifier writes RulesDefined events to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger falls back to the
// default slog logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// RulesDefined implements engine.Notifier
func (n *LogNotifier) RulesDefined(ctx context.Context, event engine.RulesDefinedEvent) error {
	n.logger.InfoContext(ctx, "RulesDefined",
		"engine", event.Engine,
		"count", event.Count,
		"event_id", event.EventID,
		"at", event.At)
	return nil
}

// Multi fans one event out to several notifiers. Every notifier is
// invoked even when earlier ones fail; failures are joined. Sinks may be
// added after construction, which lets the engine's notifier be wired
// before sinks that themselves depend on the engine exist.
type Multi struct {
	mu        sync.RWMutex
	notifiers []engine.Notifier
}

// NewMulti creates a fan-out over the given notifiers.
func NewMulti(notifiers ...engine.Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Add registers another sink.
func (m *Multi) Add(n engine.Notifier) {
	if n == nil {
		return
	}
	m.mu.Lock()
	m.notifiers = append(m.notifiers, n)
	m.mu.Unlock()
}

// RulesDefined implements engine.Notifier
func (m *Multi) RulesDefined(ctx context.Context, event engine.RulesDefinedEvent) error {
	m.mu.RLock()
	notifiers := make([]engine.Notifier, len(m.notifiers))
	copy(notifiers, m.notifiers)
	m.mu.RUnlock()

	var errs []error
	for _, n := range notifiers {
		if n == nil {
			continue
		}
		if err := n.RulesDefined(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.WrapTransient(joinErrors(errs), "Multi", "RulesDefined", "fan-out")
	}
	return nil
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	joined := errs[0]
	for _, err := range errs[1:] {
		joined = fmt.Errorf("%w; %w", joined, err)
	}
	return joined
}

// NATSNotifier publishes RulesDefined events as JSON to a NATS subject,
// retrying transient publish failures with exponential backoff.
type NATSNotifier struct {
	client  *natsclient.Client
	subject string
	retry   retry.Config
	logger  *slog.Logger
	metrics *metric.Metrics
}

// NATSOption configures a NATSNotifier
type NATSOption func(*NATSNotifier)

// WithRetryConfig overrides the publish retry policy
func WithRetryConfig(cfg retry.Config) NATSOption {
	return func(n *NATSNotifier) { n.retry = cfg }
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) NATSOption {
	return func(n *NATSNotifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithMetrics records publish outcomes in the core platform metrics
func WithMetrics(m *metric.Metrics) NATSOption {
	return func(n *NATSNotifier) { n.metrics = m }
}

// NewNATSNotifier creates a notifier publishing to
// "<subjectPrefix>.rules.defined".
func NewNATSNotifier(client *natsclient.Client, subjectPrefix string, opts ...NATSOption) (*NATSNotifier, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"NATSNotifier", "NewNATSNotifier", "NATS client validation")
	}
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}

	n := &NATSNotifier{
		client:  client,
		subject: subjectPrefix + ".rules.defined",
		retry:   retry.DefaultConfig(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Subject returns the subject events are published to.
func (n *NATSNotifier) Subject() string { return n.subject }

// RulesDefined implements engine.Notifier
func (n *NATSNotifier) RulesDefined(ctx context.Context, event engine.RulesDefinedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.WrapInvalid(err, "NATSNotifier", "RulesDefined", "event encoding")
	}

	err = retry.Do(ctx, n.retry, func() error {
		return n.client.Publish(n.subject, payload)
	})
	if err != nil {
		if n.metrics != nil {
			n.metrics.RecordEventPublished(n.subject, "failure")
		}
		n.logger.ErrorContext(ctx, "Event publish failed",
			"subject", n.subject, "event_id", event.EventID, "error", err)
		return errors.WrapTransient(
			fmt.Errorf("%w: %w", errors.ErrPublishFailed, err),
			"NATSNotifier", "RulesDefined", "publish")
	}

	if n.metrics != nil {
		n.metrics.RecordEventPublished(n.subject, "success")
	}
	n.logger.DebugContext(ctx, "Event published",
		"subject", n.subject, "event_id", event.EventID, "count", event.Count)
	return nil
}
