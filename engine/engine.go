package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/c360/rulegate/errors"
	"github.com/c360/rulegate/metric"
	"github.com/c360/rulegate/rule"
)

// Principal identifies the caller of an administrative operation.
type Principal string

// Authorizer decides whether a principal may replace the rule sequence.
// A nil error means the operation is allowed.
type Authorizer interface {
	Authorize(ctx context.Context, principal Principal) error
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, principal Principal) error

// Authorize implements Authorizer
func (f AuthorizerFunc) Authorize(ctx context.Context, principal Principal) error {
	return f(ctx, principal)
}

// SingleAdmin returns an Authorizer that permits exactly one administrator
// principal, the single-owner pattern of the rule engine contract.
func SingleAdmin(admin Principal) Authorizer {
	return AuthorizerFunc(func(_ context.Context, principal Principal) error {
		if principal != admin {
			return errors.ErrUnauthorized
		}
		return nil
	})
}

// RulesDefinedEvent is emitted exactly once per successful DefineRules
// call. It carries the new rule count, not the rule identities.
type RulesDefinedEvent struct {
	EventID string    `json:"event_id"`
	Engine  string    `json:"engine"`
	Count   int       `json:"count"`
	At      time.Time `json:"at"`
}

// Notifier receives RulesDefined events synchronously with the rule set
// transition. Implementations must not block indefinitely.
type Notifier interface {
	RulesDefined(ctx context.Context, event RulesDefinedEvent) error
}

// Engine aggregates an ordered sequence of compliance rules and evaluates
// them against addresses and transfers.
//
// Rules are evaluated in stored order with short-circuit semantics: the
// first rule to reject ends the validation, and an empty sequence makes
// every input valid. The sequence is only ever replaced wholesale by
// DefineRules; readers observe the current sequence through an atomic
// pointer and never see a partial replacement.
type Engine struct {
	name       string
	rules      atomic.Pointer[[]rule.Rule]
	authorizer Authorizer
	notifier   Notifier
	logger     *slog.Logger
	metrics    *engineMetrics
	permissive bool

	metricsRegistry *metric.Registry
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithRules sets the initial rule sequence. Construction does not emit a
// RulesDefined event; only DefineRules does.
func WithRules(rules ...rule.Rule) Option {
	return func(e *Engine) {
		initial := make([]rule.Rule, len(rules))
		copy(initial, rules)
		e.rules.Store(&initial)
	}
}

// WithAuthorizer sets the administrative authorizer. Without one the
// engine rejects every DefineRules call.
func WithAuthorizer(a Authorizer) Option {
	return func(e *Engine) {
		if a != nil {
			e.authorizer = a
		}
	}
}

// WithAdmin is shorthand for WithAuthorizer(SingleAdmin(admin)).
func WithAdmin(admin Principal) Option {
	return WithAuthorizer(SingleAdmin(admin))
}

// WithNotifier sets the RulesDefined event sink.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics registers engine metrics with the provided registry.
func WithMetrics(registry *metric.Registry) Option {
	return func(e *Engine) { e.metricsRegistry = registry }
}

// WithPermissiveFailures makes a failing rule predicate count as a policy
// rejection instead of aborting the validation with an error. The default
// is the conservative policy: propagate the failure to the caller.
func WithPermissiveFailures() Option {
	return func(e *Engine) { e.permissive = true }
}

// New creates a rule engine. The zero configuration is an empty rule
// sequence (every input valid) with no administrator, no notifier, the
// default logger and no metrics.
func New(name string, opts ...Option) *Engine {
	e := &Engine{
		name:       name,
		authorizer: denyAllAuthorizer{},
		logger:     slog.Default(),
	}
	empty := make([]rule.Rule, 0)
	e.rules.Store(&empty)

	for _, opt := range opts {
		opt(e)
	}

	if e.metricsRegistry != nil {
		metrics, err := newEngineMetrics(e.metricsRegistry)
		if err != nil {
			e.logger.Error("Failed to initialize rule engine metrics", "engine", e.name, "error", err)
		} else {
			e.metrics = metrics
			e.metrics.setRuleCount(e.name, e.RuleCount())
		}
	}

	return e
}

// denyAllAuthorizer is the default when no administrator is configured.
type denyAllAuthorizer struct{}

func (denyAllAuthorizer) Authorize(context.Context, Principal) error {
	return errors.ErrUnauthorized
}

// Name returns the engine's identity used in logs, metrics and events.
func (e *Engine) Name() string { return e.name }

// snapshot returns the current rule sequence. The slice is never mutated
// after being stored, so it is safe to iterate without a copy.
func (e *Engine) snapshot() []rule.Rule {
	return *e.rules.Load()
}

// RuleCount returns the number of rules currently held.
func (e *Engine) RuleCount() int {
	return len(e.snapshot())
}

// RuleAt returns the rule at index in the current sequence. Indices are
// stable only until the next replacement.
func (e *Engine) RuleAt(index int) (rule.Rule, error) {
	rules := e.snapshot()
	if index < 0 || index >= len(rules) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("index %d with count %d: %w", index, len(rules), errors.ErrOutOfRange),
			"Engine", "RuleAt", "bounds check")
	}
	return rules[index], nil
}

// ValidateAddress reports whether every rule in the sequence permits addr,
// evaluating in stored order and stopping at the first rejection. An empty
// sequence permits every address.
func (e *Engine) ValidateAddress(ctx context.Context, addr rule.Address) (bool, error) {
	return e.evaluate(ctx, "ValidateAddress", func(r rule.Rule) (bool, error) {
		return r.IsAddressValid(ctx, addr)
	})
}

// ValidateTransfer reports whether every rule in the sequence permits the
// transfer, with the same ordering and short-circuit semantics as
// ValidateAddress.
func (e *Engine) ValidateTransfer(ctx context.Context, from, to rule.Address, amount uint64) (bool, error) {
	return e.evaluate(ctx, "ValidateTransfer", func(r rule.Rule) (bool, error) {
		return r.IsTransferValid(ctx, from, to, amount)
	})
}

func (e *Engine) evaluate(ctx context.Context, operation string, check func(rule.Rule) (bool, error)) (bool, error) {
	start := time.Now()

	for _, r := range e.snapshot() {
		ok, err := check(r)
		if err != nil {
			e.metrics.observeValidation(e.name, operation, outcomeError, time.Since(start))
			if e.permissive {
				e.logger.WarnContext(ctx, "Rule evaluation failed, treating as rejection",
					"engine", e.name, "operation", operation, "rule", r.Name(), "error", err)
				return false, nil
			}
			return false, errors.WrapTransient(
				fmt.Errorf("%w: rule %q: %w", errors.ErrRuleFailed, r.Name(), err),
				"Engine", operation, "rule evaluation")
		}
		if !ok {
			e.metrics.observeValidation(e.name, operation, outcomeRejected, time.Since(start))
			return false, nil
		}
	}

	e.metrics.observeValidation(e.name, operation, outcomeAllowed, time.Since(start))
	return true, nil
}

// DefineRules atomically replaces the entire rule sequence with newRules
// (which may be empty). It is the only mutator of the sequence and is
// restricted to the administrator principal. On success exactly one
// RulesDefined event is emitted, synchronously with the transition.
func (e *Engine) DefineRules(ctx context.Context, principal Principal, newRules []rule.Rule) error {
	if err := e.authorizer.Authorize(ctx, principal); err != nil {
		e.metrics.recordReplacement(e.name, "unauthorized")
		e.logger.WarnContext(ctx, "Unauthorized rule set replacement rejected",
			"engine", e.name, "principal", string(principal))
		if !stderrors.Is(err, errors.ErrUnauthorized) {
			err = fmt.Errorf("%w: %w", errors.ErrUnauthorized, err)
		}
		return errors.WrapInvalid(err, "Engine", "DefineRules", "authorization")
	}

	next := make([]rule.Rule, len(newRules))
	copy(next, newRules)
	e.rules.Store(&next)

	event := RulesDefinedEvent{
		EventID: uuid.NewString(),
		Engine:  e.name,
		Count:   len(next),
		At:      time.Now().UTC(),
	}

	e.metrics.recordReplacement(e.name, "success")
	e.metrics.setRuleCount(e.name, len(next))
	e.logger.InfoContext(ctx, "Rule set replaced",
		"engine", e.name, "count", len(next), "event_id", event.EventID)

	if e.notifier != nil {
		if err := e.notifier.RulesDefined(ctx, event); err != nil {
			// The state transition already happened; delivery problems are
			// reported, not rolled back.
			e.logger.ErrorContext(ctx, "RulesDefined notification failed",
				"engine", e.name, "event_id", event.EventID, "error", err)
		}
	}

	return nil
}
