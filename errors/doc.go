// Package errors provides standardized error handling patterns for RuleGate.
//
// # Overview
//
// The package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input or rejected request,
// non-retryable), and Fatal (unrecoverable, stop processing). Classification
// lets components make retry and escalation decisions without matching on
// error strings.
//
// The engine's error taxonomy maps onto the standard variables:
//
//   - ErrUnauthorized: a non-administrator attempted to replace the rule set
//   - ErrOutOfRange: a rule index at or beyond the current rule count
//   - ErrRuleFailed: a rule predicate itself failed to produce a decision
//
// A false result from a rule predicate is never an error; it is the designed
// mechanism by which policy rejection is communicated. ErrRuleFailed marks
// host-level faults only (for example an unreachable dependency inside a
// rule implementation).
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")
//	errors.WrapInvalid(err, "Component", "Method", "action")
//	errors.WrapFatal(err, "Component", "Method", "action")
//
// The generic Wrap() adds context without forcing a class, preserving the
// classification of the wrapped error through errors.Is/As chains.
//
// # Usage
//
// Check classification for retry logic:
//
//	if err := notifier.Publish(ctx, event); err != nil {
//	    if errors.IsTransient(err) {
//	        // retry with backoff (see pkg/retry)
//	    }
//	}
//
// Check for specific conditions with the standard library:
//
//	if stderrors.Is(err, errors.ErrUnauthorized) {
//	    // reject the administrative request, nothing changed
//	}
//
// All classification and wrapping operations are thread-safe; standard error
// variables are immutable and safe for concurrent access.
package errors
