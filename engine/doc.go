// Package engine implements the ordered compliance rule evaluator.
//
// An Engine holds an ordered sequence of rule.Rule values and validates
// addresses and transfers against them. Evaluation follows the stored
// order and short-circuits on the first rejecting rule, so callers should
// order rules by ascending evaluation cost and descending likelihood of
// rejection. An empty sequence makes every input valid.
//
// The sequence has exactly one mutator, DefineRules, which atomically
// replaces the whole sequence and emits a single RulesDefined event. There
// are deliberately no per-index insert, update or delete operations:
// whole-set redefinition keeps the cost ordering decision holistic.
//
// # Concurrency
//
// The rule sequence lives behind an atomic pointer. Validation reads are
// lock-free and may run concurrently with each other and with DefineRules;
// a reader observes either the fully-old or the fully-new sequence, never
// a mix. DefineRules copies the caller's slice before installing it, so
// callers may reuse their slice afterwards.
//
// # Failure policy
//
// A rule predicate returning false is a policy decision, not an error. A
// predicate returning a non-nil error is a host-level fault; the engine
// aborts the validation and propagates the failure wrapped around
// errors.ErrRuleFailed rather than silently treating the rule as passing.
// WithPermissiveFailures converts such faults into plain rejections for
// environments that prefer fail-closed behavior without surfacing errors.
package engine
