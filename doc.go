// Package rulegate provides a pluggable compliance rule engine for
// address-centric and transfer-centric operations.
//
// # Architecture
//
// RuleGate separates the engine from the rules it evaluates:
//
//	┌─────────────────────────────────────┐
//	│            Engine                   │  Ordered evaluation,
//	│  (validate, define, short-circuit)  │  atomic replacement
//	└─────────────────────────────────────┘
//	           ↓ delegates to
//	┌─────────────────────────────────────┐
//	│            Rules                    │  External predicate
//	│   (IsAddressValid, IsTransferValid) │  implementations
//	└─────────────────────────────────────┘
//	           ↓ events via
//	┌─────────────────────────────────────┐
//	│         Notifications               │  NATS, log, websocket
//	│        (RulesDefined)               │  fan-out
//	└─────────────────────────────────────┘
//
// The engine holds an ordered sequence of rules and evaluates them in
// stored order, short-circuiting on the first rejection. Order matters:
// callers are expected to place cheap, likely-to-fail rules first so the
// common rejection path terminates early.
//
// The rule sequence is only ever replaced wholesale. There is no
// per-index insert or delete; whole-set redefinition keeps the cost
// ordering decision holistic. Replacement is restricted to a single
// administrator principal and is installed with an atomic pointer swap,
// so concurrent readers always observe either the old or the new
// sequence, never a mix.
//
// RuleGate MUST NOT contain:
//   - Business rule logic (KYC whitelists, time-locks, freeze lists)
//   - Ledger or accounting logic of the calling system
//   - Persistence of rule state across restarts
//
// Rule implementations belong to the embedding program; the engine only
// requires the two predicates of the rule.Rule interface.
//
// # Packages
//
//   - rule: the Rule contract and neutral stock rules
//   - engine: the ordered evaluator and its administration surface
//   - registry: named rule factories for declarative rule sets
//   - notify: RulesDefined event delivery (NATS, log, fan-out)
//   - gateway/http: HTTP/WebSocket admin and validation surface
//   - metric: Prometheus metrics registry and server
//   - errors: classified error handling
//   - config: service configuration
//   - pkg/retry: exponential backoff for transient failures
package rulegate
