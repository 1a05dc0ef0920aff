// Package rule defines the contract between the compliance engine and the
// rules it evaluates.
//
// A Rule answers two questions: whether a single address is compliant, and
// whether a specific transfer is compliant. Both predicates are read-only
// from the engine's perspective; a rule may maintain its own private state
// (a freeze list, a schedule) but mutating it is an out-of-band concern of
// the rule's owner. A false result is a policy decision, not an error; a
// non-nil error means the rule itself failed to produce a decision and
// aborts the whole validation.
package rule

import "context"

// Address is an opaque account identity as seen by the engine. The engine
// never interprets its contents; rules are free to impose their own format.
type Address string

// Rule is a single compliance predicate over an address or a transfer.
// Implementations must be safe for concurrent use: the engine evaluates
// rules from concurrent readers without coordination.
type Rule interface {
	// Name returns a stable identifier used in logs, metrics and listings.
	Name() string

	// IsAddressValid reports whether addr is permitted by this rule in
	// isolation. Rules that only concern themselves with transfers should
	// return true unconditionally.
	IsAddressValid(ctx context.Context, addr Address) (bool, error)

	// IsTransferValid reports whether the transfer of amount from one
	// address to another is permitted by this rule. A rule may ignore the
	// amount or either address depending on its concern.
	IsTransferValid(ctx context.Context, from, to Address, amount uint64) (bool, error)
}

// AddressPredicate decides standalone-address validity.
type AddressPredicate func(ctx context.Context, addr Address) (bool, error)

// TransferPredicate decides transfer validity.
type TransferPredicate func(ctx context.Context, from, to Address, amount uint64) (bool, error)

// funcRule adapts predicate functions to the Rule interface.
type funcRule struct {
	name     string
	address  AddressPredicate
	transfer TransferPredicate
}

// New returns a Rule backed by the given predicate functions. A nil
// predicate passes trivially, so a transfer-only rule can be built by
// supplying only the transfer predicate.
func New(name string, address AddressPredicate, transfer TransferPredicate) Rule {
	return &funcRule{name: name, address: address, transfer: transfer}
}

func (r *funcRule) Name() string { return r.name }

func (r *funcRule) IsAddressValid(ctx context.Context, addr Address) (bool, error) {
	if r.address == nil {
		return true, nil
	}
	return r.address(ctx, addr)
}

func (r *funcRule) IsTransferValid(ctx context.Context, from, to Address, amount uint64) (bool, error) {
	if r.transfer == nil {
		return true, nil
	}
	return r.transfer(ctx, from, to, amount)
}

// staticRule answers every predicate with a fixed verdict.
type staticRule struct {
	name    string
	verdict bool
}

// AllowAll returns a rule that permits every address and transfer. Useful
// as a placeholder in declarative rule sets.
func AllowAll() Rule {
	return &staticRule{name: "allow-all", verdict: true}
}

// DenyAll returns a rule that rejects every address and transfer. Placing
// it first in a sequence halts a token instrument without discarding the
// rest of the configured sequence semantics.
func DenyAll() Rule {
	return &staticRule{name: "deny-all", verdict: false}
}

func (r *staticRule) Name() string { return r.name }

func (r *staticRule) IsAddressValid(_ context.Context, _ Address) (bool, error) {
	return r.verdict, nil
}

func (r *staticRule) IsTransferValid(_ context.Context, _, _ Address, _ uint64) (bool, error) {
	return r.verdict, nil
}
