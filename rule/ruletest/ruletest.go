// Package ruletest provides rule doubles for testing engines and rule
// compositions without real rule implementations.
package ruletest

import (
	"context"
	"sync/atomic"

	"github.com/c360/rulegate/rule"
)

// Static is a rule with fixed verdicts per predicate.
type Static struct {
	RuleName   string
	AddressOK  bool
	TransferOK bool
}

// Name implements rule.Rule
func (s *Static) Name() string {
	if s.RuleName == "" {
		return "static"
	}
	return s.RuleName
}

// IsAddressValid implements rule.Rule
func (s *Static) IsAddressValid(_ context.Context, _ rule.Address) (bool, error) {
	return s.AddressOK, nil
}

// IsTransferValid implements rule.Rule
func (s *Static) IsTransferValid(_ context.Context, _, _ rule.Address, _ uint64) (bool, error) {
	return s.TransferOK, nil
}

// Counting wraps another rule and counts predicate invocations. It is the
// instrument for short-circuit proofs: a rule placed after a rejecting rule
// must keep a zero count.
type Counting struct {
	Inner rule.Rule

	addressCalls  atomic.Int64
	transferCalls atomic.Int64
}

// Wrap returns a Counting rule around inner.
func Wrap(inner rule.Rule) *Counting {
	return &Counting{Inner: inner}
}

// Name implements rule.Rule
func (c *Counting) Name() string { return c.Inner.Name() }

// IsAddressValid implements rule.Rule
func (c *Counting) IsAddressValid(ctx context.Context, addr rule.Address) (bool, error) {
	c.addressCalls.Add(1)
	return c.Inner.IsAddressValid(ctx, addr)
}

// IsTransferValid implements rule.Rule
func (c *Counting) IsTransferValid(ctx context.Context, from, to rule.Address, amount uint64) (bool, error) {
	c.transferCalls.Add(1)
	return c.Inner.IsTransferValid(ctx, from, to, amount)
}

// AddressCalls returns how many times IsAddressValid was invoked.
func (c *Counting) AddressCalls() int64 { return c.addressCalls.Load() }

// TransferCalls returns how many times IsTransferValid was invoked.
func (c *Counting) TransferCalls() int64 { return c.transferCalls.Load() }

// Failing is a rule whose predicates fail with a fixed error, simulating a
// host-level fault such as an unreachable dependency.
type Failing struct {
	RuleName string
	Err      error
}

// Name implements rule.Rule
func (f *Failing) Name() string {
	if f.RuleName == "" {
		return "failing"
	}
	return f.RuleName
}

// IsAddressValid implements rule.Rule
func (f *Failing) IsAddressValid(_ context.Context, _ rule.Address) (bool, error) {
	return false, f.Err
}

// IsTransferValid implements rule.Rule
func (f *Failing) IsTransferValid(_ context.Context, _, _ rule.Address, _ uint64) (bool, error) {
	return false, f.Err
}
