package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_StandardVariables(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"unauthorized is invalid", ErrUnauthorized, ErrorInvalid},
		{"out of range is invalid", ErrOutOfRange, ErrorInvalid},
		{"unknown rule kind is invalid", ErrUnknownRuleKind, ErrorInvalid},
		{"duplicate rule kind is invalid", ErrDuplicateRuleKind, ErrorInvalid},
		{"missing config is invalid", ErrMissingConfig, ErrorInvalid},
		{"rule failure is transient", ErrRuleFailed, ErrorTransient},
		{"connection lost is transient", ErrConnectionLost, ErrorTransient},
		{"publish failure is transient", ErrPublishFailed, ErrorTransient},
		{"context deadline is transient", context.DeadlineExceeded, ErrorTransient},
		{"unknown errors default to transient", stderrors.New("boom"), ErrorTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestWrap_Format(t *testing.T) {
	base := stderrors.New("index 3 >= count 2")
	wrapped := Wrap(base, "Engine", "RuleAt", "bounds check")

	require.Error(t, wrapped)
	assert.Equal(t, "Engine.RuleAt: bounds check failed: index 3 >= count 2", wrapped.Error())
	assert.True(t, stderrors.Is(wrapped, base))
}

func TestWrap_NilPassthrough(t *testing.T) {
	assert.NoError(t, Wrap(nil, "Engine", "RuleAt", "bounds check"))
	assert.NoError(t, WrapTransient(nil, "Notifier", "Publish", "publish"))
	assert.NoError(t, WrapInvalid(nil, "Registry", "Build", "lookup"))
	assert.NoError(t, WrapFatal(nil, "Server", "Start", "listen"))
}

func TestWrapClassified_PreservesSentinel(t *testing.T) {
	wrapped := WrapInvalid(ErrUnauthorized, "Engine", "DefineRules", "authorization")

	assert.True(t, stderrors.Is(wrapped, ErrUnauthorized))
	assert.True(t, IsInvalid(wrapped))
	assert.False(t, IsTransient(wrapped))

	var ce *ClassifiedError
	require.True(t, stderrors.As(wrapped, &ce))
	assert.Equal(t, "Engine", ce.Component)
	assert.Equal(t, "DefineRules", ce.Operation)
	assert.Equal(t, ErrorInvalid, ce.Class)
}

func TestWrapTransient_OverridesDefault(t *testing.T) {
	// An otherwise invalid-looking error can be explicitly marked transient.
	wrapped := WrapTransient(ErrInvalidConfig, "Manager", "Reload", "fetch config")

	assert.True(t, IsTransient(wrapped))
	assert.False(t, IsInvalid(wrapped))
}

func TestIsTransient_PatternFallback(t *testing.T) {
	assert.True(t, IsTransient(stderrors.New("dial tcp: i/o timeout")))
	assert.True(t, IsTransient(stderrors.New("service temporarily unavailable")))
	assert.False(t, IsTransient(nil))
}

func TestClassifiedError_ErrorChain(t *testing.T) {
	inner := fmt.Errorf("rule freeze-check: %w", ErrRuleFailed)
	wrapped := WrapTransient(inner, "Engine", "ValidateTransfer", "rule evaluation")

	assert.True(t, stderrors.Is(wrapped, ErrRuleFailed))
	assert.Contains(t, wrapped.Error(), "Engine.ValidateTransfer")
}
