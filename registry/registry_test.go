package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/rulegate/errors"
	"github.com/c360/rulegate/rule"
)

func allowAllRegistration() *Registration {
	return &Registration{
		Name:        "allow-all",
		Description: "Permits every address and transfer",
		Version:     "1.0.0",
		Factory: func(json.RawMessage) (rule.Rule, error) {
			return rule.AllowAll(), nil
		},
	}
}

func TestRegisterFactory_Validation(t *testing.T) {
	r := NewRegistry()

	err := r.RegisterFactory(nil)
	assert.True(t, errors.IsInvalid(err))

	err = r.RegisterFactory(&Registration{Name: "no-factory"})
	assert.True(t, errors.IsInvalid(err))

	err = r.RegisterFactory(&Registration{Factory: func(json.RawMessage) (rule.Rule, error) {
		return rule.AllowAll(), nil
	}})
	assert.True(t, errors.IsInvalid(err))
}

func TestRegisterFactory_RejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFactory(allowAllRegistration()))

	err := r.RegisterFactory(allowAllRegistration())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDuplicateRuleKind)
}

func TestBuild(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFactory(allowAllRegistration()))

	built, err := r.Build("allow-all", nil)
	require.NoError(t, err)

	ok, err := built.IsAddressValid(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuild_UnknownKind(t *testing.T) {
	r := NewRegistry()

	_, err := r.Build("freeze-list", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownRuleKind)
}

func TestBuild_FactoryConfig(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFactory(&Registration{
		Name:    "min-amount",
		Version: "1.0.0",
		Factory: func(raw json.RawMessage) (rule.Rule, error) {
			var cfg struct {
				Min uint64 `json:"min"`
			}
			if err := json.Unmarshal(raw, &cfg); err != nil {
				return nil, err
			}
			return rule.New("min-amount", nil,
				func(_ context.Context, _, _ rule.Address, amount uint64) (bool, error) {
					return amount >= cfg.Min, nil
				}), nil
		},
	}))

	built, err := r.Build("min-amount", json.RawMessage(`{"min": 100}`))
	require.NoError(t, err)

	ok, err := built.IsTransferValid(context.Background(), "a", "b", 99)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = built.IsTransferValid(context.Background(), "a", "b", 100)
	require.NoError(t, err)
	assert.True(t, ok)

	// A malformed config surfaces as an invalid build, not a panic.
	_, err = r.Build("min-amount", json.RawMessage(`{"min": "lots"}`))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestBuildSet_PreservesOrderAndAbortsWholesale(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFactory(allowAllRegistration()))
	require.NoError(t, r.RegisterFactory(&Registration{
		Name:    "deny-all",
		Version: "1.0.0",
		Factory: func(json.RawMessage) (rule.Rule, error) {
			return rule.DenyAll(), nil
		},
	}))

	rules, err := r.BuildSet([]Spec{{Kind: "allow-all"}, {Kind: "deny-all"}})
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "allow-all", rules[0].Name())
	assert.Equal(t, "deny-all", rules[1].Name())

	_, err = r.BuildSet([]Spec{{Kind: "allow-all"}, {Kind: "missing"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownRuleKind)
}

func TestListAndKinds(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFactory(&Registration{
		Name: "zeta", Version: "1.0.0",
		Factory: func(json.RawMessage) (rule.Rule, error) { return rule.AllowAll(), nil },
	}))
	require.NoError(t, r.RegisterFactory(allowAllRegistration()))

	assert.Equal(t, []string{"allow-all", "zeta"}, r.Kinds())

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "allow-all", list[0].Name)
	assert.Equal(t, "Permits every address and transfer", list[0].Description)
}
