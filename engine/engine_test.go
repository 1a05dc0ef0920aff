package engine

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/rulegate/errors"
	"github.com/c360/rulegate/metric"
	"github.com/c360/rulegate/rule"
	"github.com/c360/rulegate/rule/ruletest"
)

const admin = Principal("compliance-officer")

// recordingNotifier captures emitted events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []RulesDefinedEvent
}

func (n *recordingNotifier) RulesDefined(_ context.Context, event RulesDefinedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) all() []RulesDefinedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]RulesDefinedEvent, len(n.events))
	copy(out, n.events)
	return out
}

func TestEmptyEngine_EverythingValid(t *testing.T) {
	e := New("token")
	ctx := context.Background()

	assert.Equal(t, 0, e.RuleCount())

	ok, err := e.ValidateAddress(ctx, "0xabc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.ValidateTransfer(ctx, "0xabc", "0xdef", 10)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidate_AllRulesPass(t *testing.T) {
	e := New("token", WithRules(rule.AllowAll(), rule.AllowAll()))
	ctx := context.Background()

	ok, err := e.ValidateAddress(ctx, "X")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.ValidateTransfer(ctx, "A", "B", 10)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidate_ShortCircuitsOnFirstRejection(t *testing.T) {
	expensive := ruletest.Wrap(rule.AllowAll())
	e := New("token", WithRules(rule.AllowAll(), rule.DenyAll(), expensive))
	ctx := context.Background()

	ok, err := e.ValidateAddress(ctx, "X")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, expensive.AddressCalls(), "rule after the rejecting one must never run")

	ok, err = e.ValidateTransfer(ctx, "A", "B", 10)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, expensive.TransferCalls())
}

func TestValidate_IsOrderedConjunction(t *testing.T) {
	first := ruletest.Wrap(rule.AllowAll())
	second := ruletest.Wrap(rule.AllowAll())
	e := New("token", WithRules(first, second))

	ok, err := e.ValidateAddress(context.Background(), "X")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), first.AddressCalls())
	assert.Equal(t, int64(1), second.AddressCalls())
}

func TestRuleAt(t *testing.T) {
	r1 := rule.AllowAll()
	r2 := rule.DenyAll()
	e := New("token", WithRules(r1, r2))

	got, err := e.RuleAt(0)
	require.NoError(t, err)
	assert.Equal(t, "allow-all", got.Name())

	got, err = e.RuleAt(1)
	require.NoError(t, err)
	assert.Equal(t, "deny-all", got.Name())

	_, err = e.RuleAt(2)
	assert.ErrorIs(t, err, errors.ErrOutOfRange)

	_, err = e.RuleAt(-1)
	assert.ErrorIs(t, err, errors.ErrOutOfRange)
}

func TestRuleAt_EmptySequence(t *testing.T) {
	e := New("token")
	_, err := e.RuleAt(0)
	assert.ErrorIs(t, err, errors.ErrOutOfRange)
}

func TestDefineRules_ReplacesWholeSequence(t *testing.T) {
	notifier := &recordingNotifier{}
	e := New("token",
		WithRules(rule.AllowAll(), rule.AllowAll(), rule.AllowAll()),
		WithAdmin(admin),
		WithNotifier(notifier))
	ctx := context.Background()

	require.NoError(t, e.DefineRules(ctx, admin, []rule.Rule{rule.DenyAll()}))
	assert.Equal(t, 1, e.RuleCount())

	ok, err := e.ValidateAddress(ctx, "X")
	require.NoError(t, err)
	assert.False(t, ok)

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Count)
	assert.Equal(t, "token", events[0].Engine)
	assert.NotEmpty(t, events[0].EventID)
	assert.False(t, events[0].At.IsZero())
}

func TestDefineRules_EmptySetClearsEngine(t *testing.T) {
	notifier := &recordingNotifier{}
	e := New("token",
		WithRules(rule.DenyAll(), rule.DenyAll()),
		WithAdmin(admin),
		WithNotifier(notifier))
	ctx := context.Background()

	require.NoError(t, e.DefineRules(ctx, admin, nil))

	assert.Equal(t, 0, e.RuleCount())

	ok, err := e.ValidateAddress(ctx, "anything")
	require.NoError(t, err)
	assert.True(t, ok, "empty sequence is vacuously valid")

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, 0, events[0].Count)
}

func TestDefineRules_Unauthorized(t *testing.T) {
	notifier := &recordingNotifier{}
	e := New("token",
		WithRules(rule.AllowAll()),
		WithAdmin(admin),
		WithNotifier(notifier))
	ctx := context.Background()

	err := e.DefineRules(ctx, "intruder", []rule.Rule{rule.DenyAll()})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
	assert.True(t, errors.IsInvalid(err))

	assert.Equal(t, 1, e.RuleCount(), "rule count unchanged")
	assert.Empty(t, notifier.all(), "no notification on rejected replacement")

	ok, verr := e.ValidateAddress(ctx, "X")
	require.NoError(t, verr)
	assert.True(t, ok, "old sequence still in effect")
}

func TestDefineRules_NoAuthorizerConfigured(t *testing.T) {
	e := New("token")
	err := e.DefineRules(context.Background(), admin, []rule.Rule{rule.AllowAll()})
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestDefineRules_CallerSliceIsCopied(t *testing.T) {
	e := New("token", WithAdmin(admin))
	ctx := context.Background()

	set := []rule.Rule{rule.AllowAll()}
	require.NoError(t, e.DefineRules(ctx, admin, set))

	// Mutating the caller's slice must not affect the installed sequence.
	set[0] = rule.DenyAll()

	ok, err := e.ValidateAddress(ctx, "X")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidate_RuleFailurePropagates(t *testing.T) {
	boom := stderrors.New("sanctions backend unreachable")
	e := New("token", WithRules(rule.AllowAll(), &ruletest.Failing{RuleName: "sanctions", Err: boom}))
	ctx := context.Background()

	ok, err := e.ValidateAddress(ctx, "X")
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRuleFailed)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `"sanctions"`)

	_, err = e.ValidateTransfer(ctx, "A", "B", 1)
	assert.ErrorIs(t, err, errors.ErrRuleFailed)
}

func TestValidate_PermissiveFailuresRejectWithoutError(t *testing.T) {
	boom := stderrors.New("backend down")
	e := New("token",
		WithRules(&ruletest.Failing{Err: boom}),
		WithPermissiveFailures())

	ok, err := e.ValidateAddress(context.Background(), "X")
	require.NoError(t, err)
	assert.False(t, ok)
}

// taggedSet builds a rule set of size n whose predicates report the set's
// tag through a collector carried in the context, so a single validation
// can prove it observed rules from exactly one set.
type tagCollectorKey struct{}

func taggedSet(tag string, n int) []rule.Rule {
	set := make([]rule.Rule, n)
	for i := 0; i < n; i++ {
		set[i] = rule.New(tag, func(ctx context.Context, _ rule.Address) (bool, error) {
			seen := ctx.Value(tagCollectorKey{}).(*[]string)
			*seen = append(*seen, tag)
			return true, nil
		}, nil)
	}
	return set
}

func TestDefineRules_AtomicUnderConcurrentReaders(t *testing.T) {
	setA := taggedSet("A", 4)
	setB := taggedSet("B", 4)

	e := New("token", WithRules(setA...), WithAdmin(admin))

	stop := make(chan struct{})
	var writer sync.WaitGroup

	// Writer flips between the two sets until the readers finish.
	writer.Add(1)
	go func() {
		defer writer.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			set := setA
			if i%2 == 1 {
				set = setB
			}
			_ = e.DefineRules(context.Background(), admin, set)
		}
	}()

	// Readers assert every validation saw a homogeneous set.
	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for i := 0; i < 500; i++ {
				seen := make([]string, 0, 4)
				ctx := context.WithValue(context.Background(), tagCollectorKey{}, &seen)
				ok, err := e.ValidateAddress(ctx, "X")
				assert.NoError(t, err)
				assert.True(t, ok)
				assert.Len(t, seen, 4)
				for _, tag := range seen {
					assert.Equal(t, seen[0], tag, "validation observed a mixed rule set")
				}
			}
		}()
	}

	readers.Wait()
	close(stop)
	writer.Wait()
}

func TestEngine_MetricsRegistered(t *testing.T) {
	registry := metric.NewRegistry()
	e := New("token",
		WithRules(rule.AllowAll()),
		WithAdmin(admin),
		WithMetrics(registry))
	ctx := context.Background()

	_, err := e.ValidateAddress(ctx, "X")
	require.NoError(t, err)
	require.NoError(t, e.DefineRules(ctx, admin, []rule.Rule{rule.DenyAll()}))
	_, _ = e.ValidateTransfer(ctx, "A", "B", 5)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["rulegate_engine_validations_total"])
	assert.True(t, names["rulegate_engine_ruleset_replacements_total"])
	assert.True(t, names["rulegate_engine_rules_configured"])
}

func TestSingleAdmin(t *testing.T) {
	auth := SingleAdmin("alice")
	assert.NoError(t, auth.Authorize(context.Background(), "alice"))
	assert.ErrorIs(t, auth.Authorize(context.Background(), "bob"), errors.ErrUnauthorized)
}
