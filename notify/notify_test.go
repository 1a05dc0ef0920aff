package notify

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/rulegate/engine"
	"github.com/c360/rulegate/errors"
	"github.com/c360/rulegate/natsclient"
	"github.com/c360/rulegate/pkg/retry"
)

func testEvent() engine.RulesDefinedEvent {
	return engine.RulesDefinedEvent{
		EventID: "evt-123",
		Engine:  "token",
		Count:   2,
		At:      time.Now().UTC(),
	}
}

type stubNotifier struct {
	mu     sync.Mutex
	events []engine.RulesDefinedEvent
	err    error
}

func (s *stubNotifier) RulesDefined(_ context.Context, event engine.RulesDefinedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(slog.Default())
	assert.NoError(t, n.RulesDefined(context.Background(), testEvent()))

	// Nil logger falls back to the default.
	n = NewLogNotifier(nil)
	assert.NoError(t, n.RulesDefined(context.Background(), testEvent()))
}

func TestMulti_DeliversToAll(t *testing.T) {
	a := &stubNotifier{}
	b := &stubNotifier{}

	m := NewMulti(a, nil)
	m.Add(b)
	require.NoError(t, m.RulesDefined(context.Background(), testEvent()))

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestMulti_AddNilIgnored(t *testing.T) {
	a := &stubNotifier{}
	m := NewMulti(a)
	m.Add(nil)
	require.NoError(t, m.RulesDefined(context.Background(), testEvent()))
	assert.Len(t, a.events, 1)
}

func TestMulti_FailureDoesNotStopFanOut(t *testing.T) {
	boom := stderrors.New("sink down")
	a := &stubNotifier{err: boom}
	b := &stubNotifier{}

	err := NewMulti(a, b).RulesDefined(context.Background(), testEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, b.events, 1, "later notifiers still invoked")
}

func TestNewNATSNotifier_Validation(t *testing.T) {
	_, err := NewNATSNotifier(nil, "")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestNATSNotifier_SubjectDerivation(t *testing.T) {
	client, err := natsclient.NewClient("nats://localhost:4222")
	require.NoError(t, err)

	n, err := NewNATSNotifier(client, "")
	require.NoError(t, err)
	assert.Equal(t, "rulegate.rules.defined", n.Subject())

	n, err = NewNATSNotifier(client, "compliance.prod")
	require.NoError(t, err)
	assert.Equal(t, "compliance.prod.rules.defined", n.Subject())
}

func TestNATSNotifier_PublishFailureClassifiedTransient(t *testing.T) {
	client, err := natsclient.NewClient("nats://localhost:4222")
	require.NoError(t, err)

	// Never connected, so every publish fails fast; a single attempt keeps
	// the test quick.
	n, err := NewNATSNotifier(client, "", WithRetryConfig(retry.Config{
		MaxAttempts:  1,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1.0,
	}))
	require.NoError(t, err)

	err = n.RulesDefined(context.Background(), testEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPublishFailed)
	assert.True(t, errors.IsTransient(err))
}
