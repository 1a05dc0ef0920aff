package natsclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/rulegate/errors"
)

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsConnected())
	assert.Equal(t, "rulegate", c.clientName)
	assert.Equal(t, -1, c.maxReconnects)
}

func TestNewClient_OptionsApplied(t *testing.T) {
	c, err := NewClient("nats://localhost:4222",
		WithClientName("rulegate-test"),
		WithTimeout(time.Second),
		WithReconnectWait(250*time.Millisecond),
		WithMaxReconnects(3),
	)
	require.NoError(t, err)

	assert.Equal(t, "rulegate-test", c.clientName)
	assert.Equal(t, time.Second, c.timeout)
	assert.Equal(t, 250*time.Millisecond, c.reconnectWait)
	assert.Equal(t, 3, c.maxReconnects)
}

func TestPublish_WithoutConnection(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	err = c.Publish("rulegate.rules.defined", []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoConnection)
	assert.True(t, errors.IsTransient(err))
}

func TestClose_Idempotent(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	c.Close()
	c.Close()
	assert.Equal(t, StatusClosed, c.Status())
}

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "closed", StatusClosed.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}
