package kerror

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateWithDetails(t *testing.T) {
	ke := Create("UnknownNode", "node is not registered").
		With("nodeId", 42).
		WithErrorCode(EC_NOT_FOUND)
	assert.Equal(t, "UnknownNode", ke.GetType())
	assert.Equal(t, EC_NOT_FOUND, ke.ErrorCode)
	assert.Equal(t, 404, ke.GetHttpErrorCode())
	assert.Contains(t, ke.Error(), "nodeId=42")
	// ShortString never includes the stack
	assert.NotContains(t, ke.ShortString(), "stack=")
}

func TestWrapAndUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	ke := Wrap(inner, "EtcdConnectError", "failed to connect", true)
	assert.True(t, errors.Is(ke, inner))
	assert.Contains(t, ke.FullString(), "connection refused")
	assert.NotEmpty(t, ke.Stack)

	// wrapping a Kerror should not attach a second stack
	outer := Wrap(ke, "StartupError", "scheduler startup failed", true)
	assert.Empty(t, outer.Stack)
}

func TestUnknownCodeMapsTo503(t *testing.T) {
	ke := Create("Weird", "").WithErrorCode(ErrorCode("NO_SUCH_CODE"))
	assert.Equal(t, 503, ke.GetHttpErrorCode())
}
