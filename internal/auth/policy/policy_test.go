package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasCapabilities(t *testing.T) {
	caps := []string{"auth:read", "auth:write", "admin"}

	require.True(t, HasCapabilities(caps, nil))
	require.True(t, HasCapabilities(caps, []string{}))
	require.True(t, HasCapabilities(caps, []string{"auth:read"}))
	require.True(t, HasCapabilities(caps, []string{"auth:read", "admin"}))

	require.False(t, HasCapabilities(caps, []string{"auth:delete"}))
	require.False(t, HasCapabilities(caps, []string{"auth:read", "auth:delete"}))
	require.False(t, HasCapabilities(nil, []string{"auth:read"}))
}
