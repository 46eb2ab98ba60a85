package discussioncache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMissingConfigError(t *testing.T) {
	err := &MissingConfigError{Setting: "repository owner"}
	require.Equal(t, "missing required setting: repository owner", err.Error())
	require.True(t, IsMissingConfig(err))

	wrapped := fmt.Errorf("creating service: %w", err)
	require.True(t, IsMissingConfig(wrapped))

	require.False(t, IsMissingConfig(ErrNotFound))
	require.False(t, IsMissingConfig(nil))
}
