package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTiktokenCounter(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 2, c.Count("hello world"))

	again, err := Default()
	require.NoError(t, err)
	assert.Same(t, c, again)
}

func TestEstimate(t *testing.T) {
	assert.Equal(t, 0, Estimate{}.Count(""))
	assert.Equal(t, 3, Estimate{}.Count("12345678"))
}

func TestDefaultOrEstimate(t *testing.T) {
	assert.Greater(t, DefaultOrEstimate().Count("Offline mode pushed to v2"), 0)
}
