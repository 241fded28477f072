package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	l, err := New("dev", "debug")
	require.NoError(t, err)
	assert.NotNil(t, l.SugaredLogger)

	l, err = New("production", "")
	require.NoError(t, err)
	assert.NotNil(t, l.With("component", "test"))
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New("dev", "loud")
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	l := OrNop(nil)
	require.NotNil(t, l)
	l.Info("discarded", "key", "value")

	existing := NewNop()
	assert.Same(t, existing, OrNop(existing))
}
