package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := New(KindRateLimited, "llm.generate", errors.New("429 Too Many Requests"))
	wrapped := fmt.Errorf("chunk 3: %w", err)

	assert.True(t, errors.Is(wrapped, RateLimited))
	assert.False(t, errors.Is(wrapped, ProviderUnavailable))
	assert.Equal(t, KindRateLimited, KindOf(wrapped))
	assert.Contains(t, wrapped.Error(), "rate_limited")
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindRateLimited, true},
		{KindProviderUnavailable, true},
		{KindMalformedResponse, true},
		{KindUnretryable, false},
		{KindInvalidConfiguration, false},
		{KindContentUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.Retryable())
		})
	}
}

func TestUserMessagesAreDistinct(t *testing.T) {
	seen := make(map[string]Kind)
	for k := KindUnknown; k <= KindPersistence; k++ {
		msg := UserMessage(k)
		prev, dup := seen[msg]
		assert.False(t, dup, "%s and %s share a message", prev, k)
		seen[msg] = k
	}
}
