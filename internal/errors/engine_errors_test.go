package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormattingAndUnwrap(t *testing.T) {
	base := stderrors.New("connection reset")
	err := NewExchangeError("bybit", "GetKlines", "fetch failed", base)

	assert.Contains(t, err.Error(), "EXCHANGE")
	assert.Contains(t, err.Error(), "GetKlines")
	assert.Contains(t, err.Error(), "connection reset")
	assert.True(t, stderrors.Is(err, base))
}

func TestCategoryPropagatesThroughWrapping(t *testing.T) {
	inner := NewDataError("feed", "Snapshot", "stale bar", nil)
	wrapped := fmt.Errorf("cycle aborted: %w", inner)

	assert.Equal(t, CategoryData, CategoryOf(wrapped))
	assert.True(t, IsRetryable(wrapped))
}

func TestValidationErrorsAreNotRetryable(t *testing.T) {
	err := NewValidationError("validator", "Validate", "balance rule failed")
	assert.False(t, IsRetryable(err))
	assert.Equal(t, CategoryValidation, CategoryOf(err))
}

func TestUnknownErrorsHaveNoCategory(t *testing.T) {
	err := stderrors.New("plain")
	assert.Equal(t, Category(""), CategoryOf(err))
	assert.False(t, IsRetryable(err))
}
