package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota":              ErrorQuota,
		"429 rate":                        ErrorRate,
		"prompt exceeds context window":   ErrorContext,
		"input too long":                  ErrorContext,
		"timeout":                         ErrorTransient,
		"anthropic error 529: overloaded": ErrorTransient,
		"bad request":                     ErrorPermanent,
	}
	for msg, want := range cases {
		assert.Equal(t, want, ClassifyError(errors.New(msg)), msg)
	}
	assert.Equal(t, ErrorType(""), ClassifyError(nil))
}

func TestClassifyContextErrors(t *testing.T) {
	assert.Equal(t, ErrorTransient, ClassifyError(fmt.Errorf("call: %w", context.DeadlineExceeded)))
	assert.Equal(t, ErrorCanceled, ClassifyError(fmt.Errorf("call: %w", context.Canceled)))
	assert.False(t, ShouldFailover(context.Canceled))
	assert.True(t, ShouldFailover(errors.New("503 unavailable")))
	assert.False(t, ShouldFailover(nil))
}
