package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError_NonRetryable(t *testing.T) {
	stdErr := NewInvalidTaskInputError("context: Invalid type. Expected: string, given: integer")

	bpmnErr := ConvertToBPMNError(stdErr)

	assert.Equal(t, "INVALID_TASK_INPUT", bpmnErr.Code)
	assert.False(t, bpmnErr.Retryable)
	assert.Equal(t, 0, bpmnErr.Retries)
	assert.Equal(t, "INVALID_TASK_INPUT", bpmnErr.ErrorVariables["originalErrorCode"])
	assert.NotEmpty(t, bpmnErr.ErrorVariables["timestamp"])
}

func TestConvertToBPMNError_CarriesMetadata(t *testing.T) {
	bpmnErr := ConvertToBPMNError(NewCompletionFailedError("authentication", "Invalid API Key"))

	vars := bpmnErr.ToErrorVariables()
	assert.Equal(t, "COMPLETION_FAILED", vars["errorCode"])
	assert.Equal(t, "Invalid API Key", vars["errorDetails"])
	assert.Equal(t, "authentication", vars["failureKind"])
	assert.Equal(t, false, vars["retryable"])
}

func TestConvertToBPMNError_UnmappedCodeFallsBack(t *testing.T) {
	bpmnErr := ConvertToBPMNError(NewExternalServiceError("zeebe", fmt.Errorf("unavailable")))

	assert.Equal(t, "EXTERNAL_SERVICE_ERROR", bpmnErr.Code)
	assert.True(t, bpmnErr.Retryable)
	assert.Equal(t, 3, bpmnErr.Retries)
}

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrCodeExternalService, 3},
		{ErrCodeAuditWriteFailed, 3},
		{ErrCodeTimeout, 2},
		{ErrCodeCompletionFailed, 0},
		{ErrCodeRateLimited, 0},
		{ErrCodeInvalidTaskInput, 0},
		{ErrCodeInternal, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, GetRetryCount(tt.code))
			assert.Equal(t, tt.expected > 0, IsRetryableErrorCode(tt.code))
		})
	}
}

func TestNormalize(t *testing.T) {
	wrapped := fmt.Errorf("worker: %w", NewUnknownTaskCategoryError("tax-advice"))
	stdErr := Normalize(wrapped)
	assert.Equal(t, ErrCodeUnknownTaskCategory, stdErr.Code)
	assert.Contains(t, stdErr.Details, "tax-advice")

	plain := Normalize(fmt.Errorf("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Details)
	assert.False(t, plain.Retryable)
}

func TestShouldRetryAndRetriesFor(t *testing.T) {
	timeout := NewTimeoutError("postgres", fmt.Errorf("i/o timeout"))
	assert.True(t, ShouldRetry(timeout, 3))
	assert.False(t, ShouldRetry(timeout, 0))
	assert.False(t, ShouldRetry(NewInvalidTaskInputError("x"), 3))

	// A retryable flag on a code outside the retryable set does not retry.
	forced := NewRateLimitedError("legal-draft")
	forced.Retryable = true
	assert.False(t, ShouldRetry(forced, 3))

	assert.Equal(t, int32(2), RetriesFor(ErrCodeTimeout, 5))
	assert.Equal(t, int32(0), RetriesFor(ErrCodeTimeout, 1))
	assert.Equal(t, int32(2), RetriesFor(ErrCodeExternalService, 3))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidTaskInput))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeUnknownTaskCategory))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeCompletionFailed))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeRateLimited))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeAuditWriteFailed))
	assert.Equal(t, "INTEGRATION", GetErrorCategory(ErrCodeTimeout))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestStandardError_WithMetadata(t *testing.T) {
	err := NewRateLimitedError("legal-draft: 10 calls per 1m0s")
	err.WithMetadata("category", "legal-draft")

	require.NotNil(t, err.Metadata)
	assert.Equal(t, "rate_limited", err.Metadata["failureKind"])
	assert.Equal(t, "legal-draft", err.Metadata["category"])
	assert.Equal(t, "StandardError[RATE_LIMITED]: Completion rate limit reached", err.Error())
}
