package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBackendErrorWrapping(t *testing.T) {
	be := &BackendError{Op: "embed", Retryable: true, Err: errBoom}
	assert.Contains(t, be.Error(), "embed")
	assert.ErrorIs(t, be, errBoom)

	wrapped := fmt.Errorf("batch 3: %w", be)
	var target *BackendError
	assert.ErrorAs(t, wrapped, &target)
	assert.True(t, target.Retryable)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"retryable backend", &BackendError{Op: "index", Retryable: true, Err: errBoom}, true},
		{"fatal backend", &BackendError{Op: "embed", Retryable: false, Err: errBoom}, false},
		{"wrapped fatal", fmt.Errorf("context: %w", &BackendError{Op: "embed", Err: errBoom}), false},
		{"unclassified", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
