package gemini

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"docdex/internal/pipeline"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"rate limited", &googleapi.Error{Code: 429, Message: "quota exceeded"}, true},
		{"server error", &googleapi.Error{Code: 500}, true},
		{"unavailable", &googleapi.Error{Code: 503}, true},
		{"bad request", &googleapi.Error{Code: 400, Message: "invalid content"}, false},
		{"bad key", &googleapi.Error{Code: 401}, false},
		{"forbidden", &googleapi.Error{Code: 403}, false},
		{"unknown model", &googleapi.Error{Code: 404}, false},
		{"wrapped api error", fmt.Errorf("embed: %w", &googleapi.Error{Code: 429}), true},
		{"transport failure", errors.New("connection refused"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			var be *pipeline.BackendError
			require.ErrorAs(t, got, &be)
			assert.Equal(t, "embed", be.Op)
			assert.Equal(t, tt.retryable, be.Retryable)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyMatchesRetryPolicy(t *testing.T) {
	assert.True(t, pipeline.IsRetryable(classify(&googleapi.Error{Code: 429})))
	assert.False(t, pipeline.IsRetryable(classify(&googleapi.Error{Code: 401})))
}
