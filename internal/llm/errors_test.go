package llm

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBackendError_Temporary(t *testing.T) {
	netErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	tests := []struct {
		name string
		err  *BackendError
		want bool
	}{
		{"rate limited", &BackendError{StatusCode: 429}, true},
		{"server error", &BackendError{StatusCode: 503}, true},
		{"request timeout", &BackendError{StatusCode: 408}, true},
		{"bad request", &BackendError{StatusCode: 400}, false},
		{"network", &BackendError{Cause: netErr}, true},
		{"other", &BackendError{Cause: errors.New("boom")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Temporary())
		})
	}
}

func TestBackendError_Unwrap(t *testing.T) {
	cause := errors.New("root")
	err := error(&BackendError{Vendor: VendorGoogle, Message: "x", Cause: cause})

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "google")
}
