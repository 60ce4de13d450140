package retry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemworks/mediakit/internal/backend"
)

// timeoutErr implements net.Error for classification tests.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "server error", err: &backend.StatusError{Code: 500}, want: true},
		{name: "bad gateway", err: &backend.StatusError{Code: 502}, want: true},
		{name: "throttled", err: &backend.StatusError{Code: 429}, want: true},
		{name: "forbidden", err: &backend.StatusError{Code: 403}, want: false},
		{name: "not found", err: &backend.StatusError{Code: 404}, want: false},
		{name: "conflict", err: &backend.StatusError{Code: 409}, want: false},
		{name: "network timeout", err: timeoutErr{}, want: true},
		{name: "url error", err: &url.Error{Op: "Put", URL: "https://x", Err: fmt.Errorf("connection refused")}, want: true},
		{name: "wrapped server error", err: fmt.Errorf("part 3: %w", &backend.StatusError{Code: 503}), want: true},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transient(tt.err))
		})
	}
}

func TestLadderSequence(t *testing.T) {
	l := &ladder{delays: []time.Duration{0, time.Second, 2 * time.Second}}

	assert.Equal(t, time.Second, l.NextBackOff())
	assert.Equal(t, 2*time.Second, l.NextBackOff())
	assert.Equal(t, backoff.Stop, l.NextBackOff())

	l.Reset()
	assert.Equal(t, time.Second, l.NextBackOff())
}

func TestDoRetriesTransientUntilExhausted(t *testing.T) {
	delays := []time.Duration{0, 0, 0, 0, 0}

	calls := 0
	err := Do(context.Background(), delays, func() error {
		calls++
		return &backend.StatusError{Code: 503}
	})

	require.Error(t, err)
	assert.Equal(t, len(delays), calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), []time.Duration{0, 0, 0}, func() error {
		calls++
		return &backend.StatusError{Code: 400}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoSucceedsMidLadder(t *testing.T) {
	calls := 0
	err := Do(context.Background(), []time.Duration{0, 0, 0}, func() error {
		calls++
		if calls < 3 {
			return &backend.StatusError{Code: 500}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, []time.Duration{0, time.Minute}, func() error {
		calls++
		cancel()
		return &backend.StatusError{Code: 500}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
