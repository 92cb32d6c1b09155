package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDo_SucceedsOnThirdAttempt(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), fastPolicy(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return &StatusError{Code: 502, Message: "bad gateway"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanent(t *testing.T) {
	boom := &StatusError{Code: 403, Message: "bot was blocked by the user"}
	attempts, err := Do(context.Background(), fastPolicy(3), func(context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestDo_ExhaustsBudget(t *testing.T) {
	var waits []time.Duration
	p := fastPolicy(3)
	p.OnRetry = func(_ int, _ error, wait time.Duration) { waits = append(waits, wait) }
	attempts, err := Do(context.Background(), p, func(context.Context) error {
		return context.DeadlineExceeded
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, waits)
}

func TestDo_BackoffIsCapped(t *testing.T) {
	var waits []time.Duration
	p := Policy{Attempts: 5, BaseDelay: time.Millisecond, MaxDelay: 3 * time.Millisecond}
	p.OnRetry = func(_ int, _ error, wait time.Duration) { waits = append(waits, wait) }
	_, _ = Do(context.Background(), p, func(context.Context) error { return errors.New("network unreachable") })
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond, 3 * time.Millisecond}, waits)
}

func TestDo_JitteredBackoffStaysUnderCap(t *testing.T) {
	p := Policy{Attempts: 6, BaseDelay: 10 * time.Microsecond, MaxDelay: 50 * time.Microsecond, Jitter: 0.2}
	var longest time.Duration
	retries := 0
	p.OnRetry = func(_ int, _ error, wait time.Duration) {
		retries++
		if wait > longest {
			longest = wait
		}
	}
	for i := 0; i < 200; i++ {
		_, _ = Do(context.Background(), p, func(context.Context) error { return errors.New("network unreachable") })
	}
	require.Equal(t, 200*5, retries)
	assert.LessOrEqual(t, longest, p.MaxDelay)
}

func TestDo_ZeroAttemptsStillCallsOnce(t *testing.T) {
	attempts, err := Do(context.Background(), Policy{}, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_CustomClassifier(t *testing.T) {
	sentinel := errors.New("flaky plug")
	p := fastPolicy(2)
	p.Classifiers = []Classifier{func(err error) (ErrorKind, bool) {
		if errors.Is(err, sentinel) {
			return Transient, true
		}
		return Permanent, false
	}}
	attempts, err := Do(context.Background(), p, func(context.Context) error { return sentinel })
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 2, attempts)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, Permanent},
		{"canceled", context.Canceled, Canceled},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), Transient},
		{"net error", &net.OpError{Op: "dial", Err: timeoutErr{}}, Transient},
		{"429", &StatusError{Code: 429}, Transient},
		{"503", &StatusError{Code: 503}, Transient},
		{"400", &StatusError{Code: 400, Message: "chat not found"}, Permanent},
		{"message timeout", errors.New("Timed out waiting"), Transient},
		{"message connection", errors.New("connection reset by peer"), Transient},
		{"plain", errors.New("forbidden"), Permanent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}
