package internal

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitForRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		failWith  error
		wantCalls int
		wantErr   error
	}{
		{name: "first attempt", failures: 0, wantCalls: 1},
		{name: "transport recovers", failures: 2, failWith: ErrTransport, wantCalls: 3},
		{name: "transport exhausted", failures: 10, failWith: ErrTransport, wantCalls: 3, wantErr: ErrTransport},
		{name: "io is not retried", failures: 10, failWith: ErrIO, wantCalls: 1, wantErr: ErrIO},
		{name: "resolution is not retried", failures: 10, failWith: ErrResolution, wantCalls: 1, wantErr: ErrResolution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			retries := 0
			policy := RetryPolicy{
				Attempts: 3,
				Backoff:  time.Millisecond,
				OnRetry: func(attempt, total int, wait time.Duration, err error) {
					retries++
				},
			}

			got, err := WaitForRetry(context.Background(), policy, func(ctx context.Context) (int, error) {
				calls++
				if calls <= tt.failures {
					return 0, tt.failWith
				}
				return 42, nil
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("WaitForRetry: %v", err)
			}
			if got != 42 {
				t.Errorf("result = %d, want 42", got)
			}
			if retries != tt.wantCalls-1 {
				t.Errorf("OnRetry called %d times, want %d", retries, tt.wantCalls-1)
			}
		})
	}
}

func TestWaitForRetry_AttemptTimeout(t *testing.T) {
	policy := RetryPolicy{Attempts: 2, Timeout: 10 * time.Millisecond, Backoff: time.Millisecond}
	calls := 0

	_, err := WaitForRetry(context.Background(), policy, func(ctx context.Context) (struct{}, error) {
		calls++
		<-ctx.Done()
		return struct{}{}, ctx.Err()
	})

	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if !errors.Is(err, ErrTransport) {
		t.Errorf("error = %v, want ErrTransport", err)
	}
}

func TestWaitForRetry_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{Attempts: 5, Backoff: time.Hour}
	calls := 0

	_, err := WaitForRetry(ctx, policy, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, ErrTransport
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
