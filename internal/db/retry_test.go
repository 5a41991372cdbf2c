package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"wrappedDeadlock", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"uniqueViolation", &pgconn.PgError{Code: "23505"}, false},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Fatalf("expected %v got %v", tc.want, got)
			}
		})
	}
}

func TestBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	maxDelay := 300 * time.Millisecond

	if got := Backoff(0, base, maxDelay); got != 0 {
		t.Fatalf("expected no delay for first attempt got %v", got)
	}
	if got := Backoff(1, base, maxDelay); got != base {
		t.Fatalf("expected %v got %v", base, got)
	}
	if got := Backoff(2, base, maxDelay); got != 2*base {
		t.Fatalf("expected %v got %v", 2*base, got)
	}
	if got := Backoff(5, base, maxDelay); got != maxDelay {
		t.Fatalf("expected cap %v got %v", maxDelay, got)
	}
}

func TestSleepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled got %v", err)
	}
	if err := Sleep(context.Background(), 0); err != nil {
		t.Fatalf("expected immediate return got %v", err)
	}
}
