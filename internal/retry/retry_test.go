package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"reel-compare/internal/domain"
)

func fastPolicy(maxRetries uint64) Policy {
	return Policy{
		MaxRetries:   maxRetries,
		BaseDelay:    time.Millisecond,
		MaxInterval:  2 * time.Millisecond,
		JitterFactor: 0.01,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	out, err := Do(context.Background(), nil, "flaky", fastPolicy(3), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", fmt.Errorf("fetch: %w", domain.ErrUpstreamBlocked)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" {
		t.Fatalf("unexpected value %q", out)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoStopsOnFatalError(t *testing.T) {
	attempts := 0
	_, err := Do(context.Background(), nil, "doomed", fastPolicy(5), func(ctx context.Context) (int, error) {
		attempts++
		return 0, fmt.Errorf("bad source: %w", domain.ErrUnsupportedHost)
	})
	if !errors.Is(err, domain.ErrUnsupportedHost) {
		t.Fatalf("expected the fatal error back, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("fatal errors must not retry, got %d attempts", attempts)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	attempts := 0
	_, err := Do(context.Background(), nil, "always-blocked", fastPolicy(2), func(ctx context.Context) (int, error) {
		attempts++
		return 0, domain.ErrUpstreamBlocked
	})
	if !errors.Is(err, domain.ErrUpstreamBlocked) {
		t.Fatalf("expected last error back, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected initial attempt plus 2 retries, got %d", attempts)
	}
}

func TestDoRespectsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_, err := Do(ctx, nil, "canceled", fastPolicy(5), func(ctx context.Context) (int, error) {
		attempts++
		return 0, domain.ErrTimeout
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if attempts > 1 {
		t.Fatalf("canceled context must stop retries, got %d attempts", attempts)
	}
}

func TestDoPerAttemptTimeout(t *testing.T) {
	p := fastPolicy(0)
	p.Timeout = 5 * time.Millisecond

	_, err := Do(context.Background(), nil, "slow", p, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"domain timeout", domain.ErrTimeout, true},
		{"upstream blocked", domain.ErrUpstreamBlocked, true},
		{"wrapped", fmt.Errorf("probe: %w", domain.ErrTimeout), true},
		{"http 503", errors.New("analyzer http 503"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"unsupported host", domain.ErrUnsupportedHost, false},
		{"schema", domain.ErrSchema, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Transient(tc.err); got != tc.want {
				t.Fatalf("Transient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestRotation(t *testing.T) {
	r := NewRotation([]string{"a.example", "b.example"})
	got := []string{r.Next(), r.Next(), r.Next()}
	want := []string{"a.example", "b.example", "a.example"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotation order %v, want %v", got, want)
		}
	}
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
}

func TestRotationEmpty(t *testing.T) {
	r := NewRotation(nil)
	if r.Next() != "" {
		t.Fatal("empty rotation must yield empty endpoint")
	}
}
