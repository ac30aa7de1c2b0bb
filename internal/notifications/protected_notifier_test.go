package notifications

import (
	"context"
	"errors"
	"testing"
	"time"
)

type scriptedNotifier struct {
	errs  []error
	calls int
}

func (s *scriptedNotifier) SendWelcome(ctx context.Context, in SendWelcomeInput) error {
	i := s.calls
	s.calls++

	if i < len(s.errs) {
		return s.errs[i]
	}
	return nil
}

func TestProtectedNotifier_OpensAfterThreshold(t *testing.T) {
	boom := errors.New("boom")

	inner := &scriptedNotifier{errs: []error{boom, boom, boom}}

	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{
		FailureThreshold: 3,
		Cooldown:         time.Hour, // never half-opens within the test
	})

	in := SendWelcomeInput{UserID: 1, Email: "a@b.com"}

	for i := 0; i < 3; i++ {
		if err := n.SendWelcome(context.Background(), in); !errors.Is(err, boom) {
			t.Fatalf("call %d: got %v, want boom", i, err)
		}
	}

	// circuit is open now; inner must not be called again
	if err := n.SendWelcome(context.Background(), in); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}

	if inner.calls != 3 {
		t.Fatalf("inner called %d times, want 3", inner.calls)
	}
}

func TestProtectedNotifier_HalfOpenRecovers(t *testing.T) {
	boom := errors.New("boom")

	inner := &scriptedNotifier{errs: []error{boom}}

	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{
		FailureThreshold: 1,
		Cooldown:         5 * time.Millisecond,
	})

	in := SendWelcomeInput{UserID: 2, Email: "c@d.com"}

	if err := n.SendWelcome(context.Background(), in); !errors.Is(err, boom) {
		t.Fatalf("first call should fail, got %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	// half-open trial succeeds and closes the circuit again
	if err := n.SendWelcome(context.Background(), in); err != nil {
		t.Fatalf("half-open trial should succeed, got %v", err)
	}

	if err := n.SendWelcome(context.Background(), in); err != nil {
		t.Fatalf("closed circuit should pass through, got %v", err)
	}
}
