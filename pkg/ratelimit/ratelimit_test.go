package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	t.Run("allows up to max hits", func(t *testing.T) {
		limiter := NewLimiter(time.Minute, 3)

		for i := 0; i < 3; i++ {
			if !limiter.Allow("client") {
				t.Fatalf("Hit %d should have been allowed", i+1)
			}
		}
		if limiter.Allow("client") {
			t.Error("Hit over the limit should have been denied")
		}
	})

	t.Run("keys are independent", func(t *testing.T) {
		limiter := NewLimiter(time.Minute, 1)

		if !limiter.Allow("a") {
			t.Error("First hit for key a should be allowed")
		}
		if !limiter.Allow("b") {
			t.Error("First hit for key b should be allowed")
		}
		if limiter.Allow("a") {
			t.Error("Second hit for key a should be denied")
		}
	})

	t.Run("window expiry frees capacity", func(t *testing.T) {
		limiter := NewLimiter(20*time.Millisecond, 1)

		if !limiter.Allow("client") {
			t.Fatal("First hit should be allowed")
		}
		if limiter.Allow("client") {
			t.Fatal("Second immediate hit should be denied")
		}

		time.Sleep(30 * time.Millisecond)
		if !limiter.Allow("client") {
			t.Error("Hit after window expiry should be allowed")
		}
	})

	t.Run("reset clears hits", func(t *testing.T) {
		limiter := NewLimiter(time.Minute, 1)

		limiter.Allow("client")
		limiter.Reset("client")
		if !limiter.Allow("client") {
			t.Error("Hit after reset should be allowed")
		}
	})
}
