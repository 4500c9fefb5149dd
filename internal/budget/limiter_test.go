package budget

import (
	"math"
	"sync"
	"testing"
)

func TestCost(t *testing.T) {
	if c := Cost(2, 1000, 252); c != 2*1000*253 {
		t.Errorf("expected %d, got %d", 2*1000*253, c)
	}
	if c := Cost(0, 1000, 252); c != 0 {
		t.Errorf("expected 0 for no assets, got %d", c)
	}
	if c := Cost(math.MaxInt32, math.MaxInt32, math.MaxInt32); c != math.MaxInt64 {
		t.Errorf("expected saturation at MaxInt64, got %d", c)
	}
}

func TestCheckLimit_WithinLimits(t *testing.T) {
	limiter := NewWorkLimiter(1000, 5000)

	err := limiter.CheckLimit(500, 0)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCheckLimit_RequestTooLarge(t *testing.T) {
	limiter := NewWorkLimiter(1000, 5000)

	err := limiter.CheckLimit(1001, 0)
	if err != ErrRequestTooLarge {
		t.Errorf("expected ErrRequestTooLarge, got %v", err)
	}
}

func TestCheckLimit_CapacityExceeded(t *testing.T) {
	limiter := NewWorkLimiter(1000, 5000)

	// 4500 in flight + 600 = 5100 > 5000.
	err := limiter.CheckLimit(600, 4500)
	if err != ErrCapacityExceeded {
		t.Errorf("expected ErrCapacityExceeded, got %v", err)
	}

	// Exactly at the ceiling is allowed.
	if err := limiter.CheckLimit(500, 4500); err != nil {
		t.Errorf("expected no error at the ceiling, got %v", err)
	}
}

func TestCheckLimit_ZeroDisables(t *testing.T) {
	limiter := NewWorkLimiter(0, -1)

	if err := limiter.CheckLimit(math.MaxInt64, math.MaxInt64); err != nil {
		t.Errorf("expected unlimited limiter to admit everything, got %v", err)
	}
}

func TestGate_AcquireRelease(t *testing.T) {
	gate := NewGate(NewWorkLimiter(100, 150))

	release, err := gate.Acquire(100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := gate.Acquire(100); err != ErrCapacityExceeded {
		t.Errorf("expected ErrCapacityExceeded while first request is in flight, got %v", err)
	}

	release()
	release() // idempotent
	if got := gate.InFlight(); got != 0 {
		t.Errorf("expected 0 in flight after release, got %d", got)
	}

	if _, err := gate.Acquire(100); err != nil {
		t.Errorf("expected capacity after release, got %v", err)
	}
}

func TestGate_Concurrent(t *testing.T) {
	gate := NewGate(NewWorkLimiter(0, 0))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := gate.Acquire(10)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			release()
		}()
	}
	wg.Wait()

	if got := gate.InFlight(); got != 0 {
		t.Errorf("expected 0 in flight, got %d", got)
	}
}
