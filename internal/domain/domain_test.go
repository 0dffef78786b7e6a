package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestTransient(t *testing.T) {
	transient := []error{
		ErrRateLimited,
		ErrWSDisconnect,
		ErrNoData,
		fmt.Errorf("wrapped: %w", ErrRateLimited),
		errors.New("mystery venue error"), // unknowns default to retryable
	}
	for _, err := range transient {
		if !Transient(err) {
			t.Errorf("Transient(%v) = false, want true", err)
		}
	}

	fatal := []error{
		ErrInvalidOrder,
		ErrInsufficientBalance,
		ErrUnauthorized,
		ErrContextDone,
		fmt.Errorf("wrapped: %w", ErrInvalidOrder),
	}
	for _, err := range fatal {
		if Transient(err) {
			t.Errorf("Transient(%v) = true, want false", err)
		}
	}
}

func TestRealizedPnL(t *testing.T) {
	if got := RealizedPnL(0.45, 0.52, 22.2, 0.05); got != (0.52-0.45)*22.2-0.05 {
		t.Errorf("RealizedPnL = %g", got)
	}
	if got := RealizedPnL(0.45, 0.40, 10, 0); got >= 0 {
		t.Errorf("losing trade PnL = %g, want negative", got)
	}
}

func TestOddsBucketFor(t *testing.T) {
	tests := []struct {
		price float64
		want  string
	}{
		{0.45, "0.40-0.50"},
		{0.40, "0.40-0.50"},
		{0.699, "0.60-0.70"},
		{0.05, "0.00-0.10"},
	}
	for _, tt := range tests {
		if got := OddsBucketFor(tt.price); got != tt.want {
			t.Errorf("OddsBucketFor(%g) = %q, want %q", tt.price, got, tt.want)
		}
	}
}

func TestBlacklistEntryActive(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	timed := BlacklistEntry{BlockedUntil: now.Add(time.Hour), Attempts: 1, MaxAttempts: 3}
	if !timed.Active(now) {
		t.Error("entry inside its window must be active")
	}
	if timed.Active(now.Add(2 * time.Hour)) {
		t.Error("entry past its window must lapse")
	}

	permanent := BlacklistEntry{BlockedUntil: now.Add(-time.Hour), Attempts: 3, MaxAttempts: 3}
	if !permanent.Active(now) {
		t.Error("entry at max attempts must be active regardless of expiry")
	}
	if permanent.Expired(now) {
		t.Error("permanent entry must never expire")
	}
}

func TestOrderStateResting(t *testing.T) {
	resting := []OrderState{OrderStateOpen, OrderStatePartial}
	for _, s := range resting {
		if !s.Resting() {
			t.Errorf("%q.Resting() = false, want true", s)
		}
	}
	gone := []OrderState{OrderStateFilled, OrderStateCancelled, OrderStateUnknown}
	for _, s := range gone {
		if s.Resting() {
			t.Errorf("%q.Resting() = true, want false", s)
		}
	}
}

func TestPositionMode(t *testing.T) {
	if got := (Position{}).Mode(); got != ExitModeMonitor {
		t.Errorf("legacy position Mode = %q, want monitor", got)
	}
	if got := (Position{ExitMode: ExitModeLimitOrders}).Mode(); got != ExitModeLimitOrders {
		t.Errorf("Mode = %q, want limit_orders", got)
	}
}

func TestNewSnapshot(t *testing.T) {
	ts := time.Now()

	s := NewSnapshot("token-1", 0.44, 0.46, ts)
	if s.MidPrice != 0.45 {
		t.Errorf("MidPrice = %g, want 0.45", s.MidPrice)
	}
	if diff := s.SpreadPct - (0.02/0.45)*100; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("SpreadPct = %g", s.SpreadPct)
	}

	empty := NewSnapshot("token-1", 0, 0.46, ts)
	if empty.MidPrice != 0 || empty.SpreadPct != 0 {
		t.Errorf("one-sided book: mid=%g spread=%g, want zeros", empty.MidPrice, empty.SpreadPct)
	}

	if !s.Stale(ts.Add(time.Minute), 30*time.Second) {
		t.Error("old snapshot must report stale")
	}
	if s.Stale(ts.Add(10*time.Second), 30*time.Second) {
		t.Error("fresh snapshot must not report stale")
	}
}

func TestDaysToResolution(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	c := MarketCandidate{EndDate: now.AddDate(0, 0, 10)}
	if got := c.DaysToResolution(now); got != 10 {
		t.Errorf("DaysToResolution = %g, want 10", got)
	}

	past := MarketCandidate{EndDate: now.AddDate(0, 0, -1)}
	if got := past.DaysToResolution(now); got >= 0 {
		t.Errorf("past market DaysToResolution = %g, want negative", got)
	}
}
