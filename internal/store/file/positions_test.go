package file

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tidefall-labs/polytrader/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPosition(tokenID string) domain.Position {
	return domain.Position{
		TokenID:    tokenID,
		Question:   "Will it resolve yes?",
		EntryPrice: 0.45,
		Size:       10,
		FilledSize: 22.2,
		EntryTime:  time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		TakeProfit: 0.5175,
		StopLoss:   0.396,
		OrderID:    "order-1",
		ExitMode:   domain.ExitModeLimitOrders,
	}
}

func TestPositionStore_AddGetRemove(t *testing.T) {
	dir := t.TempDir()
	s, err := NewPositionStore(dir, testLogger())
	if err != nil {
		t.Fatalf("NewPositionStore: %v", err)
	}

	pos := testPosition("token-1")
	if err := s.Add(pos); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if s.Count() != 1 {
		t.Errorf("Count = %d, want 1", s.Count())
	}

	got, ok := s.Get("token-1")
	if !ok {
		t.Fatal("Get: position missing")
	}
	if got.EntryPrice != pos.EntryPrice || got.TakeProfit != pos.TakeProfit {
		t.Errorf("Get = %+v, want %+v", got, pos)
	}

	if err := s.Remove("token-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("Count after remove = %d, want 0", s.Count())
	}
	if err := s.Remove("token-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Remove missing err = %v, want ErrNotFound", err)
	}
}

func TestPositionStore_DuplicateAddRejected(t *testing.T) {
	s, err := NewPositionStore(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewPositionStore: %v", err)
	}

	first := testPosition("token-1")
	if err := s.Add(first); err != nil {
		t.Fatalf("Add: %v", err)
	}

	second := testPosition("token-1")
	second.EntryPrice = 0.60
	if err := s.Add(second); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("duplicate Add err = %v, want ErrAlreadyExists", err)
	}

	got, _ := s.Get("token-1")
	if got.EntryPrice != first.EntryPrice {
		t.Errorf("duplicate Add mutated entry: price = %g, want %g", got.EntryPrice, first.EntryPrice)
	}
}

func TestPositionStore_SurvivesReload(t *testing.T) {
	dir := t.TempDir()

	s, err := NewPositionStore(dir, testLogger())
	if err != nil {
		t.Fatalf("NewPositionStore: %v", err)
	}
	if err := s.Add(testPosition("token-1")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.UpdateOrderIDs("token-1", "tp-1", "sl-1", domain.ExitModeLimitOrders); err != nil {
		t.Fatalf("UpdateOrderIDs: %v", err)
	}

	reloaded, err := NewPositionStore(dir, testLogger())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got, ok := reloaded.Get("token-1")
	if !ok {
		t.Fatal("reload lost the position")
	}
	if got.TPOrderID != "tp-1" || got.SLOrderID != "sl-1" {
		t.Errorf("order IDs = %q/%q, want tp-1/sl-1", got.TPOrderID, got.SLOrderID)
	}
	if got.EntryTime.IsZero() {
		t.Error("entry time not round-tripped")
	}
}

func TestPositionStore_ToleratesOldSchema(t *testing.T) {
	// A state file written before exit_mode and the exit order IDs existed,
	// plus a field this version does not know about.
	dir := t.TempDir()
	doc := `{
		"token-1": {
			"token_id": "token-1",
			"entry_price": 0.55,
			"size": 10,
			"filled_size": 18.1,
			"entry_time": "2026-08-01T09:00:00Z",
			"tp": 0.616,
			"sl": 0.495,
			"order_id": "order-1",
			"legacy_flag": true
		}
	}`
	if err := os.WriteFile(filepath.Join(dir, "positions.json"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewPositionStore(dir, testLogger())
	if err != nil {
		t.Fatalf("NewPositionStore: %v", err)
	}
	got, ok := s.Get("token-1")
	if !ok {
		t.Fatal("legacy position not loaded")
	}
	if got.Mode() != domain.ExitModeMonitor {
		t.Errorf("Mode = %q, want monitor default for legacy records", got.Mode())
	}
	if got.ManualHold {
		t.Error("ManualHold must default to false")
	}
}

func TestPositionStore_CorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "positions.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewPositionStore(dir, testLogger())
	if err != nil {
		t.Fatalf("NewPositionStore: %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("Count = %d, want empty store after corrupt load", s.Count())
	}

	// The bad document is moved aside for inspection, not clobbered.
	moved, err := os.ReadFile(path + ".corrupt")
	if err != nil {
		t.Fatalf("quarantined copy missing: %v", err)
	}
	if string(moved) != "{not json" {
		t.Errorf("quarantined copy = %q, want the original bytes", moved)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt original must be renamed away")
	}

	// The store works normally afterwards.
	if err := s.Add(testPosition("token-1")); err != nil {
		t.Fatalf("Add after corrupt load: %v", err)
	}
}

func TestPositionStore_UpdateHelpers(t *testing.T) {
	s, err := NewPositionStore(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewPositionStore: %v", err)
	}
	if err := s.Add(testPosition("token-1")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := s.UpdateFill("token-1", 20.0, 0.05); err != nil {
		t.Fatalf("UpdateFill: %v", err)
	}
	if err := s.MarkManualHold("token-1"); err != nil {
		t.Fatalf("MarkManualHold: %v", err)
	}

	got, _ := s.Get("token-1")
	if got.FilledSize != 20.0 || got.FeesPaid != 0.05 {
		t.Errorf("fill = %g fees = %g, want 20/0.05", got.FilledSize, got.FeesPaid)
	}
	if !got.ManualHold {
		t.Error("ManualHold not set")
	}

	if err := s.UpdateFill("missing", 1, 0); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("UpdateFill missing err = %v, want ErrNotFound", err)
	}
}

func TestPositionStore_AllReturnsCopy(t *testing.T) {
	s, err := NewPositionStore(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewPositionStore: %v", err)
	}
	if err := s.Add(testPosition("token-1")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	all := s.All()
	delete(all, "token-1")
	if s.Count() != 1 {
		t.Error("mutating the All() result must not touch the store")
	}
}
