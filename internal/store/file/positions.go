package file

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/tidefall-labs/polytrader/internal/domain"
)

// PositionStore keeps open positions in positions.json, keyed by token ID.
// All mutations rewrite the file before returning, so the in-memory map and
// the document never diverge.
type PositionStore struct {
	mu        sync.Mutex
	path      string
	positions map[string]domain.Position
	logger    *slog.Logger
}

// NewPositionStore loads (or initializes) the position document under dir.
func NewPositionStore(dir string, logger *slog.Logger) (*PositionStore, error) {
	s := &PositionStore{
		path:      filepath.Join(dir, "positions.json"),
		positions: make(map[string]domain.Position),
		logger:    logger.With(slog.String("component", "position_store")),
	}
	corrupt, err := loadJSON(s.path, &s.positions)
	if err != nil {
		return nil, err
	}
	if corrupt {
		s.logger.Error("position document unreadable, starting empty",
			slog.String("quarantined", s.path+".corrupt"))
		s.positions = make(map[string]domain.Position)
	}
	if len(s.positions) > 0 {
		s.logger.Info("loaded open positions", slog.Int("count", len(s.positions)))
	}
	return s, nil
}

// Add records a new open position. A token already held is rejected with
// ErrAlreadyExists and the document is left untouched.
func (s *PositionStore) Add(pos domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[pos.TokenID]; ok {
		return fmt.Errorf("store/file: position %s: %w", pos.TokenID, domain.ErrAlreadyExists)
	}

	s.positions[pos.TokenID] = pos
	if err := s.save(); err != nil {
		delete(s.positions, pos.TokenID)
		return err
	}
	return nil
}

// Get returns the position for a token, if held.
func (s *PositionStore) Get(tokenID string) (domain.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[tokenID]
	return pos, ok
}

// All returns a copy of every open position.
func (s *PositionStore) All() map[string]domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.Position, len(s.positions))
	for id, pos := range s.positions {
		out[id] = pos
	}
	return out
}

// Remove deletes a closed position.
func (s *PositionStore) Remove(tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.positions[tokenID]
	if !ok {
		return fmt.Errorf("store/file: position %s: %w", tokenID, domain.ErrNotFound)
	}

	delete(s.positions, tokenID)
	if err := s.save(); err != nil {
		s.positions[tokenID] = prev
		return err
	}
	return nil
}

// UpdateOrderIDs records the exit order IDs and effective exit mode after
// the protective orders are placed (or after a fallback to monitor).
func (s *PositionStore) UpdateOrderIDs(tokenID, tpOrderID, slOrderID string, mode domain.ExitMode) error {
	return s.update(tokenID, func(p *domain.Position) {
		p.TPOrderID = tpOrderID
		p.SLOrderID = slOrderID
		p.ExitMode = mode
	})
}

// UpdateFill records the confirmed fill size and fees for an entry.
func (s *PositionStore) UpdateFill(tokenID string, filledSize, feesPaid float64) error {
	return s.update(tokenID, func(p *domain.Position) {
		p.FilledSize = filledSize
		p.FeesPaid = feesPaid
	})
}

// MarkManualHold freezes a position so automatic exit supervision skips it.
func (s *PositionStore) MarkManualHold(tokenID string) error {
	return s.update(tokenID, func(p *domain.Position) {
		p.ManualHold = true
	})
}

// Count returns the number of open positions.
func (s *PositionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions)
}

func (s *PositionStore) update(tokenID string, fn func(*domain.Position)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.positions[tokenID]
	if !ok {
		return fmt.Errorf("store/file: position %s: %w", tokenID, domain.ErrNotFound)
	}

	next := prev
	fn(&next)
	s.positions[tokenID] = next
	if err := s.save(); err != nil {
		s.positions[tokenID] = prev
		return err
	}
	return nil
}

func (s *PositionStore) save() error {
	return saveJSON(s.path, s.positions)
}
