package file

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/tidefall-labs/polytrader/internal/domain"
)

// BlacklistStore keeps the temporal token blacklist in blacklist.json.
// Entries expire on their own; a token that keeps getting blocked is made
// permanent once its attempt count reaches the configured maximum.
type BlacklistStore struct {
	mu      sync.Mutex
	path    string
	entries map[string]domain.BlacklistEntry
	logger  *slog.Logger
	now     func() time.Time
}

// NewBlacklistStore loads (or initializes) the blacklist document under dir.
func NewBlacklistStore(dir string, logger *slog.Logger) (*BlacklistStore, error) {
	s := &BlacklistStore{
		path:    filepath.Join(dir, "blacklist.json"),
		entries: make(map[string]domain.BlacklistEntry),
		logger:  logger.With(slog.String("component", "blacklist_store")),
		now:     time.Now,
	}
	corrupt, err := loadJSON(s.path, &s.entries)
	if err != nil {
		return nil, err
	}
	if corrupt {
		s.logger.Error("blacklist document unreadable, starting empty",
			slog.String("quarantined", s.path+".corrupt"))
		s.entries = make(map[string]domain.BlacklistEntry)
	}
	return s, nil
}

// Block adds or extends a blacklist entry. Repeat blocks increment the
// attempt counter; at maxAttempts the entry becomes permanent.
func (s *BlacklistStore) Block(tokenID, reason string, duration time.Duration, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[tokenID]
	if ok {
		entry.Attempts++
		entry.Reason = reason
		entry.BlockedUntil = now.Add(duration)
	} else {
		entry = domain.BlacklistEntry{
			Reason:       reason,
			BlockedUntil: now.Add(duration),
			Attempts:     1,
			MaxAttempts:  maxAttempts,
		}
	}

	prev, had := s.entries[tokenID]
	s.entries[tokenID] = entry
	if err := s.save(); err != nil {
		if had {
			s.entries[tokenID] = prev
		} else {
			delete(s.entries, tokenID)
		}
		return err
	}

	if entry.Attempts >= entry.MaxAttempts {
		s.logger.Warn("token permanently blacklisted",
			slog.String("token_id", tokenID),
			slog.String("reason", reason),
			slog.Int("attempts", entry.Attempts),
		)
	} else {
		s.logger.Info("token blacklisted",
			slog.String("token_id", tokenID),
			slog.String("reason", reason),
			slog.Time("blocked_until", entry.BlockedUntil),
		)
	}
	return nil
}

// IsBlacklisted reports whether a token is currently blocked.
func (s *BlacklistStore) IsBlacklisted(tokenID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[tokenID]
	if !ok {
		return false
	}
	return entry.Active(s.now())
}

// Sweep removes expired non-permanent entries and returns how many were
// dropped. Permanent entries are kept forever.
func (s *BlacklistStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, id)
			removed++
		}
	}
	if removed > 0 {
		if err := s.save(); err != nil {
			s.logger.Error("blacklist sweep save failed", slog.String("error", err.Error()))
		} else {
			s.logger.Debug("blacklist swept", slog.Int("removed", removed))
		}
	}
	return removed
}

func (s *BlacklistStore) save() error {
	if err := saveJSON(s.path, s.entries); err != nil {
		return fmt.Errorf("store/file: blacklist: %w", err)
	}
	return nil
}
