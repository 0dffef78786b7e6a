package executor

import (
	"fmt"

	"github.com/tidefall-labs/polytrader/internal/domain"
)

// PositionSize chooses the USD size for a new entry. The capital reserve is
// untouchable; when the remainder cannot cover the configured trade size the
// entry is shrunk to 80% of what is available, and anything below the
// minimum trade size is refused.
func (e *Engine) PositionSize(balance float64) (float64, error) {
	available := balance - e.cfg.CapitalReserve
	if available <= 0 {
		return 0, fmt.Errorf("executor: balance %.2f inside reserve %.2f: %w",
			balance, e.cfg.CapitalReserve, domain.ErrInsufficientBalance)
	}

	size := e.cfg.TradeSize
	if size > available {
		size = available * 0.8
	}
	if size < e.cfg.MinTradeSize {
		return 0, fmt.Errorf("executor: size %.2f below minimum %.2f: %w",
			size, e.cfg.MinTradeSize, domain.ErrInsufficientBalance)
	}
	return size, nil
}
