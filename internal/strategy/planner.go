// Package strategy holds the exit-planning and exit-supervision logic: the
// TP/SL bucket planner and the two ExitStrategy implementations a position
// can carry (resting limit orders, or polling with market-order exits).
package strategy

import (
	"fmt"

	"github.com/tidefall-labs/polytrader/internal/config"
	"github.com/tidefall-labs/polytrader/internal/domain"
)

// Price bounds for a 0-1 probability token. Exit prices are clamped inside
// these so a resting order is always placeable.
const (
	minExitPrice = 0.01
	maxExitPrice = 0.99
)

// ExitPlan is the protection band computed for an entry price.
type ExitPlan struct {
	TakeProfit float64
	StopLoss   float64
	Bucket     string // e.g. "0.60-0.70", used to tag trade records
}

// PlanExits maps an entry price to its take-profit and stop-loss prices via
// the configured probability buckets. An entry price outside every bucket is
// a configuration inconsistency and is surfaced as ErrNoExitBucket rather
// than silently defaulted: a position must never open with undefined
// protection.
func PlanExits(entryPrice float64, buckets []config.ExitBucket) (ExitPlan, error) {
	for _, b := range buckets {
		if b.Contains(entryPrice) {
			return planFor(entryPrice, b)
		}
	}

	// Buckets are half-open [min, max), but an entry exactly on the
	// topmost upper edge is still tradable: the scanner's odds ceiling is
	// inclusive, so the highest bucket must be too.
	if top, ok := topBucket(buckets); ok && entryPrice >= top.Min && entryPrice <= top.Max {
		return planFor(entryPrice, top)
	}

	return ExitPlan{}, fmt.Errorf("strategy: entry price %.4f: %w", entryPrice, domain.ErrNoExitBucket)
}

func planFor(entryPrice float64, b config.ExitBucket) (ExitPlan, error) {
	plan := ExitPlan{
		TakeProfit: clampPrice(entryPrice * (1 + b.TPPct)),
		StopLoss:   clampPrice(entryPrice * (1 - b.SLPct)),
		Bucket:     fmt.Sprintf("%.2f-%.2f", b.Min, b.Max),
	}

	// Clamping must never invert the band.
	if !(plan.TakeProfit > entryPrice && entryPrice > plan.StopLoss) {
		return ExitPlan{}, fmt.Errorf(
			"strategy: bucket %s yields tp=%.4f sl=%.4f around entry %.4f: %w",
			plan.Bucket, plan.TakeProfit, plan.StopLoss, entryPrice, domain.ErrNoExitBucket,
		)
	}
	return plan, nil
}

func topBucket(buckets []config.ExitBucket) (config.ExitBucket, bool) {
	var top config.ExitBucket
	found := false
	for _, b := range buckets {
		if !found || b.Max > top.Max {
			top = b
			found = true
		}
	}
	return top, found
}

func clampPrice(p float64) float64 {
	if p < minExitPrice {
		return minExitPrice
	}
	if p > maxExitPrice {
		return maxExitPrice
	}
	return p
}
