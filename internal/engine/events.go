package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventChannel is the pub/sub channel engine events are published on.
const EventChannel = "polytrader:events"

// Event is the wire shape published on the event bus.
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	TokenID string    `json:"token_id,omitempty"`
	Price   float64   `json:"price,omitempty"`
	Size    float64   `json:"size,omitempty"`
	PnL     float64   `json:"pnl,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Time    time.Time `json:"time"`
}

// publish sends an event on the bus, if one is wired. Bus failures are a
// logging matter; trading never blocks on them.
func (e *Engine) publish(ctx context.Context, ev Event) {
	if e.bus == nil {
		return
	}

	ev.ID = uuid.NewString()
	ev.Time = e.now().UTC()

	payload, err := json.Marshal(ev)
	if err != nil {
		e.logger.Error("event marshal failed", slog.String("type", ev.Type),
			slog.String("error", err.Error()))
		return
	}

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := e.bus.Publish(pctx, EventChannel, payload); err != nil {
		e.logger.Warn("event publish failed",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
	}
}

// alert notifies the operator, if a notifier is wired.
func (e *Engine) alert(ctx context.Context, event, title, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event, title, message); err != nil {
		e.logger.Warn("alert delivery failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
