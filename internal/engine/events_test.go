package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/tidefall-labs/polytrader/internal/domain"
	"github.com/tidefall-labs/polytrader/internal/notify"
	"github.com/tidefall-labs/polytrader/internal/strategy"
)

type captureBus struct {
	channel  string
	payloads [][]byte
}

func (b *captureBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.channel = channel
	b.payloads = append(b.payloads, payload)
	return nil
}

func (b *captureBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, nil
}

func TestClosePosition_PublishesExitEvent(t *testing.T) {
	h := newHarness(t, nil)
	bus := &captureBus{}
	h.engine.bus = bus
	openPosition(t, h, "token-1", domain.ExitModeMonitor)

	h.monitor.result = strategy.TickResult{
		Closed:     true,
		ExitPrice:  0.52,
		ExitSize:   22.2,
		ExitReason: "take_profit",
	}

	h.engine.superviseTick(context.Background())

	if bus.channel != EventChannel {
		t.Errorf("channel = %q, want %q", bus.channel, EventChannel)
	}
	if len(bus.payloads) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.payloads))
	}

	var ev Event
	if err := json.Unmarshal(bus.payloads[0], &ev); err != nil {
		t.Fatalf("event payload not valid JSON: %v", err)
	}
	if ev.Type != notify.EventExit {
		t.Errorf("type = %q, want %q", ev.Type, notify.EventExit)
	}
	if ev.TokenID != "token-1" || ev.Reason != "take_profit" {
		t.Errorf("event = %+v", ev)
	}
	if ev.ID == "" || ev.Time.IsZero() {
		t.Error("event ID and time must be stamped")
	}
}
