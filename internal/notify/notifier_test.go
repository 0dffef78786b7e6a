package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.titles = append(s.titles, title)
	return nil
}

func (s *recordingSender) Name() string { return s.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotify_FiltersByEvent(t *testing.T) {
	s := &recordingSender{name: "a"}
	n := NewNotifier([]Sender{s}, []string{EventExit, EventManualReview}, testLogger())
	ctx := context.Background()

	if err := n.Notify(ctx, EventEntry, "entered", "body"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if err := n.Notify(ctx, EventExit, "exited", "body"); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if len(s.titles) != 1 || s.titles[0] != "exited" {
		t.Errorf("delivered = %v, want [exited]", s.titles)
	}
}

func TestNotify_EmptyEventListAllowsAll(t *testing.T) {
	s := &recordingSender{name: "a"}
	n := NewNotifier([]Sender{s}, nil, testLogger())

	for _, ev := range []string{EventEntry, EventExit, EventManualReview, EventFeedDegraded} {
		if err := n.Notify(context.Background(), ev, ev, "body"); err != nil {
			t.Fatalf("Notify(%s): %v", ev, err)
		}
	}
	if len(s.titles) != 4 {
		t.Errorf("delivered %d, want 4", len(s.titles))
	}
}

func TestDispatch_SenderFailureDoesNotBlockOthers(t *testing.T) {
	failing := &recordingSender{name: "telegram", err: errors.New("api down")}
	healthy := &recordingSender{name: "webhook"}
	n := NewNotifier([]Sender{failing, healthy}, nil, testLogger())

	err := n.NotifyAll(context.Background(), "title", "body")
	if err == nil {
		t.Fatal("a failed sender must surface an error")
	}
	if !strings.Contains(err.Error(), "telegram") {
		t.Errorf("error = %v, want the failing sender named", err)
	}
	if len(healthy.titles) != 1 {
		t.Error("remaining senders must still receive the notification")
	}
}

func TestNotify_NoSenders(t *testing.T) {
	n := NewNotifier(nil, nil, testLogger())
	if err := n.NotifyAll(context.Background(), "title", "body"); err != nil {
		t.Errorf("no senders must be a no-op, got %v", err)
	}
}

func TestTelegramSender_Send(t *testing.T) {
	var gotPath string
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		gotForm = r.PostForm
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	s := NewTelegramSender("bot-token", "chat-42")
	s.apiBase = srv.URL

	err := s.Send(context.Background(), "Position opened", "Will BTC close <$100k? & more")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/botbot-token/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if got := gotForm.Get("chat_id"); got != "chat-42" {
		t.Errorf("chat_id = %q", got)
	}
	text := gotForm.Get("text")
	if !strings.HasPrefix(text, "<b>Position opened</b>\n") {
		t.Errorf("text = %q, want bold title first", text)
	}
	if !strings.Contains(text, "&lt;$100k? &amp; more") {
		t.Errorf("text = %q, want HTML-escaped body", text)
	}
}

func TestTelegramSender_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok":false,"description":"Bad Request: chat not found"}`)
	}))
	defer srv.Close()

	s := NewTelegramSender("bot-token", "nope")
	s.apiBase = srv.URL

	err := s.Send(context.Background(), "title", "body")
	if err == nil {
		t.Fatal("API error must surface")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("error = %v, want the API description", err)
	}
}
