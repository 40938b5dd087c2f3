package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"bejofood/internal/metrics"
	"bejofood/internal/repo"
	"bejofood/internal/tg"
)

type fakeMessenger struct {
	err   error
	sent  int
	chats []int64
}

func (f *fakeMessenger) SendMessage(ctx context.Context, chatID int64, text string, kb *tg.InlineKeyboard) error {
	f.sent++
	f.chats = append(f.chats, chatID)
	return f.err
}

func (f *fakeMessenger) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error {
	f.sent++
	return f.err
}

type fakeBroadcaster struct {
	frames [][]byte
}

func (f *fakeBroadcaster) Broadcast(payload []byte) {
	f.frames = append(f.frames, payload)
}

func newTestNotifier(msg Messenger, bc Broadcaster) *Notifier {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(msg, bc, time.Second, logger, metrics.Registry("test"))
}

func TestFormatRupiah(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "Rp 0"},
		{500, "Rp 500"},
		{5000, "Rp 5.000"},
		{55000, "Rp 55.000"},
		{1250000, "Rp 1.250.000"},
		{100, "Rp 100"},
		{1000000000, "Rp 1.000.000.000"},
	}
	for _, tc := range cases {
		if got := FormatRupiah(tc.in); got != tc.want {
			t.Errorf("FormatRupiah(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSendTextSwallowsFailure(t *testing.T) {
	msg := &fakeMessenger{err: errors.New("blocked by user")}
	n := newTestNotifier(msg, &fakeBroadcaster{})

	// Must not panic or propagate; notifications are best effort.
	n.SendText(context.Background(), 777, "halo")
	if msg.sent != 1 {
		t.Fatalf("sent = %d, want 1", msg.sent)
	}
}

func TestSendTextSurvivesCancelledCaller(t *testing.T) {
	msg := &fakeMessenger{}
	n := newTestNotifier(msg, &fakeBroadcaster{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.SendText(ctx, 777, "halo")
	if msg.sent != 1 {
		t.Fatal("delivery skipped after caller cancellation")
	}
}

func TestOrderCreatedEvent(t *testing.T) {
	bc := &fakeBroadcaster{}
	n := newTestNotifier(&fakeMessenger{}, bc)

	n.OrderCreated(&repo.Order{
		ID:          "o1",
		OrderNumber: "BF-20250131-0042",
		Status:      repo.OrderPending,
		Total:       55000,
	}, "Budi Santoso")

	if len(bc.frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(bc.frames))
	}
	var ev Event
	if err := json.Unmarshal(bc.frames[0], &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev.Type != "order_update" || ev.Data.Action != "new_order" {
		t.Errorf("event envelope = %+v", ev)
	}
	if ev.Data.OrderNumber != "BF-20250131-0042" || ev.Data.Total != 55000 || ev.Data.CustomerName != "Budi Santoso" {
		t.Errorf("event data = %+v", ev.Data)
	}
	if ev.Data.EventID == "" {
		t.Error("event id missing")
	}
}

func TestStatusChangedEvent(t *testing.T) {
	bc := &fakeBroadcaster{}
	n := newTestNotifier(&fakeMessenger{}, bc)

	n.StatusChanged(&repo.Order{ID: "o1", OrderNumber: "BF-1", Status: repo.OrderReady})

	var ev Event
	if err := json.Unmarshal(bc.frames[0], &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev.Data.Action != "status_changed" || ev.Data.Status != "ready" {
		t.Errorf("event = %+v", ev)
	}
}
