package convo

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"bejofood/internal/cache"
	"bejofood/internal/checkout"
	"bejofood/internal/metrics"
	"bejofood/internal/midtrans"
	"bejofood/internal/notify"
	"bejofood/internal/repo"
	"bejofood/internal/repo/repotest"
	"bejofood/internal/tg"
)

type sentMessage struct {
	chatID int64
	text   string
	kb     *tg.InlineKeyboard
}

type fakeSender struct {
	messages []sentMessage
	toasts   []string
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID int64, text string, kb *tg.InlineKeyboard) error {
	f.messages = append(f.messages, sentMessage{chatID, text, kb})
	return nil
}

func (f *fakeSender) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error {
	return nil
}

func (f *fakeSender) AnswerCallback(ctx context.Context, callbackID, text string) error {
	f.toasts = append(f.toasts, text)
	return nil
}

type fakeGateway struct{}

func (fakeGateway) CreateCharge(ctx context.Context, in midtrans.ChargeInput) (*midtrans.Charge, error) {
	return &midtrans.Charge{
		TransactionID: in.TransactionID,
		QRString:      "000201",
		GrossAmount:   in.GrossAmount,
		ExpiresAt:     time.Now().Add(15 * time.Minute),
	}, nil
}

func newTestEngine(t *testing.T, mock *repotest.Mock) (*Engine, *fakeSender) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.Registry("test")
	sender := &fakeSender{}
	// Unreachable Redis: the engine must degrade to direct reads.
	redisCache := cache.New(cache.Config{Addr: "127.0.0.1:1"}, logger)
	notifier := notify.New(sender, &nopBroadcaster{}, time.Second, logger, m)
	pipeline := checkout.New(mock, fakeGateway{}, notifier, "BF", logger, m)
	return NewEngine(mock, redisCache, pipeline, sender, time.Minute, logger, m), sender
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(payload []byte) {}

func userInState(state repo.ConversationState, data repo.ConversationData) *repo.User {
	return &repo.User{ID: "u1", TelegramID: 777, FirstName: "Budi", ConversationState: state, ConversationData: data}
}

func upserting(u *repo.User) func(context.Context, repo.UserProfile) (*repo.User, error) {
	return func(ctx context.Context, p repo.UserProfile) (*repo.User, error) {
		return u, nil
	}
}

func messageUpdate(text string) tg.Update {
	return tg.Update{Message: &tg.Message{
		From: &tg.From{ID: 777, FirstName: "Budi"},
		Chat: tg.Chat{ID: 777},
		Text: text,
	}}
}

func callbackUpdate(data string) tg.Update {
	return tg.Update{CallbackQuery: &tg.CallbackQuery{
		ID:      "cb-1",
		From:    &tg.From{ID: 777, FirstName: "Budi"},
		Message: &tg.Message{Chat: tg.Chat{ID: 777}},
		Data:    data,
	}}
}

func TestMenuCommandRendersCategories(t *testing.T) {
	mock := &repotest.Mock{
		UpsertUserByTelegramIDFn: upserting(userInState(repo.StateNone, repo.ConversationData{})),
		ListActiveCategoriesFn: func(ctx context.Context) ([]repo.Category, error) {
			return []repo.Category{{ID: "c1", Name: "Makanan", Emoji: "🍛"}}, nil
		},
	}
	e, sender := newTestEngine(t, mock)

	if err := e.ProcessUpdate(context.Background(), messageUpdate("/menu")); err != nil {
		t.Fatalf("ProcessUpdate: %v", err)
	}
	if len(sender.messages) != 1 {
		t.Fatalf("messages = %d", len(sender.messages))
	}
	msg := sender.messages[0]
	if msg.kb == nil || msg.kb.InlineKeyboard[0][0].CallbackData != "category:c1" {
		t.Errorf("keyboard = %+v", msg.kb)
	}
}

func TestShortAddressRepromptsWithoutAdvancing(t *testing.T) {
	advanced := false
	mock := &repotest.Mock{
		UpsertUserByTelegramIDFn: upserting(userInState(repo.StateCheckoutAddress, repo.ConversationData{})),
		SetConversationStateFn: func(ctx context.Context, userID string, from, to repo.ConversationState, data repo.ConversationData) error {
			advanced = true
			return nil
		},
	}
	e, sender := newTestEngine(t, mock)

	if err := e.ProcessUpdate(context.Background(), messageUpdate("pendek")); err != nil {
		t.Fatalf("ProcessUpdate: %v", err)
	}
	if advanced {
		t.Error("short address advanced the conversation")
	}
	if len(sender.messages) != 1 || !strings.Contains(sender.messages[0].text, "10 karakter") {
		t.Errorf("reprompt = %+v", sender.messages)
	}
}

func TestValidAddressAdvancesToPhone(t *testing.T) {
	var gotFrom, gotTo repo.ConversationState
	var gotData repo.ConversationData
	mock := &repotest.Mock{
		UpsertUserByTelegramIDFn: upserting(userInState(repo.StateCheckoutAddress, repo.ConversationData{})),
		SetConversationStateFn: func(ctx context.Context, userID string, from, to repo.ConversationState, data repo.ConversationData) error {
			gotFrom, gotTo, gotData = from, to, data
			return nil
		},
	}
	e, sender := newTestEngine(t, mock)

	if err := e.ProcessUpdate(context.Background(), messageUpdate("Jl. Merdeka No. 10, Jakarta")); err != nil {
		t.Fatalf("ProcessUpdate: %v", err)
	}
	if gotFrom != repo.StateCheckoutAddress || gotTo != repo.StateCheckoutPhone {
		t.Errorf("transition %q -> %q", gotFrom, gotTo)
	}
	if gotData.Address != "Jl. Merdeka No. 10, Jakarta" {
		t.Errorf("data = %+v", gotData)
	}
	if len(sender.messages) != 1 || !strings.Contains(sender.messages[0].text, "nomor HP") {
		t.Errorf("prompt = %+v", sender.messages)
	}
}

func TestNotesInputFinalizesOrder(t *testing.T) {
	var gotInput repo.FinalizeInput
	mock := &repotest.Mock{
		UpsertUserByTelegramIDFn: upserting(userInState(repo.StateCheckoutNotes, repo.ConversationData{
			Address: "Jl. Merdeka No. 10, Jakarta", Phone: "08123456789",
		})),
		FinalizeOrderFn: func(ctx context.Context, in repo.FinalizeInput) (*repo.Order, error) {
			gotInput = in
			return &repo.Order{ID: "o1", OrderNumber: "BF-20250131-0042", Status: repo.OrderPending, Total: 55000}, nil
		},
	}
	e, _ := newTestEngine(t, mock)

	if err := e.ProcessUpdate(context.Background(), messageUpdate("jangan pedas")); err != nil {
		t.Fatalf("ProcessUpdate: %v", err)
	}
	if gotInput.FromState != repo.StateCheckoutNotes || gotInput.Notes != "jangan pedas" {
		t.Errorf("finalize input = %+v", gotInput)
	}
	if gotInput.DeliveryAddress != "Jl. Merdeka No. 10, Jakarta" || gotInput.Phone != "08123456789" {
		t.Errorf("collected data lost: %+v", gotInput)
	}
}

func TestAddCallbackAnswersWithQuantity(t *testing.T) {
	mock := &repotest.Mock{
		UpsertUserByTelegramIDFn: upserting(userInState(repo.StateNone, repo.ConversationData{})),
		GetMenuItemFn: func(ctx context.Context, id string) (*repo.MenuItem, error) {
			return &repo.MenuItem{ID: id, Name: "Nasi Goreng", Price: 25000, IsAvailable: true}, nil
		},
		AddOrIncrementItemFn: func(ctx context.Context, cartID, menuItemID string) (int, error) {
			return 2, nil
		},
	}
	e, sender := newTestEngine(t, mock)

	if err := e.ProcessUpdate(context.Background(), callbackUpdate("add:i1")); err != nil {
		t.Fatalf("ProcessUpdate: %v", err)
	}
	if len(sender.toasts) != 1 || !strings.Contains(sender.toasts[0], "Nasi Goreng (x2)") {
		t.Errorf("toasts = %v", sender.toasts)
	}
}

func TestSkipNotesOutsideNotesStateIsRejected(t *testing.T) {
	finalized := false
	mock := &repotest.Mock{
		UpsertUserByTelegramIDFn: upserting(userInState(repo.StateNone, repo.ConversationData{})),
		FinalizeOrderFn: func(ctx context.Context, in repo.FinalizeInput) (*repo.Order, error) {
			finalized = true
			return nil, nil
		},
	}
	e, sender := newTestEngine(t, mock)

	if err := e.ProcessUpdate(context.Background(), callbackUpdate("checkout:skip_notes")); err != nil {
		t.Fatalf("ProcessUpdate: %v", err)
	}
	if finalized {
		t.Error("skip_notes finalized outside the notes state")
	}
	if len(sender.toasts) != 1 || sender.toasts[0] == "" {
		t.Errorf("toasts = %v", sender.toasts)
	}
}

func TestCheckoutStartOnEmptyCart(t *testing.T) {
	started := false
	mock := &repotest.Mock{
		UpsertUserByTelegramIDFn: upserting(userInState(repo.StateNone, repo.ConversationData{})),
		ListCartLinesFn: func(ctx context.Context, cartID string) ([]repo.CartLine, error) {
			return nil, nil
		},
		SetConversationStateFn: func(ctx context.Context, userID string, from, to repo.ConversationState, data repo.ConversationData) error {
			started = true
			return nil
		},
	}
	e, sender := newTestEngine(t, mock)

	if err := e.ProcessUpdate(context.Background(), callbackUpdate("checkout:start")); err != nil {
		t.Fatalf("ProcessUpdate: %v", err)
	}
	if started {
		t.Error("checkout started with empty cart")
	}
	if len(sender.messages) != 1 || !strings.Contains(sender.messages[0].text, "kosong") {
		t.Errorf("messages = %+v", sender.messages)
	}
}
