package convo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"bejofood/internal/cache"
	"bejofood/internal/checkout"
	"bejofood/internal/metrics"
	"bejofood/internal/repo"
	"bejofood/internal/tg"
)

const (
	cacheKeyCategories = "menu:categories"
	cacheKeyItems      = "menu:items:"
)

// Sender is the outbound chat surface the engine needs. Satisfied by
// *tg.Client.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard *tg.InlineKeyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Engine drives the bot dialogue: commands, inline-keyboard callbacks, and
// the multi-step checkout conversation. It implements tg.UpdateProcessor.
type Engine struct {
	repo     repo.Repository
	cache    *cache.Redis
	pipeline *checkout.Pipeline
	sender   Sender
	menuTTL  time.Duration
	sf       singleflight.Group
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewEngine builds the dialogue engine.
func NewEngine(r repo.Repository, c *cache.Redis, pipeline *checkout.Pipeline, sender Sender, menuTTL time.Duration, logger *slog.Logger, m *metrics.Metrics) *Engine {
	if menuTTL <= 0 {
		menuTTL = 5 * time.Minute
	}
	return &Engine{
		repo:     r,
		cache:    c,
		pipeline: pipeline,
		sender:   sender,
		menuTTL:  menuTTL,
		logger:   logger.With("component", "convo"),
		metrics:  m,
	}
}

// ProcessUpdate routes one inbound update. Updates without an identifiable
// sender are dropped.
func (e *Engine) ProcessUpdate(ctx context.Context, upd tg.Update) error {
	switch {
	case upd.Message != nil && upd.Message.From != nil:
		return e.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil && upd.CallbackQuery.From != nil:
		return e.handleCallback(ctx, upd.CallbackQuery)
	}
	return nil
}

func (e *Engine) handleMessage(ctx context.Context, msg *tg.Message) error {
	user, err := e.repo.UpsertUserByTelegramID(ctx, repo.UserProfile{
		TelegramID: msg.From.ID,
		Username:   msg.From.Username,
		FirstName:  msg.From.FirstName,
		LastName:   msg.From.LastName,
	})
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	if strings.HasPrefix(text, "/") {
		return e.handleCommand(ctx, user, chatID, text)
	}
	if user.ConversationState != repo.StateNone {
		return e.handleConversationInput(ctx, user, chatID, text)
	}
	return e.sender.SendMessage(ctx, chatID, "Ketik /menu untuk mulai memesan, atau /help untuk bantuan. 😊", nil)
}

func (e *Engine) handleCommand(ctx context.Context, user *repo.User, chatID int64, text string) error {
	cmd := strings.ToLower(strings.Fields(text)[0])
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	switch cmd {
	case "/start":
		if _, err := e.repo.EnsureCart(ctx, user.ID); err != nil {
			return fmt.Errorf("ensure cart: %w", err)
		}
		return e.sender.SendMessage(ctx, chatID, welcomeText(user.FirstName), nil)
	case "/help":
		return e.sender.SendMessage(ctx, chatID, helpText(), nil)
	case "/menu":
		return e.sendCategories(ctx, chatID)
	case "/cart":
		return e.sendCart(ctx, user, chatID)
	case "/checkout":
		_, err := e.startCheckout(ctx, user, chatID)
		return err
	case "/status":
		orders, err := e.repo.ListRecentOrdersByUser(ctx, user.ID, 5)
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}
		return e.sender.SendMessage(ctx, chatID, ordersMessage(orders), nil)
	case "/cancel":
		return e.cancelCheckout(ctx, user, chatID)
	}
	return e.sender.SendMessage(ctx, chatID, "Perintah tidak dikenal. Ketik /help untuk daftar perintah.", nil)
}

func (e *Engine) cancelCheckout(ctx context.Context, user *repo.User, chatID int64) error {
	if user.ConversationState == repo.StateNone {
		return e.sender.SendMessage(ctx, chatID, "Tidak ada proses yang sedang berjalan.", nil)
	}
	err := e.repo.SetConversationState(ctx, user.ID, user.ConversationState, repo.StateNone, repo.ConversationData{})
	if err != nil && !errors.Is(err, repo.ErrConversationConflict) {
		return fmt.Errorf("cancel checkout: %w", err)
	}
	return e.sender.SendMessage(ctx, chatID, "🚫 Checkout dibatalkan. Keranjangmu masih tersimpan.", nil)
}

// handleConversationInput advances the checkout dialogue one step. Each
// transition is guarded by the state the input was answered in, so a
// double-delivered message advances at most once.
func (e *Engine) handleConversationInput(ctx context.Context, user *repo.User, chatID int64, text string) error {
	switch user.ConversationState {
	case repo.StateCheckoutAddress:
		if len([]rune(strings.TrimSpace(text))) < 10 {
			return e.sender.SendMessage(ctx, chatID, "⚠️ Alamat terlalu pendek. Tulis alamat lengkap minimal 10 karakter ya.", nil)
		}
		data := user.ConversationData
		data.Address = strings.TrimSpace(text)
		if err := e.advance(ctx, user, repo.StateCheckoutPhone, data); err != nil {
			return err
		}
		return e.sender.SendMessage(ctx, chatID, askPhoneText(), nil)

	case repo.StateCheckoutPhone:
		phone, ok := NormalizePhone(text)
		if !ok {
			return e.sender.SendMessage(ctx, chatID, "⚠️ Nomor HP tidak valid. Contoh: 08123456789", nil)
		}
		data := user.ConversationData
		data.Phone = phone
		if err := e.advance(ctx, user, repo.StateCheckoutNotes, data); err != nil {
			return err
		}
		prompt, kb := askNotesText()
		return e.sender.SendMessage(ctx, chatID, prompt, kb)

	case repo.StateCheckoutNotes:
		data := user.ConversationData
		data.Notes = strings.TrimSpace(text)
		return e.finalize(ctx, user, chatID, data)
	}

	e.logger.Warn("input in unknown conversation state", "state", string(user.ConversationState))
	return nil
}

// advance moves the conversation to the next state; a lost CAS means another
// delivery of the same message got there first and the duplicate is dropped.
func (e *Engine) advance(ctx context.Context, user *repo.User, to repo.ConversationState, data repo.ConversationData) error {
	err := e.repo.SetConversationState(ctx, user.ID, user.ConversationState, to, data)
	if errors.Is(err, repo.ErrConversationConflict) {
		e.logger.Info("conversation step already advanced", "user_id", user.ID, "to", string(to))
		return nil
	}
	if err != nil {
		return fmt.Errorf("advance conversation: %w", err)
	}
	user.ConversationState = to
	user.ConversationData = data
	return nil
}

func (e *Engine) finalize(ctx context.Context, user *repo.User, chatID int64, data repo.ConversationData) error {
	cart, err := e.repo.EnsureCart(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("ensure cart: %w", err)
	}
	_, err = e.pipeline.Finalize(ctx, user, cart, user.ConversationState, data)
	switch {
	case errors.Is(err, repo.ErrEmptyCart):
		return e.sender.SendMessage(ctx, chatID, "🛒 Keranjangmu kosong, pesanan tidak dibuat. Mulai lagi dari /menu ya.", nil)
	case errors.Is(err, repo.ErrConversationConflict):
		// Duplicate delivery of the finalizing input; the first one won.
		return nil
	case err != nil:
		e.metrics.Errors.WithLabelValues("convo").Inc()
		_ = e.sender.SendMessage(ctx, chatID, "😔 Maaf, terjadi kesalahan saat membuat pesanan. Coba lagi sebentar lagi.", nil)
		return fmt.Errorf("finalize checkout: %w", err)
	}
	return nil
}

func (e *Engine) handleCallback(ctx context.Context, cq *tg.CallbackQuery) error {
	user, err := e.repo.UpsertUserByTelegramID(ctx, repo.UserProfile{
		TelegramID: cq.From.ID,
		Username:   cq.From.Username,
		FirstName:  cq.From.FirstName,
		LastName:   cq.From.LastName,
	})
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	chatID := cq.From.ID
	if cq.Message != nil {
		chatID = cq.Message.Chat.ID
	}

	toast, err := e.dispatchCallback(ctx, user, chatID, ParseCommand(cq.Data))
	if ackErr := e.sender.AnswerCallback(ctx, cq.ID, toast); ackErr != nil {
		e.logger.Warn("answer callback", "error", ackErr)
	}
	return err
}

func (e *Engine) dispatchCallback(ctx context.Context, user *repo.User, chatID int64, cmd Command) (string, error) {
	switch cmd.Kind {
	case KindNoop:
		return "", nil

	case KindMenu:
		return "", e.sendCategories(ctx, chatID)

	case KindCategory:
		return "", e.sendCategoryItems(ctx, chatID, cmd.ID)

	case KindAdd:
		item, err := e.repo.GetMenuItem(ctx, cmd.ID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return "Menu tidak ditemukan 😔", nil
			}
			return "", err
		}
		if !item.IsAvailable {
			return "Menu sedang habis 😔", nil
		}
		cart, err := e.repo.EnsureCart(ctx, user.ID)
		if err != nil {
			return "", err
		}
		qty, err := e.repo.AddOrIncrementItem(ctx, cart.ID, item.ID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ %s (x%d)", item.Name, qty), nil

	case KindCartView:
		return "", e.sendCart(ctx, user, chatID)

	case KindCartClear:
		cart, err := e.repo.EnsureCart(ctx, user.ID)
		if err != nil {
			return "", err
		}
		if err := e.repo.ClearCart(ctx, cart.ID); err != nil {
			return "", err
		}
		return "Keranjang dikosongkan", e.sendCart(ctx, user, chatID)

	case KindCartIncrease, KindCartDecrease, KindCartRemove:
		var err error
		switch cmd.Kind {
		case KindCartIncrease:
			err = e.repo.IncreaseItem(ctx, cmd.ID)
		case KindCartDecrease:
			err = e.repo.DecreaseItem(ctx, cmd.ID)
		default:
			err = e.repo.RemoveItem(ctx, cmd.ID)
		}
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return "Item sudah tidak ada di keranjang", e.sendCart(ctx, user, chatID)
			}
			return "", err
		}
		return "", e.sendCart(ctx, user, chatID)

	case KindCheckoutStart:
		return e.startCheckout(ctx, user, chatID)

	case KindCheckoutSkipNotes:
		if user.ConversationState != repo.StateCheckoutNotes {
			return "Tidak ada checkout yang menunggu catatan", nil
		}
		data := user.ConversationData
		data.Notes = ""
		return "", e.finalize(ctx, user, chatID, data)
	}
	return "Perintah tidak dikenal", nil
}

// startCheckout validates the cart and opens the address step.
func (e *Engine) startCheckout(ctx context.Context, user *repo.User, chatID int64) (string, error) {
	cart, err := e.repo.EnsureCart(ctx, user.ID)
	if err != nil {
		return "", err
	}
	lines, err := e.repo.ListCartLines(ctx, cart.ID)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "Keranjang masih kosong", e.sender.SendMessage(ctx, chatID, "🛒 Keranjangmu kosong. Pilih menu dulu ya: /menu", nil)
	}

	err = e.repo.SetConversationState(ctx, user.ID, repo.StateNone, repo.StateCheckoutAddress, repo.ConversationData{})
	if errors.Is(err, repo.ErrConversationConflict) {
		return "Checkout sudah berjalan", e.sender.SendMessage(ctx, chatID, "Checkout sedang berjalan. Lanjutkan menjawab pertanyaan di atas, atau /cancel untuk membatalkan.", nil)
	}
	if err != nil {
		return "", fmt.Errorf("start checkout: %w", err)
	}
	user.ConversationState = repo.StateCheckoutAddress
	user.ConversationData = repo.ConversationData{}
	return "", e.sender.SendMessage(ctx, chatID, askAddressText(), nil)
}

func (e *Engine) sendCart(ctx context.Context, user *repo.User, chatID int64) error {
	cart, err := e.repo.EnsureCart(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("ensure cart: %w", err)
	}
	lines, err := e.repo.ListCartLines(ctx, cart.ID)
	if err != nil {
		return fmt.Errorf("list cart lines: %w", err)
	}
	text, kb := cartMessage(lines)
	return e.sender.SendMessage(ctx, chatID, text, kb)
}

func (e *Engine) sendCategories(ctx context.Context, chatID int64) error {
	cats, err := e.loadCategories(ctx)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	text, kb := categoriesMessage(cats)
	return e.sender.SendMessage(ctx, chatID, text, kb)
}

func (e *Engine) sendCategoryItems(ctx context.Context, chatID int64, categoryID string) error {
	view, err := e.loadCategoryItems(ctx, categoryID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return e.sendCategories(ctx, chatID)
		}
		return fmt.Errorf("load category items: %w", err)
	}
	text, kb := itemsMessage(&view.Category, view.Items)
	return e.sender.SendMessage(ctx, chatID, text, kb)
}

// loadCategories reads the category list through the cache. Concurrent cache
// misses collapse into one database read.
func (e *Engine) loadCategories(ctx context.Context) ([]repo.Category, error) {
	var cached []repo.Category
	if found, err := e.cache.GetJSON(ctx, cacheKeyCategories, &cached); err != nil {
		e.logger.Warn("menu cache read", "error", err)
	} else if found {
		return cached, nil
	}

	v, err, _ := e.sf.Do(cacheKeyCategories, func() (any, error) {
		cats, err := e.repo.ListActiveCategories(ctx)
		if err != nil {
			return nil, err
		}
		if err := e.cache.SetJSON(ctx, cacheKeyCategories, cats, e.menuTTL); err != nil {
			e.logger.Warn("menu cache write", "error", err)
		}
		return cats, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]repo.Category), nil
}

type categoryView struct {
	Category repo.Category   `json:"category"`
	Items    []repo.MenuItem `json:"items"`
}

func (e *Engine) loadCategoryItems(ctx context.Context, categoryID string) (*categoryView, error) {
	key := cacheKeyItems + categoryID
	var cached categoryView
	if found, err := e.cache.GetJSON(ctx, key, &cached); err != nil {
		e.logger.Warn("menu cache read", "error", err)
	} else if found {
		return &cached, nil
	}

	v, err, _ := e.sf.Do(key, func() (any, error) {
		cat, err := e.repo.GetCategory(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		items, err := e.repo.ListAvailableItems(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		view := &categoryView{Category: *cat, Items: items}
		if err := e.cache.SetJSON(ctx, key, view, e.menuTTL); err != nil {
			e.logger.Warn("menu cache write", "error", err)
		}
		return view, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*categoryView), nil
}

// NormalizePhone strips formatting from a phone number, keeping digits and a
// leading plus. It requires at least 10 digits.
func NormalizePhone(raw string) (string, bool) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	phone := b.String()
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < 10 {
		return "", false
	}
	return phone, true
}
