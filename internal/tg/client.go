package tg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"bejofood/internal/metrics"
)

const defaultAPIBase = "https://api.telegram.org"

// Client talks to the Telegram Bot API over HTTPS. All sends use HTML parse
// mode because the rendered texts carry <b> and <code> tags.
type Client struct {
	apiBase string
	token   string
	httpc   *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// ClientOption customizes the client.
type ClientOption func(*Client)

// WithAPIBase overrides the API host, used by tests.
func WithAPIBase(base string) ClientOption {
	return func(c *Client) { c.apiBase = base }
}

// NewClient builds a Telegram Bot API client.
func NewClient(token string, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		apiBase: defaultAPIBase,
		token:   token,
		httpc:   &http.Client{Timeout: timeout},
		logger:  logger.With("component", "telegram_client"),
		metrics: m,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// SendMessage sends an HTML-formatted text, optionally with an inline
// keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, keyboard *InlineKeyboard) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if keyboard != nil {
		payload["reply_markup"] = keyboard
	}
	return c.call(ctx, "sendMessage", payload, nil)
}

// SendPhoto sends a photo by URL with an HTML caption.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"photo":      photoURL,
		"caption":    caption,
		"parse_mode": "HTML",
	}
	return c.call(ctx, "sendPhoto", payload, nil)
}

// AnswerCallback acknowledges a callback query so the client stops showing
// the loading spinner. Text, when set, is shown as a toast.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	payload := map[string]any{
		"callback_query_id": callbackID,
	}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

// SetWebhook registers the webhook URL with the Bot API. The secret token is
// echoed back by Telegram on every delivery and verified by the handler.
func (c *Client) SetWebhook(ctx context.Context, webhookURL, secret string) error {
	payload := map[string]any{
		"url":             webhookURL,
		"allowed_updates": []string{"message", "callback_query"},
	}
	if secret != "" {
		payload["secret_token"] = secret
	}
	return c.call(ctx, "setWebhook", payload, nil)
}

func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.metrics.TelegramOutgoing.WithLabelValues(method).Inc()
		c.metrics.Errors.WithLabelValues("telegram_client").Inc()
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()
	c.metrics.TelegramOutgoing.WithLabelValues(method).Inc()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var api apiResponse
	if err := json.Unmarshal(raw, &api); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !api.OK {
		c.metrics.Errors.WithLabelValues("telegram_client").Inc()
		return fmt.Errorf("%s failed: %d %s", method, api.ErrorCode, api.Description)
	}
	if result != nil && len(api.Result) > 0 {
		if err := json.Unmarshal(api.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}
