package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bejofood/internal/metrics"
	"bejofood/internal/notify"
	"bejofood/internal/repo"
)

// Server exposes the HTTP surface: webhooks, the dashboard WebSocket, the
// order status API, health, and metrics.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// Config defines HTTP server parameters.
type Config struct {
	ListenAddr string
	// BasePath prefixes every route, e.g. "/bot" behind a shared proxy.
	BasePath string
}

// Deps carries the handlers and collaborators the routes need.
type Deps struct {
	TelegramWebhook http.Handler
	MidtransWebhook http.Handler
	OrdersWS        http.Handler
	Repo            repo.Repository
	Notifier        *notify.Notifier
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
}

// New builds the server with all routes mounted.
func New(cfg Config, deps Deps) *Server {
	logger := deps.Logger.With("component", "httpserver")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Repo.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("POST /webhook/telegram", deps.TelegramWebhook)
	mux.Handle("POST /webhook/midtrans", deps.MidtransWebhook)
	mux.Handle("GET /ws/orders", deps.OrdersWS)
	mux.Handle("PATCH /api/orders/{id}/status", &orderStatusHandler{
		repo:     deps.Repo,
		notifier: deps.Notifier,
		logger:   logger,
		metrics:  deps.Metrics,
	})

	var handler http.Handler = mux
	if bp := strings.Trim(cfg.BasePath, "/"); bp != "" {
		outer := http.NewServeMux()
		outer.Handle("/"+bp+"/", http.StripPrefix("/"+bp, mux))
		handler = outer
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// orderStatusHandler serves the dashboard's manual status updates. A change
// notifies the customer and fans out to dashboard subscribers.
type orderStatusHandler struct {
	repo     repo.Repository
	notifier *notify.Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type statusRequest struct {
	Status string `json:"status"`
}

type statusResponse struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	Total       int64  `json:"total"`
}

func (h *orderStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	status := repo.OrderStatus(req.Status)
	if !repo.ValidOrderStatus(status) {
		writeJSONError(w, http.StatusBadRequest, "unknown status "+req.Status)
		return
	}

	order, err := h.repo.UpdateOrderStatus(r.Context(), orderID, status)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("update order status", "order_id", orderID, "error", err)
		h.metrics.Errors.WithLabelValues("httpserver").Inc()
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.notifyCustomer(r.Context(), order)
	h.notifier.StatusChanged(order)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statusResponse{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		Total:       order.Total,
	})
}

func (h *orderStatusHandler) notifyCustomer(ctx context.Context, order *repo.Order) {
	user, err := h.repo.GetUserByID(ctx, order.UserID)
	if err != nil {
		h.logger.Warn("load order customer", "order_id", order.ID, "error", err)
		return
	}
	h.notifier.SendText(ctx, user.TelegramID, statusChangeText(order))
}

func statusChangeText(order *repo.Order) string {
	switch order.Status {
	case repo.OrderPreparing:
		return fmt.Sprintf("👨‍🍳 Pesanan <code>%s</code> sedang disiapkan!", order.OrderNumber)
	case repo.OrderReady:
		return fmt.Sprintf("📦 Pesanan <code>%s</code> siap dan segera diantar!", order.OrderNumber)
	case repo.OrderCompleted:
		return fmt.Sprintf("🎉 Pesanan <code>%s</code> selesai. Selamat menikmati dan terima kasih!", order.OrderNumber)
	case repo.OrderCancelled:
		return fmt.Sprintf("❌ Pesanan <code>%s</code> dibatalkan. Hubungi admin bila ada pertanyaan.", order.OrderNumber)
	default:
		return fmt.Sprintf("ℹ️ Status pesanan <code>%s</code> sekarang: %s", order.OrderNumber, string(order.Status))
	}
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
