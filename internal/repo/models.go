package repo

import "time"

// ConversationState names a step of a multi-step bot dialogue. The empty
// state means no conversation is active.
type ConversationState string

const (
	StateNone            ConversationState = ""
	StateCheckoutAddress ConversationState = "checkout_address"
	StateCheckoutPhone   ConversationState = "checkout_phone"
	StateCheckoutNotes   ConversationState = "checkout_notes"
)

// ConversationData is the scratch payload collected during checkout. It is
// persisted together with the state and cleared when the state resets.
type ConversationData struct {
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// OrderStatus enumerates the order lifecycle.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderPreparing, OrderReady, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// PaymentStatus mirrors the provider's transaction statuses.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentSettlement PaymentStatus = "settlement"
	PaymentExpire     PaymentStatus = "expire"
	PaymentDeny       PaymentStatus = "deny"
	PaymentCancel     PaymentStatus = "cancel"
)

// IsTerminal reports whether the status is sticky: once reached, no later
// notification may transition the payment again.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentSettlement, PaymentExpire, PaymentDeny, PaymentCancel:
		return true
	}
	return false
}

// User represents the users table row.
type User struct {
	ID                string
	TelegramID        int64
	Username          string
	FirstName         string
	LastName          string
	Phone             string
	ConversationState ConversationState
	ConversationData  ConversationData
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FullName joins first and last name for provider-facing customer details.
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// UserProfile carries data used to upsert a user from an inbound update.
type UserProfile struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}

// Category is a menu category row (read-only in this service).
type Category struct {
	ID        string
	Name      string
	Emoji     string
	SortOrder int
}

// MenuItem is a menu item row (read-only in this service).
type MenuItem struct {
	ID          string
	CategoryID  string
	Name        string
	Description string
	Price       int64
	ImageURL    string
	IsAvailable bool
}

// Cart is the per-user cart row.
type Cart struct {
	ID     string
	UserID string
}

// CartLine is a cart item joined with its current menu data. Price reflects
// the item's live price, not the price at add-to-cart time.
type CartLine struct {
	ID         string
	MenuItemID string
	Name       string
	Price      int64
	Quantity   int
}

// Subtotal is the line total at the current price.
func (l CartLine) Subtotal() int64 {
	return l.Price * int64(l.Quantity)
}

// Order is a finalized, immutable order. Only status and timestamps change
// after creation.
type Order struct {
	ID              string
	UserID          string
	OrderNumber     string
	Status          OrderStatus
	DeliveryAddress string
	Phone           string
	Notes           string
	Total           int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Lines           []OrderLine
}

// OrderLine is a value snapshot of a cart line at finalize time.
type OrderLine struct {
	ID         string
	MenuItemID string
	Name       string
	Price      int64
	Quantity   int
}

// Subtotal is the snapshotted line total.
func (l OrderLine) Subtotal() int64 {
	return l.Price * int64(l.Quantity)
}

// Payment is the QRIS payment record linked 1:1 to an order.
type Payment struct {
	ID            string
	OrderID       string
	TransactionID string
	PaymentType   string
	Status        PaymentStatus
	QRURL         string
	QRString      string
	GrossAmount   int64
	ExpiresAt     *time.Time
	PaidAt        *time.Time
	RawResponse   []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PaymentEvent is an append-only audit record of a provider notification.
type PaymentEvent struct {
	TransactionID     string
	TransactionStatus string
	Applied           bool
	Payload           []byte
}

// FinalizeInput carries everything the finalize transaction needs.
type FinalizeInput struct {
	UserID          string
	CartID          string
	FromState       ConversationState
	OrderNumber     string
	DeliveryAddress string
	Phone           string
	Notes           string
}

// StatusUpdate describes one webhook-driven payment status application.
type StatusUpdate struct {
	TransactionID string
	Status        PaymentStatus
	PaidAt        *time.Time
	RawPayload    []byte
}

// StatusApplication reports the outcome of applying a StatusUpdate.
type StatusApplication struct {
	Applied    bool
	Sticky     bool
	PrevStatus PaymentStatus
	Payment    Payment
	Order      Order
	ChatID     int64
}
