package repo

import (
	"context"
	"io/fs"
)

// Repository defines the interface for data persistence. Two implementations
// exist: Postgres (pgx) for deployments and SQLite for local single-binary
// runs.
type Repository interface {
	// Lifecycle
	Close()
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context, filesystem fs.FS) error

	// Users and conversation state
	UpsertUserByTelegramID(ctx context.Context, profile UserProfile) (*User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	// SetConversationState advances state+data atomically, guarded by the
	// expected current state. It returns ErrConversationConflict when the
	// stored state differs from the expectation.
	SetConversationState(ctx context.Context, userID string, from, to ConversationState, data ConversationData) error

	// Menu (read-only projections maintained by the admin surface)
	ListActiveCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id string) (*Category, error)
	ListAvailableItems(ctx context.Context, categoryID string) ([]MenuItem, error)
	GetMenuItem(ctx context.Context, id string) (*MenuItem, error)

	// Cart
	EnsureCart(ctx context.Context, userID string) (*Cart, error)
	ListCartLines(ctx context.Context, cartID string) ([]CartLine, error)
	AddOrIncrementItem(ctx context.Context, cartID, menuItemID string) (int, error)
	IncreaseItem(ctx context.Context, lineID string) error
	DecreaseItem(ctx context.Context, lineID string) error
	RemoveItem(ctx context.Context, lineID string) error
	ClearCart(ctx context.Context, cartID string) error

	// Orders
	FinalizeOrder(ctx context.Context, in FinalizeInput) (*Order, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListRecentOrdersByUser(ctx context.Context, userID string, limit int) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status OrderStatus) (*Order, error)

	// Payments
	InsertPayment(ctx context.Context, p Payment) (*Payment, error)
	GetPaymentByTransactionID(ctx context.Context, transactionID string) (*Payment, error)
	ApplyPaymentStatus(ctx context.Context, upd StatusUpdate) (*StatusApplication, error)
	InsertPaymentEvent(ctx context.Context, ev PaymentEvent) error
}
