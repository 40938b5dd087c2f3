// Package repotest provides a function-field mock of repo.Repository for
// unit tests. Methods without a configured function fail the test contract
// by returning repo.ErrNotFound or zero values.
package repotest

import (
	"context"
	"io/fs"

	"bejofood/internal/repo"
)

// Mock implements repo.Repository via optional function fields.
type Mock struct {
	CloseFn         func()
	PingFn          func(ctx context.Context) error
	RunMigrationsFn func(ctx context.Context, filesystem fs.FS) error

	UpsertUserByTelegramIDFn func(ctx context.Context, profile repo.UserProfile) (*repo.User, error)
	GetUserByTelegramIDFn    func(ctx context.Context, telegramID int64) (*repo.User, error)
	GetUserByIDFn            func(ctx context.Context, id string) (*repo.User, error)
	SetConversationStateFn   func(ctx context.Context, userID string, from, to repo.ConversationState, data repo.ConversationData) error

	ListActiveCategoriesFn func(ctx context.Context) ([]repo.Category, error)
	GetCategoryFn          func(ctx context.Context, id string) (*repo.Category, error)
	ListAvailableItemsFn   func(ctx context.Context, categoryID string) ([]repo.MenuItem, error)
	GetMenuItemFn          func(ctx context.Context, id string) (*repo.MenuItem, error)

	EnsureCartFn         func(ctx context.Context, userID string) (*repo.Cart, error)
	ListCartLinesFn      func(ctx context.Context, cartID string) ([]repo.CartLine, error)
	AddOrIncrementItemFn func(ctx context.Context, cartID, menuItemID string) (int, error)
	IncreaseItemFn       func(ctx context.Context, lineID string) error
	DecreaseItemFn       func(ctx context.Context, lineID string) error
	RemoveItemFn         func(ctx context.Context, lineID string) error
	ClearCartFn          func(ctx context.Context, cartID string) error

	FinalizeOrderFn          func(ctx context.Context, in repo.FinalizeInput) (*repo.Order, error)
	GetOrderFn               func(ctx context.Context, id string) (*repo.Order, error)
	ListRecentOrdersByUserFn func(ctx context.Context, userID string, limit int) ([]repo.Order, error)
	UpdateOrderStatusFn      func(ctx context.Context, orderID string, status repo.OrderStatus) (*repo.Order, error)

	InsertPaymentFn             func(ctx context.Context, p repo.Payment) (*repo.Payment, error)
	GetPaymentByTransactionIDFn func(ctx context.Context, transactionID string) (*repo.Payment, error)
	ApplyPaymentStatusFn        func(ctx context.Context, upd repo.StatusUpdate) (*repo.StatusApplication, error)
	InsertPaymentEventFn        func(ctx context.Context, ev repo.PaymentEvent) error
}

var _ repo.Repository = (*Mock)(nil)

func (m *Mock) Close() {
	if m.CloseFn != nil {
		m.CloseFn()
	}
}

func (m *Mock) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn(ctx)
	}
	return nil
}

func (m *Mock) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	if m.RunMigrationsFn != nil {
		return m.RunMigrationsFn(ctx, filesystem)
	}
	return nil
}

func (m *Mock) UpsertUserByTelegramID(ctx context.Context, profile repo.UserProfile) (*repo.User, error) {
	if m.UpsertUserByTelegramIDFn != nil {
		return m.UpsertUserByTelegramIDFn(ctx, profile)
	}
	return nil, repo.ErrNotFound
}

func (m *Mock) GetUserByTelegramID(ctx context.Context, telegramID int64) (*repo.User, error) {
	if m.GetUserByTelegramIDFn != nil {
		return m.GetUserByTelegramIDFn(ctx, telegramID)
	}
	return nil, repo.ErrNotFound
}

func (m *Mock) GetUserByID(ctx context.Context, id string) (*repo.User, error) {
	if m.GetUserByIDFn != nil {
		return m.GetUserByIDFn(ctx, id)
	}
	return nil, repo.ErrNotFound
}

func (m *Mock) SetConversationState(ctx context.Context, userID string, from, to repo.ConversationState, data repo.ConversationData) error {
	if m.SetConversationStateFn != nil {
		return m.SetConversationStateFn(ctx, userID, from, to, data)
	}
	return nil
}

func (m *Mock) ListActiveCategories(ctx context.Context) ([]repo.Category, error) {
	if m.ListActiveCategoriesFn != nil {
		return m.ListActiveCategoriesFn(ctx)
	}
	return nil, nil
}

func (m *Mock) GetCategory(ctx context.Context, id string) (*repo.Category, error) {
	if m.GetCategoryFn != nil {
		return m.GetCategoryFn(ctx, id)
	}
	return nil, repo.ErrNotFound
}

func (m *Mock) ListAvailableItems(ctx context.Context, categoryID string) ([]repo.MenuItem, error) {
	if m.ListAvailableItemsFn != nil {
		return m.ListAvailableItemsFn(ctx, categoryID)
	}
	return nil, nil
}

func (m *Mock) GetMenuItem(ctx context.Context, id string) (*repo.MenuItem, error) {
	if m.GetMenuItemFn != nil {
		return m.GetMenuItemFn(ctx, id)
	}
	return nil, repo.ErrNotFound
}

func (m *Mock) EnsureCart(ctx context.Context, userID string) (*repo.Cart, error) {
	if m.EnsureCartFn != nil {
		return m.EnsureCartFn(ctx, userID)
	}
	return &repo.Cart{ID: "cart-1", UserID: userID}, nil
}

func (m *Mock) ListCartLines(ctx context.Context, cartID string) ([]repo.CartLine, error) {
	if m.ListCartLinesFn != nil {
		return m.ListCartLinesFn(ctx, cartID)
	}
	return nil, nil
}

func (m *Mock) AddOrIncrementItem(ctx context.Context, cartID, menuItemID string) (int, error) {
	if m.AddOrIncrementItemFn != nil {
		return m.AddOrIncrementItemFn(ctx, cartID, menuItemID)
	}
	return 1, nil
}

func (m *Mock) IncreaseItem(ctx context.Context, lineID string) error {
	if m.IncreaseItemFn != nil {
		return m.IncreaseItemFn(ctx, lineID)
	}
	return nil
}

func (m *Mock) DecreaseItem(ctx context.Context, lineID string) error {
	if m.DecreaseItemFn != nil {
		return m.DecreaseItemFn(ctx, lineID)
	}
	return nil
}

func (m *Mock) RemoveItem(ctx context.Context, lineID string) error {
	if m.RemoveItemFn != nil {
		return m.RemoveItemFn(ctx, lineID)
	}
	return nil
}

func (m *Mock) ClearCart(ctx context.Context, cartID string) error {
	if m.ClearCartFn != nil {
		return m.ClearCartFn(ctx, cartID)
	}
	return nil
}

func (m *Mock) FinalizeOrder(ctx context.Context, in repo.FinalizeInput) (*repo.Order, error) {
	if m.FinalizeOrderFn != nil {
		return m.FinalizeOrderFn(ctx, in)
	}
	return nil, repo.ErrEmptyCart
}

func (m *Mock) GetOrder(ctx context.Context, id string) (*repo.Order, error) {
	if m.GetOrderFn != nil {
		return m.GetOrderFn(ctx, id)
	}
	return nil, repo.ErrNotFound
}

func (m *Mock) ListRecentOrdersByUser(ctx context.Context, userID string, limit int) ([]repo.Order, error) {
	if m.ListRecentOrdersByUserFn != nil {
		return m.ListRecentOrdersByUserFn(ctx, userID, limit)
	}
	return nil, nil
}

func (m *Mock) UpdateOrderStatus(ctx context.Context, orderID string, status repo.OrderStatus) (*repo.Order, error) {
	if m.UpdateOrderStatusFn != nil {
		return m.UpdateOrderStatusFn(ctx, orderID, status)
	}
	return nil, repo.ErrNotFound
}

func (m *Mock) InsertPayment(ctx context.Context, p repo.Payment) (*repo.Payment, error) {
	if m.InsertPaymentFn != nil {
		return m.InsertPaymentFn(ctx, p)
	}
	p.ID = "payment-1"
	return &p, nil
}

func (m *Mock) GetPaymentByTransactionID(ctx context.Context, transactionID string) (*repo.Payment, error) {
	if m.GetPaymentByTransactionIDFn != nil {
		return m.GetPaymentByTransactionIDFn(ctx, transactionID)
	}
	return nil, repo.ErrNotFound
}

func (m *Mock) ApplyPaymentStatus(ctx context.Context, upd repo.StatusUpdate) (*repo.StatusApplication, error) {
	if m.ApplyPaymentStatusFn != nil {
		return m.ApplyPaymentStatusFn(ctx, upd)
	}
	return nil, repo.ErrNotFound
}

func (m *Mock) InsertPaymentEvent(ctx context.Context, ev repo.PaymentEvent) error {
	if m.InsertPaymentEventFn != nil {
		return m.InsertPaymentEventFn(ctx, ev)
	}
	return nil
}
