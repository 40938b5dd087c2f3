package repo

import "errors"

var (
	// ErrNotFound signals the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmptyCart signals a finalize attempt on a cart with no lines.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrConversationConflict signals a compare-and-swap on the user's
	// conversation state found a different state, typically because a
	// duplicate delivery of the same input already advanced it.
	ErrConversationConflict = errors.New("conversation state conflict")

	// ErrDuplicateOrderNumber signals an order number collision; the caller
	// regenerates and retries the finalize transaction.
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
)
