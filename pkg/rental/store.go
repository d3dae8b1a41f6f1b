package rental

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the persistence contract used by Service. Implementations must
// make the *ForUpdate lookups take row locks so that concurrent approvals
// and cancellations of the same booking serialize at the database.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	GetProduct(ctx context.Context, productID int64) (Product, error)
	GetProductForUpdate(ctx context.Context, productID int64) (Product, error)
	ListProducts(ctx context.Context, includeHidden bool) ([]Product, error)
	ListCategories(ctx context.Context) ([]string, error)
	CreateProduct(ctx context.Context, product *Product) error
	UpdateProduct(ctx context.Context, product Product) error

	// DecrementStock applies a guarded stock -= 1 and reports
	// ErrInsufficientStock when no stock remains.
	DecrementStock(ctx context.Context, productID int64) error
	IncrementStock(ctx context.Context, productID int64, quantity int64) error
	AppendStockAdjustment(ctx context.Context, adjustment *StockAdjustment) error

	// CreateBooking reports ErrReferenceTaken when the generated
	// reference collides with an existing row.
	CreateBooking(ctx context.Context, booking *Booking) error
	GetBooking(ctx context.Context, bookingID int64) (Booking, error)
	GetBookingForUpdate(ctx context.Context, bookingID int64) (Booking, error)
	GetBookingByReference(ctx context.Context, reference string) (Booking, error)
	ListBookings(ctx context.Context) ([]Booking, error)
	ListBookingsForUser(ctx context.Context, userID int64) ([]Booking, error)
	ListApprovedBookingsForProduct(ctx context.Context, productID int64) ([]Booking, error)

	// UpdateBookingStatus applies a guarded status transition and reports
	// ErrInvalidTransition when the row is no longer in the from status.
	UpdateBookingStatus(ctx context.Context, bookingID int64, from BookingStatus, to BookingStatus) error
	UpdateBookingDiscount(ctx context.Context, bookingID int64, totalPrice decimal.Decimal, voucherFee decimal.Decimal) error
	UpdateBookingReceipt(ctx context.Context, bookingID int64, receiptRef string) error
	CountApprovedBookings(ctx context.Context, userID int64) (int64, error)

	GetOrCreateUser(ctx context.Context, userID int64) (User, error)
	GetUserForUpdate(ctx context.Context, userID int64) (User, error)
	UpdateUserLoyalty(ctx context.Context, userID int64, totalBookings int64, loyaltyPoints int64) error

	AppendLoyaltyEntry(ctx context.Context, entry *LoyaltyEntry) error
	// SumLoyaltyPoints folds the signed deltas of every entry.
	SumLoyaltyPoints(ctx context.Context, userID int64) (int64, error)
	// SumLoyaltyGrants folds grant entries only.
	SumLoyaltyGrants(ctx context.Context, userID int64) (int64, error)
	ListLoyaltyEntries(ctx context.Context, userID int64, limit int) ([]LoyaltyEntry, error)
}
