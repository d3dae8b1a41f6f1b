package rental

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Date is a calendar date; time-of-day and zone are discarded on
// construction so comparisons are pure calendar comparisons.
type Date struct {
	value time.Time
}

// NewDate truncates a timestamp to its UTC calendar date.
func NewDate(value time.Time) Date {
	year, month, day := value.UTC().Date()
	return Date{value: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(raw string) (Date, error) {
	parsed, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return NewDate(parsed), nil
}

// Time returns the date as midnight UTC.
func (date Date) Time() time.Time {
	return date.value
}

// String formats the date as YYYY-MM-DD.
func (date Date) String() string {
	return date.value.Format(dateLayout)
}

// IsZero reports whether the date is unset.
func (date Date) IsZero() bool {
	return date.value.IsZero()
}

// Before reports whether the date falls before other.
func (date Date) Before(other Date) bool {
	return date.value.Before(other.value)
}

// After reports whether the date falls after other.
func (date Date) After(other Date) bool {
	return date.value.After(other.value)
}

// Equal reports whether two dates are the same calendar day.
func (date Date) Equal(other Date) bool {
	return date.value.Equal(other.value)
}

// AddDays returns the date shifted by a number of whole days.
func (date Date) AddDays(days int) Date {
	return Date{value: date.value.AddDate(0, 0, days)}
}

// DaysUntil returns the whole-day distance to other (negative when other
// is earlier).
func (date Date) DaysUntil(other Date) int {
	return int(other.value.Sub(date.value) / (24 * time.Hour))
}

// DateRange is an inclusive pair of calendar dates.
type DateRange struct {
	start Date
	end   Date
}

// NewDateRange builds a rental range; the end date must be strictly after
// the start date.
func NewDateRange(start Date, end Date) (DateRange, error) {
	if start.IsZero() || end.IsZero() {
		return DateRange{}, fmt.Errorf("%w: missing bound", ErrInvalidDateRange)
	}
	if !end.After(start) {
		return DateRange{}, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidDateRange, end, start)
	}
	return DateRange{start: start, end: end}, nil
}

// NewDateSpan builds an inclusive span; unlike NewDateRange a single-day
// span (start == end) is allowed. Used for availability windows.
func NewDateSpan(start Date, end Date) (DateRange, error) {
	if start.IsZero() || end.IsZero() {
		return DateRange{}, fmt.Errorf("%w: missing bound", ErrInvalidDateRange)
	}
	if end.Before(start) {
		return DateRange{}, fmt.Errorf("%w: end %s is before start %s", ErrInvalidDateRange, end, start)
	}
	return DateRange{start: start, end: end}, nil
}

// Start returns the first day of the range.
func (dateRange DateRange) Start() Date {
	return dateRange.start
}

// End returns the last day of the range.
func (dateRange DateRange) End() Date {
	return dateRange.end
}

// Days returns the whole-day duration (end minus start).
func (dateRange DateRange) Days() int {
	return dateRange.start.DaysUntil(dateRange.end)
}

// Overlaps reports whether two inclusive ranges share at least one day.
func (dateRange DateRange) Overlaps(other DateRange) bool {
	return !dateRange.end.Before(other.start) && !other.end.Before(dateRange.start)
}

// String formats the range as "start..end".
func (dateRange DateRange) String() string {
	return dateRange.start.String() + ".." + dateRange.end.String()
}

// Points is a positive loyalty point amount requested for redemption.
type Points int64

// NewPoints validates a point amount and ensures it is strictly positive.
func NewPoints(raw int64) (Points, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidPoints)
	}
	return Points(raw), nil
}

// Int64 returns the raw point amount.
func (points Points) Int64() int64 {
	return int64(points)
}

// Decimal returns the peso value of the points (1 point = 1 peso).
func (points Points) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(points))
}

// Quantity is a positive stock-adjustment amount.
type Quantity int64

// NewQuantity validates a quantity and ensures it is strictly positive.
func NewQuantity(raw int64) (Quantity, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidQuantity)
	}
	return Quantity(raw), nil
}

// Int64 returns the raw quantity.
func (quantity Quantity) Int64() int64 {
	return int64(quantity)
}

// NewPrice validates a non-negative monetary amount.
func NewPrice(raw decimal.Decimal) (decimal.Decimal, error) {
	if raw.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: must not be negative", ErrInvalidPrice)
	}
	return raw, nil
}

// BookingStatus defines the booking lifecycle.
type BookingStatus string

const (
	BookingStatusPending  BookingStatus = "pending"
	BookingStatusApproved BookingStatus = "approved"
	BookingStatusCanceled BookingStatus = "canceled"
)

// ParseBookingStatus validates a raw status string.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	switch BookingStatus(strings.TrimSpace(strings.ToLower(raw))) {
	case BookingStatusPending:
		return BookingStatusPending, nil
	case BookingStatusApproved:
		return BookingStatusApproved, nil
	case BookingStatusCanceled:
		return BookingStatusCanceled, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBookingStatus, raw)
}

// String returns the stored status value.
func (status BookingStatus) String() string {
	return string(status)
}

// LoyaltyEntryType enumerates loyalty ledger entry kinds.
type LoyaltyEntryType string

const (
	LoyaltyEntryGrant         LoyaltyEntryType = "grant"
	LoyaltyEntryRedeem        LoyaltyEntryType = "redeem"
	LoyaltyEntryReverseRedeem LoyaltyEntryType = "reverse_redeem"
)

// ParseLoyaltyEntryType validates a raw entry type string.
func ParseLoyaltyEntryType(raw string) (LoyaltyEntryType, error) {
	switch LoyaltyEntryType(raw) {
	case LoyaltyEntryGrant:
		return LoyaltyEntryGrant, nil
	case LoyaltyEntryRedeem:
		return LoyaltyEntryRedeem, nil
	case LoyaltyEntryReverseRedeem:
		return LoyaltyEntryReverseRedeem, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLoyaltyEntryType, raw)
}

// String returns the stored entry type value.
func (entryType LoyaltyEntryType) String() string {
	return string(entryType)
}

// Product is a rentable catalog item.
type Product struct {
	ID          int64
	Name        string
	Price       decimal.Decimal
	Stock       int64
	Category    string
	Description string
	Window      *DateRange
	Hidden      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Booking is one reservation of a product by a user for a date range.
type Booking struct {
	ID         int64
	Reference  string
	UserID     int64
	ProductID  int64
	Dates      DateRange
	AddedPrice decimal.Decimal
	TotalPrice decimal.Decimal
	VoucherFee decimal.Decimal
	ReceiptRef string
	Status     BookingStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// User is the loyalty-relevant subset of an account. TotalBookings and
// LoyaltyPoints are cached derivations of the loyalty ledger fold.
type User struct {
	ID            int64
	TotalBookings int64
	LoyaltyPoints int64
	CreatedAt     time.Time
}

// StockAdjustment is one append-only audit record of a manual stock add.
type StockAdjustment struct {
	ID         int64
	ProductID  int64
	StockAdded int64
	Remarks    string
	CreatedAt  time.Time
}

// LoyaltyEntry is a single immutable line in the loyalty ledger. Points
// carries the signed delta: positive for grants and reversals, negative
// for redemptions.
type LoyaltyEntry struct {
	EntryID   string
	UserID    int64
	Type      LoyaltyEntryType
	Points    int64
	BookingID *int64
	Metadata  string
	CreatedAt time.Time
}
