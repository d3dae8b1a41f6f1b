package rental

import "context"

// Notifier receives booking lifecycle events after they commit. Delivery
// is best-effort: the service invokes implementations on their own
// goroutine and never lets them block or fail a transaction.
type Notifier interface {
	NotifyBookingCreated(ctx context.Context, booking Booking)
	NotifyBookingApproved(ctx context.Context, booking Booking)
	NotifyBookingCanceled(ctx context.Context, booking Booking)
}
