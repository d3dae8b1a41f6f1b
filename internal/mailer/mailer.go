// Package mailer delivers booking lifecycle notifications. The log mailer
// stands in for a real mail provider and records what would have been sent.
package mailer

import (
	"context"

	"github.com/verabelle/rental/pkg/rental"
	"go.uber.org/zap"
)

// LogMailer implements rental.Notifier by logging each notification.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer returns a mailer that writes notifications to the logger.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (mailer *LogMailer) NotifyBookingCreated(_ context.Context, booking rental.Booking) {
	mailer.notify("booking created", booking)
}

func (mailer *LogMailer) NotifyBookingApproved(_ context.Context, booking rental.Booking) {
	mailer.notify("booking approved", booking)
}

func (mailer *LogMailer) NotifyBookingCanceled(_ context.Context, booking rental.Booking) {
	mailer.notify("booking canceled", booking)
}

func (mailer *LogMailer) notify(event string, booking rental.Booking) {
	mailer.logger.Info(event,
		zap.Int64("booking_id", booking.ID),
		zap.String("reference", booking.Reference),
		zap.Int64("user_id", booking.UserID),
		zap.Int64("product_id", booking.ProductID),
		zap.String("status", booking.Status.String()),
		zap.String("total_price", booking.TotalPrice.StringFixed(2)),
	)
}
