package rental

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Service contains the booking domain logic over a Store.
type Service struct {
	store       Store
	nowFn       func() time.Time
	referenceFn func() string
	logger      OperationLogger
	notifier    Notifier
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, referenceFn: GenerateReference}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// CreateBooking validates the product and dates, prices the rental, and
// persists a pending booking with a fresh reference number. Stock is not
// touched until approval.
func (service *Service) CreateBooking(ctx context.Context, userID int64, productID int64, dates DateRange) (Booking, error) {
	var created Booking
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		product, err := transactionStore.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if product.Hidden {
			return ErrProductNotFound
		}
		approvedBookings, err := transactionStore.ListApprovedBookingsForProduct(ctx, productID)
		if err != nil {
			return err
		}
		if !rangeAvailable(dates, BlockedRanges(product.Window, approvedBookings)) {
			return ErrDatesUnavailable
		}
		if _, err := transactionStore.GetOrCreateUser(ctx, userID); err != nil {
			return err
		}
		totalPrice, err := CalculateTotalPrice(product.Price, dates)
		if err != nil {
			return err
		}
		now := service.nowFn()
		booking := Booking{
			UserID:     userID,
			ProductID:  productID,
			Dates:      dates,
			AddedPrice: AddedPriceFor(dates),
			TotalPrice: totalPrice,
			VoucherFee: decimal.Zero,
			Status:     BookingStatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
			booking.Reference = service.referenceFn()
			err = transactionStore.CreateBooking(ctx, &booking)
			if errors.Is(err, ErrReferenceTaken) {
				continue
			}
			if err != nil {
				return err
			}
			created = booking
			return nil
		}
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationCreateBooking,
		BookingID: created.ID,
		Reference: created.Reference,
		UserID:    userID,
		ProductID: productID,
		Error:     operationError,
	})
	if operationError != nil {
		return Booking{}, operationError
	}
	service.notifyCreated(created)
	return created, nil
}

// UpdateStatus transitions a booking and applies the stock and loyalty
// side effects of the transition inside one transaction.
func (service *Service) UpdateStatus(ctx context.Context, bookingID int64, newStatus BookingStatus) (Booking, error) {
	var updated Booking
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		booking, err := transactionStore.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		switch newStatus {
		case BookingStatusApproved:
			if booking.Status != BookingStatusPending {
				return ErrInvalidTransition
			}
			if err := transactionStore.DecrementStock(ctx, booking.ProductID); err != nil {
				return err
			}
			if err := transactionStore.UpdateBookingStatus(ctx, bookingID, BookingStatusPending, BookingStatusApproved); err != nil {
				return err
			}
			if err := service.accrueLoyalty(ctx, transactionStore, booking.UserID, bookingID); err != nil {
				return err
			}
		case BookingStatusCanceled:
			if booking.Status == BookingStatusCanceled {
				return ErrAlreadyCanceled
			}
			if booking.Status == BookingStatusApproved {
				if err := transactionStore.IncrementStock(ctx, booking.ProductID, 1); err != nil {
					return err
				}
			}
			if err := transactionStore.UpdateBookingStatus(ctx, bookingID, booking.Status, BookingStatusCanceled); err != nil {
				return err
			}
		default:
			return ErrInvalidTransition
		}
		updated, err = transactionStore.GetBooking(ctx, bookingID)
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationUpdateStatus,
		BookingID: bookingID,
		Reference: updated.Reference,
		UserID:    updated.UserID,
		ProductID: updated.ProductID,
		To:        newStatus,
		Error:     operationError,
	})
	if operationError != nil {
		return Booking{}, operationError
	}
	switch newStatus {
	case BookingStatusApproved:
		service.notifyApproved(updated)
	case BookingStatusCanceled:
		service.notifyCanceled(updated)
	}
	return updated, nil
}

// CancelByReference cancels the booking behind a customer-facing
// reference number.
func (service *Service) CancelByReference(ctx context.Context, reference string) (Booking, error) {
	validated, err := ValidateReference(reference)
	if err != nil {
		return Booking{}, err
	}
	booking, err := service.store.GetBookingByReference(ctx, validated)
	if err != nil {
		return Booking{}, err
	}
	return service.UpdateStatus(ctx, booking.ID, BookingStatusCanceled)
}

// AttachReceipt records a payment receipt reference on a booking. Pure
// metadata update with no state-machine effect, allowed in any status.
func (service *Service) AttachReceipt(ctx context.Context, bookingID int64, receiptRef string) (Booking, error) {
	if receiptRef == "" {
		return Booking{}, fmt.Errorf("%w: empty value", ErrInvalidReceipt)
	}
	var updated Booking
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := transactionStore.GetBooking(ctx, bookingID); err != nil {
			return err
		}
		if err := transactionStore.UpdateBookingReceipt(ctx, bookingID, receiptRef); err != nil {
			return err
		}
		var err error
		updated, err = transactionStore.GetBooking(ctx, bookingID)
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationAttachReceipt,
		BookingID: bookingID,
		Error:     operationError,
	})
	if operationError != nil {
		return Booking{}, operationError
	}
	return updated, nil
}

// BookingByReference fetches one booking by its reference number.
func (service *Service) BookingByReference(ctx context.Context, reference string) (Booking, error) {
	validated, err := ValidateReference(reference)
	if err != nil {
		return Booking{}, err
	}
	return service.store.GetBookingByReference(ctx, validated)
}

// BookingByID fetches one booking by its identifier.
func (service *Service) BookingByID(ctx context.Context, bookingID int64) (Booking, error) {
	return service.store.GetBooking(ctx, bookingID)
}

// UserBookings lists the bookings owned by a user, most recent first.
func (service *Service) UserBookings(ctx context.Context, userID int64) ([]Booking, error) {
	return service.store.ListBookingsForUser(ctx, userID)
}

// AllBookings lists every booking for the admin back office.
func (service *Service) AllBookings(ctx context.Context) ([]Booking, error) {
	return service.store.ListBookings(ctx)
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

// Notifications run detached from the request so a slow or failing
// notifier can never block or fail a committed transaction.

func (service *Service) notifyCreated(booking Booking) {
	if service.notifier == nil {
		return
	}
	go service.notifier.NotifyBookingCreated(context.Background(), booking)
}

func (service *Service) notifyApproved(booking Booking) {
	if service.notifier == nil {
		return
	}
	go service.notifier.NotifyBookingApproved(context.Background(), booking)
}

func (service *Service) notifyCanceled(booking Booking) {
	if service.notifier == nil {
		return
	}
	go service.notifier.NotifyBookingCanceled(context.Background(), booking)
}
