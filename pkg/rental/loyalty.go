package rental

import (
	"context"

	"github.com/shopspring/decimal"
)

// DiscountResult reports the outcome of a loyalty point redemption.
type DiscountResult struct {
	NewTotalPrice   decimal.Decimal
	VoucherFee      decimal.Decimal
	RemainingPoints int64
}

// ApplyDiscount redeems loyalty points against a pending booking at one
// peso per point. Reapplying replaces the earlier discount instead of
// stacking: the prior redemption is reversed in the ledger before the new
// one is spent. The total price is floored at zero.
func (service *Service) ApplyDiscount(ctx context.Context, bookingID int64, pointsToUse Points) (DiscountResult, error) {
	var result DiscountResult
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		booking, err := transactionStore.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking.Status != BookingStatusPending {
			return ErrInvalidTransition
		}
		user, err := transactionStore.GetUserForUpdate(ctx, booking.UserID)
		if err != nil {
			return err
		}
		balance, err := transactionStore.SumLoyaltyPoints(ctx, user.ID)
		if err != nil {
			return err
		}
		now := service.nowFn()
		undiscounted := booking.TotalPrice.Add(booking.VoucherFee)
		if booking.VoucherFee.IsPositive() {
			priorPoints := booking.VoucherFee.IntPart()
			reversal := LoyaltyEntry{
				UserID:    user.ID,
				Type:      LoyaltyEntryReverseRedeem,
				Points:    priorPoints,
				BookingID: &booking.ID,
				Metadata:  `{"reason":"discount_replaced"}`,
				CreatedAt: now,
			}
			if err := transactionStore.AppendLoyaltyEntry(ctx, &reversal); err != nil {
				return err
			}
			balance += priorPoints
		}
		if pointsToUse.Int64() > balance {
			return ErrInsufficientPoints
		}
		redemption := LoyaltyEntry{
			UserID:    user.ID,
			Type:      LoyaltyEntryRedeem,
			Points:    -pointsToUse.Int64(),
			BookingID: &booking.ID,
			Metadata:  `{"reason":"booking_discount"}`,
			CreatedAt: now,
		}
		if err := transactionStore.AppendLoyaltyEntry(ctx, &redemption); err != nil {
			return err
		}
		balance -= pointsToUse.Int64()

		newTotalPrice := undiscounted.Sub(pointsToUse.Decimal())
		if newTotalPrice.IsNegative() {
			newTotalPrice = decimal.Zero
		}
		if err := transactionStore.UpdateBookingDiscount(ctx, bookingID, newTotalPrice, pointsToUse.Decimal()); err != nil {
			return err
		}
		if err := transactionStore.UpdateUserLoyalty(ctx, user.ID, user.TotalBookings, balance); err != nil {
			return err
		}
		result = DiscountResult{
			NewTotalPrice:   newTotalPrice,
			VoucherFee:      pointsToUse.Decimal(),
			RemainingPoints: balance,
		}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationApplyDiscount,
		BookingID: bookingID,
		Points:    pointsToUse.Int64(),
		Error:     operationError,
	})
	if operationError != nil {
		return DiscountResult{}, operationError
	}
	return result, nil
}

// LoyaltySummary returns the cached loyalty counters for a user, creating
// the row on first sight of the subject.
func (service *Service) LoyaltySummary(ctx context.Context, userID int64) (User, error) {
	return service.store.GetOrCreateUser(ctx, userID)
}

// LoyaltyHistory lists the most recent loyalty ledger entries for a user.
func (service *Service) LoyaltyHistory(ctx context.Context, userID int64, limit int) ([]LoyaltyEntry, error) {
	return service.store.ListLoyaltyEntries(ctx, userID, limit)
}

// accrueLoyalty runs inside the approval transaction. The milestone
// target is floor(approved/25)*100; only the delta between the target and
// points already granted is appended, so redeemed points are never
// re-granted. The cached user counters are refreshed from the fold.
func (service *Service) accrueLoyalty(ctx context.Context, transactionStore Store, userID int64, bookingID int64) error {
	if _, err := transactionStore.GetUserForUpdate(ctx, userID); err != nil {
		return err
	}
	approvedCount, err := transactionStore.CountApprovedBookings(ctx, userID)
	if err != nil {
		return err
	}
	milestoneTarget := approvedCount / milestoneBookings * milestonePointsPerBlock
	grantedSoFar, err := transactionStore.SumLoyaltyGrants(ctx, userID)
	if err != nil {
		return err
	}
	if milestoneTarget > grantedSoFar {
		grant := LoyaltyEntry{
			UserID:    userID,
			Type:      LoyaltyEntryGrant,
			Points:    milestoneTarget - grantedSoFar,
			BookingID: &bookingID,
			Metadata:  `{"reason":"milestone"}`,
			CreatedAt: service.nowFn(),
		}
		if err := transactionStore.AppendLoyaltyEntry(ctx, &grant); err != nil {
			return err
		}
	}
	balance, err := transactionStore.SumLoyaltyPoints(ctx, userID)
	if err != nil {
		return err
	}
	return transactionStore.UpdateUserLoyalty(ctx, userID, approvedCount, balance)
}
