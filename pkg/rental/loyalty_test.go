package rental

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

// seedApprovedHistory fills the user's booking history with approved
// bookings on a separate product so availability never interferes.
func seedApprovedHistory(test *testing.T, store *stubStore, userID int64, count int) {
	test.Helper()
	store.addProduct(test, 99, 1000, 1)
	base := mustDate(test, "2024-01-01")
	for index := 0; index < count; index++ {
		start := base.AddDays(index * 3)
		dates, err := NewDateRange(start, start.AddDays(1))
		if err != nil {
			test.Fatalf("seed range %d: %v", index, err)
		}
		store.seedApprovedBooking(test, userID, 99, dates)
	}
}

func TestApprovalGrantsMilestonePoints(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	store.addProduct(test, 1, 1500, 10)
	store.addUser(test, 7)
	seedApprovedHistory(test, store, 7, 24)
	service := mustNewService(test, store)

	booking := mustCreateBooking(test, service, 7, 1, mustRange(test, "2025-06-01", "2025-06-03"))
	mustApprove(test, service, booking.ID)

	if len(store.loyaltyLedger) != 1 {
		test.Fatalf("expected 1 ledger entry, got %d", len(store.loyaltyLedger))
	}
	grant := store.loyaltyLedger[0]
	if grant.Type != LoyaltyEntryGrant || grant.Points != 100 {
		test.Fatalf("expected grant of 100, got %s %d", grant.Type, grant.Points)
	}
	user := store.users[7]
	if user.TotalBookings != 25 {
		test.Fatalf("expected 25 cached bookings, got %d", user.TotalBookings)
	}
	if user.LoyaltyPoints != 100 {
		test.Fatalf("expected 100 cached points, got %d", user.LoyaltyPoints)
	}
}

func TestApprovalBelowMilestoneGrantsNothing(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	store.addProduct(test, 1, 1500, 10)
	store.addUser(test, 7)
	seedApprovedHistory(test, store, 7, 10)
	service := mustNewService(test, store)

	booking := mustCreateBooking(test, service, 7, 1, mustRange(test, "2025-06-01", "2025-06-03"))
	mustApprove(test, service, booking.ID)

	if len(store.loyaltyLedger) != 0 {
		test.Fatalf("expected no grants below the milestone, got %d entries", len(store.loyaltyLedger))
	}
	if store.users[7].TotalBookings != 11 {
		test.Fatalf("expected 11 cached bookings, got %d", store.users[7].TotalBookings)
	}
}

func TestRedeemedPointsAreNotRegranted(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	store.addProduct(test, 1, 1500, 100)
	store.addUser(test, 7)
	seedApprovedHistory(test, store, 7, 24)
	service := mustNewService(test, store)

	milestoneBooking := mustCreateBooking(test, service, 7, 1, mustRange(test, "2025-06-01", "2025-06-03"))
	mustApprove(test, service, milestoneBooking.ID)

	discounted := mustCreateBooking(test, service, 7, 1, mustRange(test, "2025-06-04", "2025-06-06"))
	if _, err := service.ApplyDiscount(context.Background(), discounted.ID, mustPoints(test, 100)); err != nil {
		test.Fatalf("apply discount: %v", err)
	}
	if store.users[7].LoyaltyPoints != 0 {
		test.Fatalf("expected balance 0 after full redemption, got %d", store.users[7].LoyaltyPoints)
	}

	// Approvals 26 through 49 stay inside the first milestone block;
	// redeemed points must not come back.
	mustApprove(test, service, discounted.ID)
	start := mustDate(test, "2025-07-01")
	for index := 0; index < 23; index++ {
		dayStart := start.AddDays(index * 3)
		dates, err := NewDateRange(dayStart, dayStart.AddDays(1))
		if err != nil {
			test.Fatalf("range %d: %v", index, err)
		}
		booking := mustCreateBooking(test, service, 7, 1, dates)
		mustApprove(test, service, booking.ID)
	}
	if store.users[7].TotalBookings != 49 {
		test.Fatalf("expected 49 approved bookings, got %d", store.users[7].TotalBookings)
	}
	if store.users[7].LoyaltyPoints != 0 {
		test.Fatalf("redeemed points were re-granted: balance %d", store.users[7].LoyaltyPoints)
	}

	// The 50th approval crosses the next milestone and grants the
	// delta only.
	fiftieth := mustCreateBooking(test, service, 7, 1, mustRange(test, "2025-10-01", "2025-10-03"))
	mustApprove(test, service, fiftieth.ID)
	if store.users[7].LoyaltyPoints != 100 {
		test.Fatalf("expected balance 100 after second milestone, got %d", store.users[7].LoyaltyPoints)
	}
	granted, err := store.SumLoyaltyGrants(context.Background(), 7)
	if err != nil {
		test.Fatalf("sum grants: %v", err)
	}
	if granted != 200 {
		test.Fatalf("expected 200 granted in total, got %d", granted)
	}
}

func TestApplyDiscountReducesTotalAndRecordsRedemption(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	store.addProduct(test, 1, 1500, 10)
	store.addUser(test, 7)
	store.loyaltyLedger = append(store.loyaltyLedger, LoyaltyEntry{UserID: 7, Type: LoyaltyEntryGrant, Points: 100})
	service := mustNewService(test, store)
	booking := mustCreateBooking(test, service, 7, 1, mustRange(test, "2025-06-01", "2025-06-08"))

	result, err := service.ApplyDiscount(context.Background(), booking.ID, mustPoints(test, 50))
	if err != nil {
		test.Fatalf("apply discount: %v", err)
	}
	if !result.NewTotalPrice.Equal(decimal.NewFromInt(2450)) {
		test.Fatalf("expected new total 2450, got %s", result.NewTotalPrice)
	}
	if !result.VoucherFee.Equal(decimal.NewFromInt(50)) {
		test.Fatalf("expected voucher fee 50, got %s", result.VoucherFee)
	}
	if result.RemainingPoints != 50 {
		test.Fatalf("expected 50 remaining points, got %d", result.RemainingPoints)
	}
	stored := store.mustBooking(test, booking.ID)
	if !stored.TotalPrice.Equal(decimal.NewFromInt(2450)) || !stored.VoucherFee.Equal(decimal.NewFromInt(50)) {
		test.Fatalf("booking not updated: total %s voucher %s", stored.TotalPrice, stored.VoucherFee)
	}
	redemption := store.loyaltyLedger[len(store.loyaltyLedger)-1]
	if redemption.Type != LoyaltyEntryRedeem || redemption.Points != -50 {
		test.Fatalf("expected redeem of -50, got %s %d", redemption.Type, redemption.Points)
	}
}

func TestReapplyDiscountReplacesPriorVoucher(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	store.addProduct(test, 1, 1500, 10)
	store.addUser(test, 7)
	store.loyaltyLedger = append(store.loyaltyLedger, LoyaltyEntry{UserID: 7, Type: LoyaltyEntryGrant, Points: 100})
	service := mustNewService(test, store)
	booking := mustCreateBooking(test, service, 7, 1, mustRange(test, "2025-06-01", "2025-06-08"))

	if _, err := service.ApplyDiscount(context.Background(), booking.ID, mustPoints(test, 50)); err != nil {
		test.Fatalf("first discount: %v", err)
	}
	result, err := service.ApplyDiscount(context.Background(), booking.ID, mustPoints(test, 80))
	if err != nil {
		test.Fatalf("second discount: %v", err)
	}

	// 2500 undiscounted minus the replacement 80, not 50+80 stacked.
	if !result.NewTotalPrice.Equal(decimal.NewFromInt(2420)) {
		test.Fatalf("expected new total 2420, got %s", result.NewTotalPrice)
	}
	if result.RemainingPoints != 20 {
		test.Fatalf("expected 20 remaining points, got %d", result.RemainingPoints)
	}
	tail := store.loyaltyLedger[len(store.loyaltyLedger)-2:]
	if tail[0].Type != LoyaltyEntryReverseRedeem || tail[0].Points != 50 {
		test.Fatalf("expected reverse redeem of 50, got %s %d", tail[0].Type, tail[0].Points)
	}
	if tail[1].Type != LoyaltyEntryRedeem || tail[1].Points != -80 {
		test.Fatalf("expected redeem of -80, got %s %d", tail[1].Type, tail[1].Points)
	}
}

func TestApplyDiscountFloorsTotalAtZero(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	store.addUser(test, 7)
	store.loyaltyLedger = append(store.loyaltyLedger, LoyaltyEntry{UserID: 7, Type: LoyaltyEntryGrant, Points: 500})
	store.bookings[1] = Booking{
		ID:         1,
		Reference:  "CHEAP00001",
		UserID:     7,
		ProductID:  1,
		Dates:      mustRange(test, "2025-06-01", "2025-06-03"),
		TotalPrice: decimal.NewFromInt(60),
		VoucherFee: decimal.Zero,
		Status:     BookingStatusPending,
	}
	service := mustNewService(test, store)

	result, err := service.ApplyDiscount(context.Background(), 1, mustPoints(test, 100))
	if err != nil {
		test.Fatalf("apply discount: %v", err)
	}
	if !result.NewTotalPrice.IsZero() {
		test.Fatalf("expected floored total 0, got %s", result.NewTotalPrice)
	}
	if !result.VoucherFee.Equal(decimal.NewFromInt(100)) {
		test.Fatalf("expected voucher fee 100, got %s", result.VoucherFee)
	}
}

func TestApplyDiscountInsufficientPoints(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	store.addProduct(test, 1, 1500, 10)
	store.addUser(test, 7)
	store.loyaltyLedger = append(store.loyaltyLedger, LoyaltyEntry{UserID: 7, Type: LoyaltyEntryGrant, Points: 30})
	service := mustNewService(test, store)
	booking := mustCreateBooking(test, service, 7, 1, mustRange(test, "2025-06-01", "2025-06-03"))

	_, err := service.ApplyDiscount(context.Background(), booking.ID, mustPoints(test, 31))
	if !errors.Is(err, ErrInsufficientPoints) {
		test.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}
	stored := store.mustBooking(test, booking.ID)
	if !stored.VoucherFee.IsZero() {
		test.Fatalf("failed discount must leave the booking untouched, voucher %s", stored.VoucherFee)
	}
}

func TestApplyDiscountRequiresPendingBooking(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	store.addProduct(test, 1, 1500, 10)
	store.addUser(test, 7)
	store.loyaltyLedger = append(store.loyaltyLedger, LoyaltyEntry{UserID: 7, Type: LoyaltyEntryGrant, Points: 100})
	service := mustNewService(test, store)
	booking := mustCreateBooking(test, service, 7, 1, mustRange(test, "2025-06-01", "2025-06-03"))
	mustApprove(test, service, booking.ID)

	_, err := service.ApplyDiscount(context.Background(), booking.ID, mustPoints(test, 10))
	if !errors.Is(err, ErrInvalidTransition) {
		test.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancelDoesNotReverseLoyalty(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	store.addProduct(test, 1, 1500, 10)
	store.addUser(test, 7)
	seedApprovedHistory(test, store, 7, 24)
	service := mustNewService(test, store)

	booking := mustCreateBooking(test, service, 7, 1, mustRange(test, "2025-06-01", "2025-06-03"))
	mustApprove(test, service, booking.ID)
	entriesAfterApproval := len(store.loyaltyLedger)

	if _, err := service.UpdateStatus(context.Background(), booking.ID, BookingStatusCanceled); err != nil {
		test.Fatalf("cancel: %v", err)
	}
	if len(store.loyaltyLedger) != entriesAfterApproval {
		test.Fatalf("cancel must not write loyalty entries, got %d (was %d)", len(store.loyaltyLedger), entriesAfterApproval)
	}
}

func TestLoyaltySummaryCreatesUserOnFirstSight(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)

	user, err := service.LoyaltySummary(context.Background(), 42)
	if err != nil {
		test.Fatalf("loyalty summary: %v", err)
	}
	if user.ID != 42 || user.LoyaltyPoints != 0 || user.TotalBookings != 0 {
		test.Fatalf("unexpected fresh user: %+v", user)
	}
}

func TestLoyaltyHistoryDelegatesToStore(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	for index := 0; index < 5; index++ {
		store.loyaltyLedger = append(store.loyaltyLedger, LoyaltyEntry{
			EntryID: fmt.Sprintf("seed-%d", index),
			UserID:  7,
			Type:    LoyaltyEntryGrant,
			Points:  10,
		})
	}
	service := mustNewService(test, store)

	entries, err := service.LoyaltyHistory(context.Background(), 7, 3)
	if err != nil {
		test.Fatalf("loyalty history: %v", err)
	}
	if len(entries) != 3 {
		test.Fatalf("expected limit of 3 entries, got %d", len(entries))
	}
}
