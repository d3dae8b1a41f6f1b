package rental

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type stubStore struct {
	products      map[int64]Product
	bookings      map[int64]Booking
	users         map[int64]User
	adjustments   []StockAdjustment
	loyaltyLedger []LoyaltyEntry
	references    map[string]struct{}
	nextBookingID int64
	nextEntryID   int64
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{
		products:   make(map[int64]Product),
		bookings:   make(map[int64]Booking),
		users:      make(map[int64]User),
		references: make(map[string]struct{}),
	}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, store)
}

func (store *stubStore) GetProduct(ctx context.Context, productID int64) (Product, error) {
	product, ok := store.products[productID]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return product, nil
}

func (store *stubStore) GetProductForUpdate(ctx context.Context, productID int64) (Product, error) {
	return store.GetProduct(ctx, productID)
}

func (store *stubStore) ListProducts(ctx context.Context, includeHidden bool) ([]Product, error) {
	products := make([]Product, 0, len(store.products))
	for _, product := range store.products {
		if product.Hidden && !includeHidden {
			continue
		}
		products = append(products, product)
	}
	return products, nil
}

func (store *stubStore) ListCategories(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	categories := make([]string, 0)
	for _, product := range store.products {
		if product.Category == "" {
			continue
		}
		if _, duplicate := seen[product.Category]; duplicate {
			continue
		}
		seen[product.Category] = struct{}{}
		categories = append(categories, product.Category)
	}
	return categories, nil
}

func (store *stubStore) CreateProduct(ctx context.Context, product *Product) error {
	product.ID = int64(len(store.products) + 1)
	store.products[product.ID] = *product
	return nil
}

func (store *stubStore) UpdateProduct(ctx context.Context, product Product) error {
	if _, ok := store.products[product.ID]; !ok {
		return ErrProductNotFound
	}
	store.products[product.ID] = product
	return nil
}

func (store *stubStore) DecrementStock(ctx context.Context, productID int64) error {
	product, ok := store.products[productID]
	if !ok || product.Stock <= 0 {
		return ErrInsufficientStock
	}
	product.Stock--
	store.products[productID] = product
	return nil
}

func (store *stubStore) IncrementStock(ctx context.Context, productID int64, quantity int64) error {
	product, ok := store.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	product.Stock += quantity
	store.products[productID] = product
	return nil
}

func (store *stubStore) AppendStockAdjustment(ctx context.Context, adjustment *StockAdjustment) error {
	adjustment.ID = int64(len(store.adjustments) + 1)
	store.adjustments = append(store.adjustments, *adjustment)
	return nil
}

func (store *stubStore) CreateBooking(ctx context.Context, booking *Booking) error {
	if _, taken := store.references[booking.Reference]; taken {
		return ErrReferenceTaken
	}
	store.nextBookingID++
	booking.ID = store.nextBookingID
	store.references[booking.Reference] = struct{}{}
	store.bookings[booking.ID] = *booking
	return nil
}

func (store *stubStore) GetBooking(ctx context.Context, bookingID int64) (Booking, error) {
	booking, ok := store.bookings[bookingID]
	if !ok {
		return Booking{}, ErrBookingNotFound
	}
	return booking, nil
}

func (store *stubStore) GetBookingForUpdate(ctx context.Context, bookingID int64) (Booking, error) {
	return store.GetBooking(ctx, bookingID)
}

func (store *stubStore) GetBookingByReference(ctx context.Context, reference string) (Booking, error) {
	for _, booking := range store.bookings {
		if booking.Reference == reference {
			return booking, nil
		}
	}
	return Booking{}, ErrBookingNotFound
}

func (store *stubStore) ListBookings(ctx context.Context) ([]Booking, error) {
	bookings := make([]Booking, 0, len(store.bookings))
	for _, booking := range store.bookings {
		bookings = append(bookings, booking)
	}
	return bookings, nil
}

func (store *stubStore) ListBookingsForUser(ctx context.Context, userID int64) ([]Booking, error) {
	bookings := make([]Booking, 0)
	for _, booking := range store.bookings {
		if booking.UserID == userID {
			bookings = append(bookings, booking)
		}
	}
	return bookings, nil
}

func (store *stubStore) ListApprovedBookingsForProduct(ctx context.Context, productID int64) ([]Booking, error) {
	bookings := make([]Booking, 0)
	for _, booking := range store.bookings {
		if booking.ProductID == productID && booking.Status == BookingStatusApproved {
			bookings = append(bookings, booking)
		}
	}
	return bookings, nil
}

func (store *stubStore) UpdateBookingStatus(ctx context.Context, bookingID int64, from BookingStatus, to BookingStatus) error {
	booking, ok := store.bookings[bookingID]
	if !ok || booking.Status != from {
		return ErrInvalidTransition
	}
	booking.Status = to
	store.bookings[bookingID] = booking
	return nil
}

func (store *stubStore) UpdateBookingDiscount(ctx context.Context, bookingID int64, totalPrice decimal.Decimal, voucherFee decimal.Decimal) error {
	booking, ok := store.bookings[bookingID]
	if !ok {
		return ErrBookingNotFound
	}
	booking.TotalPrice = totalPrice
	booking.VoucherFee = voucherFee
	store.bookings[bookingID] = booking
	return nil
}

func (store *stubStore) UpdateBookingReceipt(ctx context.Context, bookingID int64, receiptRef string) error {
	booking, ok := store.bookings[bookingID]
	if !ok {
		return ErrBookingNotFound
	}
	booking.ReceiptRef = receiptRef
	store.bookings[bookingID] = booking
	return nil
}

func (store *stubStore) CountApprovedBookings(ctx context.Context, userID int64) (int64, error) {
	var count int64
	for _, booking := range store.bookings {
		if booking.UserID == userID && booking.Status == BookingStatusApproved {
			count++
		}
	}
	return count, nil
}

func (store *stubStore) GetOrCreateUser(ctx context.Context, userID int64) (User, error) {
	user, ok := store.users[userID]
	if !ok {
		user = User{ID: userID}
		store.users[userID] = user
	}
	return user, nil
}

func (store *stubStore) GetUserForUpdate(ctx context.Context, userID int64) (User, error) {
	user, ok := store.users[userID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (store *stubStore) UpdateUserLoyalty(ctx context.Context, userID int64, totalBookings int64, loyaltyPoints int64) error {
	user, ok := store.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.TotalBookings = totalBookings
	user.LoyaltyPoints = loyaltyPoints
	store.users[userID] = user
	return nil
}

func (store *stubStore) AppendLoyaltyEntry(ctx context.Context, entry *LoyaltyEntry) error {
	store.nextEntryID++
	entry.EntryID = fmt.Sprintf("entry-%d", store.nextEntryID)
	store.loyaltyLedger = append(store.loyaltyLedger, *entry)
	return nil
}

func (store *stubStore) SumLoyaltyPoints(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	for _, entry := range store.loyaltyLedger {
		if entry.UserID == userID {
			sum += entry.Points
		}
	}
	return sum, nil
}

func (store *stubStore) SumLoyaltyGrants(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	for _, entry := range store.loyaltyLedger {
		if entry.UserID == userID && entry.Type == LoyaltyEntryGrant {
			sum += entry.Points
		}
	}
	return sum, nil
}

func (store *stubStore) ListLoyaltyEntries(ctx context.Context, userID int64, limit int) ([]LoyaltyEntry, error) {
	entries := make([]LoyaltyEntry, 0)
	for _, entry := range store.loyaltyLedger {
		if entry.UserID != userID {
			continue
		}
		entries = append(entries, entry)
		if len(entries) == limit {
			break
		}
	}
	return entries, nil
}

func (store *stubStore) addProduct(test *testing.T, productID int64, price int64, stock int64) {
	test.Helper()
	store.products[productID] = Product{
		ID:    productID,
		Name:  fmt.Sprintf("gown-%d", productID),
		Price: decimal.NewFromInt(price),
		Stock: stock,
	}
}

func (store *stubStore) addUser(test *testing.T, userID int64) {
	test.Helper()
	store.users[userID] = User{ID: userID}
}

func (store *stubStore) seedApprovedBooking(test *testing.T, userID int64, productID int64, dates DateRange) {
	test.Helper()
	store.nextBookingID++
	reference := fmt.Sprintf("SEED%06d", store.nextBookingID)
	store.references[reference] = struct{}{}
	store.bookings[store.nextBookingID] = Booking{
		ID:        store.nextBookingID,
		Reference: reference,
		UserID:    userID,
		ProductID: productID,
		Dates:     dates,
		Status:    BookingStatusApproved,
	}
}

func (store *stubStore) mustBooking(test *testing.T, bookingID int64) Booking {
	test.Helper()
	booking, ok := store.bookings[bookingID]
	if !ok {
		test.Fatalf("booking %d not found", bookingID)
	}
	return booking
}

func (store *stubStore) mustProduct(test *testing.T, productID int64) Product {
	test.Helper()
	product, ok := store.products[productID]
	if !ok {
		test.Fatalf("product %d not found", productID)
	}
	return product
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	clock := func() time.Time { return time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC) }
	service, err := NewService(store, clock, options...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustDate(test *testing.T, raw string) Date {
	test.Helper()
	date, err := ParseDate(raw)
	if err != nil {
		test.Fatalf("parse date %q: %v", raw, err)
	}
	return date
}

func mustRange(test *testing.T, start string, end string) DateRange {
	test.Helper()
	dates, err := NewDateRange(mustDate(test, start), mustDate(test, end))
	if err != nil {
		test.Fatalf("date range %s..%s: %v", start, end, err)
	}
	return dates
}

func mustSpan(test *testing.T, start string, end string) DateRange {
	test.Helper()
	span, err := NewDateSpan(mustDate(test, start), mustDate(test, end))
	if err != nil {
		test.Fatalf("date span %s..%s: %v", start, end, err)
	}
	return span
}

func mustPoints(test *testing.T, raw int64) Points {
	test.Helper()
	points, err := NewPoints(raw)
	if err != nil {
		test.Fatalf("points %d: %v", raw, err)
	}
	return points
}

func mustQuantity(test *testing.T, raw int64) Quantity {
	test.Helper()
	quantity, err := NewQuantity(raw)
	if err != nil {
		test.Fatalf("quantity %d: %v", raw, err)
	}
	return quantity
}

func mustCreateBooking(test *testing.T, service *Service, userID int64, productID int64, dates DateRange) Booking {
	test.Helper()
	booking, err := service.CreateBooking(context.Background(), userID, productID, dates)
	if err != nil {
		test.Fatalf("create booking: %v", err)
	}
	return booking
}

func mustApprove(test *testing.T, service *Service, bookingID int64) Booking {
	test.Helper()
	booking, err := service.UpdateStatus(context.Background(), bookingID, BookingStatusApproved)
	if err != nil {
		test.Fatalf("approve booking %d: %v", bookingID, err)
	}
	return booking
}
