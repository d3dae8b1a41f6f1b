package gormstore

import (
	"context"
	"errors"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/verabelle/rental/pkg/rental"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	constraintBookingReference = "uniq_bookings_reference"
	defaultMetadataJSON        = "{}"
	pgUniqueViolationCode      = "23505"
	sqliteConstraintCode       = 19
	errorOperationStore        = "store"
	errorSubjectProduct        = "product"
	errorSubjectBooking        = "booking"
	errorSubjectUser           = "user"
	errorSubjectStock          = "stock"
	errorSubjectAdjustment     = "adjustment"
	errorSubjectLoyalty        = "loyalty"
	errorCodeCreate            = "create"
	errorCodeDuplicate         = "duplicate"
	errorCodeGet               = "get"
	errorCodeInsert            = "insert"
	errorCodeInvalid           = "invalid"
	errorCodeList              = "list"
	errorCodeLookup            = "lookup"
	errorCodeCount             = "count"
	errorCodeSum               = "sum"
	errorCodeUpdate            = "update"
	errorCodeDecrement         = "decrement"
	errorCodeIncrement         = "increment"
)

// Store implements rental.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the rental schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Product{}, &Booking{}, &User{}, &StockAdjustment{}, &LoyaltyEntry{})
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore rental.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) GetProduct(ctx context.Context, productID int64) (rental.Product, error) {
	var row Product
	err := store.db.WithContext(ctx).Take(&row, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rental.Product{}, wrapStoreError(errorSubjectProduct, errorCodeGet, rental.ErrProductNotFound)
	}
	if err != nil {
		return rental.Product{}, wrapStoreError(errorSubjectProduct, errorCodeGet, err)
	}
	return mapProduct(row)
}

func (store *Store) GetProductForUpdate(ctx context.Context, productID int64) (rental.Product, error) {
	var row Product
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&row, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rental.Product{}, wrapStoreError(errorSubjectProduct, errorCodeGet, rental.ErrProductNotFound)
	}
	if err != nil {
		return rental.Product{}, wrapStoreError(errorSubjectProduct, errorCodeGet, err)
	}
	return mapProduct(row)
}

func (store *Store) ListProducts(ctx context.Context, includeHidden bool) ([]rental.Product, error) {
	query := store.db.WithContext(ctx).Order("id")
	if !includeHidden {
		query = query.Where("hidden = ?", false)
	}
	var rows []Product
	if err := query.Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectProduct, errorCodeList, err)
	}
	products := make([]rental.Product, 0, len(rows))
	for _, row := range rows {
		product, err := mapProduct(row)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, nil
}

func (store *Store) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	err := store.db.WithContext(ctx).
		Model(&Product{}).
		Distinct("category").
		Where("category <> ''").
		Order("category").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectProduct, errorCodeList, err)
	}
	return categories, nil
}

func (store *Store) CreateProduct(ctx context.Context, product *rental.Product) error {
	row := toProductRow(*product)
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectProduct, errorCodeCreate, err)
	}
	product.ID = row.ID
	return nil
}

func (store *Store) UpdateProduct(ctx context.Context, product rental.Product) error {
	row := toProductRow(product)
	result := store.db.WithContext(ctx).
		Model(&Product{}).
		Where("id = ?", product.ID).
		Select("name", "price", "category", "description", "start_date", "end_date", "hidden", "updated_at").
		Updates(row)
	if result.Error != nil {
		return wrapStoreError(errorSubjectProduct, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectProduct, errorCodeUpdate, rental.ErrProductNotFound)
	}
	return nil
}

func (store *Store) DecrementStock(ctx context.Context, productID int64) error {
	result := store.db.WithContext(ctx).
		Model(&Product{}).
		Where("id = ? AND stock > 0", productID).
		UpdateColumn("stock", gorm.Expr("stock - 1"))
	if result.Error != nil {
		return wrapStoreError(errorSubjectStock, errorCodeDecrement, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectStock, errorCodeDecrement, rental.ErrInsufficientStock)
	}
	return nil
}

func (store *Store) IncrementStock(ctx context.Context, productID int64, quantity int64) error {
	result := store.db.WithContext(ctx).
		Model(&Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock + ?", quantity))
	if result.Error != nil {
		return wrapStoreError(errorSubjectStock, errorCodeIncrement, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectStock, errorCodeIncrement, rental.ErrProductNotFound)
	}
	return nil
}

func (store *Store) AppendStockAdjustment(ctx context.Context, adjustment *rental.StockAdjustment) error {
	row := StockAdjustment{
		ProductID:  adjustment.ProductID,
		StockAdded: adjustment.StockAdded,
		Remarks:    optionalString(adjustment.Remarks),
		CreatedAt:  adjustment.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectAdjustment, errorCodeInsert, err)
	}
	adjustment.ID = row.ID
	return nil
}

func (store *Store) CreateBooking(ctx context.Context, booking *rental.Booking) error {
	row := toBookingRow(*booking)
	err := store.db.WithContext(ctx).Create(&row).Error
	if isReferenceConflict(err) {
		return wrapStoreError(errorSubjectBooking, errorCodeDuplicate, rental.ErrReferenceTaken)
	}
	if err != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeInsert, err)
	}
	booking.ID = row.ID
	return nil
}

func (store *Store) GetBooking(ctx context.Context, bookingID int64) (rental.Booking, error) {
	var row Booking
	err := store.db.WithContext(ctx).Take(&row, bookingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rental.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, rental.ErrBookingNotFound)
	}
	if err != nil {
		return rental.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, err)
	}
	return mapBooking(row)
}

func (store *Store) GetBookingForUpdate(ctx context.Context, bookingID int64) (rental.Booking, error) {
	var row Booking
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&row, bookingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rental.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, rental.ErrBookingNotFound)
	}
	if err != nil {
		return rental.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, err)
	}
	return mapBooking(row)
}

func (store *Store) GetBookingByReference(ctx context.Context, reference string) (rental.Booking, error) {
	var row Booking
	err := store.db.WithContext(ctx).
		Where("reference_number = ?", reference).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rental.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeLookup, rental.ErrBookingNotFound)
	}
	if err != nil {
		return rental.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeLookup, err)
	}
	return mapBooking(row)
}

func (store *Store) ListBookings(ctx context.Context) ([]rental.Booking, error) {
	var rows []Booking
	err := store.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	return mapBookings(rows)
}

func (store *Store) ListBookingsForUser(ctx context.Context, userID int64) ([]rental.Booking, error) {
	var rows []Booking
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	return mapBookings(rows)
}

func (store *Store) ListApprovedBookingsForProduct(ctx context.Context, productID int64) ([]rental.Booking, error) {
	var rows []Booking
	err := store.db.WithContext(ctx).
		Where("product_id = ? AND status = ?", productID, rental.BookingStatusApproved.String()).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	return mapBookings(rows)
}

func (store *Store) UpdateBookingStatus(ctx context.Context, bookingID int64, from rental.BookingStatus, to rental.BookingStatus) error {
	result := store.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ? AND status = ?", bookingID, from.String()).
		Updates(map[string]interface{}{
			"status":     to.String(),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdate, rental.ErrInvalidTransition)
	}
	return nil
}

func (store *Store) UpdateBookingDiscount(ctx context.Context, bookingID int64, totalPrice decimal.Decimal, voucherFee decimal.Decimal) error {
	result := store.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ?", bookingID).
		Updates(map[string]interface{}{
			"total_price": totalPrice,
			"voucher_fee": voucherFee,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdate, rental.ErrBookingNotFound)
	}
	return nil
}

func (store *Store) UpdateBookingReceipt(ctx context.Context, bookingID int64, receiptRef string) error {
	result := store.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ?", bookingID).
		Updates(map[string]interface{}{
			"gcash_receipt": receiptRef,
			"updated_at":    time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdate, rental.ErrBookingNotFound)
	}
	return nil
}

func (store *Store) CountApprovedBookings(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&Booking{}).
		Where("user_id = ? AND status = ?", userID, rental.BookingStatusApproved.String()).
		Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectBooking, errorCodeCount, err)
	}
	return count, nil
}

func (store *Store) GetOrCreateUser(ctx context.Context, userID int64) (rental.User, error) {
	row := User{ID: userID, CreatedAt: time.Now().UTC()}
	err := store.db.WithContext(ctx).
		Where(User{ID: userID}).
		FirstOrCreate(&row).Error
	if err != nil {
		return rental.User{}, wrapStoreError(errorSubjectUser, errorCodeLookup, err)
	}
	return mapUser(row), nil
}

func (store *Store) GetUserForUpdate(ctx context.Context, userID int64) (rental.User, error) {
	var row User
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&row, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rental.User{}, wrapStoreError(errorSubjectUser, errorCodeGet, rental.ErrUserNotFound)
	}
	if err != nil {
		return rental.User{}, wrapStoreError(errorSubjectUser, errorCodeGet, err)
	}
	return mapUser(row), nil
}

func (store *Store) UpdateUserLoyalty(ctx context.Context, userID int64, totalBookings int64, loyaltyPoints int64) error {
	result := store.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"total_bookings": totalBookings,
			"loyalty_points": loyaltyPoints,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectUser, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectUser, errorCodeUpdate, rental.ErrUserNotFound)
	}
	return nil
}

func (store *Store) AppendLoyaltyEntry(ctx context.Context, entry *rental.LoyaltyEntry) error {
	row := LoyaltyEntry{
		EntryID:   entry.EntryID,
		UserID:    entry.UserID,
		Type:      entry.Type.String(),
		Points:    entry.Points,
		BookingID: entry.BookingID,
		Metadata:  datatypesJSON(entry.Metadata),
		CreatedAt: entry.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectLoyalty, errorCodeInsert, err)
	}
	entry.EntryID = row.EntryID
	return nil
}

func (store *Store) SumLoyaltyPoints(ctx context.Context, userID int64) (int64, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&LoyaltyEntry{}).
		Select("coalesce(sum(points),0) as total").
		Where("user_id = ?", userID).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectLoyalty, errorCodeSum, err)
	}
	return sum.Total, nil
}

func (store *Store) SumLoyaltyGrants(ctx context.Context, userID int64) (int64, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&LoyaltyEntry{}).
		Select("coalesce(sum(points),0) as total").
		Where("user_id = ? AND type = ?", userID, rental.LoyaltyEntryGrant.String()).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectLoyalty, errorCodeSum, err)
	}
	return sum.Total, nil
}

func (store *Store) ListLoyaltyEntries(ctx context.Context, userID int64, limit int) ([]rental.LoyaltyEntry, error) {
	var rows []LoyaltyEntry
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectLoyalty, errorCodeList, err)
	}
	entries := make([]rental.LoyaltyEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := mapLoyaltyEntry(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectLoyalty, errorCodeInvalid, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return rental.WrapError(errorOperationStore, subject, code, err)
}

type sqlSum struct {
	Total int64
}

func mapProduct(row Product) (rental.Product, error) {
	product := rental.Product{
		ID:          row.ID,
		Name:        row.Name,
		Price:       row.Price,
		Stock:       row.Stock,
		Category:    row.Category,
		Description: row.Description,
		Hidden:      row.Hidden,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.StartDate != nil && row.EndDate != nil {
		window, err := rental.NewDateSpan(fromDatatypesDate(*row.StartDate), fromDatatypesDate(*row.EndDate))
		if err != nil {
			return rental.Product{}, wrapStoreError(errorSubjectProduct, errorCodeInvalid, err)
		}
		product.Window = &window
	}
	return product, nil
}

func toProductRow(product rental.Product) Product {
	row := Product{
		ID:          product.ID,
		Name:        product.Name,
		Price:       product.Price,
		Stock:       product.Stock,
		Category:    product.Category,
		Description: product.Description,
		Hidden:      product.Hidden,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}
	if product.Window != nil {
		startDate := toDatatypesDate(product.Window.Start())
		endDate := toDatatypesDate(product.Window.End())
		row.StartDate = &startDate
		row.EndDate = &endDate
	}
	return row
}

func mapBooking(row Booking) (rental.Booking, error) {
	dates, err := rental.NewDateRange(fromDatatypesDate(row.StartDate), fromDatatypesDate(row.EndDate))
	if err != nil {
		return rental.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	status, err := rental.ParseBookingStatus(row.Status)
	if err != nil {
		return rental.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	booking := rental.Booking{
		ID:         row.ID,
		Reference:  row.ReferenceNumber,
		UserID:     row.UserID,
		ProductID:  row.ProductID,
		Dates:      dates,
		AddedPrice: row.AddedPrice,
		TotalPrice: row.TotalPrice,
		VoucherFee: row.VoucherFee,
		Status:     status,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if row.GcashReceipt != nil {
		booking.ReceiptRef = *row.GcashReceipt
	}
	return booking, nil
}

func mapBookings(rows []Booking) ([]rental.Booking, error) {
	bookings := make([]rental.Booking, 0, len(rows))
	for _, row := range rows {
		booking, err := mapBooking(row)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, nil
}

func toBookingRow(booking rental.Booking) Booking {
	return Booking{
		ID:              booking.ID,
		ReferenceNumber: booking.Reference,
		UserID:          booking.UserID,
		ProductID:       booking.ProductID,
		StartDate:       toDatatypesDate(booking.Dates.Start()),
		EndDate:         toDatatypesDate(booking.Dates.End()),
		AddedPrice:      booking.AddedPrice,
		TotalPrice:      booking.TotalPrice,
		VoucherFee:      booking.VoucherFee,
		GcashReceipt:    optionalString(booking.ReceiptRef),
		Status:          booking.Status.String(),
		CreatedAt:       booking.CreatedAt,
		UpdatedAt:       booking.UpdatedAt,
	}
}

func mapUser(row User) rental.User {
	return rental.User{
		ID:            row.ID,
		TotalBookings: row.TotalBookings,
		LoyaltyPoints: row.LoyaltyPoints,
		CreatedAt:     row.CreatedAt,
	}
}

func mapLoyaltyEntry(row LoyaltyEntry) (rental.LoyaltyEntry, error) {
	entryType, err := rental.ParseLoyaltyEntryType(row.Type)
	if err != nil {
		return rental.LoyaltyEntry{}, err
	}
	return rental.LoyaltyEntry{
		EntryID:   row.EntryID,
		UserID:    row.UserID,
		Type:      entryType,
		Points:    row.Points,
		BookingID: row.BookingID,
		Metadata:  string(row.Metadata),
		CreatedAt: row.CreatedAt,
	}, nil
}

func fromDatatypesDate(value datatypes.Date) rental.Date {
	return rental.NewDate(time.Time(value))
}

func toDatatypesDate(date rental.Date) datatypes.Date {
	return datatypes.Date(date.Time())
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func isReferenceConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintBookingReference
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
