package gormstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Product mirrors the products table.
type Product struct {
	ID          int64           `gorm:"primaryKey"`
	Name        string          `gorm:"not null"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Stock       int64           `gorm:"not null;default:1"`
	Category    string          `gorm:"index"`
	Description string
	StartDate   *datatypes.Date
	EndDate     *datatypes.Date
	Hidden      bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// Booking mirrors the bookings table.
type Booking struct {
	ID              int64           `gorm:"primaryKey"`
	ReferenceNumber string          `gorm:"size:10;not null;uniqueIndex:uniq_bookings_reference"`
	UserID          int64           `gorm:"not null;index:idx_bookings_user_created,priority:1"`
	ProductID       int64           `gorm:"not null;index:idx_bookings_product_status,priority:1"`
	StartDate       datatypes.Date  `gorm:"not null"`
	EndDate         datatypes.Date  `gorm:"not null"`
	AddedPrice      decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	TotalPrice      decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	VoucherFee      decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	GcashReceipt    *string
	Status          string    `gorm:"not null;default:'pending';index:idx_bookings_product_status,priority:2"`
	CreatedAt       time.Time `gorm:"not null;index:idx_bookings_user_created,priority:2"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (Booking) TableName() string { return "bookings" }

// User mirrors the loyalty-relevant columns of the users table.
type User struct {
	ID            int64     `gorm:"primaryKey"`
	TotalBookings int64     `gorm:"not null;default:0"`
	LoyaltyPoints int64     `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (User) TableName() string { return "users" }

// StockAdjustment mirrors the append-only stock_adjustments table.
type StockAdjustment struct {
	ID         int64 `gorm:"primaryKey"`
	ProductID  int64 `gorm:"not null;index"`
	StockAdded int64 `gorm:"not null"`
	Remarks    *string
	CreatedAt  time.Time `gorm:"not null"`
}

func (StockAdjustment) TableName() string { return "stock_adjustments" }

// LoyaltyEntry mirrors the append-only loyalty_entries table.
type LoyaltyEntry struct {
	EntryID   string         `gorm:"type:uuid;primaryKey"`
	UserID    int64          `gorm:"not null;index:idx_loyalty_user_created,priority:1"`
	Type      string         `gorm:"not null"`
	Points    int64          `gorm:"not null"`
	BookingID *int64         `gorm:"index"`
	Metadata  datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null;index:idx_loyalty_user_created,priority:2"`
}

func (LoyaltyEntry) TableName() string { return "loyalty_entries" }

func (entry *LoyaltyEntry) BeforeCreate(tx *gorm.DB) error {
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	return nil
}
