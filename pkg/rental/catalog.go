package rental

import (
	"context"
	"fmt"
	"strings"
)

// Products lists the catalog. Hidden products are only returned when
// includeHidden is set (admin views).
func (service *Service) Products(ctx context.Context, includeHidden bool) ([]Product, error) {
	return service.store.ListProducts(ctx, includeHidden)
}

// ProductByID fetches one visible product.
func (service *Service) ProductByID(ctx context.Context, productID int64) (Product, error) {
	product, err := service.store.GetProduct(ctx, productID)
	if err != nil {
		return Product{}, err
	}
	if product.Hidden {
		return Product{}, ErrProductNotFound
	}
	return product, nil
}

// ProductBlockedDates expands the dates a product cannot be booked for:
// its configured window united with the ranges of its approved bookings.
func (service *Service) ProductBlockedDates(ctx context.Context, productID int64) ([]Date, error) {
	product, err := service.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	approvedBookings, err := service.store.ListApprovedBookingsForProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return BlockedDates(BlockedRanges(product.Window, approvedBookings)), nil
}

// Categories lists the distinct product categories.
func (service *Service) Categories(ctx context.Context) ([]string, error) {
	return service.store.ListCategories(ctx)
}

// CreateProduct adds a catalog item (admin).
func (service *Service) CreateProduct(ctx context.Context, product Product) (Product, error) {
	if err := validateProduct(product); err != nil {
		return Product{}, err
	}
	now := service.nowFn()
	product.CreatedAt = now
	product.UpdatedAt = now
	if err := service.store.CreateProduct(ctx, &product); err != nil {
		return Product{}, err
	}
	return product, nil
}

// UpdateProduct edits a catalog item (admin). Stock is not writable here;
// it only moves through the inventory ledger.
func (service *Service) UpdateProduct(ctx context.Context, product Product) (Product, error) {
	if err := validateProduct(product); err != nil {
		return Product{}, err
	}
	current, err := service.store.GetProduct(ctx, product.ID)
	if err != nil {
		return Product{}, err
	}
	product.Stock = current.Stock
	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = service.nowFn()
	if err := service.store.UpdateProduct(ctx, product); err != nil {
		return Product{}, err
	}
	return product, nil
}

func validateProduct(product Product) error {
	if strings.TrimSpace(product.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if _, err := NewPrice(product.Price); err != nil {
		return err
	}
	if product.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidProduct)
	}
	return nil
}
