package rental

import "context"

// AddStock credits stock to a product and appends the StockAdjustment
// audit record in the same transaction.
func (service *Service) AddStock(ctx context.Context, productID int64, quantity Quantity, remarks string) (Product, error) {
	var updated Product
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := transactionStore.GetProductForUpdate(ctx, productID); err != nil {
			return err
		}
		if err := transactionStore.IncrementStock(ctx, productID, quantity.Int64()); err != nil {
			return err
		}
		adjustment := StockAdjustment{
			ProductID:  productID,
			StockAdded: quantity.Int64(),
			Remarks:    remarks,
			CreatedAt:  service.nowFn(),
		}
		if err := transactionStore.AppendStockAdjustment(ctx, &adjustment); err != nil {
			return err
		}
		var err error
		updated, err = transactionStore.GetProduct(ctx, productID)
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationAddStock,
		ProductID: productID,
		Quantity:  quantity.Int64(),
		Error:     operationError,
	})
	if operationError != nil {
		return Product{}, operationError
	}
	return updated, nil
}
