package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/verabelle/rental/pkg/rental"
	"go.uber.org/zap"
)

const (
	loyaltyHistoryLimit = 20
	shutdownTimeout     = 5 * time.Second
)

// Run boots the rental HTTP API using the supplied configuration.
func Run(ctx context.Context, cfg Config, service *rental.Service, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	handler := &httpHandler{
		logger:  logger,
		service: service,
	}

	router := setupRouter(cfg, handler)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rental api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	api.GET("/products", handler.handleListProducts)
	api.GET("/products/:id", handler.handleGetProduct)
	api.GET("/categories", handler.handleListCategories)

	authed := api.Group("")
	authed.Use(authRequired(cfg.JWTSecret))

	authed.POST("/bookings", handler.handleCreateBooking)
	authed.GET("/bookings/:reference", handler.handleGetBooking)
	authed.PATCH("/bookings/:reference/cancel", handler.handleCancelBooking)
	authed.POST("/bookings/apply-discount", handler.handleApplyDiscount)
	authed.POST("/bookings/upload-receipt", handler.handleUploadReceipt)
	authed.GET("/user", handler.handleUserSummary)
	authed.GET("/user/bookings", handler.handleUserBookings)

	admin := authed.Group("")
	admin.Use(requireRole(roleAdmin))

	admin.GET("/orders", handler.handleListOrders)
	admin.PUT("/orders/:id/update-status", handler.handleUpdateStatus)
	admin.PUT("/inventory/:id/add-stock", handler.handleAddStock)
	admin.POST("/products", handler.handleCreateProduct)
	admin.PUT("/products/:id", handler.handleUpdateProduct)

	return router
}

type httpHandler struct {
	logger  *zap.Logger
	service *rental.Service
}

type createBookingRequest struct {
	ProductID int64  `json:"product_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (handler *httpHandler) handleCreateBooking(ctx *gin.Context) {
	userID, ok := authenticatedUserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("Unauthorized"))
		return
	}
	var request createBookingRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("Expected JSON body"))
		return
	}
	startDate, err := rental.ParseDate(request.StartDate)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("Invalid start date, expected YYYY-MM-DD"))
		return
	}
	endDate, err := rental.ParseDate(request.EndDate)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("Invalid end date, expected YYYY-MM-DD"))
		return
	}
	dates, err := rental.NewDateRange(startDate, endDate)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("End date must be after the start date"))
		return
	}

	booking, err := handler.service.CreateBooking(ctx.Request.Context(), userID, request.ProductID, dates)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{
		"success": true,
		"booking": bookingPayloadFrom(booking),
	})
}

func (handler *httpHandler) handleGetBooking(ctx *gin.Context) {
	booking, err := handler.service.BookingByReference(ctx.Request.Context(), ctx.Param("reference"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	userID, ok := authenticatedUserID(ctx)
	if !ok || (booking.UserID != userID && !isAdmin(ctx)) {
		ctx.JSON(http.StatusNotFound, errorResponse("Booking not found"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"booking": bookingPayloadFrom(booking),
	})
}

func (handler *httpHandler) handleCancelBooking(ctx *gin.Context) {
	reference := ctx.Param("reference")
	booking, err := handler.service.BookingByReference(ctx.Request.Context(), reference)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	userID, ok := authenticatedUserID(ctx)
	if !ok || (booking.UserID != userID && !isAdmin(ctx)) {
		ctx.JSON(http.StatusNotFound, errorResponse("Booking not found"))
		return
	}
	canceled, err := handler.service.CancelByReference(ctx.Request.Context(), reference)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Booking canceled",
		"booking": bookingPayloadFrom(canceled),
	})
}

type applyDiscountRequest struct {
	BookingID int64 `json:"booking_id"`
	Points    int64 `json:"points_to_use"`
}

func (handler *httpHandler) handleApplyDiscount(ctx *gin.Context) {
	var request applyDiscountRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("Expected JSON body"))
		return
	}
	points, err := rental.NewPoints(request.Points)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("Points must be a positive number"))
		return
	}
	if !handler.authorizeBooking(ctx, request.BookingID) {
		return
	}
	result, err := handler.service.ApplyDiscount(ctx.Request.Context(), request.BookingID, points)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success":          true,
		"message":          "Discount applied",
		"new_total_price":  result.NewTotalPrice.StringFixed(2),
		"voucher_fee":      result.VoucherFee.StringFixed(2),
		"remaining_points": result.RemainingPoints,
	})
}

type uploadReceiptRequest struct {
	BookingID int64  `json:"booking_id"`
	Receipt   string `json:"receipt"`
}

func (handler *httpHandler) handleUploadReceipt(ctx *gin.Context) {
	var request uploadReceiptRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("Expected JSON body"))
		return
	}
	if !handler.authorizeBooking(ctx, request.BookingID) {
		return
	}
	booking, err := handler.service.AttachReceipt(ctx.Request.Context(), request.BookingID, request.Receipt)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Receipt uploaded",
		"booking": bookingPayloadFrom(booking),
	})
}

func (handler *httpHandler) handleUserSummary(ctx *gin.Context) {
	userID, ok := authenticatedUserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("Unauthorized"))
		return
	}
	user, err := handler.service.LoyaltySummary(ctx.Request.Context(), userID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	history, err := handler.service.LoyaltyHistory(ctx.Request.Context(), userID, loyaltyHistoryLimit)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	entries := make([]gin.H, 0, len(history))
	for _, entry := range history {
		entries = append(entries, gin.H{
			"entry_id":   entry.EntryID,
			"type":       entry.Type.String(),
			"points":     entry.Points,
			"booking_id": entry.BookingID,
			"created_at": entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success":         true,
		"user_id":         user.ID,
		"total_bookings":  user.TotalBookings,
		"loyalty_points":  user.LoyaltyPoints,
		"loyalty_history": entries,
	})
}

func (handler *httpHandler) handleUserBookings(ctx *gin.Context) {
	userID, ok := authenticatedUserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("Unauthorized"))
		return
	}
	bookings, err := handler.service.UserBookings(ctx.Request.Context(), userID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success":  true,
		"bookings": bookingPayloadsFrom(bookings),
	})
}

func (handler *httpHandler) handleListProducts(ctx *gin.Context) {
	products, err := handler.service.Products(ctx.Request.Context(), false)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]gin.H, 0, len(products))
	for _, product := range products {
		payloads = append(payloads, productPayloadFrom(product))
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success":  true,
		"products": payloads,
	})
}

func (handler *httpHandler) handleGetProduct(ctx *gin.Context) {
	productID, err := paramID(ctx, "id")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("Invalid product id"))
		return
	}
	product, err := handler.service.ProductByID(ctx.Request.Context(), productID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	blockedDates, err := handler.service.ProductBlockedDates(ctx.Request.Context(), productID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	blocked := make([]string, 0, len(blockedDates))
	for _, date := range blockedDates {
		blocked = append(blocked, date.String())
	}
	payload := productPayloadFrom(product)
	payload["blocked_dates"] = blocked
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"product": payload,
	})
}

func (handler *httpHandler) handleListCategories(ctx *gin.Context) {
	categories, err := handler.service.Categories(ctx.Request.Context())
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success":    true,
		"categories": categories,
	})
}

func (handler *httpHandler) handleListOrders(ctx *gin.Context) {
	bookings, err := handler.service.AllBookings(ctx.Request.Context())
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success":  true,
		"bookings": bookingPayloadsFrom(bookings),
	})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (handler *httpHandler) handleUpdateStatus(ctx *gin.Context) {
	bookingID, err := paramID(ctx, "id")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("Invalid booking id"))
		return
	}
	var request updateStatusRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("Expected JSON body"))
		return
	}
	status, err := rental.ParseBookingStatus(request.Status)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("Unknown booking status"))
		return
	}
	booking, err := handler.service.UpdateStatus(ctx.Request.Context(), bookingID, status)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Booking status updated",
		"booking": bookingPayloadFrom(booking),
	})
}

type addStockRequest struct {
	Quantity int64  `json:"quantity"`
	Remarks  string `json:"remarks"`
}

func (handler *httpHandler) handleAddStock(ctx *gin.Context) {
	productID, err := paramID(ctx, "id")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("Invalid product id"))
		return
	}
	var request addStockRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("Expected JSON body"))
		return
	}
	quantity, err := rental.NewQuantity(request.Quantity)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("Quantity must be a positive number"))
		return
	}
	product, err := handler.service.AddStock(ctx.Request.Context(), productID, quantity, request.Remarks)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Stock added",
		"product": productPayloadFrom(product),
	})
}

type productRequest struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	Stock       int64  `json:"stock"`
	Category    string `json:"category"`
	Description string `json:"description"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Hidden      bool   `json:"hidden"`
}

func (handler *httpHandler) handleCreateProduct(ctx *gin.Context) {
	product, ok := handler.bindProduct(ctx)
	if !ok {
		return
	}
	created, err := handler.service.CreateProduct(ctx.Request.Context(), product)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{
		"success": true,
		"product": productPayloadFrom(created),
	})
}

func (handler *httpHandler) handleUpdateProduct(ctx *gin.Context) {
	productID, err := paramID(ctx, "id")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("Invalid product id"))
		return
	}
	product, ok := handler.bindProduct(ctx)
	if !ok {
		return
	}
	product.ID = productID
	updated, err := handler.service.UpdateProduct(ctx.Request.Context(), product)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"product": productPayloadFrom(updated),
	})
}

func (handler *httpHandler) bindProduct(ctx *gin.Context) (rental.Product, bool) {
	var request productRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("Expected JSON body"))
		return rental.Product{}, false
	}
	price, err := decimal.NewFromString(request.Price)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("Invalid price"))
		return rental.Product{}, false
	}
	product := rental.Product{
		Name:        request.Name,
		Price:       price,
		Stock:       request.Stock,
		Category:    request.Category,
		Description: request.Description,
		Hidden:      request.Hidden,
	}
	if request.StartDate != "" || request.EndDate != "" {
		startDate, err := rental.ParseDate(request.StartDate)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("Invalid start date, expected YYYY-MM-DD"))
			return rental.Product{}, false
		}
		endDate, err := rental.ParseDate(request.EndDate)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("Invalid end date, expected YYYY-MM-DD"))
			return rental.Product{}, false
		}
		window, err := rental.NewDateSpan(startDate, endDate)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("End date must not precede the start date"))
			return rental.Product{}, false
		}
		product.Window = &window
	}
	return product, true
}

// authorizeBooking ensures the booking exists and belongs to the caller.
// Admins may act on any booking.
func (handler *httpHandler) authorizeBooking(ctx *gin.Context, bookingID int64) bool {
	userID, ok := authenticatedUserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("Unauthorized"))
		return false
	}
	booking, err := handler.service.BookingByID(ctx.Request.Context(), bookingID)
	if err != nil {
		handler.respondError(ctx, err)
		return false
	}
	if booking.UserID != userID && !isAdmin(ctx) {
		ctx.JSON(http.StatusNotFound, errorResponse("Booking not found"))
		return false
	}
	return true
}

func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	statusCode, message := classifyError(err)
	if statusCode == http.StatusInternalServerError {
		handler.logger.Error("request failed", zap.Error(err))
	}
	ctx.JSON(statusCode, errorResponse(message))
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, rental.ErrProductNotFound):
		return http.StatusNotFound, "Product not found"
	case errors.Is(err, rental.ErrBookingNotFound):
		return http.StatusNotFound, "Booking not found"
	case errors.Is(err, rental.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, rental.ErrInsufficientStock):
		return http.StatusUnprocessableEntity, "Not enough stock to approve this booking"
	case errors.Is(err, rental.ErrInsufficientPoints):
		return http.StatusUnprocessableEntity, "Not enough loyalty points"
	case errors.Is(err, rental.ErrDatesUnavailable):
		return http.StatusUnprocessableEntity, "The selected dates are no longer available"
	case errors.Is(err, rental.ErrAlreadyCanceled):
		return http.StatusUnprocessableEntity, "This booking has already been canceled"
	case errors.Is(err, rental.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, "The booking status does not allow this action"
	case errors.Is(err, rental.ErrInvalidDateRange),
		errors.Is(err, rental.ErrInvalidDate):
		return http.StatusBadRequest, "Invalid booking dates"
	case errors.Is(err, rental.ErrInvalidReference):
		return http.StatusBadRequest, "Invalid booking reference"
	case errors.Is(err, rental.ErrInvalidReceipt):
		return http.StatusBadRequest, "Receipt reference is required"
	case errors.Is(err, rental.ErrInvalidPoints):
		return http.StatusBadRequest, "Points must be a positive number"
	case errors.Is(err, rental.ErrInvalidQuantity):
		return http.StatusBadRequest, "Quantity must be a positive number"
	case errors.Is(err, rental.ErrInvalidPrice),
		errors.Is(err, rental.ErrInvalidProduct):
		return http.StatusBadRequest, "Invalid product details"
	default:
		return http.StatusInternalServerError, "Something went wrong"
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"success": false,
		"message": message,
	}
}

func bookingPayloadFrom(booking rental.Booking) gin.H {
	return gin.H{
		"id":               booking.ID,
		"reference_number": booking.Reference,
		"user_id":          booking.UserID,
		"product_id":       booking.ProductID,
		"start_date":       booking.Dates.Start().String(),
		"end_date":         booking.Dates.End().String(),
		"added_price":      booking.AddedPrice.StringFixed(2),
		"total_price":      booking.TotalPrice.StringFixed(2),
		"voucher_fee":      booking.VoucherFee.StringFixed(2),
		"receipt":          booking.ReceiptRef,
		"status":           booking.Status.String(),
		"created_at":       booking.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":       booking.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func bookingPayloadsFrom(bookings []rental.Booking) []gin.H {
	payloads := make([]gin.H, 0, len(bookings))
	for _, booking := range bookings {
		payloads = append(payloads, bookingPayloadFrom(booking))
	}
	return payloads
}

func productPayloadFrom(product rental.Product) gin.H {
	payload := gin.H{
		"id":          product.ID,
		"name":        product.Name,
		"price":       product.Price.StringFixed(2),
		"stock":       product.Stock,
		"category":    product.Category,
		"description": product.Description,
		"hidden":      product.Hidden,
		"created_at":  product.CreatedAt.UTC().Format(time.RFC3339),
	}
	if product.Window != nil {
		payload["start_date"] = product.Window.Start().String()
		payload["end_date"] = product.Window.End().String()
	}
	return payload
}

func paramID(ctx *gin.Context, name string) (int64, error) {
	return strconv.ParseInt(ctx.Param(name), 10, 64)
}
