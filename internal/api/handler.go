package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/gateway"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/models"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/money"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/redisclient"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/service"
	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/util"
)

const intentLockTTL = 10 * time.Second

// Handler contains the HTTP handlers.
type Handler struct {
	catalog   *service.CatalogService
	orders    *service.OrderService
	payments  *service.PaymentService
	stripe    *gateway.StripeGateway
	redis     *redisclient.Client
	jwtSecret string
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(
	catalog *service.CatalogService,
	orders *service.OrderService,
	payments *service.PaymentService,
	stripeGW *gateway.StripeGateway,
	redis *redisclient.Client,
	jwtSecret string,
) *Handler {
	return &Handler{
		catalog:   catalog,
		orders:    orders,
		payments:  payments,
		stripe:    stripeGW,
		redis:     redis,
		jwtSecret: jwtSecret,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes.
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhooks/stripe", h.stripeWebhook)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)

		v1.POST("/orders/guest", h.createGuestOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/payment-intent", h.createPaymentIntent)
		v1.POST("/payments/confirm", h.confirmPayment)

		authed := v1.Group("", authRequired(h.jwtSecret))
		{
			authed.POST("/orders", h.createUserOrder)
			authed.POST("/orders/:id/convert", h.convertOrder)
			authed.GET("/orders", h.listUserOrders)
		}
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().Unix()})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready", "time": time.Now().Unix()})
}

// moneyRequest is a money value as submitted by clients.
type moneyRequest struct {
	Amount   string `json:"amount" binding:"required"`
	Currency string `json:"currency" binding:"required"`
}

func (m *moneyRequest) toMoney() (*money.Money, error) {
	if m == nil {
		return nil, nil
	}
	v, err := money.New(m.Amount, m.Currency)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

type orderItemRequest struct {
	ProductID         int64         `json:"product_id" binding:"required"`
	Quantity          int           `json:"quantity" binding:"required,min=1"`
	UnitPriceOverride *moneyRequest `json:"unit_price_override,omitempty"`
}

type orderDraftRequest struct {
	Items           []orderItemRequest `json:"items" binding:"required,min=1"`
	Currency        string             `json:"currency"`
	TaxAmount       *moneyRequest      `json:"tax_amount,omitempty"`
	ShippingAmount  *moneyRequest      `json:"shipping_amount,omitempty"`
	DiscountAmount  *moneyRequest      `json:"discount_amount,omitempty"`
	BillingAddress  *models.Address    `json:"billing_address,omitempty"`
	ShippingAddress *models.Address    `json:"shipping_address,omitempty"`
	Notes           string             `json:"notes,omitempty"`
	Metadata        models.JSONMap     `json:"metadata,omitempty"`
}

func (r *orderDraftRequest) toDraft() (*models.OrderDraft, error) {
	items := make([]models.OrderItemDraft, 0, len(r.Items))
	for _, item := range r.Items {
		override, err := item.UnitPriceOverride.toMoney()
		if err != nil {
			return nil, &models.InvalidOrderDataError{Reason: err.Error()}
		}
		items = append(items, models.OrderItemDraft{
			ProductID:         item.ProductID,
			Quantity:          item.Quantity,
			UnitPriceOverride: override,
		})
	}

	draft, err := models.NewOrderDraft(items, r.Currency)
	if err != nil {
		return nil, err
	}

	if draft.TaxAmount, err = r.TaxAmount.toMoney(); err != nil {
		return nil, &models.InvalidOrderDataError{Reason: err.Error()}
	}
	if draft.ShippingAmount, err = r.ShippingAmount.toMoney(); err != nil {
		return nil, &models.InvalidOrderDataError{Reason: err.Error()}
	}
	if draft.DiscountAmount, err = r.DiscountAmount.toMoney(); err != nil {
		return nil, &models.InvalidOrderDataError{Reason: err.Error()}
	}
	draft.BillingAddress = r.BillingAddress
	draft.ShippingAddress = r.ShippingAddress
	draft.Notes = r.Notes
	draft.Metadata = r.Metadata
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	return draft, nil
}

type guestRequest struct {
	Email     string `json:"email" binding:"required"`
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

func (r *guestRequest) toGuest() (models.GuestCustomerData, error) {
	if r.Name != "" {
		return models.NewGuestCustomerData(r.Email, r.Name, r.Phone)
	}
	return models.NewGuestCustomerDataFromParts(r.Email, r.FirstName, r.LastName, r.Phone)
}

type createGuestOrderRequest struct {
	orderDraftRequest
	Guest guestRequest `json:"guest" binding:"required"`
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getProduct(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), productID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) createGuestOrder(c *gin.Context) {
	var req createGuestOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	draft, err := req.toDraft()
	if err != nil {
		h.writeError(c, err)
		return
	}
	guest, err := req.Guest.toGuest()
	if err != nil {
		h.writeError(c, err)
		return
	}

	order, err := h.orders.CreateGuestOrder(c.Request.Context(), draft, guest)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) createUserOrder(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req orderDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	draft, err := req.toDraft()
	if err != nil {
		h.writeError(c, err)
		return
	}

	order, err := h.orders.CreateUserOrder(c.Request.Context(), userID, draft)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) convertOrder(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, err := h.orders.ConvertGuestOrderToUser(c.Request.Context(), orderID, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	payment, err := h.payments.GetPaymentForOrder(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order, "payment": payment})
}

func (h *Handler) listUserOrders(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	orders, err := h.orders.GetUserOrders(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) createPaymentIntent(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	payment, err := h.payments.CreatePaymentIntent(c.Request.Context(), order)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

type confirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
	PaymentMethodID string `json:"payment_method_id,omitempty"`
}

func (h *Handler) confirmPayment(c *gin.Context) {
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	payment, err := h.payments.ConfirmPayment(c.Request.Context(), req.PaymentIntentID, req.PaymentMethodID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// stripeWebhook verifies, deduplicates and applies a gateway event. The
// response is 200 for everything the reconciliation path handled, including
// foreign intents; Stripe retries anything else.
func (h *Handler) stripeWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read payload"})
		return
	}

	event, err := h.stripe.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("Webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	ctx := c.Request.Context()

	if h.redis != nil && event.ID != "" {
		first, err := h.redis.MarkEventSeen(ctx, event.ID)
		if err != nil {
			h.logger.Warn("Webhook dedup check failed", zap.Error(err))
		} else if !first {
			c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
			return
		}
	}

	if h.redis != nil {
		if intent := event.ExtractIntent(); intent != nil && intent.ID != "" {
			locked, err := h.redis.AcquireIntentLock(ctx, intent.ID, intentLockTTL)
			if err == nil && locked {
				defer func() {
					if err := h.redis.ReleaseIntentLock(ctx, intent.ID); err != nil {
						h.logger.Warn("Failed to release intent lock", zap.Error(err))
					}
				}()
			}
		}
	}

	payment, err := h.payments.HandleWebhookEvent(ctx, event)
	if err != nil {
		h.logger.Error("Webhook handling failed",
			zap.String("event_type", event.Type),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
		return
	}

	resp := gin.H{"received": true}
	if payment != nil {
		resp["payment_status"] = payment.Status
	}
	c.JSON(http.StatusOK, resp)
}

// writeError maps domain errors onto HTTP statuses. Gateway causes stay
// opaque: clients see a generic message, the detail goes to the log.
func (h *Handler) writeError(c *gin.Context, err error) {
	var invalidData *models.InvalidOrderDataError
	var insufficientStock *models.InsufficientStockError
	var productNotFound *models.ProductNotFoundError
	var orderNotFound *models.OrderNotFoundError
	var userNotFound *models.UserNotFoundError
	var paymentErr *models.PaymentProcessingError

	switch {
	case errors.As(err, &invalidData):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidData.Reason})
	case errors.As(err, &insufficientStock):
		c.JSON(http.StatusConflict, gin.H{
			"error":      "Insufficient stock",
			"product_id": insufficientStock.ProductID,
			"requested":  insufficientStock.Requested,
			"available":  insufficientStock.Available,
		})
	case errors.As(err, &productNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": productNotFound.Error()})
	case errors.As(err, &orderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": orderNotFound.Error()})
	case errors.As(err, &userNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": userNotFound.Error()})
	case errors.As(err, &paymentErr):
		h.logger.Error("Payment processing error", zap.Error(err))
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Payment processing failed"})
	default:
		h.logger.Error("Internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// prometheusMiddleware collects HTTP metrics.
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
