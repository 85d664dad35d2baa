package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/money"
)

// Product represents a catalog product with its stock counter.
type Product struct {
	ID         int64           `db:"id" json:"id"`
	SKU        string          `db:"sku" json:"sku"`
	Name       string          `db:"name" json:"name"`
	Price      decimal.Decimal `db:"price" json:"price"`
	Currency   string          `db:"currency" json:"currency"`
	Stock      int             `db:"stock" json:"stock"`
	TrackStock bool            `db:"track_stock" json:"track_stock"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// UnitPrice returns the product price as Money.
func (p *Product) UnitPrice() money.Money {
	return money.Money{Amount: p.Price, Currency: p.Currency}
}

// User is the minimal shape of a registered customer consumed by this core.
type User struct {
	ID        int64     `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// OrderStatus is the order lifecycle state.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
)

// Order is the aggregate root for a purchase. It is append-only: rows are
// never deleted, only status-advanced. The buyer is identified by exactly
// one of UserID or GuestEmail.
type Order struct {
	ID              int64           `db:"id" json:"id"`
	OrderNumber     string          `db:"order_number" json:"order_number"`
	UserID          *int64          `db:"user_id" json:"user_id,omitempty"`
	GuestEmail      *string         `db:"guest_email" json:"guest_email,omitempty"`
	GuestName       *string         `db:"guest_name" json:"guest_name,omitempty"`
	GuestPhone      *string         `db:"guest_phone" json:"guest_phone,omitempty"`
	Currency        string          `db:"currency" json:"currency"`
	Subtotal        decimal.Decimal `db:"subtotal" json:"subtotal"`
	TaxAmount       decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	ShippingAmount  decimal.Decimal `db:"shipping_amount" json:"shipping_amount"`
	DiscountAmount  decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	Total           decimal.Decimal `db:"total" json:"total"`
	Status          OrderStatus     `db:"status" json:"status"`
	BillingAddress  *Address        `db:"billing_address" json:"billing_address,omitempty"`
	ShippingAddress *Address        `db:"shipping_address" json:"shipping_address,omitempty"`
	Notes           *string         `db:"notes" json:"notes,omitempty"`
	Metadata        JSONMap         `db:"metadata" json:"metadata,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`

	Items []OrderItem `db:"-" json:"items,omitempty"`
}

// IsGuestOrder reports whether the order belongs to an unauthenticated buyer.
func (o *Order) IsGuestOrder() bool {
	return o.UserID == nil
}

// TotalMoney returns the grand total as Money.
func (o *Order) TotalMoney() money.Money {
	return money.Money{Amount: o.Total, Currency: o.Currency}
}

// SubtotalMoney returns the item subtotal as Money.
func (o *Order) SubtotalMoney() money.Money {
	return money.Money{Amount: o.Subtotal, Currency: o.Currency}
}

// SetAmounts fixes the four monetary components and recomputes the total.
// Every component must be denominated in the order currency.
func (o *Order) SetAmounts(subtotal, tax, shipping, discount money.Money) error {
	for _, m := range []money.Money{subtotal, tax, shipping, discount} {
		if m.Currency != o.Currency {
			return &InvalidOrderDataError{Reason: "order amounts must use currency " + o.Currency}
		}
	}
	o.Subtotal = subtotal.Amount
	o.TaxAmount = tax.Amount
	o.ShippingAmount = shipping.Amount
	o.DiscountAmount = discount.Amount
	o.Total = subtotal.Amount.Add(tax.Amount).Add(shipping.Amount).Sub(discount.Amount)
	return nil
}

// SetGuest stamps guest contact details onto the order.
func (o *Order) SetGuest(guest GuestCustomerData) {
	email := guest.Email
	name := guest.Name
	o.GuestEmail = &email
	o.GuestName = &name
	if guest.Phone != "" {
		phone := guest.Phone
		o.GuestPhone = &phone
	}
}

// AttachUser assigns the order to a registered customer and clears any guest
// identity so the buyer-exclusivity invariant holds.
func (o *Order) AttachUser(userID int64) {
	o.UserID = &userID
	o.GuestEmail = nil
	o.GuestName = nil
	o.GuestPhone = nil
}

// Validate checks the aggregate-level invariants.
func (o *Order) Validate() error {
	if len(o.Items) < 1 {
		return &InvalidOrderDataError{Reason: "order must contain at least one item"}
	}
	if o.Currency == "" {
		return &InvalidOrderDataError{Reason: "order currency is required"}
	}
	hasUser := o.UserID != nil
	hasGuest := o.GuestEmail != nil && *o.GuestEmail != ""
	if hasUser == hasGuest {
		return &InvalidOrderDataError{Reason: "order must belong to exactly one of a customer or a guest"}
	}
	if o.Subtotal.IsNegative() || o.TaxAmount.IsNegative() || o.ShippingAmount.IsNegative() || o.DiscountAmount.IsNegative() {
		return &InvalidOrderDataError{Reason: "order amounts must not be negative"}
	}
	want := o.Subtotal.Add(o.TaxAmount).Add(o.ShippingAmount).Sub(o.DiscountAmount)
	if !o.Total.Equal(want) {
		return &InvalidOrderDataError{Reason: "order total does not match its components"}
	}
	for i := range o.Items {
		if err := o.Items[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateGuest additionally requires guest contact identity.
func (o *Order) ValidateGuest() error {
	if o.GuestEmail == nil || *o.GuestEmail == "" {
		return &InvalidOrderDataError{Reason: "guest orders require an email"}
	}
	if o.GuestName == nil || *o.GuestName == "" {
		return &InvalidOrderDataError{Reason: "guest orders require a name"}
	}
	return o.Validate()
}

// OrderItem is a purchase line owned by its order. Product name, sku and
// unit price are snapshots taken at purchase time and are never re-synced
// from the live product.
type OrderItem struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     int64           `db:"order_id" json:"order_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	ProductSKU  string          `db:"product_sku" json:"product_sku"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	Currency    string          `db:"currency" json:"currency"`
	Quantity    int             `db:"quantity" json:"quantity"`
	TotalPrice  decimal.Decimal `db:"total_price" json:"total_price"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// NewOrderItem snapshots the product into a line item priced at unitPrice.
func NewOrderItem(product *Product, unitPrice money.Money, quantity int) *OrderItem {
	item := &OrderItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		ProductSKU:  product.SKU,
		Currency:    unitPrice.Currency,
		Quantity:    quantity,
	}
	item.SetUnitPrice(unitPrice)
	return item
}

// SetUnitPrice sets the price snapshot and recomputes the line total.
func (i *OrderItem) SetUnitPrice(unitPrice money.Money) {
	i.UnitPrice = unitPrice.Amount
	i.Currency = unitPrice.Currency
	i.TotalPrice = unitPrice.MulInt(i.Quantity).Amount
}

// SetQuantity changes the quantity and recomputes the line total.
func (i *OrderItem) SetQuantity(quantity int) {
	i.Quantity = quantity
	i.TotalPrice = i.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// UnitPriceMoney returns the snapshotted unit price as Money.
func (i *OrderItem) UnitPriceMoney() money.Money {
	return money.Money{Amount: i.UnitPrice, Currency: i.Currency}
}

// TotalPriceMoney returns the line total as Money.
func (i *OrderItem) TotalPriceMoney() money.Money {
	return money.Money{Amount: i.TotalPrice, Currency: i.Currency}
}

// Validate checks line-item invariants.
func (i *OrderItem) Validate() error {
	if i.ProductID < 1 {
		return &InvalidOrderDataError{Reason: "order item product id must be positive"}
	}
	if i.Quantity < 1 {
		return &InvalidOrderDataError{Reason: "order item quantity must be at least 1"}
	}
	if i.ProductName == "" || i.ProductSKU == "" {
		return &InvalidOrderDataError{Reason: "order item requires a product name and sku snapshot"}
	}
	if i.UnitPrice.IsNegative() {
		return &InvalidOrderDataError{Reason: "order item unit price must not be negative"}
	}
	if !i.TotalPrice.Equal(i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))) {
		return &InvalidOrderDataError{Reason: "order item total does not match unit price times quantity"}
	}
	return nil
}

// PaymentStatus is the local payment lifecycle state.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusSucceeded  PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

// Payment is the local record of a gateway payment intent, 1:1 with an
// order. Created once per order and mutated only by the payment service.
type Payment struct {
	ID                    int64           `db:"id" json:"id"`
	OrderID               int64           `db:"order_id" json:"order_id"`
	StripePaymentIntentID string          `db:"stripe_payment_intent_id" json:"stripe_payment_intent_id"`
	StripePaymentMethodID *string         `db:"stripe_payment_method_id" json:"stripe_payment_method_id,omitempty"`
	StripeCustomerID      *string         `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	Amount                decimal.Decimal `db:"amount" json:"amount"`
	RefundedAmount        decimal.Decimal `db:"refunded_amount" json:"refunded_amount"`
	Currency              string          `db:"currency" json:"currency"`
	Status                PaymentStatus   `db:"status" json:"status"`
	PaymentMethodDetails  JSONMap         `db:"payment_method_details" json:"payment_method_details,omitempty"`
	StripeMetadata        JSONMap         `db:"stripe_metadata" json:"stripe_metadata,omitempty"`
	FailureReason         *string         `db:"failure_reason" json:"failure_reason,omitempty"`
	FailureCode           *string         `db:"failure_code" json:"failure_code,omitempty"`
	PaidAt                *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	FailedAt              *time.Time      `db:"failed_at" json:"failed_at,omitempty"`
	RefundedAt            *time.Time      `db:"refunded_at" json:"refunded_at,omitempty"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at" json:"updated_at"`
}

// AmountMoney returns the charged amount as Money.
func (p *Payment) AmountMoney() money.Money {
	return money.Money{Amount: p.Amount, Currency: p.Currency}
}

// MarkSucceeded records a successful charge.
func (p *Payment) MarkSucceeded(paymentMethodID string, details JSONMap) {
	p.Status = PaymentStatusSucceeded
	if paymentMethodID != "" {
		p.StripePaymentMethodID = &paymentMethodID
	}
	if len(details) > 0 {
		p.PaymentMethodDetails = details
	}
	now := time.Now().UTC()
	p.PaidAt = &now
	p.FailureReason = nil
	p.FailureCode = nil
}

// MarkFailed records a failed charge attempt.
func (p *Payment) MarkFailed(reason, code string) {
	p.Status = PaymentStatusFailed
	p.FailureReason = &reason
	if code != "" {
		p.FailureCode = &code
	}
	now := time.Now().UTC()
	p.FailedAt = &now
}

// MarkRefunded records a full refund of a succeeded charge.
func (p *Payment) MarkRefunded() {
	p.Status = PaymentStatusRefunded
	p.RefundedAmount = p.Amount
	now := time.Now().UTC()
	p.RefundedAt = &now
}
