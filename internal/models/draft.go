package models

import (
	"strings"

	"github.com/Leeman92/symfony-headless-ecommerce-sub001/internal/money"
)

// OrderItemDraft is a single requested purchase line. A nil
// UnitPriceOverride means the current product price applies.
type OrderItemDraft struct {
	ProductID         int64        `json:"product_id"`
	Quantity          int          `json:"quantity"`
	UnitPriceOverride *money.Money `json:"unit_price_override,omitempty"`
}

// Validate rejects non-positive product ids and quantities.
func (d OrderItemDraft) Validate() error {
	if d.ProductID < 1 {
		return &InvalidOrderDataError{Reason: "draft item product id must be positive"}
	}
	if d.Quantity < 1 {
		return &InvalidOrderDataError{Reason: "draft item quantity must be at least 1"}
	}
	return nil
}

// OrderDraft is the caller-supplied input the builder assembles into a
// persisted order. Adjustments and addresses are optional; currency may be
// left blank to be established by the first priced item.
type OrderDraft struct {
	Items           []OrderItemDraft `json:"items"`
	Currency        string           `json:"currency,omitempty"`
	TaxAmount       *money.Money     `json:"tax_amount,omitempty"`
	ShippingAmount  *money.Money     `json:"shipping_amount,omitempty"`
	DiscountAmount  *money.Money     `json:"discount_amount,omitempty"`
	BillingAddress  *Address         `json:"billing_address,omitempty"`
	ShippingAddress *Address         `json:"shipping_address,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	Metadata        JSONMap          `json:"metadata,omitempty"`
}

// NewOrderDraft normalizes and validates a draft: at least one valid item,
// trimmed currency and notes, and metadata stripped of blank keys.
func NewOrderDraft(items []OrderItemDraft, currency string) (*OrderDraft, error) {
	d := &OrderDraft{
		Items:    items,
		Currency: strings.ToUpper(strings.TrimSpace(currency)),
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks draft-level invariants and re-normalizes mutable fields.
func (d *OrderDraft) Validate() error {
	if len(d.Items) < 1 {
		return &InvalidOrderDataError{Reason: "order draft must contain at least one item"}
	}
	for _, item := range d.Items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	d.Currency = strings.ToUpper(strings.TrimSpace(d.Currency))
	d.Notes = strings.TrimSpace(d.Notes)
	if len(d.Metadata) > 0 {
		cleaned := make(JSONMap, len(d.Metadata))
		for k, v := range d.Metadata {
			if strings.TrimSpace(k) == "" {
				continue
			}
			cleaned[k] = v
		}
		d.Metadata = cleaned
	}
	return nil
}

// GuestCustomerData identifies an unauthenticated buyer. Email and name are
// mandatory for guest checkout.
type GuestCustomerData struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// NewGuestCustomerData builds guest data from already-assembled fields.
func NewGuestCustomerData(email, name, phone string) (GuestCustomerData, error) {
	g := GuestCustomerData{
		Email: strings.TrimSpace(email),
		Name:  strings.TrimSpace(name),
		Phone: strings.TrimSpace(phone),
	}
	if err := g.Validate(); err != nil {
		return GuestCustomerData{}, err
	}
	return g, nil
}

// NewGuestCustomerDataFromParts builds guest data from raw name parts; a
// last name is required when the name arrives split.
func NewGuestCustomerDataFromParts(email, firstName, lastName, phone string) (GuestCustomerData, error) {
	if strings.TrimSpace(lastName) == "" {
		return GuestCustomerData{}, &InvalidOrderDataError{Reason: "guest last name is required"}
	}
	name := strings.TrimSpace(strings.TrimSpace(firstName) + " " + strings.TrimSpace(lastName))
	return NewGuestCustomerData(email, name, phone)
}

// Validate requires a guest email and name.
func (g GuestCustomerData) Validate() error {
	if g.Email == "" {
		return &InvalidOrderDataError{Reason: "guest email is required"}
	}
	if g.Name == "" {
		return &InvalidOrderDataError{Reason: "guest name is required"}
	}
	return nil
}
