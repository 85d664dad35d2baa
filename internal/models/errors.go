package models

import "fmt"

// InvalidOrderDataError signals that a draft or aggregate failed business
// validation. It is surfaced to the caller and never retried.
type InvalidOrderDataError struct {
	Reason string
}

func (e *InvalidOrderDataError) Error() string {
	return "invalid order data: " + e.Reason
}

// InsufficientStockError signals that a reservation exceeded the tracked
// stock of a product. It carries enough detail for a precise client response.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested=%d available=%d",
		e.ProductID, e.Requested, e.Available)
}

// ProductNotFoundError signals a reference to a product that does not exist.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %d", e.ProductID)
}

// OrderNotFoundError signals a reference to an order that does not exist.
type OrderNotFoundError struct {
	OrderID int64
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("order not found: %d", e.OrderID)
}

// UserNotFoundError signals a reference to a user that does not exist.
type UserNotFoundError struct {
	UserID int64
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("user not found: %d", e.UserID)
}

// PaymentProcessingError wraps gateway and payment-record failures. The
// underlying cause is kept for diagnostics but never exposed raw to clients.
type PaymentProcessingError struct {
	Message string
	Err     error
}

func (e *PaymentProcessingError) Error() string {
	if e.Err != nil {
		return "payment processing failed: " + e.Message + ": " + e.Err.Error()
	}
	return "payment processing failed: " + e.Message
}

func (e *PaymentProcessingError) Unwrap() error {
	return e.Err
}
