package types

import "fmt"

// OrderResponse is the exchange's reply to an order submission.
// Price is the fill price when the exchange reports one; 0 means the
// caller should assume the submitted limit price.
type OrderResponse struct {
	OrderID string  `json:"orderID"`
	Status  string  `json:"status"`
	Price   float64 `json:"price,string"`
	Size    float64 `json:"size,string"`
}

// Filled reports whether the response indicates a completed fill.
func (r *OrderResponse) Filled() bool {
	switch r.Status {
	case "filled", "matched", "success":
		return true
	}
	return false
}

// OrderError is a typed error for exchange order operations.
type OrderError struct {
	StatusCode int
	Message    string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order error (status %d): %s", e.StatusCode, e.Message)
}
