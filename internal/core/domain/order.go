package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus mirrors the order subsystem's lifecycle states the ledger drives.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCanceled   OrderStatus = "canceled"
)

// OrderItem is one product line of an order.
type OrderItem struct {
	ProductID uuid.UUID `json:"product_id"`
	SellerID  uuid.UUID `json:"seller_id"`
	Quantity  int64     `json:"quantity"`
	UnitPrice int64     `json:"unit_price"`
}

// LineTotal is price × quantity.
func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * i.Quantity
}

// Order is the ledger's view of an order owned by the order subsystem.
type Order struct {
	ID             uuid.UUID   `json:"id"`
	BuyerID        uuid.UUID   `json:"buyer_id"`
	Currency       string      `json:"currency"`
	Status         OrderStatus `json:"status"`
	Items          []OrderItem `json:"items"`
	ShippingAmount int64       `json:"shipping_amount"`
	TaxAmount      int64       `json:"tax_amount"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Subtotal sums all item lines.
func (o *Order) Subtotal() int64 {
	var sum int64
	for _, it := range o.Items {
		sum += it.LineTotal()
	}
	return sum
}

// Total is what the buyer is charged.
func (o *Order) Total() int64 {
	return o.Subtotal() + o.ShippingAmount + o.TaxAmount
}

// Item returns the line for productID, if any.
func (o *Order) Item(productID uuid.UUID) (OrderItem, bool) {
	for _, it := range o.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return OrderItem{}, false
}
