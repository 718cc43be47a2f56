package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced   = "ORDER_PLACED"
	EventTypeOrderApproved = "ORDER_APPROVED"
	EventTypeOrderRejected = "ORDER_REJECTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published once the order and its stock decrements commit
type OrderPlacedEvent struct {
	BaseEvent
	BillID      string          `json:"bill_id"`
	ShopID      int64           `json:"shop_id"`
	ShopName    string          `json:"shop_name"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Lines       []OrderLineData `json:"lines"`
}

// OrderApprovedEvent published when an administrator approves an order
type OrderApprovedEvent struct {
	BaseEvent
	BillID      string          `json:"bill_id"`
	ShopID      int64           `json:"shop_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// OrderRejectedEvent published after rejection restored stock and deleted the order
type OrderRejectedEvent struct {
	BaseEvent
	BillID            string          `json:"bill_id"`
	ShopID            int64           `json:"shop_id"`
	RestoredLines     []OrderLineData `json:"restored_lines"`
	SkippedProductIDs []int64         `json:"skipped_product_ids,omitempty"`
}

// OrderLineData represents a line item in events
type OrderLineData struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// LineData converts order lines for event payloads.
func LineData(lines []OrderLine) []OrderLineData {
	out := make([]OrderLineData, 0, len(lines))
	for _, l := range lines {
		out = append(out, OrderLineData{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out
}
