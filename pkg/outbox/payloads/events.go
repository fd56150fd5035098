package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/tindahan/marketplace-backend/pkg/enums"
)

// SellerShare is one seller's slice of a new order, so each seller can be notified
// with their own subtotal.
type SellerShare struct {
	SellerID      string `json:"seller_id"`
	SubtotalCents int64  `json:"subtotal_cents"`
	ItemCount     int    `json:"item_count"`
	UnitCount     int    `json:"unit_count"`
}

// OrderCreatedEvent announces a new order to buyer and sellers.
type OrderCreatedEvent struct {
	OrderID          uuid.UUID           `json:"order_id"`
	BuyerID          string              `json:"buyer_id"`
	SellerIDs        []string            `json:"seller_ids"`
	Sellers          []SellerShare       `json:"sellers"`
	PaymentMethod    enums.PaymentMethod `json:"payment_method"`
	PaymentStatus    enums.PaymentStatus `json:"payment_status"`
	TotalCents       int64               `json:"total_cents"`
	DeliveryFeeCents int64               `json:"delivery_fee_cents"`
	CreatedAt        time.Time           `json:"created_at"`
}

// OrderStatusChangedEvent is emitted for every accepted order status move.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	BuyerID   string            `json:"buyer_id"`
	SellerIDs []string          `json:"seller_ids"`
	Previous  enums.OrderStatus `json:"previous"`
	Current   enums.OrderStatus `json:"current"`
	Forced    bool              `json:"forced"`
	ChangedAt time.Time         `json:"changed_at"`
}

// OrderPaymentStatusChangedEvent is emitted for every accepted payment status move.
type OrderPaymentStatusChangedEvent struct {
	OrderID         uuid.UUID           `json:"order_id"`
	BuyerID         string              `json:"buyer_id"`
	SellerIDs       []string            `json:"seller_ids"`
	Previous        enums.PaymentStatus `json:"previous"`
	Current         enums.PaymentStatus `json:"current"`
	ReceiptImageURL *string             `json:"receipt_image_url,omitempty"`
	Forced          bool                `json:"forced"`
	ChangedAt       time.Time           `json:"changed_at"`
}
