package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tindahan/marketplace-backend/pkg/enums"
)

// Order is the stored order document. Items and the shipping snapshot are
// written once at checkout and never updated.
type Order struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID          string               `gorm:"column:buyer_id;not null;index:idx_orders_buyer_created,priority:1"`
	Items            []OrderItem          `gorm:"column:items;type:jsonb;serializer:json;not null"`
	ShippingAddress  ShippingAddress      `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	ShippingMethod   enums.ShippingMethod `gorm:"column:shipping_method;type:text;not null"`
	PaymentMethod    enums.PaymentMethod  `gorm:"column:payment_method;type:text;not null"`
	DeliveryFeeCents int64                `gorm:"column:delivery_fee_cents;not null"`
	TotalCents       int64                `gorm:"column:total_cents;not null"`
	OrderStatus      enums.OrderStatus    `gorm:"column:order_status;type:text;not null"`
	PaymentStatus    enums.PaymentStatus  `gorm:"column:payment_status;type:text;not null"`
	ReceiptImageURL  *string              `gorm:"column:receipt_image_url"`
	Version          int64                `gorm:"column:version;not null"`
	CreatedAt        time.Time            `gorm:"column:created_at;not null;index:idx_orders_buyer_created,priority:2"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;not null"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem is one line of the cart snapshot.
type OrderItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Image       string `json:"image,omitempty"`
	Quantity    int    `json:"quantity"`
	PriceCents  int64  `json:"price_cents"`
	SellerID    string `json:"seller_id"`
}

// ShippingAddress is the delivery snapshot captured at checkout.
type ShippingAddress struct {
	Address        string `json:"address,omitempty"`
	RecipientName  string `json:"recipient_name"`
	RecipientPhone string `json:"recipient_phone"`
}

// SellerIDs returns the distinct sellers of the order in first-appearance order.
func (o Order) SellerIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	out := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if _, ok := seen[item.SellerID]; ok {
			continue
		}
		seen[item.SellerID] = struct{}{}
		out = append(out, item.SellerID)
	}
	return out
}

// HasSeller reports whether sellerID owns at least one line.
func (o Order) HasSeller(sellerID string) bool {
	for _, item := range o.Items {
		if item.SellerID == sellerID {
			return true
		}
	}
	return false
}
