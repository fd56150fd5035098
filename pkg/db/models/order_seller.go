package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderSeller indexes orders by the sellers that own at least one line.
type OrderSeller struct {
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;primaryKey"`
	SellerID       string    `gorm:"column:seller_id;primaryKey;index:idx_order_sellers_seller_created,priority:1"`
	OrderCreatedAt time.Time `gorm:"column:order_created_at;not null;index:idx_order_sellers_seller_created,priority:2"`
}

func (OrderSeller) TableName() string {
	return "order_sellers"
}
