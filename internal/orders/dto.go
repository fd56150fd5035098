package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/tindahan/marketplace-backend/pkg/db/models"
	"github.com/tindahan/marketplace-backend/pkg/enums"
	"github.com/tindahan/marketplace-backend/pkg/money"
)

// OrderItemDTO is one snapshot line as returned by the API.
type OrderItemDTO struct {
	ProductID   string       `json:"productId"`
	ProductName string       `json:"productName"`
	Quantity    int          `json:"quantity"`
	Price       money.Amount `json:"price"`
	Image       string       `json:"image,omitempty"`
	SellerID    string       `json:"sellerId"`
}

type ShippingAddressDTO struct {
	Address        string `json:"address,omitempty"`
	RecipientName  string `json:"recipientName"`
	RecipientPhone string `json:"recipientPhone"`
}

// OrderDTO is the API view of an order. The seller fields are only set on seller reads.
type OrderDTO struct {
	ID              uuid.UUID            `json:"id"`
	BuyerID         string               `json:"buyerId"`
	Items           []OrderItemDTO       `json:"items"`
	ShippingAddress ShippingAddressDTO   `json:"shippingAddress"`
	ShippingMethod  enums.ShippingMethod `json:"shippingMethod"`
	PaymentMethod   enums.PaymentMethod  `json:"paymentMethod"`
	DeliveryFee     money.Amount         `json:"deliveryFee"`
	TotalAmount     money.Amount         `json:"totalAmount"`
	OrderStatus     enums.OrderStatus    `json:"orderStatus"`
	PaymentStatus   enums.PaymentStatus  `json:"paymentStatus"`
	ReceiptImageURL *string              `json:"receiptImageUrl,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
	Version         int64                `json:"version"`
	SellerIDs       []string             `json:"sellerIds"`
	SellerItems     []OrderItemDTO       `json:"sellerItems,omitempty"`
	SellerTotal     *money.Amount        `json:"sellerTotal,omitempty"`
	SellerItemCount *int                 `json:"sellerItemCount,omitempty"`
	Lock            LockState            `json:"lock"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// TransitionResult reports the outcome of a status or payment move for downstream notification.
type TransitionResult struct {
	Field    enums.StatusField `json:"field"`
	Previous string            `json:"previous"`
	Current  string            `json:"current"`
	Changed  bool              `json:"changed"`
	Order    OrderDTO          `json:"order"`
}

// StatusChangeDTO is one audit row. Forced marks an admin override of the edit lock.
type StatusChangeDTO struct {
	Field     enums.StatusField `json:"field"`
	From      string            `json:"from"`
	To        string            `json:"to"`
	ActorID   string            `json:"actorId"`
	ActorRole enums.ActorRole   `json:"actorRole"`
	Forced    bool              `json:"forced"`
	ChangedAt time.Time         `json:"changedAt"`
}

type OrderHistory struct {
	OrderID uuid.UUID         `json:"orderId"`
	Changes []StatusChangeDTO `json:"changes"`
}

func toHistory(orderID uuid.UUID, rows []models.StatusChange) OrderHistory {
	history := OrderHistory{OrderID: orderID, Changes: make([]StatusChangeDTO, 0, len(rows))}
	for _, row := range rows {
		history.Changes = append(history.Changes, StatusChangeDTO{
			Field:     row.Field,
			From:      row.FromValue,
			To:        row.ToValue,
			ActorID:   row.ActorID,
			ActorRole: row.ActorRole,
			Forced:    row.Forced,
			ChangedAt: row.CreatedAt.UTC(),
		})
	}
	return history
}

func toItemDTOs(items []models.OrderItem) []OrderItemDTO {
	out := make([]OrderItemDTO, len(items))
	for i, item := range items {
		out[i] = OrderItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       money.Cents(item.PriceCents),
			Image:       item.Image,
			SellerID:    item.SellerID,
		}
	}
	return out
}

// ToOrderDTO renders the full order view used by buyers and admins.
func ToOrderDTO(order models.Order, lock LockState) OrderDTO {
	return OrderDTO{
		ID:      order.ID,
		BuyerID: order.BuyerID,
		Items:   toItemDTOs(order.Items),
		ShippingAddress: ShippingAddressDTO{
			Address:        order.ShippingAddress.Address,
			RecipientName:  order.ShippingAddress.RecipientName,
			RecipientPhone: order.ShippingAddress.RecipientPhone,
		},
		ShippingMethod:  order.ShippingMethod,
		PaymentMethod:   order.PaymentMethod,
		DeliveryFee:     money.Cents(order.DeliveryFeeCents),
		TotalAmount:     money.Cents(order.TotalCents),
		OrderStatus:     order.OrderStatus,
		PaymentStatus:   order.PaymentStatus,
		ReceiptImageURL: order.ReceiptImageURL,
		CreatedAt:       order.CreatedAt.UTC(),
		UpdatedAt:       order.UpdatedAt.UTC(),
		Version:         order.Version,
		SellerIDs:       order.SellerIDs(),
		Lock:            lock,
	}
}

// ToSellerOrderDTO adds sellerID's partition to the full view.
func ToSellerOrderDTO(order models.Order, sellerID string, lock LockState) OrderDTO {
	dto := ToOrderDTO(order, lock)
	partition := PartitionFor(order, sellerID)
	total := partition.SellerTotal
	count := partition.ItemCount
	dto.SellerItems = toItemDTOs(partition.Items)
	dto.SellerTotal = &total
	dto.SellerItemCount = &count
	return dto
}
