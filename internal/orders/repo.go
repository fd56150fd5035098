package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tindahan/marketplace-backend/pkg/db/models"
	"github.com/tindahan/marketplace-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return err
	}
	sellers := order.SellerIDs()
	rows := make([]models.OrderSeller, 0, len(sellers))
	for _, sellerID := range sellers {
		rows = append(rows, models.OrderSeller{
			OrderID:        order.ID,
			SellerID:       sellerID,
			OrderCreatedAt: order.CreatedAt,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID string, params pagination.Params) ([]models.Order, string, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("orders.buyer_id = ?", buyerID)
	return r.page(query, params)
}

func (r *repository) ListBySeller(ctx context.Context, sellerID string, params pagination.Params) ([]models.Order, string, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Joins("JOIN order_sellers ON order_sellers.order_id = orders.id").
		Where("order_sellers.seller_id = ?", sellerID)
	return r.page(query, params)
}

func (r *repository) page(query *gorm.DB, params pagination.Params) ([]models.Order, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		query = query.Where(
			"orders.created_at < ? OR (orders.created_at = ? AND orders.id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Order
	err = query.
		Order("orders.created_at DESC").
		Order("orders.id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, "", err
	}

	page, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return page, next, nil
}

func (r *repository) ListSellerOrdersBetween(ctx context.Context, sellerID string, from, to time.Time) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Joins("JOIN order_sellers ON order_sellers.order_id = orders.id").
		Where("order_sellers.seller_id = ?", sellerID).
		Where("order_sellers.order_created_at >= ? AND order_sellers.order_created_at < ?", from.UTC(), to.UTC()).
		Order("orders.created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateIfVersion(ctx context.Context, order *models.Order, expected int64) (bool, error) {
	if order == nil {
		return false, fmt.Errorf("order required")
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND version = ?", order.ID, expected).
		Updates(map[string]any{
			"order_status":      order.OrderStatus,
			"payment_status":    order.PaymentStatus,
			"receipt_image_url": order.ReceiptImageURL,
			"version":           expected + 1,
			"updated_at":        order.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) InsertStatusChanges(ctx context.Context, changes []models.StatusChange) error {
	if len(changes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&changes).Error
}

func (r *repository) ListStatusChanges(ctx context.Context, orderID uuid.UUID) ([]models.StatusChange, error) {
	var rows []models.StatusChange
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("field ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
