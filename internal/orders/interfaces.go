package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tindahan/marketplace-backend/pkg/db/models"
	"github.com/tindahan/marketplace-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their seller index.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Create inserts the order and one order_sellers row per distinct seller.
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByBuyer(ctx context.Context, buyerID string, params pagination.Params) ([]models.Order, string, error)
	ListBySeller(ctx context.Context, sellerID string, params pagination.Params) ([]models.Order, string, error)
	// ListSellerOrdersBetween returns every order with a line from sellerID created in [from, to).
	ListSellerOrdersBetween(ctx context.Context, sellerID string, from, to time.Time) ([]models.Order, error)
	// UpdateIfVersion writes the mutable fields only when the stored version still equals expected.
	UpdateIfVersion(ctx context.Context, order *models.Order, expected int64) (bool, error)
	InsertStatusChanges(ctx context.Context, changes []models.StatusChange) error
	ListStatusChanges(ctx context.Context, orderID uuid.UUID) ([]models.StatusChange, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
