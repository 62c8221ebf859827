package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository defines persistence operations for the orders tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderLineItems(ctx context.Context, items []models.OrderLineItem) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, cursor string, limit int) (*OrderList, error)
	// TransitionOrder applies updates only while the order still carries the
	// expected statuses; false means another writer moved it first.
	TransitionOrder(ctx context.Context, orderID uuid.UUID, from StatusPair, updates map[string]any) (bool, error)
	// FindStalePending returns unpaid, unfulfilled orders created before the cutoff, oldest first.
	FindStalePending(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error)
}
