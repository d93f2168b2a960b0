package repository

import (
	"context"
	"errors"

	"ecommerce-api/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *models.Order) error
	CreateItems(ctx context.Context, tx *gorm.DB, items []models.OrderItem) error
	Finalize(ctx context.Context, tx *gorm.DB, order *models.Order) error
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// GormOrderRepository implements OrderRepository using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

// Create inserts the order header inside tx. Returns gorm.ErrDuplicatedKey
// when the order number collides; the checkout service retries with a fresh
// number.
func (r *GormOrderRepository) Create(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

// CreateItems inserts all line items inside tx.
func (r *GormOrderRepository) CreateItems(ctx context.Context, tx *gorm.DB, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&items).Error
}

// Finalize writes the accumulated total and terminal status inside tx.
func (r *GormOrderRepository) Finalize(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	return tx.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"total":  order.Total,
			"status": order.Status,
		}).Error
}

// FindByUserID returns the user's orders, newest first, with items preloaded.
func (r *GormOrderRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// FindByID returns one order with items regardless of owner; the service
// layer enforces ownership so it can distinguish 403 from 404.
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}
