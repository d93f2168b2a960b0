package repository

import (
	"context"
	"errors"

	"ecommerce-api/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartRepository defines the interface for cart data access. Snapshot is the
// point-in-time read the checkout transaction starts from; ClearForUser runs
// inside the checkout transaction and is the only deletion path for a
// completed checkout.
type CartRepository interface {
	Snapshot(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	Upsert(ctx context.Context, item *models.CartItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.CartItem, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ClearForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

// GormCartRepository implements CartRepository using GORM.
type GormCartRepository struct {
	db *gorm.DB
}

func NewGormCartRepository(db *gorm.DB) CartRepository {
	return &GormCartRepository{db: db}
}

// Snapshot returns all cart lines for the user with their product preloaded.
// A line whose product was deleted is returned with a nil Product so the
// validator can report it explicitly instead of silently skipping it.
func (r *GormCartRepository) Snapshot(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Upsert creates the (user, product) line or replaces its quantity.
func (r *GormCartRepository) Upsert(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
		}).
		Create(item).Error
}

func (r *GormCartRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *GormCartRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.CartItem{}, "id = ?", id).Error
}

// ClearForUser deletes all cart lines for the user inside tx.
func (r *GormCartRepository) ClearForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	return tx.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}
