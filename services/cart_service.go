package services

import (
	"context"
	"errors"
	"net/http"

	"ecommerce-api/models"
	"ecommerce-api/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AddToCartRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

// CartService handles cart line CRUD. Lines are owned by the user; the only
// other actor allowed to touch them is the checkout transaction, which clears
// them on commit.
type CartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	logger      *zap.Logger
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository, logger *zap.Logger) *CartService {
	return &CartService{cartRepo: cartRepo, productRepo: productRepo, logger: logger}
}

// GetCart returns the user's cart lines with products attached.
func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) ([]models.CartItem, *ServiceError) {
	items, err := s.cartRepo.Snapshot(ctx, userID)
	if err != nil {
		s.logger.Error("failed to fetch cart", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to fetch cart"}
	}
	return items, nil
}

// AddToCart creates the (user, product) line or replaces its quantity.
func (s *CartService) AddToCart(ctx context.Context, userID uuid.UUID, req *AddToCartRequest) (*models.CartItem, *ServiceError) {
	if _, err := s.productRepo.FindByID(ctx, req.ProductID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &ServiceError{StatusCode: http.StatusNotFound, Message: "Product not found"}
		}
		s.logger.Error("failed to verify product", zap.String("product_id", req.ProductID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to add to cart"}
	}

	item := &models.CartItem{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	}
	if err := s.cartRepo.Upsert(ctx, item); err != nil {
		s.logger.Error("failed to upsert cart item", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to add to cart"}
	}
	return item, nil
}

// RemoveFromCart deletes one line; 403 when the caller does not own it.
func (s *CartService) RemoveFromCart(ctx context.Context, userID, itemID uuid.UUID) *ServiceError {
	item, err := s.cartRepo.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &ServiceError{StatusCode: http.StatusNotFound, Message: "Cart item not found"}
		}
		s.logger.Error("failed to fetch cart item", zap.String("item_id", itemID.String()), zap.Error(err))
		return &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to remove cart item"}
	}
	if item.UserID != userID {
		return &ServiceError{StatusCode: http.StatusForbidden, Message: "Forbidden"}
	}

	if err := s.cartRepo.Delete(ctx, itemID); err != nil {
		s.logger.Error("failed to delete cart item", zap.String("item_id", itemID.String()), zap.Error(err))
		return &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to remove cart item"}
	}
	return nil
}
