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

// OrderService serves order reads; orders themselves are only ever created by
// the checkout transaction.
type OrderService struct {
	orderRepo repository.OrderRepository
	logger    *zap.Logger
}

func NewOrderService(orderRepo repository.OrderRepository, logger *zap.Logger) *OrderService {
	return &OrderService{orderRepo: orderRepo, logger: logger}
}

// GetUserOrders returns the user's orders, newest first.
func (s *OrderService) GetUserOrders(ctx context.Context, userID uuid.UUID) ([]models.Order, *ServiceError) {
	orders, err := s.orderRepo.FindByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to fetch orders", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to fetch orders"}
	}
	return orders, nil
}

// GetOrderByID returns one order; 403 when the requester does not own it.
func (s *OrderService) GetOrderByID(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, *ServiceError) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &ServiceError{StatusCode: http.StatusNotFound, Message: "Order not found"}
		}
		s.logger.Error("failed to fetch order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to fetch order"}
	}
	if order.UserID != userID {
		return nil, &ServiceError{StatusCode: http.StatusForbidden, Message: "Forbidden"}
	}
	return order, nil
}
