package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"ecommerce-api/models"
	"ecommerce-api/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrEmptyCart is returned when a checkout is attempted with no cart lines.
var ErrEmptyCart = errors.New("cart is empty")

type StockViolationKind string

const (
	ViolationMissingProduct    StockViolationKind = "missing_product"
	ViolationInsufficientStock StockViolationKind = "insufficient_stock"
)

// StockViolation is one unsatisfiable cart line.
type StockViolation struct {
	Kind      StockViolationKind `json:"kind"`
	ProductID string             `json:"product_id,omitempty"`
	Message   string             `json:"message"`
}

// ValidationError carries every violation found in the snapshot, not just the
// first, so the caller can report them together.
type ValidationError struct {
	Violations []StockViolation
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("stock validation failed: %d violation(s)", len(e.Violations))
}

// Messages flattens the violations for the HTTP error body.
func (e *ValidationError) Messages() []string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return msgs
}

// CheckoutRequest is the POST /orders body.
type CheckoutRequest struct {
	Address string `json:"address" binding:"required,max=255"`
	Phone   string `json:"phone" binding:"required,max=50"`
}

// OrderEventPublisher publishes the post-commit order event. Publishing is
// best-effort and never affects the committed transaction.
type OrderEventPublisher interface {
	PublishOrderCompleted(ctx context.Context, evt models.OrderCompletedEvent) error
}

// CheckoutService converts a user's cart into a durable order as one atomic
// unit of work: snapshot read, stock validation, per-line reservation, order
// assembly and cart clearing either all commit or all roll back.
type CheckoutService struct {
	db          *gorm.DB
	cartRepo    repository.CartRepository
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	publisher   OrderEventPublisher
	logger      *zap.Logger
}

func NewCheckoutService(
	db *gorm.DB,
	cartRepo repository.CartRepository,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	publisher OrderEventPublisher,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		db:          db,
		cartRepo:    cartRepo,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		publisher:   publisher,
		logger:      logger,
	}
}

// ValidateStock checks every snapshot line against the stock it references
// and collects all violations. It is a pure function of the snapshot and a
// fast-fail only: a line that passes here can still lose a race with a
// concurrent checkout, and the reservation inside the transaction is what
// actually guarantees stock never goes negative.
func ValidateStock(snapshot []models.CartItem) []StockViolation {
	var violations []StockViolation
	for _, item := range snapshot {
		if item.Product == nil {
			violations = append(violations, StockViolation{
				Kind:      ViolationMissingProduct,
				ProductID: item.ProductID.String(),
				Message:   fmt.Sprintf("Product not found for cart item ID %s", item.ID),
			})
			continue
		}
		if item.Product.Stock < item.Quantity {
			violations = append(violations, StockViolation{
				Kind:      ViolationInsufficientStock,
				ProductID: item.ProductID.String(),
				Message:   fmt.Sprintf("Not enough stock for product '%s'", item.Product.Name),
			})
		}
	}
	return violations
}

const orderNumberMaxAttempts = 3

// Checkout runs the whole cart-to-order transaction for one user. On any
// failure nothing persists: no order, no stock decrement, no cart deletion.
func (s *CheckoutService) Checkout(ctx context.Context, userID uuid.UUID, req *CheckoutRequest) (*models.OrderSummary, error) {
	snapshot, err := s.cartRepo.Snapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	if len(snapshot) == 0 {
		return nil, ErrEmptyCart
	}

	if violations := ValidateStock(snapshot); len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	// The order-number unique index can reject an insert, which aborts the
	// whole Postgres transaction, so a collision retries the full unit of
	// work with a fresh number.
	var summary *models.OrderSummary
	var order models.Order
	for attempt := 0; attempt < orderNumberMaxAttempts; attempt++ {
		number, err := generateOrderNumber()
		if err != nil {
			return nil, fmt.Errorf("failed to generate order number: %w", err)
		}

		summary, order, err = s.runTransaction(ctx, userID, req, snapshot, number)
		if err == nil {
			break
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.logger.Warn("order number collision, retrying",
				zap.String("order_number", number),
				zap.Int("attempt", attempt+1))
			continue
		}
		return nil, err
	}
	if summary == nil {
		return nil, fmt.Errorf("failed to allocate a unique order number after %d attempts", orderNumberMaxAttempts)
	}

	s.logger.Info("checkout committed",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", userID.String()),
		zap.String("total", order.Total.String()),
		zap.Int("items", len(summary.Items)))

	if s.publisher != nil {
		evt := models.OrderCompletedEvent{
			Event:       "order.completed",
			OrderID:     order.ID.String(),
			OrderNumber: order.OrderNumber,
			UserID:      userID.String(),
			Total:       order.Total,
			Items:       summary.Items,
			Timestamp:   time.Now().UTC(),
		}
		if err := s.publisher.PublishOrderCompleted(ctx, evt); err != nil {
			s.logger.Warn("order event publish failed",
				zap.String("order_number", order.OrderNumber),
				zap.Error(err))
		}
	}

	return summary, nil
}

// runTransaction executes one attempt of the atomic unit of work. All five
// steps happen inside a single db.Transaction; returning an error rolls every
// effect back.
func (s *CheckoutService) runTransaction(
	ctx context.Context,
	userID uuid.UUID,
	req *CheckoutRequest,
	snapshot []models.CartItem,
	orderNumber string,
) (*models.OrderSummary, models.Order, error) {
	order := models.Order{
		ID:          uuid.New(),
		OrderNumber: orderNumber,
		UserID:      userID,
		Address:     req.Address,
		Phone:       req.Phone,
		Total:       decimal.Zero,
		Status:      models.OrderStatusPending,
	}

	var itemSummaries []models.OrderItemSummary

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, &order); err != nil {
			return err
		}

		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(snapshot))
		itemSummaries = make([]models.OrderItemSummary, 0, len(snapshot))

		for _, line := range snapshot {
			// Prices and quantities are fixed at snapshot time; the
			// reservation below is the authoritative stock check.
			if err := s.productRepo.Reserve(ctx, tx, line.ProductID, line.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return &ValidationError{Violations: []StockViolation{{
						Kind:      ViolationInsufficientStock,
						ProductID: line.ProductID.String(),
						Message:   fmt.Sprintf("Not enough stock for product '%s'", line.Product.Name),
					}}}
				}
				return err
			}

			subtotal := line.Product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			total = total.Add(subtotal)

			items = append(items, models.OrderItem{
				ID:        uuid.New(),
				OrderID:   order.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     line.Product.Price,
				Subtotal:  subtotal,
			})
			itemSummaries = append(itemSummaries, models.OrderItemSummary{
				ProductID:   line.ProductID.String(),
				ProductName: line.Product.Name,
				Quantity:    line.Quantity,
				Price:       line.Product.Price,
				Subtotal:    subtotal,
			})
		}

		if err := s.orderRepo.CreateItems(ctx, tx, items); err != nil {
			return err
		}

		order.Total = total
		order.Status = models.OrderStatusCompleted
		if err := s.orderRepo.Finalize(ctx, tx, &order); err != nil {
			return err
		}

		return s.cartRepo.ClearForUser(ctx, tx, userID)
	})
	if err != nil {
		return nil, order, err
	}

	return &models.OrderSummary{
		OrderNumber: order.OrderNumber,
		Total:       order.Total,
		Items:       itemSummaries,
	}, order, nil
}

const orderNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateOrderNumber returns "ORD-" followed by 8 characters drawn uniformly
// from [A-Z0-9]. Uniqueness is enforced by the order_number unique index plus
// the caller's retry loop, not by the generator.
func generateOrderNumber() (string, error) {
	buf := make([]byte, 8)
	max := big.NewInt(int64(len(orderNumberAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = orderNumberAlphabet[n.Int64()]
	}
	return "ORD-" + string(buf), nil
}
