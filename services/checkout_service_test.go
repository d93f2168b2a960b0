package services_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"ecommerce-api/models"
	"ecommerce-api/services"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var orderNumberPattern = regexp.MustCompile(`^ORD-[A-Z0-9]{8}$`)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func cartLine(userID uuid.UUID, product *models.Product, qty int) models.CartItem {
	item := models.CartItem{
		ID:       uuid.New(),
		UserID:   userID,
		Quantity: qty,
		Product:  product,
	}
	if product != nil {
		item.ProductID = product.ID
	} else {
		item.ProductID = uuid.New()
	}
	return item
}

func TestCheckout_EmptyCart(t *testing.T) {
	gormDB, _ := setupMockDB(t)
	cartRepo := &mockCartRepo{}
	orderRepo := &mockOrderRepo{}
	productRepo := newMockProductRepo()

	svc := services.NewCheckoutService(gormDB, cartRepo, orderRepo, productRepo, nil, zap.NewNop())

	summary, err := svc.Checkout(context.Background(), uuid.New(), &services.CheckoutRequest{Address: "1 Main St", Phone: "555-0100"})

	assert.ErrorIs(t, err, services.ErrEmptyCart)
	assert.Nil(t, summary)
	assert.Empty(t, orderRepo.createdOrders)
}

func TestCheckout_CollectsAllViolations(t *testing.T) {
	gormDB, _ := setupMockDB(t)
	userID := uuid.New()

	lowStock := &models.Product{ID: uuid.New(), Name: "Widget", Price: price("5.00"), Stock: 1}
	cartRepo := &mockCartRepo{snapshot: []models.CartItem{
		cartLine(userID, nil, 1),      // product deleted
		cartLine(userID, lowStock, 3), // not enough stock
	}}
	orderRepo := &mockOrderRepo{}
	productRepo := newMockProductRepo()

	svc := services.NewCheckoutService(gormDB, cartRepo, orderRepo, productRepo, nil, zap.NewNop())

	summary, err := svc.Checkout(context.Background(), userID, &services.CheckoutRequest{Address: "1 Main St", Phone: "555-0100"})

	assert.Nil(t, summary)
	var validationErr *services.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Len(t, validationErr.Violations, 2)
	assert.Equal(t, services.ViolationMissingProduct, validationErr.Violations[0].Kind)
	assert.Equal(t, services.ViolationInsufficientStock, validationErr.Violations[1].Kind)
	assert.Contains(t, validationErr.Violations[1].Message, "Widget")

	// nothing persisted, nothing reserved, cart untouched
	assert.Empty(t, orderRepo.createdOrders)
	assert.Empty(t, productRepo.reserved)
	assert.Empty(t, cartRepo.clearedUsers)
}

func TestCheckout_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	userID := uuid.New()

	product := &models.Product{ID: uuid.New(), Name: "Widget", Price: price("10.00"), Stock: 2}
	cartRepo := &mockCartRepo{snapshot: []models.CartItem{cartLine(userID, product, 2)}}
	orderRepo := &mockOrderRepo{}
	productRepo := newMockProductRepo()
	require.NoError(t, productRepo.Create(context.Background(), product))
	publisher := &mockPublisher{}

	svc := services.NewCheckoutService(gormDB, cartRepo, orderRepo, productRepo, publisher, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectCommit()

	summary, err := svc.Checkout(context.Background(), userID, &services.CheckoutRequest{Address: "1 Main St", Phone: "555-0100"})
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.Regexp(t, orderNumberPattern, summary.OrderNumber)
	assert.True(t, summary.Total.Equal(price("20.00")), "total = %s", summary.Total)

	require.Len(t, summary.Items, 1)
	item := summary.Items[0]
	assert.Equal(t, product.ID.String(), item.ProductID)
	assert.Equal(t, "Widget", item.ProductName)
	assert.Equal(t, 2, item.Quantity)
	assert.True(t, item.Price.Equal(price("10.00")))
	assert.True(t, item.Subtotal.Equal(price("20.00")))

	// stock decremented to zero through the ledger, flipping the status
	assert.Equal(t, 0, productRepo.stock[product.ID])
	assert.Equal(t, models.ProductStatusOutOfStock, productRepo.status[product.ID])

	// order finalized as completed with total == sum of subtotals
	require.NotNil(t, orderRepo.finalized)
	assert.Equal(t, models.OrderStatusCompleted, orderRepo.finalized.Status)
	assert.True(t, orderRepo.finalized.Total.Equal(price("20.00")))

	// cart cleared for exactly this user
	assert.Equal(t, []uuid.UUID{userID}, cartRepo.clearedUsers)

	// post-commit event published
	require.Len(t, publisher.events, 1)
	assert.Equal(t, summary.OrderNumber, publisher.events[0].OrderNumber)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckout_TotalMatchesSumOfSubtotals(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	userID := uuid.New()

	p1 := &models.Product{ID: uuid.New(), Name: "Widget", Price: price("19.99"), Stock: 10}
	p2 := &models.Product{ID: uuid.New(), Name: "Gadget", Price: price("0.05"), Stock: 10}
	cartRepo := &mockCartRepo{snapshot: []models.CartItem{
		cartLine(userID, p1, 3),
		cartLine(userID, p2, 7),
	}}
	orderRepo := &mockOrderRepo{}
	productRepo := newMockProductRepo()
	require.NoError(t, productRepo.Create(context.Background(), p1))
	require.NoError(t, productRepo.Create(context.Background(), p2))

	svc := services.NewCheckoutService(gormDB, cartRepo, orderRepo, productRepo, nil, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectCommit()

	summary, err := svc.Checkout(context.Background(), userID, &services.CheckoutRequest{Address: "1 Main St", Phone: "555-0100"})
	require.NoError(t, err)

	// 3*19.99 + 7*0.05 = 59.97 + 0.35 = 60.32, exactly
	assert.True(t, summary.Total.Equal(price("60.32")), "total = %s", summary.Total)

	sum := decimal.Zero
	for _, it := range summary.Items {
		assert.True(t, it.Subtotal.Equal(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))))
		sum = sum.Add(it.Subtotal)
	}
	assert.True(t, summary.Total.Equal(sum))
}

func TestCheckout_ReservationConflictRollsBack(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	userID := uuid.New()

	// Snapshot says 2 in stock, but the ledger has already been drained by a
	// concurrent checkout.
	product := &models.Product{ID: uuid.New(), Name: "Widget", Price: price("10.00"), Stock: 2}
	cartRepo := &mockCartRepo{snapshot: []models.CartItem{cartLine(userID, product, 2)}}
	orderRepo := &mockOrderRepo{}
	productRepo := newMockProductRepo()
	require.NoError(t, productRepo.Create(context.Background(), product))
	productRepo.stock[product.ID] = 1

	svc := services.NewCheckoutService(gormDB, cartRepo, orderRepo, productRepo, nil, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectRollback()

	summary, err := svc.Checkout(context.Background(), userID, &services.CheckoutRequest{Address: "1 Main St", Phone: "555-0100"})

	assert.Nil(t, summary)
	var validationErr *services.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Len(t, validationErr.Violations, 1)
	assert.Equal(t, services.ViolationInsufficientStock, validationErr.Violations[0].Kind)

	// rollback: ledger untouched, order not finalized, cart intact
	assert.Equal(t, 1, productRepo.stock[product.ID])
	assert.Nil(t, orderRepo.finalized)
	assert.Empty(t, cartRepo.clearedUsers)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckout_PersistenceFailureRollsBack(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	userID := uuid.New()

	product := &models.Product{ID: uuid.New(), Name: "Widget", Price: price("10.00"), Stock: 5}
	cartRepo := &mockCartRepo{snapshot: []models.CartItem{cartLine(userID, product, 1)}}
	orderRepo := &mockOrderRepo{itemsErr: errors.New("connection reset")}
	productRepo := newMockProductRepo()
	require.NoError(t, productRepo.Create(context.Background(), product))

	svc := services.NewCheckoutService(gormDB, cartRepo, orderRepo, productRepo, nil, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectRollback()

	summary, err := svc.Checkout(context.Background(), userID, &services.CheckoutRequest{Address: "1 Main St", Phone: "555-0100"})

	assert.Error(t, err)
	assert.Nil(t, summary)
	var validationErr *services.ValidationError
	assert.False(t, errors.As(err, &validationErr), "infrastructure failure must not surface as validation")
	assert.Empty(t, cartRepo.clearedUsers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckout_OrderNumberCollisionRetries(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	userID := uuid.New()

	product := &models.Product{ID: uuid.New(), Name: "Widget", Price: price("10.00"), Stock: 5}
	cartRepo := &mockCartRepo{snapshot: []models.CartItem{cartLine(userID, product, 1)}}
	orderRepo := &mockOrderRepo{createErrs: []error{gorm.ErrDuplicatedKey}}
	productRepo := newMockProductRepo()
	require.NoError(t, productRepo.Create(context.Background(), product))

	svc := services.NewCheckoutService(gormDB, cartRepo, orderRepo, productRepo, nil, zap.NewNop())

	// first attempt aborts on the unique index, second commits
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	summary, err := svc.Checkout(context.Background(), userID, &services.CheckoutRequest{Address: "1 Main St", Phone: "555-0100"})
	require.NoError(t, err)
	assert.Regexp(t, orderNumberPattern, summary.OrderNumber)
	require.Len(t, orderRepo.createdOrders, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckout_FreshOrderNumberPerAttempt(t *testing.T) {
	userID := uuid.New()
	product := &models.Product{ID: uuid.New(), Name: "Widget", Price: price("10.00"), Stock: 10}

	numbers := make(map[string]bool)
	for i := 0; i < 2; i++ {
		gormDB, mock := setupMockDB(t)
		cartRepo := &mockCartRepo{snapshot: []models.CartItem{cartLine(userID, product, 1)}}
		orderRepo := &mockOrderRepo{}
		productRepo := newMockProductRepo()
		require.NoError(t, productRepo.Create(context.Background(), product))

		svc := services.NewCheckoutService(gormDB, cartRepo, orderRepo, productRepo, nil, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectCommit()

		summary, err := svc.Checkout(context.Background(), userID, &services.CheckoutRequest{Address: "1 Main St", Phone: "555-0100"})
		require.NoError(t, err)
		numbers[summary.OrderNumber] = true
	}
	assert.Len(t, numbers, 2, "re-running checkout must produce a fresh order number")
}

func TestCheckout_PublishFailureDoesNotFailCheckout(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	userID := uuid.New()

	product := &models.Product{ID: uuid.New(), Name: "Widget", Price: price("10.00"), Stock: 5}
	cartRepo := &mockCartRepo{snapshot: []models.CartItem{cartLine(userID, product, 1)}}
	orderRepo := &mockOrderRepo{}
	productRepo := newMockProductRepo()
	require.NoError(t, productRepo.Create(context.Background(), product))
	publisher := &mockPublisher{publishErr: errors.New("broker unreachable")}

	svc := services.NewCheckoutService(gormDB, cartRepo, orderRepo, productRepo, publisher, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectCommit()

	summary, err := svc.Checkout(context.Background(), userID, &services.CheckoutRequest{Address: "1 Main St", Phone: "555-0100"})
	require.NoError(t, err)
	assert.NotNil(t, summary)
}

func TestCheckout_ConcurrentLastUnit(t *testing.T) {
	product := &models.Product{ID: uuid.New(), Name: "Widget", Price: price("10.00"), Stock: 1}

	// Two users race for the last unit against a shared ledger.
	productRepo := newMockProductRepo()
	require.NoError(t, productRepo.Create(context.Background(), product))

	type result struct {
		summary *models.OrderSummary
		err     error
	}
	results := make([]result, 2)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		gormDB, mock := setupMockDB(t)
		// the transaction either commits or rolls back depending on who
		// wins the ledger
		mock.MatchExpectationsInOrder(false)
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()

		userID := uuid.New()
		cartRepo := &mockCartRepo{snapshot: []models.CartItem{cartLine(userID, product, 1)}}
		svc := services.NewCheckoutService(gormDB, cartRepo, &mockOrderRepo{}, productRepo, nil, zap.NewNop())

		wg.Add(1)
		go func(i int, userID uuid.UUID) {
			defer wg.Done()
			s, err := svc.Checkout(context.Background(), userID, &services.CheckoutRequest{Address: "1 Main St", Phone: "555-0100"})
			results[i] = result{summary: s, err: err}
		}(i, userID)
	}
	wg.Wait()

	var succeeded, failed int
	for _, r := range results {
		if r.err == nil {
			succeeded++
		} else {
			var validationErr *services.ValidationError
			require.ErrorAs(t, r.err, &validationErr)
			failed++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one checkout wins the last unit")
	assert.Equal(t, 1, failed)
	assert.Equal(t, 0, productRepo.stock[product.ID])
	assert.Equal(t, models.ProductStatusOutOfStock, productRepo.status[product.ID])
}

func TestValidateStock_EmptySnapshotHasNoViolations(t *testing.T) {
	assert.Empty(t, services.ValidateStock(nil))
}

func TestValidateStock_ExactStockPasses(t *testing.T) {
	product := &models.Product{ID: uuid.New(), Name: "Widget", Price: price("1.00"), Stock: 2}
	snapshot := []models.CartItem{cartLine(uuid.New(), product, 2)}
	assert.Empty(t, services.ValidateStock(snapshot))
}
