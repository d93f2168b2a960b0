package services_test

import (
	"context"
	"sync"

	"ecommerce-api/models"
	"ecommerce-api/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ---- mock cart repository ----

type mockCartRepo struct {
	snapshot     []models.CartItem
	snapshotErr  error
	upsertErr    error
	findItem     *models.CartItem
	findErr      error
	deleteErr    error
	clearErr     error
	clearedUsers []uuid.UUID
}

func (m *mockCartRepo) Snapshot(_ context.Context, _ uuid.UUID) ([]models.CartItem, error) {
	return m.snapshot, m.snapshotErr
}
func (m *mockCartRepo) Upsert(_ context.Context, _ *models.CartItem) error { return m.upsertErr }
func (m *mockCartRepo) FindByID(_ context.Context, _ uuid.UUID) (*models.CartItem, error) {
	return m.findItem, m.findErr
}
func (m *mockCartRepo) Delete(_ context.Context, _ uuid.UUID) error { return m.deleteErr }
func (m *mockCartRepo) ClearForUser(_ context.Context, _ *gorm.DB, userID uuid.UUID) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.clearedUsers = append(m.clearedUsers, userID)
	return nil
}

// ---- mock order repository ----

type mockOrderRepo struct {
	createErrs    []error // consumed per Create call; nil entry means success
	createdOrders []models.Order
	itemsErr      error
	createdItems  []models.OrderItem
	finalizeErr   error
	finalized     *models.Order
	userOrders    []models.Order
	userOrdersErr error
	foundOrder    *models.Order
	foundErr      error
}

func (m *mockOrderRepo) Create(_ context.Context, _ *gorm.DB, order *models.Order) error {
	var err error
	if len(m.createErrs) > 0 {
		err = m.createErrs[0]
		m.createErrs = m.createErrs[1:]
	}
	if err != nil {
		return err
	}
	m.createdOrders = append(m.createdOrders, *order)
	return nil
}
func (m *mockOrderRepo) CreateItems(_ context.Context, _ *gorm.DB, items []models.OrderItem) error {
	if m.itemsErr != nil {
		return m.itemsErr
	}
	m.createdItems = append(m.createdItems, items...)
	return nil
}
func (m *mockOrderRepo) Finalize(_ context.Context, _ *gorm.DB, order *models.Order) error {
	if m.finalizeErr != nil {
		return m.finalizeErr
	}
	cp := *order
	m.finalized = &cp
	return nil
}
func (m *mockOrderRepo) FindByUserID(_ context.Context, _ uuid.UUID) ([]models.Order, error) {
	return m.userOrders, m.userOrdersErr
}
func (m *mockOrderRepo) FindByID(_ context.Context, _ uuid.UUID) (*models.Order, error) {
	return m.foundOrder, m.foundErr
}

// ---- mock product repository ----

// mockProductRepo keeps an in-memory stock ledger guarded by a mutex so
// concurrent reservation tests exercise the check-and-decrement contract.
// Status follows the ledger: draining a product to zero flips it to
// out_of_stock, mirroring the conditional UPDATE.
type mockProductRepo struct {
	mu       sync.Mutex
	stock    map[uuid.UUID]int
	status   map[uuid.UUID]models.ProductStatus
	products map[uuid.UUID]*models.Product
	reserved []uuid.UUID
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{
		stock:    make(map[uuid.UUID]int),
		status:   make(map[uuid.UUID]models.ProductStatus),
		products: make(map[uuid.UUID]*models.Product),
	}
}

func (m *mockProductRepo) Create(_ context.Context, p *models.Product) error {
	m.products[p.ID] = p
	m.stock[p.ID] = p.Stock
	if p.Stock == 0 {
		m.status[p.ID] = models.ProductStatusOutOfStock
	} else {
		m.status[p.ID] = models.ProductStatusActive
	}
	return nil
}
func (m *mockProductRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}
func (m *mockProductRepo) FindAll(_ context.Context, _, _ int) ([]models.Product, int64, error) {
	return nil, 0, nil
}
func (m *mockProductRepo) Update(_ context.Context, p *models.Product) error {
	m.products[p.ID] = p
	return nil
}
func (m *mockProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.products, id)
	return nil
}
func (m *mockProductRepo) Reserve(_ context.Context, _ *gorm.DB, productID uuid.UUID, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stock[productID] < quantity {
		return repository.ErrInsufficientStock
	}
	m.stock[productID] -= quantity
	if m.stock[productID] == 0 {
		m.status[productID] = models.ProductStatusOutOfStock
	}
	m.reserved = append(m.reserved, productID)
	return nil
}

// ---- mock user repository ----

type mockUserRepo struct {
	userByEmail *models.User
	emailErr    error
	userByID    *models.User
	idErr       error
	createErr   error
	created     *models.User
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = user
	return nil
}
func (m *mockUserRepo) FindByEmail(_ context.Context, _ string) (*models.User, error) {
	return m.userByEmail, m.emailErr
}
func (m *mockUserRepo) FindByID(_ context.Context, _ uuid.UUID) (*models.User, error) {
	return m.userByID, m.idErr
}

// ---- mock event publisher ----

type mockPublisher struct {
	publishErr error
	events     []models.OrderCompletedEvent
	mu         sync.Mutex
}

func (m *mockPublisher) PublishOrderCompleted(_ context.Context, evt models.OrderCompletedEvent) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.mu.Lock()
	m.events = append(m.events, evt)
	m.mu.Unlock()
	return nil
}
