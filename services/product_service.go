package services

import (
	"context"
	"errors"
	"net/http"

	"ecommerce-api/cache"
	"ecommerce-api/models"
	"ecommerce-api/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Price is a pointer: the required binding on a plain decimal would reject a
// legitimate 0.00 as absent.
type CreateProductRequest struct {
	Name  string           `json:"name" binding:"required,max=255"`
	Price *decimal.Decimal `json:"price" binding:"required"`
	Stock int              `json:"stock" binding:"gte=0"`
}

type UpdateProductRequest struct {
	Name  *string          `json:"name" binding:"omitempty,max=255"`
	Price *decimal.Decimal `json:"price"`
	Stock *int             `json:"stock" binding:"omitempty,gte=0"`
}

type ProductListResponse struct {
	Products []models.Product `json:"products"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
}

// ProductService handles product CRUD. Stock edits here are the product
// management path; checkout never goes through this service, it reserves
// stock through the repository's atomic decrement.
type ProductService struct {
	productRepo repository.ProductRepository
	cache       *cache.ProductCache
	logger      *zap.Logger
}

func NewProductService(productRepo repository.ProductRepository, productCache *cache.ProductCache, logger *zap.Logger) *ProductService {
	return &ProductService{productRepo: productRepo, cache: productCache, logger: logger}
}

func (s *ProductService) ListProducts(ctx context.Context, page, limit int) (*ProductListResponse, *ServiceError) {
	if s.cache != nil {
		var cached ProductListResponse
		if s.cache.GetProductList(ctx, page, limit, &cached) {
			return &cached, nil
		}
	}

	products, total, err := s.productRepo.FindAll(ctx, page, limit)
	if err != nil {
		s.logger.Error("failed to list products", zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to fetch products"}
	}

	resp := &ProductListResponse{Products: products, Total: total, Page: page, Limit: limit}
	if s.cache != nil {
		s.cache.SetProductListAsync(page, limit, resp)
	}
	return resp, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, *ServiceError) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &ServiceError{StatusCode: http.StatusNotFound, Message: "Product not found"}
		}
		s.logger.Error("failed to fetch product", zap.String("product_id", id.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to fetch product"}
	}
	return product, nil
}

func (s *ProductService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*models.Product, *ServiceError) {
	if req.Price == nil {
		return nil, &ServiceError{StatusCode: http.StatusBadRequest, Message: "Price is required"}
	}
	if req.Price.IsNegative() {
		return nil, &ServiceError{StatusCode: http.StatusBadRequest, Message: "Price must not be negative"}
	}

	product := &models.Product{
		ID:     uuid.New(),
		Name:   req.Name,
		Price:  *req.Price,
		Stock:  req.Stock,
		Status: productStatusForStock(req.Stock),
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		s.logger.Error("failed to create product", zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to create product"}
	}

	s.invalidateCache(ctx)
	return product, nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, id uuid.UUID, req *UpdateProductRequest) (*models.Product, *ServiceError) {
	product, svcErr := s.GetProduct(ctx, id)
	if svcErr != nil {
		return nil, svcErr
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, &ServiceError{StatusCode: http.StatusBadRequest, Message: "Price must not be negative"}
		}
		product.Price = *req.Price
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
		product.Status = productStatusForStock(*req.Stock)
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		s.logger.Error("failed to update product", zap.String("product_id", id.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to update product"}
	}

	s.invalidateCache(ctx)
	return product, nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, id uuid.UUID) *ServiceError {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &ServiceError{StatusCode: http.StatusNotFound, Message: "Product not found"}
		}
		s.logger.Error("failed to delete product", zap.String("product_id", id.String()), zap.Error(err))
		return &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to delete product"}
	}

	s.invalidateCache(ctx)
	return nil
}

func (s *ProductService) invalidateCache(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

// status is derived from stock: out_of_stock iff stock == 0.
func productStatusForStock(stock int) models.ProductStatus {
	if stock == 0 {
		return models.ProductStatusOutOfStock
	}
	return models.ProductStatusActive
}
