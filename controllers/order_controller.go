package controllers

import (
	"errors"
	"net/http"

	"ecommerce-api/middleware"
	"ecommerce-api/models"
	"ecommerce-api/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type OrderController struct {
	checkoutService *services.CheckoutService
	orderService    *services.OrderService
}

func NewOrderController(checkoutService *services.CheckoutService, orderService *services.OrderService) *OrderController {
	return &OrderController{
		checkoutService: checkoutService,
		orderService:    orderService,
	}
}

// CreateOrder converts the caller's cart into an order.
func (oc *OrderController) CreateOrder(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req services.CheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	summary, err := oc.checkoutService.Checkout(ctx.Request.Context(), userID, &req)
	if err != nil {
		var validationErr *services.ValidationError
		switch {
		case errors.Is(err, services.ErrEmptyCart):
			ctx.JSON(http.StatusBadRequest, gin.H{"message": "Cart is empty"})
		case errors.As(err, &validationErr):
			ctx.JSON(http.StatusBadRequest, gin.H{
				"message": "Stock validation failed",
				"errors":  validationErr.Messages(),
			})
		default:
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to place order"})
		}
		return
	}

	ctx.JSON(http.StatusCreated, summary)
}

// GetOrders returns the caller's orders, newest first.
func (oc *OrderController) GetOrders(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orders, svcErr := oc.orderService.GetUserOrders(ctx.Request.Context(), userID)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}

	ctx.JSON(http.StatusOK, orders)
}

// GetOrderByID returns one order; forbidden unless the caller owns it.
func (oc *OrderController) GetOrderByID(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID format"})
		return
	}

	order, svcErr := oc.orderService.GetOrderByID(ctx.Request.Context(), userID, orderID)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, order)
}
