package routes

import (
	"time"

	"ecommerce-api/controllers"
	"ecommerce-api/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RegisterRoutes wires every endpoint. Everything except register/login sits
// behind the auth middleware.
func RegisterRoutes(
	r *gin.Engine,
	jwtSecret []byte,
	ac *controllers.AuthController,
	pc *controllers.ProductController,
	cc *controllers.CartController,
	oc *controllers.OrderController,
) {
	auth := r.Group("/auth")
	auth.Use(middleware.RateLimitMiddleware(rate.Every(time.Minute/100), 50))
	auth.POST("/register", ac.Register)
	auth.POST("/login", ac.Login)

	authProtected := auth.Group("")
	authProtected.Use(middleware.AuthMiddleware(jwtSecret))
	authProtected.POST("/logout", ac.Logout)
	authProtected.GET("/me", ac.Me)

	api := r.Group("")
	api.Use(middleware.AuthMiddleware(jwtSecret))

	api.GET("/products", pc.ListProducts)
	api.GET("/products/:id", pc.GetProduct)
	api.POST("/products", pc.CreateProduct)
	api.PUT("/products/:id", pc.UpdateProduct)
	api.DELETE("/products/:id", pc.DeleteProduct)

	api.GET("/cart", cc.GetCart)
	api.POST("/cart", cc.AddToCart)
	api.DELETE("/cart/:id", cc.RemoveFromCart)

	api.GET("/orders", oc.GetOrders)
	api.GET("/orders/:id", oc.GetOrderByID)
	api.POST("/orders", oc.CreateOrder)
}
