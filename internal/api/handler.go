package api

import (
	"context"
	"net/http"
	"time"

	"retail-order-service/internal/service"
	"retail-order-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orders   *service.OrderService
	products *service.ProductService
	accounts *service.AccountService
	tokens   TokenParser
	checks   map[string]Pinger
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler. checks are probed by /ready.
func NewHandler(
	orders *service.OrderService,
	products *service.ProductService,
	accounts *service.AccountService,
	tokens TokenParser,
	checks map[string]Pinger,
) *Handler {
	return &Handler{
		orders:   orders,
		products: products,
		accounts: accounts,
		tokens:   tokens,
		checks:   checks,
		logger:   util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(prometheusMiddleware())
	router.Use(loggerMiddleware(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/signup", h.signup)
		authGroup.POST("/login", h.login)
		authGroup.POST("/forgot-password", h.forgotPassword)
		authGroup.POST("/verify-otp", h.verifyOTP)
	}

	api.GET("/products/all", h.listProducts)

	authed := api.Group("", authMiddleware(h.tokens))
	{
		authed.POST("/orders", h.placeOrder)
		authed.GET("/orders/shop/:shopid", h.listOrdersByShop)
		authed.GET("/orders/:billId", h.getOrder)
	}

	admin := api.Group("", authMiddleware(h.tokens), adminOnly())
	{
		admin.GET("/orders", h.listOrders)
		admin.PUT("/orders/:billId/approve", h.approveOrder)
		admin.PUT("/orders/:billId/reject", h.rejectOrder)

		admin.POST("/products/add", h.addProduct)
		admin.PUT("/products/update/:id", h.updateProduct)
		admin.DELETE("/products/delete/:id", h.deleteProduct)

		admin.GET("/users/customers", h.listCustomers)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"failing": failed,
			"time":    time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}
