package api

import (
	"strconv"
	"strings"
	"time"

	"retail-order-service/internal/auth"
	"retail-order-service/internal/service"
	"retail-order-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	claimsKey       = "claims"
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// TokenParser verifies bearer tokens
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

// requestIDMiddleware propagates or assigns a request id
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// loggerMiddleware writes one structured line per request
func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// authMiddleware requires a valid bearer token
func authMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || token == "" || token == header {
			abortWithError(c, &service.Error{Kind: service.KindUnauthorized, Code: "MISSING_TOKEN", Message: "Authentication required"})
			return
		}

		claims, err := tokens.Parse(token)
		if err != nil {
			abortWithError(c, &service.Error{Kind: service.KindUnauthorized, Code: "INVALID_TOKEN", Message: "Invalid or expired token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// adminOnly must run after authMiddleware
func adminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentClaims(c).IsAdmin() {
			abortWithError(c, &service.Error{Kind: service.KindForbidden, Code: "ADMIN_ONLY", Message: "Admin access required"})
			return
		}
		c.Next()
	}
}

func currentClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return &auth.Claims{}
}

// canAccessShop reports whether the caller may act for shopID
func canAccessShop(c *gin.Context, shopID int64) bool {
	claims := currentClaims(c)
	return claims.IsAdmin() || claims.ShopID == shopID
}

func forbiddenShop(c *gin.Context) {
	respondError(c, &service.Error{Kind: service.KindForbidden, Code: "FORBIDDEN_SHOP", Message: "Access to this shop is not allowed"})
}

func abortWithError(c *gin.Context, err error) {
	respondError(c, err)
	c.Abort()
}
