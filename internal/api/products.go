package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"retail-order-service/internal/models"
	"retail-order-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type productRequest struct {
	ProductID     int64            `json:"product_id"`
	ProductName   string           `json:"product_name"`
	BrandName     string           `json:"brand_name"`
	Category      string           `json:"category"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *int             `json:"stock_quantity"`
	Barcode       string           `json:"barcode"`
	Unit          string           `json:"unit"`
	ProductUnit   string           `json:"product_unit"`
	Language      string           `json:"language"`
	ExpiryDate    string           `json:"expiry_date"`
}

type productPatchRequest struct {
	ProductID     *int64           `json:"product_id"`
	ProductName   *string          `json:"product_name"`
	BrandName     *string          `json:"brand_name"`
	Category      *string          `json:"category"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *int             `json:"stock_quantity"`
	Barcode       *string          `json:"barcode"`
	Unit          *string          `json:"unit"`
	ProductUnit   *string          `json:"product_unit"`
	Language      *string          `json:"language"`
	ExpiryDate    *string          `json:"expiry_date"`
}

// parseDate accepts a calendar date or an RFC 3339 timestamp
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid expiry_date %q", s)
}

// addProduct handles catalog additions
func (h *Handler) addProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	expiry, err := parseDate(req.ExpiryDate)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	product, err := h.products.AddProduct(c.Request.Context(), &service.ProductInput{
		ProductID:     req.ProductID,
		ProductName:   req.ProductName,
		BrandName:     req.BrandName,
		Category:      req.Category,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		Barcode:       req.Barcode,
		Unit:          req.Unit,
		ProductUnit:   req.ProductUnit,
		Language:      req.Language,
		ExpiryDate:    expiry,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Product added successfully",
		"product": product,
	})
}

// listProducts handles the public catalog listing
func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.products.ListProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// updateProduct handles partial product updates
func (h *Handler) updateProduct(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Invalid product ID")
		return
	}

	var req productPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if req.ProductID != nil && *req.ProductID != productID {
		badRequest(c, "product_id cannot be changed")
		return
	}

	patch := &models.ProductPatch{
		ProductName:   req.ProductName,
		BrandName:     req.BrandName,
		Category:      req.Category,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		Barcode:       req.Barcode,
		Unit:          req.Unit,
		ProductUnit:   req.ProductUnit,
		Language:      req.Language,
	}
	if req.ExpiryDate != nil {
		expiry, err := parseDate(*req.ExpiryDate)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		patch.ExpiryDate = expiry
	}

	product, err := h.products.UpdateProduct(c.Request.Context(), productID, patch)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Product updated successfully",
		"updatedProduct": product,
	})
}

// deleteProduct handles catalog removals
func (h *Handler) deleteProduct(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Invalid product ID")
		return
	}

	if err := h.products.DeleteProduct(c.Request.Context(), productID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}
