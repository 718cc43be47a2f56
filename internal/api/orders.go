package api

import (
	"net/http"
	"strconv"

	"retail-order-service/internal/service"

	"github.com/gin-gonic/gin"
)

// placeOrder handles order placement. Customers may only order for their own shop.
func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	claims := currentClaims(c)
	if !claims.IsAdmin() && req.ShopID == 0 {
		req.ShopID = claims.ShopID
	}
	if !canAccessShop(c, req.ShopID) {
		forbiddenShop(c)
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	res, err := h.orders.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"message":      "Order placed successfully (Stock reduced)",
		"billId":       res.Order.BillID,
		"total_amount": res.Order.TotalAmount,
		"order":        res.Order,
	})
}

// approveOrder handles order approval
func (h *Handler) approveOrder(c *gin.Context) {
	order, err := h.orders.ApproveOrder(c.Request.Context(), c.Param("billId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order approved successfully",
		"order":   order,
	})
}

// rejectOrder handles order rejection with stock restore
func (h *Handler) rejectOrder(c *gin.Context) {
	res, err := h.orders.RejectOrder(c.Request.Context(), c.Param("billId"))
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{
		"message":       "Order rejected and stock restored successfully",
		"restoredUnits": res.RestoredUnits,
	}
	if len(res.SkippedProductIDs) > 0 {
		body["skippedProductIds"] = res.SkippedProductIDs
	}
	c.JSON(http.StatusOK, body)
}

// listOrders handles the admin listing of every order
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// listOrdersByShop handles a shop's order history
func (h *Handler) listOrdersByShop(c *gin.Context) {
	shopID, err := strconv.ParseInt(c.Param("shopid"), 10, 64)
	if err != nil || shopID <= 0 {
		badRequest(c, "Shop ID is required")
		return
	}
	if !canAccessShop(c, shopID) {
		forbiddenShop(c)
		return
	}

	orders, err := h.orders.ListOrdersByShop(c.Request.Context(), shopID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Orders fetched successfully",
		"totalOrders": len(orders),
		"orders":      orders,
	})
}

// getOrder handles get order by bill id
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("billId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !canAccessShop(c, order.ShopID) {
		forbiddenShop(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}
