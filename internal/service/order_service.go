package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"retail-order-service/internal/models"
	"retail-order-service/internal/store"
	"retail-order-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderService places orders against live stock and moves them through
// approval or rejection
type OrderService struct {
	repo     store.Repository
	ids      BillIDSource
	events   EventPublisher
	catalog  CatalogCache
	idem     IdempotencyStore
	minTotal decimal.Decimal
	now      func() time.Time
	logger   *zap.Logger
}

// NewOrderService creates a new order service. events, catalog and idem may be nil.
func NewOrderService(
	repo store.Repository,
	ids BillIDSource,
	events EventPublisher,
	catalog CatalogCache,
	idem IdempotencyStore,
	minTotal decimal.Decimal,
) *OrderService {
	return &OrderService{
		repo:     repo,
		ids:      ids,
		events:   events,
		catalog:  catalog,
		idem:     idem,
		minTotal: minTotal,
		now:      time.Now,
		logger:   util.GetLogger(),
	}
}

// PlaceOrderRequest represents a request to place an order
type PlaceOrderRequest struct {
	Name           string             `json:"name"`
	ShopName       string             `json:"shopname"`
	ShopID         int64              `json:"shopid"`
	Products       []OrderLineRequest `json:"products"`
	IdempotencyKey string             `json:"-"`
}

// OrderLineRequest represents a cart line
type OrderLineRequest struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Unit      string `json:"unit,omitempty"`
}

// PlaceOrderResult carries the stored order. Replayed is set when the
// idempotency key had already produced it.
type PlaceOrderResult struct {
	Order    *models.Order
	Replayed bool
}

// RejectOrderResult reports what a rejection gave back to the catalog
type RejectOrderResult struct {
	Order             *models.Order
	RestoredUnits     int
	SkippedProductIDs []int64
}

// PlaceOrder reserves stock for every line and stores the order. Either all
// lines are reserved and the order is persisted, or nothing changes.
func (s *OrderService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (res *PlaceOrderResult, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder",
		util.AttrShopID.Int64(req.ShopID),
		util.AttrLineCount.Int(len(req.Products)))
	defer func() {
		if res != nil {
			span.SetAttributes(util.AttrBillID.String(res.Order.BillID))
		}
		util.EndSpan(span, err, errorCode(err))
	}()

	if err := validatePlaceOrder(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues(err.Code).Inc()
		return nil, err
	}

	if strings.TrimSpace(req.IdempotencyKey) != "" && s.idem != nil {
		return s.placeIdempotent(ctx, req)
	}

	order, err := s.placeOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	return &PlaceOrderResult{Order: order}, nil
}

// placeIdempotent places the order once per (shop, key). A replay must carry
// the same request it was first seen with.
func (s *OrderService) placeIdempotent(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResult, error) {
	key := idempotencyScope(req.ShopID, req.IdempotencyKey)
	fingerprint := requestFingerprint(req)

	claimed, existing, err := s.idem.Claim(ctx, key, fingerprint)
	switch {
	case err != nil:
		s.logger.Warn("Idempotency claim failed, placing without it",
			zap.String("idempotency_key", key), zap.Error(err))
		order, err := s.placeOrder(ctx, req)
		if err != nil {
			return nil, err
		}
		return &PlaceOrderResult{Order: order}, nil

	case !claimed && existing.Fingerprint != fingerprint:
		util.OrdersFailedTotal.WithLabelValues(CodeIdempotencyKeyReused).Inc()
		return nil, newError(KindConflict, CodeIdempotencyKeyReused,
			"Idempotency-Key was already used for a different order")

	case !claimed && existing.Pending():
		return nil, newError(KindConflict, CodeRequestInFlight, "A request with this Idempotency-Key is already in progress")

	case !claimed:
		s.logger.Info("Duplicate order request detected",
			zap.String("idempotency_key", key),
			zap.String("bill_id", existing.BillID))
		order, err := s.GetOrder(ctx, existing.BillID)
		if err != nil {
			return nil, err
		}
		if order.ShopID != req.ShopID {
			return nil, newError(KindConflict, CodeIdempotencyKeyReused,
				"Idempotency-Key was already used for a different order")
		}
		return &PlaceOrderResult{Order: order, Replayed: true}, nil
	}

	order, err := s.placeOrder(ctx, req)
	if err != nil {
		if relErr := s.idem.Release(ctx, key, fingerprint); relErr != nil {
			s.logger.Warn("Failed to release idempotency key", zap.Error(relErr))
		}
		return nil, err
	}
	record := models.IdempotencyRecord{Fingerprint: fingerprint, BillID: order.BillID}
	if err := s.idem.Complete(ctx, key, record); err != nil {
		s.logger.Warn("Failed to record idempotency key", zap.Error(err))
	}
	return &PlaceOrderResult{Order: order}, nil
}

// idempotencyScope namespaces a client key by shop so two shops never share one
func idempotencyScope(shopID int64, key string) string {
	return fmt.Sprintf("%d:%s", shopID, strings.TrimSpace(key))
}

// requestFingerprint is a name-based UUID over everything that shapes the order
func requestFingerprint(req *PlaceOrderRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s|%s", req.ShopID, strings.TrimSpace(req.Name), strings.TrimSpace(req.ShopName))
	for _, line := range req.Products {
		fmt.Fprintf(&b, "|%d:%d:%s", line.ProductID, line.Quantity, line.Unit)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(b.String())).String()
}

func validatePlaceOrder(req *PlaceOrderRequest) *Error {
	if len(req.Products) == 0 {
		return validationError(CodeEmptyCart, "No products in the order")
	}
	if req.ShopID <= 0 {
		return validationError(CodeInvalidInput, "Shop ID is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return validationError(CodeInvalidInput, "Name is required")
	}
	if strings.TrimSpace(req.ShopName) == "" {
		return validationError(CodeInvalidInput, "Shop name is required")
	}
	for _, line := range req.Products {
		if line.Quantity < 1 {
			return validationError(CodeInvalidQuantity,
				fmt.Sprintf("Quantity for product ID %d must be at least 1", line.ProductID))
		}
	}
	return nil
}

func (s *OrderService) placeOrder(ctx context.Context, req *PlaceOrderRequest) (*models.Order, error) {
	start := time.Now()
	var order *models.Order

	err := s.repo.InTx(ctx, func(tx store.Repository) error {
		total := decimal.Zero
		lines := make([]models.OrderLine, 0, len(req.Products))

		for _, item := range req.Products {
			product, err := tx.ReserveStock(ctx, item.ProductID, item.Quantity)
			switch {
			case errors.Is(err, store.ErrNotFound):
				return newError(KindNotFound, CodeProductNotFound,
					fmt.Sprintf("Product ID %d not found", item.ProductID))
			case errors.Is(err, store.ErrInsufficientStock):
				return newError(KindConflict, CodeInsufficientStock,
					fmt.Sprintf("Insufficient stock for %s", product.ProductName))
			case err != nil:
				return unexpected("Error placing order", err)
			}

			total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))

			unit := item.Unit
			if unit == "" {
				unit = product.Unit
			}
			lines = append(lines, models.OrderLine{
				ProductID:   product.ProductID,
				ProductName: product.ProductName,
				Quantity:    item.Quantity,
				Unit:        unit,
			})
		}

		if total.LessThan(s.minTotal) {
			return validationError(CodeOrderTotalTooLow,
				fmt.Sprintf("Order total must be at least %s", s.minTotal.StringFixed(2)))
		}

		order = &models.Order{
			BillID:      s.ids.Next(len(lines)),
			Name:        strings.TrimSpace(req.Name),
			ShopName:    strings.TrimSpace(req.ShopName),
			ShopID:      req.ShopID,
			TotalAmount: total,
			OrderedAt:   s.now().UTC(),
			Products:    lines,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return unexpected("Error placing order", err)
		}
		return nil
	})
	util.StockReserveLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		se := AsError(err)
		util.OrdersFailedTotal.WithLabelValues(se.Code).Inc()
		if se.Kind == KindUnexpected {
			s.logger.Error("Order placement failed", zap.Int64("shop_id", req.ShopID), zap.Error(err))
		}
		return nil, se
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.String("bill_id", order.BillID),
		zap.Int64("shop_id", order.ShopID),
		zap.String("total_amount", order.TotalAmount.String()))

	s.invalidateCatalog(ctx)
	s.publish(models.EventTypeOrderPlaced, func() error {
		return s.events.PublishOrderPlaced(ctx, &models.OrderPlacedEvent{
			BaseEvent:   s.baseEvent(models.EventTypeOrderPlaced),
			BillID:      order.BillID,
			ShopID:      order.ShopID,
			ShopName:    order.ShopName,
			TotalAmount: order.TotalAmount,
			Lines:       models.LineData(order.Products),
		})
	})

	return order, nil
}

// ApproveOrder marks a pending order approved. Approval is terminal.
func (s *OrderService) ApproveOrder(ctx context.Context, billID string) (_ *models.Order, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ApproveOrder", util.AttrBillID.String(billID))
	defer func() { util.EndSpan(span, err, errorCode(err)) }()

	order, err := s.repo.ApproveOrder(ctx, billID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, newError(KindNotFound, CodeOrderNotFound, "Order not found")
	case errors.Is(err, store.ErrAlreadyApproved):
		return nil, newError(KindConflict, CodeAlreadyApproved, "Order already approved")
	case err != nil:
		return nil, unexpected("Error approving order", err)
	}

	util.OrdersApprovedTotal.Inc()
	s.logger.Info("Order approved", zap.String("bill_id", billID))

	s.publish(models.EventTypeOrderApproved, func() error {
		return s.events.PublishOrderApproved(ctx, &models.OrderApprovedEvent{
			BaseEvent:   s.baseEvent(models.EventTypeOrderApproved),
			BillID:      order.BillID,
			ShopID:      order.ShopID,
			TotalAmount: order.TotalAmount,
		})
	})

	return order, nil
}

// RejectOrder deletes a pending order and returns its quantities to stock
// in one transaction. Lines whose product has left the catalog are skipped.
func (s *OrderService) RejectOrder(ctx context.Context, billID string) (_ *RejectOrderResult, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.RejectOrder", util.AttrBillID.String(billID))
	defer func() { util.EndSpan(span, err, errorCode(err)) }()

	var result *RejectOrderResult
	err = s.repo.InTx(ctx, func(tx store.Repository) error {
		order, err := tx.DeletePendingOrder(ctx, billID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return newError(KindNotFound, CodeOrderNotFound, "Order not found")
		case errors.Is(err, store.ErrAlreadyApproved):
			return newError(KindConflict, CodeCannotRejectApproved, "Cannot reject an approved order")
		case err != nil:
			return unexpected("Error rejecting order", err)
		}

		result = &RejectOrderResult{Order: order}
		for _, line := range order.Products {
			err := tx.RestoreStock(ctx, line.ProductID, line.Quantity)
			if errors.Is(err, store.ErrNotFound) {
				result.SkippedProductIDs = append(result.SkippedProductIDs, line.ProductID)
				continue
			}
			if err != nil {
				return unexpected("Error rejecting order", err)
			}
			result.RestoredUnits += line.Quantity
		}
		return nil
	})
	if err != nil {
		se := AsError(err)
		if se.Kind == KindUnexpected {
			s.logger.Error("Order rejection failed", zap.String("bill_id", billID), zap.Error(err))
		}
		return nil, se
	}

	util.OrdersRejectedTotal.Inc()
	util.StockUnitsRestoredTotal.Add(float64(result.RestoredUnits))
	s.logger.Info("Order rejected and stock restored",
		zap.String("bill_id", billID),
		zap.Int("restored_units", result.RestoredUnits),
		zap.Int64s("skipped_product_ids", result.SkippedProductIDs))

	s.invalidateCatalog(ctx)
	s.publish(models.EventTypeOrderRejected, func() error {
		restored := make([]models.OrderLineData, 0, len(result.Order.Products))
		for _, l := range models.LineData(result.Order.Products) {
			if !containsID(result.SkippedProductIDs, l.ProductID) {
				restored = append(restored, l)
			}
		}
		return s.events.PublishOrderRejected(ctx, &models.OrderRejectedEvent{
			BaseEvent:         s.baseEvent(models.EventTypeOrderRejected),
			BillID:            result.Order.BillID,
			ShopID:            result.Order.ShopID,
			RestoredLines:     restored,
			SkippedProductIDs: result.SkippedProductIDs,
		})
	})

	return result, nil
}

// GetOrder retrieves an order by bill id
func (s *OrderService) GetOrder(ctx context.Context, billID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.repo.GetOrder(ctx, billID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindNotFound, CodeOrderNotFound, "Order not found")
	}
	if err != nil {
		return nil, unexpected("Error fetching order", err)
	}
	return order, nil
}

// ListOrders returns every order, newest first. No orders is an empty list.
func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, unexpected("Error fetching orders", err)
	}
	return orders, nil
}

// ListOrdersByShop returns a shop's orders, newest first. A shop without
// orders is reported as not found.
func (s *OrderService) ListOrdersByShop(ctx context.Context, shopID int64) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrdersByShop")
	defer span.End()

	if shopID <= 0 {
		return nil, validationError(CodeInvalidInput, "Shop ID is required")
	}

	orders, err := s.repo.ListOrdersByShop(ctx, shopID)
	if err != nil {
		return nil, unexpected("Error fetching orders", err)
	}
	if len(orders) == 0 {
		return nil, newError(KindNotFound, CodeShopOrdersNotFound, "No orders found for this shop")
	}
	return orders, nil
}

func (s *OrderService) baseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: s.now().UTC(),
	}
}

// publish sends an event when a publisher is configured. Failures are
// logged and never reach the caller: the order change is already committed.
func (s *OrderService) publish(eventType string, send func() error) {
	if s.events == nil {
		return
	}
	if err := send(); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(eventType).Inc()
		s.logger.Error("Failed to publish event", zap.String("event_type", eventType), zap.Error(err))
	}
}

func (s *OrderService) invalidateCatalog(ctx context.Context) {
	if s.catalog == nil {
		return
	}
	if err := s.catalog.InvalidateProducts(ctx); err != nil {
		s.logger.Warn("Failed to invalidate catalog cache", zap.Error(err))
	}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
