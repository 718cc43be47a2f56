package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"retail-order-service/internal/models"
	"retail-order-service/internal/store/memstore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderFixture struct {
	repo   *memstore.Store
	svc    *OrderService
	events *recordingPublisher
	cache  *memCache
	idem   *memIdempotency
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	f := &orderFixture{
		repo:   memstore.New(),
		events: &recordingPublisher{},
		cache:  &memCache{},
		idem:   newMemIdempotency(),
	}
	f.svc = NewOrderService(f.repo, &seqIDs{}, f.events, f.cache, f.idem, decimal.NewFromInt(1))
	return f
}

func (f *orderFixture) addProduct(t *testing.T, id int64, name, price string, stock int) {
	t.Helper()
	require.NoError(t, f.repo.CreateProduct(context.Background(), &models.Product{
		ProductID:     id,
		ProductName:   name,
		Barcode:       name + "-bc",
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		Unit:          "Kg",
		Language:      models.LanguageEnglish,
	}))
}

func (f *orderFixture) stock(t *testing.T, id int64) int {
	t.Helper()
	p, err := f.repo.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

func placeReq(lines ...OrderLineRequest) *PlaceOrderRequest {
	return &PlaceOrderRequest{Name: "Ravi", ShopName: "Ravi Stores", ShopID: 100001, Products: lines}
}

func assertCode(t *testing.T, err error, kind Kind, code string) {
	t.Helper()
	var se *Error
	require.True(t, errors.As(err, &se), "expected service error, got %v", err)
	assert.Equal(t, kind, se.Kind)
	assert.Equal(t, code, se.Code)
}

func TestPlaceOrderComputesTotalAndReservesStock(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, 1, "Rice", "10.00", 5)

	res, err := f.svc.PlaceOrder(context.Background(), placeReq(OrderLineRequest{ProductID: 1, Quantity: 3}))
	require.NoError(t, err)

	order := res.Order
	assert.True(t, decimal.RequireFromString("30.00").Equal(order.TotalAmount))
	assert.False(t, order.IsApproved)
	assert.Equal(t, "1001_1", order.BillID)
	require.Len(t, order.Products, 1)
	assert.Equal(t, "Rice", order.Products[0].ProductName)
	assert.Equal(t, "Kg", order.Products[0].Unit)
	assert.Equal(t, 2, f.stock(t, 1))

	stored, err := f.svc.GetOrder(context.Background(), order.BillID)
	require.NoError(t, err)
	assert.Equal(t, order.BillID, stored.BillID)

	require.Len(t, f.events.placed, 1)
	assert.Equal(t, order.BillID, f.events.placed[0].BillID)
	assert.Equal(t, 1, f.cache.invalidated)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), placeReq())
	assertCode(t, err, KindValidation, CodeEmptyCart)
}

func TestPlaceOrderRejectsNonPositiveQuantity(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, 1, "Rice", "10.00", 5)

	_, err := f.svc.PlaceOrder(context.Background(), placeReq(OrderLineRequest{ProductID: 1, Quantity: 0}))
	assertCode(t, err, KindValidation, CodeInvalidQuantity)
	assert.Equal(t, 5, f.stock(t, 1))
}

func TestPlaceOrderInsufficientStockLeavesStockUnchanged(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, 1, "Rice", "10.00", 2)

	_, err := f.svc.PlaceOrder(context.Background(), placeReq(OrderLineRequest{ProductID: 1, Quantity: 10}))
	assertCode(t, err, KindConflict, CodeInsufficientStock)
	assert.Contains(t, err.Error(), "Rice")
	assert.Equal(t, 2, f.stock(t, 1))

	orders, err := f.svc.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPlaceOrderRollsBackEarlierLines(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, 1, "Rice", "10.00", 5)
	f.addProduct(t, 2, "Dal", "20.00", 1)

	_, err := f.svc.PlaceOrder(context.Background(), placeReq(
		OrderLineRequest{ProductID: 1, Quantity: 3},
		OrderLineRequest{ProductID: 2, Quantity: 2},
	))
	assertCode(t, err, KindConflict, CodeInsufficientStock)
	assert.Equal(t, 5, f.stock(t, 1))
	assert.Equal(t, 1, f.stock(t, 2))

	_, err = f.svc.PlaceOrder(context.Background(), placeReq(
		OrderLineRequest{ProductID: 1, Quantity: 3},
		OrderLineRequest{ProductID: 99, Quantity: 1},
	))
	assertCode(t, err, KindNotFound, CodeProductNotFound)
	assert.Contains(t, err.Error(), "99")
	assert.Equal(t, 5, f.stock(t, 1))
	assert.Empty(t, f.events.placed)
}

func TestPlaceOrderBelowMinimumTotal(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, 1, "Salt", "0.50", 5)

	_, err := f.svc.PlaceOrder(context.Background(), placeReq(OrderLineRequest{ProductID: 1, Quantity: 1}))
	assertCode(t, err, KindValidation, CodeOrderTotalTooLow)
	assert.Equal(t, 5, f.stock(t, 1))
}

func TestPlaceOrderKeepsExplicitUnit(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, 1, "Rice", "10.00", 5)

	res, err := f.svc.PlaceOrder(context.Background(), placeReq(OrderLineRequest{ProductID: 1, Quantity: 1, Unit: "Bag"}))
	require.NoError(t, err)
	assert.Equal(t, "Bag", res.Order.Products[0].Unit)
}

func TestPlaceOrderPublishFailureDoesNotFailOrder(t *testing.T) {
	f := newOrderFixture(t)
	f.events.fail = true
	f.addProduct(t, 1, "Rice", "10.00", 5)

	_, err := f.svc.PlaceOrder(context.Background(), placeReq(OrderLineRequest{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, 4, f.stock(t, 1))
}

func TestPlaceOrderIdempotencyReplay(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, 1, "Rice", "10.00", 5)

	req := placeReq(OrderLineRequest{ProductID: 1, Quantity: 2})
	req.IdempotencyKey = "key-1"

	first, err := f.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := f.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.BillID, second.Order.BillID)
	assert.Equal(t, 3, f.stock(t, 1))
}

func TestPlaceOrderIdempotencyInFlightAndRelease(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, 1, "Rice", "10.00", 1)

	req := placeReq(OrderLineRequest{ProductID: 1, Quantity: 1})
	req.IdempotencyKey = "busy"
	_, _, err := f.idem.Claim(context.Background(), idempotencyScope(req.ShopID, "busy"), requestFingerprint(req))
	require.NoError(t, err)

	_, err = f.svc.PlaceOrder(context.Background(), req)
	assertCode(t, err, KindConflict, CodeRequestInFlight)

	failing := placeReq(OrderLineRequest{ProductID: 1, Quantity: 5})
	failing.IdempotencyKey = "retry"
	_, err = f.svc.PlaceOrder(context.Background(), failing)
	assertCode(t, err, KindConflict, CodeInsufficientStock)

	failing.Products[0].Quantity = 1
	res, err := f.svc.PlaceOrder(context.Background(), failing)
	require.NoError(t, err)
	assert.False(t, res.Replayed)
}

func TestPlaceOrderIdempotencyKeyIsScopedToShop(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, 1, "Rice", "10.00", 5)

	first := placeReq(OrderLineRequest{ProductID: 1, Quantity: 1})
	first.IdempotencyKey = "k"
	resA, err := f.svc.PlaceOrder(context.Background(), first)
	require.NoError(t, err)

	other := &PlaceOrderRequest{
		Name: "Meena", ShopName: "Meena Mart", ShopID: 200002,
		Products:       []OrderLineRequest{{ProductID: 1, Quantity: 1}},
		IdempotencyKey: "k",
	}
	resB, err := f.svc.PlaceOrder(context.Background(), other)
	require.NoError(t, err)
	assert.False(t, resB.Replayed)
	assert.Equal(t, int64(200002), resB.Order.ShopID)
	assert.Equal(t, "Meena Mart", resB.Order.ShopName)
	assert.NotEqual(t, resA.Order.BillID, resB.Order.BillID)
	assert.Equal(t, 3, f.stock(t, 1))
}

func TestPlaceOrderIdempotencyKeyReusedWithDifferentCart(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, 1, "Rice", "10.00", 5)

	req := placeReq(OrderLineRequest{ProductID: 1, Quantity: 1})
	req.IdempotencyKey = "k"
	_, err := f.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	changed := placeReq(OrderLineRequest{ProductID: 1, Quantity: 2})
	changed.IdempotencyKey = "k"
	_, err = f.svc.PlaceOrder(context.Background(), changed)
	assertCode(t, err, KindConflict, CodeIdempotencyKeyReused)
	assert.Equal(t, 4, f.stock(t, 1))
}

func TestPlaceOrderRequiresNameAndShopName(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, 1, "Rice", "10.00", 5)

	noName := placeReq(OrderLineRequest{ProductID: 1, Quantity: 1})
	noName.Name = "  "
	_, err := f.svc.PlaceOrder(context.Background(), noName)
	assertCode(t, err, KindValidation, CodeInvalidInput)

	noShop := placeReq(OrderLineRequest{ProductID: 1, Quantity: 1})
	noShop.ShopName = ""
	_, err = f.svc.PlaceOrder(context.Background(), noShop)
	assertCode(t, err, KindValidation, CodeInvalidInput)

	assert.Equal(t, 5, f.stock(t, 1))
}

func TestConcurrentPlacementsNeverOversell(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, 1, "Rice", "10.00", 10)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PlaceOrder(context.Background(), placeReq(OrderLineRequest{ProductID: 1, Quantity: 1}))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.True(t, IsKind(err, KindConflict))
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 0, f.stock(t, 1))

	orders, err := f.svc.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 10)
}

func TestApproveOrderTwice(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, 1, "Rice", "10.00", 5)

	res, err := f.svc.PlaceOrder(context.Background(), placeReq(OrderLineRequest{ProductID: 1, Quantity: 3}))
	require.NoError(t, err)

	approved, err := f.svc.ApproveOrder(context.Background(), res.Order.BillID)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)
	assert.Equal(t, 2, f.stock(t, 1))

	_, err = f.svc.ApproveOrder(context.Background(), res.Order.BillID)
	assertCode(t, err, KindConflict, CodeAlreadyApproved)

	_, err = f.svc.RejectOrder(context.Background(), res.Order.BillID)
	assertCode(t, err, KindConflict, CodeCannotRejectApproved)
	assert.Equal(t, 2, f.stock(t, 1))

	_, err = f.svc.ApproveOrder(context.Background(), "missing")
	assertCode(t, err, KindNotFound, CodeOrderNotFound)

	require.Len(t, f.events.approved, 1)
}

func TestRejectOrderRestoresStockAndDeletes(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, 1, "Rice", "10.00", 5)

	res, err := f.svc.PlaceOrder(context.Background(), placeReq(OrderLineRequest{ProductID: 1, Quantity: 3}))
	require.NoError(t, err)
	assert.Equal(t, 2, f.stock(t, 1))

	rejected, err := f.svc.RejectOrder(context.Background(), res.Order.BillID)
	require.NoError(t, err)
	assert.Equal(t, 3, rejected.RestoredUnits)
	assert.Empty(t, rejected.SkippedProductIDs)
	assert.Equal(t, 5, f.stock(t, 1))

	_, err = f.svc.GetOrder(context.Background(), res.Order.BillID)
	assertCode(t, err, KindNotFound, CodeOrderNotFound)

	_, err = f.svc.RejectOrder(context.Background(), res.Order.BillID)
	assertCode(t, err, KindNotFound, CodeOrderNotFound)

	require.Len(t, f.events.rejected, 1)
	assert.Len(t, f.events.rejected[0].RestoredLines, 1)
}

func TestRejectOrderSkipsDeletedProducts(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, 1, "Rice", "10.00", 5)
	f.addProduct(t, 2, "Dal", "20.00", 5)

	res, err := f.svc.PlaceOrder(context.Background(), placeReq(
		OrderLineRequest{ProductID: 1, Quantity: 2},
		OrderLineRequest{ProductID: 2, Quantity: 1},
	))
	require.NoError(t, err)
	require.NoError(t, f.repo.DeleteProduct(context.Background(), 2))

	rejected, err := f.svc.RejectOrder(context.Background(), res.Order.BillID)
	require.NoError(t, err)
	assert.Equal(t, 2, rejected.RestoredUnits)
	assert.Equal(t, []int64{2}, rejected.SkippedProductIDs)
	assert.Equal(t, 5, f.stock(t, 1))
}

func TestListOrdersByShop(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, 1, "Rice", "10.00", 10)

	_, err := f.svc.ListOrdersByShop(context.Background(), 100001)
	assertCode(t, err, KindNotFound, CodeShopOrdersNotFound)

	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }
	first, err := f.svc.PlaceOrder(context.Background(), placeReq(OrderLineRequest{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)

	now = now.Add(time.Hour)
	second, err := f.svc.PlaceOrder(context.Background(), placeReq(OrderLineRequest{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)

	orders, err := f.svc.ListOrdersByShop(context.Background(), 100001)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.Order.BillID, orders[0].BillID)
	assert.Equal(t, first.Order.BillID, orders[1].BillID)

	_, err = f.svc.ListOrdersByShop(context.Background(), 0)
	assertCode(t, err, KindValidation, CodeInvalidInput)
}

func TestListOrdersEmptyIsNotAnError(t *testing.T) {
	f := newOrderFixture(t)

	orders, err := f.svc.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrderServiceWithoutOptionalCollaborators(t *testing.T) {
	repo := memstore.New()
	svc := NewOrderService(repo, &seqIDs{}, nil, nil, nil, decimal.NewFromInt(1))
	require.NoError(t, repo.CreateProduct(context.Background(), &models.Product{
		ProductID: 1, ProductName: "Rice", Barcode: "r", Price: decimal.NewFromInt(10), StockQuantity: 1,
	}))

	req := placeReq(OrderLineRequest{ProductID: 1, Quantity: 1})
	req.IdempotencyKey = "ignored"
	res, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.RejectOrder(context.Background(), res.Order.BillID)
	require.NoError(t, err)
}
