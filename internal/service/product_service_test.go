package service

import (
	"context"
	"testing"

	"retail-order-service/internal/models"
	"retail-order-service/internal/store/memstore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productInput(id int64, name, barcode string) *ProductInput {
	price := decimal.RequireFromString("42.50")
	stock := 10
	return &ProductInput{
		ProductID:     id,
		ProductName:   name,
		BrandName:     "Aachi",
		Category:      "Spices",
		Price:         &price,
		StockQuantity: &stock,
		Barcode:       barcode,
		Unit:          "g",
		ProductUnit:   "100",
	}
}

func TestAddProductDefaultsLanguage(t *testing.T) {
	svc := NewProductService(memstore.New(), nil)

	p, err := svc.AddProduct(context.Background(), productInput(1, "Chilli Powder", "890001"))
	require.NoError(t, err)
	assert.Equal(t, models.LanguageEnglish, p.Language)
	assert.Equal(t, 10, p.StockQuantity)
}

func TestAddProductValidation(t *testing.T) {
	svc := NewProductService(memstore.New(), nil)

	in := productInput(1, "Chilli Powder", "890001")
	in.StockQuantity = nil
	in.BrandName = ""
	_, err := svc.AddProduct(context.Background(), in)
	assertCode(t, err, KindValidation, CodeInvalidInput)
	assert.Contains(t, err.Error(), "brand_name")
	assert.Contains(t, err.Error(), "stock_quantity")

	in = productInput(1, "Chilli Powder", "890001")
	zero := decimal.Zero
	in.Price = &zero
	_, err = svc.AddProduct(context.Background(), in)
	assertCode(t, err, KindValidation, CodeInvalidInput)

	in = productInput(1, "Chilli Powder", "890001")
	in.Language = "French"
	_, err = svc.AddProduct(context.Background(), in)
	assertCode(t, err, KindValidation, CodeInvalidInput)

	in = productInput(1, "Chilli Powder", "890001")
	zeroStock := 0
	in.StockQuantity = &zeroStock
	_, err = svc.AddProduct(context.Background(), in)
	require.NoError(t, err)
}

func TestAddProductDuplicateNamesFields(t *testing.T) {
	svc := NewProductService(memstore.New(), nil)

	_, err := svc.AddProduct(context.Background(), productInput(1, "Chilli Powder", "890001"))
	require.NoError(t, err)

	_, err = svc.AddProduct(context.Background(), productInput(1, "Turmeric", "890001"))
	assertCode(t, err, KindConflict, CodeDuplicateProduct)

	se := AsError(err)
	assert.Equal(t, "Duplicate Product ID, Barcode already exists.", se.Message)
}

func TestListProductsUsesCache(t *testing.T) {
	repo := memstore.New()
	cache := &memCache{}
	svc := NewProductService(repo, cache)

	_, err := svc.AddProduct(context.Background(), productInput(2, "Turmeric", "890002"))
	require.NoError(t, err)
	_, err = svc.AddProduct(context.Background(), productInput(1, "Chilli Powder", "890001"))
	require.NoError(t, err)

	products, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, int64(1), products[0].ProductID)
	assert.True(t, cache.cached())

	require.NoError(t, repo.DeleteProduct(context.Background(), 2))
	cachedList, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, cachedList, 2)

	require.NoError(t, svc.DeleteProduct(context.Background(), 1))
	assert.False(t, cache.cached())
	fresh, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fresh)
}

func TestListProductsDropsListingReadBeforeStockChange(t *testing.T) {
	repo := memstore.New()
	cache := &memCache{}
	products := NewProductService(repo, cache)
	orders := NewOrderService(repo, &seqIDs{}, nil, cache, nil, decimal.NewFromInt(1))

	_, err := products.AddProduct(context.Background(), productInput(1, "Chilli Powder", "890001"))
	require.NoError(t, err)

	// an order commits between the listing's DB read and its cache write
	cache.beforeSet = func() {
		_, err := orders.PlaceOrder(context.Background(), &PlaceOrderRequest{
			Name: "Ravi", ShopName: "Ravi Stores", ShopID: 100001,
			Products: []OrderLineRequest{{ProductID: 1, Quantity: 4}},
		})
		require.NoError(t, err)
	}

	stale, err := products.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, stale[0].StockQuantity)
	assert.False(t, cache.cached())

	fresh, err := products.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, fresh[0].StockQuantity)
	assert.True(t, cache.cached())
}

func TestUpdateProduct(t *testing.T) {
	svc := NewProductService(memstore.New(), nil)
	_, err := svc.AddProduct(context.Background(), productInput(1, "Chilli Powder", "890001"))
	require.NoError(t, err)
	_, err = svc.AddProduct(context.Background(), productInput(2, "Turmeric", "890002"))
	require.NoError(t, err)

	stock := 3
	updated, err := svc.UpdateProduct(context.Background(), 1, &models.ProductPatch{StockQuantity: &stock})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.StockQuantity)
	assert.Equal(t, "Chilli Powder", updated.ProductName)

	negative := -1
	_, err = svc.UpdateProduct(context.Background(), 1, &models.ProductPatch{StockQuantity: &negative})
	assertCode(t, err, KindValidation, CodeInvalidInput)

	name := "Turmeric"
	_, err = svc.UpdateProduct(context.Background(), 1, &models.ProductPatch{ProductName: &name})
	assertCode(t, err, KindConflict, CodeDuplicateProduct)

	_, err = svc.UpdateProduct(context.Background(), 9, &models.ProductPatch{StockQuantity: &stock})
	assertCode(t, err, KindNotFound, CodeProductNotFound)
}

func TestDeleteProductNotFound(t *testing.T) {
	svc := NewProductService(memstore.New(), nil)

	err := svc.DeleteProduct(context.Background(), 1)
	assertCode(t, err, KindNotFound, CodeProductNotFound)
}
