package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"retail-order-service/internal/auth"
	"retail-order-service/internal/models"
	"retail-order-service/internal/service"
	"retail-order-service/internal/store/memstore"
	"retail-order-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	router   *gin.Engine
	repo     *memstore.Store
	tokens   *auth.Manager
	admin    string
	customer string
	shopID   int64
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := memstore.New()
	tokens := auth.NewManager("test-secret", time.Hour)
	ids, err := util.NewBillIDGenerator(1)
	require.NoError(t, err)

	orders := service.NewOrderService(repo, ids, nil, nil, nil, decimal.NewFromInt(1))
	products := service.NewProductService(repo, nil)
	accounts := service.NewAccountService(repo, tokens, nil, service.AccountOptions{OTPTTL: time.Minute})

	router := gin.New()
	NewHandler(orders, products, accounts, tokens, map[string]Pinger{"store": repo}).SetupRoutes(router)

	f := &apiFixture{router: router, repo: repo, tokens: tokens}

	admin := &models.Account{Name: "Admin", Role: models.RoleAdmin, Email: "admin@example.com"}
	require.NoError(t, repo.CreateAccount(context.Background(), admin))
	f.admin, err = tokens.Issue(admin)
	require.NoError(t, err)

	shop := "Ravi Stores"
	customer := &models.Account{Name: "Ravi", Role: models.RoleCustomer, Email: "ravi@example.com", ShopName: &shop}
	require.NoError(t, repo.CreateAccount(context.Background(), customer))
	f.shopID = *customer.ShopID
	f.customer, err = tokens.Issue(customer)
	require.NoError(t, err)

	require.NoError(t, repo.CreateProduct(context.Background(), &models.Product{
		ProductID:     1,
		ProductName:   "Rice",
		Barcode:       "890001",
		Price:         decimal.RequireFromString("10.00"),
		StockQuantity: 5,
		Unit:          "Kg",
		Language:      models.LanguageEnglish,
	}))
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (f *apiFixture) stock(t *testing.T) int {
	t.Helper()
	p, err := f.repo.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	return p.StockQuantity
}

func (f *apiFixture) orderBody(shopID int64, qty int) gin.H {
	return gin.H{
		"name":     "Ravi",
		"shopname": "Ravi Stores",
		"shopid":   shopID,
		"products": []gin.H{{"product_id": 1, "quantity": qty}},
	}
}

func TestPlaceApproveFlow(t *testing.T) {
	f := newAPIFixture(t)

	w, body := f.do(t, http.MethodPost, "/api/orders", f.customer, f.orderBody(f.shopID, 3))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 30.0, body["total_amount"])
	billID, _ := body["billId"].(string)
	require.NotEmpty(t, billID)
	assert.Equal(t, 2, f.stock(t))

	w, body = f.do(t, http.MethodPut, "/api/orders/"+billID+"/approve", f.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	order := body["order"].(map[string]interface{})
	assert.Equal(t, true, order["isApproved"])

	w, body = f.do(t, http.MethodPut, "/api/orders/"+billID+"/approve", f.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Order already approved", body["message"])

	w, body = f.do(t, http.MethodPut, "/api/orders/"+billID+"/reject", f.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Cannot reject an approved order", body["message"])
	assert.Equal(t, 2, f.stock(t))
}

func TestRejectRestoresStock(t *testing.T) {
	f := newAPIFixture(t)

	_, body := f.do(t, http.MethodPost, "/api/orders", f.customer, f.orderBody(f.shopID, 3))
	billID := body["billId"].(string)

	w, body := f.do(t, http.MethodPut, "/api/orders/"+billID+"/reject", f.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3.0, body["restoredUnits"])
	assert.Equal(t, 5, f.stock(t))

	w, _ = f.do(t, http.MethodGet, "/api/orders/"+billID, f.admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, http.MethodPut, "/api/orders/missing/reject", f.admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlaceOrderErrors(t *testing.T) {
	f := newAPIFixture(t)

	w, body := f.do(t, http.MethodPost, "/api/orders", f.customer, f.orderBody(f.shopID, 10))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.CodeInsufficientStock, body["code"])
	assert.Equal(t, 5, f.stock(t))

	empty := f.orderBody(f.shopID, 1)
	empty["products"] = []gin.H{}
	w, body = f.do(t, http.MethodPost, "/api/orders", f.customer, empty)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.CodeEmptyCart, body["code"])

	missing := f.orderBody(f.shopID, 1)
	missing["products"] = []gin.H{{"product_id": 42, "quantity": 1}}
	w, body = f.do(t, http.MethodPost, "/api/orders", f.customer, missing)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Product ID 42 not found", body["message"])
}

func TestAuthorization(t *testing.T) {
	f := newAPIFixture(t)

	w, _ := f.do(t, http.MethodPost, "/api/orders", "", f.orderBody(f.shopID, 1))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/orders", "not-a-token", f.orderBody(f.shopID, 1))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/orders", f.customer, f.orderBody(f.shopID+1, 1))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/orders", f.customer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/orders/shop/"+strconv.FormatInt(f.shopID+1, 10), f.customer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/products/add", f.customer, gin.H{})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 5, f.stock(t))
}

func TestListOrders(t *testing.T) {
	f := newAPIFixture(t)
	shopPath := "/api/orders/shop/" + strconv.FormatInt(f.shopID, 10)

	w, _ := f.do(t, http.MethodGet, "/api/orders", f.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w, body := f.do(t, http.MethodGet, shopPath, f.customer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No orders found for this shop", body["message"])

	withoutShop := f.orderBody(0, 1)
	w, _ = f.do(t, http.MethodPost, "/api/orders", f.customer, withoutShop)
	require.Equal(t, http.StatusCreated, w.Code)

	w, body = f.do(t, http.MethodGet, shopPath, f.customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, body["totalOrders"])
}

func TestProductEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	product := gin.H{
		"product_id":     2,
		"product_name":   "Turmeric",
		"brand_name":     "Aachi",
		"category":       "Spices",
		"price":          "42.50",
		"stock_quantity": 0,
		"barcode":        "890002",
		"unit":           "g",
		"product_unit":   "100",
		"language":       "Tamil",
		"expiry_date":    "2026-12-31",
	}
	w, body := f.do(t, http.MethodPost, "/api/products/add", f.admin, product)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	added := body["product"].(map[string]interface{})
	assert.Equal(t, 42.5, added["price"])

	product["product_name"] = "Turmeric Powder"
	product["barcode"] = "890001"
	w, body = f.do(t, http.MethodPost, "/api/products/add", f.admin, product)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Duplicate Product ID, Barcode already exists.", body["message"])

	product["expiry_date"] = "31/12/2026"
	product["product_id"] = 3
	w, _ = f.do(t, http.MethodPost, "/api/products/add", f.admin, product)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = f.do(t, http.MethodPut, "/api/products/update/2", f.admin, gin.H{"stock_quantity": 7})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7.0, body["updatedProduct"].(map[string]interface{})["stock_quantity"])

	w, _ = f.do(t, http.MethodPut, "/api/products/update/2", f.admin, gin.H{"product_id": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/products/all", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	w, _ = f.do(t, http.MethodDelete, "/api/products/delete/2", f.admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = f.do(t, http.MethodDelete, "/api/products/delete/2", f.admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSignupAndLogin(t *testing.T) {
	f := newAPIFixture(t)

	w, body := f.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"name":            "Meena",
		"shopname":        "Meena Mart",
		"role":            "customer",
		"email":           "Meena@Example.com",
		"password":        "pw123456",
		"confirmPassword": "pw123456",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	user := body["user"].(map[string]interface{})
	assert.NotContains(t, user, "password_hash")

	w, body = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"identifier": "meena mart", "password": "pw123456"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "shopname", body["matchedBy"])
	token := body["token"].(string)

	w, _ = f.do(t, http.MethodGet, "/api/orders/shop/"+strconv.FormatInt(int64(user["shopid"].(float64)), 10), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"identifier": "meena@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Incorrect password", body["message"])

	w, body = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"identifier": "ghost@example.com", "password": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", body["message"])

	w, _ = f.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"name": "Boss", "role": "admin", "email": "boss@example.com", "password": "pw", "confirmPassword": "pw",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListCustomersAndProbes(t *testing.T) {
	f := newAPIFixture(t)

	w, body := f.do(t, http.MethodGet, "/api/users/customers", f.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["customers"], 1)

	w, _ = f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, body = f.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", body["status"])
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, 15, d.Day())

	d, err = parseDate("2026-01-15T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 10, d.Hour())

	d, err = parseDate("")
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = parseDate("tomorrow")
	assert.Error(t, err)
}
