// Package memstore is an in-memory store.Repository used for local runs
// (STORE_DRIVER=memory) and tests. Transactions hold a store-wide lock, so
// they are serializable; a failed transaction restores a snapshot.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"retail-order-service/internal/models"
	"retail-order-service/internal/store"
)

type state struct {
	products      map[int64]models.Product
	orders        map[string]models.Order
	orderSeq      map[string]int64
	accounts      map[int64]models.Account
	nextAccountID int64
	nextNumber    int64
	nextOrderSeq  int64
}

func newState() *state {
	return &state{
		products:      make(map[int64]models.Product),
		orders:        make(map[string]models.Order),
		orderSeq:      make(map[string]int64),
		accounts:      make(map[int64]models.Account),
		nextAccountID: 1,
		nextNumber:    100001,
	}
}

func (st *state) clone() *state {
	c := &state{
		products:      make(map[int64]models.Product, len(st.products)),
		orders:        make(map[string]models.Order, len(st.orders)),
		orderSeq:      make(map[string]int64, len(st.orderSeq)),
		accounts:      make(map[int64]models.Account, len(st.accounts)),
		nextAccountID: st.nextAccountID,
		nextNumber:    st.nextNumber,
		nextOrderSeq:  st.nextOrderSeq,
	}
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.orders {
		v.Products = append([]models.OrderLine(nil), v.Products...)
		c.orders[k] = v
	}
	for k, v := range st.orderSeq {
		c.orderSeq[k] = v
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	return c
}

type shared struct {
	mu sync.Mutex
	st *state
}

// Store is safe for concurrent use.
type Store struct {
	sh   *shared
	inTx bool
}

var _ store.Repository = (*Store)(nil)

// New creates an empty in-memory store
func New() *Store {
	return &Store{sh: &shared{st: newState()}}
}

// lock returns the unlock func; inside a transaction the lock is already held.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.sh.mu.Lock()
	return s.sh.mu.Unlock
}

// InTx runs fn holding the store lock. On error or a cancelled context every
// change fn made is rolled back to the snapshot taken on entry.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Repository) error) error {
	if s.inTx {
		return fn(s)
	}

	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()

	snapshot := s.sh.st.clone()
	err := fn(&Store{sh: s.sh, inTx: true})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.sh.st = snapshot
	}
	return err
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

// Products

// CreateProduct inserts a product, reporting the first unique field it collides on
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	defer s.lock()()
	st := s.sh.st

	if _, ok := st.products[p.ProductID]; ok {
		return &store.DuplicateError{Field: "product_id"}
	}
	for _, existing := range st.products {
		if existing.ProductName == p.ProductName {
			return &store.DuplicateError{Field: "product_name"}
		}
		if existing.Barcode == p.Barcode {
			return &store.DuplicateError{Field: "barcode"}
		}
	}

	now := time.Now()
	p.AddedDate = now
	p.UpdatedAt = now
	st.products[p.ProductID] = *p
	return nil
}

// GetProduct retrieves a product by id
func (s *Store) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	defer s.lock()()

	p, ok := s.sh.st.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

// FindProductConflicts returns products sharing the id, name or barcode
func (s *Store) FindProductConflicts(ctx context.Context, productID int64, name, barcode string) ([]models.Product, error) {
	defer s.lock()()

	out := []models.Product{}
	for _, p := range s.sh.st.products {
		if p.ProductID == productID || p.ProductName == name || p.Barcode == barcode {
			out = append(out, p)
		}
	}
	sortProducts(out)
	return out, nil
}

// ListProducts returns all products ordered by product id
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	defer s.lock()()

	out := make([]models.Product, 0, len(s.sh.st.products))
	for _, p := range s.sh.st.products {
		out = append(out, p)
	}
	sortProducts(out)
	return out, nil
}

// UpdateProduct applies the non-nil fields of patch
func (s *Store) UpdateProduct(ctx context.Context, productID int64, patch *models.ProductPatch) (*models.Product, error) {
	defer s.lock()()
	st := s.sh.st

	p, ok := st.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	patch.Apply(&p)

	for id, other := range st.products {
		if id == productID {
			continue
		}
		if other.ProductName == p.ProductName {
			return nil, &store.DuplicateError{Field: "product_name"}
		}
		if other.Barcode == p.Barcode {
			return nil, &store.DuplicateError{Field: "barcode"}
		}
	}

	p.UpdatedAt = time.Now()
	st.products[productID] = p
	return &p, nil
}

// DeleteProduct removes a product
func (s *Store) DeleteProduct(ctx context.Context, productID int64) error {
	defer s.lock()()

	if _, ok := s.sh.st.products[productID]; !ok {
		return store.ErrNotFound
	}
	delete(s.sh.st.products, productID)
	return nil
}

// ReserveStock decrements stock only when enough is available
func (s *Store) ReserveStock(ctx context.Context, productID int64, quantity int) (*models.Product, error) {
	defer s.lock()()

	p, ok := s.sh.st.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if p.StockQuantity < quantity {
		return &p, store.ErrInsufficientStock
	}
	p.StockQuantity -= quantity
	p.UpdatedAt = time.Now()
	s.sh.st.products[productID] = p
	return &p, nil
}

// RestoreStock returns quantity units to a product
func (s *Store) RestoreStock(ctx context.Context, productID int64, quantity int) error {
	defer s.lock()()

	p, ok := s.sh.st.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	p.StockQuantity += quantity
	p.UpdatedAt = time.Now()
	s.sh.st.products[productID] = p
	return nil
}

func sortProducts(ps []models.Product) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].ProductID < ps[j].ProductID })
}

// Orders

// CreateOrder stores an order and its lines
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	defer s.lock()()
	st := s.sh.st

	if _, ok := st.orders[order.BillID]; ok {
		return &store.DuplicateError{Field: "billId"}
	}
	for i := range order.Products {
		order.Products[i].BillID = order.BillID
		order.Products[i].Position = i
	}

	stored := *order
	stored.Products = append([]models.OrderLine(nil), order.Products...)
	st.nextOrderSeq++
	st.orders[order.BillID] = stored
	st.orderSeq[order.BillID] = st.nextOrderSeq
	return nil
}

// GetOrder retrieves an order by bill id
func (s *Store) GetOrder(ctx context.Context, billID string) (*models.Order, error) {
	defer s.lock()()

	o, ok := s.sh.st.orders[billID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyOrder(o), nil
}

// ApproveOrder approves a pending order
func (s *Store) ApproveOrder(ctx context.Context, billID string) (*models.Order, error) {
	defer s.lock()()

	o, ok := s.sh.st.orders[billID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if o.IsApproved {
		return nil, store.ErrAlreadyApproved
	}
	o.IsApproved = true
	s.sh.st.orders[billID] = o
	return copyOrder(o), nil
}

// DeletePendingOrder removes and returns an unapproved order
func (s *Store) DeletePendingOrder(ctx context.Context, billID string) (*models.Order, error) {
	defer s.lock()()

	o, ok := s.sh.st.orders[billID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if o.IsApproved {
		return nil, store.ErrAlreadyApproved
	}
	delete(s.sh.st.orders, billID)
	delete(s.sh.st.orderSeq, billID)
	return copyOrder(o), nil
}

// ListOrders returns all orders, newest first
func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.listOrders(func(models.Order) bool { return true }), nil
}

// ListOrdersByShop returns a shop's orders, newest first
func (s *Store) ListOrdersByShop(ctx context.Context, shopID int64) ([]models.Order, error) {
	return s.listOrders(func(o models.Order) bool { return o.ShopID == shopID }), nil
}

func (s *Store) listOrders(keep func(models.Order) bool) []models.Order {
	defer s.lock()()
	st := s.sh.st

	out := []models.Order{}
	for _, o := range st.orders {
		if keep(o) {
			out = append(out, *copyOrder(o))
		}
	}
	// Newest first; insertion order breaks timestamp ties.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OrderedAt.Equal(out[j].OrderedAt) {
			return out[i].OrderedAt.After(out[j].OrderedAt)
		}
		return st.orderSeq[out[i].BillID] > st.orderSeq[out[j].BillID]
	})
	return out
}

func copyOrder(o models.Order) *models.Order {
	o.Products = append([]models.OrderLine{}, o.Products...)
	return &o
}

// Accounts

// CreateAccount inserts an account and assigns its shop or admin id
func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	defer s.lock()()
	st := s.sh.st

	for _, existing := range st.accounts {
		if existing.Email == a.Email {
			return &store.DuplicateError{Field: "email"}
		}
		if a.Role == models.RoleCustomer && existing.Role == models.RoleCustomer &&
			a.ShopName != nil && existing.ShopName != nil &&
			strings.EqualFold(*a.ShopName, *existing.ShopName) {
			return &store.DuplicateError{Field: "shopname"}
		}
	}

	number := st.nextNumber
	st.nextNumber++
	switch a.Role {
	case models.RoleCustomer:
		a.ShopID = &number
	case models.RoleAdmin:
		a.AdminID = &number
	}

	a.ID = st.nextAccountID
	st.nextAccountID++
	a.CreatedAt = time.Now()
	st.accounts[a.ID] = *a
	return nil
}

// GetAccountByEmail retrieves an account by lowercased email
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findOne(func(a models.Account) bool { return a.Email == strings.ToLower(email) })
}

// GetAccountByShopID retrieves the customer account for a shop
func (s *Store) GetAccountByShopID(ctx context.Context, shopID int64) (*models.Account, error) {
	return s.findOne(func(a models.Account) bool { return a.ShopID != nil && *a.ShopID == shopID })
}

// FindAccountsByNumber returns accounts whose shop id or admin id is number
func (s *Store) FindAccountsByNumber(ctx context.Context, number int64) ([]models.Account, error) {
	return s.findAll(func(a models.Account) bool {
		return (a.ShopID != nil && *a.ShopID == number) || (a.AdminID != nil && *a.AdminID == number)
	}), nil
}

// FindAccountsByShopName matches shop names case-insensitively
func (s *Store) FindAccountsByShopName(ctx context.Context, shopName string) ([]models.Account, error) {
	return s.findAll(func(a models.Account) bool {
		return a.ShopName != nil && strings.EqualFold(*a.ShopName, shopName)
	}), nil
}

// ListAccountsByRole returns accounts with the given role
func (s *Store) ListAccountsByRole(ctx context.Context, role string) ([]models.Account, error) {
	return s.findAll(func(a models.Account) bool { return a.Role == role }), nil
}

// SetOTP stores a reset code and its expiry
func (s *Store) SetOTP(ctx context.Context, accountID int64, otp string, expires time.Time) error {
	defer s.lock()()

	a, ok := s.sh.st.accounts[accountID]
	if !ok {
		return store.ErrNotFound
	}
	a.OTP = &otp
	a.OTPExpires = &expires
	s.sh.st.accounts[accountID] = a
	return nil
}

// ClearOTP drops the reset code, replacing the password hash when one is given
func (s *Store) ClearOTP(ctx context.Context, accountID int64, passwordHash string) error {
	defer s.lock()()

	a, ok := s.sh.st.accounts[accountID]
	if !ok {
		return store.ErrNotFound
	}
	a.OTP = nil
	a.OTPExpires = nil
	if passwordHash != "" {
		a.PasswordHash = passwordHash
	}
	s.sh.st.accounts[accountID] = a
	return nil
}

// PurgeExpiredOTPs clears codes that expired before now
func (s *Store) PurgeExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	defer s.lock()()

	var n int64
	for id, a := range s.sh.st.accounts {
		if a.OTPExpires != nil && a.OTPExpires.Before(now) {
			a.OTP = nil
			a.OTPExpires = nil
			s.sh.st.accounts[id] = a
			n++
		}
	}
	return n, nil
}

func (s *Store) findOne(match func(models.Account) bool) (*models.Account, error) {
	found := s.findAll(match)
	if len(found) == 0 {
		return nil, store.ErrNotFound
	}
	return &found[0], nil
}

func (s *Store) findAll(match func(models.Account) bool) []models.Account {
	defer s.lock()()

	out := []models.Account{}
	for _, a := range s.sh.st.accounts {
		if match(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
