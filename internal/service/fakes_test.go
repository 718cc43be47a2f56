package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"retail-order-service/internal/models"
)

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) Next(lineCount int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%d_%d", 1000+g.n, lineCount)
}

type recordingPublisher struct {
	mu       sync.Mutex
	placed   []*models.OrderPlacedEvent
	approved []*models.OrderApprovedEvent
	rejected []*models.OrderRejectedEvent
	fail     bool
}

func (p *recordingPublisher) PublishOrderPlaced(ctx context.Context, e *models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.placed = append(p.placed, e)
	return nil
}

func (p *recordingPublisher) PublishOrderApproved(ctx context.Context, e *models.OrderApprovedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.approved = append(p.approved, e)
	return nil
}

func (p *recordingPublisher) PublishOrderRejected(ctx context.Context, e *models.OrderRejectedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.rejected = append(p.rejected, e)
	return nil
}

type memCache struct {
	mu          sync.Mutex
	version     int64
	entries     map[int64][]models.Product
	invalidated int
	beforeSet   func()
}

func (c *memCache) GetProducts(ctx context.Context) ([]models.Product, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	products, ok := c.entries[c.version]
	return products, c.version, ok, nil
}

func (c *memCache) SetProducts(ctx context.Context, version int64, products []models.Product) error {
	if c.beforeSet != nil {
		hook := c.beforeSet
		c.beforeSet = nil
		hook()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[int64][]models.Product)
	}
	c.entries[version] = products
	return nil
}

func (c *memCache) InvalidateProducts(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	c.invalidated++
	return nil
}

func (c *memCache) cached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[c.version]
	return ok
}

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]models.IdempotencyRecord
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{keys: make(map[string]models.IdempotencyRecord)}
}

func (m *memIdempotency) Claim(ctx context.Context, key, fingerprint string) (bool, models.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.keys[key]; ok {
		return false, r, nil
	}
	m.keys[key] = models.IdempotencyRecord{Fingerprint: fingerprint}
	return true, models.IdempotencyRecord{}, nil
}

func (m *memIdempotency) Complete(ctx context.Context, key string, record models.IdempotencyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = record
	return nil
}

func (m *memIdempotency) Release(ctx context.Context, key, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.keys[key]; ok && r.Pending() && r.Fingerprint == fingerprint {
		delete(m.keys, key)
	}
	return nil
}

type sentOTP struct {
	to, otp string
}

type fakeMailer struct {
	sent []sentOTP
	err  error
}

func (m *fakeMailer) SendOTP(ctx context.Context, to, name, otp string, ttl time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentOTP{to: to, otp: otp})
	return nil
}

type fakeTokens struct{}

func (fakeTokens) Issue(a *models.Account) (string, error) {
	return fmt.Sprintf("token-%d", a.ID), nil
}
