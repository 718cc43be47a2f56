package service

import (
	"context"
	"time"

	"retail-order-service/internal/models"
)

// EventPublisher emits order lifecycle events after they commit
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderApproved(ctx context.Context, event *models.OrderApprovedEvent) error
	PublishOrderRejected(ctx context.Context, event *models.OrderRejectedEvent) error
}

// CatalogCache caches the full product listing. GetProducts reports the
// cache version it looked at; a listing loaded after a miss is stored under
// that version, so an invalidation in between discards it.
type CatalogCache interface {
	GetProducts(ctx context.Context) (products []models.Product, version int64, hit bool, err error)
	SetProducts(ctx context.Context, version int64, products []models.Product) error
	InvalidateProducts(ctx context.Context) error
}

// IdempotencyStore records which bill a client request key produced.
// When Claim does not claim the key it returns the record already bound to
// it; a pending record means that request is still in flight.
type IdempotencyStore interface {
	Claim(ctx context.Context, key, fingerprint string) (claimed bool, existing models.IdempotencyRecord, err error)
	Complete(ctx context.Context, key string, record models.IdempotencyRecord) error
	Release(ctx context.Context, key, fingerprint string) error
}

// BillIDSource generates order identifiers
type BillIDSource interface {
	Next(lineCount int) string
}

// OTPMailer delivers password reset codes
type OTPMailer interface {
	SendOTP(ctx context.Context, to, name, otp string, ttl time.Duration) error
}

// TokenIssuer signs login tokens
type TokenIssuer interface {
	Issue(account *models.Account) (string, error)
}
