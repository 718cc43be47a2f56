package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"retail-order-service/internal/models"

	"github.com/go-redis/redis/v8"
)

// releaseScript deletes a claim only while it is still pending with the
// caller's fingerprint, so a completed key is never dropped by a late release.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// IdempotencyStore maps client Idempotency-Key values to bill ids. Each value
// is "<fingerprint>|<billId>", with an empty bill id while the claim is pending.
type IdempotencyStore struct {
	client *Client
	ttl    time.Duration
}

// NewIdempotencyStore creates a store whose keys live for ttl
func NewIdempotencyStore(client *Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:%s", strings.TrimSpace(key))
}

func encodeRecord(r models.IdempotencyRecord) string {
	return r.Fingerprint + "|" + r.BillID
}

func decodeRecord(value string) models.IdempotencyRecord {
	fingerprint, billID, _ := strings.Cut(value, "|")
	return models.IdempotencyRecord{Fingerprint: fingerprint, BillID: billID}
}

// Claim reserves key for a new placement. When the key is taken it returns
// the record bound to it.
func (s *IdempotencyStore) Claim(ctx context.Context, key, fingerprint string) (bool, models.IdempotencyRecord, error) {
	k := idempotencyKey(key)
	pending := models.IdempotencyRecord{Fingerprint: fingerprint}

	ok, err := s.client.rdb.SetNX(ctx, k, encodeRecord(pending), s.ttl).Result()
	if err != nil {
		return false, models.IdempotencyRecord{}, fmt.Errorf("idempotency claim failed: %w", err)
	}
	if ok {
		return true, models.IdempotencyRecord{}, nil
	}

	value, err := s.client.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; report in flight and let the client retry
		return false, pending, nil
	}
	if err != nil {
		return false, models.IdempotencyRecord{}, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	return false, decodeRecord(value), nil
}

// Complete records the bill id produced for key
func (s *IdempotencyStore) Complete(ctx context.Context, key string, record models.IdempotencyRecord) error {
	return s.client.rdb.Set(ctx, idempotencyKey(key), encodeRecord(record), s.ttl).Err()
}

// Release frees a pending claim after a failed placement
func (s *IdempotencyStore) Release(ctx context.Context, key, fingerprint string) error {
	pending := encodeRecord(models.IdempotencyRecord{Fingerprint: fingerprint})
	return releaseScript.Run(ctx, s.client.rdb, []string{idempotencyKey(key)}, pending).Err()
}
