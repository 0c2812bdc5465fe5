// Package cache keeps verified certificate views in Redis so repeated
// verification of the same credential skips the directory and history
// lookups. Entries expire; the registry remains the source of truth.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"examledger/pkg/domain"
)

const certificateKeyPrefix = "cert:"

// CertificateCache is a read-through cache for certificate views.
type CertificateCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *CertificateCache {
	return &CertificateCache{client: client, ttl: ttl}
}

func key(participant domain.Address, certificateID domain.CertificateID) string {
	return certificateKeyPrefix + participant.String() + ":" + certificateID.String()
}

// Get unmarshals a cached view into dest. The bool reports whether the
// entry was present; cache errors are returned so callers can log and fall
// through to the store.
func (c *CertificateCache) Get(ctx context.Context, participant domain.Address, certificateID domain.CertificateID, dest any) (bool, error) {
	payload, err := c.client.Get(ctx, key(participant, certificateID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("certificate cache get: %w", err)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("certificate cache decode: %w", err)
	}
	return true, nil
}

// Set stores a view with the configured TTL.
func (c *CertificateCache) Set(ctx context.Context, participant domain.Address, certificateID domain.CertificateID, view any) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("certificate cache encode: %w", err)
	}
	if err := c.client.Set(ctx, key(participant, certificateID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("certificate cache set: %w", err)
	}
	return nil
}
