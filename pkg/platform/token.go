package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"sellsync/pkg/domain"
)

// TokenCache resolves per-store bearer credentials persisted by the login
// flow. It is a pure read-through cache: a missing token is ErrAuthRequired
// and is never fetched here.
type TokenCache struct {
	client *redis.Client
}

func NewTokenCache(client *redis.Client) *TokenCache {
	return &TokenCache{client: client}
}

func tokenKey(p domain.Platform, ownerID string) string {
	return fmt.Sprintf("token:%s:%s", p, ownerID)
}

// Resolve returns the stored token for a platform/owner pair. Tokens were
// written JSON-encoded by the login flow, so surrounding quotes are stripped.
func (t *TokenCache) Resolve(ctx context.Context, p domain.Platform, ownerID string) (string, error) {
	val, err := t.client.Get(ctx, tokenKey(p, ownerID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%s/%s: %w", p, ownerID, ErrAuthRequired)
	}
	if err != nil {
		return "", fmt.Errorf("resolve %s token: %w", p, err)
	}
	return strings.Trim(val, `"`), nil
}

// Delete drops the stored token, forcing a fresh login before the next sync.
// Used when a platform reports the credential expired.
func (t *TokenCache) Delete(ctx context.Context, p domain.Platform, ownerID string) error {
	if err := t.client.Del(ctx, tokenKey(p, ownerID)).Err(); err != nil {
		return fmt.Errorf("delete %s token: %w", p, err)
	}
	return nil
}
