package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"sellsync/pkg/domain"
)

// MappingStore persists the bidirectional identifier correlation between a
// listing's native id on one platform and its counterpart on the other.
type MappingStore struct {
	client *redis.Client
}

func NewMappingStore(client *redis.Client) *MappingStore {
	return &MappingStore{client: client}
}

func mappingKey(from domain.Platform, fromOwner string, to domain.Platform, toOwner, itemID string) string {
	return fmt.Sprintf("mapping:%s:%s:%s:%s:%s", from, fromOwner, to, toOwner, itemID)
}

// SetMapping writes the forward and reverse records as one pipeline unit.
// If the pipeline fails, neither direction may be assumed durable. Repeated
// pushes of the same native id overwrite (last writer wins).
func (m *MappingStore) SetMapping(ctx context.Context, a, b domain.ListingRef) error {
	pipe := m.client.TxPipeline()
	pipe.Set(ctx, mappingKey(a.Platform, a.OwnerID, b.Platform, b.OwnerID, a.ItemID), b.ItemID, 0)
	pipe.Set(ctx, mappingKey(b.Platform, b.OwnerID, a.Platform, a.OwnerID, b.ItemID), a.ItemID, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set mapping %s/%s <-> %s/%s: %w", a.Platform, a.ItemID, b.Platform, b.ItemID, err)
	}
	return nil
}

// CorrespondingID looks up the counterpart id of from on the target
// platform. An absent mapping returns "" with a nil error, signaling that a
// push should create rather than update.
func (m *MappingStore) CorrespondingID(ctx context.Context, from domain.ListingRef, to domain.Platform, toOwner string) (string, error) {
	val, err := m.client.Get(ctx, mappingKey(from.Platform, from.OwnerID, to, toOwner, from.ItemID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup mapping %s/%s: %w", from.Platform, from.ItemID, err)
	}
	return val, nil
}
