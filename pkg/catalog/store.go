package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"sellsync/pkg/domain"
)

// scanBatch is the SCAN hint used when enumerating listing keys without a cap.
const scanBatch = 10000

// Store persists normalized listings and maintains the title-sorted
// secondary index used for cross-platform matching.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func listingKey(p domain.Platform, ownerID, itemID string) string {
	return fmt.Sprintf("products:%s:%s:%s", p, ownerID, itemID)
}

func titleIndexKey(p domain.Platform, ownerID string) string {
	return fmt.Sprintf("titleindex:%s:%s", p, ownerID)
}

// SaveListing overwrites the listing record and inserts its title index
// entry as one pipeline unit. Re-saving the same listing is idempotent: the
// record is replaced and the index member already exists.
func (s *Store) SaveListing(ctx context.Context, l domain.Listing) error {
	if l.ItemID == "" {
		return errors.New("listing item id required")
	}
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode listing %s: %w", l.ItemID, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, listingKey(l.Platform, l.OwnerID, l.ItemID), data, 0)
	pipe.ZAdd(ctx, titleIndexKey(l.Platform, l.OwnerID), redis.Z{Score: 0, Member: IndexEntry(l.Title, l.ItemID)})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save listing %s: %w", l.ItemID, err)
	}
	return nil
}

// GetListing loads one listing; the second return is false when absent.
func (s *Store) GetListing(ctx context.Context, p domain.Platform, ownerID, itemID string) (domain.Listing, bool, error) {
	return s.GetListingByKey(ctx, listingKey(p, ownerID, itemID))
}

// GetListingByKey loads a listing under a raw key as returned by ListAllKeys.
func (s *Store) GetListingByKey(ctx context.Context, key string) (domain.Listing, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Listing{}, false, nil
	}
	if err != nil {
		return domain.Listing{}, false, fmt.Errorf("load %s: %w", key, err)
	}
	var l domain.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return domain.Listing{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return l, true, nil
}

// TitleIndex returns all composite index entries for a platform/owner in
// lexical order.
func (s *Store) TitleIndex(ctx context.Context, p domain.Platform, ownerID string) ([]string, error) {
	entries, err := s.client.ZRangeByLex(ctx, titleIndexKey(p, ownerID), &redis.ZRangeBy{Min: "-", Max: "+"}).Result()
	if err != nil {
		return nil, fmt.Errorf("range title index %s/%s: %w", p, ownerID, err)
	}
	return entries, nil
}

// ListAllKeys enumerates persisted listing keys by cursor scan. SCAN may
// revisit entries, so results are deduplicated. With limit > 0 a single
// capped pass is made instead of scanning to exhaustion.
func (s *Store) ListAllKeys(ctx context.Context, p domain.Platform, ownerID string, limit int64) ([]string, error) {
	pattern := listingKey(p, ownerID, "*")
	count := limit
	if count <= 0 {
		count = scanBatch
	}
	seen := make(map[string]struct{})
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, count).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %s keys: %w", pattern, err)
		}
		for _, key := range keys {
			seen[key] = struct{}{}
		}
		cursor = next
		if cursor == 0 || limit > 0 {
			break
		}
	}
	out := make([]string, 0, len(seen))
	for key := range seen {
		out = append(out, key)
	}
	sort.Strings(out)
	return out, nil
}
