package catalog

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"sellsync/pkg/domain"
)

func testStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(client), mr
}

func TestSaveListingIsIdempotent(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	l := domain.Listing{
		Platform: domain.PlatformEbay,
		OwnerID:  "seller-1",
		ItemID:   "42",
		Title:    "Red Shoe",
		Price:    "10.00",
	}
	if err := store.SaveListing(ctx, l); err != nil {
		t.Fatalf("first save: %v", err)
	}
	l.Price = "12.00"
	if err := store.SaveListing(ctx, l); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, ok, err := store.GetListing(ctx, domain.PlatformEbay, "seller-1", "42")
	if err != nil || !ok {
		t.Fatalf("get listing: ok=%v err=%v", ok, err)
	}
	if got.Price != "12.00" {
		t.Fatalf("re-save should overwrite, got price %q", got.Price)
	}

	entries, err := store.TitleIndex(ctx, domain.PlatformEbay, "seller-1")
	if err != nil {
		t.Fatalf("title index: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one index entry, got %v", entries)
	}
	if entries[0] != IndexEntry("Red Shoe", "42") {
		t.Fatalf("unexpected index entry %q", entries[0])
	}
}

func TestSaveListingRequiresItemID(t *testing.T) {
	store, _ := testStore(t)
	if err := store.SaveListing(context.Background(), domain.Listing{Title: "no id"}); err == nil {
		t.Fatalf("expected error for listing without item id")
	}
}

func TestTitleIndexIsLexicallyOrdered(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	for _, fixture := range []struct{ id, title string }{
		{"1", "zebra print bag"},
		{"2", "Blue Hat"},
		{"3", "Green Bag"},
	} {
		l := domain.Listing{Platform: domain.PlatformShopify, OwnerID: "store-1", ItemID: fixture.id, Title: fixture.title}
		if err := store.SaveListing(ctx, l); err != nil {
			t.Fatalf("save %s: %v", fixture.id, err)
		}
	}

	entries, err := store.TitleIndex(ctx, domain.PlatformShopify, "store-1")
	if err != nil {
		t.Fatalf("title index: %v", err)
	}
	want := []string{
		IndexEntry("Blue Hat", "2"),
		IndexEntry("Green Bag", "3"),
		IndexEntry("zebra print bag", "1"),
	}
	if len(entries) != len(want) {
		t.Fatalf("entries: %v", entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Fatalf("entry %d: got %q want %q", i, entries[i], want[i])
		}
	}
}

func TestListAllKeysEnumeratesAndScopes(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		l := domain.Listing{Platform: domain.PlatformEbay, OwnerID: "seller-1", ItemID: id, Title: "t" + id}
		if err := store.SaveListing(ctx, l); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	// Different owner, must not leak into the scan.
	other := domain.Listing{Platform: domain.PlatformEbay, OwnerID: "seller-2", ItemID: "9", Title: "other"}
	if err := store.SaveListing(ctx, other); err != nil {
		t.Fatalf("save other: %v", err)
	}

	keys, err := store.ListAllKeys(ctx, domain.PlatformEbay, "seller-1", 0)
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("expected 3 keys, got %v", keys)
	}
	for _, key := range keys {
		if _, ok, err := store.GetListingByKey(ctx, key); err != nil || !ok {
			t.Fatalf("key %q should load a listing: ok=%v err=%v", key, ok, err)
		}
	}
}
