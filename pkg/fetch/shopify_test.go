package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"sellsync/pkg/catalog"
	"sellsync/pkg/domain"
	"sellsync/pkg/platform"
)

// shopifyFixture serves a synthetic catalog of total products across
// limit-sized pages, with optional one-shot failures per page.
type shopifyFixture struct {
	total    int
	failOnce map[string]int // page -> status code served on first attempt

	mu       sync.Mutex
	attempts map[string]int
}

func (f *shopifyFixture) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/products/count.json":
			fmt.Fprintf(w, `{"count": %d}`, f.total)
		case "/admin/products.json":
			page := r.URL.Query().Get("page")
			f.mu.Lock()
			if f.attempts == nil {
				f.attempts = map[string]int{}
			}
			f.attempts[page]++
			attempt := f.attempts[page]
			f.mu.Unlock()
			if code, ok := f.failOnce[page]; ok && attempt == 1 {
				http.Error(w, "upstream hiccup", code)
				return
			}
			f.writePage(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

func (f *shopifyFixture) writePage(w http.ResponseWriter, r *http.Request) {
	var limit, page int
	fmt.Sscanf(r.URL.Query().Get("limit"), "%d", &limit)
	fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
	start := (page - 1) * limit
	end := start + limit
	if end > f.total {
		end = f.total
	}
	products := make([]map[string]interface{}, 0, end-start)
	for i := start; i < end; i++ {
		products = append(products, map[string]interface{}{
			"id":       1000 + i,
			"title":    fmt.Sprintf("Product %04d", i),
			"variants": []map[string]string{{"price": "9.99"}},
		})
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"products": products})
}

func shopifyTestPipeline(t *testing.T, srvURL string, pageSize int) (*ShopifyPipeline, *catalog.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Set("token:shopify:acme", "tok")
	store := catalog.NewStore(rdb)
	client := platform.NewShopify(platform.Config{
		Tokens:  platform.NewTokenCache(rdb),
		BaseURL: srvURL,
	}, "acme")
	return NewShopifyPipeline(ShopifyConfig{
		Client:   client,
		Store:    store,
		OwnerID:  "acme",
		PageSize: pageSize,
	}), store
}

func TestShopifyRunPaginatesWholeCatalog(t *testing.T) {
	fix := &shopifyFixture{total: 530}
	srv := httptest.NewServer(fix.handler())
	defer srv.Close()

	p, _ := shopifyTestPipeline(t, srv.URL, 200)
	listings, err := p.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(listings) != 530 {
		t.Fatalf("listings = %d, want 530", len(listings))
	}
	if len(fix.attempts) != 3 {
		t.Fatalf("pages requested = %d, want 3", len(fix.attempts))
	}
	seen := map[string]bool{}
	for _, l := range listings {
		if seen[l.ItemID] {
			t.Fatalf("duplicate item id %s", l.ItemID)
		}
		seen[l.ItemID] = true
		if l.Price != "9.99" {
			t.Fatalf("price = %q", l.Price)
		}
	}
}

func TestShopifyRetriedPageMatchesCleanRun(t *testing.T) {
	clean := &shopifyFixture{total: 450}
	cleanSrv := httptest.NewServer(clean.handler())
	defer cleanSrv.Close()
	flaky := &shopifyFixture{total: 450, failOnce: map[string]int{"2": 400}}
	flakySrv := httptest.NewServer(flaky.handler())
	defer flakySrv.Close()

	cp, _ := shopifyTestPipeline(t, cleanSrv.URL, 200)
	fp, _ := shopifyTestPipeline(t, flakySrv.URL, 200)

	ctx := context.Background()
	want, err := cp.Run(ctx, Options{})
	if err != nil {
		t.Fatalf("clean run: %v", err)
	}
	got, err := fp.Run(ctx, Options{})
	if err != nil {
		t.Fatalf("flaky run: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("flaky run fetched %d listings, clean run %d", len(got), len(want))
	}
	if flaky.attempts["2"] != 2 {
		t.Fatalf("page 2 attempts = %d, want 2", flaky.attempts["2"])
	}
}

func TestShopifyPersistentFailureAborts(t *testing.T) {
	fix := &shopifyFixture{total: 450}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/admin/products/count.json" {
			fmt.Fprint(w, `{"count": 450}`)
			return
		}
		if r.URL.Query().Get("page") == "2" {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		fix.writePage(w, r)
	}))
	defer srv.Close()

	p, _ := shopifyTestPipeline(t, srv.URL, 200)
	_, err := p.Run(context.Background(), Options{})
	if !platform.HasStatus(err, http.StatusBadGateway) {
		t.Fatalf("expected 502 status error, got %v", err)
	}
}

func TestShopifySampleFetchesOnePage(t *testing.T) {
	fix := &shopifyFixture{total: 530}
	srv := httptest.NewServer(fix.handler())
	defer srv.Close()

	p, _ := shopifyTestPipeline(t, srv.URL, 200)
	listings, err := p.Run(context.Background(), Options{Sample: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(listings) != 200 {
		t.Fatalf("sample fetched %d listings, want 200", len(listings))
	}
	if len(fix.attempts) != 1 {
		t.Fatalf("pages requested = %d, want 1", len(fix.attempts))
	}
}

func TestShopifyPersistWritesStore(t *testing.T) {
	fix := &shopifyFixture{total: 3}
	srv := httptest.NewServer(fix.handler())
	defer srv.Close()

	p, store := shopifyTestPipeline(t, srv.URL, 200)
	ctx := context.Background()
	if _, err := p.Run(ctx, Options{Persist: true}); err != nil {
		t.Fatalf("run: %v", err)
	}
	keys, err := store.ListAllKeys(ctx, domain.PlatformShopify, "acme", 0)
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("persisted keys = %d, want 3", len(keys))
	}
	got, ok, err := store.GetListing(ctx, domain.PlatformShopify, "acme", "1000")
	if err != nil || !ok {
		t.Fatalf("get persisted listing: ok=%v err=%v", ok, err)
	}
	if got.Title != "Product 0000" {
		t.Fatalf("title = %q", got.Title)
	}
	index, err := store.TitleIndex(ctx, domain.PlatformShopify, "acme")
	if err != nil {
		t.Fatalf("title index: %v", err)
	}
	if len(index) != 3 {
		t.Fatalf("index entries = %d, want 3", len(index))
	}
}

func TestShopifyMissingCountField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errors": "not today"}`)
	}))
	defer srv.Close()

	p, _ := shopifyTestPipeline(t, srv.URL, 200)
	_, err := p.Run(context.Background(), Options{})
	if !errors.Is(err, ErrCountUnavailable) {
		t.Fatalf("expected ErrCountUnavailable, got %v", err)
	}
}
