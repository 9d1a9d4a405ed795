package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	mxj "github.com/clbanning/mxj/v2"
	"github.com/redis/go-redis/v9"

	"sellsync/pkg/catalog"
	"sellsync/pkg/domain"
	"sellsync/pkg/platform"
)

// ebayFixture plays both Trading API surfaces: the SOAP active list on
// /ws/api.dll and the Shopping detail endpoint on /shopping.
type ebayFixture struct {
	itemIDs     []string
	expireToken bool
	failDetail  bool // serve one 400 on the first detail request

	mu             sync.Mutex
	sellingPages   [][2]int // (entriesPerPage, pageNumber) per active-list request
	detailAttempts int
	detailChunks   [][]string
}

func (f *ebayFixture) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ws/api.dll":
			f.serveSelling(t, w, r)
		case "/shopping":
			f.serveDetails(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

func (f *ebayFixture) serveSelling(t *testing.T, w http.ResponseWriter, r *http.Request) {
	if f.expireToken {
		fmt.Fprint(w, `<GetMyeBaySellingResponse><Ack>Failure</Ack><Errors><ErrorCode>21917053</ErrorCode></Errors></GetMyeBaySellingResponse>`)
		return
	}
	if r.Header.Get("X-EBAY-API-CALL-NAME") != platform.CallGetMyeBaySelling {
		t.Errorf("unexpected call name %q", r.Header.Get("X-EBAY-API-CALL-NAME"))
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		t.Errorf("read selling request: %v", err)
		return
	}
	m, err := mxj.NewMapXml(data)
	if err != nil {
		t.Errorf("decode selling request: %v", err)
		return
	}
	epp := requestInt(m, "GetMyeBaySellingRequest.ActiveList.Pagination.EntriesPerPage")
	page := requestInt(m, "GetMyeBaySellingRequest.ActiveList.Pagination.PageNumber")
	f.mu.Lock()
	f.sellingPages = append(f.sellingPages, [2]int{epp, page})
	f.mu.Unlock()

	start := (page - 1) * epp
	end := start + epp
	if start > len(f.itemIDs) {
		start = len(f.itemIDs)
	}
	if end > len(f.itemIDs) {
		end = len(f.itemIDs)
	}
	var items strings.Builder
	for _, id := range f.itemIDs[start:end] {
		fmt.Fprintf(&items, "<Item><ItemID>%s</ItemID></Item>", id)
	}
	fmt.Fprintf(w, `<GetMyeBaySellingResponse>
 <Ack>Success</Ack>
 <ActiveList>
  <PaginationResult><TotalNumberOfEntries>%d</TotalNumberOfEntries></PaginationResult>
  <ItemArray>%s</ItemArray>
 </ActiveList>
</GetMyeBaySellingResponse>`, len(f.itemIDs), items.String())
}

func (f *ebayFixture) serveDetails(w http.ResponseWriter, r *http.Request) {
	chunk := strings.Split(r.URL.Query().Get("ItemID"), ",")
	f.mu.Lock()
	f.detailAttempts++
	first := f.detailAttempts == 1
	f.detailChunks = append(f.detailChunks, chunk)
	f.mu.Unlock()
	if f.failDetail && first {
		http.Error(w, "flaky", http.StatusBadRequest)
		return
	}
	var items strings.Builder
	for _, id := range chunk {
		fmt.Fprintf(&items,
			`<Item><ItemID>%s</ItemID><Title>Listing %s</Title><CurrentPrice currencyID="USD">12.50</CurrentPrice></Item>`, id, id)
	}
	fmt.Fprintf(w, `<GetMultipleItemsResponse><Ack>Success</Ack>%s</GetMultipleItemsResponse>`, items.String())
}

func requestInt(m mxj.Map, path string) int {
	v, _ := m.ValueForPath(path)
	s, _ := v.(string)
	n, _ := strconv.Atoi(s)
	return n
}

func ebayTestPipeline(t *testing.T, fix *ebayFixture) (*EbayPipeline, *miniredis.Miniredis, *catalog.Store) {
	t.Helper()
	srv := httptest.NewServer(fix.handler(t))
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Set("token:ebay:seller-1", "tok")
	tokens := platform.NewTokenCache(rdb)
	store := catalog.NewStore(rdb)
	cfg := platform.Config{Tokens: tokens, OwnerID: "seller-1", BaseURL: srv.URL}
	soapCfg := cfg
	soapCfg.BaseURL = srv.URL + "/ws/api.dll"
	return NewEbayPipeline(EbayConfig{
		SOAP:      platform.NewEbaySOAP(soapCfg),
		REST:      platform.NewEbayREST(cfg),
		Tokens:    tokens,
		Store:     store,
		OwnerID:   "seller-1",
		AppID:     "app-1",
		PageSize:  2,
		ChunkSize: 2,
	}), mr, store
}

func TestEbayRunFetchesIDsThenDetails(t *testing.T) {
	fix := &ebayFixture{itemIDs: []string{"101", "102", "103", "104", "105"}}
	p, _, store := ebayTestPipeline(t, fix)

	ctx := context.Background()
	listings, err := p.Run(ctx, Options{Persist: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(listings) != 5 {
		t.Fatalf("listings = %d, want 5", len(listings))
	}

	var gotIDs []string
	for _, l := range listings {
		gotIDs = append(gotIDs, l.ItemID)
		if l.Platform != domain.PlatformEbay || l.OwnerID != "seller-1" {
			t.Fatalf("wrong ownership on %+v", l)
		}
		if l.Price != "12.50" {
			t.Fatalf("attributed price not unwrapped: %q", l.Price)
		}
		if !strings.HasPrefix(l.Title, "Listing ") {
			t.Fatalf("title = %q", l.Title)
		}
	}
	sort.Strings(gotIDs)
	want := []string{"101", "102", "103", "104", "105"}
	for i, id := range want {
		if gotIDs[i] != id {
			t.Fatalf("ids = %v", gotIDs)
		}
	}

	// 5 ids at chunk size 2 means 3 detail requests.
	if len(fix.detailChunks) != 3 {
		t.Fatalf("detail requests = %d, want 3", len(fix.detailChunks))
	}

	keys, err := store.ListAllKeys(ctx, domain.PlatformEbay, "seller-1", 0)
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 5 {
		t.Fatalf("persisted keys = %d, want 5", len(keys))
	}
}

func TestEbayExpiredTokenDropsCredential(t *testing.T) {
	fix := &ebayFixture{itemIDs: []string{"101"}, expireToken: true}
	p, mr, _ := ebayTestPipeline(t, fix)

	_, err := p.Run(context.Background(), Options{})
	if !errors.Is(err, platform.ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
	if mr.Exists("token:ebay:seller-1") {
		t.Fatalf("expired token should be deleted from the cache")
	}
}

func TestEbayDetailChunkRetriesOn400(t *testing.T) {
	fix := &ebayFixture{itemIDs: []string{"101", "102"}, failDetail: true}
	p, _, _ := ebayTestPipeline(t, fix)

	listings, err := p.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("listings = %d, want 2", len(listings))
	}
	if fix.detailAttempts != 2 {
		t.Fatalf("detail attempts = %d, want 2", fix.detailAttempts)
	}
}

func TestEbaySampleCapsPagesToCatalogSize(t *testing.T) {
	fix := &ebayFixture{itemIDs: []string{"101", "102", "103", "104", "105"}}
	p, _, _ := ebayTestPipeline(t, fix)

	listings, err := p.Run(context.Background(), Options{Sample: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(listings) != 5 {
		t.Fatalf("listings = %d, want 5", len(listings))
	}
	// Five listings fit a single sample-sized page; no further pages may be
	// requested past the catalog's end.
	var idPages int
	for _, req := range fix.sellingPages {
		if req[0] != ebaySamplePageSize {
			continue
		}
		idPages++
		if req[1] != 1 {
			t.Fatalf("requested sample page %d past the catalog end", req[1])
		}
	}
	if idPages != 1 {
		t.Fatalf("sample id page requests = %d, want 1", idPages)
	}
}

func TestEbayEmptyIDPage(t *testing.T) {
	fix := &ebayFixture{itemIDs: []string{"101"}}
	p, _, _ := ebayTestPipeline(t, fix)

	raw := []byte(`<GetMyeBaySellingResponse><Ack>Success</Ack><ActiveList><ItemArray></ItemArray></ActiveList></GetMyeBaySellingResponse>`)
	ids, err := p.parseIDPage(context.Background(), raw)
	if err != nil {
		t.Fatalf("empty item array should not fail: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("ids = %v, want none", ids)
	}
}

func TestEbayEmptyCatalog(t *testing.T) {
	fix := &ebayFixture{}
	p, _, _ := ebayTestPipeline(t, fix)

	listings, err := p.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if listings != nil {
		t.Fatalf("expected no listings, got %d", len(listings))
	}
}
