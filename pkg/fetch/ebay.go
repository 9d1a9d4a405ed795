package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"

	mxj "github.com/clbanning/mxj/v2"
	"golang.org/x/sync/errgroup"

	"sellsync/pkg/catalog"
	"sellsync/pkg/domain"
	"sellsync/pkg/platform"
	"sellsync/pkg/progress"
)

const (
	ebayPageSize  = 200
	ebayChunkSize = 20

	// Sample mode trades coverage for speed: three small id pages.
	ebaySamplePageSize = 10
	ebaySamplePages    = 3

	sellingRoot = "GetMyeBaySellingResponse"
	detailRoot  = "GetMultipleItemsResponse"
)

// EbayPipeline retrieves the whole eBay catalog in two stages: native item
// ids from the SOAP active list, then full details for fixed-size id chunks
// from the REST Shopping API.
type EbayPipeline struct {
	soap      platform.Client
	rest      platform.Client
	tokens    *platform.TokenCache
	store     *catalog.Store
	ownerID   string
	appID     string
	pageSize  int
	chunkSize int
	progress  progress.Sink
}

// EbayConfig wires an eBay fetch pipeline.
type EbayConfig struct {
	SOAP      platform.Client
	REST      platform.Client
	Tokens    *platform.TokenCache
	Store     *catalog.Store
	OwnerID   string
	AppID     string
	PageSize  int
	ChunkSize int
	Progress  progress.Sink
}

func NewEbayPipeline(cfg EbayConfig) *EbayPipeline {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = ebayPageSize
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = ebayChunkSize
	}
	sink := cfg.Progress
	if sink == nil {
		sink = progress.Nop{}
	}
	return &EbayPipeline{
		soap:      cfg.SOAP,
		rest:      cfg.REST,
		tokens:    cfg.Tokens,
		store:     cfg.Store,
		ownerID:   cfg.OwnerID,
		appID:     cfg.AppID,
		pageSize:  pageSize,
		chunkSize: chunkSize,
		progress:  sink,
	}
}

// Run fetches ids then details. A fatal error in either stage aborts the
// whole run; in-flight sibling requests drain but their results are
// discarded with the pipeline's failure.
func (p *EbayPipeline) Run(ctx context.Context, opts Options) ([]domain.Listing, error) {
	ids, err := p.fetchItemIDs(ctx, opts)
	if err != nil {
		return nil, err
	}
	p.progress.Incr(10, fmt.Sprintf("%d ebay item ids fetched", len(ids)))
	if len(ids) == 0 {
		p.progress.Incr(25, "no ebay listings to fetch")
		return nil, nil
	}

	chunks := chunkIDs(ids, p.chunkSize)
	p.progress.Incr(10, "fetching detailed item info")
	share := 15.0 / float64(len(chunks))

	var mu sync.Mutex
	var listings []domain.Listing
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency())
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			got, err := p.fetchChunk(gctx, chunk, opts.Persist)
			if err != nil {
				return err
			}
			mu.Lock()
			listings = append(listings, got...)
			mu.Unlock()
			p.progress.Incr(share, fmt.Sprintf("obtained ebay chunk %d/%d", i+1, len(chunks)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	p.progress.Incr(15, "ebay information completed")
	return listings, nil
}

func (p *EbayPipeline) fetchItemIDs(ctx context.Context, opts Options) ([]string, error) {
	p.progress.Incr(5, "counting ebay listings")
	total, err := p.activeListingCount(ctx)
	if err != nil {
		return nil, err
	}
	p.progress.Incr(5, fmt.Sprintf("found %d ebay listings in record", total))

	entriesPerPage := p.pageSize
	pages := numPages(total, entriesPerPage)
	if opts.Sample {
		entriesPerPage = ebaySamplePageSize
		if pages = numPages(total, entriesPerPage); pages > ebaySamplePages {
			pages = ebaySamplePages
		}
	}
	if opts.Cap > 0 && pages > opts.Cap {
		pages = opts.Cap
	}
	if pages == 0 {
		return nil, nil
	}

	p.progress.Incr(5, "fetching ebay item ids")
	share := 10.0 / float64(pages)

	pageIDs := make([][]string, pages)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency())
	for page := 1; page <= pages; page++ {
		page := page
		g.Go(func() error {
			body, err := platform.SellingRequest(entriesPerPage, page)
			if err != nil {
				return err
			}
			raw, err := retryOnce(func() ([]byte, error) {
				return p.soap.Post(gctx, platform.CallGetMyeBaySelling, nil, body)
			})
			if err != nil {
				return fmt.Errorf("fetch ebay id page %d: %w", page, err)
			}
			ids, err := p.parseIDPage(gctx, raw)
			if err != nil {
				return fmt.Errorf("ebay id page %d: %w", page, err)
			}
			pageIDs[page-1] = ids
			p.progress.Incr(share, fmt.Sprintf("obtained ebay id page %d/%d", page, pages))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var ids []string
	for _, pageSet := range pageIDs {
		ids = append(ids, pageSet...)
	}
	return ids, nil
}

func (p *EbayPipeline) activeListingCount(ctx context.Context) (int, error) {
	body, err := platform.SellingRequest(1, 1)
	if err != nil {
		return 0, err
	}
	raw, err := retryOnce(func() ([]byte, error) {
		return p.soap.Post(ctx, platform.CallGetMyeBaySelling, nil, body)
	})
	if err != nil {
		return 0, fmt.Errorf("count ebay listings: %w", err)
	}
	m, err := p.parse(ctx, raw, sellingRoot)
	if err != nil {
		return 0, err
	}
	s, err := platform.PathString(m, sellingRoot+".ActiveList.PaginationResult.TotalNumberOfEntries")
	if err != nil {
		return 0, ErrCountUnavailable
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrCountUnavailable
	}
	return n, nil
}

func (p *EbayPipeline) parseIDPage(ctx context.Context, raw []byte) ([]string, error) {
	m, err := p.parse(ctx, raw, sellingRoot)
	if err != nil {
		return nil, err
	}
	switch platform.Ack(m, sellingRoot) {
	case "Success":
	case "Warning":
		slog.Warn("ebay returned a warning acknowledgement on id fetch")
	default:
		return nil, fmt.Errorf("unexpected acknowledgement: %w", platform.ErrMalformedResponse)
	}
	// A page past the catalog's tail carries an empty ItemArray; that is
	// zero ids, not a structural failure.
	items, _ := m.ValuesForPath(sellingRoot + ".ActiveList.ItemArray.Item")
	ids := make([]string, 0, len(items))
	for _, item := range items {
		doc, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("item entry: %w", platform.ErrMalformedResponse)
		}
		id := platform.TextOf(doc["ItemID"])
		if id == "" {
			return nil, fmt.Errorf("item without id: %w", platform.ErrMalformedResponse)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (p *EbayPipeline) fetchChunk(ctx context.Context, chunk []string, persist bool) ([]domain.Listing, error) {
	query := url.Values{}
	query.Set("callname", platform.CallGetMultipleItems)
	query.Set("responseencoding", "XML")
	query.Set("appid", p.appID)
	query.Set("version", "967")
	query.Set("IncludeSelector", "Details,Description,ItemSpecifics,Variations")
	query.Set("ItemID", strings.Join(chunk, ","))

	raw, err := retryOnce(func() ([]byte, error) {
		return p.rest.Get(ctx, "shopping", query, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch ebay item chunk: %w", err)
	}
	m, err := p.parse(ctx, raw, detailRoot)
	if err != nil {
		return nil, err
	}
	items, err := platform.PathValues(m, detailRoot+".Item")
	if err != nil {
		return nil, err
	}
	listings := make([]domain.Listing, 0, len(items))
	for _, item := range items {
		doc, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("item entry: %w", platform.ErrMalformedResponse)
		}
		listing, err := p.decodeItem(doc)
		if err != nil {
			return nil, err
		}
		if persist {
			if err := p.store.SaveListing(ctx, listing); err != nil {
				return nil, err
			}
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

func (p *EbayPipeline) decodeItem(doc map[string]interface{}) (domain.Listing, error) {
	itemID := platform.TextOf(doc["ItemID"])
	if itemID == "" {
		return domain.Listing{}, fmt.Errorf("item without id: %w", platform.ErrMalformedResponse)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("encode ebay item %s: %w", itemID, err)
	}
	return domain.Listing{
		Platform: domain.PlatformEbay,
		OwnerID:  p.ownerID,
		ItemID:   itemID,
		Title:    platform.TextOf(doc["Title"]),
		Price:    platform.TextOf(doc["CurrentPrice"]),
		Raw:      raw,
	}, nil
}

// parse decodes a Trading API response; an expired credential invalidates
// both client caches and drops the stored token so the owner re-logs in
// before the next run.
func (p *EbayPipeline) parse(ctx context.Context, raw []byte, root string) (mxj.Map, error) {
	m, err := platform.ParseResponse(raw, root)
	if errors.Is(err, platform.ErrAuthExpired) {
		p.soap.InvalidateCredential()
		p.rest.InvalidateCredential()
		if delErr := p.tokens.Delete(ctx, domain.PlatformEbay, p.ownerID); delErr != nil {
			slog.Warn("could not drop expired ebay token", "err", delErr)
		}
	}
	return m, err
}
