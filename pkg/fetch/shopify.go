package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"sellsync/pkg/catalog"
	"sellsync/pkg/domain"
	"sellsync/pkg/platform"
	"sellsync/pkg/progress"
)

const shopifyPageSize = 250

// ShopifyPipeline retrieves the whole Shopify catalog: one count round-trip,
// then one request per page, fanned out with bounded concurrency.
type ShopifyPipeline struct {
	client   platform.Client
	store    *catalog.Store
	ownerID  string
	pageSize int
	progress progress.Sink
}

// ShopifyConfig wires a Shopify fetch pipeline.
type ShopifyConfig struct {
	Client   platform.Client
	Store    *catalog.Store
	OwnerID  string
	PageSize int
	Progress progress.Sink
}

func NewShopifyPipeline(cfg ShopifyConfig) *ShopifyPipeline {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = shopifyPageSize
	}
	sink := cfg.Progress
	if sink == nil {
		sink = progress.Nop{}
	}
	return &ShopifyPipeline{
		client:   cfg.Client,
		store:    cfg.Store,
		ownerID:  cfg.OwnerID,
		pageSize: pageSize,
		progress: sink,
	}
}

// Run fetches every product page. Any page-level error (after its single
// retry) aborts the run; there is no partial resume.
func (p *ShopifyPipeline) Run(ctx context.Context, opts Options) ([]domain.Listing, error) {
	p.progress.Incr(5, "counting shopify products")
	total, err := p.productCount(ctx)
	if err != nil {
		return nil, err
	}
	p.progress.Incr(5, fmt.Sprintf("%d shopify products counted", total))

	pages := numPages(total, p.pageSize)
	if opts.Sample && pages > 1 {
		pages = 1
	}
	if opts.Cap > 0 && pages > opts.Cap {
		pages = opts.Cap
	}
	if pages == 0 {
		p.progress.Incr(25, "no shopify products to fetch")
		return nil, nil
	}

	p.progress.Incr(5, "fetching all shopify products")
	share := 10.0 / float64(pages)

	var mu sync.Mutex
	var listings []domain.Listing
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency())
	for page := 1; page <= pages; page++ {
		page := page
		g.Go(func() error {
			got, err := p.fetchPage(gctx, page, opts.Persist)
			if err != nil {
				return err
			}
			mu.Lock()
			listings = append(listings, got...)
			mu.Unlock()
			p.progress.Incr(share, fmt.Sprintf("obtained shopify page %d/%d", page, pages))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	p.progress.Incr(10, "all shopify products fetched")
	return listings, nil
}

func (p *ShopifyPipeline) productCount(ctx context.Context) (int, error) {
	raw, err := retryOnce(func() ([]byte, error) {
		return p.client.Get(ctx, "admin/products/count.json", nil, nil)
	})
	if err != nil {
		return 0, fmt.Errorf("count shopify products: %w", err)
	}
	var resp struct {
		Count *int `json:"count"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Count == nil {
		return 0, ErrCountUnavailable
	}
	return *resp.Count, nil
}

func (p *ShopifyPipeline) fetchPage(ctx context.Context, page int, persist bool) ([]domain.Listing, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(p.pageSize))
	query.Set("page", strconv.Itoa(page))
	raw, err := retryOnce(func() ([]byte, error) {
		return p.client.Get(ctx, "admin/products.json", query, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch shopify page %d: %w", page, err)
	}
	var resp struct {
		Products []json.RawMessage `json:"products"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("shopify page %d: %w: %v", page, platform.ErrMalformedResponse, err)
	}
	listings := make([]domain.Listing, 0, len(resp.Products))
	for _, doc := range resp.Products {
		listing, err := p.decodeProduct(doc)
		if err != nil {
			return nil, fmt.Errorf("shopify page %d: %w", page, err)
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

func (p *ShopifyPipeline) decodeProduct(doc json.RawMessage) (domain.Listing, error) {
	var product struct {
		ID       json.Number `json:"id"`
		Title    string      `json:"title"`
		Variants []struct {
			Price string `json:"price"`
		} `json:"variants"`
	}
	if err := json.Unmarshal(doc, &product); err != nil {
		return domain.Listing{}, fmt.Errorf("%w: %v", platform.ErrMalformedResponse, err)
	}
	if product.ID.String() == "" {
		return domain.Listing{}, fmt.Errorf("product without id: %w", platform.ErrMalformedResponse)
	}
	price := ""
	if len(product.Variants) > 0 {
		price = product.Variants[0].Price
	}
	return domain.Listing{
		Platform: domain.PlatformShopify,
		OwnerID:  p.ownerID,
		ItemID:   product.ID.String(),
		Title:    product.Title,
		Price:    price,
		Raw:      doc,
	}, nil
}
