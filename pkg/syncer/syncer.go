package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"sellsync/internal/ratelimit"
	"sellsync/internal/util"
	"sellsync/pkg/catalog"
	"sellsync/pkg/domain"
	"sellsync/pkg/fetch"
	"sellsync/pkg/platform"
	"sellsync/pkg/progress"
)

// ErrUnsupportedRoute indicates no push transform exists for the requested
// source/target platform pair.
var ErrUnsupportedRoute = errors.New("no push transform for platform pair")

// PushFailure records one isolated per-listing push error.
type PushFailure struct {
	ItemID string `json:"itemId"`
	Reason string `json:"reason"`
}

// PushReport summarizes a push phase. Listing-level failures are collected
// here instead of failing the batch.
type PushReport struct {
	Pushed int           `json:"pushed"`
	Failed []PushFailure `json:"failed,omitempty"`
}

// Config wires a Syncer.
type Config struct {
	Store          *catalog.Store
	Mappings       *catalog.MappingStore
	Ebay           *fetch.EbayPipeline
	Shopify        *fetch.ShopifyPipeline
	ShopifyClient  platform.Client
	EbayOwnerID    string
	ShopifyOwnerID string
	// PushConcurrency bounds simultaneous per-listing pushes. Defaults to 4.
	PushConcurrency int
	// PushLimiter optionally caps the global write rate against the target
	// platform across all workers and processes. Nil disables it.
	PushLimiter *ratelimit.FixedWindowLimiter
	Progress    progress.Sink
}

// Syncer composes the fetch pipelines, catalog store, diff engine and
// correlation store into full sync cycles.
type Syncer struct {
	store          *catalog.Store
	mappings       *catalog.MappingStore
	ebay           *fetch.EbayPipeline
	shopify        *fetch.ShopifyPipeline
	shopifyClient  platform.Client
	ebayOwnerID    string
	shopifyOwnerID string
	concurrency    int
	limiter        *ratelimit.FixedWindowLimiter
	progress       progress.Sink
}

func New(cfg Config) (*Syncer, error) {
	if cfg.Store == nil || cfg.Mappings == nil {
		return nil, errors.New("catalog and mapping stores required")
	}
	if cfg.Ebay == nil || cfg.Shopify == nil {
		return nil, errors.New("both fetch pipelines required")
	}
	if cfg.ShopifyClient == nil {
		return nil, errors.New("shopify client required")
	}
	if cfg.EbayOwnerID == "" || cfg.ShopifyOwnerID == "" {
		return nil, errors.New("owner ids required for both platforms")
	}
	concurrency := cfg.PushConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	sink := cfg.Progress
	if sink == nil {
		sink = progress.Nop{}
	}
	return &Syncer{
		store:          cfg.Store,
		mappings:       cfg.Mappings,
		ebay:           cfg.Ebay,
		shopify:        cfg.Shopify,
		shopifyClient:  cfg.ShopifyClient,
		ebayOwnerID:    cfg.EbayOwnerID,
		shopifyOwnerID: cfg.ShopifyOwnerID,
		concurrency:    concurrency,
		limiter:        cfg.PushLimiter,
		progress:       sink,
	}, nil
}

// FetchAll runs both fetch pipelines concurrently. Overall success requires
// both to succeed; a failure on one side discards the other side's results.
func (s *Syncer) FetchAll(ctx context.Context, opts fetch.Options) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := s.ebay.Run(gctx, opts); err != nil {
			return fmt.Errorf("ebay fetch: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := s.shopify.Run(gctx, opts); err != nil {
			return fmt.Errorf("shopify fetch: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// DiffCatalogs loads both title indices and computes the ordered set
// difference between them.
func (s *Syncer) DiffCatalogs(ctx context.Context) (catalog.DiffResult, error) {
	left, err := s.store.TitleIndex(ctx, domain.PlatformEbay, s.ebayOwnerID)
	if err != nil {
		return catalog.DiffResult{}, err
	}
	right, err := s.store.TitleIndex(ctx, domain.PlatformShopify, s.shopifyOwnerID)
	if err != nil {
		return catalog.DiffResult{}, err
	}
	res := catalog.DiffByTitle(left, right)
	slog.Info("catalog diff computed",
		"ebayIndexed", len(left), "shopifyIndexed", len(right),
		"common", len(res.Common), "ebayOnly", len(res.LeftOnly), "shopifyOnly", len(res.RightOnly))
	return res, nil
}

// PushCatalog pushes every persisted source listing to the target platform,
// creating or updating according to the correlation store and recording the
// resulting mapping pair. Listing failures are isolated into the report.
func (s *Syncer) PushCatalog(ctx context.Context, source, target domain.Platform, limit int64) (PushReport, error) {
	if source != domain.PlatformEbay || target != domain.PlatformShopify {
		return PushReport{}, fmt.Errorf("%s -> %s: %w", source, target, ErrUnsupportedRoute)
	}
	keys, err := s.store.ListAllKeys(ctx, source, s.ebayOwnerID, limit)
	if err != nil {
		return PushReport{}, err
	}
	if len(keys) == 0 {
		return PushReport{}, nil
	}
	s.progress.Incr(5, fmt.Sprintf("pushing %d ebay listings to shopify", len(keys)))
	share := 15.0 / float64(len(keys))

	var mu sync.Mutex
	var report PushReport
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			itemID, pushErr := s.pushOne(gctx, key)
			mu.Lock()
			if pushErr != nil {
				slog.Warn("listing push failed", "item", itemID, "err", pushErr)
				report.Failed = append(report.Failed, PushFailure{ItemID: itemID, Reason: pushErr.Error()})
			} else {
				report.Pushed++
			}
			mu.Unlock()
			s.progress.Incr(share, fmt.Sprintf("pushed listing %s", itemID))
			// Sibling pushes continue regardless of this listing's outcome.
			return nil
		})
	}
	_ = g.Wait()
	return report, nil
}

func (s *Syncer) pushOne(ctx context.Context, key string) (string, error) {
	listing, ok, err := s.store.GetListingByKey(ctx, key)
	if err != nil {
		return key, err
	}
	if !ok {
		return key, errors.New("listing record missing")
	}
	payload, err := ebayToShopifyPayload(listing, s.shopifyOwnerID)
	if err != nil {
		return listing.ItemID, err
	}
	from := domain.ListingRef{Platform: domain.PlatformEbay, OwnerID: listing.OwnerID, ItemID: listing.ItemID}
	targetID, err := s.mappings.CorrespondingID(ctx, from, domain.PlatformShopify, s.shopifyOwnerID)
	if err != nil {
		return listing.ItemID, err
	}
	if err := s.limiter.Wait(ctx, "shopify-write"); err != nil {
		return listing.ItemID, err
	}
	var raw []byte
	if targetID == "" {
		raw, err = s.shopifyClient.Post(ctx, "admin/products.json", nil, payload)
	} else {
		raw, err = s.shopifyClient.Put(ctx, fmt.Sprintf("admin/products/%s.json", targetID), nil, payload)
	}
	if err != nil {
		return listing.ItemID, err
	}
	var resp struct {
		Product struct {
			ID json.Number `json:"id"`
		} `json:"product"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Product.ID.String() == "" {
		return listing.ItemID, fmt.Errorf("push response: %w", platform.ErrMalformedResponse)
	}
	to := domain.ListingRef{Platform: domain.PlatformShopify, OwnerID: s.shopifyOwnerID, ItemID: resp.Product.ID.String()}
	if err := s.mappings.SetMapping(ctx, from, to); err != nil {
		return listing.ItemID, err
	}
	return listing.ItemID, nil
}

// RunFullSync fetches both catalogs, persisting as pages arrive, then pushes
// the eBay catalog to Shopify. Fetch failures fail the sync; isolated push
// failures do not.
func (s *Syncer) RunFullSync(ctx context.Context, opts fetch.Options) (PushReport, error) {
	runID := util.NewID(8)
	slog.Info("full sync started", "run", runID, "sample", opts.Sample)
	opts.Persist = true
	if err := s.FetchAll(ctx, opts); err != nil {
		return PushReport{}, err
	}
	report, err := s.PushCatalog(ctx, domain.PlatformEbay, domain.PlatformShopify, 0)
	if err != nil {
		return report, err
	}
	slog.Info("full sync finished", "run", runID, "pushed", report.Pushed, "failed", len(report.Failed))
	return report, nil
}
