// Package app wires configuration into a ready Syncer and its collaborators.
package app

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"sellsync/internal/config"
	"sellsync/internal/ratelimit"
	"sellsync/pkg/catalog"
	"sellsync/pkg/fetch"
	"sellsync/pkg/platform"
	"sellsync/pkg/progress"
	"sellsync/pkg/syncer"
)

// App bundles the syncer with the handles the CLI needs around it.
type App struct {
	Syncer           *syncer.Syncer
	Store            *catalog.Store
	Redis            *redis.Client
	Ebay             *fetch.EbayPipeline
	Shopify          *fetch.ShopifyPipeline
	FetchConcurrency int
}

// Build constructs the full component graph from configuration.
func Build(cfg config.FileConfig) (*App, error) {
	timeout, err := cfg.ParseRequestTimeout()
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	tokens := platform.NewTokenCache(rdb)
	store := catalog.NewStore(rdb)
	mappings := catalog.NewMappingStore(rdb)

	clientCfg := platform.Config{
		Tokens:            tokens,
		Sandbox:           cfg.Sandbox(),
		Timeout:           timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.RequestBurst,
	}

	soapCfg := clientCfg
	soapCfg.OwnerID = cfg.EbayOwnerID
	ebaySOAP := platform.NewEbaySOAP(soapCfg)
	ebayREST := platform.NewEbayREST(soapCfg)
	shopifyClient := platform.NewShopify(clientCfg, cfg.ShopifyStore)

	sink := progress.NewLog()
	ebayPipeline := fetch.NewEbayPipeline(fetch.EbayConfig{
		SOAP:     ebaySOAP,
		REST:     ebayREST,
		Tokens:   tokens,
		Store:    store,
		OwnerID:  cfg.EbayOwnerID,
		AppID:    cfg.EbayAppID,
		Progress: sink,
	})
	shopifyPipeline := fetch.NewShopifyPipeline(fetch.ShopifyConfig{
		Client:   shopifyClient,
		Store:    store,
		OwnerID:  cfg.ShopifyStore,
		Progress: sink,
	})

	var limiter *ratelimit.FixedWindowLimiter
	if cfg.PushRateLimit > 0 {
		window, err := cfg.ParsePushRateWindow()
		if err != nil {
			return nil, err
		}
		limiter, err = ratelimit.NewFixedWindowLimiter(rdb, "sellsync:ratelimit", cfg.PushRateLimit, window)
		if err != nil {
			return nil, err
		}
	}

	s, err := syncer.New(syncer.Config{
		Store:           store,
		Mappings:        mappings,
		Ebay:            ebayPipeline,
		Shopify:         shopifyPipeline,
		ShopifyClient:   shopifyClient,
		EbayOwnerID:     cfg.EbayOwnerID,
		ShopifyOwnerID:  cfg.ShopifyStore,
		PushConcurrency: cfg.PushConcurrency,
		PushLimiter:     limiter,
		Progress:        sink,
	})
	if err != nil {
		return nil, fmt.Errorf("init syncer: %w", err)
	}

	return &App{
		Syncer:           s,
		Store:            store,
		Redis:            rdb,
		Ebay:             ebayPipeline,
		Shopify:          shopifyPipeline,
		FetchConcurrency: cfg.FetchConcurrency,
	}, nil
}
