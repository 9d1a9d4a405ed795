package domain

import "encoding/json"

// Platform identifies one of the two marketplaces being synchronized.
type Platform string

const (
	PlatformEbay    Platform = "ebay"
	PlatformShopify Platform = "shopify"
)

// Listing is the normalized form of a product listing on either platform.
// Raw carries the platform's own document so pushes can reconstruct fields
// the normalized view drops.
type Listing struct {
	Platform Platform        `json:"platform"`
	OwnerID  string          `json:"ownerId"`
	ItemID   string          `json:"itemId"`
	Title    string          `json:"title"`
	Price    string          `json:"price,omitempty"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// ListingRef names a listing by platform, owner and native item id.
type ListingRef struct {
	Platform Platform
	OwnerID  string
	ItemID   string
}
