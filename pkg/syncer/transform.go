package syncer

import (
	"encoding/json"
	"fmt"
	"strings"

	"sellsync/pkg/domain"
	"sellsync/pkg/platform"
)

type shopifyOption struct {
	Name     string `json:"name"`
	Position string `json:"position"`
}

type shopifyImage struct {
	Src string `json:"src"`
}

type shopifyVariant struct {
	Price               string `json:"price,omitempty"`
	FulfillmentService  string `json:"fulfillment_service,omitempty"`
	InventoryManagement string `json:"inventory_management,omitempty"`
	SKU                 string `json:"sku,omitempty"`
}

type shopifyProduct struct {
	Vendor      string           `json:"vendor,omitempty"`
	Title       string           `json:"title,omitempty"`
	Tags        string           `json:"tags,omitempty"`
	BodyHTML    string           `json:"body_html,omitempty"`
	ProductType string           `json:"product_type,omitempty"`
	Options     []shopifyOption  `json:"options,omitempty"`
	Images      []shopifyImage   `json:"images,omitempty"`
	Variants    []shopifyVariant `json:"variants,omitempty"`
}

// ebayToShopifyPayload maps a persisted eBay listing onto Shopify's product
// creation schema. The native item id travels in Tags so the create/update
// response can be correlated back to its source listing.
func ebayToShopifyPayload(listing domain.Listing, vendor string) ([]byte, error) {
	var doc map[string]interface{}
	if len(listing.Raw) > 0 {
		if err := json.Unmarshal(listing.Raw, &doc); err != nil {
			return nil, fmt.Errorf("decode raw listing %s: %w", listing.ItemID, err)
		}
	}
	product := shopifyProduct{
		Vendor:      vendor,
		Title:       listing.Title,
		Tags:        listing.ItemID,
		BodyHTML:    bodyHTML(doc),
		ProductType: strings.ReplaceAll(docText(doc, "PrimaryCategoryName"), "eBay ", ""),
		Options:     []shopifyOption{{Name: "Title", Position: "1"}},
		Variants: []shopifyVariant{{
			Price:               listing.Price,
			FulfillmentService:  "manual",
			InventoryManagement: "shopify",
			SKU:                 docText(doc, "SKU"),
		}},
	}
	for _, src := range docTexts(doc, "PictureURL") {
		product.Images = append(product.Images, shopifyImage{Src: src})
	}
	return json.Marshal(struct {
		Product shopifyProduct `json:"product"`
	}{Product: product})
}

func bodyHTML(doc map[string]interface{}) string {
	return specificsHTML(
		itemSpecifics(doc),
		docText(doc, "ConditionDisplayName"),
		docText(doc, "ConditionDescription"),
		docText(doc, "Description"),
	)
}

// itemSpecifics flattens ItemSpecifics.NameValueList into a name->value map.
func itemSpecifics(doc map[string]interface{}) map[string]string {
	specifics := make(map[string]string)
	container, ok := doc["ItemSpecifics"].(map[string]interface{})
	if !ok {
		return specifics
	}
	for _, entry := range valueList(container["NameValueList"]) {
		pair, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		name := platform.TextOf(pair["Name"])
		if name == "" {
			continue
		}
		values := docTexts(pair, "Value")
		if len(values) > 0 {
			specifics[name] = values[0]
		}
	}
	return specifics
}

// docText reads one text value from a decoded XML document, unwrapping the
// attribute form and collapsing lists to their first element.
func docText(doc map[string]interface{}, key string) string {
	if doc == nil {
		return ""
	}
	values := docTexts(doc, key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func docTexts(doc map[string]interface{}, key string) []string {
	if doc == nil {
		return nil
	}
	var out []string
	for _, v := range valueList(doc[key]) {
		if s := platform.TextOf(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// valueList normalizes the decoded XML shape: absent -> nil, single element
// -> one-item list, repeated element -> the list itself.
func valueList(v interface{}) []interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return t
	default:
		return []interface{}{t}
	}
}
