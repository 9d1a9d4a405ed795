package platform

import (
	"fmt"
	"time"

	mxj "github.com/clbanning/mxj/v2"
)

const (
	tradingNamespace = "urn:ebay:apis:eBLBaseComponents"

	// expiredTokenCode is the Trading API error code for a hard-expired
	// IAF token.
	expiredTokenCode = "21917053"

	// sellerListWindowDays bounds GetSellerList's StartTime range; the API
	// rejects windows wider than 120 days.
	sellerListWindowDays = 119

	ebayTimeLayout = "2006-01-02T15:04:05.000"
)

const xmlDeclaration = "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n"

// Trading API call names used by the fetch pipelines.
const (
	CallGetMyeBaySelling = "GetMyeBaySelling"
	CallGetSellerList    = "GetSellerList"
	CallGetItem          = "GetItem"
	CallGetMultipleItems = "GetMultipleItems"
)

func buildEnvelope(root string, body map[string]interface{}) ([]byte, error) {
	body["-xmlns"] = tradingNamespace
	body["ErrorLanguage"] = "en_US"
	body["WarningLevel"] = "High"
	out, err := mxj.Map{root: body}.XmlIndent("", " ")
	if err != nil {
		return nil, fmt.Errorf("build %s envelope: %w", root, err)
	}
	return append([]byte(xmlDeclaration), out...), nil
}

// SellingRequest builds a GetMyeBaySellingRequest envelope for one page of
// the seller's active list.
func SellingRequest(entriesPerPage, page int) ([]byte, error) {
	return buildEnvelope("GetMyeBaySellingRequest", map[string]interface{}{
		"ActiveList": map[string]interface{}{
			"Include":      true,
			"IncludeNotes": true,
			"Pagination": map[string]interface{}{
				"EntriesPerPage": entriesPerPage,
				"PageNumber":     page,
			},
		},
	})
}

// SellerListRequest builds a GetSellerListRequest envelope covering the
// maximum allowed start-time window ending now.
func SellerListRequest(entriesPerPage, page int, now time.Time) ([]byte, error) {
	now = now.UTC()
	return buildEnvelope("GetSellerListRequest", map[string]interface{}{
		"GranularityLevel":  "Fine",
		"StartTimeFrom":     now.AddDate(0, 0, -sellerListWindowDays).Format(ebayTimeLayout),
		"StartTimeTo":       now.Format(ebayTimeLayout),
		"IncludeWatchCount": true,
		"Pagination": map[string]interface{}{
			"EntriesPerPage": entriesPerPage,
			"PageNumber":     page,
		},
	})
}

// ItemRequest builds a GetItemRequest envelope for a single listing.
func ItemRequest(itemID string) ([]byte, error) {
	return buildEnvelope("GetItemRequest", map[string]interface{}{
		"ItemID":               itemID,
		"IncludeItemSpecifics": true,
	})
}

// ParseResponse decodes a Trading API XML response, surfacing an expired
// credential as ErrAuthExpired before any structural extraction happens.
func ParseResponse(body []byte, root string) (mxj.Map, error) {
	m, err := mxj.NewMapXml(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	codes, _ := m.ValuesForPath(root + ".Errors.ErrorCode")
	for _, code := range codes {
		if s, ok := code.(string); ok && s == expiredTokenCode {
			return nil, ErrAuthExpired
		}
	}
	return m, nil
}

// Ack returns the response acknowledgement ("Success", "Warning", ...).
func Ack(m mxj.Map, root string) string {
	v, err := m.ValueForPath(root + ".Ack")
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// PathString extracts a required string value, unwrapping mxj's "#text"
// form when the element carried attributes.
func PathString(m mxj.Map, path string) (string, error) {
	v, err := m.ValueForPath(path)
	if err != nil || v == nil {
		return "", fmt.Errorf("%s: %w", path, ErrMalformedResponse)
	}
	return textOf(v), nil
}

// PathValues extracts a list at path; mxj collapses single elements to a
// scalar, so a one-item list still comes back as one value.
func PathValues(m mxj.Map, path string) ([]interface{}, error) {
	vals, err := m.ValuesForPath(path)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrMalformedResponse)
	}
	return vals, nil
}

func textOf(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]interface{}:
		if s, ok := t["#text"].(string); ok {
			return s
		}
	}
	return ""
}

// TextOf exposes attribute-aware text extraction for callers walking raw
// decoded maps.
func TextOf(v interface{}) string {
	return textOf(v)
}
