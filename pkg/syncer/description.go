package syncer

import "fmt"

// specificsHTML renders the Shopify body_html block for a pushed listing.
// Listings without item specifics fall back to their plain description.
func specificsHTML(specifics map[string]string, conditionName, conditionNotes, description string) string {
	if len(specifics) == 0 {
		return description
	}
	return fmt.Sprintf(`<div class="section"><p class="secHd">Item specifics</p>`+
		`<table style="table-layout: auto !important;" id="itmSellerDesc" width="100%%" cellspacing="0" cellpadding="0"><tbody>`+
		`<tr><th>Condition:</th><td style="width: 92%%;"><b>%s</b></td></tr>`+
		`<tr><th>Seller Notes:</th><td class="sellerNotesContent"><span class="viDescQuotes">&ldquo;</span><span class="viSNotesCnt">%s</span><span class="viDescQuotes">&rdquo;</span></td></tr>`+
		`</tbody></table>`+
		`<table style="table-layout: auto !important;" width="100%%" cellspacing="0" cellpadding="0"><tbody>`+
		`<tr><td class="attrLabels">Brand:</td><td width="50.0%%"><p itemprop="brand" itemscope="itemscope" itemtype="http://schema.org/Brand"><span itemprop="name">%s</span></p></td>`+
		`<td class="attrLabels">Part Type:</td><td width="50.0%%"><span>%s</span></td></tr>`+
		`<tr><td class="attrLabels">Manufacturer Part Number:</td><td width="50.0%%"><p itemprop="mpn">%s</p></td></tr>`+
		`</tbody></table></div>`,
		conditionName, conditionNotes,
		specifics["Brand"], specifics["Part Type"], specifics["Manufacturer Part Number"])
}
