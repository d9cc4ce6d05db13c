package jats

import (
	"github.com/beevik/etree"
)

// ResolveFunding extracts funding declarations from award-group blocks and
// from the legacy contract-sponsor and contract-num elements. The two passes
// are concatenated as is, identical entries included.
func ResolveFunding(article *etree.Element) []FundingEntry {
	entries := modernFunding(article)
	return append(entries, legacyFunding(article)...)
}

func modernFunding(article *etree.Element) []FundingEntry {
	var entries []FundingEntry
	for _, group := range descendants(article, "award-group") {
		agencies := collectFullText(descendants(group, "funding-source"))
		grants := collectFullText(descendants(group, "award-id"))

		switch {
		case len(agencies) > 0 && len(grants) > 0:
			for i := range agencies {
				for j := range grants {
					entries = append(entries, FundingEntry{Agency: &agencies[i], GrantID: &grants[j]})
				}
			}
		case len(agencies) > 0:
			for i := range agencies {
				entries = append(entries, FundingEntry{Agency: &agencies[i]})
			}
		case len(grants) > 0:
			for j := range grants {
				entries = append(entries, FundingEntry{GrantID: &grants[j]})
			}
		}
	}
	return entries
}

func legacyFunding(article *etree.Element) []FundingEntry {
	var entries []FundingEntry
	for _, agency := range collectFullText(descendants(article, "contract-sponsor")) {
		agency := agency
		entries = append(entries, FundingEntry{Agency: &agency})
	}
	for _, grant := range collectFullText(descendants(article, "contract-num")) {
		grant := grant
		entries = append(entries, FundingEntry{GrantID: &grant})
	}
	return entries
}

// collectFullText returns the non-empty flattened text of each element.
func collectFullText(elems []*etree.Element) []string {
	var out []string
	for _, e := range elems {
		if text := FullText(e); text != nil {
			out = append(out, *text)
		}
	}
	return out
}
