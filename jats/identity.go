package jats

import (
	"strings"

	"github.com/beevik/etree"
)

const pmcPrefix = "PMC"

// ResolveIdentity extracts the PMC ID, PubMed ID and DOI of the article and
// classifies it. For each identifier kind the first matching article-id in
// document order is used and later duplicates are ignored.
func ResolveIdentity(article *etree.Element) ArticleIdentity {
	id := ArticleIdentity{ArticleType: resolveArticleType(article)}

	seen := map[string]bool{}
	for _, el := range descendants(article, "article-id") {
		kind := discriminator(el, "pub-id-type")
		switch kind {
		case "pmc", "pmid", "doi":
		default:
			continue
		}
		if seen[kind] {
			continue
		}
		seen[kind] = true

		text := ScalarText(el)
		switch kind {
		case "pmc":
			id.PMCID = stripPMCPrefix(text)
		case "pmid":
			id.PMID = text
		case "doi":
			id.DOI = text
		}
	}

	return id
}

// stripPMCPrefix removes exactly the three characters of a case-insensitive
// "PMC" prefix. Anything following it, including a space, is kept.
func stripPMCPrefix(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	if len(s) >= len(pmcPrefix) && strings.ToUpper(s[:len(pmcPrefix)]) == pmcPrefix {
		s = s[len(pmcPrefix):]
	}
	if s == "" {
		return nil
	}
	return &s
}

func resolveArticleType(article *etree.Element) ArticleType {
	switch discriminator(article, "article-type") {
	case "research-article":
		return ArticleTypeResearch
	case "review-article":
		return ArticleTypeReview
	case "case-report":
		return ArticleTypeCaseReport
	default:
		return ArticleTypeOther
	}
}
