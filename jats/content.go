package jats

import (
	"github.com/beevik/etree"
)

// ResolveContent extracts the title, abstract and journal name. When an
// element occurs more than once, such as a graphical abstract following the
// main one, only the first in document order is used.
func ResolveContent(article *etree.Element) ArticleContent {
	return ArticleContent{
		Title:       FullText(firstDescendant(article, "article-title")),
		Abstract:    FullText(firstDescendant(article, "abstract")),
		JournalName: FullText(firstDescendant(article, "journal-title")),
	}
}

// ResolveKeywords returns the keywords of every kwd-group in document order.
// A compound-kwd yields a single keyword made of its parts joined by a space.
func ResolveKeywords(article *etree.Element) []string {
	var keywords []string
	for _, group := range descendants(article, "kwd-group") {
		for _, kwd := range group.ChildElements() {
			if kwd.Tag != "kwd" && kwd.Tag != "compound-kwd" {
				continue
			}
			if text := FullText(kwd); text != nil {
				keywords = append(keywords, *text)
			}
		}
	}
	return keywords
}
