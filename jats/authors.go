package jats

import (
	"strings"

	"github.com/beevik/etree"
)

// ResolveAuthors returns the contributors of every contrib-group in document
// order, with their affiliation references resolved to affiliation text.
func ResolveAuthors(article *etree.Element) []Author {
	affs := affiliationIndex(article)

	var authors []Author
	for _, contrib := range descendantsIn(article, "contrib-group", "contrib") {
		author := Author{
			Surname:      ScalarText(firstDescendant(contrib, "surname")),
			GivenNames:   ScalarText(firstDescendant(contrib, "given-names")),
			Affiliations: []string{},
		}
		for _, xref := range descendants(contrib, "xref") {
			if discriminator(xref, "ref-type") != "aff" {
				continue
			}
			rid, _ := attr(xref, "rid")
			for _, id := range strings.Fields(rid) {
				if text, ok := affs[id]; ok {
					author.Affiliations = append(author.Affiliations, text)
				}
			}
		}
		authors = append(authors, author)
	}
	return authors
}

// affiliationIndex maps aff identifiers to their flattened text. A later
// definition of the same identifier replaces an earlier one.
func affiliationIndex(article *etree.Element) map[string]string {
	index := map[string]string{}
	for _, aff := range descendants(article, "aff") {
		id, ok := attr(aff, "id")
		if !ok {
			continue
		}
		if text := FullText(aff); text != nil {
			index[id] = *text
		}
	}
	return index
}
