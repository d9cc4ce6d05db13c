package jats

import (
	"strings"

	"github.com/beevik/etree"
)

// FullText joins the text of every descendant text node of e with a single
// space, collapses whitespace and trims the result. Tag boundaries are not
// special-cased: inline and block markup are flattened alike, so
// "H<sub>2</sub>O" becomes "H 2 O". It returns nil when nothing but
// whitespace is left.
func FullText(e *etree.Element) *string {
	if e == nil {
		return nil
	}
	var frags []string
	collectText(e, &frags)
	return condense(strings.Join(frags, " "))
}

func collectText(e *etree.Element, frags *[]string) {
	for _, tok := range e.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			*frags = append(*frags, t.Data)
		case *etree.Element:
			collectText(t, frags)
		}
	}
}

// ScalarText applies the FullText absence rule to the element's own leading
// text only. It is meant for short values such as a year or a surname.
func ScalarText(e *etree.Element) *string {
	if e == nil {
		return nil
	}
	return condense(e.Text())
}

func condense(s string) *string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return nil
	}
	return &s
}

// Element lookups below match on the local name only, whatever prefix or
// default namespace the document uses.

// descendants returns the elements below e named tag, in document order.
func descendants(e *etree.Element, tag string) []*etree.Element {
	var found []*etree.Element
	walk(e, func(el *etree.Element) {
		if el.Tag == tag {
			found = append(found, el)
		}
	})
	return found
}

// descendantsIn returns the elements below e named tag whose parent is named
// parentTag, in document order.
func descendantsIn(e *etree.Element, parentTag, tag string) []*etree.Element {
	var found []*etree.Element
	walk(e, func(el *etree.Element) {
		if el.Tag == tag && el.Parent() != nil && el.Parent().Tag == parentTag {
			found = append(found, el)
		}
	})
	return found
}

func firstDescendant(e *etree.Element, tag string) *etree.Element {
	if e == nil {
		return nil
	}
	for _, c := range e.ChildElements() {
		if c.Tag == tag {
			return c
		}
		if found := firstDescendant(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// walk visits every element below e in document order.
func walk(e *etree.Element, fn func(*etree.Element)) {
	for _, c := range e.ChildElements() {
		fn(c)
		walk(c, fn)
	}
}

// attr returns the value of the attribute whose local name is key.
func attr(e *etree.Element, key string) (string, bool) {
	for _, a := range e.Attr {
		if a.Key == key && a.Space != "xmlns" {
			return a.Value, true
		}
	}
	return "", false
}

// discriminator returns the case-folded value of a type attribute.
func discriminator(e *etree.Element, key string) string {
	v, _ := attr(e, key)
	return strings.ToLower(strings.TrimSpace(v))
}
