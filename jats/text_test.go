package jats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFullText(t *testing.T) {
	tests := map[string]struct {
		blob string
		want *string
	}{
		"plain":            {`<t>Hello</t>`, str("Hello")},
		"inline markup":    {`<t>H<sub>2</sub>O</t>`, str("H 2 O")},
		"block markup":     {`<t><p>A</p><p>B</p></t>`, str("A B")},
		"collapses runs":   {"<t>  a \n\t b  </t>", str("a b")},
		"nested deep":      {`<t>x<a><b><c>y</c></b></a>z</t>`, str("x y z")},
		"whitespace only":  {"<t>  \n  </t>", nil},
		"empty":            {`<t/>`, nil},
		"empty children":   {`<t><a/> <b> </b></t>`, nil},
		"attributes unset": {`<t title="ignored"><a href="x"/>kept</t>`, str("kept")},
		"entities":         {`<t>A &amp; B</t>`, str("A & B")},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, FullText(mustRoot(t, tc.blob)))
		})
	}

	assert.Nil(t, FullText(nil))
}

func TestScalarText(t *testing.T) {
	assert.Equal(t, str("Smith"), ScalarText(mustRoot(t, `<surname>  Smith </surname>`)))
	assert.Equal(t, str("Van Der Berg"), ScalarText(mustRoot(t, "<surname>Van\n Der  Berg</surname>")))
	assert.Nil(t, ScalarText(mustRoot(t, `<surname>   </surname>`)))
	assert.Nil(t, ScalarText(mustRoot(t, `<surname><italic>Smith</italic></surname>`)))
	assert.Nil(t, ScalarText(nil))
}

func TestDescendantsMatchLocalName(t *testing.T) {
	root := mustRoot(t, `<r xmlns="urn:a" xmlns:b="urn:b"><x>1</x><b:x>2</b:x><y><x xmlns="urn:c">3</x></y></r>`)

	found := descendants(root, "x")
	if assert.Len(t, found, 3) {
		assert.Equal(t, "1", found[0].Text())
		assert.Equal(t, "2", found[1].Text())
		assert.Equal(t, "3", found[2].Text())
	}

	assert.Len(t, descendantsIn(root, "y", "x"), 1)
	assert.Equal(t, "1", firstDescendant(root, "x").Text())
	assert.Nil(t, firstDescendant(root, "z"))
}
