package jats

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"
)

func mustRoot(t *testing.T, blob string) *etree.Element {
	t.Helper()

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(blob))
	require.NotNil(t, doc.Root())

	return doc.Root()
}

func str(s string) *string { return &s }
