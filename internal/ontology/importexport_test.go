package ontology_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-search/beacon/internal/config"
	"github.com/beacon-search/beacon/internal/ontology"
	"github.com/beacon-search/beacon/internal/storage"
)

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	st, err := storage.New(context.Background(), &config.Database{
		URL: "file::memory:?cache=shared", MaxOpenConns: 1, EmbeddingDim: 3,
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

const bundleYAML = `
concepts:
  - preferredTerm: relay
    synonyms: [server]
    aliases:
      - alias: node
        type: synonym
        weight: 0.7
dictionary:
  - term: nip
    acronymFor: "nostr implementation possibility"
    boostWeight: 0.3
`

func TestImport_LoadsConceptsAndDictionaryEntries(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	conceptCount, dictCount, err := ontology.Import(ctx, st, bytes.NewBufferString(bundleYAML))
	require.NoError(t, err)
	assert.Equal(t, 1, conceptCount)
	assert.Equal(t, 1, dictCount)

	concept, err := st.FindConceptByTerm(ctx, "relay")
	require.NoError(t, err)
	require.NotNil(t, concept)
	require.Len(t, concept.Aliases, 1)
	assert.Equal(t, "node", concept.Aliases[0].Alias)

	entry, err := st.FindDictionaryEntry(ctx, "nip")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "nostr implementation possibility", entry.AcronymFor)
}

func TestImport_ClearsPriorConceptsOnReimport(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	_, _, err := ontology.Import(ctx, st, bytes.NewBufferString(bundleYAML))
	require.NoError(t, err)

	_, _, err = ontology.Import(ctx, st, bytes.NewBufferString(`concepts: []`))
	require.NoError(t, err)

	concept, err := st.FindConceptByTerm(ctx, "relay")
	require.NoError(t, err)
	assert.Nil(t, concept)
}

func TestExport_RoundTripsThroughImport(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	_, _, err := ontology.Import(ctx, st, bytes.NewBufferString(bundleYAML))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ontology.Export(ctx, st, &buf))

	st2 := newTestStorage(t)
	conceptCount, dictCount, err := ontology.Import(ctx, st2, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, conceptCount)
	assert.Equal(t, 1, dictCount)

	concept, err := st2.FindConceptByTerm(ctx, "relay")
	require.NoError(t, err)
	require.NotNil(t, concept)
}
