package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataStoreRoundTrip(t *testing.T) {
	store := NewMetadataStore(t.TempDir())

	meta := Metadata{ETag: `"abc123"`, LastModified: "Mon, 02 Jan 2006 15:04:05 GMT"}
	require.NoError(t, store.Store("title.basics.tsv.gz", meta))

	assert.Equal(t, meta, store.Load("title.basics.tsv.gz"))
}

func TestMetadataStoreMissingFile(t *testing.T) {
	store := NewMetadataStore(t.TempDir())
	assert.Equal(t, Metadata{}, store.Load("never-fetched.tsv.gz"))
}

func TestMetadataStoreCorruptSidecar(t *testing.T) {
	dir := t.TempDir()
	store := NewMetadataStore(dir)

	sidecar := filepath.Join(dir, "broken.tsv.gz.meta.json")
	require.NoError(t, os.WriteFile(sidecar, []byte("{not json"), 0o644))

	assert.Equal(t, Metadata{}, store.Load("broken.tsv.gz"))
}

func TestMetadataStoreOverwrite(t *testing.T) {
	store := NewMetadataStore(t.TempDir())

	require.NoError(t, store.Store("f.tsv.gz", Metadata{ETag: `"v1"`}))
	require.NoError(t, store.Store("f.tsv.gz", Metadata{ETag: `"v2"`, LastModified: "later"}))

	got := store.Load("f.tsv.gz")
	assert.Equal(t, `"v2"`, got.ETag)
	assert.Equal(t, "later", got.LastModified)
}
