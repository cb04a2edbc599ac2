package importer

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Metadata holds the cache validators the remote host returned for one
// dataset file. Empty fields mean "never fetched" and force a full download.
type Metadata struct {
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// MetadataStore persists per-file ETag / Last-Modified validators as small
// sidecar files next to the downloaded data, so conditional requests keep
// working across process restarts.
type MetadataStore struct {
	dir string
}

func NewMetadataStore(dir string) *MetadataStore {
	return &MetadataStore{dir: dir}
}

// Load returns the stored validators for fileName. A missing or unreadable
// sidecar is treated as empty, never as an error: the worst case is one
// unconditional re-download.
func (s *MetadataStore) Load(fileName string) Metadata {
	data, err := os.ReadFile(s.path(fileName))
	if err != nil {
		return Metadata{}
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		log.Printf("[MetadataStore] ignoring corrupt sidecar for %s: %v", fileName, err)
		return Metadata{}
	}
	return meta
}

// Store atomically replaces the validators for fileName.
func (s *MetadataStore) Store(fileName string, meta Metadata) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, fileName+".meta-*")
	if err != nil {
		return fmt.Errorf("create metadata temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close metadata temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(fileName)); err != nil {
		return fmt.Errorf("publish metadata: %w", err)
	}
	return nil
}

func (s *MetadataStore) path(fileName string) string {
	return filepath.Join(s.dir, fileName+".meta.json")
}
