package importer

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// FetchResult describes the outcome of one conditional download.
type FetchResult struct {
	Path         string
	ETag         string
	LastModified string
	Unchanged    bool
}

// Fetcher downloads gzipped dataset files with conditional requests and
// atomic publication: the previous file stays intact until a fully validated
// replacement has been written.
type Fetcher struct {
	client  *http.Client
	baseURL string
	dataDir string
	meta    *MetadataStore
}

func NewFetcher(baseURL, dataDir string, meta *MetadataStore) *Fetcher {
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 30 * time.Minute, // dataset files run into hundreds of MB
		},
		baseURL: baseURL,
		dataDir: dataDir,
		meta:    meta,
	}
}

// Fetch performs a conditional GET for fileName. A 304 returns the cached
// file untouched. A 2xx streams the body to a temp sibling, validates it is
// real gzip content, renames it over the final path and only then persists
// the new validators. Any other status fails the whole refresh cycle.
func (f *Fetcher) Fetch(ctx context.Context, fileName string) (*FetchResult, error) {
	if err := os.MkdirAll(f.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	url := f.baseURL + "/" + fileName
	finalPath := filepath.Join(f.dataDir, fileName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}

	cached := f.meta.Load(fileName)
	if _, statErr := os.Stat(finalPath); statErr == nil {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		log.Printf("[Fetcher] %s unchanged (304)", fileName)
		return &FetchResult{
			Path:         finalPath,
			ETag:         cached.ETag,
			LastModified: cached.LastModified,
			Unchanged:    true,
		}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(f.dataDir, fileName+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("stream %s: %w", url, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", tmpPath, err)
	}

	if err := validateGzip(tmpPath); err != nil {
		return nil, fmt.Errorf("downloaded %s is not valid gzip: %w", fileName, err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return nil, fmt.Errorf("publish %s: %w", fileName, err)
	}

	etag := resp.Header.Get("ETag")
	lastModified := resp.Header.Get("Last-Modified")
	if err := f.meta.Store(fileName, Metadata{ETag: etag, LastModified: lastModified}); err != nil {
		// The file itself is already good; losing validators only costs one
		// extra download next cycle.
		log.Printf("[Fetcher] failed to persist validators for %s: %v", fileName, err)
	}

	log.Printf("[Fetcher] downloaded %s", fileName)
	return &FetchResult{Path: finalPath, ETag: etag, LastModified: lastModified}, nil
}

// validateGzip opens the file and reads one byte through a gzip reader,
// which forces header and first-block validation.
func validateGzip(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	defer gz.Close()

	buf := make([]byte, 1)
	if _, err := gz.Read(buf); err != nil && err != io.EOF {
		return err
	}
	return nil
}
