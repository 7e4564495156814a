package fel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// schemaInfo is the metadata sidecar written next to each cached schema.
type schemaInfo struct {
	CachedAt    time.Time `json:"cached_at"`
	SourceURL   string    `json:"source_url"`
	Size        int       `json:"size"`
	ContentHash string    `json:"content_hash"`
}

// SchemaCache keeps XSD blobs on disk with a freshness window and serves a
// stale copy when the upstream fetch fails. Safe for concurrent use; fetches
// for the same schema name are collapsed to a single writer.
type SchemaCache struct {
	dir     string
	baseURL string
	window  time.Duration
	client  *http.Client
	log     *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSchemaCache builds a cache over cfg's directory, base URL and freshness
// window. The directory is created on first use.
func NewSchemaCache(cfg *Config, log *slog.Logger) *SchemaCache {
	if log == nil {
		log = slog.Default()
	}
	return &SchemaCache{
		dir:     cfg.SchemaCacheDir,
		baseURL: strings.TrimRight(cfg.SchemaBaseURL, "/"),
		window:  cfg.RefreshWindow(),
		client:  &http.Client{Timeout: cfg.HTTPTimeout()},
		log:     log,
	}
}

func (c *SchemaCache) nameLock(name string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks == nil {
		c.locks = make(map[string]*sync.Mutex)
	}
	l, ok := c.locks[name]
	if !ok {
		l = &sync.Mutex{}
		c.locks[name] = l
	}
	return l
}

func (c *SchemaCache) blobPath(name string) string { return filepath.Join(c.dir, name) }
func (c *SchemaCache) infoPath(name string) string { return filepath.Join(c.dir, name+".info") }

// Get returns the schema bytes for name (e.g. "GT_Documento-0.1.0.xsd").
// Fresh cache hits are served from disk; a miss or a stale entry triggers a
// fetch. When the fetch fails, a stale copy is served with stale=true; with
// no copy at all, an error wrapping ErrSchemaLoad is returned.
func (c *SchemaCache) Get(ctx context.Context, name string) (data []byte, stale bool, err error) {
	lock := c.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	cached, info, haveCache := c.read(name)
	if haveCache && time.Since(info.CachedAt) < c.window {
		return cached, false, nil
	}

	fetched, fetchErr := c.fetch(ctx, name)
	if fetchErr == nil {
		if err := c.store(name, fetched); err != nil {
			// The fetched bytes are still good; only persistence failed.
			c.log.Warn("schema cache write failed", "schema", name, "error", err)
		}
		return fetched, false, nil
	}

	if haveCache {
		c.log.Warn("schema fetch failed, serving stale copy",
			"schema", name, "cached_at", info.CachedAt, "error", fetchErr)
		return cached, true, nil
	}
	return nil, false, fmt.Errorf("%w: %s: %v", ErrSchemaLoad, name, fetchErr)
}

// read loads the blob and its sidecar. Both must be present and consistent
// for the entry to count as cached.
func (c *SchemaCache) read(name string) ([]byte, *schemaInfo, bool) {
	data, err := os.ReadFile(c.blobPath(name))
	if err != nil {
		return nil, nil, false
	}
	raw, err := os.ReadFile(c.infoPath(name))
	if err != nil {
		return nil, nil, false
	}
	info := &schemaInfo{}
	if err := json.Unmarshal(raw, info); err != nil {
		return nil, nil, false
	}
	if info.ContentHash != "" && info.ContentHash != hashBytes(data) {
		c.log.Warn("schema cache hash mismatch, discarding entry", "schema", name)
		return nil, nil, false
	}
	return data, info, true
}

func (c *SchemaCache) fetch(ctx context.Context, name string) ([]byte, error) {
	url := c.baseURL + "/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s fetching %s", resp.Status, url)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	c.log.Info("schema fetched", "schema", name, "bytes", len(data))
	return data, nil
}

// store writes blob and sidecar atomically via temp files renamed into place.
// The blob lands first so a reader never sees a sidecar without its blob.
func (c *SchemaCache) store(name string, data []byte) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	if err := writeAtomic(c.blobPath(name), data); err != nil {
		return err
	}
	info := schemaInfo{
		CachedAt:    time.Now().UTC(),
		SourceURL:   c.baseURL + "/" + name,
		Size:        len(data),
		ContentHash: hashBytes(data),
	}
	raw, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(c.infoPath(name), raw)
}

// Put seeds the cache with schema bytes, bypassing the network. Used for
// offline operation and in tests.
func (c *SchemaCache) Put(name string, data []byte) error {
	lock := c.nameLock(name)
	lock.Lock()
	defer lock.Unlock()
	return c.store(name, data)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
