// Package httpcache caches outbound HTTP responses so repeated traffic and
// geocoding lookups within a TTL never leave the process.
package httpcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
)

// Entry is one cached response body with its expiry.
type Entry struct {
	ExpiresAt time.Time `json:"expires_at"`
	Data      []byte    `json:"data"`
}

// ResponseCache is an otter-backed response cache, optionally persisted to
// disk so short CLI runs still benefit from earlier lookups.
type ResponseCache struct {
	cache      otter.Cache[string, Entry]
	logger     *slog.Logger
	saveCancel context.CancelFunc
	dir        string
	saveWg     sync.WaitGroup
	ttl        time.Duration
	mu         sync.Mutex
}

const persistFile = "tripgen-http-cache.gob"

// New creates a disk-backed response cache under dir.
func New(ctx context.Context, dir string, ttl time.Duration, logger *slog.Logger) (*ResponseCache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	c := newMemory(ttl, logger)
	c.dir = dir
	if err := c.loadFromDisk(); err != nil {
		c.logger.Warn("failed to load HTTP cache from disk", "error", err)
	}
	c.logger.Info("HTTP cache initialized", "dir", dir, "entries", c.cache.EstimatedSize())
	c.startPeriodicSave(ctx)
	return c, nil
}

// NewMemoryOnly creates a response cache without disk persistence, for
// long-lived server processes.
func NewMemoryOnly(ttl time.Duration, logger *slog.Logger) *ResponseCache {
	return newMemory(ttl, logger)
}

func newMemory(ttl time.Duration, logger *slog.Logger) *ResponseCache {
	if logger == nil {
		logger = slog.Default()
	}
	cache := otter.Must(&otter.Options[string, Entry]{
		MaximumSize:      50_000,
		InitialCapacity:  1_000,
		ExpiryCalculator: otter.ExpiryWriting[string, Entry](ttl),
	})
	return &ResponseCache{cache: *cache, ttl: ttl, logger: logger}
}

// requestKey hashes method, URL, and body into one cache key.
func requestKey(method, url string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(url))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Lookup returns the cached response body for a request, if fresh. Expiry
// is double-checked even though otter also expires on write TTL.
func (c *ResponseCache) Lookup(method, url string, body []byte) ([]byte, bool) {
	key := requestKey(method, url, body)
	entry, found := c.cache.GetIfPresent(key)
	if !found {
		return nil, false
	}
	if time.Now().After(entry.ExpiresAt) {
		c.cache.Invalidate(key)
		return nil, false
	}
	return entry.Data, true
}

// Store caches a response body for a request.
func (c *ResponseCache) Store(method, url string, body, response []byte) {
	key := requestKey(method, url, body)
	c.cache.Set(key, Entry{Data: response, ExpiresAt: time.Now().Add(c.ttl)})
}

// Size returns the estimated entry count, for health reporting.
func (c *ResponseCache) Size() int {
	return int(c.cache.EstimatedSize())
}

func (c *ResponseCache) loadFromDisk() error {
	path := filepath.Join(c.dir, persistFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening cache file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			c.logger.Debug("failed to close cache file", "error", closeErr)
		}
	}()

	var entries map[string]Entry
	if err := gob.NewDecoder(file).Decode(&entries); err != nil {
		return fmt.Errorf("decoding cache file: %w", err)
	}

	now := time.Now()
	loaded := 0
	for key, entry := range entries {
		if now.Before(entry.ExpiresAt) {
			c.cache.Set(key, entry)
			loaded++
		}
	}
	c.logger.Info("loaded HTTP cache from disk", "path", path,
		"total", len(entries), "fresh", loaded)
	return nil
}

func (c *ResponseCache) saveToDisk() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := filepath.Join(c.dir, persistFile)
	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	defer func() {
		if removeErr := os.Remove(tempPath); removeErr != nil && !os.IsNotExist(removeErr) {
			c.logger.Debug("failed to remove temp cache file", "error", removeErr)
		}
	}()

	entries := make(map[string]Entry)
	now := time.Now()
	c.cache.All()(func(key string, entry Entry) bool {
		if now.Before(entry.ExpiresAt) {
			entries[key] = entry
		}
		return true
	})

	if err := gob.NewEncoder(file).Encode(entries); err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("syncing cache file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}
	c.logger.Debug("HTTP cache saved", "entries", len(entries), "path", path)
	return nil
}

func (c *ResponseCache) startPeriodicSave(ctx context.Context) {
	saveCtx, cancel := context.WithCancel(ctx)
	c.saveCancel = cancel

	c.saveWg.Add(1)
	go func() {
		defer c.saveWg.Done()
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-saveCtx.Done():
				return
			case <-ticker.C:
				if err := c.saveToDisk(); err != nil {
					c.logger.Error("periodic HTTP cache save failed", "error", err)
				}
			}
		}
	}()
}

// Close stops background saving and flushes to disk when persistence is
// enabled.
func (c *ResponseCache) Close() error {
	if c.saveCancel != nil {
		c.saveCancel()
	}
	c.saveWg.Wait()
	if c.dir == "" {
		return nil
	}
	if err := c.saveToDisk(); err != nil {
		c.logger.Error("final HTTP cache save failed", "error", err)
		return err
	}
	return nil
}

// Client wraps an HTTP client with response caching. Only 200 responses
// are cached; everything else passes through untouched.
type Client struct {
	cache  *ResponseCache
	inner  *http.Client
	logger *slog.Logger
}

// NewClient creates a caching HTTP client. cache may be nil, in which case
// requests pass straight through.
func NewClient(cache *ResponseCache, inner *http.Client, logger *slog.Logger) *Client {
	if inner == nil {
		inner = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cache: cache, inner: inner, logger: logger}
}

// DefaultClient builds the standard caching client for external APIs:
// disk-backed when dir is set, memory-only otherwise, pass-through when
// caching is disabled. Falls back to memory-only if the disk cache cannot
// be opened.
func DefaultClient(ctx context.Context, dir string, noCache bool, logger *slog.Logger) *Client {
	if noCache {
		return NewClient(nil, nil, logger)
	}
	const ttl = 15 * time.Minute
	if dir != "" {
		cache, err := New(ctx, dir, ttl, logger)
		if err == nil {
			return NewClient(cache, nil, logger)
		}
		logger.Warn("disk cache unavailable, using memory-only", "dir", dir, "error", err)
	}
	return NewClient(NewMemoryOnly(ttl, logger), nil, logger)
}

// Close flushes the underlying response cache. Short-lived processes must
// call it so disk-backed entries outlive the run; without a cache it is a
// no-op.
func (c *Client) Close() error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Close()
}

// Do performs the request, serving from cache when a fresh response exists.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.cache == nil || (req.Method != http.MethodGet && req.Method != http.MethodPost) {
		return c.inner.Do(req)
	}

	var reqBody []byte
	if req.Body != nil {
		var err error
		reqBody, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	url := req.URL.String()
	if data, found := c.cache.Lookup(req.Method, url, reqBody); found {
		resp := &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(data)),
			Header:     make(http.Header),
			Request:    req,
		}
		resp.Header.Set("X-From-Cache", "true")
		return resp, nil
	}

	resp, err := c.inner.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil {
		c.logger.Debug("failed to close response body", "error", closeErr)
	}
	if err != nil {
		return nil, err
	}
	c.cache.Store(req.Method, url, reqBody, body)
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
