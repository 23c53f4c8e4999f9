// Package cache implements C7 of the specification: a disk-backed
// HTTP fetch cache with sliding/absolute TTLs, size-bounded eviction,
// and a scheduled sweep, grounded on the teacher's allocate/runner
// conventions for background lifecycle management and retried on
// github.com/hashicorp/go-retryablehttp for the origin fetch itself.
package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// Options configures a Cache.
type Options struct {
	// Root is the cache directory; cache/ and policy/ subdirectories
	// are created under it on first use.
	Root string
	// MaxSize is the byte threshold that triggers eviction down to
	// 75% of itself. Zero disables size-based eviction.
	MaxSize int64
	// AccessTimeout bounds how long a per-file retry loop waits
	// before giving up with ErrCacheBusy. Zero means wait forever,
	// matching the spec's stated default.
	AccessTimeout time.Duration
	// CleanInterval schedules a sweep that removes every entry whose
	// absolute expiry is in the past. Zero disables the sweep
	// (spec's stated default: "never").
	CleanInterval time.Duration
	// DefaultTTL is the absolute expiry duration applied to every
	// freshly fetched entry. Zero means 24 hours.
	DefaultTTL time.Duration
	// Client performs the origin fetch; a retryablehttp client with
	// default settings is used if nil.
	Client *retryablehttp.Client
	Logger *logrus.Logger
}

// Cache is the C7 HTTP fetch cache: Get is its sole public operation.
type Cache struct {
	root    string
	layout  layout
	idx     *index
	client  *retryablehttp.Client
	logger  *logrus.Logger
	access  time.Duration
	maxSize int64
	ttl     time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

// New constructs a Cache rooted at opts.Root, creating its
// subdirectories if needed, and starts the background sweep goroutine
// if CleanInterval is set.
func New(opts Options) (*Cache, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("cache: Root is required")
	}
	for _, sub := range []string{"cache", "policy"} {
		if err := os.MkdirAll(filepath.Join(opts.Root, sub), 0o700); err != nil {
			return nil, fmt.Errorf("cache: create %s: %w", sub, err)
		}
	}
	idx, err := newIndex(opts.Root)
	if err != nil {
		return nil, err
	}
	client := opts.Client
	if client == nil {
		client = retryablehttp.NewClient()
		client.Logger = nil
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	c := &Cache{
		root:    opts.Root,
		layout:  hashedLayout{},
		idx:     idx,
		client:  client,
		logger:  logger,
		access:  opts.AccessTimeout,
		maxSize: opts.MaxSize,
		ttl:     opts.DefaultTTL,
		stop:    make(chan struct{}),
	}
	if opts.CleanInterval > 0 {
		c.wg.Add(1)
		go c.sweepLoop(opts.CleanInterval)
	}
	return c, nil
}

// Close stops the background sweep goroutine, if any.
func (c *Cache) Close() {
	close(c.stop)
	c.wg.Wait()
}

// Get implements the public C7 operation: a conditional fetch of url
// with headers, returning the cached or freshly-fetched payload and
// whether it was served from cache.
func (c *Cache) Get(url string, headers map[string]string) (io.ReadCloser, bool, error) {
	payloadPath, policyPath, err := c.layout.paths(c.root, url)
	if err != nil {
		return nil, false, err
	}

	now := time.Now()
	if p, ok := c.readPolicy(policyPath); ok {
		if !p.expired(now) {
			f, err := c.openWithRetry(payloadPath)
			if err == nil {
				if p.Sliding > 0 {
					p.AbsoluteExpiry = now.Add(p.Sliding)
					c.writePolicy(policyPath, p)
				}
				c.idx.touch(url, now)
				return f, true, nil
			}
			// Fall through to treat as miss below; a payload that
			// cannot be opened, including one still busy after
			// AccessTimeout (ErrCacheBusy), is as good as absent.
		} else {
			os.Remove(payloadPath)
			os.Remove(policyPath)
			c.idx.remove(url)
		}
	}

	return c.fetchAndStore(url, headers, payloadPath, policyPath)
}

// Fetch adapts Get to preprocess.ImageFetcher's whole-body shape.
func (c *Cache) Fetch(url string, headers map[string]string) ([]byte, bool, error) {
	rc, cached, err := c.Get(url, headers)
	if err != nil {
		return nil, false, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, err
	}
	return data, cached, nil
}

func (c *Cache) fetchAndStore(url string, headers map[string]string, payloadPath, policyPath string) (io.ReadCloser, bool, error) {
	req, err := retryablehttp.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrOriginFailed, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrOriginFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("%w: status %d", ErrOriginFailed, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrOriginFailed, err)
	}

	if err := c.writePayload(payloadPath, data); err != nil {
		return nil, false, err
	}
	now := time.Now()
	ttl := c.ttl
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	policySize := c.writePolicy(policyPath, policy{AbsoluteExpiry: now.Add(ttl), Key: url})
	// spec §3: a cache entry's size is its payload and policy file
	// lengths combined, not payload alone.
	c.idx.record(url, int64(len(data))+policySize, now)

	c.maybeEvict()

	return io.NopCloser(bytes.NewReader(data)), false, nil
}

func (c *Cache) readPolicy(path string) (policy, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return policy{}, false
	}
	p, err := decodePolicy(raw)
	if err != nil {
		return policy{}, false
	}
	return p, true
}

func (c *Cache) writePolicy(path string, p policy) int64 {
	encoded := p.encode()
	_ = retryIO(c.access, func() error {
		return os.WriteFile(path, encoded, 0o600)
	})
	return int64(len(encoded))
}

func (c *Cache) writePayload(path string, data []byte) error {
	return retryIO(c.access, func() error {
		return os.WriteFile(path, data, 0o600)
	})
}

func (c *Cache) openWithRetry(path string) (io.ReadCloser, error) {
	var f *os.File
	err := retryIO(c.access, func() error {
		var openErr error
		f, openErr = os.Open(path)
		return openErr
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// maybeEvict shrinks the cache to 75% of maxSize when currentSize
// exceeds it, evicting oldest-access-time-first (spec §4.7 Eviction).
// Eviction takes the cache.sem advisory lock so it never races a
// concurrent sweep or another evict pass.
func (c *Cache) maybeEvict() {
	if c.maxSize <= 0 || c.idx.currentSize() <= c.maxSize {
		return
	}
	release, err := acquireSem(c.root, c.access)
	if err != nil {
		return
	}
	defer release()

	before := c.idx.currentSize()
	target := c.maxSize * 75 / 100
	evicted := 0
	for _, v := range c.idx.victims() {
		if c.idx.currentSize() <= target {
			break
		}
		payload, policyFile, err := c.layout.paths(c.root, v.Key)
		if err != nil {
			continue
		}
		os.Remove(payload)
		os.Remove(policyFile)
		c.idx.remove(v.Key)
		evicted++
		c.logger.WithField("key", v.Key).Debug("cache: evicted entry")
	}
	if evicted > 0 {
		c.logger.WithFields(logrus.Fields{
			"entries": evicted,
			"before":  humanize.Bytes(uint64(before)),
			"after":   humanize.Bytes(uint64(c.idx.currentSize())),
		}).Info("cache: eviction pass reclaimed space")
	}
}

func (c *Cache) sweepLoop(interval time.Duration) {
	defer c.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-t.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	release, err := acquireSem(c.root, c.access)
	if err != nil {
		return
	}
	defer release()

	now := time.Now()
	for _, v := range c.idx.victims() {
		payload, policyFile, err := c.layout.paths(c.root, v.Key)
		if err != nil {
			continue
		}
		p, ok := c.readPolicy(policyFile)
		if !ok || !p.expired(now) {
			continue
		}
		os.Remove(payload)
		os.Remove(policyFile)
		c.idx.remove(v.Key)
	}
	c.idx.setLastCleanDate(now)
}
