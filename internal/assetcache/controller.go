// Package assetcache keeps the app shell and allow-listed third-party
// assets available without connectivity.
//
// It is the service-worker equivalent of the stack: a disk-backed,
// generation-versioned HTTP cache sitting in front of the configured origin
// and a fixed set of CDN hosts. Shell assets are cache-first with on-demand
// population; CDN assets are stale-while-revalidate. Concurrent fetches for
// the same resource are collapsed into a single upstream request.
package assetcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultCDNHosts is the fixed allow-list of third-party origins the
// gateway will proxy and cache.
var DefaultCDNHosts = []string{
	"cdn.tailwindcss.com",
	"fonts.googleapis.com",
	"fonts.gstatic.com",
	"aistudiocdn.com",
}

// installConcurrency bounds parallel fetches during shell prewarming.
const installConcurrency = 4

// Config describes one cache generation.
type Config struct {
	Dir      string   // cache root; each generation is a subdirectory
	Version  string   // current generation identifier, e.g. "v2"
	Origin   string   // upstream base URL for same-origin shell assets
	CDNHosts []string // third-party hostname allow-list; nil means DefaultCDNHosts
	Client   *http.Client
}

// Controller serves intercepted asset requests according to the two-tier
// cache policy.
type Controller struct {
	dir      string
	version  string
	origin   *url.URL
	cdnHosts map[string]bool
	client   *http.Client
	group    singleflight.Group
	router   chi.Router
}

// entry is one cached response: the body plus the metadata sidecar.
type entry struct {
	ContentType string `json:"contentType"`
	FetchedAt   int64  `json:"fetchedAt"`
	URL         string `json:"url"`

	body []byte
}

// New builds a controller for the given generation. Call Activate before
// serving to purge prior generations.
func New(cfg Config) (*Controller, error) {
	if cfg.Version == "" {
		return nil, fmt.Errorf("cache version is required")
	}
	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("parsing origin URL: %w", err)
	}
	if origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("origin URL %q must be absolute", cfg.Origin)
	}

	hosts := cfg.CDNHosts
	if hosts == nil {
		hosts = DefaultCDNHosts
	}
	allowed := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		allowed[h] = true
	}

	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}

	c := &Controller{
		dir:      cfg.Dir,
		version:  cfg.Version,
		origin:   origin,
		cdnHosts: allowed,
		client:   client,
	}

	r := chi.NewRouter()
	r.Get("/cdn/{host}/*", c.handleCDN)
	r.NotFound(c.handleShell)
	c.router = r

	return c, nil
}

// generation returns the directory name of the given cache version.
func (c *Controller) generation(version string) string {
	return "minimemo-" + version
}

// Activate creates the current generation's cache store and deletes every
// store whose identifier does not match it, so at most one stale generation
// ever coexists with the fresh one and only until activation.
func (c *Controller) Activate() error {
	if err := os.MkdirAll(filepath.Join(c.dir, c.generation(c.version)), 0o755); err != nil {
		return fmt.Errorf("creating cache generation: %w", err)
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("enumerating cache stores: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == c.generation(c.version) {
			continue
		}
		if !strings.HasPrefix(e.Name(), "minimemo-") {
			continue
		}
		if err := os.RemoveAll(filepath.Join(c.dir, e.Name())); err != nil {
			return fmt.Errorf("purging stale cache %s: %w", e.Name(), err)
		}
		slog.Info("purged stale cache generation", "store", e.Name())
	}
	return nil
}

// Install prewarms the cache with the shell asset paths, fetched from the
// origin concurrently. Like the install phase it mirrors, it fails as a
// whole if any shell asset cannot be fetched.
func (c *Controller) Install(ctx context.Context, paths []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(installConcurrency)

	for _, p := range paths {
		g.Go(func() error {
			upstream := c.origin.JoinPath(p).String()
			res, err := c.fetch(ctx, upstream)
			if err != nil {
				return fmt.Errorf("prewarming %s: %w", p, err)
			}
			if res.status != http.StatusOK {
				return fmt.Errorf("prewarming %s: upstream status %d", p, res.status)
			}
			return nil
		})
	}
	return g.Wait()
}

// ServeHTTP dispatches an intercepted request: /cdn/{host}/... goes through
// the stale-while-revalidate tier, everything else is treated as a
// same-origin shell asset.
func (c *Controller) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.router.ServeHTTP(w, r)
}

// handleCDN applies stale-while-revalidate to an allow-listed third-party
// asset: a cached copy is served immediately and refreshed in the
// background; with no cached copy the request waits on the network.
func (c *Controller) handleCDN(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "host")
	if !c.cdnHosts[host] {
		http.Error(w, "host not allowed", http.StatusForbidden)
		return
	}

	upstream := &url.URL{Scheme: "https", Host: host, Path: "/" + chi.URLParam(r, "*"), RawQuery: r.URL.RawQuery}
	key := upstream.String()

	if e, ok := c.load(key); ok {
		go c.revalidate(key)
		c.write(w, e)
		return
	}

	res, err := c.fetch(r.Context(), key)
	if err != nil {
		// No cached copy to fall back on; the failure passes through.
		http.Error(w, "upstream fetch failed", http.StatusBadGateway)
		return
	}
	c.writeResult(w, res)
}

// handleShell applies cache-first with on-demand population to a
// same-origin app asset.
func (c *Controller) handleShell(w http.ResponseWriter, r *http.Request) {
	upstream := c.origin.JoinPath(r.URL.Path).String()

	if e, ok := c.load(upstream); ok {
		c.write(w, e)
		return
	}

	res, err := c.fetch(r.Context(), upstream)
	if err != nil {
		http.Error(w, "upstream fetch failed", http.StatusBadGateway)
		return
	}
	c.writeResult(w, res)
}

// fetchResult is the outcome of one upstream request, shared between
// concurrent requesters of the same key.
type fetchResult struct {
	status      int
	contentType string
	body        []byte
}

// fetch retrieves an upstream resource, collapsing concurrent fetches for
// the same key into one request. A complete 200 response is stored in the
// cache before being returned; anything else passes through uncached.
func (c *Controller) fetch(ctx context.Context, upstream string) (fetchResult, error) {
	v, err, _ := c.group.Do(upstream, func() (any, error) {
		// The result is shared with every collapsed waiter, so the request
		// must not die with the first requester's context.
		req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodGet, upstream, nil)
		if err != nil {
			return fetchResult{}, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return fetchResult{}, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fetchResult{}, err
		}

		res := fetchResult{
			status:      resp.StatusCode,
			contentType: resp.Header.Get("Content-Type"),
			body:        body,
		}
		if res.status == http.StatusOK {
			if err := c.store(upstream, res); err != nil {
				slog.Warn("storing cached asset failed", "url", upstream, "error", err)
			}
		}
		return res, nil
	})
	if err != nil {
		return fetchResult{}, err
	}
	return v.(fetchResult), nil
}

// revalidate refreshes a cached entry in the background. Network failures
// are swallowed: the requester already got the cached copy.
func (c *Controller) revalidate(upstream string) {
	if _, err := c.fetch(context.Background(), upstream); err != nil {
		slog.Debug("background revalidation failed", "url", upstream, "error", err)
	}
}

// --- disk store ---

func (c *Controller) cachePath(upstream string) string {
	sum := sha256.Sum256([]byte(upstream))
	return filepath.Join(c.dir, c.generation(c.version), hex.EncodeToString(sum[:]))
}

func (c *Controller) load(upstream string) (entry, bool) {
	base := c.cachePath(upstream)
	meta, err := os.ReadFile(base + ".json")
	if err != nil {
		return entry{}, false
	}
	var e entry
	if err := json.Unmarshal(meta, &e); err != nil {
		return entry{}, false
	}
	e.body, err = os.ReadFile(base + ".body")
	if err != nil {
		return entry{}, false
	}
	return e, true
}

func (c *Controller) store(upstream string, res fetchResult) error {
	base := c.cachePath(upstream)
	meta, err := json.Marshal(entry{
		ContentType: res.contentType,
		FetchedAt:   time.Now().UnixMilli(),
		URL:         upstream,
	})
	if err != nil {
		return err
	}

	// Write body then metadata, each through a rename, so a reader never
	// observes a metadata file pointing at a partial body.
	if err := writeAtomic(base+".body", res.body); err != nil {
		return err
	}
	return writeAtomic(base+".json", meta)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (c *Controller) write(w http.ResponseWriter, e entry) {
	if e.ContentType != "" {
		w.Header().Set("Content-Type", e.ContentType)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(e.body)
}

func (c *Controller) writeResult(w http.ResponseWriter, res fetchResult) {
	if res.contentType != "" {
		w.Header().Set("Content-Type", res.contentType)
	}
	w.WriteHeader(res.status)
	w.Write(res.body)
}
