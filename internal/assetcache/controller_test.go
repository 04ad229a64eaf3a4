package assetcache

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// newTestController wires a controller to an httptest origin. The returned
// rewrite client redirects any https CDN URL to the same test server so CDN
// tier tests don't need real network access.
func newTestController(t *testing.T, version string, upstream *httptest.Server, hosts []string) *Controller {
	t.Helper()

	upstreamURL, err := url.Parse(upstream.URL)
	if err != nil {
		t.Fatalf("parsing upstream URL: %v", err)
	}

	client := &http.Client{Transport: rewriteTransport{target: upstreamURL}}
	c, err := New(Config{
		Dir:      t.TempDir(),
		Version:  version,
		Origin:   upstream.URL,
		CDNHosts: hosts,
		Client:   client,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	return c
}

// rewriteTransport sends every request to the test server, preserving the
// original path so handlers can distinguish resources.
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = rt.target.Scheme
	clone.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(clone)
}

func get(t *testing.T, c *Controller, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	c.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestShellCacheFirst(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "shell content")
	}))
	defer upstream.Close()

	c := newTestController(t, "v1", upstream, nil)

	first := get(t, c, "/index.html")
	if first.Code != http.StatusOK || first.Body.String() != "shell content" {
		t.Fatalf("first response: %d %q", first.Code, first.Body.String())
	}

	// Second request must come from cache, even with the upstream gone.
	upstream.Close()
	second := get(t, c, "/index.html")
	if second.Code != http.StatusOK || second.Body.String() != "shell content" {
		t.Fatalf("cached response: %d %q", second.Code, second.Body.String())
	}
	if got := second.Header().Get("Content-Type"); got != "text/html" {
		t.Errorf("cached content type = %q", got)
	}
	if hits.Load() != 1 {
		t.Errorf("upstream hit %d times, want 1", hits.Load())
	}
}

func TestShellErrorNotCached(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer upstream.Close()

	c := newTestController(t, "v1", upstream, nil)

	if rec := get(t, c, "/missing.js"); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 passed through", rec.Code)
	}
	// A non-200 response must not populate the cache.
	if rec := get(t, c, "/missing.js"); rec.Code != http.StatusNotFound {
		t.Fatalf("second status = %d", rec.Code)
	}
	if hits.Load() != 2 {
		t.Errorf("upstream hit %d times, want 2 (no caching of errors)", hits.Load())
	}
}

func TestCDNHostAllowList(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "cdn asset")
	}))
	defer upstream.Close()

	c := newTestController(t, "v1", upstream, []string{"fonts.gstatic.com"})

	if rec := get(t, c, "/cdn/fonts.gstatic.com/font.woff2"); rec.Code != http.StatusOK {
		t.Errorf("allow-listed host: %d", rec.Code)
	}
	if rec := get(t, c, "/cdn/evil.example.com/payload.js"); rec.Code != http.StatusForbidden {
		t.Errorf("unlisted host: %d, want 403", rec.Code)
	}
}

func TestCDNStaleWhileRevalidate(t *testing.T) {
	var body atomic.Value
	body.Store("version one")
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body.Load().(string))
	}))
	defer upstream.Close()

	c := newTestController(t, "v1", upstream, []string{"cdn.tailwindcss.com"})

	// Populate the cache.
	if rec := get(t, c, "/cdn/cdn.tailwindcss.com/3.4.0"); rec.Body.String() != "version one" {
		t.Fatalf("cold fetch = %q", rec.Body.String())
	}

	// Upstream changed; the cached copy is served immediately.
	body.Store("version two")
	if rec := get(t, c, "/cdn/cdn.tailwindcss.com/3.4.0"); rec.Body.String() != "version one" {
		t.Fatalf("stale response = %q, want the cached copy", rec.Body.String())
	}

	// The background revalidation lands for the next request.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if rec := get(t, c, "/cdn/cdn.tailwindcss.com/3.4.0"); rec.Body.String() == "version two" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("cache never revalidated")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCDNNetworkFailureServesStale(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "cached forever")
	}))

	c := newTestController(t, "v1", upstream, []string{"fonts.googleapis.com"})

	if rec := get(t, c, "/cdn/fonts.googleapis.com/css2"); rec.Code != http.StatusOK {
		t.Fatalf("cold fetch: %d", rec.Code)
	}

	upstream.Close()

	// Revalidation fails silently; the stale copy keeps being served.
	for range 3 {
		rec := get(t, c, "/cdn/fonts.googleapis.com/css2")
		if rec.Code != http.StatusOK || rec.Body.String() != "cached forever" {
			t.Fatalf("after upstream death: %d %q", rec.Code, rec.Body.String())
		}
	}
}

func TestCDNFailureWithoutCacheFailsThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close()

	c := newTestController(t, "v1", upstream, []string{"fonts.googleapis.com"})

	if rec := get(t, c, "/cdn/fonts.googleapis.com/never-cached"); rec.Code != http.StatusBadGateway {
		t.Errorf("uncached failure = %d, want 502", rec.Code)
	}
}

// TestConcurrentFetchesCollapse verifies the singleflight behavior: many
// concurrent cold requests for the same resource produce one upstream hit.
func TestConcurrentFetchesCollapse(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		fmt.Fprint(w, "slow asset")
	}))
	defer upstream.Close()

	c := newTestController(t, "v1", upstream, nil)

	const n = 8
	var wg sync.WaitGroup
	started := make(chan struct{}, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started <- struct{}{}
			get(t, c, "/app.js")
		}()
	}
	for range n {
		<-started
	}
	// Give the requests a moment to pile onto the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if hits.Load() != 1 {
		t.Errorf("upstream hit %d times, want 1", hits.Load())
	}
}

// TestFetchSurvivesRequesterCancellation: the in-flight fetch is shared by
// every collapsed waiter, so a requester disconnecting must not cancel it.
func TestFetchSurvivesRequesterCancellation(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "shared asset")
	}))
	defer upstream.Close()

	c := newTestController(t, "v1", upstream, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := c.fetch(ctx, upstream.URL+"/app.js")
	if err != nil {
		t.Fatalf("fetch after requester cancellation: %v", err)
	}
	if res.status != http.StatusOK || string(res.body) != "shared asset" {
		t.Errorf("result: %d %q", res.status, res.body)
	}
}

func TestInstallPrewarmsShell(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.URL.Path]++
		mu.Unlock()
		fmt.Fprint(w, "asset "+r.URL.Path)
	}))
	defer upstream.Close()

	c := newTestController(t, "v1", upstream, nil)

	if err := c.Install(context.Background(), []string{"/", "/index.html", "/manifest.json"}); err != nil {
		t.Fatalf("Install: %v", err)
	}

	// All prewarmed assets are now served without touching the network.
	upstream.Close()
	for _, p := range []string{"/", "/index.html", "/manifest.json"} {
		if rec := get(t, c, p); rec.Code != http.StatusOK {
			t.Errorf("prewarmed %s: %d", p, rec.Code)
		}
	}
}

func TestInstallFailsOnMissingAsset(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken.js" {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer upstream.Close()

	c := newTestController(t, "v1", upstream, nil)

	if err := c.Install(context.Background(), []string{"/index.html", "/broken.js"}); err == nil {
		t.Error("expected install to fail as a whole")
	}
}

// TestActivatePurgesOldGenerations: activating a new version deletes every
// cache store from prior versions and leaves unrelated directories alone.
func TestActivatePurgesOldGenerations(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "content")
	}))
	defer upstream.Close()

	dir := t.TempDir()
	for _, d := range []string{"minimemo-v1", "minimemo-v2", "unrelated"} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	c, err := New(Config{Dir: dir, Version: "v3", Origin: upstream.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]bool{}
	for _, e := range entries {
		got[e.Name()] = true
	}
	if got["minimemo-v1"] || got["minimemo-v2"] {
		t.Errorf("stale generations survived activation: %v", got)
	}
	if !got["minimemo-v3"] {
		t.Error("current generation not created")
	}
	if !got["unrelated"] {
		t.Error("unrelated directory was deleted")
	}
}
