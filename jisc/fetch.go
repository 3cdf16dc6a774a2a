package jisc

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/lwmdb/alto2fixture"
	"github.com/sethgrid/pester"
	log "github.com/sirupsen/logrus"
)

// DefaultCacheTTL controls how long a downloaded reference table is reused.
const DefaultCacheTTL = 24 * time.Hour

// Doer abstracts https://pkg.go.dev/net/http#Client.Do.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Fetcher retrieves the JISC reference CSV from a URL and keeps a local
// copy, so runs on machines without the fixture file checked out still work.
type Fetcher struct {
	URL      string
	CacheTTL time.Duration
	CacheDir string
	Client   Doer
}

// NewFetcher creates a fetcher with a retrying HTTP client and a cache
// directory under the user's XDG cache home.
func NewFetcher(url string) (*Fetcher, error) {
	cacheDir, err := xdg.CacheFile(filepath.Join(alto2fixture.AppName, "jisc"))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, err
	}
	client := pester.New()
	client.Backoff = pester.ExponentialBackoff
	client.MaxRetries = 3
	client.RetryOnHTTP429 = true
	return &Fetcher{
		URL:      url,
		CacheTTL: DefaultCacheTTL,
		CacheDir: cacheDir,
		Client:   client,
	}, nil
}

func (f *Fetcher) cachePath() string {
	return filepath.Join(f.CacheDir, "jisc_papers.csv")
}

// Fetch returns the path to a local copy of the reference CSV, downloading
// it when missing or older than the cache TTL.
func (f *Fetcher) Fetch() (string, error) {
	p := f.cachePath()
	if info, err := os.Stat(p); err == nil && time.Since(info.ModTime()) < f.CacheTTL {
		return p, nil
	}
	log.WithField("url", f.URL).Info("fetching jisc reference table")
	req, err := http.NewRequest("GET", f.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("jisc fetch: HTTP %d from %s", resp.StatusCode, f.URL)
	}
	wip := p + ".wip"
	w, err := os.Create(wip)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return p, os.Rename(wip, p)
}
