// Package repodata fetches and parses a conda channel's repodata.json,
// reusing the teacher's HTTP retry/backoff/on-disk-TTL-cache shape
// (doRequest/httpRetryDelay/cacheConfig in repo_index_builder.go)
// adapted from APT's Packages.gz/pip's simple index to conda's
// repodata.json documents.
package repodata

import (
	"bytes"
	"compress/bzip2"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/varietal/varietal/internal/ports"
	"github.com/varietal/varietal/internal/types"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultRetries   = 3
	defaultBaseDelay = 200 * time.Millisecond
	maxRetryDelay    = 2 * time.Second
)

// Adapter fetches repodata.json over HTTP and caches the raw bytes on
// disk for CacheTTL, so repeated solves against the same channel don't
// re-download megabytes of metadata.
type Adapter struct {
	Client      *http.Client
	CacheDir    string
	CacheTTL    time.Duration
	DefaultHost string // e.g. "https://conda.anaconda.org", joined with a bare channel name
}

// NewAdapter returns an Adapter with the teacher's default timeout and
// retry configuration.
func NewAdapter(cacheDir string, cacheTTL time.Duration) Adapter {
	return Adapter{
		Client:      &http.Client{Timeout: defaultTimeout},
		CacheDir:    cacheDir,
		CacheTTL:    cacheTTL,
		DefaultHost: "https://conda.anaconda.org",
	}
}

// channelURL resolves a possibly-bare channel name (e.g. "conda-forge")
// against DefaultHost, leaving anything that already looks like a URL
// untouched.
func (a Adapter) channelURL(channel string) string {
	if strings.HasPrefix(channel, "http://") || strings.HasPrefix(channel, "https://") {
		return strings.TrimRight(channel, "/")
	}
	return strings.TrimRight(a.DefaultHost, "/") + "/" + strings.Trim(channel, "/")
}

// Fetch downloads channel/subdir/repodata.json (trying the
// bz2-compressed variant before the plain document; the zstd variant
// is not requested) and merges both its "packages" (.tar.bz2) and
// "packages.conda" (.conda) sections.
func (a Adapter) Fetch(ctx context.Context, channel string, subdir string) (types.RepodataChannel, error) {
	base := a.channelURL(channel) + "/" + subdir
	body, err := a.fetchFirstAvailable(ctx, []string{
		base + "/repodata.json.bz2",
		base + "/repodata.json",
	})
	if err != nil {
		return types.RepodataChannel{}, err
	}
	var doc repodataDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return types.RepodataChannel{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse repodata.json for " + channel + "/" + subdir).
			WithCause(err)
	}
	out := types.RepodataChannel{
		Channel:       channel,
		Subdir:        subdir,
		Packages:      map[string]types.PackageRecord{},
		CondaPackages: map[string]types.PackageRecord{},
	}
	for fn, pkg := range doc.Packages {
		out.Packages[fn] = pkg.toRecord(fn, channel, subdir)
	}
	for fn, pkg := range doc.PackagesConda {
		out.CondaPackages[fn] = pkg.toRecord(fn, channel, subdir)
	}
	return out, nil
}

// fetchFirstAvailable tries each URL in order, treating 404 as "try the
// next one" and any other non-2xx or network failure as the retried
// request from the teacher's httpRetryConfig shape.
func (a Adapter) fetchFirstAvailable(ctx context.Context, urls []string) ([]byte, error) {
	var lastErr error
	for _, url := range urls {
		body, status, err := a.fetchURL(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		if status == http.StatusNotFound {
			continue
		}
		if strings.HasSuffix(url, ".bz2") {
			decoded, err := io.ReadAll(bzip2.NewReader(bytes.NewReader(body)))
			if err != nil {
				lastErr = errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg("failed to decompress repodata.json.bz2").
					WithCause(err)
				continue
			}
			return decoded, nil
		}
		return body, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg("repodata.json not found at any candidate URL")
}

func (a Adapter) fetchURL(ctx context.Context, url string) ([]byte, int, error) {
	if a.CacheDir != "" && a.CacheTTL > 0 {
		if data, ok := a.readCache(url); ok {
			return data, http.StatusOK, nil
		}
	}
	resp, err := a.doRequest(ctx, url)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read response body").
			WithCause(err)
	}
	if a.CacheDir != "" && a.CacheTTL > 0 && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_ = a.writeCache(url, body)
	}
	return body, resp.StatusCode, nil
}

func (a Adapter) doRequest(ctx context.Context, url string) (*http.Response, error) {
	client := a.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	var lastErr error
	for attempt := 0; attempt < defaultRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("request canceled").
				WithCause(ctx.Err())
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to create request").
				WithCause(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			if attempt < defaultRetries-1 {
				time.Sleep(retryDelay(attempt))
				continue
			}
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("request failed").
				WithCause(err)
		}
		if (resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests) && attempt < defaultRetries-1 {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			time.Sleep(retryDelay(attempt))
			continue
		}
		return resp, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("request failed")
	}
	return nil, errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("request failed").
		WithCause(lastErr)
}

func retryDelay(attempt int) time.Duration {
	delay := defaultBaseDelay * time.Duration(1<<attempt)
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

func (a Adapter) cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func (a Adapter) readCache(url string) ([]byte, bool) {
	path := filepath.Join(a.CacheDir, a.cacheKey(url)+".cache")
	info, err := os.Stat(path)
	if err != nil || time.Since(info.ModTime()) > a.CacheTTL {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (a Adapter) writeCache(url string, data []byte) error {
	if err := os.MkdirAll(a.CacheDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(a.CacheDir, a.cacheKey(url)+".cache")
	return os.WriteFile(path, data, 0o644)
}

// FetchArchive downloads one package archive's raw bytes.
func (a Adapter) FetchArchive(ctx context.Context, channel string, subdir string, fileName string) ([]byte, error) {
	url := a.channelURL(channel) + "/" + subdir + "/" + fileName
	body, status, err := a.fetchURL(ctx, url)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to fetch archive: status=%d url=%s", status, url))
	}
	return body, nil
}

var _ ports.RepodataPort = Adapter{}
var _ ports.ArchiveFetchPort = Adapter{}

// repodataDocument is the literal JSON shape of a channel's
// repodata.json.
type repodataDocument struct {
	Packages      map[string]repodataPackage `json:"packages"`
	PackagesConda map[string]repodataPackage `json:"packages.conda"`
}

type repodataPackage struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Build         string   `json:"build"`
	BuildNumber   uint64   `json:"build_number"`
	Depends       []string `json:"depends"`
	Constrains    []string `json:"constrains"`
	Subdir        string   `json:"subdir"`
	NoArch        string   `json:"noarch"`
	Timestamp     int64    `json:"timestamp"`
	Size          uint64   `json:"size"`
	SHA256        string   `json:"sha256"`
	MD5           string   `json:"md5"`
	TrackFeatures []string `json:"track_features"`
	License       string   `json:"license"`
}

func (p repodataPackage) toRecord(fn, channel, subdir string) types.PackageRecord {
	noArch := types.NoArchNone
	switch p.NoArch {
	case "python":
		noArch = types.NoArchPython
	case "generic":
		noArch = types.NoArchGeneric
	}
	out := types.PackageRecord{
		Name:          p.Name,
		Version:       p.Version,
		Build:         p.Build,
		BuildNumber:   p.BuildNumber,
		Depends:       p.Depends,
		Constrains:    p.Constrains,
		Subdir:        firstNonEmpty(p.Subdir, subdir),
		Channel:       channel,
		Fn:            fn,
		NoArch:        noArch,
		Timestamp:     p.Timestamp,
		Size:          p.Size,
		SHA256:        p.SHA256,
		MD5:           p.MD5,
		TrackFeatures: p.TrackFeatures,
		License:       p.License,
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
