// Package subdomains retrieves and validates externally hosted subdomain
// files. URLs originate from user-controlled zonefiles, so every fetch runs
// the full security gate before the first byte of network I/O, and the
// transfer itself is size- and time-bounded.
package subdomains

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Strata-Labs/bnsv2-api/internal/cache"
	"github.com/Strata-Labs/bnsv2-api/internal/platform/config"
	"github.com/Strata-Labs/bnsv2-api/internal/platform/metrics"
	"github.com/Strata-Labs/bnsv2-api/internal/zonefile"
	derrors "github.com/Strata-Labs/bnsv2-api/pkg/domain-errors"
)

const (
	// MaxFileBytes caps an external subdomain file at 50 MiB. The HEAD
	// preflight applies it to the advertised length, the GET to the bytes
	// actually received.
	MaxFileBytes = 50 << 20

	// FetchTimeout bounds the GET wall-clock, including body streaming.
	FetchTimeout = 5 * time.Second
)

var requiredFields = []string{"owner", "general", "twitter", "url", "nostr", "lightning", "btc"}

// Fetcher retrieves external subdomain files from allow-listed object
// storage. Successful results are cached by URL, independently of any
// zonefile caching.
type Fetcher struct {
	client         *http.Client
	cache          cache.Cache
	logger         *slog.Logger
	metrics        *metrics.Metrics
	storageDomains []string
	cacheTTL       time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client used for HEAD and GET.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) { f.client = client }
}

// WithStorageDomains replaces the allow-listed object-storage suffixes.
func WithStorageDomains(domains []string) Option {
	return func(f *Fetcher) { f.storageDomains = domains }
}

// WithMetrics attaches fetch outcome counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// New constructs a Fetcher with the default allow-list.
func New(c cache.Cache, logger *slog.Logger, opts ...Option) (*Fetcher, error) {
	if c == nil {
		return nil, fmt.Errorf("cache is required")
	}

	f := &Fetcher{
		client:         &http.Client{},
		cache:          c,
		logger:         logger,
		storageDomains: config.DefaultStorageDomains,
		cacheTTL:       config.ExternalCacheTTL,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch validates rawURL against the security gate, retrieves the file under
// the size/time budget, validates its schema, and returns the subdomain map.
// Every rejection carries its specific reason.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (map[string]zonefile.SubdomainRecord, error) {
	if err := f.CheckURL(rawURL); err != nil {
		f.count("unsafe")
		return nil, err
	}

	cacheKey := "external:" + rawURL
	var cached map[string]zonefile.SubdomainRecord
	if hit, err := cache.GetJSON(ctx, f.cache, cacheKey, &cached); err == nil && hit {
		f.countCache(true)
		return cached, nil
	}
	f.countCache(false)

	if err := f.preflight(ctx, rawURL); err != nil {
		f.count("rejected")
		return nil, err
	}

	body, err := f.download(ctx, rawURL)
	if err != nil {
		f.count("failed")
		return nil, err
	}

	subs, err := parseSubdomainFile(body)
	if err != nil {
		f.count("invalid")
		return nil, err
	}
	f.count("ok")

	if err := cache.SetJSON(ctx, f.cache, cacheKey, subs, f.cacheTTL); err != nil {
		f.logger.WarnContext(ctx, "failed to cache external subdomain file",
			"url", rawURL, "error", err)
	}
	return subs, nil
}

// CheckURL runs the six-step security gate. Checks apply in order and
// short-circuit on the first violation; no network I/O happens here.
func (f *Fetcher) CheckURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return derrors.New(derrors.CodeUnsafeURL, "external subdomain file URL is not parseable")
	}

	if u.Scheme != "https" {
		return derrors.New(derrors.CodeUnsafeURL, "external subdomain file URL must use https")
	}
	if !strings.HasSuffix(strings.ToLower(u.Path), ".json") {
		return derrors.New(derrors.CodeUnsafeURL, "external subdomain file URL must point at a .json path")
	}
	if isLoopbackHost(u.Hostname()) {
		return derrors.New(derrors.CodeUnsafeURL, "external subdomain file URL must not target loopback")
	}
	if u.RawQuery != "" {
		return derrors.New(derrors.CodeUnsafeURL, "external subdomain file URL must not carry a query string")
	}
	if u.Fragment != "" || u.RawFragment != "" {
		return derrors.New(derrors.CodeUnsafeURL, "external subdomain file URL must not carry a fragment")
	}
	if u.User != nil {
		return derrors.New(derrors.CodeUnsafeURL, "external subdomain file URL must not embed credentials")
	}
	if !f.allowedHost(u.Hostname()) {
		return derrors.New(derrors.CodeUnsafeURL, "external subdomain file host is not an allowed storage domain")
	}
	return nil
}

func isLoopbackHost(host string) bool {
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return true
	}
	if lower == "0.0.0.0" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

func (f *Fetcher) allowedHost(host string) bool {
	lower := strings.ToLower(host)
	for _, suffix := range f.storageDomains {
		if strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}

// preflight issues the HEAD request: 2xx, JSON content type, and an
// advertised length (when present) within the cap.
func (f *Fetcher) preflight(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "build preflight request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return derrors.Wrap(err, derrors.CodeUpstreamUnavailable, "external subdomain file preflight failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return derrors.Newf(derrors.CodeUpstreamUnavailable,
			"external subdomain file preflight returned %d", resp.StatusCode)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !isJSONMediaType(mediaType) {
		return derrors.New(derrors.CodeInvalidInput, "external subdomain file is not served as JSON")
	}

	if resp.ContentLength > MaxFileBytes {
		return derrors.Newf(derrors.CodeOversize,
			"external subdomain file advertises %d bytes, cap is %d", resp.ContentLength, MaxFileBytes)
	}
	return nil
}

func isJSONMediaType(mediaType string) bool {
	return mediaType == "application/json" ||
		strings.HasSuffix(mediaType, "+json") ||
		mediaType == "text/json"
}

// download issues the GET under the wall-clock budget, streaming the body
// through a counting reader that aborts the transfer the instant the
// cumulative size passes the cap. The cap holds even when the server lies
// about content-length or streams without one.
func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "build download request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, derrors.New(derrors.CodeUpstreamTimeout, "external subdomain file download timed out")
		}
		return nil, derrors.Wrap(err, derrors.CodeUpstreamUnavailable, "external subdomain file download failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, derrors.Newf(derrors.CodeUpstreamUnavailable,
			"external subdomain file download returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(newBoundedReader(resp.Body, MaxFileBytes, cancel))
	if err != nil {
		if errOversize(err) {
			return nil, derrors.Newf(derrors.CodeOversize,
				"external subdomain file exceeded the %d byte cap mid-transfer", MaxFileBytes)
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, derrors.New(derrors.CodeUpstreamTimeout, "external subdomain file download timed out")
		}
		return nil, derrors.Wrap(err, derrors.CodeUpstreamUnavailable, "external subdomain file stream failed")
	}
	return body, nil
}

// parseSubdomainFile enforces the external file schema: a top-level
// subdomains object whose every entry is a record with exactly the required
// string fields. Field errors within a record are aggregated so the client
// sees all of them at once.
func parseSubdomainFile(body []byte) (map[string]zonefile.SubdomainRecord, error) {
	var parsed struct {
		Subdomains map[string]json.RawMessage `json:"subdomains"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeSchemaViolation, "external subdomain file is not valid JSON")
	}
	if parsed.Subdomains == nil {
		return nil, derrors.New(derrors.CodeSchemaViolation, "external subdomain file is missing the subdomains key")
	}

	out := make(map[string]zonefile.SubdomainRecord, len(parsed.Subdomains))
	for label, raw := range parsed.Subdomains {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, derrors.Newf(derrors.CodeSchemaViolation, "subdomain %q is not an object", label)
		}

		var problems []string
		for _, field := range requiredFields {
			if _, ok := fields[field].(string); !ok {
				problems = append(problems, fmt.Sprintf("missing or non-string field %q", field))
			}
		}
		for field := range fields {
			if !isRequiredField(field) {
				problems = append(problems, fmt.Sprintf("unexpected field %q", field))
			}
		}
		if len(problems) > 0 {
			return nil, derrors.Newf(derrors.CodeSchemaViolation,
				"subdomain %q: %s", label, strings.Join(problems, "; "))
		}

		var record zonefile.SubdomainRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, derrors.Newf(derrors.CodeSchemaViolation, "subdomain %q is not a valid record", label)
		}
		out[label] = record
	}
	return out, nil
}

func isRequiredField(field string) bool {
	for _, f := range requiredFields {
		if f == field {
			return true
		}
	}
	return false
}

func (f *Fetcher) count(outcome string) {
	if f.metrics == nil {
		return
	}
	f.metrics.ExternalFetches.WithLabelValues(outcome).Inc()
}

func (f *Fetcher) countCache(hit bool) {
	if f.metrics == nil {
		return
	}
	if hit {
		f.metrics.CacheHits.WithLabelValues("external").Inc()
	} else {
		f.metrics.CacheMisses.WithLabelValues("external").Inc()
	}
}
