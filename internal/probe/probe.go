// SPDX-License-Identifier: MIT

// Package probe verifies that direct VCS references point at fetchable
// repositories. Git repositories are checked with a smart-HTTP ref
// advertisement request; nothing is cloned.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	xglog "github.com/ManuGH/reqwatch/internal/log"
	"github.com/ManuGH/reqwatch/internal/manifest"
	"github.com/ManuGH/reqwatch/internal/metrics"
	"github.com/ManuGH/reqwatch/internal/netutil"
	"github.com/ManuGH/reqwatch/internal/resilience"
)

// Outcome classifies a probe.
type Outcome string

const (
	// OutcomeOK means the repository advertised refs.
	OutcomeOK Outcome = "ok"
	// OutcomeNotFound means the forge answered 404/410.
	OutcomeNotFound Outcome = "not_found"
	// OutcomeAuthRequired means the forge demanded credentials.
	OutcomeAuthRequired Outcome = "auth_required"
	// OutcomeNetworkError covers transport failures and unexpected answers.
	OutcomeNetworkError Outcome = "network_error"
	// OutcomeSkipped means the reference is not probeable over HTTP
	// (git+ssh, non-git VCS).
	OutcomeSkipped Outcome = "skipped"
)

// Result is one probe with its classification.
type Result struct {
	URL       string    `json:"url"`
	Outcome   Outcome   `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Fetchable reports whether the result proves the repository is reachable.
func (r Result) Fetchable() bool { return r.Outcome == OutcomeOK }

// GitProber issues smart-HTTP ref advertisement requests with per-host rate
// limiting and circuit breaking. Results are served from the store while
// their TTL lasts.
type GitProber struct {
	http     *http.Client
	store    *Store
	breakers *resilience.Registry
	outbound netutil.OutboundPolicy

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perHost  rate.Limit
	burst    int
}

// Options configures a GitProber.
type Options struct {
	// HTTPClient defaults to a 10s-timeout client that does not follow
	// redirects off-host.
	HTTPClient *http.Client
	// Store is optional; without it every probe goes to the network.
	Store *Store
	// PerHostRate limits requests per second per forge host, default 2.
	PerHostRate rate.Limit
	// Burst defaults to 4.
	Burst int
	// Outbound restricts probe targets when enforcement is on.
	Outbound netutil.OutboundPolicy
}

// NewGitProber creates a prober.
func NewGitProber(opts Options) *GitProber {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.PerHostRate <= 0 {
		opts.PerHostRate = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 4
	}
	return &GitProber{
		http:     opts.HTTPClient,
		store:    opts.Store,
		breakers: resilience.NewRegistry("probe", 3, 30*time.Second),
		outbound: opts.Outbound,
		limiters: make(map[string]*rate.Limiter),
		perHost:  opts.PerHostRate,
		burst:    opts.Burst,
	}
}

// Probe checks one reference. Classification failures are carried in the
// Result; the error return is reserved for context cancellation.
func (p *GitProber) Probe(ctx context.Context, ref *manifest.VCSRef) (Result, error) {
	logger := xglog.WithComponentFromContext(ctx, "probe")

	if ref.VCS != "git" || !strings.HasPrefix(ref.URL, "http") {
		res := Result{URL: ref.URL, Outcome: OutcomeSkipped, CheckedAt: time.Now(),
			Detail: fmt.Sprintf("%s references are not probed over http", ref.VCS)}
		metrics.RecordProbeResult(string(res.Outcome))
		return res, nil
	}

	if p.store != nil {
		if res, ok := p.store.Get(ref.URL); ok {
			metrics.RecordProbeCache(true)
			return res, nil
		}
		metrics.RecordProbeCache(false)
	}

	target, err := netutil.ValidateURL(ctx, ref.URL, p.outbound)
	if err != nil {
		res := Result{URL: ref.URL, Outcome: OutcomeNetworkError, Detail: err.Error(), CheckedAt: time.Now()}
		p.finish(logger, res)
		return res, nil
	}

	host := target.Hostname()
	if err := p.limiter(host).Wait(ctx); err != nil {
		return Result{}, err
	}

	var res Result
	breakErr := p.breakers.For(host).Execute(func() error {
		var err error
		res, err = p.advertise(ctx, target.String())
		if err != nil {
			return err
		}
		if res.Outcome == OutcomeNetworkError {
			return fmt.Errorf("probe %s: %s", ref.URL, res.Detail)
		}
		return nil
	})
	if breakErr != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		res = Result{URL: ref.URL, Outcome: OutcomeNetworkError, Detail: breakErr.Error(), CheckedAt: time.Now()}
	}
	res.URL = ref.URL

	p.finish(logger, res)
	return res, nil
}

// advertise performs GET <repo>/info/refs?service=git-upload-pack.
func (p *GitProber) advertise(ctx context.Context, repoURL string) (Result, error) {
	res := Result{CheckedAt: time.Now()}

	u := strings.TrimSuffix(repoURL, "/") + "/info/refs?service=git-upload-pack"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return res, err
	}
	req.Header.Set("User-Agent", "reqwatch-probe")

	resp, err := p.http.Do(req)
	if err != nil {
		return res, err
	}
	defer func() { _ = resp.Body.Close() }()
	// Drain a little so the connection can be reused; the advertisement
	// payload itself is irrelevant.
	_, _ = io.CopyN(io.Discard, resp.Body, 4096)

	switch {
	case resp.StatusCode == http.StatusOK:
		ct := resp.Header.Get("Content-Type")
		if ct != "" && !strings.Contains(ct, "git-upload-pack-advertisement") {
			// Some forges serve the dumb protocol; a 200 still proves the
			// repository exists.
			res.Detail = "dumb http response"
		}
		res.Outcome = OutcomeOK
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		res.Outcome = OutcomeAuthRequired
		res.Detail = resp.Status
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		res.Outcome = OutcomeNotFound
		res.Detail = resp.Status
	default:
		res.Outcome = OutcomeNetworkError
		res.Detail = resp.Status
	}
	return res, nil
}

func (p *GitProber) limiter(host string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[host]
	if !ok {
		l = rate.NewLimiter(p.perHost, p.burst)
		p.limiters[host] = l
	}
	return l
}

func (p *GitProber) finish(logger zerolog.Logger, res Result) {
	metrics.RecordProbeResult(string(res.Outcome))
	if p.store != nil && res.Outcome != OutcomeNetworkError {
		// Transient failures are not cached; the next audit retries.
		if err := p.store.Put(res); err != nil {
			logger.Warn().Err(err).Str(xglog.FieldURL, res.URL).Msg("probe store put failed")
		}
	}
	logger.Debug().
		Str(xglog.FieldURL, res.URL).
		Str(xglog.FieldOutcome, string(res.Outcome)).
		Msg("probe completed")
}
