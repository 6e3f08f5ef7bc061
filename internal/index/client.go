// SPDX-License-Identifier: MIT

// Package index queries a PyPI-style JSON API for project existence and
// released versions. Lookups are cached; the network is only touched in
// audit verify mode, never during linting.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/ManuGH/reqwatch/internal/cache"
	xglog "github.com/ManuGH/reqwatch/internal/log"
	"github.com/ManuGH/reqwatch/internal/manifest"
	"github.com/ManuGH/reqwatch/internal/metrics"
	"github.com/ManuGH/reqwatch/internal/netutil"
	"github.com/ManuGH/reqwatch/internal/pep440"
	"github.com/ManuGH/reqwatch/internal/resilience"
)

// DefaultBaseURL is the public PyPI JSON API.
const DefaultBaseURL = "https://pypi.org"

// ErrNotFound indicates the index has no project under the queried name.
var ErrNotFound = errors.New("project not found")

// maxBody caps index response reads; pypi.org metadata for large projects
// runs to a few MB.
const maxBody = 16 << 20

// Project is the index's view of a distribution.
type Project struct {
	// Name is the normalized project name.
	Name string `json:"name"`
	// Versions are the released versions that parsed, ascending.
	Versions []string `json:"versions"`
}

// MatchingVersions returns the released versions satisfying the set.
func (p *Project) MatchingVersions(set pep440.SpecifierSet) []string {
	var out []string
	for _, raw := range p.Versions {
		v, err := pep440.Parse(raw)
		if err != nil {
			continue
		}
		if set.Match(v) {
			out = append(out, raw)
		}
	}
	return out
}

// Client queries one index endpoint.
type Client struct {
	baseURL  string
	http     *http.Client
	cache    cache.Cache
	ttl      time.Duration
	breaker  *resilience.CircuitBreaker
	outbound netutil.OutboundPolicy
}

// Options configures a Client.
type Options struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// HTTPClient defaults to a 10s-timeout client.
	HTTPClient *http.Client
	// Cache defaults to no caching.
	Cache cache.Cache
	// TTL is the cache lifetime of a lookup, default 15m.
	TTL time.Duration
	// Outbound restricts the endpoint host when enforcement is on.
	Outbound netutil.OutboundPolicy
}

// New creates an index client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewNoop()
	}
	if opts.TTL <= 0 {
		opts.TTL = 15 * time.Minute
	}
	return &Client{
		baseURL:  opts.BaseURL,
		http:     opts.HTTPClient,
		cache:    opts.Cache,
		ttl:      opts.TTL,
		breaker:  resilience.NewCircuitBreaker("index", 5, 30*time.Second),
		outbound: opts.Outbound,
	}
}

// Lookup fetches project metadata for the normalized name. ErrNotFound is
// returned when the index answers 404.
func (c *Client) Lookup(ctx context.Context, name string) (*Project, error) {
	name = manifest.NormalizeName(name)
	key := "pypi:" + name

	if data, ok := c.cache.Get(ctx, key); ok {
		var p Project
		if err := json.Unmarshal(data, &p); err == nil {
			metrics.RecordIndexRequest("cache_hit")
			return &p, nil
		}
	}

	var p *Project
	var fetchErr error
	err := c.breaker.Execute(func() error {
		p, fetchErr = c.fetch(ctx, name)
		if errors.Is(fetchErr, ErrNotFound) {
			// A 404 is a definitive index answer, not an outage; it must
			// not count against the breaker.
			return nil
		}
		return fetchErr
	})
	if err == nil {
		err = fetchErr
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.RecordIndexRequest("not_found")
		} else {
			metrics.RecordIndexRequest("error")
		}
		return nil, err
	}
	metrics.RecordIndexRequest("ok")

	if data, err := json.Marshal(p); err == nil {
		c.cache.Set(ctx, key, data, c.ttl)
	}
	return p, nil
}

func (c *Client) fetch(ctx context.Context, name string) (*Project, error) {
	raw := fmt.Sprintf("%s/pypi/%s/json", c.baseURL, name)
	u, err := netutil.ValidateURL(ctx, raw, c.outbound)
	if err != nil {
		return nil, fmt.Errorf("index url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("index request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("index answered %d for %s", resp.StatusCode, name)
	}

	var body struct {
		Info struct {
			Name string `json:"name"`
		} `json:"info"`
		Releases map[string]json.RawMessage `json:"releases"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&body); err != nil {
		return nil, fmt.Errorf("index response: %w", err)
	}

	p := &Project{Name: manifest.NormalizeName(body.Info.Name)}
	versions := make([]pep440.Version, 0, len(body.Releases))
	for raw := range body.Releases {
		v, err := pep440.Parse(raw)
		if err != nil {
			// Indexes carry legacy versions that never parsed under any
			// scheme; skip them.
			continue
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		return pep440.Compare(versions[i], versions[j]) < 0
	})
	for _, v := range versions {
		p.Versions = append(p.Versions, v.String())
	}

	logger := xglog.WithComponentFromContext(ctx, "index")
	logger.Debug().
		Str(xglog.FieldPackage, p.Name).
		Int("versions", len(p.Versions)).
		Msg("index lookup")

	return p, nil
}
