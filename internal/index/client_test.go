// SPDX-License-Identifier: MIT
package index

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/reqwatch/internal/cache"
	"github.com/ManuGH/reqwatch/internal/pep440"
)

const coverageJSON = `{
	"info": {"name": "Coverage"},
	"releases": {
		"4.4.1": [],
		"4.5": [],
		"5.0a1": [],
		"not-a-version": [],
		"3.7.1": []
	}
}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestLookup(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pypi/coverage/json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(coverageJSON))
	})

	c := New(Options{BaseURL: srv.URL})
	p, err := c.Lookup(context.Background(), "Coverage")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	if p.Name != "coverage" {
		t.Fatalf("name = %q", p.Name)
	}
	want := []string{"3.7.1", "4.4.1", "4.5", "5.0a1"}
	if len(p.Versions) != len(want) {
		t.Fatalf("versions = %v, want %v", p.Versions, want)
	}
	for i := range want {
		if p.Versions[i] != want[i] {
			t.Fatalf("versions = %v, want %v", p.Versions, want)
		}
	}
}

func TestLookupNotFound(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	c := New(Options{BaseURL: srv.URL})
	if _, err := c.Lookup(context.Background(), "no-such-project"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLookupUsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(coverageJSON))
	})

	mem := cache.NewMemory(0)
	c := New(Options{BaseURL: srv.URL, Cache: mem, TTL: time.Minute})

	for i := 0; i < 3; i++ {
		if _, err := c.Lookup(context.Background(), "coverage"); err != nil {
			t.Fatalf("Lookup %d: %v", i, err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("upstream hits = %d, want 1", got)
	}
}

func TestMatchingVersions(t *testing.T) {
	p := &Project{
		Name:     "coverage",
		Versions: []string{"3.7.1", "4.4.1", "4.5", "5.0a1"},
	}

	set, err := pep440.ParseSpecifierSet(">= 4.4.1, < 5.0a0")
	if err != nil {
		t.Fatalf("ParseSpecifierSet: %v", err)
	}

	got := p.MatchingVersions(set)
	want := []string{"4.4.1", "4.5"}
	if len(got) != len(want) {
		t.Fatalf("MatchingVersions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("MatchingVersions = %v, want %v", got, want)
		}
	}
}

func TestLookupMissingProjectsKeepBreakerClosed(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/pypi/coverage/json" {
			_, _ = w.Write([]byte(coverageJSON))
			return
		}
		http.NotFound(w, r)
	})

	c := New(Options{BaseURL: srv.URL})

	// A manifest section of private packages yields a run of definitive
	// 404s; they are answers, not outages, and must not open the breaker.
	for i := 0; i < 8; i++ {
		if _, err := c.Lookup(context.Background(), "internal-only-pkg"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("lookup %d: err = %v, want ErrNotFound", i, err)
		}
	}

	p, err := c.Lookup(context.Background(), "coverage")
	if err != nil {
		t.Fatalf("lookup of existing project after 404 run: %v", err)
	}
	if p.Name != "coverage" {
		t.Fatalf("name = %q", p.Name)
	}
}

func TestLookupServerError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	c := New(Options{BaseURL: srv.URL})
	if _, err := c.Lookup(context.Background(), "coverage"); err == nil {
		t.Fatal("expected error for upstream 502")
	}
}
