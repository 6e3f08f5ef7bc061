// SPDX-License-Identifier: MIT
package netutil

import (
	"context"
	"errors"
	"testing"
)

func TestNormalizeHost(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "github.com", want: "github.com"},
		{name: "uppercase", in: "GitHub.COM", want: "github.com"},
		{name: "trailing dot", in: "pypi.org.", want: "pypi.org"},
		{name: "idna", in: "bücher.example", want: "xn--bcher-kva.example"},
		{name: "ipv4", in: "203.0.113.9", want: "203.0.113.9"},
		{name: "ipv6 bracketed", in: "[2001:db8::1]", want: "2001:db8::1"},
		{name: "empty", in: "  ", wantErr: true},
		{name: "scheme", in: "https://github.com", wantErr: true},
		{name: "path", in: "github.com/owner", wantErr: true},
		{name: "userinfo", in: "git@github.com", wantErr: true},
		{name: "port", in: "github.com:443", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeHost(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("NormalizeHost(%q) = %q, want error", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeHost(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("NormalizeHost(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestValidateURLUnenforced(t *testing.T) {
	u, err := ValidateURL(context.Background(), "http://127.0.0.1:8081/pypi/coverage/json", OutboundPolicy{})
	if err != nil {
		t.Fatalf("ValidateURL: %v", err)
	}
	if u.Host != "127.0.0.1:8081" {
		t.Fatalf("host = %q", u.Host)
	}
}

func TestValidateURLEnforced(t *testing.T) {
	policy := OutboundPolicy{Enforce: true, Hosts: []string{"github.com"}}
	ctx := context.Background()

	if _, err := ValidateURL(ctx, "https://GitHub.com/owner/repo", policy); err != nil {
		t.Fatalf("allowed host rejected: %v", err)
	}

	if _, err := ValidateURL(ctx, "https://gitlab.example/owner/repo", policy); !errors.Is(err, ErrOutboundNotAllowed) {
		t.Fatalf("err = %v, want ErrOutboundNotAllowed", err)
	}

	if _, err := ValidateURL(ctx, "http://github.com/owner/repo", policy); err == nil {
		t.Fatal("plain http accepted under enforcement")
	}

	if _, err := ValidateURL(ctx, "https://git@github.com/owner/repo", policy); err == nil {
		t.Fatal("userinfo accepted")
	}
}

func TestValidateURLBlockedTargets(t *testing.T) {
	policy := OutboundPolicy{Enforce: true}
	ctx := context.Background()

	for _, raw := range []string{
		"https://127.0.0.1/repo",
		"https://10.0.0.8/repo",
		"https://169.254.1.1/repo",
		"https://[::1]/repo",
	} {
		if _, err := ValidateURL(ctx, raw, policy); err == nil {
			t.Fatalf("blocked target accepted: %s", raw)
		}
	}
}
