// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package netutil guards outbound HTTP access for the probe and index
// clients: host normalization, an allowlist, and blocked-address checks.
package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// ErrOutboundNotAllowed indicates the URL host did not match the allowlist.
var ErrOutboundNotAllowed = errors.New("outbound host not allowed")

// OutboundPolicy restricts the URLs the daemon will contact. An empty Hosts
// list allows any host; blocked address ranges are always rejected. With
// Enforce false, URLs are parsed but not restricted.
type OutboundPolicy struct {
	Enforce bool
	Hosts   []string
}

// NormalizeHost validates and normalizes a bare host for comparison:
// IDNA ASCII form, lowercased, trailing dot stripped.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if strings.ContainsAny(host, "/@") || strings.Contains(host, "://") {
		return "", fmt.Errorf("host must be bare: %s", raw)
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return "", fmt.Errorf("host must not include port: %s", raw)
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

// ValidateURL checks raw against the policy and returns the URL with its
// host normalized. https only; loopback, link-local and multicast targets
// are rejected even when the host matches the allowlist.
func ValidateURL(ctx context.Context, raw string, policy OutboundPolicy) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("outbound url empty")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing url host")
	}
	if !policy.Enforce {
		return u, nil
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return nil, fmt.Errorf("scheme %q not allowed", u.Scheme)
	}
	if u.User != nil {
		return nil, fmt.Errorf("userinfo not allowed")
	}

	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return nil, err
	}

	if len(policy.Hosts) > 0 {
		allowed := false
		for _, h := range policy.Hosts {
			normalized, err := NormalizeHost(h)
			if err != nil {
				return nil, fmt.Errorf("allowlist entry: %w", err)
			}
			if normalized == host {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, fmt.Errorf("%w: %s", ErrOutboundNotAllowed, host)
		}
	}

	if ip := net.ParseIP(host); ip != nil && isBlockedIP(ip) {
		return nil, fmt.Errorf("blocked ip %s", ip)
	}
	if ips, err := resolveHostIPs(ctx, host); err == nil {
		for _, ip := range ips {
			if isBlockedIP(ip) {
				return nil, fmt.Errorf("host %s resolves to blocked ip %s", host, ip)
			}
		}
	}

	u.Scheme = "https"
	u.Host = joinHostPort(host, u.Port())
	return u, nil
}

func resolveHostIPs(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve host %q: %w", host, err)
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		if addr.IP != nil {
			ips = append(ips, addr.IP)
		}
	}
	return ips, nil
}

func isBlockedIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	return ip.IsLoopback() ||
		ip.IsUnspecified() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast()
}

func joinHostPort(host, port string) string {
	if port == "" {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, port)
}
