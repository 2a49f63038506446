//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package config

import (
	"net/http"
	"strings"
)

// GraphQLPath is appended to a header-derived host origin when no
// backend endpoint is configured.
const GraphQLPath = "/graphql"

// Endpoints is the per-request pair produced by the Resolver.
type Endpoints struct {
	// Origin is the caller-facing site URL, without a trailing slash.
	// Detail links in retrieval context are built on it.
	Origin string

	// GraphQLURL is the backend query endpoint.
	GraphQLURL string
}

// Resolver derives Endpoints from request headers and site defaults.
// It holds only immutable configuration and is safe for concurrent use.
type Resolver struct {
	site SiteConfig
}

// NewResolver creates a resolver over the given site configuration.
func NewResolver(site SiteConfig) *Resolver {
	return &Resolver{site: site}
}

// ResolveRequest resolves endpoints for an inbound request. The Host
// header lives on r.Host rather than in r.Header, so it is copied over.
func (res *Resolver) ResolveRequest(r *http.Request) Endpoints {
	h := r.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	if h.Get("Host") == "" && r.Host != "" {
		h.Set("Host", r.Host)
	}
	return res.Resolve(h)
}

// Resolve never fails. Request headers take precedence over configured
// defaults, which take precedence over local development fallbacks.
//
// Origin: Origin header, then X-Forwarded-Proto + X-Forwarded-Host (or
// Host), then site.origin, then DefaultSiteOrigin.
//
// Backend: site.graphql_url, then the forwarded/host origin plus
// GraphQLPath, then DefaultGraphQLURL.
func (res *Resolver) Resolve(h http.Header) Endpoints {
	hostOrigin := originFromHost(h)

	origin := trimURL(h.Get("Origin"))
	if origin == "" || origin == "null" {
		origin = hostOrigin
	}
	if origin == "" {
		origin = trimURL(res.site.Origin)
	}
	if origin == "" {
		origin = DefaultSiteOrigin
	}

	endpoint := trimURL(res.site.GraphQLURL)
	if endpoint == "" && hostOrigin != "" {
		endpoint = hostOrigin + GraphQLPath
	}
	if endpoint == "" {
		endpoint = DefaultGraphQLURL
	}

	return Endpoints{Origin: origin, GraphQLURL: endpoint}
}

// originFromHost builds scheme://host from proxy or Host headers.
func originFromHost(h http.Header) string {
	host := firstValue(h.Get("X-Forwarded-Host"))
	if host == "" {
		host = strings.TrimSpace(h.Get("Host"))
	}
	if host == "" {
		return ""
	}

	proto := strings.ToLower(firstValue(h.Get("X-Forwarded-Proto")))
	if proto != "https" {
		proto = "http"
	}

	return trimURL(proto + "://" + host)
}

// firstValue returns the first element of a comma-separated proxy header.
func firstValue(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

func trimURL(v string) string {
	return strings.TrimRight(strings.TrimSpace(v), "/")
}
