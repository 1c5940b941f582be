package auth

import (
	"net/http"
	"strings"
)

// Route binds a path (or path prefix) and optional method to a required role.
type Route struct {
	Method string
	Path   string
	Prefix bool
	Role   Role
}

func (rt Route) matches(method, path string) bool {
	if rt.Method != "" && rt.Method != method {
		return false
	}
	if rt.Prefix {
		return strings.HasPrefix(path, rt.Path)
	}
	return path == rt.Path
}

// BillingRoutes is the role table for the billing API. First match wins.
var BillingRoutes = []Route{
	{Method: http.MethodPost, Path: "/api/v1/readings", Role: RoleOperator},
	{Path: "/api/v1/readings", Role: RoleViewer},
	{Path: "/api/v1/invoices", Role: RoleViewer},
	{Path: "/api/v1/invoices/", Prefix: true, Role: RoleViewer},
	{Path: "/api/v1/exports/invoices.csv", Role: RoleViewer},
	{Path: "/api/v1/exports/invoices.xlsx", Role: RoleAdmin},
}

// Policy resolves the role a request needs.
type Policy struct {
	Routes   []Route
	exempt   map[string]struct{}
	prefixes []string
}

// NewDefaultPolicy builds a policy over BillingRoutes with the given exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	exempt := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		exempt[path] = struct{}{}
	}
	return Policy{Routes: BillingRoutes, exempt: exempt, prefixes: exemptPrefixes}
}

// IsExempt reports whether the request skips authentication.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.exempt[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole returns the role for the request. Unlisted /api/ paths need
// viewer for reads and operator for writes; anything else is unguarded.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	for _, rt := range p.Routes {
		if rt.matches(r.Method, r.URL.Path) {
			return rt.Role, true
		}
	}
	if !strings.HasPrefix(r.URL.Path, "/api/") {
		return "", false
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return RoleViewer, true
	default:
		return RoleOperator, true
	}
}
