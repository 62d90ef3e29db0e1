package services

import (
	"strings"
)

// RouteEntity tags a request with the logical module and entity type used for
// audit attribution.
type RouteEntity struct {
	Module     string
	EntityType string
}

// Ordered longest-match table of known route prefixes. Checked before the
// segment fallbacks so nested routes (e.g. /api/auth/sessions) resolve to the
// more specific entry.
var routeEntityTable = []struct {
	prefix string
	entity RouteEntity
}{
	{"/api/auth/sessions", RouteEntity{Module: "auth", EntityType: "session"}},
	{"/api/auth", RouteEntity{Module: "auth", EntityType: "session"}},
	{"/api/cases", RouteEntity{Module: "cases", EntityType: "case"}},
	{"/api/todos", RouteEntity{Module: "todos", EntityType: "todo"}},
	{"/api/notes", RouteEntity{Module: "notes", EntityType: "note"}},
	{"/api/knowledge", RouteEntity{Module: "knowledge", EntityType: "knowledge_doc"}},
	{"/api/users", RouteEntity{Module: "users", EntityType: "user"}},
	{"/api/audit", RouteEntity{Module: "audit", EntityType: "audit_log"}},
}

// ResolveRouteEntity maps a request path to its module and entity-type tag.
// Total: unmatched paths fall back to path segments and finally to "unknown".
func ResolveRouteEntity(path string) RouteEntity {
	best := RouteEntity{}
	bestLen := 0
	for _, row := range routeEntityTable {
		if strings.HasPrefix(path, row.prefix) && len(row.prefix) > bestLen {
			best = row.entity
			bestLen = len(row.prefix)
		}
	}
	if bestLen > 0 {
		return best
	}

	segments := splitPathSegments(path)
	if len(segments) >= 2 && segments[0] == "api" {
		return RouteEntity{Module: segments[1], EntityType: segments[1]}
	}
	if len(segments) > 0 {
		last := segments[len(segments)-1]
		return RouteEntity{Module: last, EntityType: last}
	}
	return RouteEntity{Module: "unknown", EntityType: "unknown"}
}

func splitPathSegments(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
