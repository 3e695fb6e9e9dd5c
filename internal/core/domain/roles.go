package domain

import (
	"sort"
	"strings"
)

// ParseRoles splits a comma-joined role claim into trimmed, non-empty names.
func ParseRoles(roles string) []string {
	if strings.TrimSpace(roles) == "" {
		return nil
	}
	parts := strings.Split(roles, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinRoles produces the canonical comma-joined claim value (sorted, de-duplicated).
func JoinRoles(roles []string) string {
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		r := strings.TrimSpace(role)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

// HasRole reports whether the comma-joined claim contains role (case-insensitive).
func HasRole(roles, role string) bool {
	role = strings.TrimSpace(role)
	if role == "" {
		return false
	}
	for _, r := range ParseRoles(roles) {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}
