package pool

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// predicate reports whether a user matches a parsed filter.
type predicate func(*User) bool

// parseFilter implements the restricted AWS-style attribute filter
// grammar from spec.md §4.2: `attr = "value"` or `attr ^= "prefix"`.
// An empty filter matches everything.
func parseFilter(filter string) (predicate, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return nil, nil
	}

	for _, op := range []string{"^=", "="} {
		idx := strings.Index(filter, op)
		if idx <= 0 {
			continue
		}
		attr := strings.TrimSpace(filter[:idx])
		rest := strings.TrimSpace(filter[idx+len(op):])
		value, err := unquote(rest)
		if err != nil {
			return nil, err
		}
		switch op {
		case "=":
			return func(u *User) bool {
				if attr == "username" {
					return strings.EqualFold(u.Username, value)
				}
				v, ok := u.Attribute(attr)
				return ok && v == value
			}, nil
		case "^=":
			return func(u *User) bool {
				if attr == "username" {
					return strings.HasPrefix(strings.ToLower(u.Username), strings.ToLower(value))
				}
				v, ok := u.Attribute(attr)
				return ok && strings.HasPrefix(v, value)
			}, nil
		}
	}
	return nil, fmt.Errorf("unsupported filter expression: %q", filter)
}

func unquote(s string) (string, error) {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1], nil
	}
	return "", fmt.Errorf("filter value must be double-quoted: %q", s)
}

// encodeCursor/decodeCursor implement the opaque pagination token as a
// base64 envelope over the last-seen Sub (spec.md §4.2: "opaque cursor
// over a stable ordering by Sub").
func encodeCursor(sub string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(sub))
}

func decodeCursor(token string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
