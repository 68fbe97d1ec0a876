// Package domain canonicalizes citation domains for comparison.
//
// Every domain equality check in the pipeline must go through Normalize:
// AI answer blocks cite sources as full URLs, bare hosts, or anything in
// between, and "https://www.mayoclinic.org/" and "mayoclinic.org" are the
// same publisher.
package domain

import "strings"

// Empty is returned for input that carries no usable host. It never
// matches anything, including another Empty.
const Empty = ""

// Normalize reduces a raw citation string to its comparable host form:
// scheme, leading "www.", userinfo, port, path, query, and fragment are
// stripped and the remainder lowercased.
//
// Normalize never fails; callers treat unparsable citations as non-matches.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Empty
	}

	// Scheme. Citations are frequently bare domains, which net/url parses
	// as opaque paths, so this stays plain string surgery.
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") {
		s = s[len("http://"):]
	} else if strings.HasPrefix(lower, "https://") {
		s = s[len("https://"):]
	} else if strings.HasPrefix(s, "//") {
		s = s[2:]
	}

	// Everything past the host.
	if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
		s = s[:idx]
	}

	// Userinfo.
	if idx := strings.LastIndex(s, "@"); idx >= 0 {
		s = s[idx+1:]
	}

	// Port.
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}

	s = strings.ToLower(s)
	s = strings.TrimSuffix(s, ".") // trailing-dot FQDN form

	if strings.HasPrefix(s, "www.") {
		s = s[len("www."):]
	}

	if s == "" || s == "." {
		return Empty
	}
	return s
}

// NormalizeAll normalizes a citation list, preserving order and duplicates
// (repeat citations of one source are a signal, not noise). Entries that
// normalize to Empty are dropped.
func NormalizeAll(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if n := Normalize(r); n != Empty {
			out = append(out, n)
		}
	}
	return out
}

// Equal reports whether two raw strings name the same host after
// normalization. Empty never equals anything.
func Equal(a, b string) bool {
	na := Normalize(a)
	if na == Empty {
		return false
	}
	return na == Normalize(b)
}
