package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// QueryHasher produces stable identifiers for SERP queries.
// MD5 is fine here: the hashes key caches and dedupe records,
// nothing security-relevant.
type QueryHasher struct{}

// NewQueryHasher creates a new query hasher
func NewQueryHasher() *QueryHasher {
	return &QueryHasher{}
}

// CalculateQueryHash generates a hash for one (engine, keyword, location,
// device, language) combination. The same query always maps to the same
// hash, so cached responses and failure records survive restarts.
func (h *QueryHasher) CalculateQueryHash(engine, keyword, location, device, language string) string {
	key := strings.Join([]string{
		strings.ToLower(engine),
		strings.ToLower(strings.TrimSpace(keyword)),
		strings.ToLower(location),
		strings.ToLower(device),
		strings.ToLower(language),
	}, "|")
	return fmt.Sprintf("%x", md5.Sum([]byte(key)))
}

// CalculateKeywordHash generates a hash from the keyword text alone.
// Used by the failure tracker, where one keyword may fail on either engine.
func (h *QueryHasher) CalculateKeywordHash(keyword string) string {
	normalized := strings.ToLower(strings.TrimSpace(keyword))
	return fmt.Sprintf("%x", md5.Sum([]byte(normalized)))
}

var defaultHasher = NewQueryHasher()

// CalculateQueryHash is a convenience function using the default hasher
func CalculateQueryHash(engine, keyword, location, device, language string) string {
	return defaultHasher.CalculateQueryHash(engine, keyword, location, device, language)
}

// CalculateKeywordHash is a convenience function using the default hasher
func CalculateKeywordHash(keyword string) string {
	return defaultHasher.CalculateKeywordHash(keyword)
}
