package extractor

import "visibility-go/pkg/parser"

// Extractor reduces a parsed SERP page to feature flags plus the ordered
// citation set. Implementations must be pure: no I/O, no retained state,
// safe for concurrent use.
type Extractor interface {
	Extract(page *parser.SERPPage) (SerpFeatureFlags, CitationSet)
}
