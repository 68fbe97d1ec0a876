// Package matcher decides whether the configured brand and competitors
// appear in an engine's citation set.
package matcher

import (
	"visibility-go/pkg/domain"
	"visibility-go/pkg/extractor"
)

// Result is the outcome of matching one entity set against one engine's
// citations.
type Result struct {
	// Brand is the normalized form actually compared against.
	Brand          string
	BrandCited     bool
	BrandPosition  int // first-occurrence index, -1 when never cited
	BrandCitations int

	// Competitors holds the normalized competitor domains in input order
	// with duplicates collapsed. Counts and positions carry an entry for
	// every competitor, zero and -1 when never cited, so downstream
	// percentage math never guards missing keys.
	Competitors         []string
	CompetitorCounts    map[string]int
	CompetitorPositions map[string]int
}

// Match compares brand and competitor domains against the citation list.
// Every comparison goes through domain normalization; a citation that
// matches no configured entity is ignored here but stays in the caller's
// citation list. Positions index into the citation set as given.
//
// A brand that normalizes to the empty sentinel never matches; rejecting
// that configuration up front is the orchestrator's job.
func Match(citations extractor.CitationSet, brand string, competitors []string) Result {
	res := Result{
		Brand:               domain.Normalize(brand),
		BrandPosition:       -1,
		CompetitorCounts:    make(map[string]int, len(competitors)),
		CompetitorPositions: make(map[string]int, len(competitors)),
	}

	for _, raw := range competitors {
		c := domain.Normalize(raw)
		if c == domain.Empty {
			continue
		}
		if _, seen := res.CompetitorCounts[c]; seen {
			continue
		}
		res.Competitors = append(res.Competitors, c)
		res.CompetitorCounts[c] = 0
		res.CompetitorPositions[c] = -1
	}

	for i, cited := range citations {
		d := domain.Normalize(cited)
		if d == domain.Empty {
			continue
		}
		if res.Brand != domain.Empty && d == res.Brand {
			res.BrandCited = true
			res.BrandCitations++
			if res.BrandPosition < 0 {
				res.BrandPosition = i
			}
		}
		if _, ok := res.CompetitorCounts[d]; ok {
			res.CompetitorCounts[d]++
			if res.CompetitorPositions[d] < 0 {
				res.CompetitorPositions[d] = i
			}
		}
	}

	return res
}
