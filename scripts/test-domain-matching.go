//go:build ignore

package main

import (
	"fmt"

	"visibility-go/pkg/domain"
	"visibility-go/pkg/extractor"
	"visibility-go/pkg/matcher"
)

func main() {
	fmt.Println("=== Testing Domain Matching ===\n")

	// URL shapes that should all collapse to the same bare domain
	testInputs := []string{
		"https://www.brand.com/blog/ai-visibility/",
		"http://brand.com:8080/pricing?ref=serp",
		"user:pass@brand.com/docs",
		"BRAND.COM.",
		"https://blog.brand.com/post", // subdomain stays distinct
		"not a url at all",
	}

	fmt.Println("Normalization:")
	for i, raw := range testInputs {
		normalized := domain.Normalize(raw)
		if normalized == domain.Empty {
			fmt.Printf("%d. %-45s -> ❌ (unusable)\n", i+1, raw)
			continue
		}
		fmt.Printf("%d. %-45s -> %s\n", i+1, raw, normalized)
	}

	// Citations the way an AI overview block lists them
	citations := extractor.CitationSet(domain.NormalizeAll([]string{
		"https://www.rival.com/ai-guide",
		"https://brand.com/blog/answer-engines/",
		"https://research.io/llm-citations",
		"https://www.rival.com/pricing",
		"https://brand.com/docs/",
	}))

	fmt.Printf("\nCitation set (%d): %v\n", len(citations), citations)

	result := matcher.Match(citations, "https://www.Brand.com", []string{"rival.com", "Research.IO", "absent.org"})

	fmt.Printf("\nBrand %q:\n", result.Brand)
	if result.BrandCited {
		fmt.Printf("✅ Cited %d time(s), first at position %d\n", result.BrandCitations, result.BrandPosition)
	} else {
		fmt.Println("❌ Never cited")
	}

	fmt.Println("\nCompetitors:")
	for _, comp := range result.Competitors {
		count := result.CompetitorCounts[comp]
		if count > 0 {
			fmt.Printf("✅ %s - %d citation(s), first at position %d\n", comp, count, result.CompetitorPositions[comp])
		} else {
			fmt.Printf("❌ %s - never cited\n", comp)
		}
	}

	fmt.Printf("\nSummary: %d citations matched %d configured entities\n",
		len(citations), matchedEntities(result))
}

func matchedEntities(result matcher.Result) int {
	n := 0
	if result.BrandCited {
		n++
	}
	for _, comp := range result.Competitors {
		if result.CompetitorCounts[comp] > 0 {
			n++
		}
	}
	return n
}
