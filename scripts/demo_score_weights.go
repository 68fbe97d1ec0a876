//go:build ignore

package main

import (
	"fmt"

	"visibility-go/pkg/extractor"
	"visibility-go/pkg/matcher"
	"visibility-go/pkg/scorer"
)

func main() {
	fmt.Println("=== AI Visibility Score Weights Demo ===")

	// 1. Citation position decay
	fmt.Println("\n1. Citation position decay (AI overview present, brand cited):")
	aiOnly := extractor.SerpFeatureFlags{AIOverviewPresent: true}
	for pos := 0; pos <= 8; pos++ {
		score := scorer.EngineScore(aiOnly, true, pos)
		marker := ""
		if pos >= 6 {
			marker = " (floor)"
		}
		fmt.Printf("  position %d -> %.0f%s\n", pos, score, marker)
	}

	// 2. Feature mixes
	fmt.Println("\n2. Feature mixes (citation at position 0 where cited):")
	mixes := []struct {
		name  string
		flags extractor.SerpFeatureFlags
		cited bool
	}{
		{"no answer surfaces", extractor.SerpFeatureFlags{}, false},
		{"classic features only", extractor.SerpFeatureFlags{
			FeaturedSnippetPresent: true, KnowledgeGraphPresent: true, PeopleAlsoAskPresent: true}, false},
		{"AI overview, uncited", extractor.SerpFeatureFlags{AIOverviewPresent: true}, false},
		{"AI overview + classics, uncited", extractor.SerpFeatureFlags{
			AIOverviewPresent: true, FeaturedSnippetPresent: true,
			KnowledgeGraphPresent: true, PeopleAlsoAskPresent: true}, false},
		{"full house, cited", extractor.SerpFeatureFlags{
			AIOverviewPresent: true, FeaturedSnippetPresent: true,
			KnowledgeGraphPresent: true, PeopleAlsoAskPresent: true}, true},
		{"bing answer blocks, cited", extractor.SerpFeatureFlags{
			AIFeatures: []string{"answer_box", "instant_answer"}}, true},
	}
	for _, m := range mixes {
		fmt.Printf("  %-32s -> %.0f\n", m.name, scorer.EngineScore(m.flags, m.cited, 0))
	}

	// 3. Engine weighting
	fmt.Println("\n3. Engine merge (0.7*google + 0.3*bing):")
	pairs := [][2]float64{{70, 0}, {70, 40}, {0, 70}, {100, 100}}
	for _, p := range pairs {
		fmt.Printf("  google=%.0f bing=%.0f -> %.1f\n", p[0], p[1], scorer.Merge(p[0], p[1]))
	}

	// 4. Full keyword scorecard against two competitors
	fmt.Println("\n4. Full scorecard:")
	googleCitations := extractor.CitationSet{"rival.com", "brand.com", "research.io", "rival.com"}
	bingCitations := extractor.CitationSet{"brand.com"}
	competitors := []string{"rival.com", "research.io"}

	google := scorer.EngineSignals{
		Flags: extractor.SerpFeatureFlags{
			AIOverviewPresent:      true,
			FeaturedSnippetPresent: true,
			PeopleAlsoAskPresent:   true,
		},
		Citations: googleCitations,
		Match:     matcher.Match(googleCitations, "brand.com", competitors),
	}
	bing := scorer.EngineSignals{
		Flags:     extractor.SerpFeatureFlags{AIFeatures: []string{"answer_box"}},
		Citations: bingCitations,
		Match:     matcher.Match(bingCitations, "brand.com", competitors),
	}

	card := scorer.ScoreKeyword(google, bing)
	fmt.Printf("  google citations: %v\n", googleCitations)
	fmt.Printf("  bing citations:   %v\n", bingCitations)
	fmt.Printf("  brand.com: google=%.1f bing=%.1f merged=%.1f rank=#%d\n",
		card.Google, card.Bing, card.Brand, card.DominanceRank)
	for _, comp := range google.Match.Competitors {
		fmt.Printf("  %s: merged=%.1f\n", comp, card.Competitors[comp])
	}

	if card.DominanceRank == 1 {
		fmt.Println("\n✅ Brand leads the citation share for this keyword")
	} else {
		fmt.Printf("\n❌ Brand trails at rank #%d\n", card.DominanceRank)
	}
}
