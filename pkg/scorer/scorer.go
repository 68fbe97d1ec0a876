// Package scorer turns extracted SERP signals into 0-100 visibility
// scores and ranks the brand against its competitors.
package scorer

import (
	"math"
	"sort"

	"visibility-go/pkg/extractor"
	"visibility-go/pkg/matcher"
)

// Signal weights. A citation's value decays with its position in the
// answer block, from citationBase at position 0 down to citationFloor;
// presence and classic-feature bonuses are flat. An uncited entity on a
// page with no AI surface can reach at most 30, which keeps any cited
// entity (minimum 25+15) strictly above it.
const (
	aiPresenceBonus      = 25.0
	citationBase         = 45.0
	citationDecay        = 5.0
	citationFloor        = 15.0
	featuredSnippetBonus = 12.0
	knowledgeGraphBonus  = 10.0
	paaBonus             = 8.0
	maxScore             = 100.0

	googleWeight = 0.7
	bingWeight   = 0.3
)

// EngineSignals bundles one engine's extracted page state for scoring.
type EngineSignals struct {
	Flags     extractor.SerpFeatureFlags
	Citations extractor.CitationSet
	Match     matcher.Result
}

// Scorecard is the scored view of one keyword.
type Scorecard struct {
	Google float64
	Bing   float64

	// Brand is the merged 0-100 brand score.
	Brand float64

	// Competitors maps normalized competitor domain to merged score.
	Competitors map[string]float64

	// DominanceRank is the brand's 1-indexed position among
	// {brand, competitors...} by merged score.
	DominanceRank int
}

// ScoreKeyword scores brand and competitors over both engines and ranks
// them. Pure and deterministic: the same signals always produce the same
// scorecard.
func ScoreKeyword(google, bing EngineSignals) Scorecard {
	sc := Scorecard{
		Google: EngineScore(google.Flags, google.Match.BrandCited, google.Match.BrandPosition),
		Bing:   EngineScore(bing.Flags, bing.Match.BrandCited, bing.Match.BrandPosition),
	}
	sc.Brand = Merge(sc.Google, sc.Bing)

	// Both matches were built from the same configuration, so the google
	// match's competitor list covers bing's too.
	sc.Competitors = make(map[string]float64, len(google.Match.Competitors))
	standings := make([]Standing, 0, len(google.Match.Competitors)+1)
	standings = append(standings, Standing{
		Domain:    google.Match.Brand,
		Score:     sc.Brand,
		Citations: google.Match.BrandCitations + bing.Match.BrandCitations,
	})

	for _, comp := range google.Match.Competitors {
		g := EngineScore(google.Flags,
			google.Match.CompetitorCounts[comp] > 0, google.Match.CompetitorPositions[comp])
		b := EngineScore(bing.Flags,
			bing.Match.CompetitorCounts[comp] > 0, bing.Match.CompetitorPositions[comp])
		merged := Merge(g, b)
		sc.Competitors[comp] = merged
		standings = append(standings, Standing{
			Domain:    comp,
			Score:     merged,
			Citations: google.Match.CompetitorCounts[comp] + bing.Match.CompetitorCounts[comp],
		})
	}

	sc.DominanceRank = Rank(standings, google.Match.Brand)
	return sc
}

// EngineScore computes one engine's 0-100 score for one entity. The
// citation bonus applies only when the page has an AI surface to be cited
// in; classic features score regardless.
func EngineScore(flags extractor.SerpFeatureFlags, cited bool, position int) float64 {
	score := 0.0
	if flags.HasAIPresence() {
		score += aiPresenceBonus
		if cited {
			score += citationBonus(position)
		}
	}
	if flags.FeaturedSnippetPresent {
		score += featuredSnippetBonus
	}
	if flags.KnowledgeGraphPresent {
		score += knowledgeGraphBonus
	}
	if flags.PeopleAlsoAskPresent {
		score += paaBonus
	}
	if score > maxScore {
		score = maxScore
	}
	return score
}

func citationBonus(position int) float64 {
	if position < 0 {
		return 0
	}
	bonus := citationBase - citationDecay*float64(position)
	if bonus < citationFloor {
		return citationFloor
	}
	return bonus
}

// Merge blends two engine scores with the fixed 70/30 google/bing split,
// rounded to one decimal so reported scores are stable.
func Merge(google, bing float64) float64 {
	return round1(googleWeight*google + bingWeight*bing)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Standing is one entity's merged score and total citation volume across
// both engines.
type Standing struct {
	Domain    string
	Score     float64
	Citations int
}

// Rank orders standings by score descending, then citation count
// descending, then domain ascending, and returns the 1-indexed position
// of target. Returns 0 when target is not among the standings.
func Rank(standings []Standing, target string) int {
	ordered := make([]Standing, len(standings))
	copy(ordered, standings)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		if ordered[i].Citations != ordered[j].Citations {
			return ordered[i].Citations > ordered[j].Citations
		}
		return ordered[i].Domain < ordered[j].Domain
	})
	for i, s := range ordered {
		if s.Domain == target {
			return i + 1
		}
	}
	return 0
}
