// Package report aggregates per-keyword visibility records into the batch
// summary shape served by the HTTP API and printed by the CLI.
package report

import (
	"math"

	"visibility-go/pkg/monitor"
)

// CountPercent pairs an absolute count with its share, rounded to one
// decimal place. The denominator is documented on each field that uses it.
type CountPercent struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ScoreStats aggregates the merged visibility scores of a batch. Averages
// include zero-scored (degraded) keywords: a keyword that returned nothing
// still dilutes the brand's visibility.
type ScoreStats struct {
	AverageScore float64 `json:"average_score"`
	MaxScore     float64 `json:"max_score"`
}

// EnginePAA holds one engine's distinct People-Also-Ask question count.
type EnginePAA struct {
	TotalQuestions int `json:"total_questions"`
}

// PAAInsights summarizes People-Also-Ask coverage across both engines.
// Counts are distinct under canonical comparison (see CanonicalQuestion);
// the combined figure is the size of the union, not the sum.
type PAAInsights struct {
	GooglePAA               EnginePAA `json:"google_paa"`
	BingPAA                 EnginePAA `json:"bing_paa"`
	CombinedUniqueQuestions int       `json:"combined_unique_questions"`
}

// AnalysisSummary is the aggregate view of one analysis batch.
//
// Denominators are deliberate: AIOverviewPresence.Percentage is over all
// keywords, while BrandCitations.Percentage is over the keywords where an
// AI Overview actually appeared, since a brand cannot be cited by an
// overview that does not exist. When no overview appeared the citation
// percentage is 0, never NaN.
type AnalysisSummary struct {
	TotalQueries          int            `json:"total_queries"`
	AIOverviewPresence    CountPercent   `json:"ai_overview_presence"`
	BrandCitations        CountPercent   `json:"brand_citations"`
	AIVisibilityScoring   ScoreStats     `json:"ai_visibility_scoring"`
	PAAInsights           PAAInsights    `json:"people_also_ask_insights"`
	CompetitorPerformance map[string]int `json:"competitor_performance"`
	Recommendations       []string       `json:"recommendations"`
}

// Summarize aggregates a batch of keyword records. Nil entries are skipped;
// an empty batch yields a zeroed summary with no recommendations. Slices
// and maps are always allocated so the JSON shape stays stable.
func Summarize(results []*monitor.KeywordResult) *AnalysisSummary {
	summary := &AnalysisSummary{
		CompetitorPerformance: make(map[string]int),
		Recommendations:       make([]string, 0),
	}

	googleQuestions := NewQuestionSet()
	bingQuestions := NewQuestionSet()
	combinedQuestions := NewQuestionSet()

	var (
		total      int
		aioPresent int
		brandCited int
		scoreSum   float64
		scoreMax   float64
	)
	for _, r := range results {
		if r == nil {
			continue
		}
		total++
		if r.GoogleAIOverviewPresent {
			aioPresent++
		}
		if r.GoogleBrandCited {
			brandCited++
		}
		scoreSum += r.AIVisibilityScore
		if r.AIVisibilityScore > scoreMax {
			scoreMax = r.AIVisibilityScore
		}
		for competitor, citations := range r.GoogleCompetitorCitations {
			summary.CompetitorPerformance[competitor] += citations
		}
		googleQuestions.AddAll(r.PeopleAlsoAskQueries)
		bingQuestions.AddAll(r.BingPeopleAlsoAskQueries)
		combinedQuestions.AddAll(r.PeopleAlsoAskQueries)
		combinedQuestions.AddAll(r.BingPeopleAlsoAskQueries)
	}

	summary.TotalQueries = total
	summary.AIOverviewPresence = CountPercent{
		Count:      aioPresent,
		Percentage: percentage(aioPresent, total),
	}
	summary.BrandCitations = CountPercent{
		Count:      brandCited,
		Percentage: percentage(brandCited, aioPresent),
	}
	summary.PAAInsights = PAAInsights{
		GooglePAA:               EnginePAA{TotalQuestions: googleQuestions.Len()},
		BingPAA:                 EnginePAA{TotalQuestions: bingQuestions.Len()},
		CombinedUniqueQuestions: combinedQuestions.Len(),
	}

	if total == 0 {
		return summary
	}

	average := round1(scoreSum / float64(total))
	summary.AIVisibilityScoring = ScoreStats{
		AverageScore: average,
		MaxScore:     scoreMax,
	}
	summary.Recommendations = recommendations(average, aioPresent > 0, brandCited > 0)
	return summary
}

// recommendations maps the batch average onto the advice tiers the
// reporting service has always used, plus one tactical line when overviews
// appeared but never cited the brand.
func recommendations(averageScore float64, anyOverview, anyCitation bool) []string {
	recs := make([]string, 0, 3)
	switch {
	case averageScore < 30:
		recs = append(recs,
			"🔴 Critical: Your brand has very low AI visibility. Focus on creating AI-optimized content.",
			"📈 Priority: Target informational queries where AI Overviews are more likely to appear.",
		)
	case averageScore < 60:
		recs = append(recs,
			"🟡 Moderate: Your brand appears in some AI features. Optimize content for featured snippets.",
			"🎯 Focus: Improve content authority and factual accuracy for AI citation eligibility.",
		)
	default:
		recs = append(recs,
			"🟢 Strong: Your brand has good AI visibility. Maintain and expand current strategies.",
			"📊 Optimize: Monitor competitor activities and defend your AI presence.",
		)
	}
	if anyOverview && !anyCitation {
		recs = append(recs,
			"💡 Tactic: AI Overviews appear for your keywords but never cite your brand. Focus on E-A-T content optimization.",
		)
	}
	return recs
}

func percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round1(float64(part) / float64(whole) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
