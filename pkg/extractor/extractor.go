package extractor

import (
	"visibility-go/pkg/domain"
	"visibility-go/pkg/parser"
)

const engineBing = "bing"

// FeatureExtractor is the production Extractor. A missing block means a
// false flag and an empty list, never an error: pages legitimately carry
// no AI surface at all.
type FeatureExtractor struct{}

func NewFeatureExtractor() *FeatureExtractor {
	return &FeatureExtractor{}
}

// Extract walks the typed blocks of one engine's page. Citations come
// from AI answer blocks only: Google's AI overview references, or the
// source URLs of Bing's answer blocks. Organic results never count as
// citations.
func (e *FeatureExtractor) Extract(page *parser.SERPPage) (SerpFeatureFlags, CitationSet) {
	var flags SerpFeatureFlags
	var citations CitationSet

	if page == nil {
		return flags, citations
	}

	if page.AIOverview != nil {
		flags.AIOverviewPresent = true
		citations = append(citations, aiOverviewCitations(page.AIOverview)...)
	}

	if page.FeaturedSnippet != nil {
		flags.FeaturedSnippetPresent = true
	}

	if page.KnowledgeGraph != nil {
		flags.KnowledgeGraphPresent = true
		if page.Engine == engineBing {
			flags.AIFeatures = append(flags.AIFeatures, "knowledge_graph")
			citations = appendNormalized(citations, page.KnowledgeGraph.URL)
		}
	}

	if page.PeopleAlsoAsk != nil {
		flags.PeopleAlsoAskPresent = true
		flags.PAAQuestions = page.PeopleAlsoAsk.Questions()
	}

	if page.AnswerBox != nil {
		flags.AIFeatures = append(flags.AIFeatures, "answer_box")
		citations = appendAnswerBox(citations, page.AnswerBox)
	}

	if page.InstantAnswer != nil {
		flags.AIFeatures = append(flags.AIFeatures, "instant_answer")
		citations = appendAnswerBox(citations, page.InstantAnswer)
	}

	return flags, citations
}

// aiOverviewCitations resolves the three citation shapes the API has
// shipped. Precedence: references is engine ground truth when it yields
// anything; the nested per-element references come next; the legacy links
// field is trusted only when both newer shapes produced nothing. A page
// where references and links disagree follows references.
func aiOverviewCitations(aio *parser.AIOverview) []string {
	if out := referenceDomains(aio.References); len(out) > 0 {
		return out
	}

	var nested []parser.Reference
	for _, el := range aio.Items {
		nested = append(nested, el.References...)
	}
	if out := referenceDomains(nested); len(out) > 0 {
		return out
	}

	var out []string
	for _, l := range aio.Links {
		if d := domain.Normalize(l.URL); d != domain.Empty {
			out = append(out, d)
		}
	}
	return out
}

func referenceDomains(refs []parser.Reference) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if d := domain.Normalize(r.CitedLocation()); d != domain.Empty {
			out = append(out, d)
		}
	}
	return out
}

func appendAnswerBox(citations CitationSet, box *parser.AnswerBox) CitationSet {
	citations = appendNormalized(citations, box.URL)
	for _, l := range box.Links {
		citations = appendNormalized(citations, l.URL)
	}
	return citations
}

func appendNormalized(citations CitationSet, raw string) CitationSet {
	if d := domain.Normalize(raw); d != domain.Empty {
		citations = append(citations, d)
	}
	return citations
}
