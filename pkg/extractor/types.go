package extractor

// CitationSet is the ordered list of normalized domains cited by one
// engine's AI answer blocks. Order is appearance order and duplicates are
// kept: a source cited three times is a stronger signal than one cited
// once, and downstream counting depends on it.
type CitationSet []string

// Contains reports whether the normalized domain appears at least once.
func (c CitationSet) Contains(normalized string) bool {
	return c.IndexOf(normalized) >= 0
}

// IndexOf returns the first-occurrence index of the normalized domain,
// or -1 when absent. An empty needle never matches.
func (c CitationSet) IndexOf(normalized string) int {
	if normalized == "" {
		return -1
	}
	for i, d := range c {
		if d == normalized {
			return i
		}
	}
	return -1
}

// Count returns how many times the normalized domain was cited.
func (c CitationSet) Count(normalized string) int {
	if normalized == "" {
		return 0
	}
	n := 0
	for _, d := range c {
		if d == normalized {
			n++
		}
	}
	return n
}

// SerpFeatureFlags captures which answer surfaces one engine's page
// carried. Google pages use the AIOverview/FeaturedSnippet/KnowledgeGraph/
// PeopleAlsoAsk flags; Bing pages additionally list their AI-adjacent
// blocks by name in AIFeatures (answer_box, instant_answer,
// knowledge_graph).
type SerpFeatureFlags struct {
	AIOverviewPresent      bool
	FeaturedSnippetPresent bool
	KnowledgeGraphPresent  bool
	PeopleAlsoAskPresent   bool

	// PAAQuestions holds the flattened question strings in page order.
	PAAQuestions []string

	// AIFeatures names the Bing answer blocks present on the page.
	AIFeatures []string
}

// HasAIPresence reports whether the page carried any AI answer surface:
// Google's AI overview or at least one Bing answer block.
func (f SerpFeatureFlags) HasAIPresence() bool {
	return f.AIOverviewPresent || len(f.AIFeatures) > 0
}
