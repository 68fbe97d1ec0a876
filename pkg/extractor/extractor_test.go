package extractor

import (
	"reflect"
	"testing"

	"visibility-go/pkg/parser"
)

func googlePage() *parser.SERPPage {
	return &parser.SERPPage{Engine: "google", Keyword: "best diabetes treatment"}
}

func bingPage() *parser.SERPPage {
	return &parser.SERPPage{Engine: "bing", Keyword: "best diabetes treatment"}
}

func TestExtract_ReferencesWinOverLinks(t *testing.T) {
	// A page where references and links disagree must follow references.
	// Trusting links here was the original field-precedence bug.
	page := googlePage()
	page.AIOverview = &parser.AIOverview{
		References: []parser.Reference{
			{Domain: "mayoclinic.org", URL: "https://www.mayoclinic.org/diabetes"},
		},
		Links: []parser.Link{
			{URL: "https://www.webmd.com/diabetes"},
		},
	}

	_, citations := NewFeatureExtractor().Extract(page)

	want := CitationSet{"mayoclinic.org"}
	if !reflect.DeepEqual(citations, want) {
		t.Fatalf("citations = %v, want %v", citations, want)
	}
}

func TestExtract_NestedReferencesWhenTopLevelEmpty(t *testing.T) {
	page := googlePage()
	page.AIOverview = &parser.AIOverview{
		Items: []parser.AIOverviewElement{
			{
				Type: "ai_overview_element",
				References: []parser.Reference{
					{URL: "https://www.healthline.com/diabetes"},
					{Domain: "cdc.gov"},
				},
			},
		},
		Links: []parser.Link{
			{URL: "https://legacy.example.com/page"},
		},
	}

	_, citations := NewFeatureExtractor().Extract(page)

	want := CitationSet{"healthline.com", "cdc.gov"}
	if !reflect.DeepEqual(citations, want) {
		t.Fatalf("citations = %v, want %v", citations, want)
	}
}

func TestExtract_LegacyLinksOnlyWhenNothingElse(t *testing.T) {
	page := googlePage()
	page.AIOverview = &parser.AIOverview{
		Links: []parser.Link{
			{URL: "https://www.niddk.nih.gov/health-information"},
			{URL: "https://diabetes.org/about"},
		},
	}

	flags, citations := NewFeatureExtractor().Extract(page)

	if !flags.AIOverviewPresent {
		t.Error("AIOverviewPresent = false with an ai_overview block on the page")
	}
	want := CitationSet{"niddk.nih.gov", "diabetes.org"}
	if !reflect.DeepEqual(citations, want) {
		t.Fatalf("citations = %v, want %v", citations, want)
	}
}

func TestExtract_UnresolvableReferencesFallThrough(t *testing.T) {
	// References that normalize to nothing must not block the fallback
	// chain; the page still has real citations under items.
	page := googlePage()
	page.AIOverview = &parser.AIOverview{
		References: []parser.Reference{{Title: "untitled", URL: ""}},
		Items: []parser.AIOverviewElement{
			{References: []parser.Reference{{Domain: "who.int"}}},
		},
	}

	_, citations := NewFeatureExtractor().Extract(page)

	want := CitationSet{"who.int"}
	if !reflect.DeepEqual(citations, want) {
		t.Fatalf("citations = %v, want %v", citations, want)
	}
}

func TestExtract_AbsentBlocks(t *testing.T) {
	flags, citations := NewFeatureExtractor().Extract(googlePage())

	if flags.AIOverviewPresent || flags.FeaturedSnippetPresent ||
		flags.KnowledgeGraphPresent || flags.PeopleAlsoAskPresent {
		t.Errorf("empty page produced flags %+v", flags)
	}
	if len(citations) != 0 {
		t.Errorf("empty page produced citations %v", citations)
	}
	if flags.HasAIPresence() {
		t.Error("empty page reports AI presence")
	}
}

func TestExtract_NilPage(t *testing.T) {
	flags, citations := NewFeatureExtractor().Extract(nil)
	if flags.HasAIPresence() || len(citations) != 0 {
		t.Errorf("nil page produced flags %+v citations %v", flags, citations)
	}
}

func TestExtract_DuplicateCitationsPreserved(t *testing.T) {
	page := googlePage()
	page.AIOverview = &parser.AIOverview{
		References: []parser.Reference{
			{Domain: "mayoclinic.org"},
			{Domain: "healthline.com"},
			{URL: "https://www.mayoclinic.org/another-page"},
		},
	}

	_, citations := NewFeatureExtractor().Extract(page)

	want := CitationSet{"mayoclinic.org", "healthline.com", "mayoclinic.org"}
	if !reflect.DeepEqual(citations, want) {
		t.Fatalf("citations = %v, want %v (duplicates are a signal)", citations, want)
	}
	if citations.Count("mayoclinic.org") != 2 {
		t.Errorf("Count(mayoclinic.org) = %d, want 2", citations.Count("mayoclinic.org"))
	}
	if citations.IndexOf("healthline.com") != 1 {
		t.Errorf("IndexOf(healthline.com) = %d, want 1", citations.IndexOf("healthline.com"))
	}
}

func TestExtract_GooglePAAAndFeatures(t *testing.T) {
	page := googlePage()
	page.FeaturedSnippet = &parser.FeaturedSnippet{Domain: "webmd.com"}
	page.KnowledgeGraph = &parser.KnowledgeGraph{Title: "Diabetes"}
	page.PeopleAlsoAsk = &parser.PeopleAlsoAsk{
		Items: []parser.PAAItem{
			{Question: "What is type 2 diabetes?"},
			{Question: "Can diabetes be reversed?"},
		},
	}

	flags, citations := NewFeatureExtractor().Extract(page)

	if !flags.FeaturedSnippetPresent || !flags.KnowledgeGraphPresent || !flags.PeopleAlsoAskPresent {
		t.Errorf("feature flags = %+v", flags)
	}
	if len(flags.PAAQuestions) != 2 {
		t.Fatalf("PAAQuestions = %v, want 2 entries", flags.PAAQuestions)
	}
	// Google's knowledge graph is a classic SERP feature, not an AI answer
	// block, and must not cite or count as an AI feature.
	if len(flags.AIFeatures) != 0 {
		t.Errorf("google page produced AIFeatures %v", flags.AIFeatures)
	}
	if len(citations) != 0 {
		t.Errorf("non-AIO features produced citations %v", citations)
	}
}

func TestExtract_BingAnswerBlocks(t *testing.T) {
	page := bingPage()
	page.AnswerBox = &parser.AnswerBox{
		URL: "https://www.mayoclinic.org/answer",
		Links: []parser.Link{
			{URL: "https://healthline.com/ref"},
		},
	}
	page.InstantAnswer = &parser.AnswerBox{URL: "https://cdc.gov/instant"}
	page.KnowledgeGraph = &parser.KnowledgeGraph{URL: "https://wikipedia.org/wiki/Diabetes"}

	flags, citations := NewFeatureExtractor().Extract(page)

	wantFeatures := []string{"knowledge_graph", "answer_box", "instant_answer"}
	if len(flags.AIFeatures) != len(wantFeatures) {
		t.Fatalf("AIFeatures = %v, want %v", flags.AIFeatures, wantFeatures)
	}
	for _, f := range wantFeatures {
		found := false
		for _, got := range flags.AIFeatures {
			if got == f {
				found = true
			}
		}
		if !found {
			t.Errorf("AIFeatures %v missing %q", flags.AIFeatures, f)
		}
	}
	if !flags.HasAIPresence() {
		t.Error("bing answer blocks must count as AI presence")
	}

	wantCitations := CitationSet{"wikipedia.org", "mayoclinic.org", "healthline.com", "cdc.gov"}
	if !reflect.DeepEqual(citations, wantCitations) {
		t.Fatalf("citations = %v, want %v", citations, wantCitations)
	}
}

func TestCitationSet_EmptyNeedleNeverMatches(t *testing.T) {
	c := CitationSet{"example.com"}
	if c.Contains("") {
		t.Error("empty needle matched a citation set")
	}
	if c.IndexOf("") != -1 {
		t.Error("empty needle produced an index")
	}
	if c.Count("") != 0 {
		t.Error("empty needle produced a count")
	}
}
