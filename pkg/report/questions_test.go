package report

import "testing"

func TestCanonicalQuestion(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"case folding", "What Is AI Search?", "what is ai search?"},
		{"whitespace collapse", "  what   is\tai search?  ", "what is ai search?"},
		{"composed and decomposed accents", "café near me", "café near me"},
		{"full case folding beyond ASCII", "STRASSE berlin", "straße berlin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, want := CanonicalQuestion(tt.a), CanonicalQuestion(tt.b); got != want {
				t.Errorf("expected %q and %q to canonicalize equally, got %q vs %q",
					tt.a, tt.b, got, want)
			}
		})
	}

	if got := CanonicalQuestion("   "); got != "" {
		t.Errorf("expected blank question to canonicalize to empty, got %q", got)
	}
}

func TestQuestionSet(t *testing.T) {
	qs := NewQuestionSet()
	qs.AddAll([]string{
		"What is AI search?",
		"WHAT IS AI SEARCH?",
		"  what is ai search?",
		"How does it work",
		"",
		"   ",
	})

	if qs.Len() != 2 {
		t.Fatalf("expected 2 distinct questions, got %d", qs.Len())
	}

	questions := qs.Questions()
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions back, got %d", len(questions))
	}
	// First-seen original form wins.
	if questions[0] != "What is AI search?" {
		t.Errorf("expected first-seen form to be kept, got %q", questions[0])
	}
	if questions[1] != "How does it work" {
		t.Errorf("expected insertion order to be preserved, got %q", questions[1])
	}
}
