package report

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// CanonicalQuestion reduces a People-Also-Ask question to its comparable
// form: NFC so composed and decomposed accents agree, Unicode case
// folding, and runs of whitespace collapsed to single spaces. Engines
// reshuffle casing and spacing between crawls; distinct-question counts
// must not.
func CanonicalQuestion(q string) string {
	q = norm.NFC.String(q)
	q = cases.Fold().String(q)
	return strings.Join(strings.Fields(q), " ")
}

// QuestionSet counts distinct questions under canonical comparison,
// keeping the first-seen original form of each.
type QuestionSet struct {
	seen  map[string]string
	order []string
}

func NewQuestionSet() *QuestionSet {
	return &QuestionSet{seen: make(map[string]string)}
}

// Add records one question. Blank questions are ignored.
func (qs *QuestionSet) Add(question string) {
	key := CanonicalQuestion(question)
	if key == "" {
		return
	}
	if _, ok := qs.seen[key]; ok {
		return
	}
	qs.seen[key] = strings.TrimSpace(question)
	qs.order = append(qs.order, key)
}

// AddAll records every question in the list.
func (qs *QuestionSet) AddAll(questions []string) {
	for _, q := range questions {
		qs.Add(q)
	}
}

// Len is the distinct-question count.
func (qs *QuestionSet) Len() int {
	return len(qs.seen)
}

// Questions returns the first-seen original forms in insertion order.
func (qs *QuestionSet) Questions() []string {
	out := make([]string, 0, len(qs.order))
	for _, key := range qs.order {
		out = append(out, qs.seen[key])
	}
	return out
}
