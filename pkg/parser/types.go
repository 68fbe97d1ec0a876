package parser

import (
	"encoding/json"
	"fmt"
)

// SERPPage is the typed form of one engine's response for one keyword.
// The raw payload shape stops here: everything downstream (extraction,
// matching, scoring) works on this structure only.
type SERPPage struct {
	Engine   string `json:"engine"`
	Keyword  string `json:"keyword"`
	CheckURL string `json:"check_url,omitempty"`

	AIOverview      *AIOverview      `json:"ai_overview,omitempty"`
	FeaturedSnippet *FeaturedSnippet `json:"featured_snippet,omitempty"`
	KnowledgeGraph  *KnowledgeGraph  `json:"knowledge_graph,omitempty"`
	PeopleAlsoAsk   *PeopleAlsoAsk   `json:"people_also_ask,omitempty"`
	AnswerBox       *AnswerBox       `json:"answer_box,omitempty"`
	InstantAnswer   *AnswerBox       `json:"instant_answer,omitempty"`
}

// AIOverview is the engine's AI-generated answer block. Citations may
// appear under three fields depending on payload generation: `references`
// (current), per-element `items[].references` (nested), or `links`
// (legacy). Extraction precedence is handled downstream; the parser keeps
// all three verbatim.
type AIOverview struct {
	Text       string              `json:"text"`
	Markdown   string              `json:"markdown"`
	References []Reference         `json:"references"`
	Items      []AIOverviewElement `json:"items"`
	Links      []Link              `json:"links"`
}

// AIOverviewElement is one block inside an AI overview; elements carry
// their own reference lists in the nested payload shape.
type AIOverviewElement struct {
	Type       string      `json:"type"`
	Title      string      `json:"title"`
	Text       string      `json:"text"`
	References []Reference `json:"references"`
}

// Reference is a cited source. The domain may arrive directly or only as
// part of the URL.
type Reference struct {
	Type   string `json:"type"`
	Source string `json:"source"`
	Domain string `json:"domain"`
	URL    string `json:"url"`
	Title  string `json:"title"`
}

// CitedLocation returns the best available locator for the cited source.
func (r Reference) CitedLocation() string {
	if r.Domain != "" {
		return r.Domain
	}
	return r.URL
}

// Link is the legacy citation shape. Older payloads used "href" where
// newer ones use "url"; both decode into URL.
type Link struct {
	Title string
	URL   string
}

func (l *Link) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title string `json:"title"`
		URL   string `json:"url"`
		Href  string `json:"href"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.Title = raw.Title
	l.URL = raw.URL
	if l.URL == "" {
		l.URL = raw.Href
	}
	return nil
}

// FeaturedSnippet is the classic position-zero answer card.
type FeaturedSnippet struct {
	Domain      string `json:"domain"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// KnowledgeGraph is the entity panel block.
type KnowledgeGraph struct {
	Title    string `json:"title"`
	SubTitle string `json:"sub_title"`
	URL      string `json:"url"`
}

// PeopleAlsoAsk holds the related-questions block.
type PeopleAlsoAsk struct {
	Items []PAAItem `json:"items"`
}

// Questions returns the non-empty question strings in payload order.
func (p *PeopleAlsoAsk) Questions() []string {
	if p == nil || len(p.Items) == 0 {
		return nil
	}
	out := make([]string, 0, len(p.Items))
	for _, item := range p.Items {
		if item.Question != "" {
			out = append(out, item.Question)
		}
	}
	return out
}

// PAAItem decodes the two question shapes the API has shipped: a bare
// string, or an object carrying the question under one of several keys.
// Unrecognized shapes decode to an empty question and are skipped.
type PAAItem struct {
	Question string
}

func (p *PAAItem) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.Question = s
		return nil
	}

	var obj struct {
		Question     string `json:"question"`
		Title        string `json:"title"`
		SeedQuestion string `json:"seed_question"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		p.Question = ""
		return nil
	}

	switch {
	case obj.Question != "":
		p.Question = obj.Question
	case obj.Title != "":
		p.Question = obj.Title
	default:
		p.Question = obj.SeedQuestion
	}
	return nil
}

// AnswerBox covers Bing's answer_box and instant_answer blocks, which
// share the fields this system reads.
type AnswerBox struct {
	Text  string `json:"text"`
	URL   string `json:"url"`
	Links []Link `json:"links"`
}

// MalformedResponseError marks a payload that arrived but could not be
// decoded into the envelope shape.
type MalformedResponseError struct {
	Engine string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed %s response: %v", e.Engine, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// TaskError is the API's own task-level rejection (status code != 20000).
type TaskError struct {
	Code    int
	Message string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("serp task failed: %d %s", e.Code, e.Message)
}

// Wire envelope: tasks[0].result[0].items[] carries the SERP items.
type envelope struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Tasks         []task `json:"tasks"`
}

type task struct {
	ID            string       `json:"id"`
	StatusCode    int          `json:"status_code"`
	StatusMessage string       `json:"status_message"`
	Result        []taskResult `json:"result"`
}

type taskResult struct {
	Keyword    string            `json:"keyword"`
	Type       string            `json:"type"`
	SEDomain   string            `json:"se_domain"`
	CheckURL   string            `json:"check_url"`
	ItemsCount int               `json:"items_count"`
	Items      []json.RawMessage `json:"items"`
}

const taskStatusOK = 20000
