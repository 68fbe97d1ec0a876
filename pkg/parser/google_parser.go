package parser

import (
	"encoding/json"
	"errors"

	"visibility-go/pkg/logger"
)

// googleParser decodes Google live-SERP payloads. Google is the engine
// that ships the ai_overview block proper.
type googleParser struct {
	log *logger.Logger
}

// NewGoogleParser creates a parser for Google SERP payloads
func NewGoogleParser() SERPParser {
	return &googleParser{
		log: logger.GetLogger().WithField("component", "google_parser"),
	}
}

func (p *googleParser) Engine() string {
	return "google"
}

func (p *googleParser) Parse(payload []byte) (*SERPPage, error) {
	result, err := decodeEnvelope(p.Engine(), payload)
	if err != nil {
		return nil, err
	}

	page := &SERPPage{
		Engine:   p.Engine(),
		Keyword:  result.Keyword,
		CheckURL: result.CheckURL,
	}

	skipped := 0
	for _, rawItem := range result.Items {
		itemType, ok := peekItemType(rawItem)
		if !ok {
			skipped++
			continue
		}

		switch itemType {
		case "ai_overview":
			var v AIOverview
			if json.Unmarshal(rawItem, &v) == nil && page.AIOverview == nil {
				page.AIOverview = &v
			}
		case "featured_snippet":
			var v FeaturedSnippet
			if json.Unmarshal(rawItem, &v) == nil && page.FeaturedSnippet == nil {
				page.FeaturedSnippet = &v
			}
		case "knowledge_graph":
			var v KnowledgeGraph
			if json.Unmarshal(rawItem, &v) == nil && page.KnowledgeGraph == nil {
				page.KnowledgeGraph = &v
			}
		case "people_also_ask":
			var v PeopleAlsoAsk
			if json.Unmarshal(rawItem, &v) == nil && page.PeopleAlsoAsk == nil {
				page.PeopleAlsoAsk = &v
			}
		default:
			// Organic results and the long tail of SERP widgets carry no
			// AI-visibility signal; they are skipped, never an error.
			skipped++
		}
	}

	p.log.WithFields(map[string]interface{}{
		"keyword":       result.Keyword,
		"items":         len(result.Items),
		"skipped":       skipped,
		"ai_overview":   page.AIOverview != nil,
		"feat_snippet":  page.FeaturedSnippet != nil,
		"knowledge":     page.KnowledgeGraph != nil,
		"paa":           page.PeopleAlsoAsk != nil,
	}).Debug("Parsed Google SERP page")

	return page, nil
}

// decodeEnvelope unwraps tasks[0].result[0]. A task status other than
// 20000 is the API rejecting the task; a missing result block with an OK
// status is an empty SERP, which downstream treats as feature-absent.
func decodeEnvelope(engine string, payload []byte) (*taskResult, error) {
	if len(payload) == 0 {
		return nil, &MalformedResponseError{Engine: engine, Err: errors.New("empty payload")}
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &MalformedResponseError{Engine: engine, Err: err}
	}

	if len(env.Tasks) == 0 {
		return nil, &MalformedResponseError{Engine: engine, Err: errors.New("no tasks in response")}
	}

	t := env.Tasks[0]
	if t.StatusCode != taskStatusOK {
		return nil, &TaskError{Code: t.StatusCode, Message: t.StatusMessage}
	}

	if len(t.Result) == 0 {
		return &taskResult{}, nil
	}
	return &t.Result[0], nil
}

func peekItemType(raw json.RawMessage) (string, bool) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil || head.Type == "" {
		return "", false
	}
	return head.Type, true
}
