package parser

import (
	"encoding/json"

	"visibility-go/pkg/logger"
)

// bingParser decodes Bing live-SERP payloads. Bing has no ai_overview
// item; its AI-adjacent surface is answer_box / instant_answer plus the
// knowledge graph, and those are what visibility is measured against.
type bingParser struct {
	log *logger.Logger
}

// NewBingParser creates a parser for Bing SERP payloads
func NewBingParser() SERPParser {
	return &bingParser{
		log: logger.GetLogger().WithField("component", "bing_parser"),
	}
}

func (p *bingParser) Engine() string {
	return "bing"
}

func (p *bingParser) Parse(payload []byte) (*SERPPage, error) {
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
		case "answer_box":
			var v AnswerBox
			if json.Unmarshal(rawItem, &v) == nil && page.AnswerBox == nil {
				page.AnswerBox = &v
			}
		case "instant_answer":
			var v AnswerBox
			if json.Unmarshal(rawItem, &v) == nil && page.InstantAnswer == nil {
				page.InstantAnswer = &v
			}
		case "knowledge_graph":
			var v KnowledgeGraph
			if json.Unmarshal(rawItem, &v) == nil && page.KnowledgeGraph == nil {
				page.KnowledgeGraph = &v
			}
		case "featured_snippet":
			var v FeaturedSnippet
			if json.Unmarshal(rawItem, &v) == nil && page.FeaturedSnippet == nil {
				page.FeaturedSnippet = &v
			}
		case "people_also_ask":
			var v PeopleAlsoAsk
			if json.Unmarshal(rawItem, &v) == nil && page.PeopleAlsoAsk == nil {
				page.PeopleAlsoAsk = &v
			}
		default:
			skipped++
		}
	}

	p.log.WithFields(map[string]interface{}{
		"keyword":        result.Keyword,
		"items":          len(result.Items),
		"skipped":        skipped,
		"answer_box":     page.AnswerBox != nil,
		"instant_answer": page.InstantAnswer != nil,
		"knowledge":      page.KnowledgeGraph != nil,
		"paa":            page.PeopleAlsoAsk != nil,
	}).Debug("Parsed Bing SERP page")

	return page, nil
}
