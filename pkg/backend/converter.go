package backend

import (
	"strings"
	"time"

	"visibility-go/pkg/logger"
	"visibility-go/pkg/monitor"
)

// DataConverter converts analysis results to the backend submission format
type DataConverter struct {
	log *logger.Logger
}

// NewDataConverter creates a new data converter
func NewDataConverter() *DataConverter {
	return &DataConverter{
		log: logger.GetLogger().WithField("component", "data_converter"),
	}
}

// ConvertResults converts one run's keyword records into submission records.
// Nil and empty-query records are dropped; everything else is submitted,
// including zero-valued degraded keywords, since the backend wants to know
// a keyword returned nothing.
func (dc *DataConverter) ConvertResults(analysisID, brand, mode string, results []*monitor.KeywordResult) []VisibilityRecord {
	records := make([]VisibilityRecord, 0, len(results))

	for _, result := range results {
		if result == nil || strings.TrimSpace(result.Query) == "" {
			continue
		}
		records = append(records, dc.convertResult(analysisID, brand, mode, result))
	}

	dc.log.WithFields(map[string]interface{}{
		"analysis_id":   analysisID,
		"total_records": len(records),
	}).Info("Converted analysis results to backend format")

	return records
}

func (dc *DataConverter) convertResult(analysisID, brand, mode string, result *monitor.KeywordResult) VisibilityRecord {
	capturedAt := result.Timestamp
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	return VisibilityRecord{
		AnalysisID: analysisID,
		Brand:      brand,
		Keyword:    result.Query,
		Mode:       mode,
		Location:   result.Location,
		Device:     result.Device,
		CapturedAt: capturedAt,
		Metrics: VisibilityMetrics{
			AIOverviewPresent:   result.GoogleAIOverviewPresent,
			BrandCited:          result.GoogleBrandCited,
			CitationCount:       len(result.GoogleAICitations),
			CompetitorCitations: copyCitations(result.GoogleCompetitorCitations),
			BingAIFeatures:      copyFeatures(result.BingAIFeatures),
			BingBrandVisible:    result.BingBrandVisibility,
			FeaturedSnippet:     result.FeaturedSnippetPresent,
			KnowledgeGraph:      result.KnowledgeGraphPresent,
			PAAQuestionCount:    len(result.PeopleAlsoAskQueries) + len(result.BingPeopleAlsoAskQueries),
			VisibilityScore:     result.AIVisibilityScore,
			DominanceRank:       result.AIDominanceRank,
		},
	}
}

// copyCitations detaches the submission payload from the live result so a
// mutation on either side cannot leak into the other. Always allocated:
// the backend contract emits {} rather than null.
func copyCitations(citations map[string]int) map[string]int {
	copied := make(map[string]int, len(citations))
	for competitor, count := range citations {
		copied[competitor] = count
	}
	return copied
}

func copyFeatures(features []string) []string {
	copied := make([]string, len(features))
	copy(copied, features)
	return copied
}
