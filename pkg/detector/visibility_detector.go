package detector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"visibility-go/pkg/logger"
	"visibility-go/pkg/monitor"
	"visibility-go/pkg/storage"
)

// Score deltas below this are float noise, not movement. Merged scores
// land on one-decimal steps, so anything real clears 0.05.
const scoreEpsilon = 0.05

// Change history is capped per brand; oldest sets fall off.
const maxChangeHistory = 100

// VisibilityChangeDetector diffs two analysis runs keyword by keyword and
// classifies what moved: AI Overview presence, brand citations, Bing
// visibility, merged score, dominance rank.
type VisibilityChangeDetector struct {
	storage storage.Storage
	log     *logger.Logger
}

// NewVisibilityChangeDetector creates a new visibility change detector
func NewVisibilityChangeDetector(storage storage.Storage) *VisibilityChangeDetector {
	return &VisibilityChangeDetector{
		storage: storage,
		log:     logger.GetLogger().WithField("component", "visibility_change_detector"),
	}
}

// DetectChanges compares two runs' keyword records and returns detected
// changes. Keywords are matched by query text; records present in only one
// run become roster changes (keyword_added / keyword_removed).
func (d *VisibilityChangeDetector) DetectChanges(ctx context.Context, brand string, previous, current []*monitor.KeywordResult) (*ChangeSet, error) {
	d.log.WithFields(map[string]interface{}{
		"brand":          brand,
		"previous_count": len(previous),
		"current_count":  len(current),
	}).Debug("Starting change detection")

	oldByKeyword := indexByKeyword(previous)
	newByKeyword := indexByKeyword(current)

	timestamp := time.Now().UTC()
	var changes []VisibilityChange

	// Sorted union keeps change order stable across runs.
	for _, keyword := range keywordUnion(oldByKeyword, newByKeyword) {
		oldRecord, inOld := oldByKeyword[keyword]
		newRecord, inNew := newByKeyword[keyword]

		switch {
		case !inOld:
			changes = append(changes, VisibilityChange{
				Keyword:   keyword,
				Type:      ChangeTypeKeywordAdded,
				Direction: DirectionNeutral,
				Timestamp: timestamp,
				Metadata:  map[string]interface{}{"score": newRecord.AIVisibilityScore},
			})
		case !inNew:
			changes = append(changes, VisibilityChange{
				Keyword:   keyword,
				Type:      ChangeTypeKeywordRemoved,
				Direction: DirectionNeutral,
				Timestamp: timestamp,
				Metadata:  map[string]interface{}{"score": oldRecord.AIVisibilityScore},
			})
		default:
			changes = append(changes, d.compareRecords(keyword, oldRecord, newRecord, timestamp)...)
		}
	}

	changeSet := &ChangeSet{
		Brand:     brand,
		Changes:   changes,
		Timestamp: timestamp,
	}
	d.categorizeChanges(changeSet)

	d.log.WithFields(map[string]interface{}{
		"brand":         brand,
		"total_changes": len(changes),
		"improved":      changeSet.TotalImproved,
		"degraded":      changeSet.TotalDegraded,
		"neutral":       changeSet.TotalNeutral,
	}).Info("Change detection completed")

	return changeSet, nil
}

// SaveChangeSet appends a change set to the brand's change history. Empty
// change sets are skipped so the history only holds runs where something
// actually moved.
func (d *VisibilityChangeDetector) SaveChangeSet(ctx context.Context, changeSet *ChangeSet) error {
	if changeSet == nil || len(changeSet.Changes) == 0 {
		d.log.Debug("No changes to record, skipping history write")
		return nil
	}

	key := changeHistoryKey(changeSet.Brand)

	var history []*ChangeSet
	_ = d.storage.Load(ctx, key, &history)

	history = append(history, changeSet)
	if len(history) > maxChangeHistory {
		sort.Slice(history, func(i, j int) bool {
			return history[i].Timestamp.After(history[j].Timestamp)
		})
		history = history[:maxChangeHistory]
	}

	if err := d.storage.Save(ctx, key, history); err != nil {
		return fmt.Errorf("failed to save change history: %w", err)
	}
	return nil
}

// GetChangeHistory retrieves change history for a brand, newest first
func (d *VisibilityChangeDetector) GetChangeHistory(ctx context.Context, brand string, limit int) ([]*ChangeSet, error) {
	var history []*ChangeSet
	if err := d.storage.Load(ctx, changeHistoryKey(brand), &history); err != nil {
		// No history yet is not an error.
		return []*ChangeSet{}, nil
	}

	sort.Slice(history, func(i, j int) bool {
		return history[i].Timestamp.After(history[j].Timestamp)
	})

	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

// compareRecords classifies every signal that moved between two records of
// the same keyword.
func (d *VisibilityChangeDetector) compareRecords(keyword string, oldRecord, newRecord *monitor.KeywordResult, timestamp time.Time) []VisibilityChange {
	var changes []VisibilityChange

	add := func(t ChangeType, dir Direction, meta map[string]interface{}) {
		changes = append(changes, VisibilityChange{
			Keyword:   keyword,
			Type:      t,
			Direction: dir,
			Timestamp: timestamp,
			Metadata:  meta,
		})
	}

	if oldRecord.GoogleAIOverviewPresent != newRecord.GoogleAIOverviewPresent {
		if newRecord.GoogleAIOverviewPresent {
			add(ChangeTypeOverviewGained, DirectionImproved, nil)
		} else {
			add(ChangeTypeOverviewLost, DirectionDegraded, nil)
		}
	}

	if oldRecord.GoogleBrandCited != newRecord.GoogleBrandCited {
		if newRecord.GoogleBrandCited {
			add(ChangeTypeCitationGained, DirectionImproved, map[string]interface{}{
				"citations": newRecord.GoogleAICitations,
			})
		} else {
			add(ChangeTypeCitationLost, DirectionDegraded, map[string]interface{}{
				"previous_citations": oldRecord.GoogleAICitations,
			})
		}
	}

	if oldRecord.BingBrandVisibility != newRecord.BingBrandVisibility {
		if newRecord.BingBrandVisibility {
			add(ChangeTypeBingVisibilityGained, DirectionImproved, map[string]interface{}{
				"features": newRecord.BingAIFeatures,
			})
		} else {
			add(ChangeTypeBingVisibilityLost, DirectionDegraded, map[string]interface{}{
				"previous_features": oldRecord.BingAIFeatures,
			})
		}
	}

	if delta := newRecord.AIVisibilityScore - oldRecord.AIVisibilityScore; math.Abs(delta) >= scoreEpsilon {
		direction := DirectionImproved
		if delta < 0 {
			direction = DirectionDegraded
		}
		add(ChangeTypeScoreMoved, direction, map[string]interface{}{
			"old":   oldRecord.AIVisibilityScore,
			"new":   newRecord.AIVisibilityScore,
			"delta": math.Round(delta*10) / 10,
		})
	}

	if oldRecord.AIDominanceRank != newRecord.AIDominanceRank {
		add(ChangeTypeRankMoved, rankDirection(oldRecord.AIDominanceRank, newRecord.AIDominanceRank), map[string]interface{}{
			"old": oldRecord.AIDominanceRank,
			"new": newRecord.AIDominanceRank,
		})
	}

	return changes
}

// rankDirection maps a dominance-rank move onto a direction. Rank 0 means
// the brand was absent from the ranking; lower non-zero ranks are better.
func rankDirection(oldRank, newRank int) Direction {
	switch {
	case oldRank == 0 && newRank > 0:
		return DirectionImproved
	case oldRank > 0 && newRank == 0:
		return DirectionDegraded
	case newRank < oldRank:
		return DirectionImproved
	default:
		return DirectionDegraded
	}
}

// categorizeChanges counts changes by direction
func (d *VisibilityChangeDetector) categorizeChanges(changeSet *ChangeSet) {
	for _, change := range changeSet.Changes {
		switch change.Direction {
		case DirectionImproved:
			changeSet.TotalImproved++
		case DirectionDegraded:
			changeSet.TotalDegraded++
		case DirectionNeutral:
			changeSet.TotalNeutral++
		}
	}
}

func indexByKeyword(results []*monitor.KeywordResult) map[string]*monitor.KeywordResult {
	indexed := make(map[string]*monitor.KeywordResult, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		keyword := strings.TrimSpace(r.Query)
		if keyword == "" {
			continue
		}
		indexed[keyword] = r
	}
	return indexed
}

func keywordUnion(a, b map[string]*monitor.KeywordResult) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	keywords := make([]string, 0, len(seen))
	for k := range seen {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)
	return keywords
}

func changeHistoryKey(brand string) string {
	return fmt.Sprintf("changes:%s", brand)
}
