package detector

import (
	"context"
	"time"

	"visibility-go/pkg/monitor"
)

// ChangeType represents the type of visibility change detected between runs
type ChangeType string

const (
	ChangeTypeKeywordAdded   ChangeType = "keyword_added"
	ChangeTypeKeywordRemoved ChangeType = "keyword_removed"

	ChangeTypeOverviewGained ChangeType = "ai_overview_gained"
	ChangeTypeOverviewLost   ChangeType = "ai_overview_lost"

	ChangeTypeCitationGained ChangeType = "brand_citation_gained"
	ChangeTypeCitationLost   ChangeType = "brand_citation_lost"

	ChangeTypeBingVisibilityGained ChangeType = "bing_visibility_gained"
	ChangeTypeBingVisibilityLost   ChangeType = "bing_visibility_lost"

	ChangeTypeScoreMoved ChangeType = "score_moved"
	ChangeTypeRankMoved  ChangeType = "rank_moved"
)

// Direction classifies a change for reporting: did the brand's position
// improve, degrade, or merely shift roster (keyword added/removed).
type Direction string

const (
	DirectionImproved Direction = "improved"
	DirectionDegraded Direction = "degraded"
	DirectionNeutral  Direction = "neutral"
)

// VisibilityChange represents one detected change for a keyword
type VisibilityChange struct {
	Keyword   string                 `json:"keyword"`
	Type      ChangeType             `json:"type"`
	Direction Direction              `json:"direction"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ChangeSet represents all changes for a brand between two analysis runs
type ChangeSet struct {
	Brand         string             `json:"brand"`
	Changes       []VisibilityChange `json:"changes"`
	Timestamp     time.Time          `json:"timestamp"`
	TotalImproved int                `json:"total_improved"`
	TotalDegraded int                `json:"total_degraded"`
	TotalNeutral  int                `json:"total_neutral"`
}

// ChangeDetector interface for visibility change detection
type ChangeDetector interface {
	// DetectChanges compares two runs' keyword records and returns detected changes
	DetectChanges(ctx context.Context, brand string, previous, current []*monitor.KeywordResult) (*ChangeSet, error)

	// SaveChangeSet appends a change set to the brand's change history
	SaveChangeSet(ctx context.Context, changeSet *ChangeSet) error

	// GetChangeHistory retrieves change history for a brand, newest first
	GetChangeHistory(ctx context.Context, brand string, limit int) ([]*ChangeSet, error)
}

// HistoryManager interface for managing keyword-result snapshots
type HistoryManager interface {
	// SaveSnapshot saves one run's keyword records for a brand
	SaveSnapshot(ctx context.Context, brand string, results []*monitor.KeywordResult) error

	// GetLatestSnapshot retrieves the most recent snapshot for a brand
	GetLatestSnapshot(ctx context.Context, brand string) ([]*monitor.KeywordResult, error)

	// GetSnapshotHistory retrieves snapshot history, newest first
	GetSnapshotHistory(ctx context.Context, brand string, limit int) ([]SnapshotMetadata, error)
}

// SnapshotMetadata contains metadata about a saved snapshot
type SnapshotMetadata struct {
	Brand        string    `json:"brand"`
	Timestamp    time.Time `json:"timestamp"`
	KeywordCount int       `json:"keyword_count"`
	Checksum     string    `json:"checksum"`
}
