package detector

import (
	"context"
	"crypto/md5"
	"fmt"
	"sort"
	"strings"
	"time"

	"visibility-go/pkg/logger"
	"visibility-go/pkg/monitor"
	"visibility-go/pkg/storage"
)

// SnapshotHistoryManager implements HistoryManager for keyword-result
// snapshots. Each analysis run is stored whole; the latest-pointer and a
// bounded metadata index make lookups cheap.
type SnapshotHistoryManager struct {
	storage storage.Storage
	log     *logger.Logger
}

// NewSnapshotHistoryManager creates a new snapshot history manager
func NewSnapshotHistoryManager(storage storage.Storage) *SnapshotHistoryManager {
	return &SnapshotHistoryManager{
		storage: storage,
		log:     logger.GetLogger().WithField("component", "snapshot_history_manager"),
	}
}

// SaveSnapshot saves one run's keyword records for a brand
func (h *SnapshotHistoryManager) SaveSnapshot(ctx context.Context, brand string, results []*monitor.KeywordResult) error {
	timestamp := time.Now().UTC()
	checksum := h.calculateChecksum(results)

	metadata := SnapshotMetadata{
		Brand:        brand,
		Timestamp:    timestamp,
		KeywordCount: len(results),
		Checksum:     checksum,
	}

	snapshotKey := fmt.Sprintf("snapshot:%s:%d", brand, timestamp.Unix())
	if err := h.storage.Save(ctx, snapshotKey, results); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	metadataKey := fmt.Sprintf("snapshot_meta:%s:%d", brand, timestamp.Unix())
	if err := h.storage.Save(ctx, metadataKey, metadata); err != nil {
		return fmt.Errorf("failed to save snapshot metadata: %w", err)
	}

	latestKey := fmt.Sprintf("latest_snapshot:%s", brand)
	if err := h.storage.Save(ctx, latestKey, snapshotKey); err != nil {
		return fmt.Errorf("failed to update latest snapshot reference: %w", err)
	}

	if err := h.updateSnapshotIndex(ctx, brand, metadata); err != nil {
		h.log.WithError(err).WithField("brand", brand).Warn("Failed to update snapshot index")
	}

	h.log.WithFields(map[string]interface{}{
		"brand":         brand,
		"keyword_count": len(results),
		"checksum":      checksum,
	}).Info("Snapshot saved successfully")

	return nil
}

// GetLatestSnapshot retrieves the most recent snapshot for a brand
func (h *SnapshotHistoryManager) GetLatestSnapshot(ctx context.Context, brand string) ([]*monitor.KeywordResult, error) {
	latestKey := fmt.Sprintf("latest_snapshot:%s", brand)

	var snapshotKey string
	if err := h.storage.Load(ctx, latestKey, &snapshotKey); err != nil {
		return nil, fmt.Errorf("no latest snapshot found for brand %s: %w", brand, err)
	}

	var results []*monitor.KeywordResult
	if err := h.storage.Load(ctx, snapshotKey, &results); err != nil {
		return nil, fmt.Errorf("failed to load snapshot data: %w", err)
	}

	h.log.WithFields(map[string]interface{}{
		"brand":         brand,
		"keyword_count": len(results),
	}).Debug("Latest snapshot retrieved")

	return results, nil
}

// GetSnapshotHistory retrieves snapshot history for a brand, newest first
func (h *SnapshotHistoryManager) GetSnapshotHistory(ctx context.Context, brand string, limit int) ([]SnapshotMetadata, error) {
	indexKey := fmt.Sprintf("snapshot_index:%s", brand)

	var history []SnapshotMetadata
	if err := h.storage.Load(ctx, indexKey, &history); err != nil {
		// No snapshots yet is not an error.
		return []SnapshotMetadata{}, nil
	}

	sort.Slice(history, func(i, j int) bool {
		return history[i].Timestamp.After(history[j].Timestamp)
	})

	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

// GetSnapshotByTime retrieves the snapshot closest to the specified time
func (h *SnapshotHistoryManager) GetSnapshotByTime(ctx context.Context, brand string, targetTime time.Time) ([]*monitor.KeywordResult, error) {
	history, err := h.GetSnapshotHistory(ctx, brand, 0)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("no snapshots found for brand %s", brand)
	}

	var closest SnapshotMetadata
	minDiff := time.Duration(1<<63 - 1)
	for _, snapshot := range history {
		diff := targetTime.Sub(snapshot.Timestamp)
		if diff < 0 {
			diff = -diff
		}
		if diff < minDiff {
			minDiff = diff
			closest = snapshot
		}
	}

	snapshotKey := fmt.Sprintf("snapshot:%s:%d", brand, closest.Timestamp.Unix())
	var results []*monitor.KeywordResult
	if err := h.storage.Load(ctx, snapshotKey, &results); err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return results, nil
}

// updateSnapshotIndex appends metadata to the brand's bounded index
func (h *SnapshotHistoryManager) updateSnapshotIndex(ctx context.Context, brand string, metadata SnapshotMetadata) error {
	indexKey := fmt.Sprintf("snapshot_index:%s", brand)

	var history []SnapshotMetadata
	_ = h.storage.Load(ctx, indexKey, &history)

	history = append(history, metadata)

	const maxHistorySize = 100
	if len(history) > maxHistorySize {
		sort.Slice(history, func(i, j int) bool {
			return history[i].Timestamp.After(history[j].Timestamp)
		})
		history = history[:maxHistorySize]
	}

	return h.storage.Save(ctx, indexKey, history)
}

// calculateChecksum fingerprints a result set so identical runs are easy to
// spot in the index. MD5 is fine here, nothing security-relevant.
func (h *SnapshotHistoryManager) calculateChecksum(results []*monitor.KeywordResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s|%.1f|%d|%t|%t",
			strings.ToLower(strings.TrimSpace(r.Query)),
			r.AIVisibilityScore,
			r.AIDominanceRank,
			r.GoogleAIOverviewPresent,
			r.GoogleBrandCited,
		))
	}
	sort.Strings(lines)

	hash := md5.Sum([]byte(strings.Join(lines, "\n")))
	return fmt.Sprintf("%x", hash)
}
