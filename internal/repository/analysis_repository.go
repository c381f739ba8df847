package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MetricsAggregation holds totals computed across all analyses.
type MetricsAggregation struct {
	TotalCount                 int64
	AverageConfidence          float64
	AverageProcessingLatencyMs float64
}

// LabelCount is the number of analyses with a label on one calendar day (UTC).
type LabelCount struct {
	Day   time.Time
	Label string
	Count int64
}

// AnalysisRepository provides persistence APIs for analyses.
type AnalysisRepository struct {
	db *gorm.DB
	retrier
}

// NewAnalysisRepository creates a new repository instance.
func NewAnalysisRepository(db *gorm.DB, logger *zap.Logger) *AnalysisRepository {
	return &AnalysisRepository{db: db, retrier: defaultRetrier(logger.Named("analysis_repository"))}
}

// Save persists an analysis.
func (r *AnalysisRepository) Save(ctx context.Context, analysis *Analysis) error {
	return r.executeWithRetry(ctx, "repository.save_analysis", analysis.RequestID, func() error {
		return translate(r.db.WithContext(ctx).Create(analysis).Error)
	})
}

// FindByRequestIDAndUser retrieves an analysis matching the request and owner.
func (r *AnalysisRepository) FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*Analysis, error) {
	var analysis Analysis
	err := r.executeWithRetry(ctx, "repository.find_analysis", requestID, func() error {
		return translate(r.db.WithContext(ctx).First(&analysis, "request_id = ? AND user_id = ?", requestID, userID).Error)
	})
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// ListByUser returns the newest analyses of a user first.
func (r *AnalysisRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*Analysis, error) {
	var analyses []*Analysis
	err := r.executeWithRetry(ctx, "repository.list_analyses", "", func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ?", userID).
			Order("created_at DESC").
			Order("id DESC").
			Limit(limit).
			Find(&analyses).Error
	})
	if err != nil {
		return nil, err
	}
	return analyses, nil
}

// FindDuplicatesByHash lists other analyses by the same user of identical content.
func (r *AnalysisRepository) FindDuplicatesByHash(ctx context.Context, userID, hash, excludeRequestID string) ([]*Analysis, error) {
	var analyses []*Analysis
	err := r.executeWithRetry(ctx, "repository.find_duplicates", excludeRequestID, func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ? AND sha256_hash = ? AND request_id <> ?", userID, hash, excludeRequestID).
			Order("created_at ASC").
			Find(&analyses).Error
	})
	if err != nil {
		return nil, err
	}
	return analyses, nil
}

// AggregateMetrics computes totals and averages over a user's analyses.
func (r *AnalysisRepository) AggregateMetrics(ctx context.Context, userID string) (*MetricsAggregation, error) {
	var row struct {
		Total         int64
		AvgConfidence *float64
		AvgLatencyMs  *float64
	}
	err := r.executeWithRetry(ctx, "repository.aggregate_metrics", "", func() error {
		return r.db.WithContext(ctx).Model(&Analysis{}).
			Select("COUNT(*) AS total, AVG(confidence) AS avg_confidence, AVG(processing_latency_ms) AS avg_latency_ms").
			Where("user_id = ?", userID).
			Scan(&row).Error
	})
	if err != nil {
		return nil, err
	}

	agg := &MetricsAggregation{TotalCount: row.Total}
	if row.AvgConfidence != nil {
		agg.AverageConfidence = *row.AvgConfidence
	}
	if row.AvgLatencyMs != nil {
		agg.AverageProcessingLatencyMs = *row.AvgLatencyMs
	}
	return agg, nil
}

// CountLabelsSince buckets a user's analyses created at or after since by UTC
// day and label. Bucketing happens in Go so the query stays portable across drivers.
func (r *AnalysisRepository) CountLabelsSince(ctx context.Context, userID string, since time.Time) ([]LabelCount, error) {
	var rows []struct {
		Label     string
		CreatedAt time.Time
	}
	err := r.executeWithRetry(ctx, "repository.count_labels", "", func() error {
		return r.db.WithContext(ctx).Model(&Analysis{}).
			Select("label, created_at").
			Where("user_id = ? AND created_at >= ?", userID, since).
			Order("created_at ASC").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	type key struct {
		day   time.Time
		label string
	}
	index := make(map[key]int)
	var counts []LabelCount
	for _, row := range rows {
		k := key{day: truncateDay(row.CreatedAt), label: row.Label}
		if i, ok := index[k]; ok {
			counts[i].Count++
			continue
		}
		index[k] = len(counts)
		counts = append(counts, LabelCount{Day: k.day, Label: k.label, Count: 1})
	}
	return counts, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
