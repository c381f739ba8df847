package usecase

import (
	"context"
	"time"

	"github.com/Muthahireen/clairvoyant/internal/inference"
)

const (
	defaultInsightDays = 20
	maxInsightDays     = 365
)

// MetricsSummary represents aggregated analysis insights.
type MetricsSummary struct {
	TotalRequests              int64            `json:"total_requests"`
	AverageConfidence          float64          `json:"average_confidence"`
	AverageProcessingLatencyMs float64          `json:"average_processing_latency_ms"`
	LabelTotals                map[string]int64 `json:"label_totals"`
}

// InsightPoint is one day of the statistics chart.
type InsightPoint struct {
	Day    string           `json:"day"`
	Counts map[string]int64 `json:"counts"`
}

// Insights feeds the statistics chart: one point per day, one column per label.
type Insights struct {
	Columns []string        `json:"columns"`
	Series  []InsightPoint  `json:"series"`
	Summary *MetricsSummary `json:"summary"`
}

// GetInsights aggregates the caller's analyses over the trailing number of
// days, today included. Labels other than the three chart columns are counted
// as Inconclusive.
func (uc *AnalysisUseCase) GetInsights(ctx context.Context, userID string, days int) (*Insights, error) {
	if days <= 0 {
		days = defaultInsightDays
	}
	if days > maxInsightDays {
		days = maxInsightDays
	}

	today := truncateDay(uc.now())
	since := today.AddDate(0, 0, -(days - 1))

	aggregation, err := uc.repo.AggregateMetrics(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := uc.repo.CountLabelsSince(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	series := make([]InsightPoint, days)
	byDay := make(map[string]int, days)
	for i := range series {
		day := since.AddDate(0, 0, i).Format(time.DateOnly)
		series[i] = InsightPoint{Day: day, Counts: emptyLabelCounts()}
		byDay[day] = i
	}

	totals := emptyLabelCounts()
	for _, c := range counts {
		idx, ok := byDay[truncateDay(c.Day).Format(time.DateOnly)]
		if !ok {
			continue
		}
		label := chartLabel(c.Label)
		series[idx].Counts[label] += c.Count
		totals[label] += c.Count
	}

	return &Insights{
		Columns: append([]string(nil), inference.Labels...),
		Series:  series,
		Summary: &MetricsSummary{
			TotalRequests:              aggregation.TotalCount,
			AverageConfidence:          aggregation.AverageConfidence,
			AverageProcessingLatencyMs: aggregation.AverageProcessingLatencyMs,
			LabelTotals:                totals,
		},
	}, nil
}

func emptyLabelCounts() map[string]int64 {
	m := make(map[string]int64, len(inference.Labels))
	for _, label := range inference.Labels {
		m[label] = 0
	}
	return m
}

func chartLabel(label string) string {
	switch label {
	case inference.LabelMalignant, inference.LabelBenign:
		return label
	default:
		return inference.LabelInconclusive
	}
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
