package wikiai

import (
	"context"
	"strconv"

	"github.com/wikiai/kbclient/pkg/client"
)

// MetricsService reads usage metrics.
type MetricsService struct {
	s *Service
}

// UsageSummary aggregates query volume and latency.
type UsageSummary struct {
	TotalQueries      int     `json:"total_queries"`
	SuccessfulQueries int     `json:"successful_queries"`
	FailedQueries     int     `json:"failed_queries"`
	AvgResponseTime   float64 `json:"avg_response_time"`
}

// QueryRecord is one logged query.
type QueryRecord struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Timestamp string `json:"timestamp"`
}

// Summary returns aggregate usage metrics.
func (m *MetricsService) Summary(ctx context.Context, token string) (*UsageSummary, error) {
	return do[UsageSummary](ctx, m.s, client.Request{URL: "/metrics/summary", Token: token})
}

// Queries returns recent query records, newest first. limit 0 uses the
// backend default.
func (m *MetricsService) Queries(ctx context.Context, token string, limit int) ([]QueryRecord, error) {
	req := client.Request{URL: "/metrics/queries", Token: token}
	if limit > 0 {
		req.Params = map[string]string{"limit": strconv.Itoa(limit)}
	}
	result, err := do[struct {
		Queries []QueryRecord `json:"queries"`
	}](ctx, m.s, req)
	if err != nil {
		return nil, err
	}
	return result.Queries, nil
}
