package wikiai

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/wikiai/kbclient/pkg/client"
	"github.com/wikiai/kbclient/pkg/types"
)

// ReportsService reads generated reports and submits manual issue reports.
type ReportsService struct {
	s *Service
}

// Report is one generated or submitted report. The backend's report shape
// varies by generator, so the body is kept raw.
type Report = json.RawMessage

// GetAuto returns automatically generated reports. The endpoint responds
// with a bare {reports: [...]} body.
func (r *ReportsService) GetAuto(ctx context.Context, token string) ([]Report, error) {
	return r.get(ctx, token, "/reports/get/auto")
}

// GetManual returns manually submitted reports.
func (r *ReportsService) GetManual(ctx context.Context, token string) ([]Report, error) {
	return r.get(ctx, token, "/reports/get/manual")
}

func (r *ReportsService) get(ctx context.Context, token, url string) ([]Report, error) {
	env, err := r.s.http.Do(ctx, client.Request{URL: url, Token: token})
	if err != nil {
		return nil, err
	}
	if err := env.Err(); err != nil {
		return nil, err
	}
	result, err := types.DecodeBody[struct {
		Reports []Report `json:"reports"`
	}](env)
	if err != nil {
		return nil, err
	}
	return result.Reports, nil
}

// SubmitManual files a manual issue report.
func (r *ReportsService) SubmitManual(ctx context.Context, token, issue string) (*types.Envelope, error) {
	return doEnvelope(ctx, r.s, client.Request{
		URL:    "/reports/submit/manual",
		Method: http.MethodPost,
		Token:  token,
		Body:   map[string]string{"issue": issue},
	})
}
