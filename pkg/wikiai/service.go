// Package wikiai provides typed endpoint services over the resilient HTTP
// client and the realtime query protocol: authentication and organizations,
// file management, knowledge-base queries, account administration, API keys,
// usage metrics, reports, catalogs, plugin integration, and CMS content.
package wikiai

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/wikiai/kbclient/internal/logging"
	"github.com/wikiai/kbclient/pkg/client"
	"github.com/wikiai/kbclient/pkg/config"
	"github.com/wikiai/kbclient/pkg/realtime"
	"github.com/wikiai/kbclient/pkg/types"
)

// Service is the SDK entry point. Construct one per application, share it
// freely, and Close it at shutdown.
type Service struct {
	http      *client.Client
	realtime  *realtime.Client
	cmsPrefix string
	log       zerolog.Logger
}

// New builds a Service from configuration.
func New(cfg *config.Config) *Service {
	level := cfg.Logging.Level
	if cfg.Debug {
		level = "debug"
	}
	log := logging.New(level, cfg.Logging.Format)

	httpClient := client.New(client.Config{
		BaseURL: cfg.APIURL,
		Timeout: cfg.Timeout,
		Retry: client.RetryPolicy{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Multiplier:   cfg.Retry.Multiplier,
		},
		CacheTTL:       cfg.Cache.TTL,
		SweepInterval:  cfg.Cache.SweepInterval,
		RateLimitRPM:   cfg.RateLimit.RPM,
		RateLimitBurst: cfg.RateLimit.Burst,
		Logger:         log,
	})

	rt := realtime.New(realtime.Config{
		WSURL:            cfg.WebSocketURL(),
		HandshakeTimeout: cfg.ConnectTimeout,
		Logger:           log,
	})

	cms := cfg.CMSPrefix
	if cms == "" {
		cms = "/api/cms"
	}
	return &Service{http: httpClient, realtime: rt, cmsPrefix: cms, log: log}
}

// NewWithClients builds a Service around preconstructed clients, mainly for
// tests.
func NewWithClients(httpClient *client.Client, rt *realtime.Client, log zerolog.Logger) *Service {
	return &Service{http: httpClient, realtime: rt, cmsPrefix: "/api/cms", log: log}
}

// Client exposes the underlying HTTP client for envelope-level access.
func (s *Service) Client() *client.Client { return s.http }

// Close releases the service's resources.
func (s *Service) Close() { s.http.Close() }

// Endpoint groups.

func (s *Service) Auth() *AuthService         { return &AuthService{s: s} }
func (s *Service) Files() *FilesService       { return &FilesService{s: s} }
func (s *Service) Query() *QueryService       { return &QueryService{s: s} }
func (s *Service) Admin() *AdminService       { return &AdminService{s: s} }
func (s *Service) APIKeys() *APIKeysService   { return &APIKeysService{s: s} }
func (s *Service) Metrics() *MetricsService   { return &MetricsService{s: s} }
func (s *Service) Reports() *ReportsService   { return &ReportsService{s: s} }
func (s *Service) Catalogs() *CatalogsService { return &CatalogsService{s: s} }
func (s *Service) Plugins() *PluginsService   { return &PluginsService{s: s} }
func (s *Service) CMS() *CMSService           { return &CMSService{s: s} }
func (s *Service) OpenCart() *OpenCartService { return &OpenCartService{s: s} }

// do runs a request and decodes the envelope's response payload into T.
func do[T any](ctx context.Context, s *Service, req client.Request) (*T, error) {
	env, err := s.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return types.Decode[T](env)
}

// doEnvelope runs a request for callers that only need the envelope outcome.
func doEnvelope(ctx context.Context, s *Service, req client.Request) (*types.Envelope, error) {
	return s.http.Do(ctx, req)
}
