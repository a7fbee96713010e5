package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"FinFuse/internal/domain/models"
	"FinFuse/internal/service/ratelimit"
	xhttp "FinFuse/pkg/http"
	"FinFuse/pkg/logger"
)

// HTTP is a generic intel endpoint: GET {base_url}?symbols=A,B returning
// {"data":[{"subject","positive","value"}]}. Calls are rate limited under
// the provider's own name.
type HTTP struct {
	cfg      models.ProviderConfig
	client   *xhttp.Client
	limiter  *ratelimit.Manager
	maxWait  time.Duration
	cooldown time.Duration
	l        *logger.Logger
}

// HTTPOption configures HTTP.
type HTTPOption func(*HTTP)

// WithMaxWait bounds how long Collect waits for a rate-limit permit.
func WithMaxWait(d time.Duration) HTTPOption { return func(s *HTTP) { s.maxWait = d } }

// WithUpstreamCooldown sets how long the provider is blocked after it answers 429.
func WithUpstreamCooldown(d time.Duration) HTTPOption {
	return func(s *HTTP) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

func WithSourceLogger(l *logger.Logger) HTTPOption { return func(s *HTTP) { s.l = l } }

// NewHTTP creates a source for an intel-capable provider.
func NewHTTP(cfg models.ProviderConfig, client *xhttp.Client, limiter *ratelimit.Manager, opts ...HTTPOption) *HTTP {
	s := &HTTP{cfg: cfg, client: client, limiter: limiter, cooldown: time.Minute, l: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.l = s.l.Component("source").With(logger.String("provider", cfg.Name))
	return s
}

func (s *HTTP) Name() string  { return s.cfg.Name }
func (s *HTTP) Priority() int { return s.cfg.Priority }

type httpIntelResponse struct {
	Data []struct {
		Subject  string  `json:"subject"`
		Positive bool    `json:"positive"`
		Value    float64 `json:"value"`
	} `json:"data"`
}

func (s *HTTP) Collect(ctx context.Context, subjects []string) ([]models.Indication, error) {
	if !s.limiter.AcquireWithWait(ctx, s.cfg.Name, 1, s.maxWait) {
		return nil, fmt.Errorf("%s: rate limited", s.cfg.Name)
	}

	headers := map[string]string{}
	if s.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + s.cfg.APIKey
	}
	var resp httpIntelResponse
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         s.cfg.BaseURL,
		Headers:     headers,
		QueryParams: map[string][]string{"symbols": {strings.Join(subjects, ",")}},
	}, &resp)
	if err != nil {
		if xhttp.StatusCode(err) == http.StatusTooManyRequests {
			if berr := s.limiter.Block(s.cfg.Name, s.cooldown); berr != nil {
				s.l.Error("block provider", logger.Error(berr))
			} else {
				s.l.Warn("upstream rate limited", logger.Duration("cooldown", s.cooldown))
			}
		}
		return nil, fmt.Errorf("%s: %w", s.cfg.Name, err)
	}

	wanted := make(map[string]struct{}, len(subjects))
	for _, subject := range subjects {
		wanted[subject] = struct{}{}
	}
	out := make([]models.Indication, 0, len(resp.Data))
	for _, d := range resp.Data {
		subject := strings.ToUpper(strings.TrimSpace(d.Subject))
		if _, ok := wanted[subject]; !ok {
			continue
		}
		out = append(out, models.Indication{Subject: subject, Positive: d.Positive, Value: d.Value})
	}
	return out, nil
}
