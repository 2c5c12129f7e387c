package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"linkboard/internal/config"
	"linkboard/internal/domain"
)

// Request describes what a source is asked to plan for.
type Request struct {
	Domain     domain.Domain
	PeriodDays int
}

// Source computes plan content for a domain.
type Source interface {
	Plan(ctx context.Context, req Request) (domain.PlanContent, error)
}

// NewSource builds the source selected in config.
func NewSource(cfg config.Insights) (Source, error) {
	switch cfg.Source {
	case "", "rules":
		return RuleSource{Rules: cfg.Rules}, nil
	case "http":
		return NewHTTPSource(cfg.Endpoint, cfg.Secret, time.Duration(cfg.TimeoutSeconds)*time.Second), nil
	}
	return nil, fmt.Errorf("unknown insights source %q", cfg.Source)
}

// RuleSource turns the configured rule catalog into plan items. Rules that
// need a longer horizon than the requested period are left out.
type RuleSource struct {
	Rules []config.InsightRule
}

func (s RuleSource) Plan(ctx context.Context, req Request) (domain.PlanContent, error) {
	if err := ctx.Err(); err != nil {
		return domain.PlanContent{}, err
	}
	content := domain.PlanContent{Version: 1, Items: []domain.PlanItem{}}
	for _, r := range s.Rules {
		if r.MinPeriodDays > req.PeriodDays {
			continue
		}
		impact := r.ImpactScore
		content.Items = append(content.Items, domain.PlanItem{
			Key:          r.Key,
			Title:        r.Title,
			Description:  r.Description,
			Priority:     r.Priority,
			ImpactScore:  &impact,
			Effort:       r.Effort,
			PlannerGroup: r.PlannerGroup,
		})
	}
	content.Summary = fmt.Sprintf("%d recommendations for %s over the next %d days.", len(content.Items), req.Domain.Host, req.PeriodDays)
	return content, nil
}

// HTTPSource asks an external insights service for plan content.
type HTTPSource struct {
	endpoint   string
	secret     string
	httpClient *http.Client
}

func NewHTTPSource(endpoint, secret string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSource{
		endpoint:   strings.TrimRight(endpoint, "/"),
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type httpPlanRequest struct {
	DomainID   string `json:"domain_id"`
	Host       string `json:"host"`
	PeriodDays int    `json:"period_days"`
}

func (s *HTTPSource) Plan(ctx context.Context, req Request) (domain.PlanContent, error) {
	var content domain.PlanContent
	body, err := json.Marshal(httpPlanRequest{DomainID: req.Domain.ID, Host: req.Domain.Host, PeriodDays: req.PeriodDays})
	if err != nil {
		return content, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/plans", bytes.NewReader(body))
	if err != nil {
		return content, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.secret != "" {
		httpReq.Header.Set("X-Linkboard-Secret", s.secret)
	}
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return content, fmt.Errorf("insights request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return content, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return content, fmt.Errorf("insights service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := ValidateRaw(raw); err != nil {
		return content, err
	}
	if err := json.Unmarshal(raw, &content); err != nil {
		return content, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	return content, nil
}
