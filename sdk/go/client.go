package linkboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Linkboard planner API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

type Domain struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Host      string `json:"host"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
}

type Task struct {
	ID           string  `json:"id"`
	DomainID     string  `json:"domain_id"`
	PlanID       *string `json:"plan_id,omitempty"`
	Source       string  `json:"source"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	Priority     string  `json:"priority"`
	ImpactScore  int     `json:"impact_score"`
	Effort       string  `json:"effort"`
	Status       string  `json:"status"`
	DueAt        *string `json:"due_at,omitempty"`
	PlannerGroup *string `json:"planner_group,omitempty"`
	CreatedBy    string  `json:"created_by"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

type PlanItem struct {
	Key          string `json:"key,omitempty"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Priority     string `json:"priority"`
	ImpactScore  *int   `json:"impact_score"`
	Effort       string `json:"effort"`
	PlannerGroup string `json:"planner_group"`
	DueInDays    *int   `json:"due_in_days,omitempty"`
}

type PlanContent struct {
	Version int        `json:"version"`
	Summary string     `json:"summary,omitempty"`
	Items   []PlanItem `json:"items"`
}

type Plan struct {
	ID          string       `json:"id"`
	DomainID    string       `json:"domain_id"`
	RequestedBy string       `json:"requested_by"`
	PeriodDays  int          `json:"period_days"`
	Status      string       `json:"status"`
	AppliedAt   *string      `json:"applied_at,omitempty"`
	ArchivedAt  *string      `json:"archived_at,omitempty"`
	CreatedAt   string       `json:"created_at"`
	Content     *PlanContent `json:"content,omitempty"`
}

type Board struct {
	Domain Domain `json:"domain"`
	Plan   *Plan  `json:"plan"`
	Tasks  struct {
		Today []Task `json:"today"`
		Week  []Task `json:"week"`
		Month []Task `json:"month"`
	} `json:"tasks"`
}

type GenerateAck struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	TaskID     string `json:"task_id"`
	Queue      string `json:"queue"`
	DomainID   string `json:"domain_id"`
	PeriodDays int    `json:"period_days"`
}

type ApplyResult struct {
	Message string `json:"message"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Plan    Plan   `json:"plan"`
}

type Member struct {
	DomainID  string `json:"domain_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	DomainID   string         `json:"domain_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type APIKey struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
	Key       string `json:"key,omitempty"`
}

// ManualTask is the input of CreateTask.
type ManualTask struct {
	Title       string `json:"title"`
	Priority    string `json:"priority"`
	Description string `json:"description,omitempty"`
	DueAt       string `json:"due_at,omitempty"`
}

// APIError wraps non-2xx responses. Code and Message come from the error
// envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

func (c *Client) DevLogin(ctx context.Context, userID string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "v1/auth/dev/login", map[string]any{"user_id": userID}, &resp)
	return resp.Token, err
}

func (c *Client) CreateDomain(ctx context.Context, host, name string) (Domain, error) {
	var resp Domain
	err := c.do(ctx, http.MethodPost, "v1/domains", map[string]any{"host": host, "name": name}, &resp)
	return resp, err
}

func (c *Client) ListDomains(ctx context.Context) ([]Domain, error) {
	var resp []Domain
	err := c.do(ctx, http.MethodGet, "v1/domains", nil, &resp)
	return resp, err
}

// Board returns the planner board of a domain.
func (c *Client) Board(ctx context.Context, domainID string) (Board, error) {
	var resp Board
	err := c.do(ctx, http.MethodGet, domainPath(domainID, "planner"), nil, &resp)
	return resp, err
}

// GeneratePlan queues plan generation. A zero period uses the server default.
func (c *Client) GeneratePlan(ctx context.Context, domainID string, periodDays int) (GenerateAck, error) {
	var body any
	if periodDays != 0 {
		body = map[string]any{"period_days": periodDays}
	}
	var resp GenerateAck
	err := c.do(ctx, http.MethodPost, domainPath(domainID, "planner/generate"), body, &resp)
	return resp, err
}

// ApplyPlan applies the latest draft plan of a domain.
func (c *Client) ApplyPlan(ctx context.Context, domainID string) (ApplyResult, error) {
	var resp ApplyResult
	err := c.do(ctx, http.MethodPost, domainPath(domainID, "planner/apply"), nil, &resp)
	return resp, err
}

func (c *Client) ListPlans(ctx context.Context, domainID string, limit int) ([]Plan, error) {
	endpoint := domainPath(domainID, "plans")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Plan
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) ArchivePlan(ctx context.Context, domainID, planID string) (Plan, error) {
	var resp Plan
	err := c.do(ctx, http.MethodPost, domainPath(domainID, "plans/"+url.PathEscape(planID)+"/archive"), nil, &resp)
	return resp, err
}

// ListTasks lists tasks, optionally filtered by status.
func (c *Client) ListTasks(ctx context.Context, domainID, status string) ([]Task, error) {
	endpoint := domainPath(domainID, "tasks")
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) CreateTask(ctx context.Context, domainID string, in ManualTask) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, domainPath(domainID, "tasks"), in, &resp)
	return resp, err
}

func (c *Client) UpdateTaskStatus(ctx context.Context, domainID, taskID, status string) (Task, error) {
	var resp Task
	endpoint := domainPath(domainID, "tasks/"+url.PathEscape(taskID)+"/status")
	err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

func (c *Client) GrantMember(ctx context.Context, domainID, userID, role string) (Member, error) {
	var resp Member
	err := c.do(ctx, http.MethodPut, domainPath(domainID, "members/"+url.PathEscape(userID)), map[string]any{"role": role}, &resp)
	return resp, err
}

func (c *Client) RevokeMember(ctx context.Context, domainID, userID string) error {
	return c.do(ctx, http.MethodDelete, domainPath(domainID, "members/"+url.PathEscape(userID)), nil, nil)
}

// Events returns recent domain events, newest first.
func (c *Client) Events(ctx context.Context, domainID, evtType string, limit int) ([]Event, error) {
	q := url.Values{}
	if evtType != "" {
		q.Set("type", evtType)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	endpoint := domainPath(domainID, "events")
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// CreateAPIKey returns the new key. Key holds the plaintext secret.
func (c *Client) CreateAPIKey(ctx context.Context, name string) (APIKey, error) {
	var resp APIKey
	err := c.do(ctx, http.MethodPost, "v1/me/api-keys", map[string]any{"name": name}, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return decodeAPIError(resp.StatusCode, b)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var env struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Details = env.Error.Details
	}
	return apiErr
}

func domainPath(domainID, p string) string {
	return fmt.Sprintf("v1/domains/%s/%s", url.PathEscape(domainID), strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
