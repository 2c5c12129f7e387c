package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"linkboard/internal/config"
	"linkboard/internal/domain"
	"linkboard/internal/engine"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// hookState tracks delivery progress for one configured webhook.
type hookState struct {
	cfg     config.WebhookConfig
	filter  eventFilter
	client  *http.Client
	cursor  int64
	started bool
}

// WebhookDispatcher forwards recorded events to configured HTTP endpoints.
// Each hook starts at the newest event present when it is first polled and
// delivers in event id order, retrying a failed event on the next tick.
type WebhookDispatcher struct {
	engine   engine.Engine
	logger   *slog.Logger
	interval time.Duration

	mu    sync.Mutex
	hooks []*hookState
}

// NewWebhookDispatcher returns nil when no enabled webhook is configured.
func NewWebhookDispatcher(e engine.Engine, logger *slog.Logger) *WebhookDispatcher {
	if e.Config == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &WebhookDispatcher{engine: e, logger: logger, interval: defaultWebhookInterval}
	for _, hook := range e.Config.Webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		timeout := defaultWebhookTimeout
		if hook.TimeoutSeconds > 0 {
			timeout = time.Duration(hook.TimeoutSeconds) * time.Second
		}
		d.hooks = append(d.hooks, &hookState{
			cfg:    hook,
			filter: newEventFilter(hook.Events),
			client: &http.Client{Timeout: timeout},
		})
	}
	if len(d.hooks) == 0 {
		return nil
	}
	return d
}

// StartWebhookDispatcher runs the dispatcher in the background until ctx is done.
func StartWebhookDispatcher(ctx context.Context, e engine.Engine, logger *slog.Logger) {
	d := NewWebhookDispatcher(e, logger)
	if d == nil {
		return
	}
	go d.Run(ctx)
}

func (d *WebhookDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		d.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchOnce delivers one batch of pending events to every hook.
func (d *WebhookDispatcher) DispatchOnce(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range d.hooks {
		if ctx.Err() != nil {
			return
		}
		d.dispatch(ctx, h)
	}
}

func (d *WebhookDispatcher) dispatch(ctx context.Context, h *hookState) {
	if !h.started {
		latest, err := d.engine.Repo.LatestEventID(ctx)
		if err != nil {
			d.logger.Error("Webhook cursor init failed", "url", h.cfg.URL, "error", err)
			return
		}
		h.cursor = latest
		h.started = true
	}
	evts, err := d.engine.Repo.EventsAfter(ctx, defaultWebhookBatch, h.cursor)
	if err != nil {
		d.logger.Error("Webhook fetch events failed", "url", h.cfg.URL, "error", err)
		return
	}
	for _, evt := range evts {
		if h.filter.match(evt.Type) {
			if err := d.post(ctx, h, evt); err != nil {
				d.logger.Warn("Webhook delivery failed",
					"url", h.cfg.URL,
					"event_id", evt.ID,
					"event_type", evt.Type,
					"error", err,
				)
				return
			}
			d.logger.Debug("Webhook delivered", "url", h.cfg.URL, "event_id", evt.ID, "event_type", evt.Type)
		}
		h.cursor = evt.ID
	}
}

type webhookEvent struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	DomainID   string          `json:"domain_id,omitempty"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
}

func (d *WebhookDispatcher) post(ctx context.Context, h *hookState, evt domain.Event) error {
	payload := json.RawMessage("{}")
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage(evt.Payload)
	}
	data, err := json.Marshal(webhookEvent{
		ID:         evt.ID,
		Type:       evt.Type,
		DomainID:   evt.DomainID,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		TS:         evt.TS,
		Payload:    payload,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Linkboard-Event", evt.Type)
	req.Header.Set("X-Linkboard-Delivery", strconv.FormatInt(evt.ID, 10))
	if evt.DomainID != "" {
		req.Header.Set("X-Linkboard-Domain", evt.DomainID)
	}
	if strings.TrimSpace(h.cfg.Secret) != "" {
		req.Header.Set("X-Linkboard-Secret", h.cfg.Secret)
	}
	res, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// eventFilter matches event types. An empty list matches everything.
type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(types []string) eventFilter {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		if key := strings.TrimSpace(t); key != "" {
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evtType string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evtType]
	return ok
}
