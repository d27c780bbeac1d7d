package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"crewline/internal/config"
	"crewline/internal/domain"
)

const defaultWebhookTimeout = 5 * time.Second

// WebhookSink POSTs a JSON Message to every enabled hook whose event
// filter matches.
type WebhookSink struct {
	Hooks  []config.WebhookConfig
	Client *http.Client
	Now    func() time.Time
}

func NewWebhookSink(hooks []config.WebhookConfig) *WebhookSink {
	return &WebhookSink{Hooks: hooks, Client: &http.Client{Timeout: defaultWebhookTimeout}}
}

func (w *WebhookSink) TaskCreated(ctx context.Context, t domain.Task) error {
	return w.send(ctx, Message{Event: EventTaskCreated, ProjectID: t.ProjectID, Task: &t})
}

func (w *WebhookSink) TaskCompleted(ctx context.Context, t domain.Task) error {
	return w.send(ctx, Message{Event: EventTaskCompleted, ProjectID: t.ProjectID, Task: &t})
}

func (w *WebhookSink) TaskUnblocked(ctx context.Context, t domain.Task) error {
	return w.send(ctx, Message{Event: EventTaskUnblocked, ProjectID: t.ProjectID, Task: &t})
}

func (w *WebhookSink) MilestoneCompleted(ctx context.Context, m domain.Milestone) error {
	return w.send(ctx, Message{Event: EventMilestoneCompleted, ProjectID: m.ProjectID, Milestone: &m})
}

func (w *WebhookSink) send(ctx context.Context, msg Message) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	msg.SentAt = now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	delivery := uuid.NewString()
	var errs []string
	for _, hook := range w.Hooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		if !newEventFilter(hook.Events).match(msg.Event) {
			continue
		}
		if err := w.post(ctx, hook, msg, delivery, data); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", hook.URL, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("webhook %s: %s", msg.Event, strings.Join(errs, "; "))
	}
	return nil
}

func (w *WebhookSink) post(ctx context.Context, hook config.WebhookConfig, msg Message, delivery string, data []byte) error {
	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	if hook.TimeoutSeconds > 0 {
		if timeout := time.Duration(hook.TimeoutSeconds) * time.Second; timeout != client.Timeout {
			c := *client
			c.Timeout = timeout
			client = &c
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Crewline-Event", msg.Event)
	req.Header.Set("X-Crewline-Delivery", delivery)
	req.Header.Set("X-Crewline-Project", msg.ProjectID)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Crewline-Secret", hook.Secret)
	}
	res, err := client.Do(req)
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

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		if key := strings.TrimSpace(evt); key != "" {
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
