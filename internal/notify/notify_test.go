package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewline/internal/config"
	"crewline/internal/domain"
)

type recordingSink struct {
	mu     sync.Mutex
	events []string
	fail   bool
}

func (r *recordingSink) record(s string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
	if r.fail {
		return errors.New("boom")
	}
	return nil
}

func (r *recordingSink) TaskCreated(_ context.Context, t domain.Task) error {
	return r.record(EventTaskCreated + ":" + t.ID)
}

func (r *recordingSink) TaskCompleted(_ context.Context, t domain.Task) error {
	return r.record(EventTaskCompleted + ":" + t.ID)
}

func (r *recordingSink) TaskUnblocked(_ context.Context, t domain.Task) error {
	return r.record(EventTaskUnblocked + ":" + t.ID)
}

func (r *recordingSink) MilestoneCompleted(_ context.Context, m domain.Milestone) error {
	return r.record(EventMilestoneCompleted + ":" + m.ID)
}

func TestDispatchVisitsEveryEffect(t *testing.T) {
	sink := &recordingSink{}
	fx := domain.Effects{
		TasksCreated:        []domain.Task{{ID: "a"}, {ID: "b"}},
		TasksCompleted:      []domain.Task{{ID: "c"}},
		TasksUnblocked:      []domain.Task{{ID: "d"}},
		MilestonesCompleted: []domain.Milestone{{ID: "m"}},
	}
	require.NoError(t, Dispatch(context.Background(), sink, fx))
	require.Equal(t, []string{
		"task.created:a", "task.created:b", "task.completed:c", "task.unblocked:d", "milestone.completed:m",
	}, sink.events)
}

func TestDispatchNilSinkAndEmptyEffects(t *testing.T) {
	require.NoError(t, Dispatch(context.Background(), nil, domain.Effects{TasksCreated: []domain.Task{{ID: "a"}}}))
	sink := &recordingSink{}
	require.NoError(t, Dispatch(context.Background(), sink, domain.Effects{}))
	require.Empty(t, sink.events)
}

func TestFanoutContinuesPastFailures(t *testing.T) {
	bad := &recordingSink{fail: true}
	good := &recordingSink{}
	err := Dispatch(context.Background(), Fanout{bad, nil, good}, domain.Effects{TasksCompleted: []domain.Task{{ID: "x"}}})
	require.Error(t, err)
	require.Equal(t, []string{"task.completed:x"}, good.events)
	require.Equal(t, []string{"task.completed:x"}, bad.events)
}

func TestLogSinkNeverFails(t *testing.T) {
	var s LogSink
	require.NoError(t, s.TaskCreated(context.Background(), domain.Task{ID: "t"}))
	require.NoError(t, s.MilestoneCompleted(context.Background(), domain.Milestone{ID: "m"}))
}

func TestWebhookSinkPostsMatchingEvents(t *testing.T) {
	var (
		mu       sync.Mutex
		received []Message
		headers  []http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, msg)
		headers = append(headers, r.Header.Clone())
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	disabled := false
	sink := NewWebhookSink([]config.WebhookConfig{
		{URL: srv.URL, Secret: "s3cret", Events: []string{EventTaskCompleted}},
		{URL: srv.URL, Enabled: &disabled},
	})
	ctx := context.Background()
	require.NoError(t, sink.TaskCreated(ctx, domain.Task{ID: "t1", ProjectID: "p"}))
	require.NoError(t, sink.TaskCompleted(ctx, domain.Task{ID: "t1", ProjectID: "p", Title: "ship"}))

	require.Len(t, received, 1)
	assert.Equal(t, EventTaskCompleted, received[0].Event)
	assert.Equal(t, "ship", received[0].Task.Title)
	assert.Equal(t, "s3cret", headers[0].Get("X-Crewline-Secret"))
	assert.Equal(t, "p", headers[0].Get("X-Crewline-Project"))
	assert.NotEmpty(t, headers[0].Get("X-Crewline-Delivery"))
}

func TestWebhookSinkReportsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTeapot)
	}))
	defer srv.Close()
	sink := NewWebhookSink([]config.WebhookConfig{{URL: srv.URL}})
	err := sink.MilestoneCompleted(context.Background(), domain.Milestone{ID: "m", ProjectID: "p"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 418")
}

func TestEventFilter(t *testing.T) {
	assert.True(t, newEventFilter(nil).match("anything"))
	assert.True(t, newEventFilter([]string{" ", ""}).match("anything"))
	f := newEventFilter([]string{"task.created "})
	assert.True(t, f.match("task.created"))
	assert.False(t, f.match("task.completed"))
}

func TestRealtimeEmitWithoutClients(t *testing.T) {
	rt := NewRealtime()
	defer rt.Close()
	require.NotNil(t, rt.Handler())
	require.NoError(t, rt.TaskUnblocked(context.Background(), domain.Task{ID: "t", ProjectID: "p"}))
}
