package notify

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/zishang520/socket.io/v2/socket"

	"crewline/internal/ctxlog"
	"crewline/internal/domain"
)

// Realtime broadcasts notifications over socket.io. Clients emit
// "subscribe" with a project id and receive that project's events in a
// room of the same name.
type Realtime struct {
	io *socket.Server
}

func NewRealtime() *Realtime {
	io := socket.NewServer(nil, nil)
	io.On("connection", func(clients ...any) {
		client, ok := clients[0].(*socket.Socket)
		if !ok {
			return
		}
		client.On("subscribe", func(args ...any) {
			if pid := projectArg(args); pid != "" {
				client.Join(socket.Room(pid))
			}
		})
		client.On("unsubscribe", func(args ...any) {
			if pid := projectArg(args); pid != "" {
				client.Leave(socket.Room(pid))
			}
		})
	})
	return &Realtime{io: io}
}

func projectArg(args []any) string {
	if len(args) == 0 {
		return ""
	}
	switch v := args[0].(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		s, _ := v["project_id"].(string)
		return strings.TrimSpace(s)
	}
	return ""
}

// Handler serves the socket.io transport.
func (r *Realtime) Handler() http.Handler {
	return r.io.ServeHandler(nil)
}

func (r *Realtime) Close() {
	r.io.Close(nil)
}

func (r *Realtime) emit(ctx context.Context, msg Message) error {
	msg.SentAt = time.Now().UTC().Format(time.RFC3339)
	if err := r.io.To(socket.Room(msg.ProjectID)).Emit(msg.Event, msg); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("realtime emit", "event", msg.Event, "project_id", msg.ProjectID)
	return nil
}

func (r *Realtime) TaskCreated(ctx context.Context, t domain.Task) error {
	return r.emit(ctx, Message{Event: EventTaskCreated, ProjectID: t.ProjectID, Task: &t})
}

func (r *Realtime) TaskCompleted(ctx context.Context, t domain.Task) error {
	return r.emit(ctx, Message{Event: EventTaskCompleted, ProjectID: t.ProjectID, Task: &t})
}

func (r *Realtime) TaskUnblocked(ctx context.Context, t domain.Task) error {
	return r.emit(ctx, Message{Event: EventTaskUnblocked, ProjectID: t.ProjectID, Task: &t})
}

func (r *Realtime) MilestoneCompleted(ctx context.Context, m domain.Milestone) error {
	return r.emit(ctx, Message{Event: EventMilestoneCompleted, ProjectID: m.ProjectID, Milestone: &m})
}
