package crewlinesdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateTaskSendsCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/projects/p%201/tasks", r.URL.EscapedPath())
		require.Equal(t, "key-1", r.Header.Get("X-Api-Key"))
		var in NewTask
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Task{ID: "t1", Title: in.Title, Status: "Todo"})
	}))
	defer srv.Close()

	c := New(srv.URL, "p 1")
	c.APIKey = "key-1"
	task, err := c.CreateTask(context.Background(), NewTask{Title: "Ship"})
	require.NoError(t, err)
	require.Equal(t, "t1", task.ID)
	require.Equal(t, "Ship", task.Title)
}

func TestErrorEnvelopeDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"invalid_state","message":"dependencies open"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "p1").SetTaskStatus(context.Background(), "t1", "Done")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, "invalid_state", apiErr.Code)
}

func TestEventsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "10", r.URL.Query().Get("limit"))
		require.Equal(t, "42", r.URL.Query().Get("before"))
		w.Write([]byte(`[{"id":41,"type":"task.created"}]`))
	}))
	defer srv.Close()

	events, err := New(srv.URL, "p1").Events(context.Background(), 10, 42)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, int64(41), events[0].ID)
}
