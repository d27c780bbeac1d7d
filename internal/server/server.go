package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"crewline/internal/ctxlog"
	"crewline/internal/domain"
	"crewline/internal/engine"
	"crewline/internal/engine/auth"
	"crewline/internal/notify"
	"crewline/internal/planning"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	Planner  planning.Orchestrator
	Sink     domain.NotificationSink
	BasePath string
	Auth     AuthConfig
	Logger   *slog.Logger
	// Realtime, when set, is mounted at RealtimePath outside the API base path.
	Realtime     http.Handler
	RealtimePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_state"`
	Message string         `json:"message" example:"task cannot be done while dependencies are open"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// api carries the dependencies every handler needs.
type api struct {
	engine  engine.Engine
	planner planning.Orchestrator
	sink    domain.NotificationSink
}

// notify hands committed effects to the sink; failures are logged only.
func (a api) notify(ctx context.Context, fx domain.Effects) {
	_ = notify.Dispatch(ctx, a.sink, fx)
}

// New returns an HTTP handler exposing the crewline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			msgs := make([]string, 0, len(errs))
			for _, e := range errs {
				msgs = append(msgs, e.Error())
			}
			details = map[string]any{"errors": msgs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	if cfg.Realtime != nil {
		rtPath := cfg.RealtimePath
		if rtPath == "" {
			rtPath = "/socket.io/"
		}
		router.Handle(strings.TrimSuffix(rtPath, "/")+"/*", cfg.Realtime)
	}

	hcfg := huma.DefaultConfig("crewline API", "1.0.0")
	hcfg.OpenAPIPath = path.Join(basePath, "openapi")
	hcfg.DocsPath = "/docs"
	hcfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
		"apiKeyAuth": {Type: "apiKey", In: "header", Name: "X-Api-Key"},
	}
	hcfg.Security = []map[string][]string{{"bearerAuth": {}}, {"apiKeyAuth": {}}}
	hapi := humachi.New(router, hcfg)
	group := huma.NewGroup(hapi, basePath)

	a := api{engine: cfg.Engine, planner: cfg.Planner, sink: cfg.Sink}
	registerHealth(group)
	registerProjects(group, a)
	registerMembers(group, a)
	registerMilestones(group, a)
	registerTasks(group, a)
	registerSubtasks(group, a)
	registerDependencies(group, a)
	registerReferences(group, a)
	registerPlanning(group, a)
	registerEvents(group, a)
	registerMe(group, a)
	if cfg.Auth.DevLogin {
		registerDevAuth(group, cfg.Auth)
	}

	return router, nil
}

func requestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			log := base.With("request_id", middleware.GetReqID(r.Context()), "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(ww, r.WithContext(ctxlog.WithLogger(r.Context(), log)))
			log.Debug("request served", "status", ww.Status(), "duration", time.Since(start))
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(ctx context.Context, err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		if fe.ActorID == "" {
			return newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"need": fe.Need.String()})
	}
	msg := err.Error()
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return newAPIError(http.StatusForbidden, "forbidden", msg, nil)
	case errors.Is(err, domain.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, domain.ErrConflict):
		return newAPIError(http.StatusBadRequest, "conflict", msg, nil)
	case errors.Is(err, domain.ErrInvalidState):
		return newAPIError(http.StatusBadRequest, "invalid_state", msg, nil)
	case errors.Is(err, domain.ErrGenerationFailed):
		return newAPIError(http.StatusBadGateway, "generation_failed", msg, nil)
	default:
		ctxlog.FromContext(ctx).Error("request failed", "error", err)
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusBadGateway:
		return "generation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// actor resolves the caller or fails with 401.
func actor(ctx context.Context) (string, error) {
	id, err := actorIDFromContext(ctx)
	if err != nil {
		return "", err
	}
	return id, nil
}

var commonErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusInternalServerError,
}

func registerHealth(hapi huma.API) {
	huma.Register(hapi, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*out[HealthResponse], error) {
		return &out[HealthResponse]{Body: HealthResponse{Status: "ok"}}, nil
	})
}

func registerMe(hapi huma.API, a api) {
	huma.Register(hapi, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*out[WhoAmIResponse], error) {
		p, ok := principalFromContext(ctx)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		return &out[WhoAmIResponse]{Body: WhoAmIResponse{ActorID: p.ActorID, Source: p.Source}}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/me/api-keys",
		Summary:       "Mint an API key for the caller",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, in *struct {
		Body CreateAPIKeyRequest `required:"false"`
	}) (*out[CreateAPIKeyResponse], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		key, secret, err := a.engine.CreateAPIKey(ctx, actorID, in.Body.Name)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[CreateAPIKeyResponse]{Body: CreateAPIKeyResponse{Key: key, Secret: secret}}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/me/api-keys",
		Summary:     "List the caller's API keys",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*out[[]domain.APIKey], error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		keys, err := a.engine.ListAPIKeys(ctx, actorID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &out[[]domain.APIKey]{Body: nonNil(keys)}, nil
	})

	huma.Register(hapi, huma.Operation{
		OperationID: "revoke-api-key",
		Method:      http.MethodDelete,
		Path:        "/me/api-keys/{key_id}",
		Summary:     "Revoke one of the caller's API keys",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, in *struct {
		KeyID string `path:"key_id"`
	}) (*struct{}, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		if err := a.engine.RevokeAPIKey(ctx, in.KeyID, actorID); err != nil {
			return nil, handleError(ctx, err)
		}
		return nil, nil
	})
}

func registerDevAuth(hapi huma.API, authCfg AuthConfig) {
	huma.Register(hapi, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, in *struct {
		Body DevLoginRequest
	}) (*out[DevLoginResponse], error) {
		actorID := strings.TrimSpace(in.Body.ActorID)
		if actorID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := SignToken(authCfg.JWTSecret, actorID, 24*time.Hour)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &out[DevLoginResponse]{Body: DevLoginResponse{Token: token}}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
