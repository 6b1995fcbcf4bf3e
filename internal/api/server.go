package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"examsearch/internal/auth"
	"examsearch/internal/cache"
	"examsearch/internal/config"
	"examsearch/internal/index"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

// WorkflowClient is the part of the Temporal client the API uses.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options tclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (tclient.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

type Deps struct {
	Manager  *index.Manager
	Cache    cache.Cache
	Verifier *auth.Verifier
	// Temporal is nil when async rebuilds are disabled.
	Temporal WorkflowClient
	Logger   *slog.Logger
}

type Server struct {
	cfg      config.Config
	manager  *index.Manager
	cache    cache.Cache
	verifier *auth.Verifier
	temporal WorkflowClient
	logger   *slog.Logger
	now      func() time.Time

	historyMu sync.Mutex
}

func NewServer(cfg config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		manager:  deps.Manager,
		cache:    deps.Cache,
		verifier: deps.Verifier,
		temporal: deps.Temporal,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(s.logger))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Cache-Hit", "X-Search-Time"},
		MaxAge:         300,
	}))

	humaConfig := huma.DefaultConfig("Exam Search API", "1.0.0")
	humaConfig.OpenAPI.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		bearerScheme: {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	api := humachi.New(router, humaConfig)
	api.UseMiddleware(authMiddleware(api, s.verifier))
	s.register(api)
	return router
}

func (s *Server) register(api huma.API) {
	secured := []map[string][]string{{bearerScheme: {}}}

	huma.Register(api, huma.Operation{
		OperationID: "HealthCheck",
		Method:      http.MethodGet,
		Path:        "/healthz",
		Summary:     "Health check",
		Tags:        []string{"Health"},
	}, func(ctx context.Context, input *struct{}) (*PlainOutput, error) {
		return &PlainOutput{ContentType: "text/plain", Body: []byte("OK")}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "SearchExams",
		Method:      http.MethodPost,
		Path:        "/api/search",
		Summary:     "Search exams",
		Description: "Filter, rank and page the caller's exam index. Index failures yield an empty page with an error field.",
		Tags:        []string{"Search"},
		Security:    secured,
	}, s.search)

	huma.Register(api, huma.Operation{
		OperationID: "SearchHistory",
		Method:      http.MethodGet,
		Path:        "/api/search/history",
		Summary:     "Recent keyword searches",
		Tags:        []string{"Search"},
		Security:    secured,
	}, s.searchHistory)

	huma.Register(api, huma.Operation{
		OperationID: "GetExam",
		Method:      http.MethodGet,
		Path:        "/api/exam/{id}",
		Summary:     "Get one exam",
		Tags:        []string{"Exams"},
		Security:    secured,
	}, s.examDetail)

	huma.Register(api, huma.Operation{
		OperationID: "RebuildIndex",
		Method:      http.MethodPost,
		Path:        "/api/rebuild-index",
		Summary:     "Rebuild the caller's index now",
		Tags:        []string{"Index"},
		Security:    secured,
	}, s.rebuildIndex)

	huma.Register(api, huma.Operation{
		OperationID:   "RebuildIndexAsync",
		Method:        http.MethodPost,
		Path:          "/api/rebuild-index/async",
		Summary:       "Start a background rebuild",
		Tags:          []string{"Index"},
		Security:      secured,
		DefaultStatus: http.StatusAccepted,
	}, s.rebuildIndexAsync)

	huma.Register(api, huma.Operation{
		OperationID: "RebuildIndexProgress",
		Method:      http.MethodGet,
		Path:        "/api/rebuild-index/async",
		Summary:     "Progress of the background rebuild",
		Tags:        []string{"Index"},
		Security:    secured,
	}, s.rebuildIndexProgress)
}

func (s *Server) scopeFrom(ctx context.Context) (index.Scope, error) {
	p, ok := principalFrom(ctx)
	if !ok {
		return index.Scope{}, huma.Error401Unauthorized("")
	}
	return scopeFor(p), nil
}
