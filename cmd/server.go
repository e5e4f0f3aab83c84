package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/product-analyzer/internal/identity"
	"github.com/sells-group/product-analyzer/internal/model"
	"github.com/sells-group/product-analyzer/internal/monitoring"
	"github.com/sells-group/product-analyzer/internal/store"
	"github.com/sells-group/product-analyzer/internal/tasks"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// defaultMetricsHours is the /v1/metrics window when none is given.
const defaultMetricsHours = 24

// runStore is the part of store.Store the HTTP API reads and writes.
type runStore interface {
	CreateRun(ctx context.Context, run *model.AnalysisRun) error
	SaveRun(ctx context.Context, run *model.AnalysisRun) error
	GetRun(ctx context.Context, runID string) (*model.AnalysisRun, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.AnalysisRun, error)
	ListTaskResults(ctx context.Context, filter store.ResultFilter) ([]model.TaskRecord, error)
}

// server serves the analysis HTTP API. Async runs are bound to baseCtx, not
// to the request, and tracked by wg so shutdown can wait for them.
type server struct {
	analyzer productAnalyzer
	store    runStore
	cache    *identity.Cache
	registry *tasks.Registry
	metrics  *monitoring.Collector

	baseCtx context.Context
	wg      sync.WaitGroup
}

func newServer(ctx context.Context, a productAnalyzer, st runStore, cache *identity.Cache, reg *tasks.Registry) *server {
	return &server{
		analyzer: a,
		store:    st,
		cache:    cache,
		registry: reg,
		metrics:  monitoring.NewCollector(st),
		baseCtx:  ctx,
	}
}

// routes builds the router. An empty allowedOrigins list allows any origin.
func (s *server) routes(allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/tasks", s.handleTasks)
		r.Get("/metrics", s.handleMetrics)
		r.Post("/resolve", s.handleResolve)
		r.Post("/confirm", s.handleConfirm)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/analyze/async", s.handleAnalyzeAsync)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/results", s.handleRunResults)
	})
	return r
}

// wait blocks until in-flight async runs finish.
func (s *server) wait() {
	s.wg.Wait()
}

type productRequest struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name,omitempty"`
}

func (req productRequest) product() model.Product {
	return model.NewProduct(req.Identifier, req.Name)
}

type confirmRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type taskInfo struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Category          tasks.Category `json:"category"`
	DefaultConfidence float64        `json:"default_confidence"`
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleTasks(w http.ResponseWriter, _ *http.Request) {
	all := s.registry.All()
	out := make([]taskInfo, 0, len(all))
	for _, t := range all {
		out = append(out, taskInfo{ID: t.ID, Name: t.Name, Category: t.Category, DefaultConfidence: t.DefaultConfidence})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r.URL.Query().Get("hours"))
	if hours == 0 {
		hours = defaultMetricsHours
	}
	snap, err := s.metrics.Collect(r.Context(), hours)
	if err != nil {
		zap.L().Error("collect metrics failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "collect metrics failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	code := strings.TrimSpace(req.Code)
	if !model.IsCode(code) {
		writeError(w, http.StatusBadRequest, "code must be 8 to 13 digits")
		return
	}
	writeJSON(w, http.StatusOK, s.analyzer.ResolveCandidates(r.Context(), code, s.cache))
}

func (s *server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	code := strings.TrimSpace(req.Code)
	if !model.IsCode(code) {
		writeError(w, http.StatusBadRequest, "code must be 8 to 13 digits")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if s.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "identity cache unavailable")
		return
	}
	id, err := s.cache.Confirm(r.Context(), code, req.Name)
	if err != nil {
		zap.L().Error("confirm identity failed", zap.String("code", code), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "confirm failed")
		return
	}
	writeJSON(w, http.StatusOK, id)
}

// withConfirmedName applies a cached confirmation to a code-kind product.
func (s *server) withConfirmedName(ctx context.Context, p model.Product) model.Product {
	if !p.IsCode() || s.cache == nil {
		return p
	}
	if id, ok := s.cache.Get(ctx, p.Identifier); ok {
		return p.WithName(id.Name)
	}
	return p
}

func (s *server) decodeProduct(w http.ResponseWriter, r *http.Request) (model.Product, bool) {
	var req productRequest
	if !decodeJSON(w, r, &req) {
		return model.Product{}, false
	}
	if strings.TrimSpace(req.Identifier) == "" {
		writeError(w, http.StatusBadRequest, "identifier is required")
		return model.Product{}, false
	}
	p := req.product()
	if strings.TrimSpace(req.Name) == "" {
		p = s.withConfirmedName(r.Context(), p)
	}
	return p, true
}

// handleAnalyze runs synchronously. The run is tied to the request context,
// so a client disconnect stops dispatch of the remaining tasks.
func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	p, ok := s.decodeProduct(w, r)
	if !ok {
		return
	}
	run := s.analyzer.Analyze(r.Context(), p, nil)
	if err := s.store.CreateRun(context.WithoutCancel(r.Context()), run); err != nil {
		zap.L().Warn("save run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *server) handleAnalyzeAsync(w http.ResponseWriter, r *http.Request) {
	p, ok := s.decodeProduct(w, r)
	if !ok {
		return
	}

	runID := uuid.NewString()
	placeholder := &model.AnalysisRun{
		ID:        runID,
		Product:   p,
		Status:    model.RunStatusRunning,
		Tools:     map[string]model.TaskResult{},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateRun(r.Context(), placeholder); err != nil {
		zap.L().Error("create run failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create run")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run := s.analyzer.AnalyzeWithID(s.baseCtx, runID, p, nil)
		if err := s.store.SaveRun(context.WithoutCancel(s.baseCtx), run); err != nil {
			zap.L().Error("save run failed", zap.String("run_id", runID), zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
		"status": string(model.RunStatusRunning),
	})
}

func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	runs, err := s.store.ListRuns(r.Context(), store.RunFilter{
		Status:            model.RunStatus(q.Get("status")),
		ProductIdentifier: q.Get("product"),
		Limit:             queryInt(q.Get("limit")),
		Offset:            queryInt(q.Get("offset")),
	})
	if err != nil {
		zap.L().Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []model.AnalysisRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("get run failed", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *server) handleRunResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	recs, err := s.store.ListTaskResults(r.Context(), store.ResultFilter{
		RunID:  id,
		ToolID: r.URL.Query().Get("tool"),
		Limit:  queryInt(r.URL.Query().Get("limit")),
	})
	if err != nil {
		zap.L().Error("list results failed", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list results failed")
		return
	}
	if recs == nil {
		recs = []model.TaskRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
