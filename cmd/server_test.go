//go:build !integration

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/product-analyzer/internal/analyzer"
	"github.com/sells-group/product-analyzer/internal/model"
	"github.com/sells-group/product-analyzer/internal/store"
	"github.com/sells-group/product-analyzer/internal/tasks"
)

func newTestServer(t *testing.T, fa *fakeAnalyzer, st *mockRunStore) (*server, http.Handler) {
	t.Helper()
	s := newServer(context.Background(), fa, st, newTestCache(t), tasks.Default())
	return s, s.routes(nil)
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	_, h := newTestServer(t, &fakeAnalyzer{}, &mockRunStore{})

	rec := doRequest(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Tasks(t *testing.T) {
	_, h := newTestServer(t, &fakeAnalyzer{}, &mockRunStore{})

	rec := doRequest(h, http.MethodGet, "/v1/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []taskInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 9)
	assert.Equal(t, tasks.Categorizer, got[0].ID)
}

func TestServer_Analyze(t *testing.T) {
	fa := &fakeAnalyzer{}
	st := &mockRunStore{}
	st.On("CreateRun", mock.Anything, mock.MatchedBy(func(r *model.AnalysisRun) bool {
		return r.Status == model.RunStatusComplete
	})).Return(nil).Once()
	_, h := newTestServer(t, fa, st)

	rec := doRequest(h, http.MethodPost, "/v1/analyze", `{"identifier":"oat milk"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var run model.AnalysisRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "oat milk", run.Product.Identifier)
	assert.Equal(t, model.KindName, run.Product.Kind)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	st.AssertExpectations(t)
}

func TestServer_Analyze_AppliesConfirmedName(t *testing.T) {
	fa := &fakeAnalyzer{}
	st := &mockRunStore{}
	st.On("CreateRun", mock.Anything, mock.Anything).Return(nil)
	s, h := newTestServer(t, fa, st)
	_, err := s.cache.Confirm(context.Background(), "3017620422003", "Nutella 400g")
	require.NoError(t, err)

	rec := doRequest(h, http.MethodPost, "/v1/analyze", `{"identifier":"3017620422003"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fa.products(), 1)
	assert.Equal(t, "Nutella 400g", fa.products()[0].Name)

	rec = doRequest(h, http.MethodPost, "/v1/analyze", `{"identifier":"3017620422003","name":"Custom"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Custom", fa.products()[1].Name)
}

func TestServer_Analyze_BadRequests(t *testing.T) {
	_, h := newTestServer(t, &fakeAnalyzer{}, &mockRunStore{})

	tests := []struct {
		name string
		path string
		body string
	}{
		{"invalid_json", "/v1/analyze", `{`},
		{"missing_identifier", "/v1/analyze", `{"name":"x"}`},
		{"async_missing_identifier", "/v1/analyze/async", `{"identifier":"  "}`},
		{"resolve_not_a_code", "/v1/resolve", `{"code":"oat milk"}`},
		{"confirm_missing_name", "/v1/confirm", `{"code":"3017620422003"}`},
		{"confirm_bad_code", "/v1/confirm", `{"code":"123","name":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestServer_AnalyzeAsync(t *testing.T) {
	fa := &fakeAnalyzer{}
	st := &mockRunStore{}
	st.On("CreateRun", mock.Anything, mock.MatchedBy(func(r *model.AnalysisRun) bool {
		return r.Status == model.RunStatusRunning && len(r.Tools) == 0
	})).Return(nil).Once()
	st.On("SaveRun", mock.Anything, mock.MatchedBy(func(r *model.AnalysisRun) bool {
		return r.Status == model.RunStatusComplete
	})).Return(nil).Once()
	s, h := newTestServer(t, fa, st)

	rec := doRequest(h, http.MethodPost, "/v1/analyze/async", `{"identifier":"oat milk"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "running", body["status"])
	require.NotEmpty(t, body["run_id"])

	s.wait()
	fa.mu.Lock()
	assert.Equal(t, []string{body["run_id"]}, fa.runIDs)
	fa.mu.Unlock()
	st.AssertExpectations(t)
}

func TestServer_AnalyzeAsync_CreateFails(t *testing.T) {
	fa := &fakeAnalyzer{}
	st := &mockRunStore{}
	st.On("CreateRun", mock.Anything, mock.Anything).Return(eris.New("db down"))
	s, h := newTestServer(t, fa, st)

	rec := doRequest(h, http.MethodPost, "/v1/analyze/async", `{"identifier":"oat milk"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	s.wait()
	assert.Empty(t, fa.products())
}

func TestServer_ResolveAndConfirm(t *testing.T) {
	fa := &fakeAnalyzer{resolution: analyzer.Resolution{Candidates: []model.IdentityCandidate{
		{Name: "Nutella 400g", Score: 1, SourceURL: "https://world.openfoodfacts.org/product/3017620422003"},
	}}}
	_, h := newTestServer(t, fa, &mockRunStore{})

	rec := doRequest(h, http.MethodPost, "/v1/resolve", `{"code":"3017620422003"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res analyzer.Resolution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Nil(t, res.Confirmed)
	require.Len(t, res.Candidates, 1)

	rec = doRequest(h, http.MethodPost, "/v1/confirm", `{"code":"3017620422003","name":"Nutella 400g"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(h, http.MethodPost, "/v1/resolve", `{"code":"3017620422003"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res = analyzer.Resolution{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotNil(t, res.Confirmed)
	assert.Equal(t, "Nutella 400g", res.Confirmed.Name)
	assert.Empty(t, res.Candidates)
}

func TestServer_GetRun(t *testing.T) {
	st := &mockRunStore{}
	st.On("GetRun", mock.Anything, "run-1").Return(&model.AnalysisRun{ID: "run-1", Status: model.RunStatusComplete}, nil)
	st.On("GetRun", mock.Anything, "missing").Return(nil, eris.Wrap(store.ErrNotFound, "get run"))
	st.On("GetRun", mock.Anything, "broken").Return(nil, eris.New("db down"))
	_, h := newTestServer(t, &fakeAnalyzer{}, st)

	rec := doRequest(h, http.MethodGet, "/v1/runs/run-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"run-1"`)

	rec = doRequest(h, http.MethodGet, "/v1/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(h, http.MethodGet, "/v1/runs/broken", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_ListRuns(t *testing.T) {
	st := &mockRunStore{}
	st.On("ListRuns", mock.Anything, store.RunFilter{Status: model.RunStatusStopped, ProductIdentifier: "oat milk", Limit: 5}).
		Return([]model.AnalysisRun{{ID: "run-1"}}, nil).Once()
	st.On("ListRuns", mock.Anything, store.RunFilter{}).Return(nil, nil).Once()
	_, h := newTestServer(t, &fakeAnalyzer{}, st)

	rec := doRequest(h, http.MethodGet, "/v1/runs?status=stopped&product=oat+milk&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "run-1")

	rec = doRequest(h, http.MethodGet, "/v1/runs?limit=-3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	st.AssertExpectations(t)
}

func TestServer_RunResults(t *testing.T) {
	st := &mockRunStore{}
	st.On("ListTaskResults", mock.Anything, store.ResultFilter{RunID: "run-1", ToolID: tasks.Trends}).
		Return([]model.TaskRecord{{RunID: "run-1", ToolID: tasks.Trends, Status: model.TaskCompleted}}, nil)
	_, h := newTestServer(t, &fakeAnalyzer{}, st)

	rec := doRequest(h, http.MethodGet, "/v1/runs/run-1/results?tool=trends", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tool_id":"trends"`)
}

func TestServer_CORSPreflight(t *testing.T) {
	s := newServer(context.Background(), &fakeAnalyzer{}, &mockRunStore{}, nil, tasks.Default())
	h := s.routes([]string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/v1/analyze", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_ConfirmWithoutCache(t *testing.T) {
	s := newServer(context.Background(), &fakeAnalyzer{}, &mockRunStore{}, nil, tasks.Default())
	rec := doRequest(s.routes(nil), http.MethodPost, "/v1/confirm", `{"code":"3017620422003","name":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	st := &mockRunStore{}
	st.On("ListRuns", mock.Anything, mock.Anything).Return([]model.AnalysisRun{{
		ID:        "run-1",
		Status:    model.RunStatusComplete,
		CreatedAt: time.Now().UTC(),
		Tools: map[string]model.TaskResult{
			tasks.Trends: {TaskID: tasks.Trends, Status: model.TaskCompleted, Fallback: true, ConfidenceScore: 0.4},
		},
	}}, nil)
	_, h := newTestServer(t, &fakeAnalyzer{}, st)

	rec := doRequest(h, http.MethodGet, "/v1/metrics?hours=6", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.EqualValues(t, 1, snap["runs_total"])
	assert.EqualValues(t, 1, snap["task_fallbacks"])
	assert.EqualValues(t, 6, snap["lookback_hours"])
}

func TestQueryInt(t *testing.T) {
	assert.Equal(t, 5, queryInt("5"))
	assert.Equal(t, 0, queryInt(""))
	assert.Equal(t, 0, queryInt("-1"))
	assert.Equal(t, 0, queryInt("abc"))
}
