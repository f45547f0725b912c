package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enricher/internal/enrich"
	"github.com/sells-group/lead-enricher/internal/model"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) EnrichBatch(ctx context.Context, ids []string) (*model.BatchSummary, error) {
	args := m.Called(ctx, ids)
	summary, _ := args.Get(0).(*model.BatchSummary)
	return summary, args.Error(1)
}

func postEnrich(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/enrich", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	rr := httptest.NewRecorder()
	newRouter(&mockRunner{}, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_EnrichReturnsSummary(t *testing.T) {
	runner := &mockRunner{}
	runner.On("EnrichBatch", mock.Anything, []string{"a", "b", "c"}).Return(&model.BatchSummary{
		Requested: 3, Enriched: 2, DeletedClosed: 1,
		Results: []model.LeadOutcome{{LeadID: "a"}, {LeadID: "b"}, {LeadID: "c", PermanentlyClosed: true}},
	}, nil).Once()

	rr := postEnrich(t, newRouter(runner, nil), `{"lead_ids": ["a", "b", "c"]}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	var summary model.BatchSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Enriched)
	assert.Equal(t, 1, summary.DeletedClosed)
	runner.AssertExpectations(t)
}

func TestRouter_EnrichBadRequests(t *testing.T) {
	runner := &mockRunner{}
	runner.On("EnrichBatch", mock.Anything, []string(nil)).Return(nil, enrich.ErrEmptyBatch)
	runner.On("EnrichBatch", mock.Anything, mock.MatchedBy(func(ids []string) bool { return len(ids) > 50 })).
		Return(nil, eris.Wrapf(enrich.ErrBatchTooLarge, "got %d", 51))
	h := newRouter(runner, nil)

	assert.Equal(t, http.StatusBadRequest, postEnrich(t, h, `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, postEnrich(t, h, `{}`).Code)

	ids := make([]string, 51)
	for i := range ids {
		ids[i] = "x"
	}
	body, err := json.Marshal(enrichRequest{LeadIDs: ids})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, postEnrich(t, h, string(body)).Code)
}

func TestRouter_EnrichBatchFailure(t *testing.T) {
	runner := &mockRunner{}
	runner.On("EnrichBatch", mock.Anything, []string{"a"}).Return(nil, eris.New("connection refused"))

	rr := postEnrich(t, newRouter(runner, nil), `{"lead_ids": ["a"]}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection refused")
}

func TestRouter_Metrics(t *testing.T) {
	h := newRouter(&mockRunner{}, enrich.NewMetrics())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	newRouter(&mockRunner{}, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/v1/enrich", nil)
	req.Header.Set("Origin", "https://crm.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	newRouter(&mockRunner{}, nil).ServeHTTP(rr, req)

	assert.NotEmpty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}
