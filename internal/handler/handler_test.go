package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/siteinsight/internal/model"
	appErr "github.com/xxxsen/siteinsight/internal/pkg/errors"
)

type fakeService struct {
	ingestErr error
	answerErr error
	gotURL    string
	gotQs     []string
	gotHist   []model.Turn
}

func (f *fakeService) Ingest(ctx context.Context, url string, questions []string) (*model.InsightRecord, error) {
	f.gotURL, f.gotQs = url, questions
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	return &model.InsightRecord{URL: url, Industry: "Aerospace"}, nil
}

func (f *fakeService) Answer(ctx context.Context, url string, question string, history []model.Turn) (*model.AnswerRecord, error) {
	f.gotURL, f.gotHist = url, history
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	return &model.AnswerRecord{
		Answer:       "They sell rockets.",
		SourceChunks: []string{"Acme sells rockets"},
		History:      append(append([]model.Turn(nil), history...), model.Turn{Role: "user", Content: question}, model.Turn{Role: "assistant", Content: "They sell rockets."}),
	}, nil
}

func (f *fakeService) GetInsight(ctx context.Context, url string) (*model.InsightRecord, error) {
	if url == "https://acme.example" {
		return &model.InsightRecord{URL: url, Industry: "Aerospace"}, nil
	}
	return nil, appErr.ErrNotFound
}

func newTestEngine(svc InsightService, token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	RegisterRoutes(engine.Group("/api/v1"), RouterDeps{
		Insights: NewInsightHandler(svc),
		APIToken: token,
	})
	return engine
}

func do(engine *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestIngestRoute(t *testing.T) {
	svc := &fakeService{}
	engine := newTestEngine(svc, "")
	w := do(engine, http.MethodPost, "/api/v1/insights", `{"url":"https://acme.example","questions":["Do they ship?"]}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Aerospace")
	require.Equal(t, "https://acme.example", svc.gotURL)
	require.Equal(t, []string{"Do they ship?"}, svc.gotQs)
}

func TestQueryRoute(t *testing.T) {
	svc := &fakeService{}
	engine := newTestEngine(svc, "")
	body := `{"url":"https://acme.example","query":"What do they sell?","conversation_history":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`
	w := do(engine, http.MethodPost, "/api/v1/query", body, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "They sell rockets.")
	require.Contains(t, w.Body.String(), "source_chunks")
	require.Len(t, svc.gotHist, 2)
}

func TestGetInsightRoute(t *testing.T) {
	engine := newTestEngine(&fakeService{}, "")
	w := do(engine, http.MethodGet, "/api/v1/insights?url=https://acme.example", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Aerospace")

	w = do(engine, http.MethodGet, "/api/v1/insights?url=https://other.example", "", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(engine, http.MethodGet, "/api/v1/insights", "", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{err: fmt.Errorf("%w: bad url", appErr.ErrInvalid), code: http.StatusBadRequest},
		{err: fmt.Errorf("%w: HTTP 500", appErr.ErrFetch), code: http.StatusBadGateway},
		{err: fmt.Errorf("%w: empty", appErr.ErrParse), code: http.StatusUnprocessableEntity},
		{err: appErr.Wrap(appErr.ErrSynthesis, appErr.ErrUnavailable), code: http.StatusServiceUnavailable},
		{err: appErr.Wrap(appErr.ErrSynthesis, fmt.Errorf("bad json")), code: http.StatusBadGateway},
		{err: fmt.Errorf("disk full"), code: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		engine := newTestEngine(&fakeService{ingestErr: tc.err}, "")
		w := do(engine, http.MethodPost, "/api/v1/insights", `{"url":"https://acme.example"}`, "")
		require.Equal(t, tc.code, w.Code, tc.err.Error())
	}

	engine := newTestEngine(&fakeService{answerErr: fmt.Errorf("%w: never analysed", appErr.ErrNotFound)}, "")
	w := do(engine, http.MethodPost, "/api/v1/query", `{"url":"https://x.example","query":"hi"}`, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutesRequireToken(t *testing.T) {
	engine := newTestEngine(&fakeService{}, "secret")
	w := do(engine, http.MethodPost, "/api/v1/insights", `{"url":"https://acme.example"}`, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(engine, http.MethodPost, "/api/v1/insights", `{"url":"https://acme.example"}`, "secret")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(engine, http.MethodGet, "/api/v1/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestMalformedBody(t *testing.T) {
	engine := newTestEngine(&fakeService{}, "")
	w := do(engine, http.MethodPost, "/api/v1/query", `{"url":`, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsRoute(t *testing.T) {
	engine := newTestEngine(&fakeService{}, "")
	w := do(engine, http.MethodGet, "/api/v1/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
}
