package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denisok6893-rgb/neighborfit/internal/domain"
	"github.com/denisok6893-rgb/neighborfit/internal/matching"
	"github.com/denisok6893-rgb/neighborfit/internal/observability"
	"github.com/denisok6893-rgb/neighborfit/internal/questionnaire"
	"github.com/denisok6893-rgb/neighborfit/internal/storage"
)

const examplePrefs = `{"budget":2500,"walkability":9,"safety":9,"nightlife":3,"familyFriendly":4,"publicTransit":8,"lifestyle":"student","priorities":["Short commute"]}`

func newTestServer(t *testing.T, delay time.Duration) (*Server, *prometheus.Registry) {
	t.Helper()
	catalog, err := storage.DefaultCatalog()
	require.NoError(t, err)

	store, err := storage.OpenIndex(t.Context(), storage.MemoryPath, catalog)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg := prometheus.NewRegistry()
	metrics := observability.MustNewMetrics(reg)
	engine := matching.NewEngine(catalog, nil, metrics)
	return NewServer(engine, store, Options{ResultsDelay: delay, Metrics: metrics, Gatherer: reg}), reg
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	rr := do(t, srv.Routes(), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestMatch_ExampleScenario(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	rr := do(t, srv.Routes(), http.MethodPost, "/api/match", `{"userPreferences":`+examplePrefs+`}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp MatchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, StatusOK, resp.Status)
	require.Len(t, resp.Matches, 6)

	names := make([]string, 0, len(resp.Matches))
	scores := make([]int, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		names = append(names, m.Name)
		scores = append(scores, m.OverallScore)
	}
	assert.Equal(t, []string{"Law Gate", "GT Road Enclave", "Jalandhar City", "Hoshiarpur Road", "Urban Estate", "Phagwara Town"}, names)
	assert.Equal(t, []int{55, 53, 50, 47, 47, 46}, scores)
	assert.Equal(t, []string{
		"Excellent walkability matches your preference",
		"High safety rating aligns with your priorities",
	}, resp.Matches[0].MatchReasons)
	assert.Equal(t, resp.Matches[0].BaseScores, resp.Matches[0].Scores)
}

func TestMatch_LegacySliderArrays(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	body := `{"userPreferences":{"budget":[2500],"walkability":[9],"safety":[9],"nightlife":[3],"familyFriendly":[4],"publicTransit":[8],"lifestyle":"student","priorities":[]}}`
	rr := do(t, srv.Routes(), http.MethodPost, "/api/match", body)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp MatchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Matches)
	assert.Equal(t, "6", resp.Matches[0].ID)
	assert.Equal(t, 55, resp.Matches[0].OverallScore)
}

func TestMatch_NoPreferences(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	bodies := map[string]string{
		"empty body":    "",
		"empty object":  `{}`,
		"null":          `{"userPreferences":null}`,
		"not json":      `{"userPreferences":`,
		"missing field": `{"userPreferences":{"budget":2500,"walkability":9}}`,
		"string value":  `{"userPreferences":"{\"budget\":2500}"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			rr := do(t, srv.Routes(), http.MethodPost, "/api/match", body)
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.JSONEq(t, `{"status":"no_preferences","matches":[]}`, rr.Body.String())
		})
	}
}

func TestMatch_OutOfRange(t *testing.T) {
	srv, reg := newTestServer(t, 0)
	body := `{"userPreferences":{"budget":400,"walkability":9,"safety":11,"nightlife":3,"familyFriendly":4,"publicTransit":8}}`
	rr := do(t, srv.Routes(), http.MethodPost, "/api/match", body)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp struct {
		Error   string              `json:"error"`
		Details []domain.FieldError `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_preferences", resp.Error)

	fields := []string{}
	for _, d := range resp.Details {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"budget", "safety"}, fields)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() == "neighborfit_matching_requests_total" {
			found = true
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, "invalid", mf.GetMetric()[0].GetLabel()[0].GetValue())
		}
	}
	assert.True(t, found)
}

func postQuestionnaire(t *testing.T, h http.Handler, st *questionnaire.State, a *questionnaire.Action) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(QuestionnaireRequest{State: st, Action: a})
	require.NoError(t, err)
	return do(t, h, http.MethodPost, "/api/questionnaire", string(b))
}

func TestQuestionnaireAPI_Walkthrough(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	h := srv.Routes()

	rr := do(t, h, http.MethodPost, "/api/questionnaire", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp QuestionnaireResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 25, resp.Progress)
	assert.Equal(t, "Budget & Housing", resp.Step.Title)
	assert.Nil(t, resp.Record)

	st := resp.State
	steps := []questionnaire.Action{
		{Kind: questionnaire.ActionSet, Field: questionnaire.FieldBudget, Value: 1200},
		{Kind: questionnaire.ActionNext},
		{Kind: questionnaire.ActionSetLifestyle, Lifestyle: domain.LifestyleStudent},
		{Kind: questionnaire.ActionNext},
		{Kind: questionnaire.ActionNext},
		{Kind: questionnaire.ActionTogglePriority, Priority: "Low cost of living", Checked: true},
		{Kind: questionnaire.ActionNext},
	}
	for _, a := range steps {
		rr := postQuestionnaire(t, h, &st, &a)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		resp = QuestionnaireResponse{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		st = resp.State
	}

	assert.True(t, resp.State.Complete)
	require.NotNil(t, resp.Record)
	assert.Equal(t, 1200, resp.Record.Budget)
	assert.Equal(t, domain.LifestyleStudent, resp.Record.Lifestyle)
	assert.Equal(t, []string{"Low cost of living"}, resp.Record.Priorities)

	payload, err := domain.EncodePreferences(*resp.Record)
	require.NoError(t, err)
	rr = do(t, h, http.MethodPost, "/api/match", `{"userPreferences":`+string(payload)+`}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}

func TestQuestionnaireAPI_Errors(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	h := srv.Routes()

	st := questionnaire.Initial()
	st.Step = 1
	rr := postQuestionnaire(t, h, &st, &questionnaire.Action{Kind: questionnaire.ActionNext})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "cannot_proceed")

	rr = postQuestionnaire(t, h, nil, &questionnaire.Action{Kind: questionnaire.ActionSet, Field: questionnaire.FieldBudget, Value: 9000})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid_action")

	bad := questionnaire.Initial()
	bad.Step = 7
	rr = postQuestionnaire(t, h, &bad, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid_state")

	rr = do(t, h, http.MethodPost, "/api/questionnaire", `{"state":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid_json")
}

func TestQuestionnaireSteps(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	rr := do(t, srv.Routes(), http.MethodGet, "/api/questionnaire/steps", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp StepsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Steps, 4)
	assert.Len(t, resp.Lifestyles, 5)
	assert.Len(t, resp.Priorities, 10)
	assert.Equal(t, 3, resp.MaxPriorities)
	assert.Equal(t, 2500, resp.Initial.Preferences.Budget)
}

func TestNeighborhoodsList(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	h := srv.Routes()

	rr := do(t, h, http.MethodGet, "/api/neighborhoods?min_category=safety&min_score=80&sort=safety", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp NeighborhoodListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 20, resp.Limit)
	require.Len(t, resp.Items, 3)
	assert.Equal(t, "GT Road Enclave", resp.Items[0].Name)

	rr = do(t, h, http.MethodGet, "/api/neighborhoods?limit=2&offset=4", "")
	require.Equal(t, http.StatusOK, rr.Code)
	resp = NeighborhoodListResponse{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 6, resp.Total)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "Law Gate", resp.Items[1].Name)

	for _, q := range []string{"sort=price", "min_category=parking", "min_category=safety&min_score=120"} {
		rr = do(t, h, http.MethodGet, "/api/neighborhoods?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestNeighborhoodGet(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	h := srv.Routes()

	rr := do(t, h, http.MethodGet, "/api/neighborhoods/3", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var n domain.NeighborhoodCandidate
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &n))
	assert.Equal(t, "Hoshiarpur Road", n.Name)

	rr = do(t, h, http.MethodGet, "/api/neighborhoods/missing", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"not_found"}`, rr.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	h := srv.Routes()

	do(t, h, http.MethodGet, "/health", "")
	rr := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `neighborfit_http_requests_total{code="200",route="GET /health"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	req := httptest.NewRequest(http.MethodOptions, "/api/match", bytes.NewReader(nil))
	rr := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
