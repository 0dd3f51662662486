package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denisok6893-rgb/neighborfit/internal/domain"
	"github.com/denisok6893-rgb/neighborfit/internal/observability"
	"github.com/denisok6893-rgb/neighborfit/internal/questionnaire"
)

func postForm(t *testing.T, h http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func stateField(t *testing.T, st questionnaire.State) string {
	t.Helper()
	b, err := json.Marshal(st)
	require.NoError(t, err)
	return string(b)
}

func TestLandingView(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	rr := do(t, srv.Routes(), http.MethodGet, "/", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "Start Matching")

	rr = do(t, srv.Routes(), http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestQuestionnaireView_Initial(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	rr := do(t, srv.Routes(), http.MethodGet, "/questionnaire", "")

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Budget &amp; Housing")
	assert.Contains(t, body, "Step 1 of 4")
	assert.Contains(t, body, `name="budget"`)
	assert.Contains(t, body, `name="state"`)
	assert.NotContains(t, body, `value="back"`)
}

func TestQuestionnaireView_Flow(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	h := srv.Routes()

	rr := postForm(t, h, "/questionnaire", url.Values{
		"state":       {stateField(t, questionnaire.Initial())},
		"budget":      {"1500"},
		"walkability": {"10"},
		"nav":         {"next"},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Lifestyle Preferences")

	st := questionnaire.Initial()
	st.Step = 1
	rr = postForm(t, h, "/questionnaire", url.Values{"state": {stateField(t, st)}, "nav": {"next"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Please choose the lifestyle")
	assert.Contains(t, rr.Body.String(), "Lifestyle Preferences")

	rr = postForm(t, h, "/questionnaire", url.Values{"state": {stateField(t, st)}, "nav": {"back"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Budget &amp; Housing")

	st.Step = 3
	st.Preferences.Lifestyle = domain.LifestyleFamily
	rr = postForm(t, h, "/questionnaire", url.Values{
		"state":      {stateField(t, st)},
		"priorities": {"Good schools", "Parks & recreation"},
		"nav":        {"next"},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "See My Matches")
	assert.Contains(t, body, `name="userPreferences"`)
	assert.Contains(t, body, `action="/results"`)
}

func TestQuestionnaireView_BadInput(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	h := srv.Routes()

	rr := postForm(t, h, "/questionnaire", url.Values{"state": {"{broken"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "please start again")

	rr = postForm(t, h, "/questionnaire", url.Values{
		"state":  {stateField(t, questionnaire.Initial())},
		"budget": {"2550"},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Budget &amp; Housing")

	rr = postForm(t, h, "/questionnaire", url.Values{
		"state":  {stateField(t, questionnaire.Initial())},
		"budget": {"lots"},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "must be a whole number")
}

func TestResultsView_Ranking(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	rr := postForm(t, srv.Routes(), "/results", url.Values{domain.PreferencesKey: {examplePrefs}})

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Equal(t, 1, strings.Count(body, "Best Match</span>"))
	assert.Contains(t, body, "55%")
	assert.Contains(t, body, "Excellent walkability matches your preference")

	law := strings.Index(body, "<h2>Law Gate</h2>")
	gt := strings.Index(body, "<h2>GT Road Enclave</h2>")
	phagwara := strings.Index(body, "<h2>Phagwara Town</h2>")
	require.True(t, law > 0 && gt > 0 && phagwara > 0)
	assert.Less(t, law, gt)
	assert.Less(t, gt, phagwara)
	assert.Less(t, strings.Index(body, "Best Match</span>"), law)
}

func TestResultsView_EmptyState(t *testing.T) {
	srv, reg := newTestServer(t, time.Hour)
	h := srv.Routes()

	rr := do(t, h, http.MethodGet, "/results", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "No preferences found")

	rr = postForm(t, h, "/results", url.Values{domain.PreferencesKey: {`{"budget":`}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "No preferences found")

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		assert.NotEqual(t, "neighborfit_matching_requests_total", mf.GetName(), "scorer must not run")
	}
}

func TestResultsView_OversizedFormIsLogged(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	var logs bytes.Buffer
	srv.logger = observability.NewLogger(observability.LogConfig{Level: "debug", Format: "json", Output: &logs})

	form := url.Values{
		domain.PreferencesKey: {examplePrefs},
		"padding":             {strings.Repeat("x", maxBodyBytes)},
	}
	rr := postForm(t, srv.Routes(), "/results", form)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "No preferences found")
	assert.Contains(t, logs.String(), "results form not parsed")
	assert.Contains(t, logs.String(), "request body too large")
}

func TestResultsView_OutOfRange(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	prefs := strings.Replace(examplePrefs, `"walkability":9`, `"walkability":0`, 1)
	rr := postForm(t, srv.Routes(), "/results", url.Values{domain.PreferencesKey: {prefs}})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "walkability")
}

func TestResultsView_DelayCancelled(t *testing.T) {
	srv, _ := newTestServer(t, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	form := url.Values{domain.PreferencesKey: {examplePrefs}}
	req := httptest.NewRequest(http.MethodPost, "/results", strings.NewReader(form.Encode())).WithContext(ctx)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.Routes().ServeHTTP(rr, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not return after the client went away")
	}
	assert.Empty(t, rr.Body.String())
}

func TestResultsView_Delay(t *testing.T) {
	srv, _ := newTestServer(t, 20*time.Millisecond)
	start := time.Now()
	rr := postForm(t, srv.Routes(), "/results", url.Values{domain.PreferencesKey: {examplePrefs}})

	require.Equal(t, http.StatusOK, rr.Code)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestBrowseView(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	h := srv.Routes()

	rr := do(t, h, http.MethodGet, "/neighborhoods?city=phagwara", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "2 neighborhoods")
	assert.Contains(t, body, "Phagwara Town")
	assert.Contains(t, body, "Urban Estate")
	assert.NotContains(t, body, "Law Gate")

	rr = do(t, h, http.MethodGet, "/neighborhoods?limit=2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "offset=2")

	rr = do(t, h, http.MethodGet, "/neighborhoods?sort=rent", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDetailView(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	h := srv.Routes()

	rr := do(t, h, http.MethodGet, "/neighborhoods/6", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "<h1>Law Gate</h1>")
	assert.Contains(t, body, "Hostel Hub Zone")
	assert.Contains(t, body, "55000")

	rr = do(t, h, http.MethodGet, "/neighborhoods/99", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Neighborhood not found.")
}
