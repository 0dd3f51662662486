package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/denisok6893-rgb/neighborfit/internal/domain"
	"github.com/denisok6893-rgb/neighborfit/internal/questionnaire"
	"github.com/denisok6893-rgb/neighborfit/internal/storage"
)

const maxBodyBytes = 1 << 20

const (
	StatusOK            = "ok"
	StatusNoPreferences = "no_preferences"
)

type MatchRequest struct {
	UserPreferences json.RawMessage `json:"userPreferences"`
}

type MatchResponse struct {
	Status  string              `json:"status"`
	Matches []domain.ScoredMatch `json:"matches"`
}

// handleMatch scores the handed-off preference record. A missing or
// undecodable record is not an error: the caller gets the empty state.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", nil)
		return
	}

	var req MatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		req.UserPreferences = nil
	}

	prefs, err := domain.DecodePreferences(req.UserPreferences)
	if err != nil {
		s.logger.DebugContext(r.Context(), "no usable preferences", "error", err)
		writeJSON(w, http.StatusOK, MatchResponse{Status: StatusNoPreferences, Matches: []domain.ScoredMatch{}})
		return
	}

	matches, err := s.Engine.Match(r.Context(), prefs)
	if err != nil {
		writePreferencesError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MatchResponse{Status: StatusOK, Matches: matches})
}

func writePreferencesError(w http.ResponseWriter, err error) {
	var fes domain.FieldErrors
	switch {
	case errors.As(err, &fes):
		writeError(w, http.StatusBadRequest, "invalid_preferences", fes)
	case errors.Is(err, domain.ErrInvalidPreferences):
		writeError(w, http.StatusBadRequest, "invalid_preferences", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", nil)
	}
}

type QuestionnaireRequest struct {
	State  *questionnaire.State  `json:"state"`
	Action *questionnaire.Action `json:"action"`
}

type QuestionnaireResponse struct {
	State      questionnaire.State      `json:"state"`
	Step       questionnaire.Step       `json:"step"`
	Progress   int                      `json:"progress"`
	CanProceed bool                     `json:"canProceed"`
	Record     *domain.PreferenceRecord `json:"record"`
}

func newQuestionnaireResponse(st questionnaire.State) QuestionnaireResponse {
	st.Preferences = st.Preferences.Clone()
	resp := QuestionnaireResponse{
		State:      st,
		Step:       st.CurrentStep(),
		Progress:   st.Progress(),
		CanProceed: st.CanProceed(),
	}
	if rec, err := st.Record(); err == nil {
		resp.Record = &rec
	}
	return resp
}

// handleQuestionnaire applies one action to a client-held state. The server
// keeps nothing between calls.
func (s *Server) handleQuestionnaire(w http.ResponseWriter, r *http.Request) {
	var req QuestionnaireRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	st := questionnaire.Initial()
	if req.State != nil {
		st = *req.State
		if err := st.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_state", err.Error())
			return
		}
	}

	if req.Action == nil {
		writeJSON(w, http.StatusOK, newQuestionnaireResponse(st))
		return
	}

	next, err := questionnaire.Reduce(st, *req.Action)
	action := string(req.Action.Kind)
	switch {
	case err == nil:
		s.metrics.ObserveTransition(action, "ok")
		writeJSON(w, http.StatusOK, newQuestionnaireResponse(next))
	case errors.Is(err, questionnaire.ErrCannotProceed):
		s.metrics.ObserveTransition(action, "blocked")
		writeError(w, http.StatusConflict, "cannot_proceed", err.Error())
	default:
		s.metrics.ObserveTransition(action, "rejected")
		var fes domain.FieldErrors
		if errors.As(err, &fes) {
			writeError(w, http.StatusBadRequest, "invalid_preferences", fes)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_action", err.Error())
	}
}

type StepsResponse struct {
	Steps         []questionnaire.Step     `json:"steps"`
	Lifestyles    []domain.LifestyleOption `json:"lifestyles"`
	Priorities    []string                 `json:"priorities"`
	MaxPriorities int                      `json:"maxPriorities"`
	Initial       questionnaire.State      `json:"initial"`
}

func (s *Server) handleQuestionnaireSteps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StepsResponse{
		Steps:         questionnaire.Steps,
		Lifestyles:    domain.LifestyleOptions,
		Priorities:    domain.PriorityVocabulary,
		MaxPriorities: domain.MaxPriorities,
		Initial:       questionnaire.Initial(),
	})
}

type NeighborhoodListResponse struct {
	Limit  int                            `json:"limit"`
	Offset int                            `json:"offset"`
	Total  int                            `json:"total"`
	Items  []domain.NeighborhoodCandidate `json:"items"`
}

// parseBrowseFilter reads the browse query: city, min_category, min_score,
// sort, limit and offset.
func parseBrowseFilter(r *http.Request) (storage.BrowseFilter, error) {
	q := r.URL.Query()
	limit, offset := parseLimitOffset(r, 20, 0)
	f := storage.BrowseFilter{
		City:   strings.TrimSpace(q.Get("city")),
		Sort:   q.Get("sort"),
		Limit:  limit,
		Offset: offset,
	}

	if v := q.Get("min_category"); v != "" {
		c, ok := domain.ParseCategory(v)
		if !ok {
			return f, errors.New("unknown min_category " + strconv.Quote(v))
		}
		f.MinCategory = c
	}
	if v := q.Get("min_score"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			return f, errors.New("min_score must be an integer 0..100")
		}
		f.MinScore = n
	}
	if _, err := storage.ParseSort(f.Sort); err != nil {
		return f, err
	}
	return f, nil
}

func (s *Server) handleNeighborhoodsList(w http.ResponseWriter, r *http.Request) {
	f, err := parseBrowseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	items, total, err := s.Store.ListNeighborhoods(r.Context(), f)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list neighborhoods", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", nil)
		return
	}

	writeJSON(w, http.StatusOK, NeighborhoodListResponse{
		Limit:  f.Limit,
		Offset: f.Offset,
		Total:  total,
		Items:  items,
	})
}

func (s *Server) handleNeighborhoodGet(w http.ResponseWriter, r *http.Request) {
	n, err := s.Store.GetNeighborhood(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "get neighborhood", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", nil)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
