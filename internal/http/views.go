package httpapi

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/denisok6893-rgb/neighborfit/internal/domain"
	"github.com/denisok6893-rgb/neighborfit/internal/questionnaire"
	"github.com/denisok6893-rgb/neighborfit/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"landing", "questionnaire", "handoff", "results", "empty", "browse", "detail", "error"}

type views struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"join": func(s []string) string { return strings.Join(s, ", ") },
}

func mustParseViews() *views {
	v := &views{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		v.pages[name] = template.Must(template.New("layout.html").Funcs(funcs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
	return v
}

type page struct {
	Title string
	Data  any
}

// render executes into a buffer first so a template error never leaves a
// half-written page behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	var buf bytes.Buffer
	if err := s.views.pages[name].Execute(&buf, page{Title: title, Data: data}); err != nil {
		s.logger.ErrorContext(r.Context(), "render view", "view", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.render(w, r, status, "error", http.StatusText(status), map[string]string{"Message": msg})
}

func (s *Server) handleLandingView(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "landing", "Find Your Perfect Neighborhood", nil)
}

type sliderView struct {
	Name        string
	Label       string
	Description string
	Min         int
	Max         int
	Step        int
	Value       int
}

type optionView struct {
	Value   string
	Label   string
	Checked bool
}

type questionnaireView struct {
	StateJSON  string
	Step       questionnaire.Step
	StepNumber int
	StepCount  int
	Progress   int
	Sliders    []sliderView
	Lifestyles []optionView
	Priorities []optionView
	Selected   int
	Max        int
	First      bool
	Last       bool
	Error      string
}

var sliderText = map[questionnaire.Field][2]string{
	questionnaire.FieldBudget:         {"Monthly Housing Budget", ""},
	questionnaire.FieldWalkability:    {"Walkability Importance", "How important is it to walk to daily amenities?"},
	questionnaire.FieldNightlife:      {"Nightlife & Entertainment", "How important are restaurants, bars, and nightlife?"},
	questionnaire.FieldSafety:         {"Safety Priority", "How important is low crime and safety?"},
	questionnaire.FieldFamilyFriendly: {"Family-Friendly Features", "Schools, parks, family activities"},
	questionnaire.FieldPublicTransit:  {"Public Transportation", "Access to buses, trains, metro"},
}

func sliderValue(p domain.PreferenceRecord, f questionnaire.Field) int {
	switch f {
	case questionnaire.FieldBudget:
		return p.Budget
	case questionnaire.FieldWalkability:
		return p.Walkability
	case questionnaire.FieldSafety:
		return p.Safety
	case questionnaire.FieldNightlife:
		return p.Nightlife
	case questionnaire.FieldFamilyFriendly:
		return p.FamilyFriendly
	case questionnaire.FieldPublicTransit:
		return p.PublicTransit
	}
	return 0
}

func newQuestionnaireView(st questionnaire.State, errMsg string) (questionnaireView, error) {
	stateJSON, err := json.Marshal(st)
	if err != nil {
		return questionnaireView{}, err
	}
	step := st.CurrentStep()
	v := questionnaireView{
		StateJSON:  string(stateJSON),
		Step:       step,
		StepNumber: st.Step + 1,
		StepCount:  len(questionnaire.Steps),
		Progress:   st.Progress(),
		Selected:   len(st.Preferences.Priorities),
		Max:        domain.MaxPriorities,
		First:      st.Step == 0,
		Last:       st.Step == len(questionnaire.Steps)-1,
		Error:      errMsg,
	}
	for _, f := range step.Fields {
		switch f {
		case questionnaire.FieldLifestyle:
			for _, o := range domain.LifestyleOptions {
				v.Lifestyles = append(v.Lifestyles, optionView{
					Value: string(o.Value), Label: o.Label, Checked: st.Preferences.Lifestyle == o.Value,
				})
			}
		case questionnaire.FieldPriorities:
			for _, p := range domain.PriorityVocabulary {
				v.Priorities = append(v.Priorities, optionView{Value: p, Label: p, Checked: st.Preferences.HasPriority(p)})
			}
		default:
			lo, hi, inc, _ := f.Bounds()
			text := sliderText[f]
			v.Sliders = append(v.Sliders, sliderView{
				Name: string(f), Label: text[0], Description: text[1],
				Min: lo, Max: hi, Step: inc, Value: sliderValue(st.Preferences, f),
			})
		}
	}
	return v, nil
}

func (s *Server) renderQuestionnaire(w http.ResponseWriter, r *http.Request, status int, st questionnaire.State, errMsg string) {
	v, err := newQuestionnaireView(st, errMsg)
	if err != nil {
		s.renderError(w, r, http.StatusInternalServerError, "Could not render the questionnaire.")
		return
	}
	s.render(w, r, status, "questionnaire", "Questionnaire", v)
}

func (s *Server) handleQuestionnaireView(w http.ResponseWriter, r *http.Request) {
	s.renderQuestionnaire(w, r, http.StatusOK, questionnaire.Initial(), "")
}

// formActions turns the inputs of the current step into reducer actions.
// Navigation comes last.
func formActions(st questionnaire.State, form map[string][]string) ([]questionnaire.Action, error) {
	get := func(k string) string {
		if vs := form[k]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}

	var actions []questionnaire.Action
	for _, f := range st.CurrentStep().Fields {
		switch f {
		case questionnaire.FieldLifestyle:
			if v := get(string(f)); v != "" {
				actions = append(actions, questionnaire.Action{Kind: questionnaire.ActionSetLifestyle, Lifestyle: domain.Lifestyle(v)})
			}
		case questionnaire.FieldPriorities:
			checked := make(map[string]bool, len(form[string(f)]))
			for _, p := range form[string(f)] {
				checked[p] = true
			}
			for _, p := range st.Preferences.Priorities {
				if !checked[p] {
					actions = append(actions, questionnaire.Action{Kind: questionnaire.ActionTogglePriority, Priority: p})
				}
			}
			for _, p := range form[string(f)] {
				if !st.Preferences.HasPriority(p) {
					actions = append(actions, questionnaire.Action{Kind: questionnaire.ActionTogglePriority, Priority: p, Checked: true})
				}
			}
		default:
			raw := get(string(f))
			if raw == "" {
				continue
			}
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, errors.New(string(f) + " must be a whole number")
			}
			actions = append(actions, questionnaire.Action{Kind: questionnaire.ActionSet, Field: f, Value: n})
		}
	}

	switch get("nav") {
	case "back":
		actions = append(actions, questionnaire.Action{Kind: questionnaire.ActionBack})
	case "next", "":
		actions = append(actions, questionnaire.Action{Kind: questionnaire.ActionNext})
	default:
		return nil, errors.New("unknown navigation")
	}
	return actions, nil
}

// handleQuestionnaireSubmit advances the form. The state travels in a hidden
// field; once complete, the record is handed to /results through another form.
func (s *Server) handleQuestionnaireSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.renderQuestionnaire(w, r, http.StatusBadRequest, questionnaire.Initial(), "The form could not be read.")
		return
	}

	st := questionnaire.Initial()
	if raw := r.PostForm.Get("state"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			s.renderQuestionnaire(w, r, http.StatusBadRequest, questionnaire.Initial(), "Your answers were lost, please start again.")
			return
		}
		if err := st.Validate(); err != nil {
			s.renderQuestionnaire(w, r, http.StatusBadRequest, questionnaire.Initial(), "Your answers were lost, please start again.")
			return
		}
	}

	actions, err := formActions(st, r.PostForm)
	if err != nil {
		s.renderQuestionnaire(w, r, http.StatusBadRequest, st, err.Error())
		return
	}

	for _, a := range actions {
		next, err := questionnaire.Reduce(st, a)
		switch {
		case err == nil:
			s.metrics.ObserveTransition(string(a.Kind), "ok")
			st = next
		case errors.Is(err, questionnaire.ErrCannotProceed):
			s.metrics.ObserveTransition(string(a.Kind), "blocked")
			s.renderQuestionnaire(w, r, http.StatusOK, st, blockedMessage(st))
			return
		default:
			s.metrics.ObserveTransition(string(a.Kind), "rejected")
			s.renderQuestionnaire(w, r, http.StatusBadRequest, st, err.Error())
			return
		}
	}

	if !st.Complete {
		s.renderQuestionnaire(w, r, http.StatusOK, st, "")
		return
	}

	rec, err := st.Record()
	if err != nil {
		s.renderQuestionnaire(w, r, http.StatusBadRequest, st, err.Error())
		return
	}
	payload, err := domain.EncodePreferences(rec)
	if err != nil {
		s.renderError(w, r, http.StatusInternalServerError, "Could not prepare your matches.")
		return
	}
	s.render(w, r, http.StatusOK, "handoff", "Your Preferences", map[string]string{
		"Key":   domain.PreferencesKey,
		"Value": string(payload),
	})
}

func blockedMessage(st questionnaire.State) string {
	for _, f := range st.CurrentStep().Fields {
		switch f {
		case questionnaire.FieldLifestyle:
			return "Please choose the lifestyle that describes you best."
		case questionnaire.FieldPriorities:
			return "Please select at least one priority."
		}
	}
	return "Please complete this step."
}

type resultCard struct {
	domain.ScoredMatch
	Rank int
	Best bool
}

// handleResultsView renders the ranking for a handed-off record. GET without
// a record, or a record that cannot be decoded, shows the empty state.
func (s *Server) handleResultsView(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.logger.DebugContext(r.Context(), "results form not parsed", "error", err)
	}

	prefs, err := domain.DecodePreferences([]byte(r.Form.Get(domain.PreferencesKey)))
	if err != nil {
		s.logger.DebugContext(r.Context(), "no usable preferences", "error", err)
		s.render(w, r, http.StatusOK, "empty", "No Preferences Found", nil)
		return
	}

	if s.resultsDelay > 0 {
		select {
		case <-r.Context().Done():
			s.logger.DebugContext(r.Context(), "results abandoned", "error", r.Context().Err())
			return
		case <-time.After(s.resultsDelay):
		}
	}

	matches, err := s.Engine.Match(r.Context(), prefs)
	if err != nil {
		var fes domain.FieldErrors
		if errors.As(err, &fes) {
			s.renderError(w, r, http.StatusBadRequest, fes.Error())
			return
		}
		s.renderError(w, r, http.StatusInternalServerError, "Could not score neighborhoods.")
		return
	}

	cards := make([]resultCard, 0, len(matches))
	for i, m := range matches {
		cards = append(cards, resultCard{ScoredMatch: m, Rank: i + 1, Best: i == 0})
	}
	s.render(w, r, http.StatusOK, "results", "Your Neighborhood Matches", cards)
}

type categoryRow struct {
	Label string
	Score int
}

var categoryLabels = map[domain.Category]string{
	domain.CategoryWalkability:    "Walkability",
	domain.CategorySafety:         "Safety",
	domain.CategoryAffordability:  "Affordability",
	domain.CategoryNightlife:      "Nightlife",
	domain.CategoryFamilyFriendly: "Family Friendly",
	domain.CategoryTransit:        "Transit",
}

func categoryRows(scores domain.CategoryScores) []categoryRow {
	rows := make([]categoryRow, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		rows = append(rows, categoryRow{Label: categoryLabels[c], Score: scores.Get(c)})
	}
	return rows
}

type browseView struct {
	Filter     storage.BrowseFilter
	Items      []domain.NeighborhoodCandidate
	Total      int
	Categories []optionView
	PrevOffset int
	NextOffset int
	HasPrev    bool
	HasNext    bool
}

func (s *Server) handleBrowseView(w http.ResponseWriter, r *http.Request) {
	f, err := parseBrowseFilter(r)
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, total, err := s.Store.ListNeighborhoods(r.Context(), f)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list neighborhoods", "error", err)
		s.renderError(w, r, http.StatusInternalServerError, "Could not load neighborhoods.")
		return
	}

	v := browseView{
		Filter:     f,
		Items:      items,
		Total:      total,
		PrevOffset: max(f.Offset-f.Limit, 0),
		NextOffset: f.Offset + f.Limit,
		HasPrev:    f.Offset > 0,
		HasNext:    f.Offset+len(items) < total,
	}
	for _, c := range domain.Categories {
		v.Categories = append(v.Categories, optionView{Value: string(c), Label: categoryLabels[c], Checked: f.MinCategory == c})
	}
	s.render(w, r, http.StatusOK, "browse", "Browse Neighborhoods", v)
}

func (s *Server) handleDetailView(w http.ResponseWriter, r *http.Request) {
	n, err := s.Store.GetNeighborhood(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		s.renderError(w, r, http.StatusNotFound, "Neighborhood not found.")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "get neighborhood", "error", err)
		s.renderError(w, r, http.StatusInternalServerError, "Could not load the neighborhood.")
		return
	}
	s.render(w, r, http.StatusOK, "detail", n.Name, struct {
		domain.NeighborhoodCandidate
		Scores []categoryRow
	}{n, categoryRows(n.BaseScores)})
}
