// Package questionnaire models the four-step preference form as a reducer:
// every answer or navigation is an Action applied to an immutable State.
package questionnaire

import (
	"errors"
	"fmt"
	"math"

	"github.com/denisok6893-rgb/neighborfit/internal/domain"
)

var (
	ErrInvalidAction = errors.New("invalid questionnaire action")
	ErrCannotProceed = errors.New("cannot proceed past this step")
)

// Field names one answer on the form; values match the handoff JSON keys.
type Field string

const (
	FieldBudget         Field = "budget"
	FieldWalkability    Field = "walkability"
	FieldSafety         Field = "safety"
	FieldNightlife      Field = "nightlife"
	FieldFamilyFriendly Field = "familyFriendly"
	FieldPublicTransit  Field = "publicTransit"
	FieldLifestyle      Field = "lifestyle"
	FieldPriorities     Field = "priorities"
)

// Bounds returns the slider range of f. ok is false for non-slider fields.
func (f Field) Bounds() (lo, hi, step int, ok bool) {
	switch f {
	case FieldBudget:
		return domain.BudgetMin, domain.BudgetMax, domain.BudgetStep, true
	case FieldWalkability, FieldSafety, FieldNightlife, FieldFamilyFriendly, FieldPublicTransit:
		return domain.SliderMin, domain.SliderMax, 1, true
	}
	return 0, 0, 0, false
}

type Step struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Fields      []Field `json:"fields"`
}

// Steps are shown in this order.
var Steps = []Step{
	{
		Title:       "Budget & Housing",
		Description: "Tell us about your housing budget preferences",
		Fields:      []Field{FieldBudget, FieldWalkability},
	},
	{
		Title:       "Lifestyle Preferences",
		Description: "What matters most in your daily life?",
		Fields:      []Field{FieldLifestyle, FieldNightlife},
	},
	{
		Title:       "Safety & Environment",
		Description: "Your comfort and security preferences",
		Fields:      []Field{FieldSafety, FieldFamilyFriendly, FieldPublicTransit},
	},
	{
		Title:       "Priorities",
		Description: "Rank what's most important to you",
		Fields:      []Field{FieldPriorities},
	},
}

const lastStep = 3

type ActionKind string

const (
	ActionSet            ActionKind = "set"
	ActionSetLifestyle   ActionKind = "setLifestyle"
	ActionTogglePriority ActionKind = "togglePriority"
	ActionNext           ActionKind = "next"
	ActionBack           ActionKind = "back"
)

// Action is one user input. Which fields matter depends on Kind: ActionSet
// uses Field and Value, ActionSetLifestyle uses Lifestyle, ActionTogglePriority
// uses Priority and Checked.
type Action struct {
	Kind      ActionKind       `json:"kind"`
	Field     Field            `json:"field,omitempty"`
	Value     int              `json:"value,omitempty"`
	Lifestyle domain.Lifestyle `json:"lifestyle,omitempty"`
	Priority  string           `json:"priority,omitempty"`
	Checked   bool             `json:"checked,omitempty"`
}

// State is the in-progress form. Complete is set once Next is accepted on
// the last step.
type State struct {
	Step        int                     `json:"step"`
	Preferences domain.PreferenceRecord `json:"preferences"`
	Complete    bool                    `json:"complete"`
}

// Initial returns the form as first shown.
func Initial() State {
	return State{
		Preferences: domain.PreferenceRecord{
			Budget:         2500,
			Walkability:    7,
			Safety:         8,
			Nightlife:      5,
			FamilyFriendly: 5,
			PublicTransit:  6,
			Priorities:     []string{},
		},
	}
}

func (s State) CurrentStep() Step { return Steps[s.Step] }

// Progress is the completion percentage shown above the form.
func (s State) Progress() int {
	return int(math.Round(float64(s.Step+1) / float64(len(Steps)) * 100))
}

// CanProceed reports whether Next would be accepted on the current step.
func (s State) CanProceed() bool {
	switch s.Step {
	case 1:
		return s.Preferences.Lifestyle != ""
	case lastStep:
		return len(s.Preferences.Priorities) > 0
	}
	return true
}

// Validate checks a state received from a client before it is reduced.
func (s State) Validate() error {
	if s.Step < 0 || s.Step > lastStep {
		return fmt.Errorf("%w: step %d out of range", ErrInvalidAction, s.Step)
	}
	if err := s.Preferences.Validate(); err != nil {
		return err
	}
	if s.Preferences.Budget%domain.BudgetStep != 0 {
		return domain.FieldErrors{{Field: string(FieldBudget), Rule: "step", Param: "100", Value: s.Preferences.Budget}}
	}
	return nil
}

// Record returns the submitted preference record of a completed form.
func (s State) Record() (domain.PreferenceRecord, error) {
	if !s.Complete {
		return domain.PreferenceRecord{}, fmt.Errorf("%w: questionnaire not complete", ErrCannotProceed)
	}
	if err := CheckSubmittable(s.Preferences); err != nil {
		return domain.PreferenceRecord{}, err
	}
	return s.Preferences.Clone(), nil
}

// CheckSubmittable applies the collection rules on top of field validation:
// a lifestyle, at least one priority, and a budget on the 100 step.
func CheckSubmittable(p domain.PreferenceRecord) error {
	if err := p.Validate(); err != nil {
		return err
	}
	var fes domain.FieldErrors
	if p.Budget%domain.BudgetStep != 0 {
		fes = append(fes, domain.FieldError{Field: string(FieldBudget), Rule: "step", Param: "100", Value: p.Budget})
	}
	if p.Lifestyle == "" {
		fes = append(fes, domain.FieldError{Field: string(FieldLifestyle), Rule: "required", Value: ""})
	}
	if len(p.Priorities) == 0 {
		fes = append(fes, domain.FieldError{Field: string(FieldPriorities), Rule: "min", Param: "1", Value: 0})
	}
	if len(fes) > 0 {
		return fes
	}
	return nil
}

// Reduce applies a to s and returns the next state. s is never modified.
func Reduce(s State, a Action) (State, error) {
	next := State{Step: s.Step, Preferences: s.Preferences.Clone(), Complete: s.Complete}
	if next.Complete {
		return s, fmt.Errorf("%w: questionnaire already submitted", ErrInvalidAction)
	}
	if next.Step < 0 || next.Step > lastStep {
		return s, fmt.Errorf("%w: step %d out of range", ErrInvalidAction, next.Step)
	}

	switch a.Kind {
	case ActionSet:
		if !onStep(next.Step, a.Field) {
			return s, fmt.Errorf("%w: %q is not on step %d", ErrInvalidAction, a.Field, next.Step+1)
		}
		lo, hi, step, ok := a.Field.Bounds()
		if !ok {
			return s, fmt.Errorf("%w: %q is not a slider", ErrInvalidAction, a.Field)
		}
		if a.Value < lo || a.Value > hi || (a.Value-lo)%step != 0 {
			return s, fmt.Errorf("%w: %s must be %d..%d in steps of %d, got %d", ErrInvalidAction, a.Field, lo, hi, step, a.Value)
		}
		setSlider(&next.Preferences, a.Field, a.Value)

	case ActionSetLifestyle:
		if !onStep(next.Step, FieldLifestyle) {
			return s, fmt.Errorf("%w: lifestyle is not on step %d", ErrInvalidAction, next.Step+1)
		}
		if !a.Lifestyle.Valid() {
			return s, fmt.Errorf("%w: unknown lifestyle %q", ErrInvalidAction, a.Lifestyle)
		}
		next.Preferences.Lifestyle = a.Lifestyle

	case ActionTogglePriority:
		if !onStep(next.Step, FieldPriorities) {
			return s, fmt.Errorf("%w: priorities are not on step %d", ErrInvalidAction, next.Step+1)
		}
		if !domain.IsPriority(a.Priority) {
			return s, fmt.Errorf("%w: unknown priority %q", ErrInvalidAction, a.Priority)
		}
		next.Preferences.Priorities = togglePriority(next.Preferences.Priorities, a.Priority, a.Checked)

	case ActionNext:
		if !next.CanProceed() {
			return s, fmt.Errorf("%w: step %d", ErrCannotProceed, next.Step+1)
		}
		if next.Step < lastStep {
			next.Step++
			break
		}
		if err := CheckSubmittable(next.Preferences); err != nil {
			return s, err
		}
		next.Complete = true

	case ActionBack:
		if next.Step > 0 {
			next.Step--
		}

	default:
		return s, fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, a.Kind)
	}

	return next, nil
}

func onStep(step int, f Field) bool {
	for _, sf := range Steps[step].Fields {
		if sf == f {
			return true
		}
	}
	return false
}

func setSlider(p *domain.PreferenceRecord, f Field, v int) {
	switch f {
	case FieldBudget:
		p.Budget = v
	case FieldWalkability:
		p.Walkability = v
	case FieldSafety:
		p.Safety = v
	case FieldNightlife:
		p.Nightlife = v
	case FieldFamilyFriendly:
		p.FamilyFriendly = v
	case FieldPublicTransit:
		p.PublicTransit = v
	}
}

// togglePriority adds or removes tag. Adding past MaxPriorities is ignored.
func togglePriority(current []string, tag string, checked bool) []string {
	has := false
	for _, p := range current {
		if p == tag {
			has = true
			break
		}
	}
	switch {
	case checked && !has && len(current) < domain.MaxPriorities:
		return append(current, tag)
	case !checked && has:
		out := make([]string, 0, len(current)-1)
		for _, p := range current {
			if p != tag {
				out = append(out, p)
			}
		}
		return out
	}
	return current
}
