package domain

// Lifestyle is the self-described lifestyle chosen on the second questionnaire step.
type Lifestyle string

const (
	LifestyleYoungProfessional Lifestyle = "young-professional"
	LifestyleFamily            Lifestyle = "family"
	LifestyleStudent           Lifestyle = "student"
	LifestyleRetiree           Lifestyle = "retiree"
	LifestyleRemoteWorker      Lifestyle = "remote-worker"
)

// LifestyleOption pairs a lifestyle with the label shown next to its radio button.
type LifestyleOption struct {
	Value Lifestyle `json:"value"`
	Label string    `json:"label"`
}

// LifestyleOptions lists the selectable lifestyles in display order.
var LifestyleOptions = []LifestyleOption{
	{LifestyleYoungProfessional, "Young Professional - Career focused, social"},
	{LifestyleFamily, "Family - Schools, parks, family activities"},
	{LifestyleStudent, "Student - Budget conscious, near campus"},
	{LifestyleRetiree, "Retiree - Quiet, accessible, healthcare"},
	{LifestyleRemoteWorker, "Remote Worker - Home office, cafes, flexible"},
}

// Valid reports whether l is one of the known lifestyles. The empty value is not valid.
func (l Lifestyle) Valid() bool {
	for _, o := range LifestyleOptions {
		if o.Value == l {
			return true
		}
	}
	return false
}

// MaxPriorities is how many priorities a user may pick.
const MaxPriorities = 3

// PriorityVocabulary is the fixed set of priority tags, in display order.
var PriorityVocabulary = []string{
	"Low cost of living",
	"Short commute",
	"Walkable amenities",
	"Safe neighborhood",
	"Good schools",
	"Nightlife & dining",
	"Public transportation",
	"Parks & recreation",
	"Cultural activities",
	"Diverse community",
}

// IsPriority reports whether s belongs to PriorityVocabulary.
func IsPriority(s string) bool {
	for _, p := range PriorityVocabulary {
		if p == s {
			return true
		}
	}
	return false
}

// Preference bounds.
const (
	BudgetMin  = 500
	BudgetMax  = 5000
	BudgetStep = 100
	SliderMin  = 1
	SliderMax  = 10
)

// PreferenceRecord is one completed questionnaire. Numeric fields are the raw
// slider values; scoring derives its weights from them.
type PreferenceRecord struct {
	Budget         int       `json:"budget" validate:"min=500,max=5000"`
	Walkability    int       `json:"walkability" validate:"min=1,max=10"`
	Safety         int       `json:"safety" validate:"min=1,max=10"`
	Nightlife      int       `json:"nightlife" validate:"min=1,max=10"`
	FamilyFriendly int       `json:"familyFriendly" validate:"min=1,max=10"`
	PublicTransit  int       `json:"publicTransit" validate:"min=1,max=10"`
	Lifestyle      Lifestyle `json:"lifestyle" validate:"omitempty,oneof=young-professional family student retiree remote-worker"`
	Priorities     []string  `json:"priorities" validate:"max=3,unique,dive,priority"`
}

// Clone returns a copy that shares no memory with p.
func (p PreferenceRecord) Clone() PreferenceRecord {
	out := p
	out.Priorities = append([]string{}, p.Priorities...)
	return out
}

// HasPriority reports whether the priority tag is selected.
func (p PreferenceRecord) HasPriority(tag string) bool {
	for _, v := range p.Priorities {
		if v == tag {
			return true
		}
	}
	return false
}

// Category is one of the six scored neighborhood dimensions.
type Category string

const (
	CategoryWalkability    Category = "walkability"
	CategorySafety         Category = "safety"
	CategoryAffordability  Category = "affordability"
	CategoryNightlife      Category = "nightlife"
	CategoryFamilyFriendly Category = "familyFriendly"
	CategoryTransit        Category = "transit"
)

// Categories lists every category in scoring order.
var Categories = []Category{
	CategoryWalkability,
	CategorySafety,
	CategoryAffordability,
	CategoryNightlife,
	CategoryFamilyFriendly,
	CategoryTransit,
}

// ParseCategory maps a category key to its Category.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// CategoryScores holds a 0..100 score per category.
type CategoryScores struct {
	Walkability    int `json:"walkability" yaml:"walkability"`
	Safety         int `json:"safety" yaml:"safety"`
	Affordability  int `json:"affordability" yaml:"affordability"`
	Nightlife      int `json:"nightlife" yaml:"nightlife"`
	FamilyFriendly int `json:"familyFriendly" yaml:"familyFriendly"`
	Transit        int `json:"transit" yaml:"transit"`
}

// Get returns the score for c, or 0 for an unknown category.
func (s CategoryScores) Get(c Category) int {
	switch c {
	case CategoryWalkability:
		return s.Walkability
	case CategorySafety:
		return s.Safety
	case CategoryAffordability:
		return s.Affordability
	case CategoryNightlife:
		return s.Nightlife
	case CategoryFamilyFriendly:
		return s.FamilyFriendly
	case CategoryTransit:
		return s.Transit
	}
	return 0
}

type Demographics struct {
	MedianAge    int `json:"medianAge" yaml:"medianAge"`
	MedianIncome int `json:"medianIncome" yaml:"medianIncome"`
	Population   int `json:"population" yaml:"population"`
}

// NeighborhoodCandidate is one static catalog entry.
type NeighborhoodCandidate struct {
	ID           string         `json:"id" yaml:"id"`
	Name         string         `json:"name" yaml:"name"`
	City         string         `json:"city" yaml:"city"`
	BaseScores   CategoryScores `json:"baseScores" yaml:"baseScores"`
	Demographics Demographics   `json:"demographics" yaml:"demographics"`
	KeyFeatures  []string       `json:"keyFeatures" yaml:"keyFeatures"`
	Highlights   []string       `json:"highlights" yaml:"highlights"`
}

// ScoredMatch is a candidate ranked against one preference record.
type ScoredMatch struct {
	NeighborhoodCandidate
	OverallScore int            `json:"overallScore"`
	Scores       CategoryScores `json:"scores"`
	MatchReasons []string       `json:"matchReasons"`
}
