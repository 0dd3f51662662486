package matching

import (
	"math"

	"github.com/denisok6893-rgb/neighborfit/internal/domain"
)

// Weights holds the per-category multipliers (0..1) derived from one preference record.
type Weights struct {
	Walkability    float64 `json:"walkability"`
	Safety         float64 `json:"safety"`
	Affordability  float64 `json:"affordability"`
	Nightlife      float64 `json:"nightlife"`
	FamilyFriendly float64 `json:"familyFriendly"`
	Transit        float64 `json:"transit"`
}

// DeriveWeights turns raw slider values into category weights. Affordability
// is inverted from the budget so a lower budget weighs affordability more;
// budgets above 5000 are clamped to the floor weight of 0.1.
func DeriveWeights(p domain.PreferenceRecord) Weights {
	return Weights{
		Walkability:    float64(p.Walkability) / 10,
		Safety:         float64(p.Safety) / 10,
		Affordability:  (11 - math.Min(float64(p.Budget)/500, 10)) / 10,
		Nightlife:      float64(p.Nightlife) / 10,
		FamilyFriendly: float64(p.FamilyFriendly) / 10,
		Transit:        float64(p.PublicTransit) / 10,
	}
}

// Get returns the weight for c, or 0 for an unknown category.
func (w Weights) Get(c domain.Category) float64 {
	switch c {
	case domain.CategoryWalkability:
		return w.Walkability
	case domain.CategorySafety:
		return w.Safety
	case domain.CategoryAffordability:
		return w.Affordability
	case domain.CategoryNightlife:
		return w.Nightlife
	case domain.CategoryFamilyFriendly:
		return w.FamilyFriendly
	case domain.CategoryTransit:
		return w.Transit
	}
	return 0
}
