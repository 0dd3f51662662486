package matching

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/denisok6893-rgb/neighborfit/internal/domain"
	"github.com/denisok6893-rgb/neighborfit/internal/observability"
)

// categoryCount is the fixed divisor of the overall score. It is not the sum
// of the weights, so most realistic inputs land well under 100.
const categoryCount = 6

// A reason fires when the neighborhood scores at least reasonBaseMin in the
// category and the user rated it at least reasonPreferenceMin on the 1..10 scale.
const (
	reasonBaseMin       = 80
	reasonPreferenceMin = 7
)

type reasonRule struct {
	category   domain.Category
	preference func(domain.PreferenceRecord) int
	message    string
}

// reasonRules are evaluated in this order.
var reasonRules = []reasonRule{
	{
		category:   domain.CategoryWalkability,
		preference: func(p domain.PreferenceRecord) int { return p.Walkability },
		message:    "Excellent walkability matches your preference",
	},
	{
		category:   domain.CategorySafety,
		preference: func(p domain.PreferenceRecord) int { return p.Safety },
		message:    "High safety rating aligns with your priorities",
	},
	{
		category:   domain.CategoryNightlife,
		preference: func(p domain.PreferenceRecord) int { return p.Nightlife },
		message:    "Vibrant nightlife scene matches your lifestyle",
	},
	{
		category:   domain.CategoryFamilyFriendly,
		preference: func(p domain.PreferenceRecord) int { return p.FamilyFriendly },
		message:    "Family-friendly amenities match your needs",
	},
}

// Score ranks catalog against prefs. It rejects out-of-range preferences with
// an error matching domain.ErrInvalidPreferences; an empty catalog yields an
// empty result. Equal scores keep catalog order. Neither input is modified.
func Score(prefs domain.PreferenceRecord, catalog []domain.NeighborhoodCandidate) ([]domain.ScoredMatch, error) {
	if err := prefs.ValidateRanges(); err != nil {
		return nil, err
	}

	w := DeriveWeights(prefs)
	out := make([]domain.ScoredMatch, 0, len(catalog))
	for _, n := range catalog {
		out = append(out, scoreOne(prefs, w, n))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].OverallScore > out[j].OverallScore })
	return out, nil
}

func scoreOne(prefs domain.PreferenceRecord, w Weights, n domain.NeighborhoodCandidate) domain.ScoredMatch {
	var sum float64
	for _, c := range domain.Categories {
		sum += float64(n.BaseScores.Get(c)) * w.Get(c)
	}

	n.KeyFeatures = append([]string{}, n.KeyFeatures...)
	n.Highlights = append([]string{}, n.Highlights...)

	return domain.ScoredMatch{
		NeighborhoodCandidate: n,
		OverallScore:          roundHalfUp(sum / categoryCount),
		Scores:                n.BaseScores,
		MatchReasons:          matchReasons(prefs, n.BaseScores),
	}
}

func matchReasons(prefs domain.PreferenceRecord, scores domain.CategoryScores) []string {
	reasons := []string{}
	for _, r := range reasonRules {
		if scores.Get(r.category) >= reasonBaseMin && r.preference(prefs) >= reasonPreferenceMin {
			reasons = append(reasons, r.message)
		}
	}
	return reasons
}

// roundHalfUp rounds .5 towards +Inf.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// Engine serves scoring requests against a fixed catalog.
type Engine struct {
	catalog []domain.NeighborhoodCandidate
	logger  *observability.Logger
	metrics *observability.Metrics
}

func NewEngine(catalog []domain.NeighborhoodCandidate, logger *observability.Logger, metrics *observability.Metrics) *Engine {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Engine{
		catalog: append([]domain.NeighborhoodCandidate{}, catalog...),
		logger:  logger,
		metrics: metrics,
	}
}

// Catalog returns a copy of the candidates the engine scores against.
func (e *Engine) Catalog() []domain.NeighborhoodCandidate {
	return append([]domain.NeighborhoodCandidate{}, e.catalog...)
}

// Match scores prefs against the engine's catalog.
func (e *Engine) Match(ctx context.Context, prefs domain.PreferenceRecord) ([]domain.ScoredMatch, error) {
	start := time.Now()
	matches, err := Score(prefs, e.catalog)
	if err != nil {
		e.metrics.ObserveMatch("invalid", time.Since(start))
		e.logger.WarnContext(ctx, "preferences rejected", "error", err)
		return nil, err
	}
	e.metrics.ObserveMatch("ok", time.Since(start))

	if len(matches) > 0 {
		e.logger.DebugContext(ctx, "neighborhoods scored",
			"candidates", len(matches),
			"top_id", matches[0].ID,
			"top_score", matches[0].OverallScore,
		)
	}
	return matches, nil
}
