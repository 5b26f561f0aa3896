package services

import (
	"sort"
	"sync"

	"challenge-scoring-api/models"
	"challenge-scoring-api/utils"

	"github.com/shopspring/decimal"
)

// ScorerFunc computes the fraction (0..1) of a criterion's points earned by
// an application. Implementations must depend only on the application data.
type ScorerFunc func(app models.Application) float64

// ScorerRegistry maps scorer keys to deterministic scoring functions.
type ScorerRegistry struct {
	mu      sync.RWMutex
	scorers map[string]ScorerFunc
	aliases map[string]string
}

// NewScorerRegistry returns a registry holding the built-in scorers.
func NewScorerRegistry() *ScorerRegistry {
	r := &ScorerRegistry{
		scorers: make(map[string]ScorerFunc),
		aliases: make(map[string]string),
	}
	r.Register("innovation", scoreInnovation)
	r.Register("market_potential", scoreMarketPotential, "market")
	r.Register("financial_health", scoreFinancialHealth, "financial", "finance", "revenue")
	r.Register("job_creation", scoreJobCreation, "employment", "jobs")
	r.Register("climate_impact", scoreClimateImpact, "climate", "impact", "climate_adaptation")
	r.Register("gender_inclusion", scoreGenderInclusion, "gender", "inclusion")
	r.Register("funding_leverage", scoreFundingLeverage, "funding")
	return r
}

// Register adds or replaces a scorer under key and optional aliases.
func (r *ScorerRegistry) Register(key string, fn ScorerFunc, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := utils.NormalizeKey(key)
	r.scorers[k] = fn
	for _, alias := range aliases {
		r.aliases[utils.NormalizeKey(alias)] = k
	}
}

// Keys lists registered scorer keys in sorted order.
func (r *ScorerRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.scorers))
	for k := range r.scorers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *ScorerRegistry) resolve(key string) (string, ScorerFunc, bool) {
	k := utils.NormalizeKey(key)
	if k == "" {
		return "", nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fn, ok := r.scorers[k]; ok {
		return k, fn, true
	}
	if target, ok := r.aliases[k]; ok {
		return target, r.scorers[target], true
	}
	return "", nil, false
}

// Lookup selects the scorer of a criterion: the explicit scorer key first,
// the category second.
func (r *ScorerRegistry) Lookup(c models.ScoringCriteria) (string, ScorerFunc, bool) {
	if c.ScorerKey != "" {
		return r.resolve(c.ScorerKey)
	}
	return r.resolve(c.Category)
}

// Has reports whether key names a registered scorer or alias.
func (r *ScorerRegistry) Has(key string) bool {
	_, _, ok := r.resolve(key)
	return ok
}

var (
	tenThousand     = decimal.NewFromInt(10000)
	fiftyThousand   = decimal.NewFromInt(50000)
	hundredThousand = decimal.NewFromInt(100000)
)

func lengthTier(text string) float64 {
	n := utils.TextLength(text)
	switch {
	case n >= 600:
		return 1
	case n >= 300:
		return 0.7
	case n > MinimumNarrativeLength:
		return 0.4
	}
	return 0
}

func revenueTier(revenue decimal.Decimal) float64 {
	switch {
	case revenue.GreaterThanOrEqual(hundredThousand):
		return 1
	case revenue.GreaterThanOrEqual(fiftyThousand):
		return 0.75
	case revenue.GreaterThanOrEqual(tenThousand):
		return 0.5
	case revenue.GreaterThan(decimal.Zero):
		return 0.25
	}
	return 0
}

func scoreInnovation(app models.Application) float64 {
	return 0.5*lengthTier(app.Business.Description) + 0.5*lengthTier(app.Business.ProblemSolved)
}

func scoreMarketPotential(app models.Application) float64 {
	segments := 0
	for _, s := range app.Business.CustomerSegments() {
		if utils.SanitizeInput(s) != "" {
			segments++
		}
	}
	segmentTier := 0.0
	switch {
	case segments >= 3:
		segmentTier = 1
	case segments == 2:
		segmentTier = 0.7
	case segments == 1:
		segmentTier = 0.4
	}
	return 0.5*segmentTier + 0.5*revenueTier(app.Business.RevenueLastTwoYears)
}

func scoreFinancialHealth(app models.Application) float64 {
	funding := 0.0
	if app.Business.HasExternalFunding && app.Business.ExternalFundingAmount.GreaterThan(decimal.Zero) {
		funding = 0.5
		if app.Business.ExternalFundingAmount.GreaterThanOrEqual(fiftyThousand) {
			funding = 1
		}
	}
	return 0.6*revenueTier(app.Business.RevenueLastTwoYears) + 0.4*funding
}

func scoreJobCreation(app models.Application) float64 {
	n := app.Business.TotalEmployees()
	switch {
	case n > 50:
		return 1
	case n > 10:
		return 0.8
	case n > 5:
		return 0.6
	case n > 0:
		return 0.3
	}
	return 0
}

func scoreClimateImpact(app models.Application) float64 {
	return 0.5*lengthTier(app.Business.ClimateAdaptationContribution) + 0.5*lengthTier(app.Business.ClimateExtremeImpact)
}

func scoreGenderInclusion(app models.Application) float64 {
	score := 0.0
	if app.Applicant.Gender == models.GenderFemale {
		score = 0.3
	}
	if total := app.Business.TotalEmployees(); total > 0 {
		score += 0.7 * float64(app.Business.FemaleEmployees()) / float64(total)
	}
	return score
}

func scoreFundingLeverage(app models.Application) float64 {
	b := app.Business
	if !b.HasExternalFunding || !b.ExternalFundingAmount.GreaterThan(decimal.Zero) {
		return 0
	}
	if !b.RevenueLastTwoYears.GreaterThan(decimal.Zero) || b.ExternalFundingAmount.GreaterThanOrEqual(b.RevenueLastTwoYears) {
		return 1
	}
	ratio, _ := b.ExternalFundingAmount.Div(b.RevenueLastTwoYears).Float64()
	return ratio
}
