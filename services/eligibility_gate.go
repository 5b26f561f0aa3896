package services

import (
	"time"

	"challenge-scoring-api/models"
	"challenge-scoring-api/utils"

	"github.com/shopspring/decimal"
)

const (
	MinimumApplicantAge = 18
	MaximumApplicantAge = 35

	// Narrative fields must be longer than this many characters, counted
	// after trimming surrounding whitespace. A length proxy for completeness,
	// not a review of the content.
	MinimumNarrativeLength = 100
)

// GateResult holds the mandatory pass/fail checks of one application.
type GateResult struct {
	AgeEligible          bool `json:"age_eligible"`
	RegistrationEligible bool `json:"registration_eligible"`
	RevenueEligible      bool `json:"revenue_eligible"`
	BusinessPlanEligible bool `json:"business_plan_eligible"`
	ImpactEligible       bool `json:"impact_eligible"`
	IsEligible           bool `json:"is_eligible"`
}

// EvaluateGate computes the mandatory criteria. asOf is the evaluation day;
// the result depends on nothing else.
func EvaluateGate(applicant models.Applicant, business models.Business, asOf time.Time) GateResult {
	age := applicant.AgeOn(asOf)

	res := GateResult{
		AgeEligible:          age >= MinimumApplicantAge && age <= MaximumApplicantAge,
		RegistrationEligible: business.IsRegistered,
		RevenueEligible:      business.RevenueLastTwoYears.GreaterThan(decimal.Zero),
		BusinessPlanEligible: utils.TextLength(business.Description) > MinimumNarrativeLength &&
			utils.TextLength(business.ProblemSolved) > MinimumNarrativeLength,
		ImpactEligible: utils.TextLength(business.ClimateAdaptationContribution) > MinimumNarrativeLength &&
			utils.TextLength(business.ClimateExtremeImpact) > MinimumNarrativeLength,
	}
	res.IsEligible = res.AgeEligible && res.RegistrationEligible && res.RevenueEligible &&
		res.BusinessPlanEligible && res.ImpactEligible
	return res
}

// GateFromResult rebuilds the gate flags stored on an eligibility result.
func GateFromResult(r *models.EligibilityResult) GateResult {
	if r == nil {
		return GateResult{}
	}
	return GateResult{
		AgeEligible:          r.AgeEligible,
		RegistrationEligible: r.RegistrationEligible,
		RevenueEligible:      r.RevenueEligible,
		BusinessPlanEligible: r.BusinessPlanEligible,
		ImpactEligible:       r.ImpactEligible,
		IsEligible:           r.GatePassed(),
	}
}

// applyTo copies the mandatory flags onto a result row.
func (g GateResult) applyTo(r *models.EligibilityResult) {
	r.AgeEligible = g.AgeEligible
	r.RegistrationEligible = g.RegistrationEligible
	r.RevenueEligible = g.RevenueEligible
	r.BusinessPlanEligible = g.BusinessPlanEligible
	r.ImpactEligible = g.ImpactEligible
}

// FailedChecks names the checks that did not pass, in a fixed order.
func (g GateResult) FailedChecks() []string {
	var failed []string
	if !g.AgeEligible {
		failed = append(failed, "age")
	}
	if !g.RegistrationEligible {
		failed = append(failed, "registration")
	}
	if !g.RevenueEligible {
		failed = append(failed, "revenue")
	}
	if !g.BusinessPlanEligible {
		failed = append(failed, "business_plan")
	}
	if !g.ImpactEligible {
		failed = append(failed, "impact")
	}
	return failed
}
