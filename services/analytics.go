package services

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"challenge-scoring-api/config"
	"challenge-scoring-api/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultTimelineMonths = 6

// Age bucket labels.
const (
	AgeBucket18to24 = "18-24"
	AgeBucket25to29 = "25-29"
	AgeBucket30to35 = "30-35"
	AgeBucketOther  = "other"
)

var (
	ageBucketLabels        = []string{AgeBucket18to24, AgeBucket25to29, AgeBucket30to35, AgeBucketOther}
	revenueBucketLabels    = []string{"0", "1-9999", "10000-49999", "50000-99999", "100000+"}
	employmentBucketLabels = []string{"0", "1-5", "6-10", "11-50", "51+"}
	scoreBucketLabels      = []string{"0-19", "20-39", "40-59", "60-79", "80-100"}
	genderLabels           = []string{models.GenderFemale, models.GenderMale, models.GenderOther}
)

// AnalyticsFilter narrows the applications a report covers. Zero values
// match everything.
type AnalyticsFilter struct {
	Statuses       []models.ApplicationStatus `json:"statuses,omitempty"`
	SubmittedFrom  *time.Time                 `json:"submitted_from,omitempty"`
	SubmittedTo    *time.Time                 `json:"submitted_to,omitempty"`
	Country        string                     `json:"country,omitempty"`
	Gender         string                     `json:"gender,omitempty"`
	AgeBucket      string                     `json:"age_bucket,omitempty"`
	EducationLevel string                     `json:"education_level,omitempty"`
	TimelineMonths int                        `json:"timeline_months,omitempty"`
}

type CountShare struct {
	Label      string `json:"label"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

type Overview struct {
	TotalApplications    int             `json:"total_applications"`
	EligibleApplications int             `json:"eligible_applications"`
	EligibilityRate      int             `json:"eligibility_rate"`
	FemaleApplicants     int             `json:"female_applicants"`
	MaleApplicants       int             `json:"male_applicants"`
	AverageAge           float64         `json:"average_age"`
	TotalRevenue         decimal.Decimal `json:"total_revenue"`
	AverageRevenue       decimal.Decimal `json:"average_revenue"`
	TotalEmployees       int             `json:"total_employees"`
	FemaleEmployees      int             `json:"female_employees"`
}

type Demographics struct {
	Gender    []CountShare `json:"gender"`
	AgeGroups []CountShare `json:"age_groups"`
	Education []CountShare `json:"education"`
	Countries []CountShare `json:"countries"`
}

type BusinessBreakdown struct {
	Revenue      []CountShare `json:"revenue"`
	Employment   []CountShare `json:"employment"`
	Registration []CountShare `json:"registration"`
}

type CriterionUtilization struct {
	CriteriaID   int     `json:"criteria_id"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	MaxPoints    float64 `json:"max_points"`
	Scored       int     `json:"scored"`
	AverageScore float64 `json:"average_score"`
	Utilization  int     `json:"utilization"`
}

type EvaluationBreakdown struct {
	ConfigurationID *int                   `json:"configuration_id,omitempty"`
	Evaluated       int                    `json:"evaluated"`
	AverageScore    float64                `json:"average_score"`
	Criteria        []CriterionUtilization `json:"criteria"`
	ScoreHistogram  []CountShare           `json:"score_histogram"`
}

type EvaluatorPerformance struct {
	EvaluatorID    int        `json:"evaluator_id"`
	Name           string     `json:"name"`
	Assigned       int        `json:"assigned"`
	Completed      int        `json:"completed"`
	CompletionRate int        `json:"completion_rate"`
	AverageScore   float64    `json:"average_score"`
	LastActivity   *time.Time `json:"last_activity,omitempty"`
}

type TimelinePoint struct {
	Month       string `json:"month"`
	Submissions int    `json:"submissions"`
	Eligible    int    `json:"eligible"`
	Female      int    `json:"female"`
}

type AnalyticsReport struct {
	GeneratedAt  time.Time              `json:"generated_at"`
	Filter       AnalyticsFilter        `json:"filter"`
	Overview     Overview               `json:"overview"`
	Demographics Demographics           `json:"demographics"`
	Business     BusinessBreakdown      `json:"business"`
	Evaluation   EvaluationBreakdown    `json:"evaluation"`
	Evaluators   []EvaluatorPerformance `json:"evaluators"`
	Timeline     []TimelinePoint        `json:"timeline"`
	Warnings     []string               `json:"warnings,omitempty"`
}

// AnalyticsService serves reports, from cache when possible.
type AnalyticsService struct {
	store          AnalyticsStore
	cache          AnalyticsCache
	timelineMonths int
	now            func() time.Time
}

func NewAnalyticsService(store AnalyticsStore, cache AnalyticsCache, timelineMonths int) *AnalyticsService {
	if cache == nil {
		cache = noopCache{}
	}
	if timelineMonths <= 0 {
		timelineMonths = DefaultTimelineMonths
	}
	return &AnalyticsService{store: store, cache: cache, timelineMonths: timelineMonths, now: time.Now}
}

// GetAnalytics builds the report for filter. Failures to read the data
// degrade to a partial or empty report carrying warnings; partial reports
// are not cached.
func (s *AnalyticsService) GetAnalytics(ctx context.Context, actor Actor, filter AnalyticsFilter) (*AnalyticsReport, error) {
	if err := requireRole(actor, "get_analytics", models.RoleAdmin, models.RoleEvaluator); err != nil {
		return nil, err
	}
	filter, err := s.normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	cached, err := s.cache.Get(ctx, filter)
	if err != nil {
		config.Logger.Warn("analytics cache read failed", zap.Error(err))
	}
	if cached != nil {
		AnalyticsCacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	}
	AnalyticsCacheLookups.WithLabelValues("miss").Inc()

	snap, err := s.store.LoadAnalyticsSnapshot(ctx, ApplicationFilter{
		Statuses:      filter.Statuses,
		SubmittedFrom: filter.SubmittedFrom,
		SubmittedTo:   filter.SubmittedTo,
	})
	if err != nil {
		config.Logger.Error("analytics snapshot failed", zap.Error(err))
		snap = &AnalyticsSnapshot{Warnings: []string{"applications unavailable"}}
	}

	report := BuildReport(snap, filter, s.now())
	if len(report.Warnings) == 0 {
		if err := s.cache.Put(ctx, filter, report); err != nil {
			config.Logger.Warn("analytics cache write failed", zap.Error(err))
		}
	}
	return report, nil
}

func (s *AnalyticsService) normalizeFilter(f AnalyticsFilter) (AnalyticsFilter, error) {
	if f.TimelineMonths <= 0 {
		f.TimelineMonths = s.timelineMonths
	}
	if f.TimelineMonths > 60 {
		return f, validationError("timeline_months", "must be at most 60")
	}
	if f.SubmittedFrom != nil && f.SubmittedTo != nil && f.SubmittedFrom.After(*f.SubmittedTo) {
		return f, validationError("submitted_from", "must not be after submitted_to")
	}
	f.Gender = strings.ToLower(strings.TrimSpace(f.Gender))
	f.Country = strings.TrimSpace(f.Country)
	f.EducationLevel = strings.TrimSpace(f.EducationLevel)
	f.AgeBucket = strings.TrimSpace(f.AgeBucket)
	if f.AgeBucket != "" && !containsLabel(ageBucketLabels, f.AgeBucket) {
		return f, validationError("age_bucket", "unknown age bucket %q", f.AgeBucket)
	}
	f.Statuses = append([]models.ApplicationStatus(nil), f.Statuses...)
	sort.Slice(f.Statuses, func(i, j int) bool { return f.Statuses[i] < f.Statuses[j] })
	return f, nil
}

// BuildReport computes the report from a snapshot. It depends only on its
// arguments.
func BuildReport(snap *AnalyticsSnapshot, filter AnalyticsFilter, now time.Time) *AnalyticsReport {
	if filter.TimelineMonths <= 0 {
		filter.TimelineMonths = DefaultTimelineMonths
	}
	report := &AnalyticsReport{
		GeneratedAt: now,
		Filter:      filter,
		Warnings:    append([]string(nil), snap.Warnings...),
	}

	var apps []models.Application
	included := make(map[int]bool)
	for _, app := range snap.Applications {
		if matchesFilter(app, filter, now) {
			apps = append(apps, app)
			included[app.ApplicationID] = true
		}
	}

	report.Overview = buildOverview(apps, now)
	report.Demographics = buildDemographics(apps, now)
	report.Business = buildBusiness(apps)
	report.Evaluation = buildEvaluation(apps, snap.Active, snap.Scores, included)
	report.Evaluators = buildEvaluators(snap, included)
	report.Timeline = buildTimeline(apps, filter.TimelineMonths, now)
	return report
}

func matchesFilter(app models.Application, f AnalyticsFilter, now time.Time) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if app.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.SubmittedFrom != nil || f.SubmittedTo != nil {
		if app.SubmittedAt == nil {
			return false
		}
		if f.SubmittedFrom != nil && app.SubmittedAt.Before(*f.SubmittedFrom) {
			return false
		}
		if f.SubmittedTo != nil && app.SubmittedAt.After(*f.SubmittedTo) {
			return false
		}
	}
	if f.Country != "" && !strings.EqualFold(app.Applicant.ResidenceCountry, f.Country) {
		return false
	}
	if f.Gender != "" && genderLabel(app.Applicant.Gender) != f.Gender {
		return false
	}
	if f.EducationLevel != "" && !strings.EqualFold(app.Applicant.EducationLevel, f.EducationLevel) {
		return false
	}
	if f.AgeBucket != "" && AgeBucket(app.Applicant.AgeOn(now)) != f.AgeBucket {
		return false
	}
	return true
}

// AgeBucket names the reporting age group of age.
func AgeBucket(age int) string {
	switch {
	case age >= 18 && age <= 24:
		return AgeBucket18to24
	case age >= 25 && age <= 29:
		return AgeBucket25to29
	case age >= 30 && age <= 35:
		return AgeBucket30to35
	}
	return AgeBucketOther
}

func revenueBucket(revenue decimal.Decimal) string {
	switch {
	case !revenue.GreaterThan(decimal.Zero):
		return revenueBucketLabels[0]
	case revenue.LessThan(tenThousand):
		return revenueBucketLabels[1]
	case revenue.LessThan(fiftyThousand):
		return revenueBucketLabels[2]
	case revenue.LessThan(hundredThousand):
		return revenueBucketLabels[3]
	}
	return revenueBucketLabels[4]
}

func employmentBucket(n int) string {
	switch {
	case n <= 0:
		return employmentBucketLabels[0]
	case n <= 5:
		return employmentBucketLabels[1]
	case n <= 10:
		return employmentBucketLabels[2]
	case n <= 50:
		return employmentBucketLabels[3]
	}
	return employmentBucketLabels[4]
}

func scoreBucket(score float64) string {
	switch {
	case score < 20:
		return scoreBucketLabels[0]
	case score < 40:
		return scoreBucketLabels[1]
	case score < 60:
		return scoreBucketLabels[2]
	case score < 80:
		return scoreBucketLabels[3]
	}
	return scoreBucketLabels[4]
}

func genderLabel(g string) string {
	switch strings.ToLower(strings.TrimSpace(g)) {
	case models.GenderFemale:
		return models.GenderFemale
	case models.GenderMale:
		return models.GenderMale
	}
	return models.GenderOther
}

func percentage(count, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(count) * 100 / float64(total)))
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

// fixedDistribution keeps the label order and reports empty buckets.
func fixedDistribution(labels []string, counts map[string]int, total int) []CountShare {
	out := make([]CountShare, 0, len(labels))
	for _, label := range labels {
		out = append(out, CountShare{Label: label, Count: counts[label], Percentage: percentage(counts[label], total)})
	}
	return out
}

// openDistribution orders labels by count, then alphabetically.
func openDistribution(counts map[string]int, total int) []CountShare {
	out := make([]CountShare, 0, len(counts))
	for label, n := range counts {
		out = append(out, CountShare{Label: label, Count: n, Percentage: percentage(n, total)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func isEligible(app models.Application) bool {
	return app.EligibilityResult != nil && app.EligibilityResult.IsEligible
}

func buildOverview(apps []models.Application, now time.Time) Overview {
	o := Overview{TotalApplications: len(apps), TotalRevenue: decimal.Zero, AverageRevenue: decimal.Zero}
	ageSum, aged := 0, 0
	for _, app := range apps {
		if isEligible(app) {
			o.EligibleApplications++
		}
		switch genderLabel(app.Applicant.Gender) {
		case models.GenderFemale:
			o.FemaleApplicants++
		case models.GenderMale:
			o.MaleApplicants++
		}
		if !app.Applicant.DateOfBirth.IsZero() {
			ageSum += app.Applicant.AgeOn(now)
			aged++
		}
		o.TotalRevenue = o.TotalRevenue.Add(app.Business.RevenueLastTwoYears)
		o.TotalEmployees += app.Business.TotalEmployees()
		o.FemaleEmployees += app.Business.FemaleEmployees()
	}
	o.EligibilityRate = percentage(o.EligibleApplications, o.TotalApplications)
	if aged > 0 {
		o.AverageAge = math.Round(float64(ageSum)/float64(aged)*10) / 10
	}
	if len(apps) > 0 {
		o.AverageRevenue = o.TotalRevenue.Div(decimal.NewFromInt(int64(len(apps)))).Round(2)
	}
	return o
}

func buildDemographics(apps []models.Application, now time.Time) Demographics {
	gender := make(map[string]int)
	ages := make(map[string]int)
	education := make(map[string]int)
	countries := make(map[string]int)
	for _, app := range apps {
		gender[genderLabel(app.Applicant.Gender)]++
		ages[AgeBucket(app.Applicant.AgeOn(now))]++
		education[labelOrUnspecified(app.Applicant.EducationLevel)]++
		countries[labelOrUnspecified(app.Applicant.ResidenceCountry)]++
	}
	total := len(apps)
	return Demographics{
		Gender:    fixedDistribution(genderLabels, gender, total),
		AgeGroups: fixedDistribution(ageBucketLabels, ages, total),
		Education: openDistribution(education, total),
		Countries: openDistribution(countries, total),
	}
}

func labelOrUnspecified(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "unspecified"
	}
	return s
}

func buildBusiness(apps []models.Application) BusinessBreakdown {
	revenue := make(map[string]int)
	employment := make(map[string]int)
	registration := make(map[string]int)
	for _, app := range apps {
		revenue[revenueBucket(app.Business.RevenueLastTwoYears)]++
		employment[employmentBucket(app.Business.TotalEmployees())]++
		if app.Business.IsRegistered {
			registration["registered"]++
		} else {
			registration["unregistered"]++
		}
	}
	total := len(apps)
	return BusinessBreakdown{
		Revenue:      fixedDistribution(revenueBucketLabels, revenue, total),
		Employment:   fixedDistribution(employmentBucketLabels, employment, total),
		Registration: fixedDistribution([]string{"registered", "unregistered"}, registration, total),
	}
}

func buildEvaluation(apps []models.Application, active *models.ScoringConfiguration, scores []models.ApplicationScore, included map[int]bool) EvaluationBreakdown {
	e := EvaluationBreakdown{Criteria: []CriterionUtilization{}}

	histogram := make(map[string]int)
	scoreSum := 0.0
	for _, app := range apps {
		if app.EligibilityResult == nil {
			continue
		}
		e.Evaluated++
		scoreSum += app.EligibilityResult.TotalScore
		histogram[scoreBucket(app.EligibilityResult.TotalScore)]++
	}
	e.ScoreHistogram = fixedDistribution(scoreBucketLabels, histogram, e.Evaluated)
	if e.Evaluated > 0 {
		e.AverageScore = roundPoints(scoreSum / float64(e.Evaluated))
	}

	if active == nil {
		return e
	}
	configID := active.ID
	e.ConfigurationID = &configID

	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, s := range scores {
		if s.ConfigurationID != active.ID || !included[s.ApplicationID] {
			continue
		}
		sums[s.CriteriaID] += s.Score
		counts[s.CriteriaID]++
	}
	for _, c := range active.SortedCriteria() {
		u := CriterionUtilization{
			CriteriaID: c.ID,
			Name:       c.Name,
			Category:   c.Category,
			MaxPoints:  c.MaxPoints,
			Scored:     counts[c.ID],
		}
		if u.Scored > 0 {
			u.AverageScore = roundPoints(sums[c.ID] / float64(u.Scored))
			if c.MaxPoints > 0 {
				u.Utilization = int(math.Round(sums[c.ID] / float64(u.Scored) / c.MaxPoints * 100))
			}
		}
		e.Criteria = append(e.Criteria, u)
	}
	return e
}

func buildEvaluators(snap *AnalyticsSnapshot, included map[int]bool) []EvaluatorPerformance {
	byID := make(map[int]*EvaluatorPerformance)
	get := func(id int) *EvaluatorPerformance {
		p, ok := byID[id]
		if !ok {
			p = &EvaluatorPerformance{EvaluatorID: id, Name: "user #" + strconv.Itoa(id)}
			byID[id] = p
		}
		return p
	}
	touch := func(p *EvaluatorPerformance, t time.Time) {
		if t.IsZero() {
			return
		}
		if p.LastActivity == nil || t.After(*p.LastActivity) {
			at := t
			p.LastActivity = &at
		}
	}

	for _, u := range snap.Evaluators {
		get(u.UserID).Name = u.DisplayName()
	}
	for _, a := range snap.Assignments {
		if !included[a.ApplicationID] {
			continue
		}
		p := get(a.EvaluatorID)
		p.Assigned++
		if a.Status == models.AssignmentCompleted {
			p.Completed++
		}
		touch(p, a.AssignedAt)
		if a.CompletedAt != nil {
			touch(p, *a.CompletedAt)
		}
	}

	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, s := range snap.Scores {
		if !s.IsManual() || !included[s.ApplicationID] {
			continue
		}
		if _, ok := byID[s.EvaluatedBy]; !ok {
			// Administrators may score too; they are not listed.
			continue
		}
		sums[s.EvaluatedBy] += s.Score
		counts[s.EvaluatedBy]++
		touch(byID[s.EvaluatedBy], s.EvaluatedAt)
	}

	out := make([]EvaluatorPerformance, 0, len(byID))
	for id, p := range byID {
		p.CompletionRate = percentage(p.Completed, p.Assigned)
		if counts[id] > 0 {
			p.AverageScore = roundPoints(sums[id] / float64(counts[id]))
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EvaluatorID < out[j].EvaluatorID })
	return out
}

// buildTimeline counts submissions of the trailing months, current month
// included, oldest first.
func buildTimeline(apps []models.Application, months int, now time.Time) []TimelinePoint {
	year, month, _ := now.Date()
	current := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
	start := current.AddDate(0, -(months - 1), 0)

	points := make([]TimelinePoint, months)
	index := make(map[string]int, months)
	for i := 0; i < months; i++ {
		label := start.AddDate(0, i, 0).Format("2006-01")
		points[i] = TimelinePoint{Month: label}
		index[label] = i
	}
	for _, app := range apps {
		if app.SubmittedAt == nil {
			continue
		}
		i, ok := index[app.SubmittedAt.In(now.Location()).Format("2006-01")]
		if !ok {
			continue
		}
		points[i].Submissions++
		if isEligible(app) {
			points[i].Eligible++
		}
		if genderLabel(app.Applicant.Gender) == models.GenderFemale {
			points[i].Female++
		}
	}
	return points
}
