package services

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"challenge-scoring-api/models"
)

type ExportFilter struct {
	Statuses      []models.ApplicationStatus
	SubmittedFrom *time.Time
	SubmittedTo   *time.Time
	EligibleOnly  bool
}

// ExportRow is one flattened application with its current evaluation.
type ExportRow struct {
	ApplicationID        int        `json:"application_id"`
	Status               string     `json:"status"`
	SubmittedAt          *time.Time `json:"submitted_at,omitempty"`
	ApplicantName        string     `json:"applicant_name"`
	Gender               string     `json:"gender"`
	Age                  int        `json:"age"`
	Country              string     `json:"country"`
	EducationLevel       string     `json:"education_level"`
	BusinessName         string     `json:"business_name"`
	IsRegistered         bool       `json:"is_registered"`
	Revenue              string     `json:"revenue"`
	Employees            int        `json:"employees"`
	FemaleEmployees      int        `json:"female_employees"`
	Evaluated            bool       `json:"evaluated"`
	AgeEligible          bool       `json:"age_eligible"`
	RegistrationEligible bool       `json:"registration_eligible"`
	RevenueEligible      bool       `json:"revenue_eligible"`
	BusinessPlanEligible bool       `json:"business_plan_eligible"`
	ImpactEligible       bool       `json:"impact_eligible"`
	IsEligible           bool       `json:"is_eligible"`
	TotalScore           float64    `json:"total_score"`
	ScoringConfigID      *int       `json:"scoring_config_id,omitempty"`
	EvaluatedAt          *time.Time `json:"evaluated_at,omitempty"`
}

// ExportHeader is the CSV header matching ExportRow.Record.
var ExportHeader = []string{
	"application_id", "status", "submitted_at", "applicant_name", "gender", "age",
	"country", "education_level", "business_name", "is_registered", "revenue",
	"employees", "female_employees", "evaluated", "age_eligible", "registration_eligible",
	"revenue_eligible", "business_plan_eligible", "impact_eligible", "is_eligible",
	"total_score", "scoring_config_id", "evaluated_at",
}

// Record renders the row in ExportHeader order.
func (r ExportRow) Record() []string {
	configID := ""
	if r.ScoringConfigID != nil {
		configID = strconv.Itoa(*r.ScoringConfigID)
	}
	return []string{
		strconv.Itoa(r.ApplicationID),
		r.Status,
		formatOptionalTime(r.SubmittedAt),
		r.ApplicantName,
		r.Gender,
		strconv.Itoa(r.Age),
		r.Country,
		r.EducationLevel,
		r.BusinessName,
		strconv.FormatBool(r.IsRegistered),
		r.Revenue,
		strconv.Itoa(r.Employees),
		strconv.Itoa(r.FemaleEmployees),
		strconv.FormatBool(r.Evaluated),
		strconv.FormatBool(r.AgeEligible),
		strconv.FormatBool(r.RegistrationEligible),
		strconv.FormatBool(r.RevenueEligible),
		strconv.FormatBool(r.BusinessPlanEligible),
		strconv.FormatBool(r.ImpactEligible),
		strconv.FormatBool(r.IsEligible),
		strconv.FormatFloat(r.TotalScore, 'f', 2, 64),
		configID,
		formatOptionalTime(r.EvaluatedAt),
	}
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

type ExportService struct {
	records RecordStore
	now     func() time.Time
}

func NewExportService(records RecordStore) *ExportService {
	return &ExportService{records: records, now: time.Now}
}

// ExportEvaluationData flattens applications and their current results into
// rows ordered by application id.
func (s *ExportService) ExportEvaluationData(ctx context.Context, actor Actor, filter ExportFilter) ([]ExportRow, error) {
	if err := requireAdmin(actor, "export_evaluation_data"); err != nil {
		return nil, err
	}
	apps, err := s.records.ListApplications(ctx, ApplicationFilter{
		Statuses:      filter.Statuses,
		SubmittedFrom: filter.SubmittedFrom,
		SubmittedTo:   filter.SubmittedTo,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	rows := make([]ExportRow, 0, len(apps))
	for _, app := range apps {
		if filter.EligibleOnly && !isEligible(app) {
			continue
		}
		rows = append(rows, exportRow(app, now))
	}
	return rows, nil
}

func exportRow(app models.Application, now time.Time) ExportRow {
	row := ExportRow{
		ApplicationID:   app.ApplicationID,
		Status:          string(app.Status),
		SubmittedAt:     app.SubmittedAt,
		ApplicantName:   app.Applicant.FullName(),
		Gender:          app.Applicant.Gender,
		Age:             app.Applicant.AgeOn(now),
		Country:         app.Applicant.ResidenceCountry,
		EducationLevel:  app.Applicant.EducationLevel,
		BusinessName:    app.Business.Name,
		IsRegistered:    app.Business.IsRegistered,
		Revenue:         app.Business.RevenueLastTwoYears.StringFixed(2),
		Employees:       app.Business.TotalEmployees(),
		FemaleEmployees: app.Business.FemaleEmployees(),
	}
	if r := app.EligibilityResult; r != nil {
		evaluatedAt := r.EvaluatedAt
		row.Evaluated = true
		row.AgeEligible = r.AgeEligible
		row.RegistrationEligible = r.RegistrationEligible
		row.RevenueEligible = r.RevenueEligible
		row.BusinessPlanEligible = r.BusinessPlanEligible
		row.ImpactEligible = r.ImpactEligible
		row.IsEligible = r.IsEligible
		row.TotalScore = r.TotalScore
		row.ScoringConfigID = r.ScoringConfigID
		row.EvaluatedAt = &evaluatedAt
	}
	return row
}

// WriteCSV writes the header and rows as CSV.
func WriteCSV(w io.Writer, rows []ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
