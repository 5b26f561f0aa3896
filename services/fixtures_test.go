package services

import (
	"strings"
	"time"

	"challenge-scoring-api/models"

	"github.com/shopspring/decimal"
)

var (
	adminActor     = Actor{UserID: 1, RoleID: models.RoleAdmin}
	evaluatorActor = Actor{UserID: 2, RoleID: models.RoleEvaluator}
	applicantActor = Actor{UserID: 10, RoleID: models.RoleApplicant}

	evalDay = time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)
)

func fixedNow() time.Time { return evalDay }

func text(n int) string {
	return strings.Repeat("a", n)
}

// eligibleApplication passes every gate check on evalDay: the applicant
// turns 18 that day, the business is registered with revenue 5000 and its
// narratives are long enough.
func eligibleApplication(id int) models.Application {
	submitted := evalDay.AddDate(0, 0, -1)
	return models.Application{
		ApplicationID: id,
		Status:        models.StatusSubmitted,
		SubmittedAt:   &submitted,
		Applicant: models.Applicant{
			ApplicantID:      id + 100,
			UserID:           applicantActor.UserID + id,
			FirstName:        "Amina",
			LastName:         "Odhiambo",
			DateOfBirth:      time.Date(2006, time.June, 15, 0, 0, 0, 0, time.UTC),
			Gender:           models.GenderFemale,
			EducationLevel:   "bachelor",
			ResidenceCountry: "Kenya",
		},
		Business: models.Business{
			BusinessID:                    id + 200,
			ApplicantID:                   id + 100,
			Name:                          "Solar Dryers Ltd",
			IsRegistered:                  true,
			RevenueLastTwoYears:           decimal.NewFromInt(5000),
			FullTimeFemale:                2,
			FullTimeMale:                  1,
			Description:                   text(120),
			ProblemSolved:                 text(120),
			ClimateAdaptationContribution: text(150),
			ClimateExtremeImpact:          text(150),
		},
	}
}

// manualConfig is a 100 point rubric passing at 60 with two manual
// criteria worth 50 points each.
func manualConfig(id int) models.ScoringConfiguration {
	low, high := manualCriterion(id*10+1, id, "Innovation", 50), manualCriterion(id*10+2, id, "Market", 50)
	return models.ScoringConfiguration{
		ID:            id,
		Name:          "Rubric",
		Version:       1,
		TotalMaxScore: 100,
		PassThreshold: 60,
		Criteria:      []models.ScoringCriteria{low, high},
	}
}

func manualCriterion(id, configID int, name string, max float64) models.ScoringCriteria {
	c := models.ScoringCriteria{
		ID:              id,
		ConfigurationID: configID,
		Category:        strings.ToLower(name),
		Name:            name,
		MaxPoints:       max,
		EvaluationType:  models.EvaluationManual,
		SortOrder:       id,
	}
	_ = c.SetScoringLevels([]models.ScoringLevel{
		{Label: "Weak", Points: 0},
		{Label: "Fair", Points: max / 2},
		{Label: "Strong", Points: max},
	})
	return c
}

func autoCriterion(id, configID int, category string, max float64) models.ScoringCriteria {
	return models.ScoringCriteria{
		ID:              id,
		ConfigurationID: configID,
		Category:        category,
		Name:            category,
		MaxPoints:       max,
		EvaluationType:  models.EvaluationAuto,
		SortOrder:       id,
	}
}

func manualScore(appID, criteriaID, configID int, score float64) models.ApplicationScore {
	return models.ApplicationScore{
		ApplicationID:   appID,
		CriteriaID:      criteriaID,
		ConfigurationID: configID,
		Score:           score,
		Source:          models.ScoreSourceManual,
		EvaluatedBy:     evaluatorActor.UserID,
		EvaluatedAt:     evalDay,
	}
}
