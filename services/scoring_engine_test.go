package services

import (
	"encoding/json"
	"testing"

	"challenge-scoring-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreManualScenarioPasses(t *testing.T) {
	app := eligibleApplication(1)
	cfg := manualConfig(5)
	recorded := []models.ApplicationScore{
		manualScore(1, 51, 5, 40),
		manualScore(1, 52, 5, 25),
	}

	res := NewScoringEngine(nil).Score(app, &cfg, recorded)

	assert.Equal(t, 65.0, res.TotalScore)
	assert.True(t, res.IsPassing)
	assert.Zero(t, res.PendingManual)
	require.Len(t, res.PerCriterion, 2)
	assert.Equal(t, models.ScoreSourceManual, res.PerCriterion[0].Source)
}

func TestScoreClampsToTotalMax(t *testing.T) {
	app := eligibleApplication(1)
	cfg := models.ScoringConfiguration{
		ID:            7,
		TotalMaxScore: 100,
		PassThreshold: 60,
		Criteria: []models.ScoringCriteria{
			manualCriterion(71, 7, "Innovation", 80),
			manualCriterion(72, 7, "Market", 80),
		},
	}
	recorded := []models.ApplicationScore{
		manualScore(1, 71, 7, 80),
		manualScore(1, 72, 7, 95), // above the criterion ceiling
	}

	res := NewScoringEngine(nil).Score(app, &cfg, recorded)

	assert.Equal(t, 160.0, res.RawTotal)
	assert.Equal(t, 100.0, res.TotalScore)
	assert.Equal(t, 80.0, res.PerCriterion[1].Score)
}

func TestScoreIgnoresScoresOfOtherConfigurations(t *testing.T) {
	app := eligibleApplication(1)
	cfg := manualConfig(5)
	recorded := []models.ApplicationScore{
		manualScore(1, 51, 4, 50),
		manualScore(2, 52, 5, 50),
	}

	res := NewScoringEngine(nil).Score(app, &cfg, recorded)

	assert.Zero(t, res.TotalScore)
	assert.Equal(t, 2, res.PendingManual)
	assert.False(t, res.IsPassing)
}

func TestScoreAutoAndHybridCriteria(t *testing.T) {
	app := eligibleApplication(1)
	hybrid := autoCriterion(83, 8, "innovation", 10)
	hybrid.EvaluationType = models.EvaluationHybrid
	cfg := models.ScoringConfiguration{
		ID:            8,
		TotalMaxScore: 50,
		PassThreshold: 10,
		Criteria: []models.ScoringCriteria{
			autoCriterion(81, 8, "job_creation", 20),
			autoCriterion(82, 8, "storytelling", 20),
			hybrid,
		},
	}

	engine := NewScoringEngine(nil)
	res := engine.Score(app, &cfg, nil)
	require.Len(t, res.PerCriterion, 3)

	// Three employees.
	assert.Equal(t, 6.0, res.PerCriterion[0].Score)
	assert.Equal(t, "job_creation", res.PerCriterion[0].ScorerKey)
	assert.Equal(t, models.ScoreSourceAuto, res.PerCriterion[0].Source)

	assert.True(t, res.PerCriterion[1].Pending, "no scorer is registered for storytelling")
	assert.Equal(t, 1, res.PendingManual)

	// 120 character narratives sit in the lowest tier.
	assert.Equal(t, 4.0, res.PerCriterion[2].Score)

	withOverride := engine.Score(app, &cfg, []models.ApplicationScore{manualScore(1, 83, 8, 9)})
	assert.Equal(t, 9.0, withOverride.PerCriterion[2].Score)
	assert.Equal(t, models.ScoreSourceManual, withOverride.PerCriterion[2].Source)
	assert.Equal(t, 15.0, withOverride.TotalScore)

	again := engine.Score(app, &cfg, nil)
	assert.Equal(t, res, again)
}

func TestScoreUsesExplicitScorerKey(t *testing.T) {
	app := eligibleApplication(1)
	c := autoCriterion(91, 9, "people", 10)
	c.ScorerKey = "gender_inclusion"
	cfg := models.ScoringConfiguration{ID: 9, TotalMaxScore: 10, PassThreshold: 5, Criteria: []models.ScoringCriteria{c}}

	res := NewScoringEngine(nil).Score(app, &cfg, nil)

	// Female founder (0.3) plus two of three employees female (0.7 * 2/3).
	assert.InDelta(t, 7.67, res.TotalScore, 0.001)
	assert.True(t, res.IsPassing)
}

func TestZeroScore(t *testing.T) {
	cfg := manualConfig(5)
	res := ZeroScore(&cfg)

	assert.Zero(t, res.TotalScore)
	assert.False(t, res.IsPassing)
	assert.Len(t, res.PerCriterion, 2)
	assert.Empty(t, res.AutoScores(1, 1))
}

func TestValidateManualScore(t *testing.T) {
	c := manualCriterion(1, 1, "Innovation", 50)
	label := func(s string) *string { return &s }

	level, err := ValidateManualScore(c, 25, nil)
	require.NoError(t, err)
	assert.Equal(t, "Fair", *level)

	level, err = ValidateManualScore(c, 50, label("strong"))
	require.NoError(t, err)
	assert.Equal(t, "Strong", *level)

	level, err = ValidateManualScore(c, 33, nil)
	require.NoError(t, err)
	assert.Nil(t, level)

	_, err = ValidateManualScore(c, 51, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ValidateManualScore(c, -1, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ValidateManualScore(c, 30, label("Strong"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ValidateManualScore(c, 30, label("Excellent"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestProjectLegacyScores(t *testing.T) {
	res := ScoreResult{PerCriterion: []CriterionScore{
		{Category: "Market Potential", Score: 10},
		{Category: "market", Score: 5},
		{Category: "innovation", Score: 7},
		{Category: "jobs", Score: 3},
		{Category: "gender_inclusion", Score: 4},
		{Category: "", Score: 1.5},
	}}
	target := &models.EligibilityResult{ClimateImpactScore: 99}

	ProjectLegacyScores(res, target)

	assert.Equal(t, 15.0, target.MarketPotentialScore)
	assert.Equal(t, 7.0, target.InnovationScore)
	assert.Equal(t, 3.0, target.JobCreationScore)
	assert.Zero(t, target.ClimateImpactScore)

	var custom map[string]float64
	require.NoError(t, json.Unmarshal(target.CustomScores, &custom))
	assert.Equal(t, map[string]float64{"gender_inclusion": 4, "uncategorized": 1.5}, custom)
}
