package utils

import (
	"testing"

	"challenge-scoring-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusResolvesAliases(t *testing.T) {
	cases := map[string]models.ApplicationStatus{
		"draft":         models.StatusDraft,
		" Under Review": models.StatusUnderReview,
		"dragons-den":   models.StatusDragonsDen,
		"SCORING":       models.StatusScoringPhase,
		"winner":        models.StatusApproved,
	}
	for input, want := range cases {
		got, err := ParseStatus(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseStatus("archived")
	assert.Error(t, err)
	_, err = ParseStatus("  ")
	assert.Error(t, err)
}

func TestParseStatusesDeduplicates(t *testing.T) {
	got, err := ParseStatuses([]string{"submitted", "pending", "", "finalist"})
	require.NoError(t, err)
	assert.Equal(t, []models.ApplicationStatus{models.StatusSubmitted, models.StatusFinalist}, got)
}

func TestEnsureTransition(t *testing.T) {
	assert.NoError(t, EnsureTransition(models.StatusSubmitted, models.StatusUnderReview))
	assert.NoError(t, EnsureTransition(models.StatusFinalist, models.StatusApproved))
	assert.Error(t, EnsureTransition(models.StatusSubmitted, models.StatusApproved))
	assert.Error(t, EnsureTransition(models.StatusApproved, models.StatusRejected))
	assert.Error(t, EnsureTransition(models.StatusShortlisted, models.StatusShortlisted))
	assert.True(t, IsTerminalStatus(models.StatusRejected))
}

func TestTextLengthCountsRunes(t *testing.T) {
	assert.Equal(t, 5, TextLength("  héllo \x00"))
	assert.Equal(t, "market_potential", NormalizeKey(" Market - Potential "))
}
