package utils

import (
	"fmt"
	"strings"

	"challenge-scoring-api/models"
)

var (
	statusSynonyms = map[models.ApplicationStatus][]string{
		models.StatusDraft:        {"draft", "in_progress"},
		models.StatusSubmitted:    {"submitted", "pending"},
		models.StatusUnderReview:  {"under_review", "under review", "review", "in_review"},
		models.StatusShortlisted:  {"shortlisted", "short_listed", "shortlist"},
		models.StatusScoringPhase: {"scoring_phase", "scoring", "scoring phase"},
		models.StatusDragonsDen:   {"dragons_den", "dragons den", "pitch"},
		models.StatusFinalist:     {"finalist", "finalists"},
		models.StatusApproved:     {"approved", "accepted", "winner"},
		models.StatusRejected:     {"rejected", "declined", "not_eligible"},
	}
	statusAliasToCanonical = buildStatusAliasMap()

	// allowedTransitions lists the lifecycle moves an administrator may make.
	allowedTransitions = map[models.ApplicationStatus][]models.ApplicationStatus{
		models.StatusDraft:        {models.StatusSubmitted},
		models.StatusSubmitted:    {models.StatusUnderReview, models.StatusRejected},
		models.StatusUnderReview:  {models.StatusShortlisted, models.StatusRejected},
		models.StatusShortlisted:  {models.StatusScoringPhase, models.StatusRejected},
		models.StatusScoringPhase: {models.StatusDragonsDen, models.StatusRejected},
		models.StatusDragonsDen:   {models.StatusFinalist, models.StatusRejected},
		models.StatusFinalist:     {models.StatusApproved, models.StatusRejected},
	}
)

func buildStatusAliasMap() map[string]models.ApplicationStatus {
	aliasMap := make(map[string]models.ApplicationStatus)
	for canonical, synonyms := range statusSynonyms {
		aliasMap[normalizeStatusCode(string(canonical))] = canonical
		for _, alias := range synonyms {
			if normalized := normalizeStatusCode(alias); normalized != "" {
				aliasMap[normalized] = canonical
			}
		}
	}
	return aliasMap
}

func normalizeStatusCode(code string) string {
	normalized := strings.ToLower(strings.TrimSpace(code))
	return strings.ReplaceAll(normalized, "-", "_")
}

// ParseStatus resolves a status name or alias to its canonical value.
func ParseStatus(code string) (models.ApplicationStatus, error) {
	normalized := normalizeStatusCode(code)
	if normalized == "" {
		return "", fmt.Errorf("status is required")
	}
	if canonical, ok := statusAliasToCanonical[normalized]; ok {
		return canonical, nil
	}
	if canonical, ok := statusAliasToCanonical[strings.ReplaceAll(normalized, "_", " ")]; ok {
		return canonical, nil
	}
	return "", fmt.Errorf("unknown application status %q", code)
}

// ParseStatuses resolves every entry, skipping blanks.
func ParseStatuses(codes []string) ([]models.ApplicationStatus, error) {
	out := make([]models.ApplicationStatus, 0, len(codes))
	seen := make(map[models.ApplicationStatus]struct{})
	for _, code := range codes {
		if strings.TrimSpace(code) == "" {
			continue
		}
		status, err := ParseStatus(code)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[status]; ok {
			continue
		}
		seen[status] = struct{}{}
		out = append(out, status)
	}
	return out, nil
}

// IsTerminalStatus reports whether no further transition is possible.
func IsTerminalStatus(status models.ApplicationStatus) bool {
	return status == models.StatusApproved || status == models.StatusRejected
}

// CanTransition reports whether from -> to is an allowed lifecycle move.
func CanTransition(from, to models.ApplicationStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EnsureTransition returns an error naming the move when it is not allowed.
func EnsureTransition(from, to models.ApplicationStatus) error {
	if from == to {
		return fmt.Errorf("application is already %s", to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("status %s cannot move to %s", from, to)
	}
	return nil
}
