package services

import "challenge-scoring-api/models"

// Actor is the identity on whose behalf an engine operation runs. The engine
// checks the role itself instead of trusting the calling layer.
type Actor struct {
	UserID int
	RoleID int
}

func (a Actor) IsAdmin() bool {
	return a.RoleID == models.RoleAdmin
}

func (a Actor) IsEvaluator() bool {
	return a.RoleID == models.RoleEvaluator
}

// requireRole fails with an authorization error unless the actor holds one
// of the roles.
func requireRole(actor Actor, operation string, roleIDs ...int) error {
	if actor.UserID <= 0 {
		return authorizationError(operation)
	}
	for _, roleID := range roleIDs {
		if actor.RoleID == roleID {
			return nil
		}
	}
	return authorizationError(operation)
}

func requireAdmin(actor Actor, operation string) error {
	return requireRole(actor, operation, models.RoleAdmin)
}
