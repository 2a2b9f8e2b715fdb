// Package rbac is the authorization engine: a fixed matrix mapping
// (role, action) to an allow/deny decision. The matrix is total over the
// closed role and action sets; anything outside those sets is a programming
// error and fails fast rather than being treated as a deniable request.
package rbac

import (
	id "tripmate/pkg/domain"
	dErrors "tripmate/pkg/domain-errors"
)

// matrix is the single source of truth for permissions. Listing allowed
// actions per role keeps the table readable; absence means deny.
//
//	role        update_title  delete_trip  add_participant  view_trip
//	owner            x             x             x              x
//	organizer        x                           x              x
//	participant                                                 x
//	viewer                                                      x
var matrix = map[id.Role]map[id.Action]bool{
	id.RoleOwner: {
		id.ActionUpdateTitle:    true,
		id.ActionDeleteTrip:     true,
		id.ActionAddParticipant: true,
		id.ActionViewTrip:       true,
	},
	id.RoleOrganizer: {
		id.ActionUpdateTitle:    true,
		id.ActionAddParticipant: true,
		id.ActionViewTrip:       true,
	},
	id.RoleParticipant: {
		id.ActionViewTrip: true,
	},
	id.RoleViewer: {
		id.ActionViewTrip: true,
	},
}

// IsAllowed answers the matrix lookup. The error return fires only for inputs
// outside the closed sets (unknown_role / unknown_action), never for a deny.
func IsAllowed(role id.Role, action id.Action) (bool, error) {
	if !role.IsValid() {
		return false, dErrors.New(dErrors.CodeInvariantViolation, "unknown role: "+role.String()).
			With("kind", "unknown_role").
			With("role", role.String())
	}
	if !action.IsValid() {
		return false, dErrors.New(dErrors.CodeInvariantViolation, "unknown action: "+action.String()).
			With("kind", "unknown_action").
			With("action", action.String())
	}
	return matrix[role][action], nil
}

// AssertAllowed fails with a structured PermissionDenied when the matrix says
// no, carrying the role and action so callers can render a specific message.
func AssertAllowed(role id.Role, action id.Action) error {
	allowed, err := IsAllowed(role, action)
	if err != nil {
		return err
	}
	if !allowed {
		return dErrors.New(dErrors.CodeForbidden, "role "+role.String()+" may not "+action.String()).
			With("role", role.String()).
			With("action", action.String())
	}
	return nil
}
