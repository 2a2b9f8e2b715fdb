package domain

import dErrors "tripmate/pkg/domain-errors"

// Role is a participant's role on a trip.
// Invariant: the value must be one of the four supported roles; exactly one
// participant per trip holds RoleOwner, assigned at creation.
//
// Construct via ParseRole at trust boundaries to enforce the allowlist; direct
// casting bypasses validation.
type Role string

const (
	RoleOwner       Role = "owner"
	RoleOrganizer   Role = "organizer"
	RoleParticipant Role = "participant"
	RoleViewer      Role = "viewer"
)

// validRoles is the single source of truth for the closed role set.
var validRoles = map[Role]bool{
	RoleOwner:       true,
	RoleOrganizer:   true,
	RoleParticipant: true,
	RoleViewer:      true,
}

// ParseRole constructs a Role from external input.
// Errors: CodeInvalidInput when the value is empty or outside the closed set.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role: "+s)
	}
	return r, nil
}

// IsValid checks membership in the closed role set.
func (r Role) IsValid() bool { return validRoles[r] }

func (r Role) String() string { return string(r) }
