package domain

import dErrors "tripmate/pkg/domain-errors"

// Action is a gated operation on a trip. The set is closed: the authorization
// matrix defines an answer for every (Role, Action) pair, and anything outside
// the set is a programming error rather than a runtime-deniable case.
type Action string

const (
	ActionUpdateTitle    Action = "update_title"
	ActionDeleteTrip     Action = "delete_trip"
	ActionAddParticipant Action = "add_participant"
	ActionViewTrip       Action = "view_trip"
)

var validActions = map[Action]bool{
	ActionUpdateTitle:    true,
	ActionDeleteTrip:     true,
	ActionAddParticipant: true,
	ActionViewTrip:       true,
}

// ParseAction constructs an Action from external input.
func ParseAction(s string) (Action, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "action cannot be empty")
	}
	a := Action(s)
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid action: "+s)
	}
	return a, nil
}

// IsValid checks membership in the closed action set.
func (a Action) IsValid() bool { return validActions[a] }

func (a Action) String() string { return string(a) }
