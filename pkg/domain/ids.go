// Package domain holds the shared domain primitives: typed identifiers and the
// closed role/action sets. IDs are distinct types over uuid.UUID so a TripID can
// never be passed where a UserID is expected; construct them via the Parse
// functions at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "tripmate/pkg/domain-errors"
)

type (
	// TripID identifies a trip aggregate.
	TripID uuid.UUID
	// UserID identifies a user document and a participant.
	UserID uuid.UUID
	// DayID identifies a day within a trip.
	DayID uuid.UUID
	// ActivityID identifies an activity within a day.
	ActivityID uuid.UUID
)

// NewTripID allocates a fresh trip identifier.
func NewTripID() TripID { return TripID(uuid.New()) }

// NewUserID allocates a fresh user identifier. Production user IDs arrive via
// authentication; this exists for seeding and tests.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewDayID allocates a fresh day identifier.
func NewDayID() DayID { return DayID(uuid.New()) }

// NewActivityID allocates a fresh activity identifier.
func NewActivityID() ActivityID { return ActivityID(uuid.New()) }

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" id cannot be empty")
	}
	// uuid.Parse accepts several forms; 36-char canonical is the only one we
	// serialize, and rejecting the rest keeps oversized input out early.
	if len(s) > 45 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" id is malformed")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" id is malformed")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" id cannot be nil")
	}
	return u, nil
}

// ParseTripID validates and constructs a TripID from external input.
func ParseTripID(s string) (TripID, error) {
	u, err := parseUUID(s, "trip")
	return TripID(u), err
}

// ParseUserID validates and constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user")
	return UserID(u), err
}

// ParseDayID validates and constructs a DayID from external input.
func ParseDayID(s string) (DayID, error) {
	u, err := parseUUID(s, "day")
	return DayID(u), err
}

// ParseActivityID validates and constructs an ActivityID from external input.
func ParseActivityID(s string) (ActivityID, error) {
	u, err := parseUUID(s, "activity")
	return ActivityID(u), err
}

func (id TripID) String() string     { return uuid.UUID(id).String() }
func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id DayID) String() string      { return uuid.UUID(id).String() }
func (id ActivityID) String() string { return uuid.UUID(id).String() }

func (id TripID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText/UnmarshalText make the typed IDs usable as JSON object keys and
// string fields without custom codecs.

func (id TripID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *TripID) UnmarshalText(b []byte) error {
	parsed, err := ParseTripID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id UserID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id DayID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *DayID) UnmarshalText(b []byte) error {
	parsed, err := ParseDayID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ActivityID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *ActivityID) UnmarshalText(b []byte) error {
	parsed, err := ParseActivityID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
