package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"

	id "tripmate/pkg/domain"
	dErrors "tripmate/pkg/domain-errors"
)

// Validation bounds. Title and description are measured in characters (runes),
// duration in inclusive calendar days.
const (
	TitleMinLen       = 3
	TitleMaxLen       = 255
	DescriptionMaxLen = 5000
	MinDurationDays   = 1
	MaxDurationDays   = 365
	DefaultCurrency   = "USD"
)

// Kind names a specific validation failure so callers can map it to
// field-specific user-facing text. Kinds travel on the error under the "kind"
// detail, the offending field under "field".
type Kind string

const (
	KindTitleRequired        Kind = "title_required"
	KindTitleTooShort        Kind = "title_too_short"
	KindTitleTooLong         Kind = "title_too_long"
	KindDescriptionTooLong   Kind = "description_too_long"
	KindInvalidDateRange     Kind = "invalid_date_range"
	KindDurationOutOfBounds  Kind = "duration_out_of_bounds"
	KindOwnerImmutable       Kind = "owner_immutable"
	KindParticipantsEmpty    Kind = "participants_empty"
	KindInvalidCurrency      Kind = "invalid_currency"
	KindInvalidRole          Kind = "invalid_role"
	KindDuplicateParticipant Kind = "duplicate_participant"
)

// FailureKind extracts the validation kind from an error, or "".
func FailureKind(err error) Kind {
	return Kind(dErrors.Detail(err, "kind"))
}

// FailureField extracts the offending field name from an error, or "".
func FailureField(err error) string {
	return dErrors.Detail(err, "field")
}

func failure(field string, kind Kind, message string) error {
	return dErrors.New(dErrors.CodeValidation, message).
		With("field", field).
		With("kind", string(kind))
}

func normalizeText(s string) string { return strings.TrimSpace(s) }

func normalizeCurrency(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// DurationDays returns the trip length in days, inclusive of the start day.
// Instants are reduced to their UTC calendar dates first, so a same-day trip
// is 1 day regardless of clock times.
func DurationDays(start, end time.Time) int {
	s := start.UTC()
	e := end.UTC()
	sd := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
	ed := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, time.UTC)
	return int(ed.Sub(sd).Hours()/24) + 1
}

// Normalize trims text fields and applies setting defaults in place. Callers
// run it before Validate so length checks see what would be persisted.
// Untrusted text is trimmed, never rewritten: markup and quoting
// metacharacters pass through untouched (neutralizing them belongs to the
// rendering and storage collaborators).
func (r *CreateTripRequest) Normalize() {
	r.Title = normalizeText(r.Title)
	r.Description = normalizeText(r.Description)
	if r.Settings != nil && r.Settings.Currency != nil {
		c := normalizeCurrency(*r.Settings.Currency)
		r.Settings.Currency = &c
	}
}

// Validate checks a creation payload against the field and cross-field rules.
// It is pure: no store access, no side effects, specific kind + field on every
// rejection.
func (r *CreateTripRequest) Validate() error {
	if err := validateTitle(r.Title); err != nil {
		return err
	}
	if err := validateDescription(r.Description); err != nil {
		return err
	}
	if err := validateDates(r.StartDate, r.EndDate); err != nil {
		return err
	}
	if r.Settings != nil && r.Settings.Currency != nil {
		if err := validateCurrency(*r.Settings.Currency); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePatch checks a merge patch against the existing trip. Cross-field
// date rules run on the merged values so a patch changing only the end date is
// still checked against the untouched start date.
func ValidatePatch(existing *Trip, patch *TripPatch) error {
	if patch.CreatedBy != nil && *patch.CreatedBy != existing.CreatedBy {
		return failure("createdBy", KindOwnerImmutable, "createdBy is immutable")
	}
	if patch.Participants != nil {
		if err := validateParticipants(existing, *patch.Participants); err != nil {
			return err
		}
	}
	if patch.Title != nil {
		if err := validateTitle(normalizeText(*patch.Title)); err != nil {
			return err
		}
	}
	if patch.Description != nil {
		if err := validateDescription(normalizeText(*patch.Description)); err != nil {
			return err
		}
	}
	start := existing.StartDate
	end := existing.EndDate
	if patch.StartDate != nil {
		start = *patch.StartDate
	}
	if patch.EndDate != nil {
		end = *patch.EndDate
	}
	if patch.StartDate != nil || patch.EndDate != nil {
		if err := validateDates(start, end); err != nil {
			return err
		}
	}
	if patch.Settings != nil && patch.Settings.Currency != nil {
		if err := validateCurrency(normalizeCurrency(*patch.Settings.Currency)); err != nil {
			return err
		}
	}
	return nil
}

// ValidateNewParticipant checks a participant payload for add_participant.
// The owner role is never assignable after creation.
func ValidateNewParticipant(existing *Trip, p Participant) error {
	if p.UserID.IsNil() {
		return failure("participants.userId", KindInvalidRole, "participant user id is required")
	}
	if !p.Role.IsValid() {
		return failure("participants.role", KindInvalidRole, "unknown participant role: "+p.Role.String())
	}
	if p.Role == id.RoleOwner {
		return failure("participants.role", KindOwnerImmutable, "owner role is assigned at creation only")
	}
	if existing.HasParticipant(p.UserID) {
		return failure("participants", KindDuplicateParticipant, "user is already a participant")
	}
	return nil
}

func validateTitle(title string) error {
	if title == "" {
		return failure("title", KindTitleRequired, "title is required")
	}
	n := utf8.RuneCountInString(title)
	if n < TitleMinLen {
		return failure("title", KindTitleTooShort, "title must be at least 3 characters")
	}
	if n > TitleMaxLen {
		return failure("title", KindTitleTooLong, "title must be at most 255 characters")
	}
	return nil
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > DescriptionMaxLen {
		return failure("description", KindDescriptionTooLong, "description must be at most 5000 characters")
	}
	return nil
}

func validateDates(start, end time.Time) error {
	if end.Before(start) {
		return failure("endDate", KindInvalidDateRange, "end date must not be before start date")
	}
	days := DurationDays(start, end)
	if days < MinDurationDays || days > MaxDurationDays {
		return failure("endDate", KindDurationOutOfBounds, "trip duration must be between 1 and 365 days")
	}
	return nil
}

func validateCurrency(currency string) error {
	if !govalidator.IsISO4217(currency) {
		return failure("settings.currency", KindInvalidCurrency, "currency must be an ISO-4217 code")
	}
	return nil
}

// validateParticipants checks a full participant-list replacement: non-empty,
// valid roles, no duplicates, and exactly one owner who must be the creator.
func validateParticipants(existing *Trip, participants []Participant) error {
	if len(participants) == 0 {
		return failure("participants", KindParticipantsEmpty, "participants cannot be emptied")
	}
	seen := make(map[id.UserID]bool, len(participants))
	owners := 0
	for _, p := range participants {
		if seen[p.UserID] {
			return failure("participants", KindDuplicateParticipant, "duplicate participant: "+p.UserID.String())
		}
		seen[p.UserID] = true
		if !p.Role.IsValid() {
			return failure("participants.role", KindInvalidRole, "unknown participant role: "+p.Role.String())
		}
		if p.Role == id.RoleOwner {
			owners++
			if p.UserID != existing.CreatedBy {
				return failure("participants", KindOwnerImmutable, "owner cannot be reassigned")
			}
		}
	}
	if owners != 1 {
		return failure("participants", KindOwnerImmutable, "trip must keep exactly one owner")
	}
	return nil
}

// NewTrip materializes a validated creation request into a trip document with
// server-assigned fields: id, creator-as-owner participant, defaulted settings,
// timestamps. Settings default to USD / private when unspecified.
func NewTrip(tripID id.TripID, creator Participant, req *CreateTripRequest, now time.Time) *Trip {
	settings := Settings{Currency: DefaultCurrency}
	if req.Settings != nil {
		if req.Settings.Currency != nil {
			settings.Currency = *req.Settings.Currency
		}
		if req.Settings.IsPublic != nil {
			settings.IsPublic = *req.Settings.IsPublic
		}
		if req.Settings.Timezone != nil {
			settings.Timezone = *req.Settings.Timezone
		}
	}
	creator.Role = id.RoleOwner
	creator.JoinedAt = now
	return &Trip{
		ID:           tripID,
		Title:        req.Title,
		Description:  req.Description,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Participants: []Participant{creator},
		Days:         assignDayIDs(req.Days),
		CreatedBy:    creator.UserID,
		Settings:     settings,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
