package models

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "tripmate/pkg/domain"
	dErrors "tripmate/pkg/domain-errors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validCreateRequest() CreateTripRequest {
	return CreateTripRequest{
		Title:     "Summer in Kyoto",
		StartDate: date(2025, 7, 1),
		EndDate:   date(2025, 7, 10),
	}
}

func requireKind(t *testing.T, err error, field string, kind Kind) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "expected validation code, got %v", err)
	assert.Equal(t, field, FailureField(err))
	assert.Equal(t, kind, FailureKind(err))
}

func TestValidateCreate_TitleBounds(t *testing.T) {
	tests := []struct {
		name  string
		title string
		kind  Kind // "" means accepted
	}{
		{"missing title", "", KindTitleRequired},
		{"whitespace only", "   ", KindTitleRequired},
		{"length 2 rejected", "ab", KindTitleTooShort},
		{"length 3 accepted", "abc", ""},
		{"length 255 accepted", strings.Repeat("x", 255), ""},
		{"length 256 rejected", strings.Repeat("x", 256), KindTitleTooLong},
		{"multibyte runes counted as characters", strings.Repeat("ä", 255), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			req.Title = tt.title
			req.Normalize()
			err := req.Validate()
			if tt.kind == "" {
				assert.NoError(t, err)
			} else {
				requireKind(t, err, "title", tt.kind)
			}
		})
	}
}

func TestValidateCreate_Description(t *testing.T) {
	req := validCreateRequest()
	req.Description = strings.Repeat("d", 5000)
	req.Normalize()
	assert.NoError(t, req.Validate())

	req.Description = strings.Repeat("d", 5001)
	requireKind(t, req.Validate(), "description", KindDescriptionTooLong)
}

func TestValidateCreate_DateRules(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		kind       Kind
	}{
		{"same-day trip is one day", date(2025, 7, 7), date(2025, 7, 7), ""},
		{"end before start", date(2025, 7, 7), date(2025, 7, 1), KindInvalidDateRange},
		{"exactly 365 days accepted", date(2025, 1, 1), date(2025, 12, 31), ""},
		{"366-day span rejected", date(2024, 1, 1), date(2024, 12, 31), KindDurationOutOfBounds},
		{"typical range", date(2025, 6, 1), date(2025, 6, 15), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			req.StartDate = tt.start
			req.EndDate = tt.end
			err := req.Validate()
			if tt.kind == "" {
				assert.NoError(t, err)
			} else {
				requireKind(t, err, "endDate", tt.kind)
			}
		})
	}
}

func TestDurationDays(t *testing.T) {
	assert.Equal(t, 1, DurationDays(date(2025, 7, 7), date(2025, 7, 7)))
	assert.Equal(t, 2, DurationDays(date(2025, 7, 7), date(2025, 7, 8)))
	assert.Equal(t, 365, DurationDays(date(2025, 1, 1), date(2025, 12, 31)))
	assert.Equal(t, 366, DurationDays(date(2024, 1, 1), date(2024, 12, 31)))
	// Clock times are ignored: late start, early end, still the same dates.
	start := time.Date(2025, 7, 7, 23, 30, 0, 0, time.UTC)
	end := time.Date(2025, 7, 8, 0, 30, 0, 0, time.UTC)
	assert.Equal(t, 2, DurationDays(start, end))
}

func TestValidateCreate_Currency(t *testing.T) {
	req := validCreateRequest()
	bad := "DOLLARS"
	req.Settings = &SettingsPatch{Currency: &bad}
	req.Normalize()
	requireKind(t, req.Validate(), "settings.currency", KindInvalidCurrency)

	good := "eur"
	req.Settings = &SettingsPatch{Currency: &good}
	req.Normalize()
	assert.NoError(t, req.Validate())
	assert.Equal(t, "EUR", *req.Settings.Currency)
}

// Structural validation only: markup and quoting metacharacters in text fields
// must pass through unchanged in content, subject only to length rules.
func TestValidateCreate_InjectionPayloadsPass(t *testing.T) {
	payloads := []string{
		"<script>alert('xss')</script>",
		"'; DROP TABLE trips;--",
		`{"$where": "1 == 1"}`,
		"Robert\"); DELETE FROM users;--",
	}
	for _, payload := range payloads {
		req := validCreateRequest()
		req.Title = payload
		req.Description = payload
		req.Normalize()
		require.NoError(t, req.Validate(), "payload should pass validation: %q", payload)
		assert.Equal(t, payload, req.Title, "content must not be rewritten")
	}
}

func existingTrip(t *testing.T) *Trip {
	t.Helper()
	owner := id.UserID(mustUUID("550e8400-e29b-41d4-a716-446655440000"))
	req := validCreateRequest()
	req.Normalize()
	require.NoError(t, req.Validate())
	return NewTrip(id.NewTripID(), Participant{
		UserID:      owner,
		PhoneNumber: "+15550100",
		DisplayName: "Avery",
	}, &req, date(2025, 6, 1))
}

func TestValidatePatch_OwnerImmutable(t *testing.T) {
	trip := existingTrip(t)
	other := id.UserID(mustUUID("650e8400-e29b-41d4-a716-446655440000"))

	err := ValidatePatch(trip, &TripPatch{CreatedBy: &other})
	requireKind(t, err, "createdBy", KindOwnerImmutable)

	// Re-stating the current creator is a no-op, not a change.
	same := trip.CreatedBy
	assert.NoError(t, ValidatePatch(trip, &TripPatch{CreatedBy: &same}))
}

func TestValidatePatch_Participants(t *testing.T) {
	trip := existingTrip(t)
	owner := trip.Participants[0]
	member := Participant{
		UserID:      id.UserID(mustUUID("750e8400-e29b-41d4-a716-446655440000")),
		DisplayName: "Blake",
		Role:        id.RoleParticipant,
	}

	t.Run("cannot be emptied", func(t *testing.T) {
		empty := []Participant{}
		err := ValidatePatch(trip, &TripPatch{Participants: &empty})
		requireKind(t, err, "participants", KindParticipantsEmpty)
	})

	t.Run("owner must remain the creator", func(t *testing.T) {
		usurper := member
		usurper.Role = id.RoleOwner
		list := []Participant{usurper}
		err := ValidatePatch(trip, &TripPatch{Participants: &list})
		requireKind(t, err, "participants", KindOwnerImmutable)
	})

	t.Run("exactly one owner required", func(t *testing.T) {
		list := []Participant{member}
		err := ValidatePatch(trip, &TripPatch{Participants: &list})
		requireKind(t, err, "participants", KindOwnerImmutable)
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		imposter := member
		imposter.Role = "superuser"
		list := []Participant{owner, imposter}
		err := ValidatePatch(trip, &TripPatch{Participants: &list})
		requireKind(t, err, "participants.role", KindInvalidRole)
	})

	t.Run("duplicates rejected", func(t *testing.T) {
		list := []Participant{owner, member, member}
		err := ValidatePatch(trip, &TripPatch{Participants: &list})
		requireKind(t, err, "participants", KindDuplicateParticipant)
	})

	t.Run("valid replacement accepted", func(t *testing.T) {
		list := []Participant{owner, member}
		assert.NoError(t, ValidatePatch(trip, &TripPatch{Participants: &list}))
	})
}

func TestValidatePatch_MergedDates(t *testing.T) {
	trip := existingTrip(t) // 2025-07-01 .. 2025-07-10

	bad := date(2025, 6, 30)
	err := ValidatePatch(trip, &TripPatch{EndDate: &bad})
	requireKind(t, err, "endDate", KindInvalidDateRange)

	farFuture := date(2026, 8, 1)
	err = ValidatePatch(trip, &TripPatch{EndDate: &farFuture})
	requireKind(t, err, "endDate", KindDurationOutOfBounds)

	ok := date(2025, 7, 20)
	assert.NoError(t, ValidatePatch(trip, &TripPatch{EndDate: &ok}))
}

func TestValidateNewParticipant(t *testing.T) {
	trip := existingTrip(t)

	t.Run("owner role not assignable", func(t *testing.T) {
		err := ValidateNewParticipant(trip, Participant{
			UserID: id.UserID(mustUUID("750e8400-e29b-41d4-a716-446655440000")),
			Role:   id.RoleOwner,
		})
		requireKind(t, err, "participants.role", KindOwnerImmutable)
	})

	t.Run("existing participant rejected", func(t *testing.T) {
		err := ValidateNewParticipant(trip, Participant{
			UserID: trip.CreatedBy,
			Role:   id.RoleViewer,
		})
		requireKind(t, err, "participants", KindDuplicateParticipant)
	})

	t.Run("valid member accepted", func(t *testing.T) {
		assert.NoError(t, ValidateNewParticipant(trip, Participant{
			UserID: id.UserID(mustUUID("750e8400-e29b-41d4-a716-446655440000")),
			Role:   id.RoleOrganizer,
		}))
	})
}

func TestNewTrip_Defaults(t *testing.T) {
	req := validCreateRequest()
	req.Normalize()
	now := date(2025, 6, 1)
	creator := Participant{
		UserID:      id.UserID(mustUUID("550e8400-e29b-41d4-a716-446655440000")),
		PhoneNumber: "+15550100",
		DisplayName: "Avery",
	}
	trip := NewTrip(id.NewTripID(), creator, &req, now)

	require.Len(t, trip.Participants, 1)
	assert.Equal(t, id.RoleOwner, trip.Participants[0].Role)
	assert.Equal(t, creator.UserID, trip.CreatedBy)
	assert.Equal(t, "USD", trip.Settings.Currency)
	assert.False(t, trip.Settings.IsPublic)
	assert.Empty(t, trip.Settings.ShareToken)
	assert.Equal(t, now, trip.CreatedAt)
	assert.NotNil(t, trip.Days)
}

func mustUUID(s string) uuid.UUID { return uuid.MustParse(s) }
