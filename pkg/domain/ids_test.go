package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tripmate/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs".
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseTripID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseUserID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseUserID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(validUUID), id)
	})
}

// TestParseID_SecurityInvariants validates trust-boundary parsing rules:
// malformed or hostile identifiers must be rejected at API entry points.
func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE trips;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTripID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestTypeDistinction verifies the compiler enforces type safety between ID
// kinds. If this compiles, the invariant holds; the runtime check is a backstop.
func TestTypeDistinction(t *testing.T) {
	userID := UserID(uuid.New())
	tripID := TripID(uuid.New())

	// These would fail to compile if the types were interchangeable:
	// var _ UserID = tripID   // compile error
	// var _ TripID = userID   // compile error

	assert.NotEqual(t, uuid.UUID(userID), uuid.UUID(tripID))
}

func TestIDTextRoundTrip(t *testing.T) {
	id := NewTripID()
	b, err := id.MarshalText()
	require.NoError(t, err)

	var back TripID
	require.NoError(t, back.UnmarshalText(b))
	assert.Equal(t, id, back)
}

func TestRoleAndActionAllowlists(t *testing.T) {
	for _, r := range []string{"owner", "organizer", "participant", "viewer"} {
		role, err := ParseRole(r)
		require.NoError(t, err)
		assert.True(t, role.IsValid())
	}
	_, err := ParseRole("admin")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	_, err = ParseRole("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	for _, a := range []string{"update_title", "delete_trip", "add_participant", "view_trip"} {
		action, err := ParseAction(a)
		require.NoError(t, err)
		assert.True(t, action.IsValid())
	}
	_, err = ParseAction("transfer_ownership")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
