// Package store defines the storage collaborator contract for the trip
// domain: point reads of trip and user documents, a share-token reservation
// primitive, and an atomic multi-document transaction boundary.
//
// Error contract: every method returns ErrNotFound (possibly wrapped) when the
// requested document does not exist, ErrConflict when a reservation or commit
// loses a race, and wrapped infrastructure errors otherwise. Services
// translate these into domain errors.
package store

import (
	"context"
	"errors"

	"tripmate/internal/trip/models"
	id "tripmate/pkg/domain"
)

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// so services can translate them without knowing the backend.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Tx is the mutation surface available inside a transaction. All writes made
// through a Tx become visible together when the RunInTx callback returns nil,
// or not at all.
type Tx interface {
	GetTrip(ctx context.Context, tripID id.TripID) (*models.Trip, error)
	PutTrip(ctx context.Context, trip *models.Trip) error
	DeleteTrip(ctx context.Context, tripID id.TripID) error

	GetUser(ctx context.Context, userID id.UserID) (*models.User, error)
	PutUser(ctx context.Context, user *models.User) error

	// ReserveShareToken claims global ownership of a token for a trip.
	// Returns ErrConflict when the token is already held, by a committed
	// trip or by a concurrent reservation.
	ReserveShareToken(ctx context.Context, token string, tripID id.TripID) error
	// ReleaseShareToken frees a token. Releasing an unknown token is a no-op.
	ReleaseShareToken(ctx context.Context, token string) error
}

// Store is the read surface plus the transaction boundary.
type Store interface {
	GetTrip(ctx context.Context, tripID id.TripID) (*models.Trip, error)
	GetUser(ctx context.Context, userID id.UserID) (*models.User, error)
	FindTripByShareToken(ctx context.Context, token string) (*models.Trip, error)

	// RunInTx executes fn against a transactional view. Implementations
	// guarantee atomicity: a non-nil error from fn (or a failed commit)
	// leaves no trace of any write fn performed. Commit races surface as
	// ErrConflict so callers can retry the whole unit.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}
