//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tripmate/internal/trip/models"
	"tripmate/internal/trip/store"
	id "tripmate/pkg/domain"
	"tripmate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "trips", "users", "share_tokens")
	s.Require().NoError(err)
}

func newStoredTrip(owner id.UserID) *models.Trip {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.Trip{
		ID:        id.NewTripID(),
		Title:     "Porto long weekend",
		StartDate: time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC),
		CreatedBy: owner,
		Participants: []models.Participant{
			{UserID: owner, Role: id.RoleOwner, JoinedAt: now},
		},
		Settings:  models.Settings{Currency: "EUR"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *PostgresStoreSuite) TestTripDocRoundTrip() {
	ctx := context.Background()
	owner := id.NewUserID()
	trip := newStoredTrip(owner)

	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		if err := tx.PutTrip(ctx, trip); err != nil {
			return err
		}
		return tx.PutUser(ctx, &models.User{ID: owner, TripIDs: []id.TripID{trip.ID}})
	})
	s.Require().NoError(err)

	got, err := s.store.GetTrip(ctx, trip.ID)
	s.Require().NoError(err)
	s.Equal(trip.Title, got.Title)
	s.Equal(trip.CreatedBy, got.CreatedBy)
	s.Equal("EUR", got.Settings.Currency)
	s.Len(got.Participants, 1)
	s.Equal(id.RoleOwner, got.Participants[0].Role)

	user, err := s.store.GetUser(ctx, owner)
	s.Require().NoError(err)
	s.Equal([]id.TripID{trip.ID}, user.TripIDs)
}

func (s *PostgresStoreSuite) TestRollbackLeavesNoTrace() {
	ctx := context.Background()
	owner := id.NewUserID()
	trip := newStoredTrip(owner)

	req := s.Require()
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		req.NoError(tx.PutTrip(ctx, trip))
		req.NoError(tx.PutUser(ctx, &models.User{ID: owner, TripIDs: []id.TripID{trip.ID}}))
		req.NoError(tx.ReserveShareToken(ctx, "roll_back_token1", trip.ID))
		return context.Canceled
	})
	s.Require().ErrorIs(err, context.Canceled)

	_, err = s.store.GetTrip(ctx, trip.ID)
	s.ErrorIs(err, store.ErrNotFound)
	_, err = s.store.GetUser(ctx, owner)
	s.ErrorIs(err, store.ErrNotFound)
	_, err = s.store.FindTripByShareToken(ctx, "roll_back_token1")
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *PostgresStoreSuite) TestShareTokenUniqueness() {
	ctx := context.Background()
	tripA := newStoredTrip(id.NewUserID())
	tripB := newStoredTrip(id.NewUserID())
	const tok = "Unique_Token_001"

	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		if err := tx.PutTrip(ctx, tripA); err != nil {
			return err
		}
		return tx.ReserveShareToken(ctx, tok, tripA.ID)
	})
	s.Require().NoError(err)

	err = s.store.RunInTx(ctx, func(tx store.Tx) error {
		if err := tx.PutTrip(ctx, tripB); err != nil {
			return err
		}
		return tx.ReserveShareToken(ctx, tok, tripB.ID)
	})
	s.Require().ErrorIs(err, store.ErrConflict)

	// The loser's trip write must have rolled back with the reservation.
	_, err = s.store.GetTrip(ctx, tripB.ID)
	s.ErrorIs(err, store.ErrNotFound)

	got, err := s.store.FindTripByShareToken(ctx, tok)
	s.Require().NoError(err)
	s.Equal(tripA.ID, got.ID)
}

// Exactly one of N concurrent reservations of the same token may win.
func (s *PostgresStoreSuite) TestConcurrentTokenReservation() {
	ctx := context.Background()
	const goroutines = 20
	const tok = "Contended_Token1"

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			trip := newStoredTrip(id.NewUserID())
			err := s.store.RunInTx(ctx, func(tx store.Tx) error {
				if err := tx.PutTrip(ctx, trip); err != nil {
					return err
				}
				return tx.ReserveShareToken(ctx, tok, trip.ID)
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, store.ErrConflict):
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one reservation should win")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should conflict")
}

func (s *PostgresStoreSuite) TestReleaseAndDelete() {
	ctx := context.Background()
	trip := newStoredTrip(id.NewUserID())
	const tok = "Released_Token01"

	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		if err := tx.PutTrip(ctx, trip); err != nil {
			return err
		}
		return tx.ReserveShareToken(ctx, tok, trip.ID)
	})
	s.Require().NoError(err)

	err = s.store.RunInTx(ctx, func(tx store.Tx) error {
		if err := tx.ReleaseShareToken(ctx, tok); err != nil {
			return err
		}
		return tx.DeleteTrip(ctx, trip.ID)
	})
	s.Require().NoError(err)

	_, err = s.store.GetTrip(ctx, trip.ID)
	s.ErrorIs(err, store.ErrNotFound)
	_, err = s.store.FindTripByShareToken(ctx, tok)
	s.ErrorIs(err, store.ErrNotFound)

	// The released token is reusable.
	other := newStoredTrip(id.NewUserID())
	err = s.store.RunInTx(ctx, func(tx store.Tx) error {
		if err := tx.PutTrip(ctx, other); err != nil {
			return err
		}
		return tx.ReserveShareToken(ctx, tok, other.ID)
	})
	s.NoError(err)
}
