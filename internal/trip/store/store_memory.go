package store

import (
	"context"
	"fmt"
	"sync"

	"tripmate/internal/trip/models"
	id "tripmate/pkg/domain"
)

// InMemoryStore keeps trips, users, and share-token reservations in maps for
// tests and single-process deployments. It intentionally favors clarity over
// performance: one store-wide mutex serializes transactions, which trivially
// gives the "all writes land together or not at all" guarantee.
type InMemoryStore struct {
	mu     sync.RWMutex
	trips  map[id.TripID]*models.Trip
	users  map[id.UserID]*models.User
	tokens map[string]id.TripID
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		trips:  make(map[id.TripID]*models.Trip),
		users:  make(map[id.UserID]*models.User),
		tokens: make(map[string]id.TripID),
	}
}

func (s *InMemoryStore) GetTrip(_ context.Context, tripID id.TripID) (*models.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if trip, ok := s.trips[tripID]; ok {
		return trip.Clone(), nil
	}
	return nil, fmt.Errorf("trip %s: %w", tripID, ErrNotFound)
}

func (s *InMemoryStore) GetUser(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[userID]; ok {
		return user.Clone(), nil
	}
	return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
}

func (s *InMemoryStore) FindTripByShareToken(_ context.Context, tok string) (*models.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tripID, ok := s.tokens[tok]
	if !ok {
		return nil, fmt.Errorf("share token: %w", ErrNotFound)
	}
	trip, ok := s.trips[tripID]
	if !ok {
		return nil, fmt.Errorf("trip %s: %w", tripID, ErrNotFound)
	}
	return trip.Clone(), nil
}

// RunInTx stages all writes in a buffer and applies them only when fn
// succeeds, so a failed stage leaves nothing visible (no partial dual writes).
// The store-wide lock makes the reserve-check-commit of share tokens atomic
// with the trip write.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:         s,
		trips:         make(map[id.TripID]*models.Trip),
		users:         make(map[id.UserID]*models.User),
		tripDeletes:   make(map[id.TripID]bool),
		tokenReserves: make(map[string]id.TripID),
		tokenReleases: make(map[string]bool),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// memTx buffers writes against the parent store. Reads see the buffered state
// first (read-your-writes), then fall back to committed state.
type memTx struct {
	store         *InMemoryStore
	trips         map[id.TripID]*models.Trip
	users         map[id.UserID]*models.User
	tripDeletes   map[id.TripID]bool
	tokenReserves map[string]id.TripID
	tokenReleases map[string]bool
}

func (t *memTx) GetTrip(_ context.Context, tripID id.TripID) (*models.Trip, error) {
	if t.tripDeletes[tripID] {
		return nil, fmt.Errorf("trip %s: %w", tripID, ErrNotFound)
	}
	if trip, ok := t.trips[tripID]; ok {
		return trip.Clone(), nil
	}
	if trip, ok := t.store.trips[tripID]; ok {
		return trip.Clone(), nil
	}
	return nil, fmt.Errorf("trip %s: %w", tripID, ErrNotFound)
}

func (t *memTx) PutTrip(_ context.Context, trip *models.Trip) error {
	delete(t.tripDeletes, trip.ID)
	t.trips[trip.ID] = trip.Clone()
	return nil
}

func (t *memTx) DeleteTrip(_ context.Context, tripID id.TripID) error {
	delete(t.trips, tripID)
	t.tripDeletes[tripID] = true
	return nil
}

func (t *memTx) GetUser(_ context.Context, userID id.UserID) (*models.User, error) {
	if user, ok := t.users[userID]; ok {
		return user.Clone(), nil
	}
	if user, ok := t.store.users[userID]; ok {
		return user.Clone(), nil
	}
	return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
}

func (t *memTx) PutUser(_ context.Context, user *models.User) error {
	t.users[user.ID] = user.Clone()
	return nil
}

func (t *memTx) ReserveShareToken(_ context.Context, tok string, tripID id.TripID) error {
	if _, taken := t.store.tokens[tok]; taken && !t.tokenReleases[tok] {
		return fmt.Errorf("share token taken: %w", ErrConflict)
	}
	if _, taken := t.tokenReserves[tok]; taken {
		return fmt.Errorf("share token taken: %w", ErrConflict)
	}
	delete(t.tokenReleases, tok)
	t.tokenReserves[tok] = tripID
	return nil
}

func (t *memTx) ReleaseShareToken(_ context.Context, tok string) error {
	delete(t.tokenReserves, tok)
	t.tokenReleases[tok] = true
	return nil
}

func (t *memTx) commit() {
	for tripID := range t.tripDeletes {
		delete(t.store.trips, tripID)
	}
	for tripID, trip := range t.trips {
		t.store.trips[tripID] = trip
	}
	for userID, user := range t.users {
		t.store.users[userID] = user
	}
	for tok := range t.tokenReleases {
		delete(t.store.tokens, tok)
	}
	for tok, tripID := range t.tokenReserves {
		t.store.tokens[tok] = tripID
	}
}
