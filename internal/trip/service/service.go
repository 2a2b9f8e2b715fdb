// Package service orchestrates trip mutations: role resolution, authorization,
// validation, share-token issuance, and the transactional dual write of the
// trip document plus each affected user's trip index.
//
// Every mutation follows the same fixed order — resolve role, authorize,
// validate, commit — so error precedence is deterministic: a missing trip
// reports not-found before a forbidden role, and a forbidden role before any
// field-level validation failure. The one exception is createdBy: changing it
// is rejected with the owner-immutable validation kind regardless of the
// caller's role, so the check runs before authorization.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tripmate/internal/audit"
	"tripmate/internal/trip/metrics"
	"tripmate/internal/trip/models"
	"tripmate/internal/trip/rbac"
	"tripmate/internal/trip/store"
	"tripmate/internal/trip/token"
	id "tripmate/pkg/domain"
	dErrors "tripmate/pkg/domain-errors"
	"tripmate/pkg/requestcontext"
)

// Retry ceilings. Token collisions get more headroom than plain commit races
// because each retry draws a fresh token and collisions are astronomically
// rare; hitting the ceiling means the random source is broken, not bad luck.
const (
	maxTokenAttempts  = 5
	maxCommitAttempts = 3
)

// AuditPublisher records domain events for the audit trail.
type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// ShareCache accelerates share-token lookups. All methods are best-effort
// from the service's point of view: cache failures cost latency, not
// correctness.
type ShareCache interface {
	Get(ctx context.Context, token string) (id.TripID, error)
	Put(ctx context.Context, token string, tripID id.TripID) error
	Invalidate(ctx context.Context, token string) error
}

// Service is the trip domain service.
type Service struct {
	store   store.Store
	logger  *slog.Logger
	audit   AuditPublisher
	cache   ShareCache
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func WithShareCache(cache ShareCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		tracer: otel.Tracer("tripmate/trip"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTrip validates the payload, materializes the trip with the creator as
// sole owner, reserves a share token when the trip is public, and commits the
// trip document together with the creator's trip index.
func (s *Service) CreateTrip(ctx context.Context, creator models.Participant, req *models.CreateTripRequest) (*models.Trip, error) {
	ctx, span := s.tracer.Start(ctx, "trip.CreateTrip")
	defer span.End()
	start := time.Now()
	defer s.observeMutation("create_trip", start)

	if creator.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "creator identity is required")
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		s.countValidationFailure(err)
		return nil, err
	}

	now := requestcontext.Now(ctx)
	trip := models.NewTrip(id.NewTripID(), creator, req, now)
	span.SetAttributes(
		attribute.String("trip.id", trip.ID.String()),
		attribute.Bool("trip.public", trip.Settings.IsPublic),
	)

	var err error
	if trip.Settings.IsPublic {
		err = s.commitCreateWithToken(ctx, trip)
	} else {
		err = s.commitWithRetry(ctx, func(tx store.Tx) error {
			if err := tx.PutTrip(ctx, trip); err != nil {
				return err
			}
			return s.indexTripForUser(ctx, tx, creator.UserID, trip.ID)
		})
	}
	if err != nil {
		s.logError(ctx, "trip creation failed", err, "trip_id", trip.ID)
		return nil, err
	}

	s.cachePut(ctx, trip.Settings.ShareToken, trip.ID)
	s.emitAudit(ctx, trip.ID, creator.UserID, "create_trip", audit.OutcomeSuccess, "")
	if s.metrics != nil {
		s.metrics.IncrementTripsCreated(trip.Settings.IsPublic)
	}
	s.logInfo(ctx, "trip created", "trip_id", trip.ID, "public", trip.Settings.IsPublic)
	return trip, nil
}

// commitCreateWithToken reserves a fresh share token and commits the create in
// one transaction, regenerating the token and retrying the whole unit on
// collision.
func (s *Service) commitCreateWithToken(ctx context.Context, trip *models.Trip) error {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		tok, err := token.Generate()
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate share token")
		}
		trip.Settings.ShareToken = tok

		err = s.store.RunInTx(ctx, func(tx store.Tx) error {
			if err := tx.PutTrip(ctx, trip); err != nil {
				return err
			}
			if err := tx.ReserveShareToken(ctx, tok, trip.ID); err != nil {
				return err
			}
			return s.indexTripForUser(ctx, tx, trip.CreatedBy, trip.ID)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist trip")
		}
		if s.metrics != nil {
			s.metrics.IncrementTokenRetry()
		}
	}
	if s.metrics != nil {
		s.metrics.IncrementTokenExhausted()
	}
	return dErrors.New(dErrors.CodeConflict, "share token allocation exhausted").
		With("kind", "token_allocation_exhausted")
}

// GetTrip returns a trip the actor may view: any participant role may view,
// and non-participants may view public trips only.
func (s *Service) GetTrip(ctx context.Context, actor id.UserID, tripID id.TripID) (*models.Trip, error) {
	ctx, span := s.tracer.Start(ctx, "trip.GetTrip")
	defer span.End()

	trip, err := s.loadTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	role, ok := trip.ParticipantRole(actor)
	if !ok {
		if trip.Settings.IsPublic {
			return trip, nil
		}
		return nil, permissionDenied("none", id.ActionViewTrip)
	}
	if err := s.authorize(role, id.ActionViewTrip); err != nil {
		return nil, err
	}
	return trip, nil
}

// GetTripByShareToken resolves a public trip from its share token without
// authentication. The cache is consulted first; a miss or stale entry falls
// through to the store.
func (s *Service) GetTripByShareToken(ctx context.Context, tok string) (*models.Trip, error) {
	ctx, span := s.tracer.Start(ctx, "trip.GetTripByShareToken")
	defer span.End()

	if !token.Pattern.MatchString(tok) {
		return nil, notFound("trip", tok)
	}

	if s.cache != nil {
		if tripID, err := s.cache.Get(ctx, tok); err == nil {
			trip, err := s.store.GetTrip(ctx, tripID)
			if err == nil && trip.Settings.IsPublic && trip.Settings.ShareToken == tok {
				return trip, nil
			}
			// Stale mapping: the trip went private, changed tokens, or was
			// deleted since it was cached.
			s.cacheInvalidate(ctx, tok)
		}
	}

	trip, err := s.store.FindTripByShareToken(ctx, tok)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("trip", tok)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve share token")
	}
	if !trip.Settings.IsPublic || trip.Settings.ShareToken != tok {
		return nil, notFound("trip", tok)
	}
	s.cachePut(ctx, tok, trip.ID)
	return trip, nil
}

// UpdateTrip applies a merge patch. Content edits require update_title,
// participant-list edits require add_participant; the whole patch lands
// atomically or not at all.
func (s *Service) UpdateTrip(ctx context.Context, actor id.UserID, tripID id.TripID, patch *models.TripPatch) (*models.Trip, error) {
	ctx, span := s.tracer.Start(ctx, "trip.UpdateTrip")
	defer span.End()
	start := time.Now()
	defer s.observeMutation("update_trip", start)

	trip, err := s.loadTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if patch.IsZero() {
		return trip, nil
	}

	// createdBy is immutable for everyone, the owner included, so the check
	// precedes authorization.
	if patch.CreatedBy != nil && *patch.CreatedBy != trip.CreatedBy {
		err := dErrors.New(dErrors.CodeValidation, "createdBy is immutable").
			With("field", "createdBy").
			With("kind", string(models.KindOwnerImmutable))
		s.countValidationFailure(err)
		return nil, err
	}

	role, ok := trip.ParticipantRole(actor)
	if !ok {
		return nil, permissionDenied("none", id.ActionUpdateTitle)
	}
	if patch.TouchesContent() {
		if err := s.authorize(role, id.ActionUpdateTitle); err != nil {
			return nil, err
		}
	}
	if patch.TouchesParticipants() {
		if err := s.authorize(role, id.ActionAddParticipant); err != nil {
			return nil, err
		}
	}
	if err := models.ValidatePatch(trip, patch); err != nil {
		s.countValidationFailure(err)
		return nil, err
	}

	var updated *models.Trip
	var invalidated, issued string
	commit := func(ctx context.Context, tx store.Tx, shareToken string) error {
		invalidated, issued = "", ""
		cur, err := tx.GetTrip(ctx, tripID)
		if err != nil {
			return err
		}
		// Re-validate against the row we actually hold under lock.
		if err := models.ValidatePatch(cur, patch); err != nil {
			return err
		}
		next := patch.Apply(cur, requestcontext.Now(ctx))

		switch {
		case next.Settings.IsPublic && next.Settings.ShareToken == "":
			next.Settings.ShareToken = shareToken
			if err := tx.ReserveShareToken(ctx, shareToken, tripID); err != nil {
				return err
			}
			issued = shareToken
		case !next.Settings.IsPublic && next.Settings.ShareToken != "":
			if err := tx.ReleaseShareToken(ctx, next.Settings.ShareToken); err != nil {
				return err
			}
			invalidated = next.Settings.ShareToken
			next.Settings.ShareToken = ""
		}

		if err := s.reindexParticipants(ctx, tx, cur, next); err != nil {
			return err
		}
		if err := tx.PutTrip(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	}

	needsToken := patch.Settings != nil && patch.Settings.IsPublic != nil && *patch.Settings.IsPublic
	if err := s.commitMaybeWithToken(ctx, needsToken, commit); err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			s.countValidationFailure(err)
			return nil, err
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("trip", tripID.String())
		}
		s.logError(ctx, "trip update failed", err, "trip_id", tripID)
		return nil, err
	}

	s.cacheInvalidate(ctx, invalidated)
	s.cachePut(ctx, issued, tripID)
	s.emitAudit(ctx, tripID, actor, "update_trip", audit.OutcomeSuccess, "")
	s.logInfo(ctx, "trip updated", "trip_id", tripID)
	return updated, nil
}

// AddParticipant appends one participant to the trip and indexes the trip for
// them. The owner role is never assignable this way.
func (s *Service) AddParticipant(ctx context.Context, actor id.UserID, tripID id.TripID, p models.Participant) (*models.Trip, error) {
	ctx, span := s.tracer.Start(ctx, "trip.AddParticipant")
	defer span.End()
	start := time.Now()
	defer s.observeMutation("add_participant", start)

	trip, err := s.loadTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	role, ok := trip.ParticipantRole(actor)
	if !ok {
		return nil, permissionDenied("none", id.ActionAddParticipant)
	}
	if err := s.authorize(role, id.ActionAddParticipant); err != nil {
		s.emitAudit(ctx, tripID, actor, "add_participant", audit.OutcomeDenied, "role "+role.String()+" may not add_participant")
		return nil, err
	}
	if err := models.ValidateNewParticipant(trip, p); err != nil {
		s.countValidationFailure(err)
		return nil, err
	}

	var updated *models.Trip
	err = s.commitWithRetry(ctx, func(tx store.Tx) error {
		cur, err := tx.GetTrip(ctx, tripID)
		if err != nil {
			return err
		}
		if err := models.ValidateNewParticipant(cur, p); err != nil {
			return err
		}
		next := cur.Clone()
		p.JoinedAt = requestcontext.Now(ctx)
		next.Participants = append(next.Participants, p)
		next.UpdatedAt = p.JoinedAt
		if err := tx.PutTrip(ctx, next); err != nil {
			return err
		}
		if err := s.indexTripForUser(ctx, tx, p.UserID, tripID); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			s.countValidationFailure(err)
			return nil, err
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("trip", tripID.String())
		}
		s.logError(ctx, "add participant failed", err, "trip_id", tripID)
		return nil, err
	}

	s.emitAudit(ctx, tripID, actor, "add_participant", audit.OutcomeSuccess, "")
	s.logInfo(ctx, "participant added", "trip_id", tripID, "user_id", p.UserID)
	return updated, nil
}

// DeleteTrip removes the trip document, releases its share token, and strips
// the trip id from every participant's index, all in one transaction.
func (s *Service) DeleteTrip(ctx context.Context, actor id.UserID, tripID id.TripID) error {
	ctx, span := s.tracer.Start(ctx, "trip.DeleteTrip")
	defer span.End()
	start := time.Now()
	defer s.observeMutation("delete_trip", start)

	trip, err := s.loadTrip(ctx, tripID)
	if err != nil {
		return err
	}
	role, ok := trip.ParticipantRole(actor)
	if !ok {
		return permissionDenied("none", id.ActionDeleteTrip)
	}
	if err := s.authorize(role, id.ActionDeleteTrip); err != nil {
		s.emitAudit(ctx, tripID, actor, "delete_trip", audit.OutcomeDenied, "role "+role.String()+" may not delete_trip")
		return err
	}

	var released string
	err = s.commitWithRetry(ctx, func(tx store.Tx) error {
		released = ""
		cur, err := tx.GetTrip(ctx, tripID)
		if err != nil {
			return err
		}
		if cur.Settings.ShareToken != "" {
			if err := tx.ReleaseShareToken(ctx, cur.Settings.ShareToken); err != nil {
				return err
			}
			released = cur.Settings.ShareToken
		}
		for _, p := range cur.Participants {
			if err := s.unindexTripForUser(ctx, tx, p.UserID, tripID); err != nil {
				return err
			}
		}
		return tx.DeleteTrip(ctx, tripID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("trip", tripID.String())
		}
		s.logError(ctx, "trip deletion failed", err, "trip_id", tripID)
		return err
	}

	s.cacheInvalidate(ctx, released)
	s.emitAudit(ctx, tripID, actor, "delete_trip", audit.OutcomeSuccess, "")
	if s.metrics != nil {
		s.metrics.IncrementTripsDeleted()
	}
	s.logInfo(ctx, "trip deleted", "trip_id", tripID)
	return nil
}

func (s *Service) loadTrip(ctx context.Context, tripID id.TripID) (*models.Trip, error) {
	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("trip", tripID.String())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load trip")
	}
	return trip, nil
}

func (s *Service) authorize(role id.Role, action id.Action) error {
	if err := rbac.AssertAllowed(role, action); err != nil {
		if dErrors.HasCode(err, dErrors.CodeForbidden) && s.metrics != nil {
			s.metrics.IncrementPermissionDenied(role.String(), action.String())
		}
		return err
	}
	return nil
}

// commitWithRetry retries the transaction on commit races up to the ceiling,
// then surfaces a transaction-conflict error.
func (s *Service) commitWithRetry(ctx context.Context, fn func(tx store.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		err = s.store.RunInTx(ctx, fn)
		if err == nil || !errors.Is(err, store.ErrConflict) {
			return err
		}
	}
	return dErrors.Wrap(err, dErrors.CodeConflict, "could not commit trip transaction").
		With("kind", "transaction_conflict")
}

// commitMaybeWithToken runs fn with a fresh share token per attempt when the
// operation may need to issue one, so a reservation collision retries the
// whole unit with a new token.
func (s *Service) commitMaybeWithToken(ctx context.Context, needsToken bool, fn func(ctx context.Context, tx store.Tx, shareToken string) error) error {
	if !needsToken {
		return s.commitWithRetry(ctx, func(tx store.Tx) error {
			return fn(ctx, tx, "")
		})
	}
	var err error
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		var tok string
		tok, err = token.Generate()
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate share token")
		}
		err = s.store.RunInTx(ctx, func(tx store.Tx) error {
			return fn(ctx, tx, tok)
		})
		if err == nil || !errors.Is(err, store.ErrConflict) {
			return err
		}
		if s.metrics != nil {
			s.metrics.IncrementTokenRetry()
		}
	}
	if s.metrics != nil {
		s.metrics.IncrementTokenExhausted()
	}
	return dErrors.New(dErrors.CodeConflict, "share token allocation exhausted").
		With("kind", "token_allocation_exhausted")
}

// indexTripForUser adds the trip to the user's index, creating the user
// document on first contact. AddTrip has set semantics, so replays are
// harmless.
func (s *Service) indexTripForUser(ctx context.Context, tx store.Tx, userID id.UserID, tripID id.TripID) error {
	now := requestcontext.Now(ctx)
	user, err := tx.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		user = &models.User{ID: userID, CreatedAt: now}
	} else if err != nil {
		return err
	}
	user.AddTrip(tripID)
	user.UpdatedAt = now
	return tx.PutUser(ctx, user)
}

// unindexTripForUser removes the trip from the user's index. A missing user
// document is not an error: the index is derived state.
func (s *Service) unindexTripForUser(ctx context.Context, tx store.Tx, userID id.UserID, tripID id.TripID) error {
	user, err := tx.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	user.RemoveTrip(tripID)
	user.UpdatedAt = requestcontext.Now(ctx)
	return tx.PutUser(ctx, user)
}

// reindexParticipants reconciles the per-user trip indexes after a
// participant-list replacement: joiners gain the trip, leavers lose it.
func (s *Service) reindexParticipants(ctx context.Context, tx store.Tx, cur, next *models.Trip) error {
	before := make(map[id.UserID]bool, len(cur.Participants))
	for _, p := range cur.Participants {
		before[p.UserID] = true
	}
	after := make(map[id.UserID]bool, len(next.Participants))
	for _, p := range next.Participants {
		after[p.UserID] = true
		if !before[p.UserID] {
			if err := s.indexTripForUser(ctx, tx, p.UserID, next.ID); err != nil {
				return err
			}
		}
	}
	for _, p := range cur.Participants {
		if !after[p.UserID] {
			if err := s.unindexTripForUser(ctx, tx, p.UserID, next.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) countValidationFailure(err error) {
	if s.metrics == nil {
		return
	}
	if kind := models.FailureKind(err); kind != "" {
		s.metrics.IncrementValidationFailure(string(kind))
	}
}

func (s *Service) observeMutation(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveMutation(operation, start)
	}
}

func (s *Service) emitAudit(ctx context.Context, tripID id.TripID, actor id.UserID, action string, outcome audit.Outcome, reason string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		TripID:    tripID,
		ActorID:   actor,
		Action:    action,
		Outcome:   outcome,
		Reason:    reason,
	})
}

func (s *Service) cachePut(ctx context.Context, tok string, tripID id.TripID) {
	if s.cache == nil || tok == "" {
		return
	}
	if err := s.cache.Put(ctx, tok, tripID); err != nil {
		s.logError(ctx, "share cache put failed", err, "trip_id", tripID)
	}
}

func (s *Service) cacheInvalidate(ctx context.Context, tok string) {
	if s.cache == nil || tok == "" {
		return
	}
	if err := s.cache.Invalidate(ctx, tok); err != nil {
		s.logError(ctx, "share cache invalidate failed", err)
	}
}

func (s *Service) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg, args...)
	}
}

func (s *Service) logError(ctx context.Context, msg string, err error, args ...any) {
	if s.logger != nil {
		s.logger.ErrorContext(ctx, msg, append(args, "error", err)...)
	}
}

func notFound(entityKind, entityID string) error {
	return dErrors.New(dErrors.CodeNotFound, entityKind+" not found").
		With("entityKind", entityKind).
		With("id", entityID)
}

func permissionDenied(role string, action id.Action) error {
	return dErrors.New(dErrors.CodeForbidden, "role "+role+" may not "+action.String()).
		With("role", role).
		With("action", action.String())
}
