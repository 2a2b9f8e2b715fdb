package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tripmate/internal/transport/http/shared"
	"tripmate/internal/trip/models"
	id "tripmate/pkg/domain"
	dErrors "tripmate/pkg/domain-errors"
	"tripmate/pkg/requestcontext"
)

// TripService defines the domain operations the trip handlers delegate to.
type TripService interface {
	CreateTrip(ctx context.Context, creator models.Participant, req *models.CreateTripRequest) (*models.Trip, error)
	GetTrip(ctx context.Context, actor id.UserID, tripID id.TripID) (*models.Trip, error)
	GetTripByShareToken(ctx context.Context, token string) (*models.Trip, error)
	UpdateTrip(ctx context.Context, actor id.UserID, tripID id.TripID, patch *models.TripPatch) (*models.Trip, error)
	AddParticipant(ctx context.Context, actor id.UserID, tripID id.TripID, p models.Participant) (*models.Trip, error)
	DeleteTrip(ctx context.Context, actor id.UserID, tripID id.TripID) error
}

// TripHandler is the thin HTTP layer over the trip domain service. It decodes,
// delegates, and encodes; all policy lives in the service.
type TripHandler struct {
	trips  TripService
	logger *slog.Logger
}

// NewTripHandler creates a trip handler.
func NewTripHandler(trips TripService, logger *slog.Logger) *TripHandler {
	return &TripHandler{trips: trips, logger: logger}
}

// Register mounts the authenticated trip routes.
func (h *TripHandler) Register(r chi.Router) {
	r.Post("/trips", h.handleCreateTrip)
	r.Get("/trips/{tripID}", h.handleGetTrip)
	r.Patch("/trips/{tripID}", h.handleUpdateTrip)
	r.Delete("/trips/{tripID}", h.handleDeleteTrip)
	r.Post("/trips/{tripID}/participants", h.handleAddParticipant)
}

// RegisterPublic mounts the unauthenticated share-link route.
func (h *TripHandler) RegisterPublic(r chi.Router) {
	r.Get("/share/{token}", h.handleGetByShareToken)
}

func (h *TripHandler) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		h.contextError(ctx, w)
		return
	}

	var req models.CreateTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	creator := models.Participant{
		UserID:      actor.UserID,
		PhoneNumber: actor.PhoneNumber,
		DisplayName: actor.DisplayName,
	}
	trip, err := h.trips.CreateTrip(ctx, creator, &req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, trip)
}

func (h *TripHandler) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		h.contextError(ctx, w)
		return
	}
	tripID, err := id.ParseTripID(chi.URLParam(r, "tripID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	trip, err := h.trips.GetTrip(ctx, actor.UserID, tripID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, trip)
}

func (h *TripHandler) handleUpdateTrip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		h.contextError(ctx, w)
		return
	}
	tripID, err := id.ParseTripID(chi.URLParam(r, "tripID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var patch models.TripPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	trip, err := h.trips.UpdateTrip(ctx, actor.UserID, tripID, &patch)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, trip)
}

func (h *TripHandler) handleDeleteTrip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		h.contextError(ctx, w)
		return
	}
	tripID, err := id.ParseTripID(chi.URLParam(r, "tripID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.trips.DeleteTrip(ctx, actor.UserID, tripID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TripHandler) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		h.contextError(ctx, w)
		return
	}
	tripID, err := id.ParseTripID(chi.URLParam(r, "tripID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var p models.Participant
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	trip, err := h.trips.AddParticipant(ctx, actor.UserID, tripID, p)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, trip)
}

func (h *TripHandler) handleGetByShareToken(w http.ResponseWriter, r *http.Request) {
	trip, err := h.trips.GetTripByShareToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, trip)
}

// contextError fires when a route behind RequireAuth has no actor in context,
// which indicates broken middleware wiring, not caller error.
func (h *TripHandler) contextError(ctx context.Context, w http.ResponseWriter) {
	h.logger.ErrorContext(ctx, "actor missing from context despite auth middleware",
		"request_id", requestcontext.RequestID(ctx),
	)
	shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
}
