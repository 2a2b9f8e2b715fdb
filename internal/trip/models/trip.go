// Package models contains the trip aggregate, the user document, and the pure
// validation rules that guard every mutation. Nothing in this package touches
// a store; services orchestrate persistence around it.
package models

import (
	"time"

	id "tripmate/pkg/domain"
)

// Trip is the aggregate root: the trip document together with its nested days
// and activities, treated as one consistency boundary.
//
// Invariants:
//   - Title is 3–255 characters after trimming
//   - StartDate <= EndDate, inclusive duration 1–365 days
//   - Participants is non-empty and contains exactly one owner
//   - CreatedBy is immutable after creation
//   - Settings.ShareToken is present iff Settings.IsPublic
type Trip struct {
	ID           id.TripID     `json:"tripId"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	StartDate    time.Time     `json:"startDate"`
	EndDate      time.Time     `json:"endDate"`
	Participants []Participant `json:"participants"`
	Days         []Day         `json:"days"`
	CreatedBy    id.UserID     `json:"createdBy"`
	Settings     Settings      `json:"settings"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Settings carries per-trip presentation and sharing configuration.
type Settings struct {
	Currency   string `json:"currency"`
	IsPublic   bool   `json:"isPublic"`
	Timezone   string `json:"timezone,omitempty"`
	ShareToken string `json:"shareToken,omitempty"`
}

// Participant is a member of a trip. The first participant is always the
// creator with RoleOwner.
type Participant struct {
	UserID      id.UserID `json:"userId"`
	PhoneNumber string    `json:"phoneNumber"`
	DisplayName string    `json:"displayName"`
	Role        id.Role   `json:"role"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Day groups activities under a calendar date. A day belongs to exactly one trip.
type Day struct {
	ID         id.DayID   `json:"dayId"`
	Date       time.Time  `json:"date"`
	Title      string     `json:"title,omitempty"`
	Activities []Activity `json:"activities"`
}

// Activity is a scheduled item within a day.
type Activity struct {
	ID          id.ActivityID `json:"activityId"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Type        string        `json:"type"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	Location    string        `json:"location,omitempty"`
	Cost        *Cost         `json:"cost,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	CreatedBy   id.UserID     `json:"createdBy"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedBy   id.UserID     `json:"updatedBy"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	Attachments []string      `json:"attachments,omitempty"`
}

// Cost records who paid for an activity and how it is split.
type Cost struct {
	Amount       float64     `json:"amount"`
	Currency     string      `json:"currency"`
	PaidBy       id.UserID   `json:"paidBy"`
	SplitBetween []id.UserID `json:"splitBetween,omitempty"`
}

// User is the per-user document. TripIDs is a denormalized index of the trips
// the user participates in; it is updated in the same transaction as the
// owning trip write and must always equal participant membership.
type User struct {
	ID          id.UserID   `json:"userId"`
	PhoneNumber string      `json:"phoneNumber"`
	DisplayName string      `json:"displayName"`
	TripIDs     []id.TripID `json:"tripIds"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// HasTrip reports whether the trip id is already in the user's index.
func (u *User) HasTrip(tripID id.TripID) bool {
	for _, t := range u.TripIDs {
		if t == tripID {
			return true
		}
	}
	return false
}

// AddTrip appends the trip id to the index if absent (set semantics, so
// replayed transactions cannot duplicate entries).
func (u *User) AddTrip(tripID id.TripID) {
	if !u.HasTrip(tripID) {
		u.TripIDs = append(u.TripIDs, tripID)
	}
}

// RemoveTrip deletes the trip id from the index, preserving order.
func (u *User) RemoveTrip(tripID id.TripID) {
	kept := u.TripIDs[:0]
	for _, t := range u.TripIDs {
		if t != tripID {
			kept = append(kept, t)
		}
	}
	u.TripIDs = kept
}

// ParticipantRole looks up the role of a user on this trip.
// The second return is false when the user is not a participant.
func (t *Trip) ParticipantRole(userID id.UserID) (id.Role, bool) {
	for _, p := range t.Participants {
		if p.UserID == userID {
			return p.Role, true
		}
	}
	return "", false
}

// HasParticipant reports whether the user is a participant on this trip.
func (t *Trip) HasParticipant(userID id.UserID) bool {
	_, ok := t.ParticipantRole(userID)
	return ok
}

// Clone deep-copies the trip so staged transaction writes and service return
// values never alias store-owned memory.
func (t *Trip) Clone() *Trip {
	clone := *t
	clone.Participants = append([]Participant(nil), t.Participants...)
	clone.Days = make([]Day, len(t.Days))
	for i, d := range t.Days {
		day := d
		day.Activities = make([]Activity, len(d.Activities))
		for j, a := range d.Activities {
			activity := a
			if a.Cost != nil {
				cost := *a.Cost
				cost.SplitBetween = append([]id.UserID(nil), a.Cost.SplitBetween...)
				activity.Cost = &cost
			}
			activity.Attachments = append([]string(nil), a.Attachments...)
			day.Activities[j] = activity
		}
		clone.Days[i] = day
	}
	return &clone
}

// Clone deep-copies the user document.
func (u *User) Clone() *User {
	clone := *u
	clone.TripIDs = append([]id.TripID(nil), u.TripIDs...)
	return &clone
}
