package models

import (
	"time"

	id "tripmate/pkg/domain"
)

// CreateTripRequest is the payload for trip creation. Server-assigned fields
// (trip id, creator participant, timestamps) are never accepted from callers.
type CreateTripRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	StartDate   time.Time      `json:"startDate"`
	EndDate     time.Time      `json:"endDate"`
	Days        []Day          `json:"days,omitempty"`
	Settings    *SettingsPatch `json:"settings,omitempty"`
}

// TripPatch is a merge patch: only non-nil fields change, omitted fields stay
// untouched. CreatedBy is present solely so attempts to change it can be
// rejected with the owner-immutable kind.
type TripPatch struct {
	Title        *string        `json:"title,omitempty"`
	Description  *string        `json:"description,omitempty"`
	StartDate    *time.Time     `json:"startDate,omitempty"`
	EndDate      *time.Time     `json:"endDate,omitempty"`
	Days         *[]Day         `json:"days,omitempty"`
	Participants *[]Participant `json:"participants,omitempty"`
	CreatedBy    *id.UserID     `json:"createdBy,omitempty"`
	Settings     *SettingsPatch `json:"settings,omitempty"`
}

// SettingsPatch is the merge patch for trip settings. ShareToken is absent by
// design: tokens are issued by the service, never accepted from callers.
type SettingsPatch struct {
	Currency *string `json:"currency,omitempty"`
	IsPublic *bool   `json:"isPublic,omitempty"`
	Timezone *string `json:"timezone,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p *TripPatch) IsZero() bool {
	return p.Title == nil && p.Description == nil && p.StartDate == nil &&
		p.EndDate == nil && p.Days == nil && p.Participants == nil &&
		p.CreatedBy == nil && p.Settings == nil
}

// TouchesContent reports whether the patch edits trip content (title,
// description, dates, days, or settings). Content edits are gated by the
// update_title action.
func (p *TripPatch) TouchesContent() bool {
	return p.Title != nil || p.Description != nil || p.StartDate != nil ||
		p.EndDate != nil || p.Days != nil || p.Settings != nil
}

// TouchesParticipants reports whether the patch edits the participant list,
// gated by the add_participant action.
func (p *TripPatch) TouchesParticipants() bool {
	return p.Participants != nil
}

// Apply merges the patch onto a copy of the existing trip. Callers must have
// validated the patch first; Apply performs no checks of its own.
func (p *TripPatch) Apply(existing *Trip, now time.Time) *Trip {
	next := existing.Clone()
	if p.Title != nil {
		next.Title = normalizeText(*p.Title)
	}
	if p.Description != nil {
		next.Description = normalizeText(*p.Description)
	}
	if p.StartDate != nil {
		next.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		next.EndDate = *p.EndDate
	}
	if p.Days != nil {
		next.Days = assignDayIDs(*p.Days)
	}
	if p.Participants != nil {
		next.Participants = append([]Participant(nil), (*p.Participants)...)
	}
	if p.Settings != nil {
		if p.Settings.Currency != nil {
			next.Settings.Currency = normalizeCurrency(*p.Settings.Currency)
		}
		if p.Settings.IsPublic != nil {
			next.Settings.IsPublic = *p.Settings.IsPublic
		}
		if p.Settings.Timezone != nil {
			next.Settings.Timezone = *p.Settings.Timezone
		}
	}
	next.UpdatedAt = now
	return next
}

// assignDayIDs gives server-side identifiers to days and activities that
// arrive without one, leaving existing identifiers untouched.
func assignDayIDs(days []Day) []Day {
	out := make([]Day, len(days))
	for i, d := range days {
		day := d
		if day.ID == (id.DayID{}) {
			day.ID = id.NewDayID()
		}
		day.Activities = append([]Activity(nil), d.Activities...)
		for j := range day.Activities {
			if day.Activities[j].ID == (id.ActivityID{}) {
				day.Activities[j].ID = id.NewActivityID()
			}
		}
		out[i] = day
	}
	return out
}
