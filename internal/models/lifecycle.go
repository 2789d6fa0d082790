package models

import "fmt"

// moderation lists the admin transitions; anything absent is illegal.
var moderation = map[EventStatus][]EventStatus{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusRejected},
	StatusRejected: {StatusApproved},
}

func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	for _, allowed := range moderation[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CheckTransition authorizes actor to move an event from one status to another.
// Non-admins never transition an existing event.
func CheckTransition(actor *Actor, from, to EventStatus) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("only admins can change event status: %w", ErrForbidden)
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("cannot move event from %s to %s: %w", from, to, ErrConflict)
	}
	return nil
}

// InitialStatus is the status a new event gets from its creator.
func InitialStatus(creator Role) EventStatus {
	if creator == RoleAdmin {
		return StatusApproved
	}
	return StatusPending
}

// CheckEdit applies the editing rule: owners edit drafts and pending events,
// admins edit anything.
func CheckEdit(actor *Actor, e *Event) error {
	if actor.IsAdmin() {
		return nil
	}
	if !actor.Owns(e) {
		return fmt.Errorf("only the organizer can edit this event: %w", ErrForbidden)
	}
	if e.Status != StatusDraft && e.Status != StatusPending {
		return fmt.Errorf("%s events can only be edited by an admin: %w", e.Status, ErrForbidden)
	}
	return nil
}

func CheckDelete(actor *Actor, e *Event) error {
	if actor.IsAdmin() || actor.Owns(e) {
		return nil
	}
	return fmt.Errorf("only the organizer can delete this event: %w", ErrForbidden)
}

// CheckFeature authorizes a featured toggle. Admins and premium owners may feature,
// and only approved events can be featured.
func CheckFeature(actor *Actor, e *Event, featured bool) error {
	if !actor.IsAdmin() && !(actor.Owns(e) && actor.Premium) {
		return fmt.Errorf("featuring requires an admin or a premium organizer: %w", ErrForbidden)
	}
	if featured && !e.IsPublic() {
		return fmt.Errorf("only approved events can be featured: %w", ErrConflict)
	}
	return nil
}
