// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// Event types published on the account events queue.
const (
    EventRegistered      = "user.registered"
    EventLoggedIn        = "user.logged_in"
    EventLoggedOut       = "user.logged_out"
    EventPasswordChanged = "user.password_changed"
    EventUpdated         = "user.updated"
    EventPhotoUpdated    = "user.photo_updated"
    EventDeleted         = "user.deleted"
)

// AccountEvent is published whenever an account or its session changes.
// It carries enough for downstream consumers to audit or notify without
// querying the primary database, and never carries credentials.
type AccountEvent struct {
    Type       string `json:"type"`
    UserID     string `json:"user_id"`
    Email      string `json:"email,omitempty"`
    ActorID    string `json:"actor_id,omitempty"`
    OccurredAt string `json:"occurred_at"`
}

// NewAccountEvent stamps an event with the current UTC time.
func NewAccountEvent(typ, userID, email string) AccountEvent {
    return AccountEvent{
        Type:       typ,
        UserID:     userID,
        Email:      email,
        OccurredAt: time.Now().UTC().Format(time.RFC3339),
    }
}
