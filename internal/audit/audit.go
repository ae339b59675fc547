// Package audit records profile lifecycle events. Anonymizing deletion is
// irreversible, so the audit trail is the only durable evidence that a
// registration existed and when it was scrambled.
package audit

import (
	"context"
	"time"
)

// Action names an audited profile event.
type Action string

const (
	ActionProfileCreated        Action = "profile_created"
	ActionRegistrationCompleted Action = "registration_completed"
	ActionProfileAnonymized     Action = "profile_anonymized"
)

// Event is one audit record. Subject is the identity-provider subject the
// action applied to; for anonymization it is the pre-scramble subject.
type Event struct {
	Action    Action    `json:"action"`
	Subject   string    `json:"subject"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists audit events append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}
