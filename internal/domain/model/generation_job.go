package model

import "time"

type JobState string

const (
	JobStateSubmitted JobState = "submitted"
	JobStatePolling   JobState = "polling"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateTimedOut  JobState = "timed_out"
)

// Terminal reports whether the state deregisters the user's in-flight slot.
func (s JobState) Terminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed || s == JobStateTimedOut
}

// GenerationJob tracks one outstanding request to the external generation
// provider from submission to a terminal state. Exactly one credit of Kind
// was charged for it; only JobStateSucceeded keeps that credit consumed.
type GenerationJob struct {
	ID         string // ULID, sortable by submission time
	UserID     int64
	Kind       CreditKind
	TaskID     string // opaque provider task handle
	State      JobState
	FailReason string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
