package domain

import "time"

// MutationKind names the user action behind an optimistic write.
type MutationKind string

const (
	MutationAdd      MutationKind = "add"
	MutationEdit     MutationKind = "edit"
	MutationComplete MutationKind = "complete"
	MutationRestore  MutationKind = "restore"
	MutationSync     MutationKind = "sync"
)

// MutationState tracks a mutation from optimistic apply to settlement.
type MutationState string

const (
	MutationApplied    MutationState = "applied"
	MutationConfirmed  MutationState = "confirmed"
	MutationRolledBack MutationState = "rolled_back"
)

// Settled reports whether the external call has answered.
func (s MutationState) Settled() bool {
	return s == MutationConfirmed || s == MutationRolledBack
}

// MutationRecord is the journal entry kept for every mutation.
type MutationRecord struct {
	ID               string        `json:"id"`
	Kind             MutationKind  `json:"kind"`
	TaskUUID         string        `json:"task_uuid,omitempty"`
	TempUUID         string        `json:"temp_uuid,omitempty"`
	State            MutationState `json:"state"`
	PredictedUrgency *float64      `json:"predicted_urgency,omitempty"`
	Error            string        `json:"error,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	SettledAt        *time.Time    `json:"settled_at,omitempty"`
}
