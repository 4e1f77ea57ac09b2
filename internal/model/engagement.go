package model

import (
	"time"

	"github.com/google/uuid"
)

type EngagementState string

const (
	EngagementStateAccepted  EngagementState = "accepted"
	EngagementStateScheduled EngagementState = "scheduled"
	EngagementStateCompleted EngagementState = "completed"
	EngagementStateCancelled EngagementState = "cancelled"
)

// Действия, которые пишутся в журнал встречи
const (
	AuditActionAccept   = "accept"
	AuditActionSchedule = "schedule"
	AuditActionComplete = "complete"
	AuditActionCancel   = "cancel"
)

// AuditEntry запись журнала. Журнал только дополняется.
type AuditEntry struct {
	At     time.Time         `json:"at"`
	Actor  uuid.UUID         `json:"actor"`
	Action string            `json:"action"`
	Detail map[string]string `json:"detail,omitempty"`
}

// Engagement состоявшаяся договорённость, создаётся при принятии заявки
type Engagement struct {
	ID                 uuid.UUID       `json:"id"`
	RequestID          uuid.UUID       `json:"request_id"`
	PractitionerID     uuid.UUID       `json:"practitioner_id"`
	RequesterID        uuid.UUID       `json:"requester_id"`
	State              EngagementState `json:"state"`
	ScheduledAt        *time.Time      `json:"scheduled_at"`
	SlotID             *uuid.UUID      `json:"slot_id"`
	GiftID             *uuid.UUID      `json:"gift_id"`
	CancellationReason string          `json:"cancellation_reason"`
	CompletedAt        *time.Time      `json:"completed_at"`
	Audit              []AuditEntry    `json:"audit"`
	CreatedAt          time.Time       `json:"created_at"`
}

// IsParty проверяет что пользователь участник встречи
func (e *Engagement) IsParty(userID uuid.UUID) bool {
	return userID == e.PractitionerID || userID == e.RequesterID
}

// IsOpen проверяет что встречу ещё можно перенести или отменить
func (e *Engagement) IsOpen() bool {
	return e.State == EngagementStateAccepted || e.State == EngagementStateScheduled
}
