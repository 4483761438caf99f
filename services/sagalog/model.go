package sagalog

import (
	"time"
)

// ENUM-LIKE constants (shared by both sides of the saga)
type Step string
type Status string

const (
	StepStarted               Step = "started"
	StepTrackingSaved         Step = "tracking_saved"
	StepCommissionPublished   Step = "commission_published"
	StepCommissionReceived    Step = "commission_received"
	StepPartnerQueried        Step = "partner_queried"
	StepCommissionSaved       Step = "commission_saved"
	StepCommissionFailed      Step = "commission_failed"
	StepCompensationCompleted Step = "compensation_completed"

	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Entry is one observed step of one saga instance. Rows are append-only:
// written by both services into the shared log store, never updated or
// deleted. The saga id is the interaction id that started the saga.
type Entry struct {
	ID        string    `gorm:"column:id;primaryKey"`
	SagaID    string    `gorm:"column:saga_id;index;not null"`
	Step      Step      `gorm:"column:step;type:varchar(50);not null"`
	Status    Status    `gorm:"column:status;type:varchar(20);not null"`
	Timestamp time.Time `gorm:"column:timestamp;not null"`
	Details   string    `gorm:"column:details;type:text"`
}

func (Entry) TableName() string { return "saga_logs" }
