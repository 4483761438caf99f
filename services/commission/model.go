package commission

import (
	"time"

	"gorm.io/datatypes"
)

// Commission is the computed monetary outcome for one interaction. Created at
// most once per interaction (unique interaction_id) and immutable afterwards.
// interaction_id is a correlation key, not a foreign key: the tracking service
// owns that row in its own database.
type Commission struct {
	ID             string    `gorm:"column:commission_id;primaryKey"`
	Amount         float64   `gorm:"column:amount;not null"`
	PartnerID      string    `gorm:"column:partner_id;index;not null"`
	CampaignID     string    `gorm:"column:campaign_id;index;not null"`
	CommissionKind string    `gorm:"column:commission_kind;type:varchar(10);not null"`
	InteractionID  string    `gorm:"column:interaction_id;uniqueIndex;not null"`
	Status         string    `gorm:"column:status;type:varchar(20);not null;default:'success'"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Commission) TableName() string { return "commissions" }

// PartnerAssociation is the commission-owned read model of campaign/partner
// assignments, projected from partner-association events published by the
// tracking service.
type PartnerAssociation struct {
	CampaignID string    `gorm:"column:campaign_id;primaryKey"`
	PartnerID  string    `gorm:"column:partner_id;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (PartnerAssociation) TableName() string { return "partner_associations" }

// DeadLetter records a message that terminally failed processing, mirroring
// what was routed to the dead-letter topic so operators can inspect it locally.
type DeadLetter struct {
	ID        string         `gorm:"column:dead_letter_id;primaryKey"`
	Topic     string         `gorm:"column:topic;not null"`
	Key       string         `gorm:"column:key"`
	Payload   datatypes.JSON `gorm:"column:payload;type:jsonb"`
	Reason    string         `gorm:"column:reason;type:text"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (DeadLetter) TableName() string { return "dead_letters" }
