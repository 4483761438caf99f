package tracking

import (
	"time"
)

// ENUM-LIKE constants
type InteractionKind string
type InteractionStatus string
type CommissionKind string

const (
	KindClick      InteractionKind = "click"
	KindImpression InteractionKind = "impression"
	KindConversion InteractionKind = "conversion"

	StatusSuccess InteractionStatus = "success"
	StatusFailed  InteractionStatus = "failed"

	CommissionCPC CommissionKind = "CPC"
	CommissionCPM CommissionKind = "CPM"
	CommissionCPA CommissionKind = "CPA"
)

// Interaction is one recorded partner/campaign interaction. The id doubles as
// the saga correlation id and is assigned before anything downstream is
// published. After creation only the compensation path touches the row, and
// only its status.
type Interaction struct {
	ID         string            `gorm:"column:interaction_id;primaryKey"`
	CampaignID string            `gorm:"column:campaign_id;index;not null"`
	Kind       InteractionKind   `gorm:"column:kind;type:varchar(50);not null"`
	Status     InteractionStatus `gorm:"column:status;type:varchar(20);not null;default:'success'"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (Interaction) TableName() string { return "interactions" }

// CampaignPartner associates a campaign with the partner earning its
// commissions. Owned by the tracking side; the commission service learns about
// it through partner-association events, never by reading this table.
type CampaignPartner struct {
	CampaignID string    `gorm:"column:campaign_id;primaryKey"`
	PartnerID  string    `gorm:"column:partner_id;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CampaignPartner) TableName() string { return "campaign_partners" }

// ProcessedMessage marks a compensation message whose side effects have been
// applied. Presence means "do not reapply", not "was received".
type ProcessedMessage struct {
	MessageID   string    `gorm:"column:message_id;primaryKey"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null"`
}

func (ProcessedMessage) TableName() string { return "processed_messages" }

type commissionRate struct {
	Kind   CommissionKind
	Amount float64
}

// rateTable is the single source of truth for interaction economics. Other
// services carry the derived amount on the wire and never recompute it.
var rateTable = map[InteractionKind]commissionRate{
	KindClick:      {Kind: CommissionCPC, Amount: 0.10},
	KindImpression: {Kind: CommissionCPM, Amount: 0.01},
	KindConversion: {Kind: CommissionCPA, Amount: 1.00},
}

// DeriveCommission maps an interaction kind to its commission kind and base
// amount. Unmapped kinds fall back to the click rate.
func DeriveCommission(kind InteractionKind) (CommissionKind, float64) {
	rate, ok := rateTable[kind]
	if !ok {
		rate = rateTable[KindClick]
	}
	return rate.Kind, rate.Amount
}

func ValidKind(kind InteractionKind) bool {
	_, ok := rateTable[kind]
	return ok
}
