package topics

// Topic and consumer-group names shared by the tracking and commission
// services. Partition keys are interaction ids so every message for one
// interaction stays ordered within its topic.
const (
	CommissionRequests  = "assign-commission-to-partner"
	FailTracking        = "fail-tracking-events"
	PartnerAssociations = "campaign-partner-associations"
	DeadLetters         = "saga-dead-letters"

	GroupCommission   = "commission-subscriber"
	GroupFailTracking = "fail-tracking-consumer"
	GroupAssociations = "commission-association-projector"
)

// CommissionRequest asks the commission service to assign a commission for a
// recorded interaction. Amount and kind are derived on the tracking side; the
// commission service never recomputes them.
type CommissionRequest struct {
	Amount         float64 `json:"amount"`
	CampaignID     string  `json:"campaign_id"`
	CommissionKind string  `json:"commission_kind"`
	InteractionID  string  `json:"interaction_id"`
}

// FailTrackingEvent compensates a recorded interaction after commission
// assignment failed downstream.
type FailTrackingEvent struct {
	InteractionID string `json:"interaction_id"`
}

// PartnerAssociationEvent announces that a campaign is (re)assigned to a
// partner. The commission service projects these into its own read model
// instead of reading the tracking database.
type PartnerAssociationEvent struct {
	CampaignID string `json:"campaign_id"`
	PartnerID  string `json:"partner_id"`
}
