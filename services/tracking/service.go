package tracking

import (
	"context"
	"encoding/json"
	"fmt"

	"affiliate-platform/pkg/errutil"
	"affiliate-platform/pkg/kafka"
	"affiliate-platform/pkg/repository"
	"affiliate-platform/pkg/topics"
	"affiliate-platform/services/sagalog"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ========================================================
// Service Definition
// ========================================================

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	publisher kafka.Publisher
	sagaLog   sagalog.Repository

	interactions repository.Repository[Interaction]
	partners     repository.Repository[CampaignPartner]
	processed    repository.Repository[ProcessedMessage]
}

type ServiceParams struct {
	fx.In

	DB        *gorm.DB
	Node      *snowflake.Node
	Publisher kafka.Publisher
	SagaLog   sagalog.Repository
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		publisher: p.Publisher,
		sagaLog:   p.SagaLog,

		interactions: repository.ProvideStore[Interaction](p.DB),
		partners:     repository.ProvideStore[CampaignPartner](p.DB),
		processed:    repository.ProvideStore[ProcessedMessage](p.DB),
	}
}

// RecordInteraction persists an interaction and starts the commission saga.
// The saga id is the interaction id; it exists before anything referencing it
// is published. A publish failure is returned to the caller but does not roll
// back the interaction row: the saga simply never progresses past
// tracking_saved.
func (s *Service) RecordInteraction(ctx context.Context, campaignID string, kind InteractionKind) (string, error) {
	span := trace.SpanFromContext(ctx)
	opts := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("campaign_id", campaignID),
		zap.String("kind", string(kind)),
	}

	if !ValidKind(kind) {
		return "", errutil.ValidationFailed("unrecognized interaction kind",
			errutil.WithDetails(errutil.Detail{Field: "kind", Message: fmt.Sprintf("%q is not a recognized interaction kind", kind)}),
		)
	}

	interaction := &Interaction{
		ID:         s.node.Generate().String(),
		CampaignID: campaignID,
		Kind:       kind,
		Status:     StatusSuccess,
	}
	if err := s.interactions.Create(ctx, interaction); err != nil {
		zap.L().With(opts...).Error("failed to save interaction", zap.Error(err))
		return "", err
	}

	sagaID := interaction.ID
	s.appendLog(ctx, sagaID, sagalog.StepStarted, sagalog.StatusPending, "")
	s.appendLog(ctx, sagaID, sagalog.StepTrackingSaved, sagalog.StatusSuccess, fmt.Sprintf("interaction_id: %s", interaction.ID))

	commissionKind, amount := DeriveCommission(kind)
	payload, err := json.Marshal(topics.CommissionRequest{
		Amount:         amount,
		CampaignID:     campaignID,
		CommissionKind: string(commissionKind),
		InteractionID:  sagaID,
	})
	if err != nil {
		return "", err
	}

	if err := s.publisher.Publish(ctx, topics.CommissionRequests, []byte(sagaID), payload); err != nil {
		zap.L().With(opts...).Error("failed to publish commission request",
			zap.String("interaction_id", sagaID), zap.Error(err))
		return "", err
	}

	s.appendLog(ctx, sagaID, sagalog.StepCommissionPublished, sagalog.StatusSuccess, "")

	zap.L().With(opts...).Info("interaction recorded",
		zap.String("interaction_id", sagaID),
		zap.String("commission_kind", string(commissionKind)),
		zap.Float64("amount", amount),
	)
	return sagaID, nil
}

// RegisterCampaignPartner upserts the campaign/partner association and
// publishes the change, feeding the commission service's read model.
func (s *Service) RegisterCampaignPartner(ctx context.Context, campaignID, partnerID string) error {
	if campaignID == "" || partnerID == "" {
		return errutil.ValidationFailed("campaign_id and partner_id are required")
	}

	existing, err := s.partners.FindOne(ctx, &CampaignPartner{CampaignID: campaignID})
	if err != nil {
		return err
	}

	if existing == nil {
		if err := s.partners.Create(ctx, &CampaignPartner{CampaignID: campaignID, PartnerID: partnerID}); err != nil {
			return err
		}
	} else if err := s.partners.Update(ctx, &CampaignPartner{CampaignID: campaignID}, map[string]any{"partner_id": partnerID}); err != nil {
		return err
	}

	payload, err := json.Marshal(topics.PartnerAssociationEvent{CampaignID: campaignID, PartnerID: partnerID})
	if err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, topics.PartnerAssociations, []byte(campaignID), payload); err != nil {
		zap.L().Error("failed to publish partner association",
			zap.String("campaign_id", campaignID),
			zap.String("partner_id", partnerID),
			zap.Error(err),
		)
		return err
	}

	zap.L().Info("campaign partner registered",
		zap.String("campaign_id", campaignID),
		zap.String("partner_id", partnerID),
	)
	return nil
}

// GetSagaTrail exposes the audit trail for one saga id.
func (s *Service) GetSagaTrail(ctx context.Context, sagaID string) ([]*sagalog.Entry, error) {
	return s.sagaLog.GetBySagaID(ctx, sagaID)
}

// appendLog records a saga step. Log-store failures never undo the step they
// describe, so they are logged and swallowed here.
func (s *Service) appendLog(ctx context.Context, sagaID string, step sagalog.Step, status sagalog.Status, details string) {
	err := s.sagaLog.Append(ctx, &sagalog.Entry{
		SagaID:  sagaID,
		Step:    step,
		Status:  status,
		Details: details,
	})
	if err != nil {
		zap.L().Warn("failed to append saga log",
			zap.String("saga_id", sagaID),
			zap.String("step", string(step)),
			zap.Error(err),
		)
	}
}
