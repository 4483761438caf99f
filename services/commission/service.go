package commission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"affiliate-platform/pkg/kafka"
	"affiliate-platform/pkg/repository"
	"affiliate-platform/pkg/topics"
	"affiliate-platform/services/sagalog"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ========================================================
// Service Definition
// ========================================================

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	publisher kafka.Publisher
	resolver  *Resolver
	sagaLog   sagalog.Repository

	commissions  repository.Repository[Commission]
	associations repository.Repository[PartnerAssociation]
	deadLetters  repository.Repository[DeadLetter]
}

type ServiceParams struct {
	fx.In

	DB        *gorm.DB
	Node      *snowflake.Node
	Publisher kafka.Publisher
	Resolver  *Resolver
	SagaLog   sagalog.Repository
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		publisher: p.Publisher,
		resolver:  p.Resolver,
		sagaLog:   p.SagaLog,

		commissions:  repository.ProvideStore[Commission](p.DB),
		associations: repository.ProvideStore[PartnerAssociation](p.DB),
		deadLetters:  repository.ProvideStore[DeadLetter](p.DB),
	}
}

// ProcessRequest handles one commission-request message: resolve the partner
// and persist the assignment, or publish a compensation. A request whose
// campaign has no partner is compensated and acknowledged; replaying it would
// fail the same way forever. Requests redelivered after a successful save are
// absorbed by the interaction_id uniqueness check.
func (s *Service) ProcessRequest(ctx context.Context, msg *kafka.Message) error {
	var req topics.CommissionRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		s.recordDeadLetter(ctx, msg, fmt.Sprintf("malformed commission request: %v", err))
		return kafka.Terminal(fmt.Errorf("malformed commission request: %w", err))
	}
	if req.InteractionID == "" {
		s.recordDeadLetter(ctx, msg, "commission request missing interaction_id")
		return kafka.Terminal(errors.New("commission request missing interaction_id"))
	}

	span := trace.SpanFromContext(ctx)
	opts := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("interaction_id", req.InteractionID),
		zap.String("campaign_id", req.CampaignID),
	}

	partnerID, err := s.resolver.FindPartnerIDForCampaign(ctx, req.CampaignID)
	if err != nil {
		zap.L().With(opts...).Error("partner resolution failed", zap.Error(err))
		return err
	}

	if partnerID == "" {
		return s.compensate(ctx, req)
	}

	existing, err := s.commissions.FindOne(ctx, &Commission{InteractionID: req.InteractionID})
	if err != nil {
		return err
	}
	if existing != nil {
		zap.L().With(opts...).Info("commission already assigned, skipping redelivery")
		return nil
	}

	assignment := &Commission{
		ID:             s.node.Generate().String(),
		Amount:         req.Amount,
		PartnerID:      partnerID,
		CampaignID:     req.CampaignID,
		CommissionKind: req.CommissionKind,
		InteractionID:  req.InteractionID,
		Status:         "success",
	}
	if err := s.commissions.Create(ctx, assignment); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			zap.L().With(opts...).Info("commission already assigned by a concurrent consumer")
			return nil
		}
		zap.L().With(opts...).Error("failed to save commission", zap.Error(err))
		return err
	}

	s.appendLog(ctx, req.InteractionID, sagalog.StepCommissionReceived, sagalog.StatusSuccess, "")
	s.appendLog(ctx, req.InteractionID, sagalog.StepPartnerQueried, sagalog.StatusSuccess,
		fmt.Sprintf("partner_id: %s", partnerID))
	s.appendLog(ctx, req.InteractionID, sagalog.StepCommissionSaved, sagalog.StatusSuccess, "")

	zap.L().With(opts...).Info("commission assigned",
		zap.String("partner_id", partnerID),
		zap.String("commission_kind", req.CommissionKind),
		zap.Float64("amount", req.Amount),
	)
	return nil
}

// compensate publishes the fail-tracking event for an unresolvable request.
// The publish must succeed before the request may be acknowledged; afterwards
// the failure is terminal, since the lookup cannot succeed on redelivery until
// a new association event arrives, and that re-run starts from the tracking
// side.
func (s *Service) compensate(ctx context.Context, req topics.CommissionRequest) error {
	payload, err := json.Marshal(topics.FailTrackingEvent{InteractionID: req.InteractionID})
	if err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, topics.FailTracking, []byte(req.InteractionID), payload); err != nil {
		zap.L().Error("failed to publish fail-tracking event",
			zap.String("interaction_id", req.InteractionID), zap.Error(err))
		return err
	}

	s.appendLog(ctx, req.InteractionID, sagalog.StepCommissionFailed, sagalog.StatusFailed,
		fmt.Sprintf("no partner for campaign %s", req.CampaignID))

	zap.L().Warn("no partner for campaign, compensation published",
		zap.String("interaction_id", req.InteractionID),
		zap.String("campaign_id", req.CampaignID),
	)
	return kafka.Terminal(fmt.Errorf("no partner for campaign %s", req.CampaignID))
}

// ApplyAssociation projects one partner-association event into the read model.
// Updates are last-writer-wins keyed by campaign; the cache entry is dropped so
// the next resolution sees the new partner.
func (s *Service) ApplyAssociation(ctx context.Context, msg *kafka.Message) error {
	var event topics.PartnerAssociationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		s.recordDeadLetter(ctx, msg, fmt.Sprintf("malformed association event: %v", err))
		return kafka.Terminal(fmt.Errorf("malformed association event: %w", err))
	}
	if event.CampaignID == "" || event.PartnerID == "" {
		s.recordDeadLetter(ctx, msg, "association event missing campaign_id or partner_id")
		return kafka.Terminal(errors.New("association event missing campaign_id or partner_id"))
	}

	existing, err := s.associations.FindOne(ctx, &PartnerAssociation{CampaignID: event.CampaignID})
	if err != nil {
		return err
	}

	if existing == nil {
		err = s.associations.Create(ctx, &PartnerAssociation{
			CampaignID: event.CampaignID,
			PartnerID:  event.PartnerID,
		})
	} else {
		err = s.associations.Update(ctx, &PartnerAssociation{CampaignID: event.CampaignID},
			map[string]any{"partner_id": event.PartnerID})
	}
	if err != nil {
		return err
	}

	s.resolver.Invalidate(ctx, event.CampaignID)

	zap.L().Info("partner association projected",
		zap.String("campaign_id", event.CampaignID),
		zap.String("partner_id", event.PartnerID),
	)
	return nil
}

// recordDeadLetter keeps a local copy of a terminally failed message. Failing
// to record it must not mask the terminal classification, so errors only log.
func (s *Service) recordDeadLetter(ctx context.Context, msg *kafka.Message, reason string) {
	err := s.deadLetters.Create(ctx, &DeadLetter{
		ID:      s.node.Generate().String(),
		Topic:   msg.Topic,
		Key:     string(msg.Key),
		Payload: datatypes.JSON(msg.Value),
		Reason:  reason,
	})
	if err != nil {
		zap.L().Error("failed to record dead letter",
			zap.String("message_id", msg.ID), zap.Error(err))
	}
}

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
