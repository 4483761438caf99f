package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"affiliate-platform/pkg/config"
	"affiliate-platform/pkg/kafka"
	"affiliate-platform/pkg/topics"
	"affiliate-platform/services/sagalog"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CompensateInteraction marks the interaction failed after the commission
// side gave up on it. messageID is the broker-assigned id of the compensation
// message: once its marker exists, redeliveries are acknowledged without any
// further effect. The status update and the marker are written in one
// transaction, so a crash cannot apply one without the other.
func (s *Service) CompensateInteraction(ctx context.Context, messageID, interactionID string) error {
	opts := []zap.Field{
		zap.String("message_id", messageID),
		zap.String("interaction_id", interactionID),
	}

	marker, err := s.processed.FindOne(ctx, &ProcessedMessage{MessageID: messageID})
	if err != nil {
		return err
	}
	if marker != nil {
		zap.L().With(opts...).Info("compensation message already processed, skipping")
		return nil
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Interaction{}).
			Where(&Interaction{ID: interactionID}).
			Update("status", StatusFailed)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			zap.L().With(opts...).Info("no interaction found to compensate")
		}

		return tx.Create(&ProcessedMessage{
			MessageID:   messageID,
			ProcessedAt: time.Now().UTC(),
		}).Error
	})

	s.appendLog(ctx, interactionID, sagalog.StepCommissionFailed, sagalog.StatusFailed,
		fmt.Sprintf("message_id: %s", messageID))

	if txErr != nil {
		zap.L().With(opts...).Error("failed to compensate interaction", zap.Error(txErr))
		s.appendLog(ctx, interactionID, sagalog.StepCompensationCompleted, sagalog.StatusFailed, txErr.Error())
		return txErr
	}

	s.appendLog(ctx, interactionID, sagalog.StepCompensationCompleted, sagalog.StatusSuccess, "")
	zap.L().With(opts...).Info("interaction compensated")
	return nil
}

// HandleFailTracking adapts a fail-tracking message into a compensation. A
// payload that cannot be decoded will never succeed on redelivery, so it is
// terminal; everything else is retried through broker redelivery.
func (s *Service) HandleFailTracking(ctx context.Context, msg *kafka.Message) error {
	var event topics.FailTrackingEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return kafka.Terminal(fmt.Errorf("malformed fail-tracking payload: %w", err))
	}
	if event.InteractionID == "" {
		return kafka.Terminal(fmt.Errorf("fail-tracking payload missing interaction_id"))
	}

	return s.CompensateInteraction(ctx, msg.ID, event.InteractionID)
}

// NewFailTrackingConsumer builds the compensation consumer loop. It gets its
// own broker client; terminally bad payloads are routed to the dead-letter
// topic instead of cycling forever.
func NewFailTrackingConsumer(cfg *config.Config, svc *Service, publisher kafka.Publisher) *kafka.Consumer {
	deadLetterTopic := cfg.Kafka.DeadLetter
	if deadLetterTopic == "" {
		deadLetterTopic = topics.DeadLetters
	}

	return kafka.NewConsumer(cfg,
		"fail-tracking",
		topics.FailTracking,
		topics.GroupFailTracking,
		svc.HandleFailTracking,
		kafka.WithDeadLetter(publisher, deadLetterTopic),
	)
}
