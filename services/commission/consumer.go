package commission

import (
	"affiliate-platform/pkg/config"
	"affiliate-platform/pkg/kafka"
	"affiliate-platform/pkg/topics"
)

// NewRequestConsumer builds the commission-request loop. Each consumer owns
// its broker client; terminally bad requests are routed to the dead-letter
// topic after a local copy is recorded.
func NewRequestConsumer(cfg *config.Config, svc *Service, publisher kafka.Publisher) *kafka.Consumer {
	return kafka.NewConsumer(cfg,
		"commission-request",
		topics.CommissionRequests,
		topics.GroupCommission,
		svc.ProcessRequest,
		kafka.WithDeadLetter(publisher, deadLetterTopic(cfg)),
	)
}

// NewAssociationConsumer builds the partner-association projector loop.
func NewAssociationConsumer(cfg *config.Config, svc *Service, publisher kafka.Publisher) *kafka.Consumer {
	return kafka.NewConsumer(cfg,
		"association-projector",
		topics.PartnerAssociations,
		topics.GroupAssociations,
		svc.ApplyAssociation,
		kafka.WithDeadLetter(publisher, deadLetterTopic(cfg)),
	)
}

func deadLetterTopic(cfg *config.Config) string {
	if cfg.Kafka.DeadLetter != "" {
		return cfg.Kafka.DeadLetter
	}
	return topics.DeadLetters
}
