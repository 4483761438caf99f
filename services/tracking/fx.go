package tracking

import (
	"affiliate-platform/pkg/config"
	"affiliate-platform/pkg/kafka"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("tracking.service",
	fx.Provide(
		NewService,
		NewHandler,
	),
	fx.Invoke(
		migrate,
		registerRoutes,
		registerFailTrackingConsumer,
	),
)

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Interaction{}, &CampaignPartner{}, &ProcessedMessage{})
}

func registerFailTrackingConsumer(lc fx.Lifecycle, cfg *config.Config, svc *Service, publisher kafka.Publisher) {
	kafka.RegisterConsumer(lc, NewFailTrackingConsumer(cfg, svc, publisher))
}
