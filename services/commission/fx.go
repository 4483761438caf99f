package commission

import (
	"affiliate-platform/pkg/config"
	"affiliate-platform/pkg/kafka"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("commission.service",
	fx.Provide(
		NewService,
		NewResolver,
	),
	fx.Invoke(
		migrate,
		registerConsumers,
	),
)

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Commission{}, &PartnerAssociation{}, &DeadLetter{})
}

func registerConsumers(lc fx.Lifecycle, cfg *config.Config, svc *Service, publisher kafka.Publisher) {
	kafka.RegisterConsumer(lc, NewRequestConsumer(cfg, svc, publisher))
	kafka.RegisterConsumer(lc, NewAssociationConsumer(cfg, svc, publisher))
}
