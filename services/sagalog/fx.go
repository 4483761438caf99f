package sagalog

import (
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("sagalog",
	fx.Provide(NewRepository),
	fx.Invoke(migrate),
)

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Entry{})
}
