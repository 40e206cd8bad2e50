package weighting

import (
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("weighting.service",
	fx.Provide(NewService),
	fx.Invoke(migrate),
)

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Coefficient{})
}
