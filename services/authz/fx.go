package authz

import (
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("authz.service",
	fx.Provide(NewService),
	fx.Invoke(migrate),
)

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(&AllowedSource{})
}
