package ledger

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("ledger.service",
	fx.Provide(NewService),
	fx.Invoke(migrate),
)

func migrate(db *gorm.DB) {
	if err := db.AutoMigrate(&JournalEntry{}); err != nil {
		zap.L().Error("failed to migrate drip journal", zap.Error(err))
	}
}
