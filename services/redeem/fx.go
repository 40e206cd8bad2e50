package redeem

import (
	"drip-controlplane/pkg/task"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("redeem.service",
	fx.Provide(NewService),
	fx.Invoke(migrate),
)

// TaskModule registers the sweeper on the worker's mux. Only the task
// worker includes it.
var TaskModule = fx.Module("redeem.tasks",
	fx.Invoke(registerTaskHandlers),
)

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Redemption{})
}

func registerTaskHandlers(mux *asynq.ServeMux, s *Service) {
	mux.HandleFunc(task.RedemptionSweepTask, s.HandleRedemptionSweep)
}
