package redeem

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// HandleRedemptionSweep refunds redemptions stuck in awaiting_confirmation
// longer than the configured timeout. The rule matches a failed remote
// call: the depositor gets everything back.
func (s *Service) HandleRedemptionSweep(ctx context.Context, _ *asynq.Task) error {
	cutoff := time.Now().Add(-s.cfg.Drip.RedemptionTimeout)

	var stale []Redemption
	err := s.db.WithContext(ctx).
		Where("state = ? AND created_at < ?", StateAwaitingConfirmation, cutoff).
		Find(&stale).Error
	if err != nil {
		zap.L().Error("failed to query stale redemptions", zap.Error(err))
		return err
	}

	for i := range stale {
		row := &stale[i]
		if _, err := s.settle(ctx, row, row.Amount); err != nil {
			// The row stays open and the next sweep retries it.
			zap.L().Warn("failed to refund stale redemption",
				zap.String("redemption_id", row.ID),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("refunded stale redemption",
			zap.String("redemption_id", row.ID),
			zap.String("account_id", row.AccountID),
			zap.Uint64("amount", row.Amount),
		)
	}

	return nil
}
