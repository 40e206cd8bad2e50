package redeem

import (
	"context"
	"fmt"
	"time"

	"drip-controlplane/pkg/budget"
	"drip-controlplane/pkg/config"
	"drip-controlplane/pkg/errutil"
	"drip-controlplane/pkg/sourceclient"
	"drip-controlplane/services/ledger"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Redeemer issues the remote acceptance call against one source.
type Redeemer interface {
	AcceptRedemption(ctx context.Context, source, account string, amount uint64, msg string) (uint64, error)
}

// Service runs the redemption protocol: debit first, ask the source to
// accept, then settle. The debit is pessimistic; whatever the source does
// not accept comes back, and a source that cannot be reached costs the
// caller nothing.
type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	ledger *ledger.Service
	client Redeemer
	costs  budget.Costs
	cfg    *config.Config
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Ledger *ledger.Service
	Client *sourceclient.Client
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		node:   p.Node,
		ledger: p.Ledger,
		client: p.Client,
		costs:  budget.FromConfig(p.Config),
		cfg:    p.Config,
	}
}

func (s *Service) Redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error) {
	if req.Deposit != 1 {
		return nil, errutil.BadRequest("redemption requires exactly one attached payment unit")
	}
	if req.Amount == 0 {
		return nil, errutil.BadRequest("redemption amount must be positive")
	}
	if plan := s.costs.RedeemPlan(); !budget.Covers(req.Budget, plan) {
		return nil, errutil.InsufficientBudget(fmt.Sprintf("redemption requires a budget of %d", plan))
	}

	if err := s.ledger.Withdraw(ctx, req.Caller, req.Source, req.Amount); err != nil {
		return nil, err
	}

	row := &Redemption{
		ID:        s.node.Generate().String(),
		AccountID: req.Caller,
		SourceID:  req.Source,
		Amount:    req.Amount,
		Msg:       req.Msg,
		State:     StateAwaitingConfirmation,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		// Without the durable record the debit would be unrecoverable on a
		// crash, so put the drips back and abort before the remote call.
		s.restore(ctx, req.Caller, req.Source, req.Amount)
		return nil, errutil.Internal("failed to record redemption", errutil.WithErr(err))
	}

	unused, err := s.client.AcceptRedemption(ctx, req.Source, req.Caller, req.Amount, req.Msg)

	refund := unused
	if err != nil {
		zap.L().Warn("redemption acceptance failed",
			zap.String("redemption_id", row.ID),
			zap.String("source_id", req.Source),
			zap.Error(err),
		)
		refund = req.Amount
	}
	refund = min(refund, req.Amount)

	return s.settle(ctx, row, refund)
}

// settle moves the row to its terminal state and credits the refund back.
// The state transition is conditional on the row still awaiting confirmation,
// which arbitrates between an in-flight redemption and the sweep: whichever
// wins performs the refund, the loser reports the recorded outcome without
// touching the ledger again.
func (s *Service) settle(ctx context.Context, row *Redemption, refund uint64) (*RedeemResult, error) {
	state := StateFinalized
	switch {
	case refund == row.Amount:
		state = StateRefunded
	case refund > 0:
		state = StatePartiallyRefunded
	}

	res := s.db.WithContext(ctx).Model(&Redemption{}).
		Where("id = ? AND state = ?", row.ID, StateAwaitingConfirmation).
		Updates(map[string]any{
			"state":      state,
			"refund":     refund,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, errutil.Internal("failed to finalize redemption record", errutil.WithErr(res.Error))
	}
	if res.RowsAffected == 0 {
		var settled Redemption
		if err := s.db.WithContext(ctx).First(&settled, "id = ?", row.ID).Error; err != nil {
			return nil, errutil.Internal("failed to read settled redemption record", errutil.WithErr(err))
		}
		return &RedeemResult{
			ID:       settled.ID,
			Redeemed: settled.Amount - settled.Refund,
			Refund:   settled.Refund,
			State:    settled.State,
		}, nil
	}

	if refund > 0 {
		if err := s.restore(ctx, row.AccountID, row.SourceID, refund); err != nil {
			// The drips never made it back, so reopen the row: the sweep
			// retries the refund instead of recording one that did not happen.
			revert := s.db.WithContext(ctx).Model(&Redemption{}).
				Where("id = ? AND state = ?", row.ID, state).
				Updates(map[string]any{
					"state":      StateAwaitingConfirmation,
					"refund":     uint64(0),
					"updated_at": time.Now(),
				})
			if revert.Error != nil {
				zap.L().Error("failed to reopen redemption after refund failure",
					zap.String("redemption_id", row.ID),
					zap.Error(revert.Error),
				)
			}
			return nil, err
		}
	}

	return &RedeemResult{
		ID:       row.ID,
		Redeemed: row.Amount - refund,
		Refund:   refund,
		State:    state,
	}, nil
}

// restore puts debited drips back. The amount was withdrawn from the same
// slot moments ago, so the deposit cannot overflow while the process lives;
// after a restart the account may be gone until it registers again, and the
// caller has to keep the redemption open until then.
func (s *Service) restore(ctx context.Context, account, source string, amount uint64) error {
	if err := s.ledger.Deposit(ctx, account, source, amount); err != nil {
		zap.L().Error("failed to restore debited drips",
			zap.String("account_id", account),
			zap.String("source_id", source),
			zap.Uint64("amount", amount),
			zap.Error(err),
		)
		return err
	}
	return nil
}
