package redeem

import (
	"context"
	"errors"
	"testing"
	"time"

	"drip-controlplane/pkg/budget"
	"drip-controlplane/pkg/config"
	"drip-controlplane/services/ledger"
	"drip-controlplane/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRedeemer struct {
	unused uint64
	err    error
	calls  int
}

func (f *fakeRedeemer) AcceptRedemption(_ context.Context, _, _ string, _ uint64, _ string) (uint64, error) {
	f.calls++
	return f.unused, f.err
}

// redeem plan = 25 + 5 + 50 = 80 with the test prices.
const redeemPlan = 80

func newTestService(t *testing.T, client Redeemer) (*Service, *ledger.Service, *gorm.DB) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Drip.StorageCostPerSlot = 10
	cfg.Drip.RedemptionTimeout = time.Minute
	cfg.Drip.Budget.RedeemCallCost = 25
	cfg.Drip.Budget.RedeemResolve = 5
	cfg.Drip.Budget.InvocationCost = 50

	db := testutil.NewTestDB(t, &Redemption{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	led := ledger.NewService(ledger.ServiceParams{Config: cfg})

	return &Service{
		db:     db,
		node:   node,
		ledger: led,
		client: client,
		costs:  budget.FromConfig(cfg),
		cfg:    cfg,
	}, led, db
}

func seedBalance(t *testing.T, led *ledger.Service, account, source string, amount uint64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, led.Register(ctx, account))
	require.NoError(t, led.Deposit(ctx, account, source, amount))
}

func TestRedeem_RequiresExactlyOneDeposit(t *testing.T) {
	client := &fakeRedeemer{}
	s, led, _ := newTestService(t, client)
	seedBalance(t, led, "alice.example", "shop.drip.community", 100)

	for _, deposit := range []uint64{0, 2} {
		_, err := s.Redeem(context.Background(), RedeemRequest{
			Caller: "alice.example", Source: "shop.drip.community",
			Amount: 50, Deposit: deposit, Budget: redeemPlan,
		})
		require.Error(t, err)
	}
	require.EqualValues(t, 100, led.BalanceOf("alice.example"))
	require.Zero(t, client.calls)
}

func TestRedeem_BudgetFailLeavesBalance(t *testing.T) {
	client := &fakeRedeemer{}
	s, led, _ := newTestService(t, client)
	seedBalance(t, led, "alice.example", "shop.drip.community", 100)

	_, err := s.Redeem(context.Background(), RedeemRequest{
		Caller: "alice.example", Source: "shop.drip.community",
		Amount: 50, Deposit: 1, Budget: redeemPlan - 1,
	})
	require.Error(t, err)
	require.EqualValues(t, 100, led.BalanceOf("alice.example"))
	require.Zero(t, client.calls)
}

func TestRedeem_InsufficientBalance(t *testing.T) {
	client := &fakeRedeemer{}
	s, led, _ := newTestService(t, client)
	seedBalance(t, led, "alice.example", "shop.drip.community", 40)

	_, err := s.Redeem(context.Background(), RedeemRequest{
		Caller: "alice.example", Source: "shop.drip.community",
		Amount: 50, Deposit: 1, Budget: redeemPlan,
	})
	require.Error(t, err)
	require.EqualValues(t, 40, led.BalanceOf("alice.example"))
	require.Zero(t, client.calls)
}

func TestRedeem_FullyAccepted(t *testing.T) {
	client := &fakeRedeemer{unused: 0}
	s, led, db := newTestService(t, client)
	seedBalance(t, led, "alice.example", "shop.drip.community", 100)

	result, err := s.Redeem(context.Background(), RedeemRequest{
		Caller: "alice.example", Source: "shop.drip.community",
		Amount: 100, Deposit: 1, Budget: redeemPlan,
	})
	require.NoError(t, err)
	require.EqualValues(t, 100, result.Redeemed)
	require.Zero(t, result.Refund)
	require.Equal(t, StateFinalized, result.State)

	require.Zero(t, led.BalanceOf("alice.example"))
	require.Zero(t, led.TotalSupply())

	var row Redemption
	require.NoError(t, db.First(&row, "id = ?", result.ID).Error)
	require.Equal(t, StateFinalized, row.State)
}

func TestRedeem_PartiallyAccepted(t *testing.T) {
	client := &fakeRedeemer{unused: 30}
	s, led, db := newTestService(t, client)
	seedBalance(t, led, "alice.example", "shop.drip.community", 100)

	result, err := s.Redeem(context.Background(), RedeemRequest{
		Caller: "alice.example", Source: "shop.drip.community",
		Amount: 100, Deposit: 1, Budget: redeemPlan,
	})
	require.NoError(t, err)
	require.EqualValues(t, 70, result.Redeemed)
	require.EqualValues(t, 30, result.Refund)
	require.Equal(t, StatePartiallyRefunded, result.State)

	require.EqualValues(t, 30, led.BalanceOf("alice.example"))
	require.EqualValues(t, 30, led.TotalSupply())

	var row Redemption
	require.NoError(t, db.First(&row, "id = ?", result.ID).Error)
	require.EqualValues(t, 30, row.Refund)
}

func TestRedeem_RemoteFailureRefundsEverything(t *testing.T) {
	client := &fakeRedeemer{err: errors.New("connection refused")}
	s, led, _ := newTestService(t, client)
	seedBalance(t, led, "alice.example", "shop.drip.community", 100)

	result, err := s.Redeem(context.Background(), RedeemRequest{
		Caller: "alice.example", Source: "shop.drip.community",
		Amount: 100, Deposit: 1, Budget: redeemPlan,
	})
	require.NoError(t, err)
	require.Zero(t, result.Redeemed)
	require.EqualValues(t, 100, result.Refund)
	require.Equal(t, StateRefunded, result.State)
	require.EqualValues(t, 100, led.BalanceOf("alice.example"))
}

func TestRedeem_UnusedCappedAtAmount(t *testing.T) {
	client := &fakeRedeemer{unused: 500}
	s, led, _ := newTestService(t, client)
	seedBalance(t, led, "alice.example", "shop.drip.community", 100)

	result, err := s.Redeem(context.Background(), RedeemRequest{
		Caller: "alice.example", Source: "shop.drip.community",
		Amount: 100, Deposit: 1, Budget: redeemPlan,
	})
	require.NoError(t, err)
	require.EqualValues(t, 100, result.Refund)
	require.Equal(t, StateRefunded, result.State)
	require.EqualValues(t, 100, led.BalanceOf("alice.example"))
}

func TestHandleRedemptionSweep_RefundsStaleRows(t *testing.T) {
	client := &fakeRedeemer{}
	s, led, db := newTestService(t, client)
	seedBalance(t, led, "alice.example", "shop.drip.community", 0)

	stale := &Redemption{
		ID:        "stale-1",
		AccountID: "alice.example",
		SourceID:  "shop.drip.community",
		Amount:    60,
		State:     StateAwaitingConfirmation,
		CreatedAt: time.Now().Add(-2 * time.Minute),
	}
	fresh := &Redemption{
		ID:        "fresh-1",
		AccountID: "alice.example",
		SourceID:  "shop.drip.community",
		Amount:    10,
		State:     StateAwaitingConfirmation,
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.Create(stale).Error)
	require.NoError(t, db.Create(fresh).Error)

	err := s.HandleRedemptionSweep(context.Background(), asynq.NewTask("redemption:sweep", nil))
	require.NoError(t, err)

	require.EqualValues(t, 60, led.BalanceOf("alice.example"))

	var row Redemption
	require.NoError(t, db.First(&row, "id = ?", "stale-1").Error)
	require.Equal(t, StateRefunded, row.State)
	require.EqualValues(t, 60, row.Refund)

	var freshRow Redemption
	require.NoError(t, db.First(&freshRow, "id = ?", "fresh-1").Error)
	require.Equal(t, StateAwaitingConfirmation, freshRow.State)
}

func TestSettle_RefundsOnlyOnce(t *testing.T) {
	client := &fakeRedeemer{}
	s, led, db := newTestService(t, client)
	seedBalance(t, led, "alice.example", "shop.drip.community", 0)

	row := &Redemption{
		ID:        "late-1",
		AccountID: "alice.example",
		SourceID:  "shop.drip.community",
		Amount:    100,
		State:     StateAwaitingConfirmation,
		CreatedAt: time.Now().Add(-2 * time.Minute),
	}
	require.NoError(t, db.Create(row).Error)

	// The sweep refunds the row first, then the in-flight settlement for
	// the same row comes in late. It must report the recorded outcome
	// instead of crediting the account a second time.
	require.NoError(t, s.HandleRedemptionSweep(context.Background(), asynq.NewTask("redemption:sweep", nil)))
	require.EqualValues(t, 100, led.BalanceOf("alice.example"))

	result, err := s.settle(context.Background(), row, 100)
	require.NoError(t, err)
	require.Equal(t, StateRefunded, result.State)
	require.EqualValues(t, 100, result.Refund)

	require.EqualValues(t, 100, led.BalanceOf("alice.example"))
	require.EqualValues(t, 100, led.TotalSupply())
}

func TestHandleRedemptionSweep_KeepsRowOpenWhenRefundFails(t *testing.T) {
	client := &fakeRedeemer{}
	s, led, db := newTestService(t, client)

	// The account never registered here, so the refund cannot land.
	row := &Redemption{
		ID:        "orphan-1",
		AccountID: "ghost.example",
		SourceID:  "shop.drip.community",
		Amount:    60,
		State:     StateAwaitingConfirmation,
		CreatedAt: time.Now().Add(-2 * time.Minute),
	}
	require.NoError(t, db.Create(row).Error)

	require.NoError(t, s.HandleRedemptionSweep(context.Background(), asynq.NewTask("redemption:sweep", nil)))

	var got Redemption
	require.NoError(t, db.First(&got, "id = ?", "orphan-1").Error)
	require.Equal(t, StateAwaitingConfirmation, got.State)
	require.Zero(t, got.Refund)
	require.Zero(t, led.TotalSupply())
}
