package budget

import (
	"testing"

	"drip-controlplane/pkg/config"

	"github.com/stretchr/testify/require"
)

func testCosts() Costs {
	cfg := &config.Config{}
	cfg.Drip.Budget.InvocationCost = 50
	cfg.Drip.Budget.CollectCallCost = 10
	cfg.Drip.Budget.ResolveBaseCost = 3
	cfg.Drip.Budget.ResolvePerSource = 2
	cfg.Drip.Budget.RedeemCallCost = 25
	cfg.Drip.Budget.RedeemResolve = 5
	return FromConfig(cfg)
}

func TestCollectPlan(t *testing.T) {
	costs := testCosts()

	require.EqualValues(t, 53, costs.CollectPlan(0))
	require.EqualValues(t, 65, costs.CollectPlan(1))
	require.EqualValues(t, 113, costs.CollectPlan(5))
}

func TestRedeemPlan(t *testing.T) {
	require.EqualValues(t, 80, testCosts().RedeemPlan())
}

func TestCovers(t *testing.T) {
	require.True(t, Covers(80, 80))
	require.True(t, Covers(81, 80))
	require.False(t, Covers(79, 80))
}
