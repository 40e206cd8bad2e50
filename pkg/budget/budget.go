// Package budget prices the metered execution steps of the collection and
// redemption protocols. Both protocols reserve their full plan up front and
// fail closed before issuing any remote call.
package budget

import "drip-controlplane/pkg/config"

// Costs holds the fixed per-step prices, in budget units.
type Costs struct {
	Invocation       uint64
	CollectCall      uint64
	ResolveBase      uint64
	ResolvePerSource uint64
	RedeemCall       uint64
	RedeemResolve    uint64
}

func FromConfig(cfg *config.Config) Costs {
	b := cfg.Drip.Budget
	return Costs{
		Invocation:       b.InvocationCost,
		CollectCall:      b.CollectCallCost,
		ResolveBase:      b.ResolveBaseCost,
		ResolvePerSource: b.ResolvePerSource,
		RedeemCall:       b.RedeemCallCost,
		RedeemResolve:    b.RedeemResolve,
	}
}

// CollectPlan is the budget required to fan out n source calls and run the
// single reconciliation step that joins them.
func (c Costs) CollectPlan(n int) uint64 {
	return uint64(n)*(c.CollectCall+c.ResolvePerSource) + c.ResolveBase + c.Invocation
}

// RedeemPlan is the budget required for one acceptance call plus its
// reconciliation.
func (c Costs) RedeemPlan() uint64 {
	return c.RedeemCall + c.RedeemResolve + c.Invocation
}

// Covers reports whether the prepaid budget covers the plan.
func Covers(prepaid, plan uint64) bool {
	return prepaid >= plan
}
