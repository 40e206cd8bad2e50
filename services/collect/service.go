package collect

import (
	"context"
	"fmt"

	"drip-controlplane/pkg/budget"
	"drip-controlplane/pkg/config"
	"drip-controlplane/pkg/errutil"
	"drip-controlplane/pkg/sourceclient"
	"drip-controlplane/services/authz"
	"drip-controlplane/services/ledger"
	"drip-controlplane/services/weighting"

	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
)

// Collector issues the remote collection query against one source.
type Collector interface {
	CollectDrip(ctx context.Context, source, account string) (sourceclient.Report, error)
}

// Service orchestrates one collection round: filter the candidate sources,
// settle the storage and budget charges, fan out the remote queries, then
// reconcile whatever came back. Every check runs before the first mutation,
// so a rejected request leaves no trace.
type Service struct {
	ledger    *ledger.Service
	authz     *authz.Service
	weighting *weighting.Service
	client    Collector
	costs     budget.Costs
}

type ServiceParams struct {
	fx.In
	Ledger    *ledger.Service
	Authz     *authz.Service
	Weighting *weighting.Service
	Client    *sourceclient.Client
	Config    *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		ledger:    p.Ledger,
		authz:     p.Authz,
		weighting: p.Weighting,
		client:    p.Client,
		costs:     budget.FromConfig(p.Config),
	}
}

func (s *Service) Collect(ctx context.Context, req CollectRequest) (*CollectResult, error) {
	trusted := s.authz.Filter(req.Sources)
	if len(trusted) == 0 {
		return nil, errutil.NothingToCollect("no trusted source among the candidates")
	}

	slotCost := s.ledger.SlotCost()
	purse := req.Deposit

	var regCost uint64
	if !s.ledger.Registered(req.Caller) {
		if purse < slotCost {
			return nil, errutil.InsufficientDeposit(fmt.Sprintf("registration requires %d payment units", slotCost))
		}
		regCost = slotCost
	}

	var newSlots uint64
	for _, source := range trusted {
		if !s.ledger.HasSource(req.Caller, source) {
			newSlots++
		}
	}
	slotNeed := newSlots * slotCost

	if spend := purse - regCost; spend < slotNeed {
		if shortfall := slotNeed - spend; s.ledger.StorageAvailable(req.Caller) < shortfall {
			return nil, errutil.InsufficientDeposit(fmt.Sprintf("%d new balance slots require %d payment units", newSlots, slotNeed))
		}
	}

	if plan := s.costs.CollectPlan(len(trusted)); !budget.Covers(req.Budget, plan) {
		return nil, errutil.InsufficientBudget(fmt.Sprintf("collecting from %d sources requires a budget of %d", len(trusted), plan))
	}

	// All checks passed; commit the charges.
	if regCost > 0 {
		if err := s.ledger.Register(ctx, req.Caller); err != nil {
			return nil, err
		}
		purse -= regCost
	}
	fromPurse := min(purse, slotNeed)
	purse -= fromPurse
	if shortfall := slotNeed - fromPurse; shortfall > 0 {
		if err := s.ledger.DebitStorage(ctx, req.Caller, shortfall); err != nil {
			return nil, err
		}
	}
	s.ledger.CreditStorage(ctx, req.Caller, purse)

	calls := s.fanOut(ctx, req.Caller, trusted)
	return s.resolve(ctx, req.Caller, calls)
}

// fanOut issues one collection query per source concurrently and records
// every outcome at its source's position. The join waits for all of them;
// individual failures are settled later by the reconciler.
func (s *Service) fanOut(ctx context.Context, caller string, sources []string) []SourceCall {
	calls := make([]SourceCall, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, source := range sources {
		g.Go(func() error {
			report, err := s.client.CollectDrip(gctx, source, caller)
			calls[i] = SourceCall{Source: source, Report: report, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return calls
}
