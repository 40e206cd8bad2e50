package collect

import (
	"context"

	"drip-controlplane/pkg/sourceclient"

	"go.uber.org/zap"
)

// resolve settles the fan-out outcomes against the ledger. Remote failures
// are absorbed: the source keeps the undelivered drips and shows up in
// Failed. Ledger failures are not absorbed; they abort the round.
func (s *Service) resolve(ctx context.Context, account string, calls []SourceCall) (*CollectResult, error) {
	result := &CollectResult{
		Credited: make(map[string]uint64, len(calls)),
	}

	for _, call := range calls {
		if call.Err != nil {
			zap.L().Warn("collection query failed",
				zap.String("account_id", account),
				zap.String("source_id", call.Source),
				zap.Error(call.Err),
			)
			result.Failed = append(result.Failed, call.Source)
			continue
		}

		var amount uint64
		switch call.Report.Kind {
		case sourceclient.ReportScalar:
			amount = call.Report.Amount
		case sourceclient.ReportMetrics:
			weighed, err := s.weighting.Weigh(call.Report.Metrics)
			if err != nil {
				zap.L().Warn("metric report could not be weighed",
					zap.String("account_id", account),
					zap.String("source_id", call.Source),
					zap.Error(err),
				)
				result.Failed = append(result.Failed, call.Source)
				continue
			}
			amount = weighed
		}

		result.Credited[call.Source] = amount
		if amount == 0 {
			continue
		}

		if err := s.ledger.Deposit(ctx, account, call.Source, amount); err != nil {
			return nil, err
		}
		result.Total += amount
	}

	return result, nil
}
