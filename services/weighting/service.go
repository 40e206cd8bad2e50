package weighting

import (
	"context"
	"math/bits"
	"sync"
	"time"

	"drip-controlplane/pkg/config"
	"drip-controlplane/pkg/errutil"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service turns raw activity metrics into drip amounts. Each metric has a
// configurable weight; metrics without one fall back to the configured
// default coefficient.
type Service struct {
	db       *gorm.DB
	cfg      *config.Config
	defaultW uint64
	ownerID  string

	mu      sync.RWMutex
	weights map[string]uint64
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	s := &Service{
		db:       p.DB,
		cfg:      p.Config,
		defaultW: p.Config.Drip.DefaultCoefficient,
		ownerID:  p.Config.Drip.OwnerAccount,
		weights:  make(map[string]uint64),
	}

	s.loadWeights()

	return s
}

func (s *Service) loadWeights() {
	if s.db == nil {
		return
	}

	var rows []Coefficient
	if err := s.db.Find(&rows).Error; err != nil {
		zap.L().Error("failed to load drip coefficients", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		s.weights[row.Metric] = row.Weight
	}
}

// Coefficient returns the weight for a metric, or the default when nothing
// is configured for it.
func (s *Service) Coefficient(metric string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if w, ok := s.weights[metric]; ok {
		return w
	}
	return s.defaultW
}

// Weigh aggregates a metrics map into a single drip amount:
// sum over metric of count * coefficient, with checked arithmetic.
func (s *Service) Weigh(metrics map[string]uint64) (uint64, error) {
	var total uint64
	for metric, count := range metrics {
		hi, product := bits.Mul64(count, s.Coefficient(metric))
		if hi != 0 {
			return 0, errutil.BalanceOverflow("weighted metric amount overflows")
		}
		sum, carry := bits.Add64(total, product, 0)
		if carry != 0 {
			return 0, errutil.BalanceOverflow("weighted metric amount overflows")
		}
		total = sum
	}
	return total, nil
}

// SetCoefficient updates a metric weight. Owner only.
func (s *Service) SetCoefficient(ctx context.Context, caller, metric string, weight uint64) error {
	if caller != s.ownerID {
		return errutil.Unauthorized("only the owner may set coefficients")
	}

	if s.db != nil {
		row := &Coefficient{Metric: metric, Weight: weight, UpdatedBy: caller, UpdatedAt: time.Now()}
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "metric"}},
			UpdateAll: true,
		}).Create(row).Error
		if err != nil {
			zap.L().Error("failed to persist coefficient", zap.String("metric", metric), zap.Error(err))
			return errutil.Internal("failed to persist coefficient", errutil.WithErr(err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.weights[metric] = weight
	return nil
}

// Coefficients returns a snapshot of the configured weights.
func (s *Service) Coefficients() map[string]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]uint64, len(s.weights))
	for metric, w := range s.weights {
		out[metric] = w
	}
	return out
}
