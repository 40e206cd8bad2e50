package weighting

import (
	"context"
	"math"
	"testing"

	"drip-controlplane/pkg/config"
	"drip-controlplane/services/testutil"

	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, defaultCoefficient uint64) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &Coefficient{})
	cfg := &config.Config{}
	cfg.Drip.OwnerAccount = "owner.community"
	cfg.Drip.DefaultCoefficient = defaultCoefficient

	return NewService(ServiceParams{DB: db, Config: cfg})
}

func TestCoefficient_DefaultFallback(t *testing.T) {
	s := newTestService(t, 7)

	require.EqualValues(t, 7, s.Coefficient("unknown_metric"))

	require.NoError(t, s.SetCoefficient(context.Background(), "owner.community", "posts", 2))
	require.EqualValues(t, 2, s.Coefficient("posts"))
	require.EqualValues(t, 7, s.Coefficient("likes"))
}

func TestWeigh_Aggregates(t *testing.T) {
	s := newTestService(t, 0)
	ctx := context.Background()

	require.NoError(t, s.SetCoefficient(ctx, "owner.community", "posts", 2))
	require.NoError(t, s.SetCoefficient(ctx, "owner.community", "likes", 3))

	total, err := s.Weigh(map[string]uint64{"posts": 10, "likes": 4})
	require.NoError(t, err)
	require.EqualValues(t, 32, total)
}

func TestWeigh_UnknownMetricDefaultZero(t *testing.T) {
	s := newTestService(t, 0)

	total, err := s.Weigh(map[string]uint64{"mystery": 1000})
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestWeigh_MulOverflow(t *testing.T) {
	s := newTestService(t, 0)
	require.NoError(t, s.SetCoefficient(context.Background(), "owner.community", "posts", 2))

	_, err := s.Weigh(map[string]uint64{"posts": math.MaxUint64})
	require.Error(t, err)
}

func TestWeigh_SumOverflow(t *testing.T) {
	s := newTestService(t, 1)

	_, err := s.Weigh(map[string]uint64{"a": math.MaxUint64, "b": 1})
	require.Error(t, err)
}

func TestSetCoefficient_OwnerGate(t *testing.T) {
	s := newTestService(t, 0)

	err := s.SetCoefficient(context.Background(), "mallory.site", "posts", 100)
	require.Error(t, err)
	require.Zero(t, s.Coefficient("posts"))
}

func TestCoefficients_PersistAcrossRestart(t *testing.T) {
	db := testutil.NewTestDB(t, &Coefficient{})
	cfg := &config.Config{}
	cfg.Drip.OwnerAccount = "owner.community"

	s := NewService(ServiceParams{DB: db, Config: cfg})
	require.NoError(t, s.SetCoefficient(context.Background(), "owner.community", "posts", 5))

	reloaded := NewService(ServiceParams{DB: db, Config: cfg})
	require.EqualValues(t, 5, reloaded.Coefficient("posts"))
}
