package ledger

import (
	"context"
	"testing"

	"drip-controlplane/pkg/config"
	"drip-controlplane/pkg/db/pagination"
	"drip-controlplane/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Drip.StorageCostPerSlot = 10

	db := testutil.NewTestDB(t, &JournalEntry{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node, Config: cfg}), db
}

func TestService_JournalsMutations(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "alice.example"))
	require.NoError(t, s.Deposit(ctx, "alice.example", "forum.drip.community", 100))
	require.NoError(t, s.Withdraw(ctx, "alice.example", "forum.drip.community", 40))

	var entries []JournalEntry
	require.NoError(t, db.Order("id").Find(&entries).Error)
	require.Len(t, entries, 2)

	require.Equal(t, DirectionMint, entries[0].Direction)
	require.EqualValues(t, 100, entries[0].Amount)
	require.Equal(t, DirectionBurn, entries[1].Direction)
	require.EqualValues(t, 40, entries[1].Amount)
	require.Equal(t, "alice.example", entries[0].AccountID)
}

func TestService_RejectedMutationLeavesNoJournalRow(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()

	require.Error(t, s.Deposit(ctx, "nobody.example", "forum.drip.community", 100))

	var count int64
	require.NoError(t, db.Model(&JournalEntry{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestService_JournalPaging(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "alice.example"))
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Deposit(ctx, "alice.example", "forum.drip.community", 10))
	}

	page, info, err := s.Journal(ctx, "alice.example", pagination.Pagination{Limit: 3})
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.True(t, info.HasMore)
	require.NotEmpty(t, info.NextCursor)

	rest, info, err := s.Journal(ctx, "alice.example", pagination.Pagination{Limit: 3, Cursor: info.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest, 2)
	require.False(t, info.HasMore)
	require.NotEqual(t, page[2].ID, rest[0].ID)
}

func TestStorageDeposit_RegistersAndRetainsCredit(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.StorageDeposit(ctx, "alice.example", 9)
	require.Error(t, err)
	require.False(t, s.Registered("alice.example"))

	credit, err := s.StorageDeposit(ctx, "alice.example", 25)
	require.NoError(t, err)
	require.EqualValues(t, 15, credit)
	require.True(t, s.Registered("alice.example"))
	require.EqualValues(t, 15, s.StorageAvailable("alice.example"))

	// already registered: the full amount becomes credit
	credit, err = s.StorageDeposit(ctx, "alice.example", 5)
	require.NoError(t, err)
	require.EqualValues(t, 20, credit)
}

func TestDebitStorage(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.StorageDeposit(ctx, "alice.example", 30)
	require.NoError(t, err)

	require.NoError(t, s.DebitStorage(ctx, "alice.example", 15))
	require.EqualValues(t, 5, s.StorageAvailable("alice.example"))

	require.Error(t, s.DebitStorage(ctx, "alice.example", 6))
	require.EqualValues(t, 5, s.StorageAvailable("alice.example"))
}
