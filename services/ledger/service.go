package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"drip-controlplane/pkg/config"
	"drip-controlplane/pkg/db/pagination"
	"drip-controlplane/pkg/errutil"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service serializes all access to the core ledger and carries the two
// bookkeeping concerns around it: the drip journal and per-account prepaid
// storage credit. Storage credit is denominated in payment units; one unit
// of config.Drip.StorageCostPerSlot buys the account registration itself or
// one per-source balance slot.
type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	cfg  *config.Config

	mu      sync.Mutex
	ledger  *Ledger
	storage map[string]uint64
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		node:    p.Node,
		cfg:     p.Config,
		ledger:  NewLedger(),
		storage: make(map[string]uint64),
	}
}

func (s *Service) Register(ctx context.Context, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Register(account)
}

// Deposit credits (account, source) and appends a MINT journal row. The
// journal write never blocks the mutation; a failed row is logged and
// dropped.
func (s *Service) Deposit(ctx context.Context, account, source string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.Deposit(account, source, amount); err != nil {
		return err
	}

	s.journal(ctx, account, source, DirectionMint, amount)
	return nil
}

// Withdraw debits (account, source) and appends a BURN journal row.
func (s *Service) Withdraw(ctx context.Context, account, source string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.Withdraw(account, source, amount); err != nil {
		return err
	}

	s.journal(ctx, account, source, DirectionBurn, amount)
	return nil
}

func (s *Service) BalanceOf(account string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.BalanceOf(account)
}

func (s *Service) SourceBalanceOf(account, source string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.SourceBalanceOf(account, source)
}

func (s *Service) Balances(account string) map[string]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Balances(account)
}

func (s *Service) TotalSupply() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.TotalSupply()
}

func (s *Service) Registered(account string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Registered(account)
}

func (s *Service) HasSource(account, source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.HasSource(account, source)
}

// SlotCost is the payment price of one registration or balance slot.
func (s *Service) SlotCost() uint64 {
	return s.cfg.Drip.StorageCostPerSlot
}

// StorageDeposit attaches payment as prepaid storage credit. An unregistered
// account is registered first, funded from the attached amount.
func (s *Service) StorageDeposit(ctx context.Context, account string, amount uint64) (uint64, error) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent("ledger.storage_deposit")

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ledger.Registered(account) {
		cost := s.cfg.Drip.StorageCostPerSlot
		if amount < cost {
			return 0, errutil.InsufficientDeposit(fmt.Sprintf("registration requires %d payment units", cost))
		}
		if err := s.ledger.Register(account); err != nil {
			return 0, err
		}
		amount -= cost
	}

	s.storage[account] += amount
	return s.storage[account], nil
}

func (s *Service) StorageAvailable(account string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage[account]
}

// DebitStorage consumes prepaid storage credit.
func (s *Service) DebitStorage(ctx context.Context, account string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.storage[account] < amount {
		return errutil.InsufficientDeposit(fmt.Sprintf("account %s has %d storage credit, needs %d", account, s.storage[account], amount))
	}
	s.storage[account] -= amount
	return nil
}

// CreditStorage retains unused attached payment as storage credit.
func (s *Service) CreditStorage(ctx context.Context, account string, amount uint64) {
	if amount == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storage[account] += amount
}

// Journal pages through an account's committed mutations, oldest first.
func (s *Service) Journal(ctx context.Context, account string, page pagination.Pagination) ([]JournalEntry, *pagination.PageInfo, error) {
	limit := page.Limit
	if limit < 1 || limit > 250 {
		limit = 50
	}

	q := s.db.WithContext(ctx).Where("account_id = ?", account).Order("id")
	if page.Cursor != "" {
		cursor, err := pagination.DecodeCursor(page.Cursor)
		if err != nil {
			return nil, nil, errutil.BadRequest("malformed cursor", errutil.WithErr(err))
		}
		q = q.Where("id > ?", cursor.ID)
	}

	var entries []JournalEntry
	if err := q.Limit(limit + 1).Find(&entries).Error; err != nil {
		return nil, nil, errutil.Internal("failed to read journal", errutil.WithErr(err))
	}

	entries, info := pagination.Trim(entries, limit, func(e JournalEntry) string { return e.ID })
	return entries, info, nil
}

func (s *Service) journal(ctx context.Context, account, source, direction string, amount uint64) {
	if s.db == nil {
		return
	}

	metadata, _ := json.Marshal(map[string]string{"source_id": source})
	entry := &JournalEntry{
		ID:        s.node.Generate().String(),
		AccountID: account,
		SourceID:  source,
		Direction: direction,
		Amount:    amount,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		zap.L().Error("failed to append journal entry",
			zap.String("account_id", account),
			zap.String("source_id", source),
			zap.String("direction", direction),
			zap.Error(err),
		)
	}
}
