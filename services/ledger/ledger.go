package ledger

import (
	"fmt"
	"math/bits"

	"drip-controlplane/pkg/errutil"
)

// Ledger tracks drip balances keyed by (account, source) plus the conserved
// total supply. Pure data and arithmetic, no I/O. The empty source ID is a
// real slot holding unattributed drips; an account's total is always computed
// from its slots, never stored separately.
//
// Not safe for concurrent use; Service serializes access.
type Ledger struct {
	accounts    map[string]map[string]uint64
	totalSupply uint64
}

func NewLedger() *Ledger {
	return &Ledger{
		accounts: make(map[string]map[string]uint64),
	}
}

// Register creates the account's empty per-source balance map.
func (l *Ledger) Register(account string) error {
	if _, ok := l.accounts[account]; ok {
		return errutil.AlreadyRegistered(fmt.Sprintf("account %s is already registered", account))
	}
	l.accounts[account] = make(map[string]uint64)
	return nil
}

// Deposit credits amount to the account's source slot and the total supply
// together. Every check runs before any state is written; the two halves
// commit together or not at all. The source slot is created lazily on first
// deposit.
func (l *Ledger) Deposit(account, source string, amount uint64) error {
	slots, ok := l.accounts[account]
	if !ok {
		return errutil.NotRegistered(fmt.Sprintf("account %s is not registered", account))
	}

	newBalance, carry := bits.Add64(slots[source], amount, 0)
	if carry != 0 {
		return errutil.BalanceOverflow(fmt.Sprintf("balance overflow for account %s", account))
	}

	newSupply, carry := bits.Add64(l.totalSupply, amount, 0)
	if carry != 0 {
		return errutil.SupplyOverflow("total supply overflow")
	}

	slots[source] = newBalance
	l.totalSupply = newSupply
	return nil
}

// Withdraw debits amount from the account's source slot and the total supply.
func (l *Ledger) Withdraw(account, source string, amount uint64) error {
	slots, ok := l.accounts[account]
	if !ok {
		return errutil.NotRegistered(fmt.Sprintf("account %s is not registered", account))
	}

	balance := slots[source]
	if balance < amount {
		return errutil.InsufficientBalance(fmt.Sprintf("account %s does not have enough balance", account))
	}

	slots[source] = balance - amount
	l.totalSupply -= amount
	return nil
}

// BalanceOf returns the account's total balance across all sources. Reads
// are total functions: unknown accounts read as zero.
func (l *Ledger) BalanceOf(account string) uint64 {
	var total uint64
	for _, balance := range l.accounts[account] {
		total += balance
	}
	return total
}

// SourceBalanceOf returns the balance attributable to one source.
func (l *Ledger) SourceBalanceOf(account, source string) uint64 {
	return l.accounts[account][source]
}

// Balances returns a copy of the account's per-source slots.
func (l *Ledger) Balances(account string) map[string]uint64 {
	slots := l.accounts[account]
	out := make(map[string]uint64, len(slots))
	for source, balance := range slots {
		out[source] = balance
	}
	return out
}

func (l *Ledger) TotalSupply() uint64 {
	return l.totalSupply
}

func (l *Ledger) Registered(account string) bool {
	_, ok := l.accounts[account]
	return ok
}

// HasSource reports whether the account's slot for the source has been
// populated.
func (l *Ledger) HasSource(account, source string) bool {
	_, ok := l.accounts[account][source]
	return ok
}
