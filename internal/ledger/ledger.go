// Package ledger implements the append-only double-entry accounting layer
// every economic mutation in the backtest core must flow through. No
// package outside ledger is permitted to change a Portfolio's balances
// directly once strict accounting is enabled (see the portfolio package's
// guard).
package ledger

import (
	"errors"
	"fmt"

	"github.com/hourline/backtestcore/internal/coretypes"
	"github.com/hourline/backtestcore/internal/fixedpoint"
)

type AccountKind int8

const (
	AccountCash AccountKind = iota
	AccountPosition
	AccountFeePaid
	AccountSettlement
	AccountFunding
	AccountUnrealized
)

// Account identifies one ledger account. Position and Unrealized accounts
// are scoped to a token; the rest are global to the portfolio.
type Account struct {
	Kind    AccountKind
	TokenId coretypes.TokenId
}

func CashAccount() Account       { return Account{Kind: AccountCash} }
func FeePaidAccount() Account    { return Account{Kind: AccountFeePaid} }
func SettlementAccount() Account { return Account{Kind: AccountSettlement} }
func FundingAccount() Account    { return Account{Kind: AccountFunding} }
func PositionAccount(t coretypes.TokenId) Account   { return Account{Kind: AccountPosition, TokenId: t} }
func UnrealizedAccount(t coretypes.TokenId) Account { return Account{Kind: AccountUnrealized, TokenId: t} }

// Posting is one leg of a double-entry Entry.
type Posting struct {
	Account Account
	Amount  fixedpoint.Amount // signed; debit/credit is encoded in sign
}

// Entry is an atomic, balanced set of postings recorded at a point in time.
type Entry struct {
	EntryId   uint64
	Postings  []Posting
	Memo      string
	Timestamp coretypes.Nanos
}

var ErrUnbalancedEntry = errors.New("ledger: entry postings do not sum to zero")

// Ledger is the append-only sequence of Entries. Entry ids are strictly
// increasing (O2).
type Ledger struct {
	entries   []Entry
	nextId    uint64
	balances  map[Account]fixedpoint.Amount
}

func New() *Ledger {
	return &Ledger{balances: make(map[Account]fixedpoint.Amount)}
}

// Post appends a new balanced entry. An entry whose postings don't sum to
// zero is rejected outright — this is an accounting violation, not a
// warning.
func (l *Ledger) Post(postings []Posting, memo string, at coretypes.Nanos) (Entry, error) {
	sum := fixedpoint.Zero()
	for _, p := range postings {
		sum = sum.Add(p.Amount)
	}
	if !sum.IsZero() {
		return Entry{}, fmt.Errorf("%w: sum=%s", ErrUnbalancedEntry, sum.String())
	}
	l.nextId++
	e := Entry{EntryId: l.nextId, Postings: postings, Memo: memo, Timestamp: at}
	l.entries = append(l.entries, e)
	for _, p := range postings {
		l.balances[p.Account] = l.balances[p.Account].Add(p.Amount)
	}
	return e, nil
}

func (l *Ledger) Balance(a Account) fixedpoint.Amount {
	return l.balances[a]
}

func (l *Ledger) Entries() []Entry {
	return l.entries
}

// SumCheck recomputes every account balance from the entry log and compares
// against the cached balances map, returning an error describing the first
// mismatch found (P-Ledger: Sigma postings per entry == 0 at all times).
func (l *Ledger) SumCheck() error {
	recomputed := make(map[Account]fixedpoint.Amount)
	for _, e := range l.entries {
		sum := fixedpoint.Zero()
		for _, p := range e.Postings {
			sum = sum.Add(p.Amount)
			recomputed[p.Account] = recomputed[p.Account].Add(p.Amount)
		}
		if !sum.IsZero() {
			return fmt.Errorf("%w: entry %d sum=%s", ErrUnbalancedEntry, e.EntryId, sum.String())
		}
	}
	for acct, want := range recomputed {
		if l.balances[acct].Cmp(want) != 0 {
			return fmt.Errorf("ledger: cached balance for %v drifted from entry log: cached=%s recomputed=%s", acct, l.balances[acct], want)
		}
	}
	return nil
}
