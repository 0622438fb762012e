package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the Account Store and Ledger Store together. Balance changes and
// entry appends only happen through a Tx opened with Begin.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	GetAccount(ctx context.Context, id int64) (Account, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]Account, int, error)
	UpdateAccountKind(ctx context.Context, id int64, kind string) (Account, error)
	DeleteAccount(ctx context.Context, id int64) error

	GetEntry(ctx context.Context, id int64) (Entry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, int, error)
	AccountEntries(ctx context.Context, accountId int64) ([]Entry, error)
}

// Tx is a unit of work. Exactly one of Commit or Rollback is called.
type Tx interface {
	// CreateAccount inserts a zero-balance account. It fails with
	// profile.ErrUserNotFound or ErrAccountExists.
	CreateAccount(ctx context.Context, ownerId int64, kind string) (Account, error)
	// GetAccountForUpdate reads the account as seen by this unit of work and
	// holds it against concurrent writers until Commit or Rollback.
	GetAccountForUpdate(ctx context.Context, id int64) (Account, error)
	SetBalance(ctx context.Context, id int64, balance decimal.Decimal) error
	AppendEntry(ctx context.Context, entry Entry) (Entry, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type EntryFilter struct {
	AccountId int64 // zero means all accounts
	Limit     int
	Offset    int
}

// Locker serialises postings per account. Lock must acquire the accounts in
// ascending id order and give up when ctx is done.
type Locker interface {
	Lock(ctx context.Context, accountIds ...int64) (unlock func(), err error)
}

type ReceiptEmitter interface {
	Emit(ctx context.Context, entry Entry) (ReceiptRef, error)
}
