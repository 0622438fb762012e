// Package memory is an in-process implementation of the account, ledger and
// profile stores, used when no DATABASE_URL is configured and in tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-bank-ledger/internal/ledger"
	"github.com/JhonesBR/go-bank-ledger/internal/profile"
)

var errTxDone = errors.New("unit of work already committed or rolled back")

// Store keeps committed state only. Units of work stage their writes and
// apply them under the store mutex on Commit, so a reader never sees a
// balance without its entries. Isolation between concurrent units of work on
// the same account is the locker's job.
type Store struct {
	mu       sync.RWMutex
	accounts map[int64]ledger.Account
	entries  []ledger.Entry // ordered by id
	users    map[int64]profile.User

	nextAccountId int64
	nextEntryId   int64
	nextUserId    int64

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[int64]ledger.Account),
		users:    make(map[int64]profile.User),
		now:      time.Now,
	}
}

var (
	_ ledger.Store  = (*Store)(nil)
	_ profile.Store = (*Store)(nil)
)

func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &unitOfWork{
		store:    s,
		created:  make(map[int64]ledger.Account),
		balances: make(map[int64]decimal.Decimal),
	}, nil
}

// canOpen reports whether ownerId may get an account. s.mu must be held.
func (s *Store) canOpen(ownerId int64) error {
	if _, ok := s.users[ownerId]; !ok {
		return profile.ErrUserNotFound
	}
	for _, a := range s.accounts {
		if a.OwnerId == ownerId {
			return ledger.ErrAccountExists
		}
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id int64) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return ledger.Account{}, fmt.Errorf("%w: %d", ledger.ErrAccountNotFound, id)
	}
	return account, nil
}

func (s *Store) ListAccounts(ctx context.Context, limit, offset int) ([]ledger.Account, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]ledger.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Id < all[j].Id })

	return page(all, limit, offset), len(all), nil
}

func (s *Store) UpdateAccountKind(ctx context.Context, id int64, kind string) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return ledger.Account{}, fmt.Errorf("%w: %d", ledger.ErrAccountNotFound, id)
	}
	account.Kind = kind
	s.accounts[id] = account
	return account, nil
}

func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return fmt.Errorf("%w: %d", ledger.ErrAccountNotFound, id)
	}
	for _, e := range s.entries {
		if e.AccountId == id {
			return ledger.ErrAccountInUse
		}
	}
	delete(s.accounts, id)
	return nil
}

func (s *Store) GetEntry(ctx context.Context, id int64) (ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].Id >= id })
	if i == len(s.entries) || s.entries[i].Id != id {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	return s.entries[i], nil
}

func (s *Store) ListEntries(ctx context.Context, filter ledger.EntryFilter) ([]ledger.Entry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]ledger.Entry, 0)
	for _, e := range s.entries {
		if filter.AccountId == 0 || e.AccountId == filter.AccountId {
			matched = append(matched, e)
		}
	}
	return page(matched, filter.Limit, filter.Offset), len(matched), nil
}

func (s *Store) AccountEntries(ctx context.Context, accountId int64) ([]ledger.Entry, error) {
	entries, _, err := s.ListEntries(ctx, ledger.EntryFilter{AccountId: accountId})
	return entries, err
}

func (s *Store) CreateUser(ctx context.Context, user profile.User) (profile.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return profile.User{}, profile.ErrUserExists
		}
	}

	s.nextUserId++
	user.Id = s.nextUserId
	user.CreatedAt = s.now().UTC()
	s.users[user.Id] = user
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (profile.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return profile.User{}, profile.ErrUserNotFound
	}
	return user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (profile.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return profile.User{}, profile.ErrUserNotFound
}

func (s *Store) UpdateUser(ctx context.Context, user profile.User) (profile.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[user.Id]
	if !ok {
		return profile.User{}, profile.ErrUserNotFound
	}
	for _, u := range s.users {
		if u.Id == user.Id {
			continue
		}
		if strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return profile.User{}, profile.ErrUserExists
		}
	}

	user.CreatedAt = current.CreatedAt
	s.users[user.Id] = user
	return user, nil
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return profile.ErrUserNotFound
	}
	for _, a := range s.accounts {
		if a.OwnerId == id {
			return profile.ErrUserInUse
		}
	}
	delete(s.users, id)
	return nil
}

func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]profile.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]profile.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Id < all[j].Id })

	return page(all, limit, offset), len(all), nil
}

// page applies limit/offset; a non-positive limit returns everything after offset.
func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type unitOfWork struct {
	store    *Store
	created  map[int64]ledger.Account
	balances map[int64]decimal.Decimal
	entries  []ledger.Entry
	done     bool
}

// account reads id as seen by this unit of work, staged accounts included.
func (u *unitOfWork) account(ctx context.Context, id int64) (ledger.Account, error) {
	if account, ok := u.created[id]; ok {
		return account, nil
	}
	return u.store.GetAccount(ctx, id)
}

func (u *unitOfWork) CreateAccount(ctx context.Context, ownerId int64, kind string) (ledger.Account, error) {
	if u.done {
		return ledger.Account{}, errTxDone
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	if err := u.store.canOpen(ownerId); err != nil {
		return ledger.Account{}, err
	}
	for _, a := range u.created {
		if a.OwnerId == ownerId {
			return ledger.Account{}, ledger.ErrAccountExists
		}
	}

	u.store.nextAccountId++
	account := ledger.Account{
		Id:        u.store.nextAccountId,
		OwnerId:   ownerId,
		Balance:   decimal.Zero,
		Kind:      kind,
		CreatedAt: u.store.now().UTC(),
	}
	u.created[account.Id] = account
	return account, nil
}

func (u *unitOfWork) GetAccountForUpdate(ctx context.Context, id int64) (ledger.Account, error) {
	if u.done {
		return ledger.Account{}, errTxDone
	}
	account, err := u.account(ctx, id)
	if err != nil {
		return ledger.Account{}, err
	}
	if staged, ok := u.balances[id]; ok {
		account.Balance = staged
	}
	return account, nil
}

func (u *unitOfWork) SetBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	if u.done {
		return errTxDone
	}
	if balance.IsNegative() {
		return fmt.Errorf("balance of account %d would be negative: %s", id, balance)
	}
	if _, err := u.account(ctx, id); err != nil {
		return err
	}
	u.balances[id] = balance
	return nil
}

func (u *unitOfWork) AppendEntry(ctx context.Context, entry ledger.Entry) (ledger.Entry, error) {
	if u.done {
		return ledger.Entry{}, errTxDone
	}
	if !entry.Kind.Valid() || !entry.Amount.IsPositive() {
		return ledger.Entry{}, fmt.Errorf("malformed entry: kind=%q amount=%s", entry.Kind, entry.Amount)
	}

	u.store.mu.Lock()
	u.store.nextEntryId++
	entry.Id = u.store.nextEntryId
	u.store.mu.Unlock()

	u.entries = append(u.entries, entry)
	return entry, nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return errTxDone
	}
	u.done = true
	if err := ctx.Err(); err != nil {
		return err
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	for _, account := range u.created {
		if err := u.store.canOpen(account.OwnerId); err != nil {
			return err
		}
	}
	for id := range u.balances {
		_, committed := u.store.accounts[id]
		_, staged := u.created[id]
		if !committed && !staged {
			return fmt.Errorf("%w: %d", ledger.ErrAccountNotFound, id)
		}
	}

	for id, account := range u.created {
		u.store.accounts[id] = account
	}
	for id, balance := range u.balances {
		account := u.store.accounts[id]
		account.Balance = balance
		u.store.accounts[id] = account
	}
	for _, entry := range u.entries {
		u.store.insertEntry(entry)
	}
	return nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return errTxDone
	}
	u.done = true
	return nil
}

// insertEntry keeps entries ordered by id; ids are reserved before commit so
// a later commit may carry a smaller id.
func (s *Store) insertEntry(entry ledger.Entry) {
	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].Id > entry.Id })
	s.entries = append(s.entries, ledger.Entry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = entry
}
