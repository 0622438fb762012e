package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-bank-ledger/internal/ledger"
	"github.com/JhonesBR/go-bank-ledger/internal/profile"
)

//go:embed schema.sql
var schema string

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var (
	_ ledger.Store  = (*Store)(nil)
	_ profile.Store = (*Store)(nil)
)

// EnsureSchema creates the tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

const accountColumns = "id, user_id, balance, account_type, created_at"

func scanAccount(row pgx.Row) (ledger.Account, error) {
	var account ledger.Account
	err := row.Scan(&account.Id, &account.OwnerId, &account.Balance, &account.Kind, &account.CreatedAt)
	return account, err
}

func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return &unitOfWork{tx: tx}, nil
}

func (s *Store) GetAccount(ctx context.Context, id int64) (ledger.Account, error) {
	account, err := scanAccount(s.pool.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, fmt.Errorf("%w: %d", ledger.ErrAccountNotFound, id)
	}
	return account, err
}

func (s *Store) ListAccounts(ctx context.Context, limit, offset int) ([]ledger.Account, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM accounts").Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, "SELECT "+accountColumns+" FROM accounts ORDER BY id LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	accounts := make([]ledger.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, account)
	}
	return accounts, total, rows.Err()
}

func (s *Store) UpdateAccountKind(ctx context.Context, id int64, kind string) (ledger.Account, error) {
	query := `UPDATE accounts SET account_type = $1 WHERE id = $2 RETURNING ` + accountColumns
	account, err := scanAccount(s.pool.QueryRow(ctx, query, kind, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, fmt.Errorf("%w: %d", ledger.ErrAccountNotFound, id)
	}
	return account, err
}

func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM accounts WHERE id = $1", id)
	if err != nil {
		if pgErrorCode(err) == foreignKeyViolation {
			return ledger.ErrAccountInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ledger.ErrAccountNotFound, id)
	}
	return nil
}

const entryColumns = "id, user_id, account_id, amount, transaction_type, correlation_id, created_at"

func scanEntry(row pgx.Row) (ledger.Entry, error) {
	var entry ledger.Entry
	err := row.Scan(&entry.Id, &entry.OwnerId, &entry.AccountId, &entry.Amount, &entry.Kind, &entry.CorrelationId, &entry.CreatedAt)
	return entry, err
}

func (s *Store) GetEntry(ctx context.Context, id int64) (ledger.Entry, error) {
	entry, err := scanEntry(s.pool.QueryRow(ctx, "SELECT "+entryColumns+" FROM transactions WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	return entry, err
}

func (s *Store) ListEntries(ctx context.Context, filter ledger.EntryFilter) ([]ledger.Entry, int, error) {
	where, args := "", []any{}
	if filter.AccountId != 0 {
		where, args = " WHERE account_id = $1", append(args, filter.AccountId)
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM transactions"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + entryColumns + " FROM transactions" + where + " ORDER BY id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	entries, err := s.queryEntries(ctx, query, args...)
	return entries, total, err
}

func (s *Store) AccountEntries(ctx context.Context, accountId int64) ([]ledger.Entry, error) {
	return s.queryEntries(ctx, "SELECT "+entryColumns+" FROM transactions WHERE account_id = $1 ORDER BY id", accountId)
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]ledger.Entry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]ledger.Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

const userColumns = "id, username, name, dob, email, job, created_at"

func scanUser(row pgx.Row) (profile.User, error) {
	var user profile.User
	err := row.Scan(&user.Id, &user.Username, &user.Name, &user.Dob, &user.Email, &user.Job, &user.CreatedAt)
	return user, err
}

func (s *Store) CreateUser(ctx context.Context, user profile.User) (profile.User, error) {
	query := `INSERT INTO users (username, name, dob, email, job) VALUES ($1, $2, $3, $4, $5) RETURNING ` + userColumns
	created, err := scanUser(s.pool.QueryRow(ctx, query, user.Username, user.Name, user.Dob, user.Email, user.Job))
	if pgErrorCode(err) == uniqueViolation {
		return profile.User{}, profile.ErrUserExists
	}
	return created, err
}

func (s *Store) GetUser(ctx context.Context, id int64) (profile.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return profile.User{}, profile.ErrUserNotFound
	}
	return user, err
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (profile.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if errors.Is(err, pgx.ErrNoRows) {
		return profile.User{}, profile.ErrUserNotFound
	}
	return user, err
}

func (s *Store) UpdateUser(ctx context.Context, user profile.User) (profile.User, error) {
	query := `
		UPDATE users SET username = $1, name = $2, dob = $3, email = $4, job = $5
		WHERE id = $6
		RETURNING ` + userColumns
	updated, err := scanUser(s.pool.QueryRow(ctx, query, user.Username, user.Name, user.Dob, user.Email, user.Job, user.Id))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return profile.User{}, profile.ErrUserNotFound
	case pgErrorCode(err) == uniqueViolation:
		return profile.User{}, profile.ErrUserExists
	}
	return updated, err
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		if pgErrorCode(err) == foreignKeyViolation {
			return profile.ErrUserInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return profile.ErrUserNotFound
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]profile.User, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY id LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]profile.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

// unitOfWork wraps one pgx transaction. Account rows are locked with
// SELECT ... FOR UPDATE, which also serialises postings across instances.
type unitOfWork struct {
	tx pgx.Tx
}

func (u *unitOfWork) CreateAccount(ctx context.Context, ownerId int64, kind string) (ledger.Account, error) {
	query := `INSERT INTO accounts (user_id, account_type) VALUES ($1, $2) RETURNING ` + accountColumns
	account, err := scanAccount(u.tx.QueryRow(ctx, query, ownerId, kind))
	if err != nil {
		switch pgErrorCode(err) {
		case uniqueViolation:
			return ledger.Account{}, ledger.ErrAccountExists
		case foreignKeyViolation:
			return ledger.Account{}, profile.ErrUserNotFound
		}
		return ledger.Account{}, err
	}
	return account, nil
}

func (u *unitOfWork) GetAccountForUpdate(ctx context.Context, id int64) (ledger.Account, error) {
	account, err := scanAccount(u.tx.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1 FOR UPDATE", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, fmt.Errorf("%w: %d", ledger.ErrAccountNotFound, id)
	}
	return account, err
}

func (u *unitOfWork) SetBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	tag, err := u.tx.Exec(ctx, "UPDATE accounts SET balance = $1 WHERE id = $2", balance, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ledger.ErrAccountNotFound, id)
	}
	return nil
}

func (u *unitOfWork) AppendEntry(ctx context.Context, entry ledger.Entry) (ledger.Entry, error) {
	query := `
		INSERT INTO transactions (user_id, account_id, amount, transaction_type, correlation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := u.tx.QueryRow(ctx, query,
		entry.OwnerId,
		entry.AccountId,
		entry.Amount,
		string(entry.Kind),
		entry.CorrelationId,
		entry.CreatedAt,
	).Scan(&entry.Id)
	return entry, err
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	return u.tx.Commit(ctx)
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	return u.tx.Rollback(ctx)
}
