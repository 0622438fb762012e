package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JhonesBR/go-bank-ledger/internal/profile"
)

const tracerName = "github.com/JhonesBR/go-bank-ledger/internal/ledger"

const DefaultPostingTimeout = 5 * time.Second

// Engine posts deposits, withdrawals and transfers. It is the only writer of
// balances and ledger entries.
type Engine struct {
	store   Store
	locker  Locker
	emitter ReceiptEmitter
	logger  *zap.Logger
	tracer  trace.Tracer
	timeout time.Duration
}

type Option func(*Engine)

func WithReceiptEmitter(emitter ReceiptEmitter) Option {
	return func(e *Engine) { e.emitter = emitter }
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// WithTimeout bounds each posting, lock acquisition included.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

func NewEngine(store Store, locker Locker, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		locker:  locker,
		logger:  zap.NewNop(),
		tracer:  otel.Tracer(tracerName),
		timeout: DefaultPostingTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// leg is one balance change of a posting: the account it touches and the
// entry kind that records it. All legs of a posting share one amount.
type leg struct {
	accountId int64
	kind      Kind
}

func (e *Engine) Deposit(ctx context.Context, accountId int64, amount decimal.Decimal) (Posting, error) {
	return e.post(ctx, "deposit", amount, leg{accountId, KindDeposit})
}

func (e *Engine) Withdraw(ctx context.Context, accountId int64, amount decimal.Decimal) (Posting, error) {
	return e.post(ctx, "withdraw", amount, leg{accountId, KindWithdrawal})
}

func (e *Engine) Transfer(ctx context.Context, fromAccountId, toAccountId int64, amount decimal.Decimal) (Posting, error) {
	if fromAccountId == toAccountId {
		return Posting{}, fmt.Errorf("%w: %d", ErrSameAccount, fromAccountId)
	}
	return e.post(ctx, "transfer", amount,
		leg{fromAccountId, KindTransferOut},
		leg{toAccountId, KindTransferIn},
	)
}

func (e *Engine) post(ctx context.Context, op string, amount decimal.Decimal, legs ...leg) (Posting, error) {
	ctx, span := e.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(
		attribute.String("ledger.amount", amount.String()),
	))
	defer span.End()

	if err := ValidateAmount(amount); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Posting{}, err
	}
	amount = amount.Truncate(Scale)

	posting, err := e.postLocked(ctx, amount, legs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrPersistence) {
			e.logger.Error("posting failed", zap.String("operation", op), zap.Error(err))
		} else {
			e.logger.Info("posting rejected", zap.String("operation", op), zap.Error(err))
		}
		return Posting{}, err
	}

	span.SetAttributes(attribute.String("ledger.correlation_id", posting.CorrelationId.String()))
	e.logger.Info("posting committed",
		zap.String("operation", op),
		zap.String("correlation_id", posting.CorrelationId.String()),
		zap.String("amount", FormatAmount(amount)),
		zap.Int("entries", len(posting.Entries)),
	)

	e.emitReceipts(ctx, &posting)
	return posting, nil
}

// postLocked holds the account locks only for the unit of work; receipts
// are rendered after the locks are released.
func (e *Engine) postLocked(ctx context.Context, amount decimal.Decimal, legs []leg) (Posting, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	ids := make([]int64, 0, len(legs))
	for _, l := range legs {
		ids = append(ids, l.accountId)
	}

	unlock, err := e.locker.Lock(ctx, ids...)
	if err != nil {
		return Posting{}, persistenceError("acquire account lock", err)
	}
	defer unlock()

	return e.commit(ctx, amount, legs)
}

// inTx runs fn in one unit of work and commits it. The unit of work is
// rolled back exactly once if fn fails or panics.
func (e *Engine) inTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return persistenceError("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				e.logger.Warn("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	committed = true // a failed commit has already ended the unit of work
	if err := tx.Commit(ctx); err != nil {
		return persistenceError("commit", err)
	}
	return nil
}

func (e *Engine) commit(ctx context.Context, amount decimal.Decimal, legs []leg) (posting Posting, err error) {
	err = e.inTx(ctx, func(tx Tx) error {
		// Accounts are read in ascending id order, the same order the locker uses.
		ids := make([]int64, 0, len(legs))
		for _, l := range legs {
			ids = append(ids, l.accountId)
		}
		slices.Sort(ids)
		ids = slices.Compact(ids)

		accounts := make(map[int64]Account, len(ids))
		for _, id := range ids {
			account, err := tx.GetAccountForUpdate(ctx, id)
			if errors.Is(err, ErrAccountNotFound) {
				return accountNotFound(id)
			}
			if err != nil {
				return persistenceError("read account", err)
			}
			accounts[id] = account
		}

		// Every leg is validated against the same snapshot before anything is written.
		for _, l := range legs {
			account := accounts[l.accountId]
			if l.kind.Credit() {
				if err := checkCredit(account, amount); err != nil {
					return err
				}
				account.Balance = account.Balance.Add(amount)
			} else {
				if account.Balance.LessThan(amount) {
					return fmt.Errorf("%w: account %d has %s, needs %s",
						ErrInsufficientFunds, account.Id, FormatAmount(account.Balance), FormatAmount(amount))
				}
				account.Balance = account.Balance.Sub(amount)
			}
			accounts[l.accountId] = account
		}

		for _, id := range ids {
			if err := tx.SetBalance(ctx, id, accounts[id].Balance); err != nil {
				return persistenceError("update balance", err)
			}
		}

		posting = Posting{CorrelationId: uuid.New()}
		createdAt := time.Now().UTC()
		for _, l := range legs {
			entry, err := tx.AppendEntry(ctx, Entry{
				OwnerId:       accounts[l.accountId].OwnerId,
				AccountId:     l.accountId,
				Amount:        amount,
				Kind:          l.kind,
				CorrelationId: posting.CorrelationId,
				CreatedAt:     createdAt,
			})
			if err != nil {
				return persistenceError("append entry", err)
			}
			posting.Entries = append(posting.Entries, entry)
			posting.Accounts = append(posting.Accounts, accounts[l.accountId])
		}
		return nil
	})
	if err != nil {
		return Posting{}, err
	}
	return posting, nil
}

// Open creates an account for ownerId and books a non-zero opening balance
// as a deposit in the same unit of work, so either both exist or neither.
// The new account is not visible to other postings before commit, so no
// account lock is taken.
func (e *Engine) Open(ctx context.Context, ownerId int64, kind string, opening decimal.Decimal) (Posting, error) {
	ctx, span := e.tracer.Start(ctx, "ledger.open", trace.WithAttributes(
		attribute.Int64("ledger.owner_id", ownerId),
		attribute.String("ledger.amount", opening.String()),
	))
	defer span.End()

	if !opening.IsZero() {
		if err := ValidateAmount(opening); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return Posting{}, err
		}
	}
	if kind == "" {
		kind = DefaultAccountKind
	}

	posting, err := e.open(ctx, ownerId, kind, opening)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrPersistence) {
			e.logger.Error("account opening failed", zap.Int64("owner_id", ownerId), zap.Error(err))
		} else {
			e.logger.Info("account opening rejected", zap.Int64("owner_id", ownerId), zap.Error(err))
		}
		return Posting{}, err
	}

	e.logger.Info("account opened",
		zap.Int64("account_id", posting.Accounts[0].Id),
		zap.Int64("owner_id", ownerId),
		zap.String("opening_balance", FormatAmount(posting.Accounts[0].Balance)),
	)

	if len(posting.Entries) == 0 {
		posting.ReceiptStatus = ReceiptSkipped
		return posting, nil
	}
	e.emitReceipts(ctx, &posting)
	return posting, nil
}

func (e *Engine) open(ctx context.Context, ownerId int64, kind string, opening decimal.Decimal) (posting Posting, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	err = e.inTx(ctx, func(tx Tx) error {
		account, err := tx.CreateAccount(ctx, ownerId, kind)
		if err != nil {
			if errors.Is(err, ErrAccountExists) || errors.Is(err, profile.ErrUserNotFound) {
				return err
			}
			return persistenceError("create account", err)
		}

		posting = Posting{CorrelationId: uuid.New()}
		if opening.IsPositive() {
			account.Balance = opening
			if err := tx.SetBalance(ctx, account.Id, account.Balance); err != nil {
				return persistenceError("update balance", err)
			}
			entry, err := tx.AppendEntry(ctx, Entry{
				OwnerId:       ownerId,
				AccountId:     account.Id,
				Amount:        opening,
				Kind:          KindDeposit,
				CorrelationId: posting.CorrelationId,
				CreatedAt:     time.Now().UTC(),
			})
			if err != nil {
				return persistenceError("append entry", err)
			}
			posting.Entries = append(posting.Entries, entry)
		}
		posting.Accounts = append(posting.Accounts, account)
		return nil
	})
	if err != nil {
		return Posting{}, err
	}
	return posting, nil
}

// emitReceipts never fails the posting; problems are logged and reported
// through ReceiptStatus.
func (e *Engine) emitReceipts(ctx context.Context, posting *Posting) {
	if e.emitter == nil {
		posting.ReceiptStatus = ReceiptSkipped
		return
	}

	posting.ReceiptStatus = ReceiptWritten
	for _, entry := range posting.Entries {
		ref, err := e.emitter.Emit(ctx, entry)
		if err != nil {
			posting.ReceiptStatus = ReceiptFailed
			e.logger.Warn("receipt rendering failed",
				zap.Int64("transaction_id", entry.Id),
				zap.String("correlation_id", entry.CorrelationId.String()),
				zap.Error(err),
			)
			continue
		}
		posting.Receipts = append(posting.Receipts, ref)
	}
}

// Reconcile replays the account's ledger from zero and compares the result
// with the stored balance.
func (e *Engine) Reconcile(ctx context.Context, accountId int64) (Reconciliation, error) {
	ctx, span := e.tracer.Start(ctx, "ledger.reconcile", trace.WithAttributes(
		attribute.Int64("ledger.account_id", accountId),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	unlock, err := e.locker.Lock(ctx, accountId)
	if err != nil {
		return Reconciliation{}, persistenceError("acquire account lock", err)
	}
	defer unlock()

	account, err := e.store.GetAccount(ctx, accountId)
	if err != nil {
		return Reconciliation{}, err
	}
	entries, err := e.store.AccountEntries(ctx, accountId)
	if err != nil {
		return Reconciliation{}, persistenceError("read entries", err)
	}

	replayed := Replay(entries)
	result := Reconciliation{
		AccountId: accountId,
		Stored:    account.Balance,
		Replayed:  replayed,
		Entries:   len(entries),
		Balanced:  account.Balance.Equal(replayed),
	}
	if !result.Balanced {
		e.logger.Error("ledger does not match balance",
			zap.Int64("account_id", accountId),
			zap.String("stored", FormatAmount(result.Stored)),
			zap.String("replayed", FormatAmount(result.Replayed)),
		)
	}
	return result, nil
}
