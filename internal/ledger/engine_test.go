package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/JhonesBR/go-bank-ledger/internal/ledger"
	"github.com/JhonesBR/go-bank-ledger/internal/lock"
	"github.com/JhonesBR/go-bank-ledger/internal/profile"
	"github.com/JhonesBR/go-bank-ledger/internal/storage/memory"
)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// openAccount creates an owner and an account funded through an opening
// deposit, so the balance always matches the ledger.
func openAccount(t *testing.T, store *memory.Store, engine *ledger.Engine, username, balance string) ledger.Account {
	t.Helper()
	ctx := context.Background()

	user, err := store.CreateUser(ctx, profile.User{Username: username, Name: username, Email: username + "@example.com"})
	require.NoError(t, err)
	posting, err := engine.Open(ctx, user.Id, ledger.DefaultAccountKind, amount(balance))
	require.NoError(t, err)
	account, err := store.GetAccount(ctx, posting.Accounts[0].Id)
	require.NoError(t, err)
	return account
}

func balanceOf(t *testing.T, store ledger.Store, id int64) string {
	t.Helper()
	account, err := store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return ledger.FormatAmount(account.Balance)
}

func entryCount(t *testing.T, store ledger.Store) int {
	t.Helper()
	_, total, err := store.ListEntries(context.Background(), ledger.EntryFilter{})
	require.NoError(t, err)
	return total
}

func assertReplayMatches(t *testing.T, store ledger.Store, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		entries, err := store.AccountEntries(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, balanceOf(t, store, id), ledger.FormatAmount(ledger.Replay(entries)), "account %d", id)
	}
}

func newEngine(opts ...ledger.Option) (*memory.Store, *ledger.Engine) {
	store := memory.NewStore()
	return store, ledger.NewEngine(store, lock.NewLocal(), opts...)
}

func TestDeposit(t *testing.T) {
	store, engine := newEngine()
	account := openAccount(t, store, engine, "ana", "100.00")
	before := entryCount(t, store)

	start := time.Now()
	posting, err := engine.Deposit(context.Background(), account.Id, amount("50.00"))
	require.NoError(t, err)

	require.Len(t, posting.Entries, 1)
	entry := posting.Entries[0]
	assert.Equal(t, ledger.KindDeposit, entry.Kind)
	assert.Equal(t, "50.00", ledger.FormatAmount(entry.Amount))
	assert.Equal(t, account.Id, entry.AccountId)
	assert.Equal(t, account.OwnerId, entry.OwnerId)
	assert.Equal(t, posting.CorrelationId, entry.CorrelationId)
	assert.Equal(t, time.UTC, entry.CreatedAt.Location())
	assert.WithinRange(t, entry.CreatedAt, start, time.Now())

	require.Len(t, posting.Accounts, 1)
	assert.Equal(t, "150.00", ledger.FormatAmount(posting.Accounts[0].Balance))
	assert.Equal(t, "150.00", balanceOf(t, store, account.Id))
	assert.Equal(t, before+1, entryCount(t, store))
	assert.Equal(t, ledger.ReceiptSkipped, posting.ReceiptStatus)
}

func TestWithdraw(t *testing.T) {
	store, engine := newEngine()
	account := openAccount(t, store, engine, "ana", "100.00")

	posting, err := engine.Withdraw(context.Background(), account.Id, amount("100.00"))
	require.NoError(t, err)
	assert.Equal(t, ledger.KindWithdrawal, posting.Entries[0].Kind)
	assert.Equal(t, "0.00", balanceOf(t, store, account.Id))

	before := entryCount(t, store)
	_, err = engine.Withdraw(context.Background(), account.Id, amount("0.01"))
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, "0.00", balanceOf(t, store, account.Id))
	assert.Equal(t, before, entryCount(t, store))
}

func TestTransfer(t *testing.T) {
	store, engine := newEngine()
	from := openAccount(t, store, engine, "ana", "80.00")
	to := openAccount(t, store, engine, "bea", "5.50")

	posting, err := engine.Transfer(context.Background(), from.Id, to.Id, amount("30.25"))
	require.NoError(t, err)

	require.Len(t, posting.Entries, 2)
	out, in := posting.Entries[0], posting.Entries[1]
	assert.Equal(t, ledger.KindTransferOut, out.Kind)
	assert.Equal(t, from.Id, out.AccountId)
	assert.Equal(t, from.OwnerId, out.OwnerId)
	assert.Equal(t, ledger.KindTransferIn, in.Kind)
	assert.Equal(t, to.Id, in.AccountId)
	assert.Equal(t, to.OwnerId, in.OwnerId)
	assert.True(t, out.Amount.Equal(in.Amount))
	assert.Equal(t, out.CorrelationId, in.CorrelationId)

	assert.Equal(t, "49.75", ledger.FormatAmount(posting.Accounts[0].Balance))
	assert.Equal(t, "35.75", ledger.FormatAmount(posting.Accounts[1].Balance))
	assertReplayMatches(t, store, from.Id, to.Id)
}

func TestOpen(t *testing.T) {
	store, engine := newEngine()
	ctx := context.Background()
	user, err := store.CreateUser(ctx, profile.User{Username: "ana", Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)

	posting, err := engine.Open(ctx, user.Id, "savings", amount("250.50"))
	require.NoError(t, err)

	require.Len(t, posting.Accounts, 1)
	account := posting.Accounts[0]
	assert.Equal(t, user.Id, account.OwnerId)
	assert.Equal(t, "savings", account.Kind)
	assert.Equal(t, "250.50", ledger.FormatAmount(account.Balance))

	require.Len(t, posting.Entries, 1)
	assert.Equal(t, ledger.KindDeposit, posting.Entries[0].Kind)
	assert.Equal(t, account.Id, posting.Entries[0].AccountId)
	assert.Equal(t, "250.50", balanceOf(t, store, account.Id))
	assertReplayMatches(t, store, account.Id)

	_, err = engine.Open(ctx, user.Id, "", amount("0"))
	assert.ErrorIs(t, err, ledger.ErrAccountExists)
	_, err = engine.Open(ctx, 999, "", amount("0"))
	assert.ErrorIs(t, err, profile.ErrUserNotFound)
}

func TestOpenWithoutBalance(t *testing.T) {
	store, engine := newEngine(ledger.WithReceiptEmitter(&fakeEmitter{}))
	ctx := context.Background()
	user, err := store.CreateUser(ctx, profile.User{Username: "ana", Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)

	posting, err := engine.Open(ctx, user.Id, "", amount("0"))
	require.NoError(t, err)
	assert.Empty(t, posting.Entries)
	assert.Equal(t, ledger.DefaultAccountKind, posting.Accounts[0].Kind)
	assert.Equal(t, ledger.ReceiptSkipped, posting.ReceiptStatus)
	assert.Zero(t, entryCount(t, store))
}

func TestOpenRejectsBadOpeningBalance(t *testing.T) {
	store, engine := newEngine()
	ctx := context.Background()
	user, err := store.CreateUser(ctx, profile.User{Username: "ana", Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)

	for _, raw := range []string{"-1", "0.005", "1000000000000"} {
		_, err := engine.Open(ctx, user.Id, "", amount(raw))
		assert.ErrorIs(t, err, ledger.ErrAmountInvalid, raw)
	}

	_, total, err := store.ListAccounts(ctx, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestOpenFailureLeavesNoAccount(t *testing.T) {
	mem := memory.NewStore()
	ctx := context.Background()
	user, err := mem.CreateUser(ctx, profile.User{Username: "ana", Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)

	failing := ledger.NewEngine(&faultyStore{Store: mem, failOnAppend: 1}, lock.NewLocal())
	_, err = failing.Open(ctx, user.Id, "", amount("100"))
	assert.ErrorIs(t, err, ledger.ErrPersistence)

	_, total, err := mem.ListAccounts(ctx, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, entryCount(t, mem))

	// a retry succeeds once storage recovers
	posting, err := ledger.NewEngine(mem, lock.NewLocal()).Open(ctx, user.Id, "", amount("100"))
	require.NoError(t, err)
	assert.Equal(t, "100.00", balanceOf(t, mem, posting.Accounts[0].Id))
}

func TestCreditCannotExceedMaxAmount(t *testing.T) {
	store, engine := newEngine()
	rich := openAccount(t, store, engine, "ana", "999999999999.00")
	other := openAccount(t, store, engine, "bea", "5")
	ctx := context.Background()

	_, err := engine.Deposit(ctx, rich.Id, amount("1.00"))
	assert.ErrorIs(t, err, ledger.ErrAmountInvalid)
	_, err = engine.Transfer(ctx, other.Id, rich.Id, amount("1.00"))
	assert.ErrorIs(t, err, ledger.ErrAmountInvalid)

	_, err = engine.Deposit(ctx, rich.Id, amount("0.99"))
	require.NoError(t, err)
	assert.Equal(t, "999999999999.99", balanceOf(t, store, rich.Id))
	assert.Equal(t, "5.00", balanceOf(t, store, other.Id))
}

func TestTransferToLowerAccountId(t *testing.T) {
	store, engine := newEngine()
	low := openAccount(t, store, engine, "ana", "0")
	high := openAccount(t, store, engine, "bea", "10")

	posting, err := engine.Transfer(context.Background(), high.Id, low.Id, amount("4"))
	require.NoError(t, err)

	// legs keep the source-then-destination order regardless of lock order
	assert.Equal(t, high.Id, posting.Accounts[0].Id)
	assert.Equal(t, ledger.KindTransferOut, posting.Entries[0].Kind)
	assert.Equal(t, "6.00", balanceOf(t, store, high.Id))
	assert.Equal(t, "4.00", balanceOf(t, store, low.Id))
}

func TestPostingRejections(t *testing.T) {
	store, engine := newEngine()
	a := openAccount(t, store, engine, "ana", "10")
	b := openAccount(t, store, engine, "bea", "10")
	ctx := context.Background()

	tests := []struct {
		name string
		post func() error
		want error
	}{
		{"deposit zero", func() error { _, err := engine.Deposit(ctx, a.Id, amount("0")); return err }, ledger.ErrAmountInvalid},
		{"deposit negative", func() error { _, err := engine.Deposit(ctx, a.Id, amount("-5")); return err }, ledger.ErrAmountInvalid},
		{"deposit sub-cent", func() error { _, err := engine.Deposit(ctx, a.Id, amount("0.001")); return err }, ledger.ErrAmountInvalid},
		{"withdraw zero on funded account", func() error { _, err := engine.Withdraw(ctx, a.Id, amount("0")); return err }, ledger.ErrAmountInvalid},
		{"transfer negative", func() error { _, err := engine.Transfer(ctx, a.Id, b.Id, amount("-1")); return err }, ledger.ErrAmountInvalid},
		{"deposit unknown account", func() error { _, err := engine.Deposit(ctx, 999, amount("1")); return err }, ledger.ErrAccountNotFound},
		{"withdraw unknown account", func() error { _, err := engine.Withdraw(ctx, 999, amount("1")); return err }, ledger.ErrAccountNotFound},
		{"transfer unknown source", func() error { _, err := engine.Transfer(ctx, 999, b.Id, amount("1")); return err }, ledger.ErrAccountNotFound},
		{"transfer unknown destination", func() error { _, err := engine.Transfer(ctx, a.Id, 999, amount("1")); return err }, ledger.ErrAccountNotFound},
		{"transfer overdraw", func() error { _, err := engine.Transfer(ctx, a.Id, b.Id, amount("10.01")); return err }, ledger.ErrInsufficientFunds},
		{"transfer to self", func() error { _, err := engine.Transfer(ctx, a.Id, a.Id, amount("1")); return err }, ledger.ErrSameAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := entryCount(t, store)
			assert.ErrorIs(t, tt.post(), tt.want)
			assert.Equal(t, before, entryCount(t, store))
			assert.Equal(t, "10.00", balanceOf(t, store, a.Id))
			assert.Equal(t, "10.00", balanceOf(t, store, b.Id))
		})
	}
}

func TestScenario(t *testing.T) {
	store, engine := newEngine()
	ctx := context.Background()
	src := openAccount(t, store, engine, "ana", "100.00")
	dst := openAccount(t, store, engine, "bea", "20.00")

	start := entryCount(t, store)

	posting, err := engine.Deposit(ctx, src.Id, amount("50.00"))
	require.NoError(t, err)
	assert.Equal(t, "150.00", balanceOf(t, store, src.Id))
	assert.Equal(t, ledger.KindDeposit, posting.Entries[0].Kind)
	assert.Equal(t, start+1, entryCount(t, store))

	_, err = engine.Withdraw(ctx, src.Id, amount("200.00"))
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, "150.00", balanceOf(t, store, src.Id))
	assert.Equal(t, start+1, entryCount(t, store))

	_, err = engine.Transfer(ctx, src.Id, dst.Id, amount("100.00"))
	require.NoError(t, err)
	assert.Equal(t, "50.00", balanceOf(t, store, src.Id))
	assert.Equal(t, "120.00", balanceOf(t, store, dst.Id))
	assert.Equal(t, start+3, entryCount(t, store))

	assertReplayMatches(t, store, src.Id, dst.Id)
}

func TestCommittedEntriesAreStable(t *testing.T) {
	store, engine := newEngine()
	account := openAccount(t, store, engine, "ana", "10")

	posting, err := engine.Withdraw(context.Background(), account.Id, amount("3"))
	require.NoError(t, err)
	id := posting.Entries[0].Id

	first, err := store.GetEntry(context.Background(), id)
	require.NoError(t, err)
	_, err = engine.Deposit(context.Background(), account.Id, amount("7"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := store.GetEntry(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	store, engine := newEngine()
	account := openAccount(t, store, engine, "ana", "100.00")

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Withdraw(context.Background(), account.Id, amount("7.00"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ledger.ErrInsufficientFunds):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 14, succeeded)
	assert.Equal(t, workers-14, rejected)
	assert.Equal(t, "2.00", balanceOf(t, store, account.Id))
	assertReplayMatches(t, store, account.Id)
}

func TestConcurrentOppositeTransfers(t *testing.T) {
	store, engine := newEngine()
	a := openAccount(t, store, engine, "ana", "1000")
	b := openAccount(t, store, engine, "bea", "1000")

	const n = 200
	var wg sync.WaitGroup
	wg.Add(2 * n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := engine.Transfer(context.Background(), a.Id, b.Id, amount("1")); err != nil {
				t.Errorf("a->b: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := engine.Transfer(context.Background(), b.Id, a.Id, amount("1")); err != nil {
				t.Errorf("b->a: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, "1000.00", balanceOf(t, store, a.Id))
	assert.Equal(t, "1000.00", balanceOf(t, store, b.Id))
	assertReplayMatches(t, store, a.Id, b.Id)
}

// faultyStore fails the n-th AppendEntry of every unit of work.
type faultyStore struct {
	ledger.Store
	failOnAppend int
}

func (s *faultyStore) Begin(ctx context.Context) (ledger.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{Tx: tx, failOnAppend: s.failOnAppend}, nil
}

type faultyTx struct {
	ledger.Tx
	failOnAppend int
	appends      int
}

func (tx *faultyTx) AppendEntry(ctx context.Context, entry ledger.Entry) (ledger.Entry, error) {
	tx.appends++
	if tx.appends == tx.failOnAppend {
		return ledger.Entry{}, errors.New("disk full")
	}
	return tx.Tx.AppendEntry(ctx, entry)
}

func TestPersistenceFailureLeavesNoPartialState(t *testing.T) {
	mem := memory.NewStore()
	funding := ledger.NewEngine(mem, lock.NewLocal())
	a := openAccount(t, mem, funding, "ana", "50")
	b := openAccount(t, mem, funding, "bea", "0")
	before := entryCount(t, mem)

	engine := ledger.NewEngine(&faultyStore{Store: mem, failOnAppend: 2}, lock.NewLocal())
	_, err := engine.Transfer(context.Background(), a.Id, b.Id, amount("20"))

	assert.ErrorIs(t, err, ledger.ErrPersistence)
	assert.Equal(t, "50.00", balanceOf(t, mem, a.Id))
	assert.Equal(t, "0.00", balanceOf(t, mem, b.Id))
	assert.Equal(t, before, entryCount(t, mem))
}

type blockingLocker struct{}

func (blockingLocker) Lock(ctx context.Context, _ ...int64) (func(), error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPostingIsBoundedByTimeout(t *testing.T) {
	store := memory.NewStore()
	engine := ledger.NewEngine(store, blockingLocker{}, ledger.WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := engine.Deposit(context.Background(), 1, amount("1"))

	assert.ErrorIs(t, err, ledger.ErrPersistence)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

type fakeEmitter struct {
	mu     sync.Mutex
	failOn ledger.Kind
	seen   []ledger.Entry
}

func (f *fakeEmitter) Emit(_ context.Context, entry ledger.Entry) (ledger.ReceiptRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, entry)
	if entry.Kind == f.failOn {
		return ledger.ReceiptRef{}, errors.New("printer on fire")
	}
	return ledger.ReceiptRef{EntryId: entry.Id, ReceiptId: "receipt"}, nil
}

func TestReceiptsAreEmittedAfterCommit(t *testing.T) {
	emitter := &fakeEmitter{}
	store, engine := newEngine(ledger.WithReceiptEmitter(emitter))
	a := openAccount(t, store, engine, "ana", "10")
	b := openAccount(t, store, engine, "bea", "0")

	posting, err := engine.Transfer(context.Background(), a.Id, b.Id, amount("5"))
	require.NoError(t, err)

	assert.Equal(t, ledger.ReceiptWritten, posting.ReceiptStatus)
	require.Len(t, posting.Receipts, 2)
	assert.Equal(t, posting.Entries[0].Id, posting.Receipts[0].EntryId)

	// every emitted entry is already visible in the store
	for _, entry := range emitter.seen {
		got, err := store.GetEntry(context.Background(), entry.Id)
		require.NoError(t, err)
		assert.Equal(t, entry, got)
	}
}

func TestReceiptFailureDoesNotUndoPosting(t *testing.T) {
	emitter := &fakeEmitter{failOn: ledger.KindWithdrawal}
	store, engine := newEngine(ledger.WithReceiptEmitter(emitter))
	account := openAccount(t, store, engine, "ana", "10")

	posting, err := engine.Withdraw(context.Background(), account.Id, amount("4"))
	require.NoError(t, err)

	assert.Equal(t, ledger.ReceiptFailed, posting.ReceiptStatus)
	assert.Empty(t, posting.Receipts)
	assert.Equal(t, "6.00", balanceOf(t, store, account.Id))
}

func TestReconcile(t *testing.T) {
	store, engine := newEngine()
	account := openAccount(t, store, engine, "ana", "25.00")
	_, err := engine.Withdraw(context.Background(), account.Id, amount("5.00"))
	require.NoError(t, err)

	rec, err := engine.Reconcile(context.Background(), account.Id)
	require.NoError(t, err)
	assert.True(t, rec.Balanced)
	assert.Equal(t, 2, rec.Entries)
	assert.Equal(t, "20.00", ledger.FormatAmount(rec.Replayed))

	_, err = engine.Reconcile(context.Background(), 999)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestPostingSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	store, engine := newEngine(ledger.WithTracerProvider(tp))
	account := openAccount(t, store, engine, "ana", "1")

	_, err := engine.Withdraw(context.Background(), account.Id, amount("2"))
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "ledger.open", spans[0].Name())
	assert.Equal(t, "ledger.withdraw", spans[1].Name())
	assert.Equal(t, "Error", spans[1].Status().Code.String())
}
