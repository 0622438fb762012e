package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindDeposit     Kind = "deposit"
	KindWithdrawal  Kind = "withdrawal"
	KindTransferOut Kind = "transfer_out"
	KindTransferIn  Kind = "transfer_in"
)

// Credit reports whether entries of this kind increase the account balance.
func (k Kind) Credit() bool {
	return k == KindDeposit || k == KindTransferIn
}

func (k Kind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindTransferOut, KindTransferIn:
		return true
	}
	return false
}

const DefaultAccountKind = "checking"

type Account struct {
	Id        int64           `json:"id"`
	OwnerId   int64           `json:"owner_id"`
	Balance   decimal.Decimal `json:"balance"`
	Kind      string          `json:"account_type"`
	CreatedAt time.Time       `json:"created_at"`
}

// Entry is an immutable ledger record. Amount is always positive; the
// direction is carried by Kind.
type Entry struct {
	Id            int64           `json:"id"`
	OwnerId       int64           `json:"owner_id"`
	AccountId     int64           `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Kind          Kind            `json:"kind"`
	CorrelationId uuid.UUID       `json:"correlation_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Signed returns the entry amount with the sign of its effect on the balance.
func (e Entry) Signed() decimal.Decimal {
	if e.Kind.Credit() {
		return e.Amount
	}
	return e.Amount.Neg()
}

type ReceiptStatus string

const (
	ReceiptWritten ReceiptStatus = "written"
	ReceiptFailed  ReceiptStatus = "failed"
	ReceiptSkipped ReceiptStatus = "skipped"
)

type ReceiptRef struct {
	EntryId      int64  `json:"transaction_id"`
	ReceiptId    string `json:"receipt_id"`
	JSONLocation string `json:"json,omitempty"`
	PDFLocation  string `json:"pdf,omitempty"`
}

// Posting is the outcome of a committed operation. Accounts and Entries
// follow the order of the operation's legs (source before destination).
type Posting struct {
	CorrelationId uuid.UUID
	Accounts      []Account
	Entries       []Entry
	Receipts      []ReceiptRef
	ReceiptStatus ReceiptStatus
}

type Reconciliation struct {
	AccountId int64           `json:"account_id"`
	Stored    decimal.Decimal `json:"stored_balance"`
	Replayed  decimal.Decimal `json:"replayed_balance"`
	Entries   int             `json:"entries"`
	Balanced  bool            `json:"balanced"`
}
