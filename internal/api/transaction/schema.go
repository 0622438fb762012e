package transaction

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-bank-ledger/internal/ledger"
)

type DepositSchema struct {
	AccountId *int64           `json:"account_id" validate:"required,gt=0"`
	Amount    *decimal.Decimal `json:"amount" validate:"required"`
}

type WithdrawSchema = DepositSchema

type TransferSchema struct {
	FromAccountId *int64           `json:"from_account_id" validate:"required,gt=0"`
	ToAccountId   *int64           `json:"to_account_id" validate:"required,gt=0"`
	Amount        *decimal.Decimal `json:"amount" validate:"required"`
}

type TransactionShowSchema struct {
	Id            int64     `json:"id"`
	UserId        int64     `json:"user_id"`
	AccountId     int64     `json:"account_id"`
	Amount        string    `json:"amount"`
	Type          string    `json:"transaction_type"`
	CorrelationId string    `json:"correlation_id"`
	CreatedAt     time.Time `json:"date_added"`
}

type PostingResponseSchema struct {
	Message       string                `json:"message"`
	NewBalance    string                `json:"new_balance"`
	Transaction   TransactionShowSchema `json:"transaction"`
	Receipts      []ledger.ReceiptRef   `json:"receipts"`
	ReceiptStatus ledger.ReceiptStatus  `json:"receipt_status"`
}

type TransferResponseSchema struct {
	Message            string                  `json:"message"`
	CorrelationId      string                  `json:"correlation_id"`
	FromAccountBalance string                  `json:"from_account_balance"`
	ToAccountBalance   string                  `json:"to_account_balance"`
	Transactions       []TransactionShowSchema `json:"transactions"`
	Receipts           []ledger.ReceiptRef     `json:"receipts"`
	ReceiptStatus      ledger.ReceiptStatus    `json:"receipt_status"`
}

func toShowSchema(entry ledger.Entry) TransactionShowSchema {
	return TransactionShowSchema{
		Id:            entry.Id,
		UserId:        entry.OwnerId,
		AccountId:     entry.AccountId,
		Amount:        ledger.FormatAmount(entry.Amount),
		Type:          string(entry.Kind),
		CorrelationId: entry.CorrelationId.String(),
		CreatedAt:     entry.CreatedAt,
	}
}

func receiptsOf(posting ledger.Posting) []ledger.ReceiptRef {
	if posting.Receipts == nil {
		return []ledger.ReceiptRef{}
	}
	return posting.Receipts
}
