package account

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-bank-ledger/internal/ledger"
)

type CreateAccountSchema struct {
	UserId      *int64           `json:"user_id" validate:"required,gt=0"`
	Balance     *decimal.Decimal `json:"balance"`
	AccountType string           `json:"account_type" validate:"omitempty,oneof=checking savings"`
}

type UpdateAccountSchema struct {
	AccountType string `json:"account_type" validate:"required,oneof=checking savings"`
}

type AccountShowSchema struct {
	Id          int64     `json:"id"`
	UserId      int64     `json:"user_id"`
	Balance     string    `json:"balance"`
	AccountType string    `json:"account_type"`
	CreatedAt   time.Time `json:"date_added"`
}

type CreateAccountResponseSchema struct {
	AccountShowSchema
	Message       string               `json:"message"`
	ReceiptStatus ledger.ReceiptStatus `json:"receipt_status,omitempty"`
}

type ReconcileResponseSchema struct {
	AccountId       int64  `json:"account_id"`
	StoredBalance   string `json:"stored_balance"`
	ReplayedBalance string `json:"replayed_balance"`
	Entries         int    `json:"entries"`
	Balanced        bool   `json:"balanced"`
}

func toShowSchema(account ledger.Account) AccountShowSchema {
	return AccountShowSchema{
		Id:          account.Id,
		UserId:      account.OwnerId,
		Balance:     ledger.FormatAmount(account.Balance),
		AccountType: account.Kind,
		CreatedAt:   account.CreatedAt,
	}
}
