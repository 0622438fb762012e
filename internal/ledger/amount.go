package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for balances and amounts.
const Scale = 2

// MaxAmount is the largest amount or balance the stores can hold
// (NUMERIC(14,2)).
var MaxAmount = decimal.RequireFromString("999999999999.99")

func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrAmountInvalid, amount.String())
	}
	if !amount.Equal(amount.Truncate(Scale)) {
		return fmt.Errorf("%w: got %s", ErrAmountInvalid, amount.String())
	}
	if amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: got %s, max %s", ErrAmountInvalid, amount.String(), FormatAmount(MaxAmount))
	}
	return nil
}

// checkCredit rejects a credit that would push a balance past MaxAmount.
func checkCredit(account Account, amount decimal.Decimal) error {
	if account.Balance.Add(amount).GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: balance of account %d would exceed %s",
			ErrAmountInvalid, account.Id, FormatAmount(MaxAmount))
	}
	return nil
}

// FormatAmount renders a money value with exactly Scale fractional digits.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(Scale)
}
