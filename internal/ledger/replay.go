package ledger

import "github.com/shopspring/decimal"

// Replay rebuilds a balance from zero out of the given entries.
func Replay(entries []Entry) decimal.Decimal {
	balance := decimal.Zero
	for _, entry := range entries {
		balance = balance.Add(entry.Signed())
	}
	return balance
}
