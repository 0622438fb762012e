package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrAmountInvalid     = errors.New("amount must be a positive number with at most 2 decimal places")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSameAccount       = errors.New("cannot transfer to the same account")
	ErrEntryNotFound     = errors.New("transaction not found")
	ErrAccountExists     = errors.New("user already has an account")
	ErrAccountInUse      = errors.New("cannot delete account with existing transactions")

	// ErrPersistence marks a failure of the storage layer after validation
	// passed. Nothing was committed; the caller may retry the whole operation.
	ErrPersistence = errors.New("persistence failure")
)

func accountNotFound(id int64) error {
	return fmt.Errorf("%w: %d", ErrAccountNotFound, id)
}

func persistenceError(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, step, err)
}
