package account

import (
	"github.com/gofiber/fiber/v3"
	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-bank-ledger/internal/helper"
	"github.com/JhonesBR/go-bank-ledger/internal/ledger"
)

// CreateNewAccount opens an account for a user. A starting balance is
// booked as a deposit in the same unit of work as the account itself.
func CreateNewAccount(engine *ledger.Engine) fiber.Handler {
	return func(c fiber.Ctx) error {
		// Parse create account schema
		var account = CreateAccountSchema{}
		if err := c.Bind().Body(&account); err != nil {
			return fiber.ErrBadRequest
		}
		if err := helper.ValidateInput(&account); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		opening := decimal.Zero
		if account.Balance != nil {
			opening = *account.Balance
		}

		// Create the account and its opening deposit
		posting, err := engine.Open(c, *account.UserId, account.AccountType, opening)
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(CreateAccountResponseSchema{
			AccountShowSchema: toShowSchema(posting.Accounts[0]),
			Message:           "Account created",
			ReceiptStatus:     posting.ReceiptStatus,
		})
	}
}

func GetAccounts(store ledger.Store) fiber.Handler {
	return func(c fiber.Ctx) error {
		// Get pagination
		pagination := helper.GetPagination[AccountShowSchema](c)

		// Retrieve accounts
		accounts, total, err := store.ListAccounts(c, pagination.Size, pagination.Offset())
		if err != nil {
			return err
		}
		pagination.Total = &total
		for _, account := range accounts {
			pagination.Items = append(pagination.Items, toShowSchema(account))
		}

		return c.JSON(pagination)
	}
}

func GetAccountByID(store ledger.Store) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := helper.ParseId(c, "id")
		if err != nil {
			return err
		}

		account, err := store.GetAccount(c, id)
		if err != nil {
			return err
		}

		return c.JSON(toShowSchema(account))
	}
}

func UpdateAccount(store ledger.Store) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := helper.ParseId(c, "id")
		if err != nil {
			return err
		}

		// Parse update account schema
		var update = UpdateAccountSchema{}
		if err := c.Bind().Body(&update); err != nil {
			return fiber.ErrBadRequest
		}
		if err := helper.ValidateInput(&update); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		account, err := store.UpdateAccountKind(c, id, update.AccountType)
		if err != nil {
			return err
		}

		return c.JSON(toShowSchema(account))
	}
}

func DeleteAccount(store ledger.Store) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := helper.ParseId(c, "id")
		if err != nil {
			return err
		}

		if err := store.DeleteAccount(c, id); err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"message": "Account deleted",
		})
	}
}

func ReconcileAccount(engine *ledger.Engine) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := helper.ParseId(c, "id")
		if err != nil {
			return err
		}

		// Replay the ledger against the stored balance
		result, err := engine.Reconcile(c, id)
		if err != nil {
			return err
		}

		return c.JSON(ReconcileResponseSchema{
			AccountId:       result.AccountId,
			StoredBalance:   ledger.FormatAmount(result.Stored),
			ReplayedBalance: ledger.FormatAmount(result.Replayed),
			Entries:         result.Entries,
			Balanced:        result.Balanced,
		})
	}
}
