package transaction

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/JhonesBR/go-bank-ledger/internal/helper"
	"github.com/JhonesBR/go-bank-ledger/internal/ledger"
	"github.com/JhonesBR/go-bank-ledger/internal/receipt"
)

func Deposit(engine *ledger.Engine) fiber.Handler {
	return func(c fiber.Ctx) error {
		// Parse deposit schema
		var deposit = DepositSchema{}
		if err := c.Bind().Body(&deposit); err != nil {
			return fiber.ErrBadRequest
		}
		if err := helper.ValidateInput(&deposit); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		posting, err := engine.Deposit(c, *deposit.AccountId, *deposit.Amount)
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(PostingResponseSchema{
			Message:       "Deposit successful",
			NewBalance:    ledger.FormatAmount(posting.Accounts[0].Balance),
			Transaction:   toShowSchema(posting.Entries[0]),
			Receipts:      receiptsOf(posting),
			ReceiptStatus: posting.ReceiptStatus,
		})
	}
}

func Withdraw(engine *ledger.Engine) fiber.Handler {
	return func(c fiber.Ctx) error {
		var withdraw = WithdrawSchema{}
		if err := c.Bind().Body(&withdraw); err != nil {
			return fiber.ErrBadRequest
		}
		if err := helper.ValidateInput(&withdraw); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		posting, err := engine.Withdraw(c, *withdraw.AccountId, *withdraw.Amount)
		if err != nil {
			return err
		}

		return c.JSON(PostingResponseSchema{
			Message:       "Withdrawal successful",
			NewBalance:    ledger.FormatAmount(posting.Accounts[0].Balance),
			Transaction:   toShowSchema(posting.Entries[0]),
			Receipts:      receiptsOf(posting),
			ReceiptStatus: posting.ReceiptStatus,
		})
	}
}

func Transfer(engine *ledger.Engine) fiber.Handler {
	return func(c fiber.Ctx) error {
		// Parse transfer schema
		var transfer = TransferSchema{}
		if err := c.Bind().Body(&transfer); err != nil {
			return fiber.ErrBadRequest
		}
		if err := helper.ValidateInput(&transfer); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		posting, err := engine.Transfer(c, *transfer.FromAccountId, *transfer.ToAccountId, *transfer.Amount)
		if err != nil {
			return err
		}

		transactions := make([]TransactionShowSchema, 0, len(posting.Entries))
		for _, entry := range posting.Entries {
			transactions = append(transactions, toShowSchema(entry))
		}

		return c.JSON(TransferResponseSchema{
			Message:            "Transfer successful",
			CorrelationId:      posting.CorrelationId.String(),
			FromAccountBalance: ledger.FormatAmount(posting.Accounts[0].Balance),
			ToAccountBalance:   ledger.FormatAmount(posting.Accounts[1].Balance),
			Transactions:       transactions,
			Receipts:           receiptsOf(posting),
			ReceiptStatus:      posting.ReceiptStatus,
		})
	}
}

func GetTransactions(store ledger.Store) fiber.Handler {
	return func(c fiber.Ctx) error {
		// Get pagination
		pagination := helper.GetPagination[TransactionShowSchema](c)

		filter := ledger.EntryFilter{Limit: pagination.Size, Offset: pagination.Offset()}
		if raw := c.Query("account_id"); raw != "" {
			accountId, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || accountId < 1 {
				return fiber.NewError(fiber.StatusBadRequest, "invalid account_id")
			}
			filter.AccountId = accountId
		}

		// Retrieve transactions
		entries, total, err := store.ListEntries(c, filter)
		if err != nil {
			return err
		}
		pagination.Total = &total
		for _, entry := range entries {
			pagination.Items = append(pagination.Items, toShowSchema(entry))
		}

		return c.JSON(pagination)
	}
}

func GetTransactionByID(store ledger.Store) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := helper.ParseId(c, "id")
		if err != nil {
			return err
		}

		entry, err := store.GetEntry(c, id)
		if err != nil {
			return err
		}

		return c.JSON(toShowSchema(entry))
	}
}

// GetReceipt renders the receipt of a committed entry on demand, as JSON or
// with ?format=pdf as a PDF document.
func GetReceipt(store ledger.Store) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := helper.ParseId(c, "id")
		if err != nil {
			return err
		}

		entry, err := store.GetEntry(c, id)
		if err != nil {
			return err
		}
		r := receipt.FromEntry(entry)

		switch c.Query("format", "json") {
		case "json":
			return c.JSON(r)
		case "pdf":
			doc, err := receipt.RenderPDF(r)
			if err != nil {
				return err
			}
			c.Set(fiber.HeaderContentType, "application/pdf")
			c.Set(fiber.HeaderContentDisposition, `inline; filename="transaction_`+strconv.FormatInt(entry.Id, 10)+`.pdf"`)
			return c.Send(doc)
		default:
			return fiber.NewError(fiber.StatusBadRequest, "format must be json or pdf")
		}
	}
}
