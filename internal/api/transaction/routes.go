package transaction

import (
	"github.com/gofiber/fiber/v3"

	"github.com/JhonesBR/go-bank-ledger/internal/ledger"
)

func InitializeRoutes(app *fiber.App, engine *ledger.Engine, store ledger.Store) {
	app.Get("/transactions", GetTransactions(store))
	app.Get("/transactions/:id", GetTransactionByID(store))
	app.Get("/transactions/:id/receipt", GetReceipt(store))
	app.Post("/transactions/deposit", Deposit(engine))
	app.Post("/transactions/withdraw", Withdraw(engine))
	app.Post("/transactions/transfer", Transfer(engine))
}
