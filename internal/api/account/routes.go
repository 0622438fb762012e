package account

import (
	"github.com/gofiber/fiber/v3"

	"github.com/JhonesBR/go-bank-ledger/internal/ledger"
)

func InitializeRoutes(app *fiber.App, engine *ledger.Engine, store ledger.Store) {
	app.Get("/accounts", GetAccounts(store))
	app.Post("/accounts", CreateNewAccount(engine))
	app.Get("/accounts/:id", GetAccountByID(store))
	app.Put("/accounts/:id", UpdateAccount(store))
	app.Delete("/accounts/:id", DeleteAccount(store))
	app.Get("/accounts/:id/reconcile", ReconcileAccount(engine))
}
