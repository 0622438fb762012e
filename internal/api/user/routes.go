package user

import (
	"github.com/gofiber/fiber/v3"

	"github.com/JhonesBR/go-bank-ledger/internal/profile"
)

func InitializeRoutes(app *fiber.App, store profile.Store) {
	app.Get("/users", GetUsers(store))
	app.Post("/users", CreateNewUser(store))
	app.Get("/users/name/:username", GetUserByUsername(store))
	app.Get("/users/:id", GetUserByID(store))
	app.Put("/users/:id", UpdateUser(store))
	app.Delete("/users/:id", DeleteUser(store))
}
