package user

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/JhonesBR/go-bank-ledger/internal/helper"
	"github.com/JhonesBR/go-bank-ledger/internal/profile"
)

func CreateNewUser(store profile.Store) fiber.Handler {
	return func(c fiber.Ctx) error {
		// Parse create user schema
		var user = CreateUserSchema{}
		if err := c.Bind().Body(&user); err != nil {
			return fiber.ErrBadRequest
		}
		if err := helper.ValidateInput(&user); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		dob, err := time.Parse(dobLayout, user.Dob)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid dob format, use YYYY-MM-DD")
		}

		created, err := store.CreateUser(c, profile.User{
			Username: user.Username,
			Name:     user.Name,
			Dob:      dob,
			Email:    user.Email,
			Job:      user.Job,
		})
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(toShowSchema(created))
	}
}

func GetUsers(store profile.Store) fiber.Handler {
	return func(c fiber.Ctx) error {
		// Get pagination
		pagination := helper.GetPagination[UserShowSchema](c)

		// Retrieve users
		users, total, err := store.ListUsers(c, pagination.Size, pagination.Offset())
		if err != nil {
			return err
		}
		pagination.Total = &total
		for _, user := range users {
			pagination.Items = append(pagination.Items, toShowSchema(user))
		}

		return c.JSON(pagination)
	}
}

func GetUserByID(store profile.Store) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := helper.ParseId(c, "id")
		if err != nil {
			return err
		}

		user, err := store.GetUser(c, id)
		if err != nil {
			return err
		}

		return c.JSON(toShowSchema(user))
	}
}

func GetUserByUsername(store profile.Store) fiber.Handler {
	return func(c fiber.Ctx) error {
		user, err := store.GetUserByUsername(c, c.Params("username"))
		if err != nil {
			return err
		}

		return c.JSON(toShowSchema(user))
	}
}

// UpdateUser applies the fields present in the body and keeps the rest.
func UpdateUser(store profile.Store) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := helper.ParseId(c, "id")
		if err != nil {
			return err
		}

		// Parse update user schema
		var update = UpdateUserSchema{}
		if err := c.Bind().Body(&update); err != nil {
			return fiber.ErrBadRequest
		}
		if err := helper.ValidateInput(&update); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		user, err := store.GetUser(c, id)
		if err != nil {
			return err
		}
		if update.Username != nil {
			user.Username = *update.Username
		}
		if update.Name != nil {
			user.Name = *update.Name
		}
		if update.Dob != nil {
			dob, err := time.Parse(dobLayout, *update.Dob)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid dob format, use YYYY-MM-DD")
			}
			user.Dob = dob
		}
		if update.Email != nil {
			user.Email = *update.Email
		}
		if update.Job != nil {
			user.Job = update.Job
		}

		updated, err := store.UpdateUser(c, user)
		if err != nil {
			return err
		}

		return c.JSON(toShowSchema(updated))
	}
}

func DeleteUser(store profile.Store) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := helper.ParseId(c, "id")
		if err != nil {
			return err
		}

		if err := store.DeleteUser(c, id); err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"message": "User deleted",
		})
	}
}
