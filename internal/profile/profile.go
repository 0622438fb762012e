// Package profile holds the bank customers that own accounts.
package profile

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound = errors.New("user does not exist")
	ErrUserExists   = errors.New("username or email already registered")
	ErrUserInUse    = errors.New("cannot delete user who owns an account")
)

type User struct {
	Id        int64     `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Dob       time.Time `json:"dob"`
	Email     string    `json:"email"`
	Job       *string   `json:"job"`
	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	// UpdateUser replaces every editable field of the user with user.Id.
	UpdateUser(ctx context.Context, user User) (User, error)
	DeleteUser(ctx context.Context, id int64) error
	ListUsers(ctx context.Context, limit, offset int) ([]User, int, error)
}
