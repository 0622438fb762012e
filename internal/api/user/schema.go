package user

import (
	"time"

	"github.com/JhonesBR/go-bank-ledger/internal/profile"
)

const dobLayout = "2006-01-02"

type CreateUserSchema struct {
	Username string  `json:"username" validate:"required,max=80"`
	Name     string  `json:"name" validate:"required,max=120"`
	Dob      string  `json:"dob" validate:"required,datetime=2006-01-02"`
	Email    string  `json:"email" validate:"required,email"`
	Job      *string `json:"job" validate:"omitempty,max=120"`
}

type UpdateUserSchema struct {
	Username *string `json:"username" validate:"omitempty,max=80"`
	Name     *string `json:"name" validate:"omitempty,max=120"`
	Dob      *string `json:"dob" validate:"omitempty,datetime=2006-01-02"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Job      *string `json:"job" validate:"omitempty,max=120"`
}

type UserShowSchema struct {
	Id        int64     `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Dob       string    `json:"dob"`
	Email     string    `json:"email"`
	Job       *string   `json:"job"`
	CreatedAt time.Time `json:"date_added"`
}

func toShowSchema(user profile.User) UserShowSchema {
	return UserShowSchema{
		Id:        user.Id,
		Username:  user.Username,
		Name:      user.Name,
		Dob:       user.Dob.Format(dobLayout),
		Email:     user.Email,
		Job:       user.Job,
		CreatedAt: user.CreatedAt,
	}
}
