package store

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const maxNameLength = 255

type Reservation struct {
	ID   *int64 `json:"id"`
	Name string `json:"reservationName"`
}

func (r Reservation) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, maxNameLength)),
	)
}

type Account struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"`
}

type Bookmark struct {
	ID          int64  `json:"id"`
	Username    string `json:"-"`
	URI         string `json:"uri"`
	Description string `json:"description"`
}

func (b Bookmark) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.URI, validation.Required),
	)
}
