package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

type ReservationRepository interface {
	// Save assigns an id when r.ID is nil and stores r.
	Save(ctx context.Context, r Reservation) (Reservation, error)
	FindAll(ctx context.Context) ([]Reservation, error)
	FindByID(ctx context.Context, id int64) (Reservation, error)
	FindByName(ctx context.Context, name string) ([]Reservation, error)
}

type AccountRepository interface {
	Save(ctx context.Context, a Account) (Account, error)
	FindByUsername(ctx context.Context, username string) (Account, error)
}

type BookmarkRepository interface {
	Save(ctx context.Context, b Bookmark) (Bookmark, error)
	FindByID(ctx context.Context, id int64) (Bookmark, error)
	FindByAccountUsername(ctx context.Context, username string) ([]Bookmark, error)
}
