package store

import (
	"context"
	"fmt"
)

const (
	seedPassword    = "password"
	seedDescription = "A description"
)

// seedClaimer is implemented by repositories that outlive the process and
// may be shared by several of them.
type seedClaimer interface {
	ClaimSeed(ctx context.Context) (bool, error)
}

// SeedReservations saves one reservation per name unless the repository was
// seeded before or already holds data.
func SeedReservations(ctx context.Context, repo ReservationRepository, names []string) error {
	seed, err := shouldSeed(ctx, repo)
	if err != nil || !seed {
		return err
	}

	for _, name := range names {
		if _, err := repo.Save(ctx, Reservation{Name: name}); err != nil {
			return fmt.Errorf("seeding reservation %q: %w", name, err)
		}
	}
	return nil
}

// SeedAccounts creates each account with two sample bookmarks.
func SeedAccounts(ctx context.Context, accounts AccountRepository, bookmarks BookmarkRepository, usernames []string) error {
	for _, username := range usernames {
		account, err := accounts.Save(ctx, Account{Username: username, Password: seedPassword})
		if err != nil {
			return fmt.Errorf("seeding account %q: %w", username, err)
		}

		for i := 1; i <= 2; i++ {
			_, err := bookmarks.Save(ctx, Bookmark{
				Username:    account.Username,
				URI:         fmt.Sprintf("http://bookmark.com/%d/%s", i, username),
				Description: seedDescription,
			})
			if err != nil {
				return fmt.Errorf("seeding bookmark for %q: %w", username, err)
			}
		}
	}
	return nil
}

func shouldSeed(ctx context.Context, repo ReservationRepository) (bool, error) {
	if claimer, ok := repo.(seedClaimer); ok {
		return claimer.ClaimSeed(ctx)
	}

	existing, err := repo.FindAll(ctx)
	if err != nil {
		return false, fmt.Errorf("checking existing reservations: %w", err)
	}
	return len(existing) == 0, nil
}
