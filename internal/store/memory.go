package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var errBlankUsername = errors.New("account username: cannot be blank")

type MemoryReservations struct {
	mutex  sync.RWMutex
	byID   map[int64]Reservation
	order  []int64
	nextID int64
}

func NewMemoryReservations() *MemoryReservations {
	return &MemoryReservations{byID: make(map[int64]Reservation)}
}

func (m *MemoryReservations) Save(ctx context.Context, r Reservation) (Reservation, error) {
	if err := r.Validate(); err != nil {
		return Reservation{}, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if r.ID == nil {
		m.nextID++
		id := m.nextID
		r.ID = &id
	} else if *r.ID > m.nextID {
		m.nextID = *r.ID
	}

	if _, exists := m.byID[*r.ID]; !exists {
		m.order = append(m.order, *r.ID)
	}
	m.byID[*r.ID] = r

	return r, nil
}

func (m *MemoryReservations) FindAll(ctx context.Context) ([]Reservation, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	all := make([]Reservation, 0, len(m.order))
	for _, id := range m.order {
		all = append(all, m.byID[id])
	}
	return all, nil
}

func (m *MemoryReservations) FindByID(ctx context.Context, id int64) (Reservation, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	r, ok := m.byID[id]
	if !ok {
		return Reservation{}, fmt.Errorf("reservation %d: %w", id, ErrNotFound)
	}
	return r, nil
}

func (m *MemoryReservations) FindByName(ctx context.Context, name string) ([]Reservation, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	matches := []Reservation{}
	for _, id := range m.order {
		if r := m.byID[id]; r.Name == name {
			matches = append(matches, r)
		}
	}
	return matches, nil
}

type MemoryAccounts struct {
	mutex      sync.RWMutex
	byUsername map[string]Account
	nextID     int64
}

func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{byUsername: make(map[string]Account)}
}

func (m *MemoryAccounts) Save(ctx context.Context, a Account) (Account, error) {
	if a.Username == "" {
		return Account{}, errBlankUsername
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if existing, ok := m.byUsername[a.Username]; ok {
		a.ID = existing.ID
	} else {
		m.nextID++
		a.ID = m.nextID
	}
	m.byUsername[a.Username] = a

	return a, nil
}

func (m *MemoryAccounts) FindByUsername(ctx context.Context, username string) (Account, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	a, ok := m.byUsername[username]
	if !ok {
		return Account{}, fmt.Errorf("account %q: %w", username, ErrNotFound)
	}
	return a, nil
}

type MemoryBookmarks struct {
	mutex  sync.RWMutex
	byID   map[int64]Bookmark
	order  []int64
	nextID int64
}

func NewMemoryBookmarks() *MemoryBookmarks {
	return &MemoryBookmarks{byID: make(map[int64]Bookmark)}
}

func (m *MemoryBookmarks) Save(ctx context.Context, b Bookmark) (Bookmark, error) {
	if err := b.Validate(); err != nil {
		return Bookmark{}, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.nextID++
	b.ID = m.nextID
	m.byID[b.ID] = b
	m.order = append(m.order, b.ID)

	return b, nil
}

func (m *MemoryBookmarks) FindByID(ctx context.Context, id int64) (Bookmark, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	b, ok := m.byID[id]
	if !ok {
		return Bookmark{}, fmt.Errorf("bookmark %d: %w", id, ErrNotFound)
	}
	return b, nil
}

func (m *MemoryBookmarks) FindByAccountUsername(ctx context.Context, username string) ([]Bookmark, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	matches := []Bookmark{}
	for _, id := range m.order {
		if b := m.byID[id]; b.Username == username {
			matches = append(matches, b)
		}
	}
	return matches, nil
}
