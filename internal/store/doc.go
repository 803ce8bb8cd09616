// Package store holds the reservation service's data: reservations,
// accounts and their bookmarks.
//
// Reservations can live in memory or in Redis. Accounts and bookmarks are
// kept in memory and seeded at startup.
package store
