// Package loadbalancer selects a healthy instance of a named service from the
// registry. Unhealthy instances are skipped; when none is left Choose returns
// ErrNotAvailable. Selection state is kept per service name.
package loadbalancer
