// Package httpserver wraps net/http.Server with address validation and
// context-driven graceful shutdown.
package httpserver
