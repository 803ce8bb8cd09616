package main

import (
	"net/http"

	"github.com/angeloszaimis/reservations/internal/handler"
)

// setupRouter registers POST /refresh only when refresh is non-nil.
func setupRouter(reservations *handler.ReservationHandler, bookmarks *handler.BookmarkHandler, refresh http.HandlerFunc) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /reservations", reservations.List)
	mux.HandleFunc("POST /reservations", reservations.Create)
	mux.HandleFunc("GET /reservations/{id}", reservations.Get)
	mux.HandleFunc("GET /reservations/search/by-name", reservations.SearchByName)
	mux.HandleFunc("GET /message", reservations.Message)
	mux.HandleFunc("GET /health", handler.Health)
	if refresh != nil {
		mux.HandleFunc("POST /refresh", refresh)
	}

	mux.HandleFunc("GET /accounts/{userId}/bookmarks", bookmarks.List)
	mux.HandleFunc("POST /accounts/{userId}/bookmarks", bookmarks.Create)
	mux.HandleFunc("GET /accounts/{userId}/bookmarks/{bookmarkId}", bookmarks.Get)

	return mux
}
