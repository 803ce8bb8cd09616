package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/angeloszaimis/reservations/internal/store"
)

type BookmarkHandler struct {
	logger    *slog.Logger
	accounts  store.AccountRepository
	bookmarks store.BookmarkRepository
}

func NewBookmarkHandler(logger *slog.Logger, accounts store.AccountRepository, bookmarks store.BookmarkRepository) *BookmarkHandler {
	return &BookmarkHandler{logger: logger, accounts: accounts, bookmarks: bookmarks}
}

type bookmarkRequest struct {
	URI         string `json:"uri"`
	Description string `json:"description"`
}

func (h *BookmarkHandler) List(w http.ResponseWriter, r *http.Request) {
	account, ok := h.account(w, r)
	if !ok {
		return
	}

	found, err := h.bookmarks.FindByAccountUsername(r.Context(), account.Username)
	if err != nil {
		h.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (h *BookmarkHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, ok := h.account(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(r.PathValue("bookmarkId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bookmark id must be a number")
		return
	}

	found, err := h.bookmarks.FindByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && found.Username != account.Username) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("could not find bookmark '%d'.", id))
		return
	}
	if err != nil {
		h.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (h *BookmarkHandler) Create(w http.ResponseWriter, r *http.Request) {
	account, ok := h.account(w, r)
	if !ok {
		return
	}

	var req bookmarkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed bookmark payload")
		return
	}

	saved, err := h.bookmarks.Save(r.Context(), store.Bookmark{
		Username:    account.Username,
		URI:         req.URI,
		Description: req.Description,
	})
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/accounts/%s/bookmarks/%d", account.Username, saved.ID))
	writeJSON(w, http.StatusCreated, saved)
}

// account resolves {userId}, answering 404 when the user is unknown.
func (h *BookmarkHandler) account(w http.ResponseWriter, r *http.Request) (store.Account, bool) {
	userID := r.PathValue("userId")

	account, err := h.accounts.FindByUsername(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, fmt.Sprintf("could not find user '%s'.", userID), http.StatusNotFound)
		return store.Account{}, false
	}
	if err != nil {
		h.internalError(w, err)
		return store.Account{}, false
	}
	return account, true
}

func (h *BookmarkHandler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error("Bookmark request failed", slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
