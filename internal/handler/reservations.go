package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/angeloszaimis/reservations/internal/store"
)

type ReservationHandler struct {
	logger  *slog.Logger
	repo    store.ReservationRepository
	message atomic.Pointer[string]
}

func NewReservationHandler(logger *slog.Logger, repo store.ReservationRepository, message string) *ReservationHandler {
	h := &ReservationHandler{logger: logger, repo: repo}
	h.SetMessage(message)
	return h
}

// SetMessage replaces the text served by /message.
func (h *ReservationHandler) SetMessage(message string) {
	h.message.Store(&message)
}

type reservationEnvelope struct {
	Embedded struct {
		Reservations []store.Reservation `json:"reservations"`
	} `json:"_embedded"`
}

func envelope(reservations []store.Reservation) reservationEnvelope {
	var env reservationEnvelope
	env.Embedded.Reservations = reservations
	if env.Embedded.Reservations == nil {
		env.Embedded.Reservations = []store.Reservation{}
	}
	return env
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.repo.FindAll(r.Context())
	if err != nil {
		h.internalError(w, "Listing reservations failed", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope(all))
}

func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reservation id must be a number")
		return
	}

	found, err := h.repo.FindByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.internalError(w, "Loading reservation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (h *ReservationHandler) SearchByName(w http.ResponseWriter, r *http.Request) {
	found, err := h.repo.FindByName(r.Context(), r.URL.Query().Get("rn"))
	if err != nil {
		h.internalError(w, "Searching reservations failed", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope(found))
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed reservation payload")
		return
	}

	name := req.ReservationName
	if name == "" {
		name = req.Name
	}

	saved, err := h.repo.Save(r.Context(), store.Reservation{Name: strings.TrimSpace(name)})
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/reservations/%d", *saved.ID))
	writeJSON(w, http.StatusCreated, saved)
}

func (h *ReservationHandler) Message(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(*h.message.Load()))
}

func Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *ReservationHandler) internalError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
