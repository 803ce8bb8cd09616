package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/angeloszaimis/reservations/internal/publisher"
	"github.com/angeloszaimis/reservations/internal/router"
	"github.com/angeloszaimis/reservations/internal/store"
)

const degradedHeader = "X-Degraded"

// hopHeaders are not copied from downstream responses.
var hopHeaders = []string{
	"Connection",
	"Content-Length",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

type Publisher interface {
	Publish(reservation store.Reservation) error
}

type Router interface {
	Route(ctx context.Context, serviceName string, req router.Request) (*router.Response, error)
}

type GatewayHandler struct {
	logger             *slog.Logger
	router             Router
	publisher          Publisher
	reservationService string
}

func NewGatewayHandler(logger *slog.Logger, rt Router, pub Publisher, reservationService string) *GatewayHandler {
	return &GatewayHandler{
		logger:             logger,
		router:             rt,
		publisher:          pub,
		reservationService: reservationService,
	}
}

type reservationRequest struct {
	Name            string `json:"name"`
	ReservationName string `json:"reservationName"`
}

// CreateReservation queues the reservation for the reservation service and
// answers 202 without waiting for delivery.
func (h *GatewayHandler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed reservation payload")
		return
	}

	name := req.Name
	if name == "" {
		name = req.ReservationName
	}

	err := h.publisher.Publish(store.Reservation{Name: strings.TrimSpace(name)})
	switch {
	case errors.Is(err, publisher.ErrQueueFull):
		h.logger.Warn("Reservation rejected, publish queue full", slog.String("name", name))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, publisher.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		writeBadRequest(w, err)
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}

// ReservationNames lists the names of all reservations. When the reservation
// service is unavailable the list is empty and X-Degraded is set.
func (h *GatewayHandler) ReservationNames(w http.ResponseWriter, r *http.Request) {
	res, err := h.router.Route(r.Context(), h.reservationService, router.Request{
		Method: http.MethodGet,
		Path:   "/reservations",
		Header: http.Header{"Accept": []string{"application/json"}},
	})

	switch {
	case errors.Is(err, router.ErrNoHealthyInstance):
		h.writeNames(w, []string{}, true)
		return
	case err != nil:
		if r.Context().Err() != nil {
			return
		}
		h.logger.Error("Listing reservation names failed", slog.Any("error", err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	names, err := decodeNames(res.Body)
	if err != nil {
		h.logger.Error("Malformed reservation listing", slog.Any("error", err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.writeNames(w, names, res.Degraded)
}

func (h *GatewayHandler) writeNames(w http.ResponseWriter, names []string, degraded bool) {
	if degraded {
		w.Header().Set(degradedHeader, "true")
	}
	writeJSON(w, http.StatusOK, names)
}

// PassThrough forwards /{service}/{path...} to an instance of service.
func (h *GatewayHandler) PassThrough(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "request body too large")
		return
	}

	header := r.Header.Clone()
	header.Set("X-Forwarded-For", extractClientIP(r))

	res, err := h.router.Route(r.Context(), service, router.Request{
		Method:   r.Method,
		Path:     "/" + r.PathValue("path"),
		RawQuery: r.URL.RawQuery,
		Header:   header,
		Body:     body,
	})
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		if errors.Is(err, router.ErrNoHealthyInstance) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	for key, values := range res.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	for _, key := range hopHeaders {
		w.Header().Del(key)
	}
	if res.Degraded {
		w.Header().Set(degradedHeader, "true")
	}

	status := res.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(res.Body)
}

type halReservations struct {
	Embedded struct {
		Reservations []store.Reservation `json:"reservations"`
	} `json:"_embedded"`
}

// decodeNames accepts a HAL envelope or a bare array of reservations.
func decodeNames(body []byte) ([]string, error) {
	var reservations []store.Reservation

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(body, &reservations); err != nil {
			return nil, fmt.Errorf("decoding reservation list: %w", err)
		}
	} else {
		var hal halReservations
		if err := json.Unmarshal(body, &hal); err != nil {
			return nil, fmt.Errorf("decoding reservation envelope: %w", err)
		}
		reservations = hal.Embedded.Reservations
	}

	names := make([]string, 0, len(reservations))
	for _, r := range reservations {
		names = append(names, r.Name)
	}
	return names, nil
}
