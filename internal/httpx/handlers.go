package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pkzinx/dlux-booking/internal/domain"
	"github.com/pkzinx/dlux-booking/internal/panel"
	"github.com/pkzinx/dlux-booking/internal/service/availability"
	"github.com/pkzinx/dlux-booking/internal/service/booking"
)

type availabilityService interface {
	Query(ctx context.Context, q domain.SlotQuery) ([]domain.TimeOfDay, error)
}

type bookingService interface {
	Submit(ctx context.Context, in booking.SubmitInput) (domain.Reservation, error)
	Cancel(ctx context.Context, id string) error
}

type reservationCache interface {
	ListActive(ctx context.Context) []domain.Reservation
}

type barberDirectory interface {
	ListBarbers(ctx context.Context) ([]domain.Barber, error)
	RegisterPush(ctx context.Context, appointmentID, deviceToken string) error
}

type Handler struct {
	slots   availabilityService
	booking bookingService
	cache   reservationCache
	panel   barberDirectory
	log     *slog.Logger
}

func NewHandler(slots availabilityService, flow bookingService, cache reservationCache, panelAPI barberDirectory, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		slots:   slots,
		booking: flow,
		cache:   cache,
		panel:   panelAPI,
		log:     log.With(slog.String("component", "httpx")),
	}
}

func (h *Handler) availableSlots(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var day time.Time
	if v := query.Get("date"); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}

	q := domain.SlotQuery{
		Date:       day,
		BarberName: query.Get("barberName"),
	}
	if v := query.Get("durationMinutes"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil || minutes <= 0 {
			writeDetail(w, http.StatusBadRequest, "invalid durationMinutes")
			return
		}
		q.DurationMinutes = minutes
	} else {
		q.DurationMinutes = domain.ServiceDuration(query.Get("serviceTitle"))
	}

	slots, err := h.slots.Query(r.Context(), q)
	if err != nil {
		if errors.Is(err, availability.ErrSuperseded) {
			// A newer query owns the result; this response has nothing
			// to show and is not an error.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.writeUpstreamError(w, err)
		return
	}
	if slots == nil {
		slots = []domain.TimeOfDay{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

type createAppointmentRequest struct {
	BarberName   string `json:"barberName"`
	ClientName   string `json:"clientName"`
	ClientPhone  string `json:"clientPhone"`
	ServiceTitle string `json:"serviceTitle"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Notes        string `json:"notes"`
	DeviceToken  string `json:"deviceToken"`
}

func (h *Handler) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid json")
		return
	}

	day, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	slot, err := domain.ParseTimeOfDay(req.Time)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid time, expected HH:MM")
		return
	}

	res, err := h.booking.Submit(r.Context(), booking.SubmitInput{
		BarberName:   req.BarberName,
		ClientName:   req.ClientName,
		ClientPhone:  req.ClientPhone,
		ServiceTitle: req.ServiceTitle,
		Date:         day,
		Time:         slot,
		Notes:        req.Notes,
		DeviceToken:  req.DeviceToken,
	})
	if err != nil {
		var vErr *booking.ValidationError
		switch {
		case errors.As(err, &vErr):
			writeDetail(w, http.StatusBadRequest, vErr.Error())
		case errors.Is(err, booking.ErrSubmitting):
			writeDetail(w, http.StatusConflict, "another booking is already being submitted")
		default:
			h.writeUpstreamError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.booking.Cancel(r.Context(), req.ID); err != nil {
		var vErr *booking.ValidationError
		if errors.As(err, &vErr) {
			writeDetail(w, http.StatusBadRequest, vErr.Error())
			return
		}
		h.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) subscribePush(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid json")
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" || req.Token == "" {
		writeDetail(w, http.StatusBadRequest, "appointment id and token are required")
		return
	}
	if err := h.panel.RegisterPush(r.Context(), id, req.Token); err != nil {
		h.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) listBarbers(w http.ResponseWriter, r *http.Request) {
	barbers, err := h.panel.ListBarbers(r.Context())
	if err != nil {
		h.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"barbers": barbers})
}

func (h *Handler) listReservations(w http.ResponseWriter, r *http.Request) {
	rows := h.cache.ListActive(r.Context())
	if rows == nil {
		rows = []domain.Reservation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": rows})
}

func (h *Handler) writeUpstreamError(w http.ResponseWriter, err error) {
	var remote *panel.RemoteError
	if errors.As(err, &remote) {
		writeJSON(w, remote.StatusCode, map[string]string{"detail": remote.Detail})
		return
	}
	h.log.Warn("upstream call failed", slog.Any("err", err))
	writeDetail(w, http.StatusBadGateway, "panel unavailable")
}
