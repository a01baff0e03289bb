package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pkzinx/dlux-booking/internal/domain"
	"github.com/pkzinx/dlux-booking/internal/panel"
)

type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateConfirmed  State = "confirmed"
	StateFailed     State = "failed"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// ErrSubmitting rejects a submit while another one is in flight.
// Re-entrant submits are refused, never queued.
var ErrSubmitting = errors.New("booking: submission already in flight")

// PanelAPI is the slice of the panel client the workflow needs.
type PanelAPI interface {
	CreateAppointment(ctx context.Context, in panel.CreateAppointmentInput) (string, error)
	CancelAppointment(ctx context.Context, id string) error
	RegisterPush(ctx context.Context, appointmentID, deviceToken string) error
}

// ReservationCache receives confirmed bookings and successful cancels.
type ReservationCache interface {
	Add(ctx context.Context, r domain.Reservation) domain.Reservation
	Remove(ctx context.Context, remoteID string)
}

// Workflow drives one submission at a time through
// idle -> submitting -> confirmed | failed. Confirmed and failed are
// terminal per attempt; the next submit starts a new one. Once the
// remote call is issued there is no cancelling the attempt, only waiting
// for the outcome.
type Workflow struct {
	panel PanelAPI
	cache ReservationCache
	log   *slog.Logger

	mu     sync.Mutex
	state  State
	reason string
}

func NewWorkflow(panelAPI PanelAPI, cache ReservationCache, log *slog.Logger) *Workflow {
	if log == nil {
		log = slog.Default()
	}
	return &Workflow{
		panel: panelAPI,
		cache: cache,
		log:   log.With(slog.String("component", "booking")),
		state: StateIdle,
	}
}

type SubmitInput struct {
	BarberName   string
	ClientName   string
	ClientPhone  string
	ServiceTitle string
	Date         time.Time
	Time         domain.TimeOfDay
	Notes        string
	DeviceToken  string
}

// Submit books the appointment with the panel. On success the resulting
// reservation, with the panel-assigned id and an end time derived from
// the service duration, lands in the cache, and push registration is
// attempted best-effort. On failure nothing is cached.
func (w *Workflow) Submit(ctx context.Context, in SubmitInput) (domain.Reservation, error) {
	if err := validateSubmit(in); err != nil {
		return domain.Reservation{}, err
	}

	w.mu.Lock()
	if w.state == StateSubmitting {
		w.mu.Unlock()
		return domain.Reservation{}, ErrSubmitting
	}
	w.state = StateSubmitting
	w.reason = ""
	w.mu.Unlock()

	start := in.Time.On(in.Date)
	end := start.Add(time.Duration(domain.ServiceDuration(in.ServiceTitle)) * time.Minute)

	notes := strings.TrimSpace(in.Notes)
	if notes == "" {
		notes = "Agendado via site - " + in.ServiceTitle
	}

	id, err := w.panel.CreateAppointment(ctx, panel.CreateAppointmentInput{
		BarberName:   in.BarberName,
		ClientName:   in.ClientName,
		ClientPhone:  in.ClientPhone,
		ServiceTitle: in.ServiceTitle,
		StartTime:    start,
		EndTime:      end,
		Notes:        notes,
	})
	if err != nil {
		w.fail(err)
		return domain.Reservation{}, err
	}

	res := w.cache.Add(ctx, domain.Reservation{
		RemoteID:     id,
		ServiceTitle: in.ServiceTitle,
		BarberName:   in.BarberName,
		ClientName:   in.ClientName,
		StartTime:    start,
		EndTime:      end,
	})

	if in.DeviceToken != "" && id != "" {
		if err := w.panel.RegisterPush(ctx, id, in.DeviceToken); err != nil {
			// Push is a courtesy; the booking stands regardless.
			w.log.Warn("push registration failed", slog.String("id", id), slog.Any("err", err))
		}
	}

	w.mu.Lock()
	w.state = StateConfirmed
	w.mu.Unlock()

	w.log.Info("appointment confirmed",
		slog.String("id", id),
		slog.String("barber", in.BarberName),
		slog.Time("start", start),
	)
	return res, nil
}

// Cancel voids a confirmed reservation with the panel, then drops it
// from the cache. The local entry stays put when the remote cancel
// fails; there is no optimistic removal.
func (w *Workflow) Cancel(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return validationError("reservation id is required")
	}
	if err := w.panel.CancelAppointment(ctx, id); err != nil {
		w.log.Warn("cancellation failed", slog.String("id", id), slog.Any("err", err))
		return err
	}
	w.cache.Remove(ctx, id)
	w.log.Info("appointment cancelled", slog.String("id", id))
	return nil
}

// State returns the current submission state and, when failed, the
// user-displayable reason.
func (w *Workflow) State() (State, string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.reason
}

func (w *Workflow) fail(err error) {
	reason := "Falha ao agendar"
	var remote *panel.RemoteError
	if errors.As(err, &remote) && remote.Detail != "" {
		reason = remote.Detail
	}

	w.mu.Lock()
	w.state = StateFailed
	w.reason = reason
	w.mu.Unlock()

	w.log.Warn("appointment submission failed", slog.String("reason", reason), slog.Any("err", err))
}

func validateSubmit(in SubmitInput) error {
	if strings.TrimSpace(in.BarberName) == "" {
		return validationError("barber is required")
	}
	if strings.TrimSpace(in.ClientName) == "" {
		return validationError("client name is required")
	}
	if strings.TrimSpace(in.ClientPhone) == "" {
		return validationError("client phone is required")
	}
	if strings.TrimSpace(in.ServiceTitle) == "" {
		return validationError("service is required")
	}
	if in.Date.IsZero() {
		return validationError("date is required")
	}
	if !domain.IsBookableDay(in.Date) {
		return validationError("selected day is not bookable")
	}
	if in.Time.Hour < domain.OpeningHour || in.Time.Hour > domain.ClosingHour ||
		in.Time.Minute%domain.SlotStepMinutes != 0 ||
		(in.Time.Hour == domain.ClosingHour && in.Time.Minute > domain.ClosingMinute) {
		return validationError("time must be a bookable slot")
	}
	return nil
}
