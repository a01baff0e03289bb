package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkzinx/dlux-booking/internal/domain"
)

// RemoteError is a non-success response from the panel, carrying the
// user-displayable detail message the panel returned.
type RemoteError struct {
	StatusCode int
	Detail     string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("panel: %s (status %d)", e.Detail, e.StatusCode)
}

// Client talks to the barber-panel backend: the authoritative conflict
// oracle and system of record for appointments.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.With(slog.String("component", "panel")),
	}
}

// AvailableSlots asks the panel for the free times of a barber's day.
// The response is already filtered for conflicts and business hours
// server-side; callers re-filter against the local rules regardless.
func (c *Client) AvailableSlots(ctx context.Context, q domain.SlotQuery) ([]domain.TimeOfDay, error) {
	params := url.Values{}
	params.Set("date", q.Date.Format("2006-01-02"))
	params.Set("barberName", strings.TrimSpace(q.BarberName))
	params.Set("durationMinutes", strconv.Itoa(q.DurationMinutes))

	var out struct {
		Slots []string `json:"slots"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/appointments/available-slots/?"+params.Encode(), nil, &out); err != nil {
		return nil, err
	}

	slots := make([]domain.TimeOfDay, 0, len(out.Slots))
	for _, s := range out.Slots {
		t, err := domain.ParseTimeOfDay(s)
		if err != nil {
			c.log.Warn("dropping malformed slot", slog.String("slot", s))
			continue
		}
		slots = append(slots, t)
	}
	return slots, nil
}

type CreateAppointmentInput struct {
	BarberName   string
	ClientName   string
	ClientPhone  string
	ServiceTitle string
	StartTime    time.Time
	EndTime      time.Time
	Notes        string
}

// CreateAppointment books the appointment and returns the id the panel
// assigned to it.
func (c *Client) CreateAppointment(ctx context.Context, in CreateAppointmentInput) (string, error) {
	body := map[string]string{
		"barberName":    in.BarberName,
		"clientName":    in.ClientName,
		"clientPhone":   in.ClientPhone,
		"serviceTitle":  in.ServiceTitle,
		"startDatetime": in.StartTime.Format("2006-01-02T15:04:05"),
		"endDatetime":   in.EndTime.Format("2006-01-02T15:04:05"),
		"notes":         in.Notes,
	}

	var out struct {
		ID json.Number `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/appointments/public/", body, &out); err != nil {
		return "", err
	}
	return out.ID.String(), nil
}

func (c *Client) CancelAppointment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/appointments/cancel/", map[string]string{"id": id}, nil)
}

// RegisterPush subscribes a device token to notifications for one
// appointment. Callers treat failures as best-effort.
func (c *Client) RegisterPush(ctx context.Context, appointmentID, deviceToken string) error {
	path := "/api/appointments/" + url.PathEscape(appointmentID) + "/subscribe/"
	return c.do(ctx, http.MethodPost, path, map[string]string{"token": deviceToken}, nil)
}

// ListBarbers fetches the barbers offered for selection.
func (c *Client) ListBarbers(ctx context.Context) ([]domain.Barber, error) {
	var out struct {
		Barbers []struct {
			Name     string `json:"name"`
			PhotoRef string `json:"photoRef"`
		} `json:"barbers"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/appointments/barbers/", nil, &out); err != nil {
		return nil, err
	}
	barbers := make([]domain.Barber, 0, len(out.Barbers))
	for _, b := range out.Barbers {
		barbers = append(barbers, domain.Barber{Name: b.Name, PhotoRef: b.PhotoRef})
	}
	return barbers, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		if failure.Detail == "" {
			failure.Detail = http.StatusText(resp.StatusCode)
		}
		return &RemoteError{StatusCode: resp.StatusCode, Detail: failure.Detail}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
