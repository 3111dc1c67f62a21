package handler

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/servipro/booking-api/internal/core/domain"
	"github.com/servipro/booking-api/internal/core/ports"
)

// WizardHandler exposes the booking wizard to the website.
type WizardHandler struct {
	service ports.WizardService
}

func NewWizardHandler(service ports.WizardService) *WizardHandler {
	return &WizardHandler{service: service}
}

// --- Request / Response types ---

type startWizardRequest struct {
	ServiceID      string `json:"serviceId"`
	ProfessionalID string `json:"professionalId"`
}

type wizardResponse struct {
	ID        string              `json:"id"`
	State     domain.WizardState  `json:"state"`
	Step      int                 `json:"step"`
	Client    domain.ClientDraft  `json:"client"`
	Service   domain.ServiceDraft `json:"service"`
	UserID    string              `json:"userId,omitempty"`
	BookingID string              `json:"bookingId,omitempty"`
	Attempts  int                 `json:"attempts"`
	Error     *errorBody          `json:"error,omitempty"`
	DismissAt *time.Time          `json:"dismissAt,omitempty"`
	Actions   []string            `json:"actions"`
}

// Actions the website may offer in each state.
var wizardActions = map[domain.WizardState][]string{
	domain.StateCollectingClient:  {"edit", "advance", "cancel"},
	domain.StateCollectingService: {"edit", "advance", "retreat", "cancel"},
	domain.StateConfirming:        {"edit", "submit", "retreat", "cancel"},
	domain.StateSubmitting:        {},
	domain.StateSubmitted:         {"cancel"},
	domain.StateFailed:            {"edit", "retry", "cancel"},
	domain.StateClosed:            {},
}

// wizardSteps maps states onto the three screens of the form.
var wizardSteps = map[domain.WizardState]int{
	domain.StateCollectingClient:  1,
	domain.StateCollectingService: 2,
	domain.StateConfirming:        3,
	domain.StateSubmitting:        3,
	domain.StateSubmitted:         3,
	domain.StateFailed:            3,
}

func wizardView(s domain.WizardSnapshot) wizardResponse {
	out := wizardResponse{
		ID:        s.ID,
		State:     s.State,
		Step:      wizardSteps[s.State],
		Client:    s.Client,
		Service:   s.Service,
		UserID:    s.UserID,
		BookingID: s.BookingID,
		Attempts:  s.Attempts,
		Actions:   wizardActions[s.State],
	}
	if out.Actions == nil {
		out.Actions = []string{}
	}
	if s.State == domain.StateFailed && s.ErrorKind != "" {
		out.Error = &errorBody{Kind: s.ErrorKind, Message: PublicMessage(s.ErrorKind)}
	}
	if !s.DismissAt.IsZero() {
		at := s.DismissAt
		out.DismissAt = &at
	}
	return out
}

// reply renders the snapshot, or the error with the snapshot attached when the
// session is known.
func reply(c echo.Context, status int, snap domain.WizardSnapshot, err error) error {
	if err != nil {
		if snap.ID == "" {
			return err
		}
		return &Failure{Err: err, Data: wizardView(snap)}
	}
	return respond(c, status, wizardView(snap))
}

// Start handles POST /v1/wizards.
//
// @Summary      Open a booking wizard
// @Tags         wizard
// @Accept       json
// @Produce      json
// @Param        body  body      startWizardRequest  false  "Optional pre-selected service and professional"
// @Success      201   {object}  envelope
// @Failure      422   {object}  ErrorEnvelope
// @Router       /v1/wizards [post]
func (h *WizardHandler) Start(c echo.Context) error {
	var req startWizardRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	snap, err := h.service.Start(c.Request().Context(), req.ServiceID, req.ProfessionalID)
	return reply(c, http.StatusCreated, snap, err)
}

// Get handles GET /v1/wizards/:id.
//
// @Summary      Current wizard state
// @Tags         wizard
// @Produce      json
// @Param        id   path      string  true  "Wizard id"
// @Success      200  {object}  envelope
// @Failure      404  {object}  ErrorEnvelope
// @Router       /v1/wizards/{id} [get]
func (h *WizardHandler) Get(c echo.Context) error {
	snap, err := h.service.Get(c.Request().Context(), c.Param("id"))
	return reply(c, http.StatusOK, snap, err)
}

// PatchClient handles PATCH /v1/wizards/:id/client with a map of field names to values.
//
// @Summary      Edit client fields
// @Tags         wizard
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "Wizard id"
// @Param        body  body      map[string]string  true  "Field values"
// @Success      200   {object}  envelope
// @Failure      409   {object}  ErrorEnvelope
// @Failure      422   {object}  ErrorEnvelope
// @Router       /v1/wizards/{id}/client [patch]
func (h *WizardHandler) PatchClient(c echo.Context) error {
	fields, err := bindFields(c)
	if err != nil {
		return err
	}
	snap, err := h.service.SetClientFields(c.Request().Context(), c.Param("id"), fields)
	return reply(c, http.StatusOK, snap, err)
}

// PatchService handles PATCH /v1/wizards/:id/service.
//
// @Summary      Edit service fields
// @Tags         wizard
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "Wizard id"
// @Param        body  body      map[string]string  true  "Field values"
// @Success      200   {object}  envelope
// @Failure      409   {object}  ErrorEnvelope
// @Failure      422   {object}  ErrorEnvelope
// @Router       /v1/wizards/{id}/service [patch]
func (h *WizardHandler) PatchService(c echo.Context) error {
	fields, err := bindFields(c)
	if err != nil {
		return err
	}
	snap, err := h.service.SetServiceFields(c.Request().Context(), c.Param("id"), fields)
	return reply(c, http.StatusOK, snap, err)
}

// Advance handles POST /v1/wizards/:id/advance.
//
// @Summary      Move to the next step
// @Tags         wizard
// @Produce      json
// @Param        id   path      string  true  "Wizard id"
// @Success      200  {object}  envelope
// @Failure      409  {object}  ErrorEnvelope
// @Failure      422  {object}  ErrorEnvelope
// @Router       /v1/wizards/{id}/advance [post]
func (h *WizardHandler) Advance(c echo.Context) error {
	snap, err := h.service.Advance(c.Request().Context(), c.Param("id"))
	return reply(c, http.StatusOK, snap, err)
}

// Retreat handles POST /v1/wizards/:id/retreat.
//
// @Summary      Move one step back
// @Tags         wizard
// @Produce      json
// @Param        id   path      string  true  "Wizard id"
// @Success      200  {object}  envelope
// @Failure      409  {object}  ErrorEnvelope
// @Router       /v1/wizards/{id}/retreat [post]
func (h *WizardHandler) Retreat(c echo.Context) error {
	snap, err := h.service.Retreat(c.Request().Context(), c.Param("id"))
	return reply(c, http.StatusOK, snap, err)
}

// Submit handles POST /v1/wizards/:id/submit. A failed submission answers
// with the error status and the failed wizard in data.
//
// @Summary      Submit the booking
// @Tags         wizard
// @Produce      json
// @Param        id   path      string  true  "Wizard id"
// @Success      200  {object}  envelope
// @Failure      409  {object}  ErrorEnvelope
// @Failure      503  {object}  ErrorEnvelope
// @Router       /v1/wizards/{id}/submit [post]
func (h *WizardHandler) Submit(c echo.Context) error {
	snap, err := h.service.Submit(c.Request().Context(), c.Param("id"))
	return reply(c, http.StatusOK, snap, err)
}

// Retry handles POST /v1/wizards/:id/retry.
//
// @Summary      Return a failed wizard to confirmation
// @Tags         wizard
// @Produce      json
// @Param        id   path      string  true  "Wizard id"
// @Success      200  {object}  envelope
// @Failure      409  {object}  ErrorEnvelope
// @Router       /v1/wizards/{id}/retry [post]
func (h *WizardHandler) Retry(c echo.Context) error {
	snap, err := h.service.Retry(c.Request().Context(), c.Param("id"))
	return reply(c, http.StatusOK, snap, err)
}

// Cancel handles DELETE /v1/wizards/:id.
//
// @Summary      Discard the wizard
// @Tags         wizard
// @Param        id   path  string  true  "Wizard id"
// @Success      204
// @Failure      409  {object}  ErrorEnvelope
// @Router       /v1/wizards/{id} [delete]
func (h *WizardHandler) Cancel(c echo.Context) error {
	if err := h.service.Cancel(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// bindFields reads a JSON object of scalars from the body only, stringifying
// numbers and booleans so the drafts keep exactly what was entered.
func bindFields(c echo.Context) (map[string]string, error) {
	var raw map[string]any
	if err := (&echo.DefaultBinder{}).BindBody(c, &raw); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if len(raw) == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "no fields to update")
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make(map[string]string, len(raw))
	var verrs domain.ValidationErrors
	for _, name := range names {
		switch v := raw[name].(type) {
		case nil:
			fields[name] = ""
		case string:
			fields[name] = v
		case float64:
			fields[name] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			fields[name] = strconv.FormatBool(v)
		default:
			verrs = append(verrs, domain.FieldError{Field: name, Reason: "must be a string or a number"})
		}
	}
	if len(verrs) > 0 {
		return nil, verrs
	}
	return fields, nil
}
