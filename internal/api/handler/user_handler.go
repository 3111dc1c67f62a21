package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/servipro/booking-api/internal/core/domain"
	"github.com/servipro/booking-api/internal/core/ports"
)

// UserHandler serves the public registration form.
type UserHandler struct {
	service ports.UserService
}

func NewUserHandler(service ports.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// createUserRequest accepts either a combined name or firstName/lastName.
type createUserRequest struct {
	Email     string `json:"email"     validate:"required"`
	Phone     string `json:"phone"     validate:"required"`
	Name      string `json:"name"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	UserType  string `json:"userType"  validate:"omitempty,oneof=client professional"`
	City      string `json:"city"`
	Address   string `json:"address"`
}

// Create handles POST /v1/users.
//
// @Summary      Register a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      createUserRequest  true  "Registration form"
// @Success      201   {object}  envelope
// @Failure      409   {object}  ErrorEnvelope
// @Failure      422   {object}  ErrorEnvelope
// @Router       /v1/users [post]
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.service.CreateUser(c.Request().Context(), ports.CreateUserInput{
		Email:     req.Email,
		Phone:     req.Phone,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Name:      req.Name,
		Role:      domain.Role(req.UserType),
		City:      req.City,
		Address:   req.Address,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, user)
}
