package shop

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/solveprint/printshop/internal/auth"
	"github.com/solveprint/printshop/internal/dto"
	"github.com/solveprint/printshop/internal/entity"
	"github.com/solveprint/printshop/internal/presentation/http/response"
	service "github.com/solveprint/printshop/internal/service/shop"
	"github.com/solveprint/printshop/pkg/errorbank"
)

// Module wires HTTP shop handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler exposes shop settings over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a shop Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler, a *auth.Authenticator) {
	e.GET("/shop", h.public)
	e.GET("/owner/settings", h.settings, a.Require(auth.RoleOwner))
	e.PUT("/owner/settings", h.update, a.Require(auth.RoleOwner))
}

func (h *Handler) public(c echo.Context) error {
	b := response.New(c)

	settings, err := h.svc.Current(c.Request().Context())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.ShopResponse{Name: settings.ShopName, IsOpen: settings.IsOpen}).Build()
}

func (h *Handler) settings(c echo.Context) error {
	b := response.New(c)

	owner, err := h.ownerID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	settings, err := h.svc.Get(c.Request().Context(), owner)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(settings)).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)

	owner, err := h.ownerID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.ShopSettingsRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	settings, err := h.svc.Update(c.Request().Context(), owner, service.UpdateInput{
		ShopName:      payload.ShopName,
		IsOpen:        payload.IsOpen,
		PrimaryVPA:    payload.PrimaryVPA,
		BackupVPA:     payload.BackupVPA,
		ActiveVPAType: payload.ActiveVPAType,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(settings)).Build()
}

// ownerID returns the configured shop owner when the caller is that owner.
func (h *Handler) ownerID(c echo.Context) (string, error) {
	p, _ := auth.FromContext(c)
	if p.Subject != h.svc.OwnerID() {
		return "", errorbank.Forbidden("token does not belong to this shop's owner")
	}
	return p.Subject, nil
}

func toDTO(s *entity.ShopSettings) dto.ShopSettingsResponse {
	return dto.ShopSettingsResponse{
		OwnerID:       s.OwnerID,
		ShopName:      s.ShopName,
		IsOpen:        s.IsOpen,
		PrimaryVPA:    s.PrimaryVPA,
		BackupVPA:     s.BackupVPA,
		ActiveVPAType: string(s.ActiveVPAType),
		ActiveVPA:     s.ActiveVPA(),
		UpdatedAt:     s.UpdatedAt,
	}
}
