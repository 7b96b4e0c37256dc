package file

import (
	"mime"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/solveprint/printshop/internal/presentation/http/response"
	service "github.com/solveprint/printshop/internal/service/order"
	"github.com/solveprint/printshop/pkg/errorbank"
)

// Module wires the signed download endpoint.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler serves documents behind signed links.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a file Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/files", h.download)
}

func (h *Handler) download(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return response.New(c).WithError(errorbank.BadRequest("token is required")).Build()
	}

	rc, name, err := h.svc.OpenFile(c.Request().Context(), token)
	if err != nil {
		return response.New(c).WithError(err).Build()
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	return c.Stream(http.StatusOK, contentType, rc)
}
