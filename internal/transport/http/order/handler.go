package order

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/solveprint/printshop/internal/auth"
	"github.com/solveprint/printshop/internal/config"
	"github.com/solveprint/printshop/internal/dto"
	"github.com/solveprint/printshop/internal/entity"
	"github.com/solveprint/printshop/internal/lifecycle"
	"github.com/solveprint/printshop/internal/payment"
	"github.com/solveprint/printshop/internal/presentation/http/response"
	service "github.com/solveprint/printshop/internal/service/order"
	"github.com/solveprint/printshop/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/solveprint/printshop/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc       *service.Service
	maxUpload int64
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service, cfg config.Config) *Handler {
	return &Handler{svc: svc, maxUpload: cfg.Shop.MaxUploadBytes}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler, a *auth.Authenticator) {
	e.POST("/quote", h.quote)

	g := e.Group("/orders")
	g.POST("", h.create, a.Require(auth.RoleCustomer))
	g.GET("", h.mine, a.Require(auth.RoleCustomer))
	g.GET("/:id", h.getByID, a.Require(auth.RoleCustomer, auth.RoleOwner))
	g.GET("/:id/payment", h.paymentRequest, a.Require(auth.RoleCustomer))
	g.POST("/:id/payment", h.verifyPayment, a.Require(auth.RoleCustomer))
	g.GET("/:id/file", h.fileLink, a.Require(auth.RoleCustomer, auth.RoleOwner))

	owner := e.Group("/owner", a.Require(auth.RoleOwner))
	owner.GET("/queue", h.queue)
	owner.PATCH("/orders/:id/status", h.setStatus)
	owner.POST("/orders/batch-status", h.batchStatus)
	owner.POST("/orders/:id/confirm-payment", h.confirmPayment)
	owner.POST("/handover", h.handover)
	owner.DELETE("/orders/:id", h.delete)
	owner.GET("/revenue", h.revenue)

	e.GET("/platform/stats", h.stats, a.Require(auth.RoleDeveloper))
}

func principal(c echo.Context) auth.Principal {
	p, _ := auth.FromContext(c)
	return p
}

func (h *Handler) readFile(c echo.Context, field string) (*multipart.FileHeader, []byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, nil, errorbank.BadRequest("multipart field "+field+" is required", errorbank.WithCause(err))
	}
	if h.maxUpload > 0 && fh.Size > h.maxUpload {
		return nil, nil, errorbank.BadRequest("document is too large", errorbank.WithDetail("max_bytes", h.maxUpload))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, errorbank.BadRequest("could not read upload", errorbank.WithCause(err))
	}
	defer f.Close()

	var r io.Reader = f
	if h.maxUpload > 0 {
		r = io.LimitReader(f, h.maxUpload+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errorbank.BadRequest("could not read upload", errorbank.WithCause(err))
	}
	return fh, data, nil
}

func (h *Handler) quote(c echo.Context) error {
	b := response.New(c)

	fh, data, err := h.readFile(c, "file")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.quote")
	defer span.End()

	res, err := h.svc.Quote(ctx, fh.Filename, data)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := dto.QuoteResponse{Pages: res.Pages, Options: make([]dto.QuoteOption, 0, len(res.Options))}
	for _, o := range res.Options {
		out.Options = append(out.Options, dto.QuoteOption{PrintType: string(o.PrintType), SideType: string(o.SideType), Cost: o.Cost})
	}
	return b.WithData(out).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	fh, data, err := h.readFile(c, "file")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create")
	defer span.End()

	order, err := h.svc.Create(ctx, service.CreateInput{
		CustomerID: principal(c).Subject,
		FileName:   fh.Filename,
		Data:       data,
		PrintType:  c.FormValue("print_type"),
		SideType:   c.FormValue("side_type"),
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	return b.WithStatus(http.StatusCreated).WithData(toDTO(order)).Build()
}

func (h *Handler) mine(c echo.Context) error {
	b := response.New(c)

	orders, err := h.svc.Mine(c.Request().Context(), principal(c).Subject)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTOs(orders)).WithMeta("count", len(orders)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)
	id := c.Param("id")

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, principal(c), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) paymentRequest(c echo.Context) error {
	b := response.New(c)

	req, err := h.svc.PaymentRequest(c.Request().Context(), principal(c).Subject, c.Param("id"))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.PaymentRequestResponse{
		OrderID: req.OrderID,
		Amount:  req.Amount,
		VPA:     req.VPA,
		Payee:   req.Payee,
		UPILink: req.Link,
	}).Build()
}

func (h *Handler) verifyPayment(c echo.Context) error {
	b := response.New(c)
	id := c.Param("id")

	fh, data, err := h.readFile(c, "screenshot")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.verifyPayment", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := h.svc.VerifyPayment(ctx, principal(c).Subject, id, payment.Proof{
		Data:     data,
		MimeType: fh.Header.Get(echo.HeaderContentType),
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) fileLink(c echo.Context) error {
	b := response.New(c)

	url, expires, err := h.svc.DownloadURL(c.Request().Context(), principal(c), c.Param("id"))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FileLinkResponse{URL: url, ExpiresAt: expires}).Build()
}

func (h *Handler) queue(c echo.Context) error {
	b := response.New(c)

	snap, err := h.svc.Queue(c.Request().Context())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.QueueResponse{
		Orders:  toDTOs(snap.Orders),
		Counts:  countsDTO(snap.Counts),
		Version: snap.Version,
	}).Build()
}

func (h *Handler) setStatus(c echo.Context) error {
	b := response.New(c)
	id := c.Param("id")

	var payload dto.StatusRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.Status == "" {
		return b.WithError(errorbank.BadRequest("status is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.setStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.target_status", payload.Status),
	))
	defer span.End()

	order, err := h.svc.SetStatus(ctx, id, payload.Status)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) batchStatus(c echo.Context) error {
	b := response.New(c)

	var payload dto.BatchStatusRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.Status == "" {
		return b.WithError(errorbank.BadRequest("status is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.batchStatus", trace.WithAttributes(
		attribute.Int("orders.count", len(payload.IDs)),
	))
	defer span.End()

	orders, err := h.svc.BatchSetStatus(ctx, payload.IDs, payload.Status)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTOs(orders)).WithMeta("updated", len(orders)).Build()
}

func (h *Handler) confirmPayment(c echo.Context) error {
	b := response.New(c)

	var payload dto.ConfirmPaymentRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	order, err := h.svc.ConfirmPaymentManually(c.Request().Context(), principal(c).Subject, c.Param("id"), payload.UTR)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) handover(c echo.Context) error {
	b := response.New(c)

	var payload dto.HandoverRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.handover")
	defer span.End()

	order, err := h.svc.Handover(ctx, payload.Code)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := response.New(c)
	id := c.Param("id")

	force := false
	if raw := c.QueryParam("force"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return b.WithError(errorbank.BadRequest("force must be a boolean", errorbank.WithCause(err))).Build()
		}
		force = v
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.delete", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	if err := h.svc.Delete(ctx, id, force); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]string{"id": id}).WithMeta("deleted", true).Build()
}

func (h *Handler) revenue(c echo.Context) error {
	b := response.New(c)
	ctx := c.Request().Context()

	var (
		rev service.Revenue
		err error
	)
	if day := c.QueryParam("day"); day != "" {
		rev, err = h.svc.RevenueOn(ctx, day)
	} else {
		rev, err = h.svc.RevenueToday(ctx)
	}
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.RevenueResponse{
		Day:            rev.Day,
		Live:           rev.Live,
		Archived:       rev.Archived,
		ArchivedOrders: rev.ArchivedOrders,
		Total:          rev.Total(),
	}).Build()
}

func (h *Handler) stats(c echo.Context) error {
	b := response.New(c)

	stats, err := h.svc.Totals(c.Request().Context())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.PlatformStatsResponse{
		Orders:      stats.Totals.Orders,
		PaidRevenue: stats.Totals.PaidRevenue,
		ByStatus:    countsDTO(stats.Totals.ByStatus),
		Recent:      toDTOs(stats.Recent),
	}).Build()
}

func countsDTO(counts lifecycle.Counts) map[string]int {
	out := make(map[string]int, len(counts))
	for s, n := range counts {
		out[string(s)] = n
	}
	return out
}

func toDTOs(orders []entity.Order) []dto.OrderResponse {
	out := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toDTO(&orders[i]))
	}
	return out
}

func toDTO(order *entity.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:            order.ID,
		PickupCode:    order.PickupCode,
		CustomerID:    order.CustomerID,
		FileName:      order.FileName,
		TotalPages:    order.TotalPages,
		PrintType:     string(order.PrintType),
		SideType:      string(order.SideType),
		EstimatedCost: order.EstimatedCost,
		PaymentStatus: string(order.PaymentStatus),
		Status:        string(order.Status),
		UTRID:         order.UTRID,
		VerifiedBy:    order.VerifiedBy,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
}
