package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/jo-ticketing/internal/middleware"
	"github.com/iliyamo/jo-ticketing/internal/service"
	"github.com/iliyamo/jo-ticketing/internal/utils"
)

// TicketHandler serves checkout, ticket reads and public verification.
type TicketHandler struct {
	Issuer   *service.TicketIssuer
	Verifier *service.TicketVerifier
	Reader   *service.TicketReader
	URLs     URLs
	Debug    bool
	Logger   *slog.Logger
}

type checkoutReq struct {
	ReservationID flexID `json:"reservation_id"`
}

// Checkout handles POST /v1/checkout: 201 for a fresh ticket, 409 with the
// same ticket on replay.
func (h *TicketHandler) Checkout(c echo.Context) error {
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid_body", "invalid body")
	}
	if req.ReservationID == 0 {
		return fail(c, http.StatusBadRequest, "missing_reservation_id", "reservation_id is required")
	}
	res, err := h.Issuer.Checkout(c.Request().Context(), uint64(req.ReservationID), middleware.UserID(c))
	if err != nil {
		return serviceError(c, h.Logger, err)
	}
	status := http.StatusCreated
	if res.Status == service.StatusAlreadyPaid {
		status = http.StatusConflict
	}
	return c.JSON(status, echo.Map{
		"status": res.Status,
		"ticket": service.ViewCheckout(res, h.URLs.resolver(c)),
	})
}

type ticketResp struct {
	ID            uint64    `json:"id"`
	ReservationID uint64    `json:"reservation_id"`
	QRURL         string    `json:"qr_url"`
	CreatedAt     time.Time `json:"created_at"`
}

// Get handles GET /v1/tickets/:id for the ticket owner.
func (h *TicketHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, http.StatusNotFound, "not_found", "not found")
	}
	t, err := h.Reader.GetMine(c.Request().Context(), id, middleware.UserID(c))
	if err != nil {
		return serviceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, ticketResp{
		ID:            t.ID,
		ReservationID: t.ReservationID,
		QRURL:         h.URLs.resolver(c)(t.QRImage),
		CreatedAt:     t.CreatedAt,
	})
}

// Opaque handles GET /v1/tickets/:id/opaque.  It only answers when the
// server runs with DEBUG; otherwise the route looks absent.
func (h *TicketHandler) Opaque(c echo.Context) error {
	if !h.Debug {
		return fail(c, http.StatusNotFound, "not_found", "not found")
	}
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, http.StatusNotFound, "not_found", "not found")
	}
	t, err := h.Reader.GetMine(c.Request().Context(), id, middleware.UserID(c))
	if err != nil {
		return serviceError(c, h.Logger, err)
	}
	token, err := h.Issuer.IssueToken(t)
	if err != nil {
		return serviceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token": token, "uri": utils.TicketURI(token)})
}

// MyTickets handles GET /v1/my-tickets.
func (h *TicketHandler) MyTickets(c echo.Context) error {
	list, err := h.Reader.ListMine(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return serviceError(c, h.Logger, err)
	}
	items := service.ViewList(list, h.URLs.resolver(c))
	return c.JSON(http.StatusOK, echo.Map{"count": len(items), "results": items})
}

// verifyInput picks the token from a verify body.  "token" wins over "qr".
// present reports whether either field appeared at all.
func verifyInput(body []byte) (raw string, present bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", false
	}
	for _, key := range []string{"token", "qr"} {
		v, ok := fields[key]
		if !ok {
			continue
		}
		present = true
		var s string
		if err := json.Unmarshal(v, &s); err == nil && s != "" {
			return s, true
		}
	}
	return "", present
}

// Verify handles the public POST /v1/verify.  Every verdict is a 200; only
// a body with neither token nor qr is a client error.
func (h *TicketHandler) Verify(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 16<<10))
	if err != nil {
		return c.JSON(http.StatusBadRequest, service.VerifyResult{Reason: service.ReasonMissingToken})
	}
	raw, present := verifyInput(body)
	if !present {
		return c.JSON(http.StatusBadRequest, service.VerifyResult{Reason: service.ReasonMissingToken})
	}
	res := h.Verifier.Verify(c.Request().Context(), raw)
	if !res.Valid {
		h.Logger.Info("verify rejected", "reason", res.Reason, "ip", c.RealIP())
	}
	return c.JSON(http.StatusOK, res)
}
