package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/jo-ticketing/internal/middleware"
	"github.com/iliyamo/jo-ticketing/internal/model"
	"github.com/iliyamo/jo-ticketing/internal/service"
)

// ReservationHandler exposes the reservation ledger.
type ReservationHandler struct {
	Svc    *service.ReservationService
	Logger *slog.Logger
}

func NewReservationHandler(svc *service.ReservationService, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{Svc: svc, Logger: logger}
}

type clientDTO struct {
	Nom       string `json:"nom" validate:"required,max=100"`
	Prenom    string `json:"prenom" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Telephone string `json:"telephone" validate:"max=30"`
}

type cartLineDTO struct {
	ID    flexString      `json:"id" validate:"required,max=64"`
	Titre string          `json:"titre" validate:"max=200"`
	Prix  decimal.Decimal `json:"prix"`
	Qty   uint32          `json:"qty" validate:"min=1"`
}

type createReservationReq struct {
	Client clientDTO       `json:"client"`
	Panier []cartLineDTO   `json:"panier" validate:"required,min=1,dive"`
	Total  decimal.Decimal `json:"total"`
	Places uint32          `json:"places" validate:"min=1"`
}

type reservationResp struct {
	ID        uint64        `json:"id"`
	Client    clientDTO     `json:"client"`
	Panier    []cartLineOut `json:"panier"`
	Total     string        `json:"total"`
	Places    uint32        `json:"places"`
	CreatedAt time.Time     `json:"created_at"`
}

type cartLineOut struct {
	ID    string `json:"id"`
	Titre string `json:"titre"`
	Prix  string `json:"prix"`
	Qty   uint32 `json:"qty"`
}

// Create handles POST /v1/reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	var req createReservationReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	if req.Total.IsNegative() {
		return fail(c, http.StatusBadRequest, "validation_failed", "total: must not be negative")
	}
	in := service.NewReservation{
		Client: service.Client{
			Nom:       req.Client.Nom,
			Prenom:    req.Client.Prenom,
			Email:     req.Client.Email,
			Telephone: req.Client.Telephone,
		},
		Total:  req.Total,
		Places: req.Places,
		Cart:   make([]service.CartLine, 0, len(req.Panier)),
	}
	for _, l := range req.Panier {
		if l.Prix.IsNegative() {
			return fail(c, http.StatusBadRequest, "validation_failed", "prix: must not be negative")
		}
		in.Cart = append(in.Cart, service.CartLine{OfferID: string(l.ID), Title: l.Titre, UnitPrice: l.Prix, Qty: l.Qty})
	}

	res, err := h.Svc.Create(c.Request().Context(), middleware.UserID(c), in)
	if err != nil {
		return serviceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"reservation_id": res.ID})
}

// Get handles GET /v1/reservations/:id.  Reservations of other users are
// reported as 404.
func (h *ReservationHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, http.StatusNotFound, "not_found", "not found")
	}
	res, err := h.Svc.Get(c.Request().Context(), id, middleware.UserID(c))
	if err != nil {
		return serviceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, reservationView(res))
}

func reservationView(res *model.Reservation) reservationResp {
	out := reservationResp{
		ID: res.ID,
		Client: clientDTO{
			Nom:       res.ClientNom,
			Prenom:    res.ClientPrenom,
			Email:     res.ClientEmail,
			Telephone: res.ClientTelephone,
		},
		Panier:    make([]cartLineOut, 0, len(res.Items)),
		Total:     res.Total.StringFixed(2),
		Places:    res.Places,
		CreatedAt: res.CreatedAt,
	}
	for _, it := range res.Items {
		out.Panier = append(out.Panier, cartLineOut{ID: it.OffreID, Titre: it.Titre, Prix: it.Prix.StringFixed(2), Qty: it.Qty})
	}
	return out
}
