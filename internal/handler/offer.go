package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/jo-ticketing/internal/service"
)

// OfferHandler serves the public catalog and the admin offer CRUD.
type OfferHandler struct {
	Svc *service.CatalogService
	// Purge drops cached public listings after a write.  Optional.
	Purge  func(ctx context.Context) error
	Logger *slog.Logger
}

type offerReq struct {
	Name        string          `json:"name" validate:"required,max=120"`
	Slug        string          `json:"slug" validate:"max=140"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Persons     uint16          `json:"persons" validate:"max=20"`
	IsActive    *bool           `json:"is_active"`
	SortOrder   uint32          `json:"sort_order"`
	Category    string          `json:"category" validate:"omitempty,oneof=solo duo famille"`
	Titre       string          `json:"titre" validate:"max=120"`
	BtnLabel    string          `json:"btnLabel" validate:"max=60"`
	Alt         string          `json:"alt" validate:"max=160"`
	ImagePath   string          `json:"image_path" validate:"max=255"`
}

func (r offerReq) input() service.OfferInput {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return service.OfferInput{
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		Price:       r.Price,
		Persons:     r.Persons,
		IsActive:    active,
		SortOrder:   r.SortOrder,
		Category:    r.Category,
		Titre:       r.Titre,
		BtnLabel:    r.BtnLabel,
		Alt:         r.Alt,
		ImagePath:   r.ImagePath,
	}
}

// List handles GET /v1/offers (active only).
func (h *OfferHandler) List(c echo.Context) error { return h.list(c, false) }

// AdminList handles GET /v1/admin/offers (everything).
func (h *OfferHandler) AdminList(c echo.Context) error { return h.list(c, true) }

func (h *OfferHandler) list(c echo.Context, all bool) error {
	offers, err := h.Svc.List(c.Request().Context(), all)
	if err != nil {
		return serviceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(offers), "results": offers})
}

// Get handles GET /v1/offers/:id.
func (h *OfferHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, http.StatusNotFound, "not_found", "not found")
	}
	o, err := h.Svc.Get(c.Request().Context(), id, false)
	if err != nil {
		return serviceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, o)
}

// Create handles POST /v1/admin/offers.
func (h *OfferHandler) Create(c echo.Context) error {
	var req offerReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	o, err := h.Svc.Create(c.Request().Context(), req.input())
	if err != nil {
		return serviceError(c, h.Logger, err)
	}
	h.purge(c)
	return c.JSON(http.StatusCreated, o)
}

// Update handles PUT /v1/admin/offers/:id.  All fields are replaced.
func (h *OfferHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, http.StatusNotFound, "not_found", "not found")
	}
	var req offerReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	o, err := h.Svc.Update(c.Request().Context(), id, req.input())
	if err != nil {
		return serviceError(c, h.Logger, err)
	}
	h.purge(c)
	return c.JSON(http.StatusOK, o)
}

// Delete handles DELETE /v1/admin/offers/:id.
func (h *OfferHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return fail(c, http.StatusNotFound, "not_found", "not found")
	}
	if err := h.Svc.Delete(c.Request().Context(), id); err != nil {
		return serviceError(c, h.Logger, err)
	}
	h.purge(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *OfferHandler) purge(c echo.Context) {
	if h.Purge == nil {
		return
	}
	if err := h.Purge(c.Request().Context()); err != nil {
		h.Logger.Warn("offers cache purge failed", "err", err)
	}
}
