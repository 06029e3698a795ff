package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/jo-ticketing/internal/model"
	"github.com/iliyamo/jo-ticketing/internal/repository"
)

// totalTolerance is the largest accepted gap between the declared total and
// the sum of the cart lines.
var totalTolerance = decimal.RequireFromString("0.01")

// ReservationStore persists reservations atomically with their items.
type ReservationStore interface {
	Create(ctx context.Context, res *model.Reservation) error
	GetForUser(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error)
}

// Client holds the contact fields typed in by the buyer.
type Client struct {
	Nom       string
	Prenom    string
	Email     string
	Telephone string
}

// CartLine is one offer snapshot in a submitted cart.  OfferID is passed
// through opaquely; it is not checked against the live catalog.
type CartLine struct {
	OfferID   string
	Title     string
	UnitPrice decimal.Decimal
	Qty       uint32
}

// NewReservation is the input to ReservationService.Create.
type NewReservation struct {
	Client Client
	Cart   []CartLine
	Total  decimal.Decimal
	Places uint32
}

// ReservationService is the reservation ledger.
type ReservationService struct {
	store  ReservationStore
	logger *slog.Logger
}

func NewReservationService(store ReservationStore, logger *slog.Logger) *ReservationService {
	return &ReservationService{store: store, logger: logger}
}

// CheckCart recomputes the total and place count from the cart lines and
// compares them with the declared values.  The total may differ by at most
// 0.01; the place count must match exactly.
func CheckCart(cart []CartLine, total decimal.Decimal, places uint32) error {
	expected := decimal.Zero
	var expectedPlaces uint64
	for _, l := range cart {
		expected = expected.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Qty))))
		expectedPlaces += uint64(l.Qty)
	}
	if expected.Sub(total).Abs().GreaterThan(totalTolerance) {
		return fmt.Errorf("%w: total %s does not match cart total %s", ErrInconsistentCart, total.StringFixed(2), expected.StringFixed(2))
	}
	if expectedPlaces != uint64(places) {
		return fmt.Errorf("%w: places %d does not match cart quantity %d", ErrInconsistentCart, places, expectedPlaces)
	}
	return nil
}

// Create validates the cart for ownerID and stores the reservation with all
// its lines.  Offer titles and prices are copied as snapshots.
func (s *ReservationService) Create(ctx context.Context, ownerID uint64, in NewReservation) (*model.Reservation, error) {
	if ownerID == 0 {
		return nil, ErrUnauthenticated
	}
	if err := CheckCart(in.Cart, in.Total, in.Places); err != nil {
		return nil, err
	}
	res := &model.Reservation{
		UserID:          ownerID,
		ClientNom:       strings.TrimSpace(in.Client.Nom),
		ClientPrenom:    strings.TrimSpace(in.Client.Prenom),
		ClientEmail:     strings.TrimSpace(in.Client.Email),
		ClientTelephone: strings.TrimSpace(in.Client.Telephone),
		Total:           in.Total.Round(2),
		Places:          in.Places,
		Items:           make([]model.ReservationItem, 0, len(in.Cart)),
	}
	for _, l := range in.Cart {
		res.Items = append(res.Items, model.ReservationItem{
			OffreID: l.OfferID,
			Titre:   l.Title,
			Prix:    l.UnitPrice.Round(2),
			Qty:     l.Qty,
		})
	}
	if err := s.store.Create(ctx, res); err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	s.logger.Info("reservation created", "reservation_id", res.ID, "user_id", ownerID, "places", res.Places, "total", res.Total.StringFixed(2))
	return res, nil
}

// Get returns the reservation only to its owner.  Everyone else gets
// ErrNotFound, never a "forbidden".
func (s *ReservationService) Get(ctx context.Context, reservationID, callerID uint64) (*model.Reservation, error) {
	if callerID == 0 {
		return nil, ErrUnauthenticated
	}
	res, err := s.store.GetForUser(ctx, reservationID, callerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load reservation: %w", err)
	}
	return res, nil
}
