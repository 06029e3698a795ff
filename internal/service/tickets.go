package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/jo-ticketing/internal/model"
	"github.com/iliyamo/jo-ticketing/internal/repository"
)

// TicketOwnerStore reads tickets scoped to their owner.
type TicketOwnerStore interface {
	GetForUser(ctx context.Context, ticketID, userID uint64) (*model.Ticket, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Ticket, error)
}

// TicketReader serves the caller's own tickets.
type TicketReader struct {
	tickets TicketOwnerStore
}

func NewTicketReader(tickets TicketOwnerStore) *TicketReader {
	return &TicketReader{tickets: tickets}
}

// ListMine returns the caller's tickets, newest first.
func (r *TicketReader) ListMine(ctx context.Context, callerID uint64) ([]model.Ticket, error) {
	if callerID == 0 {
		return nil, ErrUnauthenticated
	}
	list, err := r.tickets.ListByUser(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return list, nil
}

// GetMine returns one ticket if the caller owns it, else ErrNotFound.
func (r *TicketReader) GetMine(ctx context.Context, ticketID, callerID uint64) (*model.Ticket, error) {
	if callerID == 0 {
		return nil, ErrUnauthenticated
	}
	t, err := r.tickets.GetForUser(ctx, ticketID, callerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load ticket: %w", err)
	}
	return t, nil
}

// Summary is the human part of a checkout projection.
type Summary struct {
	Client string `json:"client"`
	Email  string `json:"email"`
	Total  string `json:"total"`
	Places uint32 `json:"places"`
}

// TicketView is the public projection of a freshly issued or replayed
// ticket.  It never carries the ticket key.
type TicketView struct {
	ID            uint64   `json:"id"`
	ReservationID uint64   `json:"reservation_id"`
	QRURL         string   `json:"qr_url"`
	Summary       *Summary `json:"summary,omitempty"`
}

// TicketListItem is one row of the my-tickets listing.
type TicketListItem struct {
	ID      uint64    `json:"id"`
	QRURL   string    `json:"qr_url"`
	Created time.Time `json:"created"`
}

// ViewCheckout projects a checkout result.  resolve turns a stored media
// reference into an absolute URL.
func ViewCheckout(r CheckoutResult, resolve func(string) string) TicketView {
	v := TicketView{
		ID:            r.Ticket.ID,
		ReservationID: r.Ticket.ReservationID,
		QRURL:         resolve(r.Ticket.QRImage),
	}
	if r.Reservation != nil {
		v.Summary = &Summary{
			Client: r.Reservation.ClientName(),
			Email:  r.Reservation.ClientEmail,
			Total:  r.Reservation.Total.StringFixed(2),
			Places: r.Reservation.Places,
		}
	}
	return v
}

// ViewList projects a ticket listing.
func ViewList(tickets []model.Ticket, resolve func(string) string) []TicketListItem {
	out := make([]TicketListItem, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, TicketListItem{ID: t.ID, QRURL: resolve(t.QRImage), Created: t.CreatedAt})
	}
	return out
}
