package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/jo-ticketing/internal/media"
	"github.com/iliyamo/jo-ticketing/internal/model"
	"github.com/iliyamo/jo-ticketing/internal/queue"
	"github.com/iliyamo/jo-ticketing/internal/repository"
	"github.com/iliyamo/jo-ticketing/internal/utils"
)

// Checkout outcomes.
const (
	StatusPaid        = "paid"
	StatusAlreadyPaid = "already_paid"
)

// ReservationReader loads a reservation scoped to its owner.
type ReservationReader interface {
	GetForUser(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error)
}

// TicketWriter is the ticket ledger as seen by checkout.  Create must return
// repository.ErrDuplicate when the reservation already has a ticket.
type TicketWriter interface {
	Create(ctx context.Context, t *model.Ticket) error
	GetByReservation(ctx context.Context, reservationID uint64) (*model.Ticket, error)
	SetQRImage(ctx context.Context, ticketID uint64, path string) error
}

// AccountKeySource returns the secret account key of a user, or "" when none
// was provisioned.
type AccountKeySource interface {
	AccountKey(ctx context.Context, userID uint64) (string, error)
}

// ArtifactStore saves rendered images under a storage-relative path.
type ArtifactStore interface {
	Save(rel string, data []byte) (string, error)
}

// TicketEvents receives fresh-issue notifications.
type TicketEvents interface {
	PublishTicketIssued(ctx context.Context, ev queue.TicketIssuedEvent) error
}

// CheckoutResult is the outcome of a checkout call.  Ticket is set for both
// statuses.
type CheckoutResult struct {
	Status      string
	Ticket      *model.Ticket
	Reservation *model.Reservation
}

// TicketIssuer turns a reservation into exactly one paid ticket.
type TicketIssuer struct {
	reservations ReservationReader
	tickets      TicketWriter
	keys         AccountKeySource
	signer       *utils.TicketSigner
	artifacts    ArtifactStore
	events       TicketEvents
	logger       *slog.Logger
}

func NewTicketIssuer(reservations ReservationReader, tickets TicketWriter, keys AccountKeySource,
	signer *utils.TicketSigner, artifacts ArtifactStore, events TicketEvents, logger *slog.Logger) *TicketIssuer {
	return &TicketIssuer{
		reservations: reservations,
		tickets:      tickets,
		keys:         keys,
		signer:       signer,
		artifacts:    artifacts,
		events:       events,
		logger:       logger,
	}
}

// Checkout issues the ticket for reservationID on behalf of callerID.
//
// A reservation that already has a ticket yields StatusAlreadyPaid with that
// ticket.  Two concurrent calls that both pass the existence check are
// serialised by the unique index on tickets.reservation_id: the losing insert
// comes back as ErrDuplicate and is answered as already paid too.
//
// Once the ticket row exists the call succeeds.  QR rendering and event
// publishing failures are logged and leave the ticket without an image.
func (s *TicketIssuer) Checkout(ctx context.Context, reservationID, callerID uint64) (CheckoutResult, error) {
	if callerID == 0 {
		return CheckoutResult{}, ErrUnauthenticated
	}
	res, err := s.reservations.GetForUser(ctx, reservationID, callerID)
	if errors.Is(err, repository.ErrNotFound) {
		return CheckoutResult{}, ErrNotFound
	}
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("load reservation: %w", err)
	}

	existing, err := s.tickets.GetByReservation(ctx, res.ID)
	switch {
	case err == nil:
		return CheckoutResult{Status: StatusAlreadyPaid, Ticket: existing, Reservation: res}, nil
	case !errors.Is(err, repository.ErrNotFound):
		return CheckoutResult{}, fmt.Errorf("lookup ticket: %w", err)
	}

	accountKey, err := s.keys.AccountKey(ctx, callerID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return CheckoutResult{}, fmt.Errorf("load account key: %w", err)
	}
	if accountKey == "" {
		return CheckoutResult{}, ErrMissingAccountKey
	}
	ticketKey, err := utils.NewTicketKey(accountKey)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("derive ticket key: %w", err)
	}

	t := &model.Ticket{UserID: callerID, ReservationID: res.ID, TicketKey: ticketKey}
	if err := s.tickets.Create(ctx, t); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return CheckoutResult{}, fmt.Errorf("create ticket: %w", err)
		}
		winner, lerr := s.tickets.GetByReservation(ctx, res.ID)
		if lerr != nil {
			return CheckoutResult{}, fmt.Errorf("reload ticket after conflict: %w", lerr)
		}
		s.logger.Info("checkout lost race", "reservation_id", res.ID, "ticket_id", winner.ID)
		return CheckoutResult{Status: StatusAlreadyPaid, Ticket: winner, Reservation: res}, nil
	}

	s.renderQR(ctx, t)
	s.publishIssued(ctx, t, res)
	s.logger.Info("ticket issued", "ticket_id", t.ID, "reservation_id", res.ID, "user_id", callerID)
	return CheckoutResult{Status: StatusPaid, Ticket: t, Reservation: res}, nil
}

// IssueToken returns the signed opaque token for t.  The token covers the
// ticket, reservation and user ids, never the ticket key.
func (s *TicketIssuer) IssueToken(t *model.Ticket) (string, error) {
	return s.signer.Sign(t.ID, t.ReservationID, t.UserID)
}

func (s *TicketIssuer) renderQR(ctx context.Context, t *model.Ticket) {
	token, err := s.IssueToken(t)
	if err != nil {
		s.logger.Error("sign ticket token", "ticket_id", t.ID, "err", err)
		return
	}
	png, err := utils.RenderTicketQR(token)
	if err != nil {
		s.logger.Warn("render ticket qr", "ticket_id", t.ID, "err", err)
		return
	}
	rel, err := s.artifacts.Save(media.TicketQRPath(t.ID), png)
	if err != nil {
		s.logger.Warn("store ticket qr", "ticket_id", t.ID, "err", err)
		return
	}
	if err := s.tickets.SetQRImage(ctx, t.ID, rel); err != nil {
		s.logger.Warn("record ticket qr", "ticket_id", t.ID, "err", err)
		return
	}
	t.QRImage = rel
}

func (s *TicketIssuer) publishIssued(ctx context.Context, t *model.Ticket, res *model.Reservation) {
	if s.events == nil {
		return
	}
	ev := queue.TicketIssuedEvent{
		TicketID:      t.ID,
		ReservationID: res.ID,
		UserID:        t.UserID,
		Places:        res.Places,
		Total:         res.Total.StringFixed(2),
		IssuedAt:      t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if err := s.events.PublishTicketIssued(ctx, ev); err != nil {
		s.logger.Warn("publish ticket issued", "ticket_id", t.ID, "err", err)
	}
}
