package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iliyamo/jo-ticketing/internal/model"
	"github.com/iliyamo/jo-ticketing/internal/repository"
	"github.com/iliyamo/jo-ticketing/internal/utils"
)

// Verification reason codes.
const (
	ReasonMissingToken     = "missing_token"
	ReasonBadSignature     = "bad_signature"
	ReasonMalformedPayload = "malformed_payload"
	ReasonTicketNotFound   = "ticket_not_found"
	ReasonMismatch         = "mismatch"
	// ReasonLookupFailed is returned when storage could not be queried.
	ReasonLookupFailed = "lookup_failed"
)

// VerifyMeta is what a scanner learns about a valid ticket.
type VerifyMeta struct {
	TicketID      uint64    `json:"ticket_id"`
	ReservationID uint64    `json:"reservation_id"`
	UserID        uint64    `json:"user_id"`
	Client        string    `json:"client"`
	Email         string    `json:"email"`
	Places        uint32    `json:"places"`
	Total         string    `json:"total"`
	CreatedAt     time.Time `json:"created_at"`
}

// VerifyResult is either {valid:true, meta} or {valid:false, reason}.
type VerifyResult struct {
	Valid  bool        `json:"valid"`
	Reason string      `json:"reason,omitempty"`
	Meta   *VerifyMeta `json:"meta,omitempty"`
}

func invalid(reason string) VerifyResult { return VerifyResult{Reason: reason} }

// TicketLookup resolves a ticket by id without ownership scoping.
type TicketLookup interface {
	GetByID(ctx context.Context, ticketID uint64) (*model.Ticket, error)
}

// ReservationLookup resolves a reservation by id without ownership scoping.
type ReservationLookup interface {
	GetByID(ctx context.Context, reservationID uint64) (*model.Reservation, error)
}

// TicketVerifier checks opaque tokens presented by scanners.  It is public:
// every failure is reported as a reason code, never as an error.
type TicketVerifier struct {
	tickets      TicketLookup
	reservations ReservationLookup
	signer       *utils.TicketSigner
	logger       *slog.Logger
}

func NewTicketVerifier(tickets TicketLookup, reservations ReservationLookup, signer *utils.TicketSigner, logger *slog.Logger) *TicketVerifier {
	return &TicketVerifier{tickets: tickets, reservations: reservations, signer: signer, logger: logger}
}

// Verify checks raw, which may be a bare token or a jo://ticket/ URI.
func (v *TicketVerifier) Verify(ctx context.Context, raw string) VerifyResult {
	token := utils.StripTicketURI(raw)
	if token == "" {
		return invalid(ReasonMissingToken)
	}
	claims, err := v.signer.Parse(token)
	if err != nil {
		return invalid(ReasonBadSignature)
	}
	if !claims.Complete() {
		return invalid(ReasonMalformedPayload)
	}

	t, err := v.tickets.GetByID(ctx, claims.TicketID)
	if errors.Is(err, repository.ErrNotFound) {
		return invalid(ReasonTicketNotFound)
	}
	if err != nil {
		v.logger.Error("verify: load ticket", "ticket_id", claims.TicketID, "err", err)
		return invalid(ReasonLookupFailed)
	}
	if t.ReservationID != claims.ReservationID || t.UserID != claims.UserID {
		v.logger.Warn("verify: payload mismatch", "ticket_id", t.ID)
		return invalid(ReasonMismatch)
	}

	res, err := v.reservations.GetByID(ctx, t.ReservationID)
	if errors.Is(err, repository.ErrNotFound) {
		// cascades make this unreachable unless rows were edited by hand
		return invalid(ReasonTicketNotFound)
	}
	if err != nil {
		v.logger.Error("verify: load reservation", "reservation_id", t.ReservationID, "err", err)
		return invalid(ReasonLookupFailed)
	}
	return VerifyResult{
		Valid: true,
		Meta: &VerifyMeta{
			TicketID:      t.ID,
			ReservationID: res.ID,
			UserID:        t.UserID,
			Client:        res.ClientName(),
			Email:         res.ClientEmail,
			Places:        res.Places,
			Total:         res.Total.StringFixed(2),
			CreatedAt:     t.CreatedAt,
		},
	}
}
