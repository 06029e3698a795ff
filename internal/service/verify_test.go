package service

import (
	"context"
	"testing"

	"github.com/iliyamo/jo-ticketing/internal/model"
	"github.com/iliyamo/jo-ticketing/internal/utils"
)

func TestVerifyReasons(t *testing.T) {
	f := newCheckoutFixture(t)
	res := f.reserve(t, 7)
	r, err := f.issuer.Checkout(context.Background(), res.ID, 7)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	good, _ := f.signer.Sign(r.Ticket.ID, res.ID, 7)
	unknown, _ := f.signer.Sign(999, res.ID, 7)
	otherRes, _ := f.signer.Sign(r.Ticket.ID, res.ID+1, 7)
	otherUser, _ := f.signer.Sign(r.Ticket.ID, res.ID, 8)
	noTicket, _ := f.signer.Sign(0, res.ID, 7)
	foreign, _ := utils.NewTicketSigner("test-secret", "password-reset").Sign(r.Ticket.ID, res.ID, 7)

	cases := []struct {
		name   string
		input  string
		valid  bool
		reason string
	}{
		{"bare token", good, true, ""},
		{"uri form", utils.TicketURI(good), true, ""},
		{"padded uri", "  " + utils.TicketURI(good) + "\n", true, ""},
		{"empty", "", false, ReasonMissingToken},
		{"prefix only", utils.TicketURIPrefix, false, ReasonMissingToken},
		{"garbage", "not-a-token", false, ReasonBadSignature},
		{"tampered", good[:len(good)-2] + "xx", false, ReasonBadSignature},
		{"other salt", foreign, false, ReasonBadSignature},
		{"zero ticket id", noTicket, false, ReasonMalformedPayload},
		{"unknown ticket", unknown, false, ReasonTicketNotFound},
		{"reservation mismatch", otherRes, false, ReasonMismatch},
		{"user mismatch", otherUser, false, ReasonMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := f.verifier.Verify(context.Background(), tc.input)
			if got.Valid != tc.valid || got.Reason != tc.reason {
				t.Fatalf("Verify = %+v, want valid=%v reason=%q", got, tc.valid, tc.reason)
			}
			if !got.Valid && got.Meta != nil {
				t.Fatal("invalid results must not disclose metadata")
			}
		})
	}
}

type failingTickets struct{}

func (failingTickets) GetByID(context.Context, uint64) (*model.Ticket, error) { return nil, errBoom }

func TestVerifyStorageFailureIsAReason(t *testing.T) {
	signer := utils.NewTicketSigner("s", "ticket")
	v := NewTicketVerifier(failingTickets{}, newMemReservations(), signer, discardLogger())
	tok, _ := signer.Sign(1, 2, 3)
	if got := v.Verify(context.Background(), tok); got.Valid || got.Reason != ReasonLookupFailed {
		t.Fatalf("Verify = %+v", got)
	}
}
