// Package service holds the ticketing core: the reservation ledger, the
// checkout state machine, the public verifier, the owner-scoped ticket
// reader and the offer catalog.  Handlers translate the sentinel errors
// below into HTTP responses.
package service

import "errors"

var (
    // ErrUnauthenticated means no caller identity was supplied.
    ErrUnauthenticated = errors.New("authentication required")
    // ErrNotFound covers both absent resources and resources owned by
    // someone else.
    ErrNotFound = errors.New("not found")
    // ErrInconsistentCart means the declared total or place count does
    // not match the cart lines.
    ErrInconsistentCart = errors.New("inconsistent cart")
    // ErrMissingAccountKey means the purchasing account was never given an
    // account key.  This is a provisioning defect, not a checkout outcome.
    ErrMissingAccountKey = errors.New("account key missing for this user")
    // ErrInvalidOffer is returned for catalog input that fails validation.
    ErrInvalidOffer = errors.New("invalid offer")
    // ErrOfferExists is returned when an offer name or slug is taken.
    ErrOfferExists = errors.New("offer already exists")
)
