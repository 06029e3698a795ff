package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Reservation is a priced cart committed by an authenticated user before
// payment.  It is written once together with its items and never updated.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the reservation.
//  Client*   – contact details typed in at checkout time.
//  Total     – declared total, equal to the sum of item lines.
//  Places    – declared seat count, equal to the sum of quantities.
//  CreatedAt – creation timestamp.
type Reservation struct {
    ID              uint64
    UserID          uint64
    ClientNom       string
    ClientPrenom    string
    ClientEmail     string
    ClientTelephone string
    Total           decimal.Decimal
    Places          uint32
    CreatedAt       time.Time
    Items           []ReservationItem
}

// ClientName is the display name used in ticket summaries ("Prenom Nom").
func (r Reservation) ClientName() string {
    return r.ClientPrenom + " " + r.ClientNom
}

// ReservationItem is a snapshot of an offer as it was when the cart was
// submitted.  OffreID is an opaque identifier, not a foreign key, so later
// catalog edits leave historical reservations untouched.
type ReservationItem struct {
    ID            uint64
    ReservationID uint64
    OffreID       string
    Titre         string
    Prix          decimal.Decimal
    Qty           uint32
}

// LineTotal returns Prix * Qty.
func (it ReservationItem) LineTotal() decimal.Decimal {
    return it.Prix.Mul(decimal.NewFromInt(int64(it.Qty)))
}
