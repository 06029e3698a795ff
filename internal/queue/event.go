// Package queue defines message payloads exchanged over the message broker
// and the background subscribers that consume them.
package queue

// Queue names.  Both queues are durable and use the default exchange.
const (
    TicketsIssuedQueue = "tickets.issued"
    OffersChangedQueue = "offers.changed"
)

// TicketIssuedEvent is published after a fresh checkout.  It never carries
// the ticket key or the signed token.
type TicketIssuedEvent struct {
    TicketID      uint64 `json:"ticket_id"`
    ReservationID uint64 `json:"reservation_id"`
    UserID        uint64 `json:"user_id"`
    Places        uint32 `json:"places"`
    Total         string `json:"total"`
    IssuedAt      string `json:"issued_at"`
}

// OfferChangedEvent is published by the catalog on every create, update or
// delete.  Subscribers re-read the catalog rather than trusting the payload.
type OfferChangedEvent struct {
    OfferID   uint64 `json:"offer_id"`
    Reason    string `json:"reason"` // created | updated | deleted
    ChangedAt string `json:"changed_at"`
}
