package model

import "time"

// Ticket is the proof of purchase for exactly one reservation.  Its
// existence is the paid state; there is no separate payment flag.
// TicketKey is never sent to clients.
type Ticket struct {
    ID            uint64
    UserID        uint64
    ReservationID uint64
    TicketKey     string
    QRImage       string // storage-relative path, e.g. tickets/ticket_12.png
    CreatedAt     time.Time
}
