package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/jo-ticketing/internal/model"
)

// TicketRepo stores issued tickets.  The unique key on reservation_id makes
// the database the arbiter of "at most one ticket per reservation".
type TicketRepo struct {
	db *sql.DB
}

func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `id, user_id, reservation_id, ticket_key, qr_image, created_at`

// Create inserts a ticket and fills in its ID and CreatedAt.  When another
// ticket already exists for the reservation (or, astronomically unlikely,
// for the same key) ErrDuplicate is returned.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO tickets (user_id, reservation_id, ticket_key, qr_image) VALUES (?, ?, ?, ?)`,
		t.UserID, t.ReservationID, t.TicketKey, t.QRImage)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return r.db.QueryRowContext(ctx, `SELECT created_at FROM tickets WHERE id = ?`, t.ID).Scan(&t.CreatedAt)
}

// SetQRImage records the storage-relative path of the rendered QR image.
func (r *TicketRepo) SetQRImage(ctx context.Context, ticketID uint64, path string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE tickets SET qr_image = ? WHERE id = ?`, path, ticketID)
	return err
}

// GetByID loads a ticket regardless of owner.
func (r *TicketRepo) GetByID(ctx context.Context, ticketID uint64) (*model.Ticket, error) {
	return scanTicket(r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, ticketID))
}

// GetForUser loads a ticket only if userID owns it.
func (r *TicketRepo) GetForUser(ctx context.Context, ticketID, userID uint64) (*model.Ticket, error) {
	return scanTicket(r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = ? AND user_id = ?`, ticketID, userID))
}

// GetByReservation loads the ticket issued for a reservation, if any.
func (r *TicketRepo) GetByReservation(ctx context.Context, reservationID uint64) (*model.Ticket, error) {
	return scanTicket(r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE reservation_id = ?`, reservationID))
}

// ListByUser returns a user's tickets, most recent first.
func (r *TicketRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Ticket{}
	for rows.Next() {
		var t model.Ticket
		if err := rows.Scan(&t.ID, &t.UserID, &t.ReservationID, &t.TicketKey, &t.QRImage, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTicket(row *sql.Row) (*model.Ticket, error) {
	var t model.Ticket
	err := row.Scan(&t.ID, &t.UserID, &t.ReservationID, &t.TicketKey, &t.QRImage, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
