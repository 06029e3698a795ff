package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"

    "github.com/iliyamo/jo-ticketing/internal/model"
)

// ReservationRepo stores reservations and their item snapshots.  A
// reservation and its items are always written in one transaction, and
// neither is ever updated afterwards.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, user_id, client_nom, client_prenom, client_email, client_telephone, total, places, created_at`

// Create inserts the reservation header and every item inside a single
// transaction.  On success res.ID, res.CreatedAt and each item's ID and
// ReservationID are populated.  A failure at any step rolls everything
// back, so a reservation is never observable without its items.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    const ins = `INSERT INTO reservations (user_id, client_nom, client_prenom, client_email, client_telephone, total, places)
                 VALUES (?, ?, ?, ?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, ins,
        res.UserID, res.ClientNom, res.ClientPrenom, res.ClientEmail, res.ClientTelephone,
        res.Total.StringFixed(2), res.Places)
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    res.ID = uint64(id)

    if len(res.Items) > 0 {
        var sb strings.Builder
        sb.WriteString(`INSERT INTO reservation_items (reservation_id, offre_id, titre, prix, qty) VALUES `)
        args := make([]interface{}, 0, len(res.Items)*5)
        for i, it := range res.Items {
            if i > 0 {
                sb.WriteString(",")
            }
            sb.WriteString("(?, ?, ?, ?, ?)")
            args = append(args, res.ID, it.OffreID, it.Titre, it.Prix.StringFixed(2), it.Qty)
        }
        if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
            return err
        }
    }

    // read back server defaults inside the transaction
    if err := tx.QueryRowContext(ctx, `SELECT created_at FROM reservations WHERE id = ?`, res.ID).Scan(&res.CreatedAt); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    for i := range res.Items {
        res.Items[i].ReservationID = res.ID
    }
    return nil
}

// GetForUser returns a reservation with its items only when it belongs to
// userID.  Missing and foreign reservations both yield ErrNotFound so the
// caller cannot learn whether the id exists.
func (r *ReservationRepo) GetForUser(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error) {
    row := r.db.QueryRowContext(ctx,
        `SELECT `+reservationColumns+` FROM reservations WHERE id = ? AND user_id = ?`,
        reservationID, userID)
    res, err := scanReservation(row)
    if err != nil {
        return nil, err
    }
    if res.Items, err = r.items(ctx, res.ID); err != nil {
        return nil, err
    }
    return res, nil
}

// GetByID returns a reservation header regardless of owner.  It is used by
// the verifier, which has already authenticated the request by signature.
func (r *ReservationRepo) GetByID(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
    row := r.db.QueryRowContext(ctx,
        `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, reservationID)
    return scanReservation(row)
}

func (r *ReservationRepo) items(ctx context.Context, reservationID uint64) ([]model.ReservationItem, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT id, reservation_id, offre_id, titre, prix, qty FROM reservation_items WHERE reservation_id = ? ORDER BY id`,
        reservationID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.ReservationItem
    for rows.Next() {
        var it model.ReservationItem
        if err := rows.Scan(&it.ID, &it.ReservationID, &it.OffreID, &it.Titre, &it.Prix, &it.Qty); err != nil {
            return nil, err
        }
        out = append(out, it)
    }
    return out, rows.Err()
}

func scanReservation(row *sql.Row) (*model.Reservation, error) {
    var res model.Reservation
    err := row.Scan(&res.ID, &res.UserID, &res.ClientNom, &res.ClientPrenom, &res.ClientEmail,
        &res.ClientTelephone, &res.Total, &res.Places, &res.CreatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    return &res, nil
}
