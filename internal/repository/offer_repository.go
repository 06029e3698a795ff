package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/jo-ticketing/internal/model"
)

// OfferRepo is the catalog store.  Admin writes go through it and the public
// listing and the front-end export read from it.
type OfferRepo struct {
	db *sql.DB
}

func NewOfferRepo(db *sql.DB) *OfferRepo { return &OfferRepo{db: db} }

const offerColumns = `id, name, slug, description, price, persons, is_active, sort_order, category, titre, btn_label, alt, image_path, created_at, updated_at`

// ListActive returns active offers ordered for display.
func (r *OfferRepo) ListActive(ctx context.Context) ([]model.Offer, error) {
	return r.list(ctx, `SELECT `+offerColumns+` FROM offers WHERE is_active = 1 ORDER BY sort_order, name`)
}

// ListAll returns every offer, active or not, for admins.
func (r *OfferRepo) ListAll(ctx context.Context) ([]model.Offer, error) {
	return r.list(ctx, `SELECT `+offerColumns+` FROM offers ORDER BY sort_order, name`)
}

// GetByID loads one offer.
func (r *OfferRepo) GetByID(ctx context.Context, id uint64) (*model.Offer, error) {
	var o model.Offer
	err := scanOffer(r.db.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = ?`, id), &o)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create inserts an offer.  Name and slug collisions yield ErrDuplicate.
func (r *OfferRepo) Create(ctx context.Context, o *model.Offer) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO offers (name, slug, description, price, persons, is_active, sort_order, category, titre, btn_label, alt, image_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.Name, o.Slug, o.Description, o.Price.StringFixed(2), o.Persons, o.IsActive, o.SortOrder,
		o.Category, o.Titre, o.BtnLabel, o.Alt, o.ImagePath)
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
	o.ID = uint64(id)
	return scanOffer(r.db.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = ?`, o.ID), o)
}

// Update overwrites every editable column of an existing offer.
func (r *OfferRepo) Update(ctx context.Context, o *model.Offer) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE offers SET name = ?, slug = ?, description = ?, price = ?, persons = ?, is_active = ?, sort_order = ?,
		        category = ?, titre = ?, btn_label = ?, alt = ?, image_path = ?
		 WHERE id = ?`,
		o.Name, o.Slug, o.Description, o.Price.StringFixed(2), o.Persons, o.IsActive, o.SortOrder,
		o.Category, o.Titre, o.BtnLabel, o.Alt, o.ImagePath, o.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	// MySQL reports 0 affected rows for a no-op update, so check existence separately
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, o.ID); err != nil {
			return err
		}
	}
	return scanOffer(r.db.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = ?`, o.ID), o)
}

// Delete removes an offer.  Reservations keep their snapshots.
func (r *OfferRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM offers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *OfferRepo) list(ctx context.Context, query string) ([]model.Offer, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Offer{}
	for rows.Next() {
		var o model.Offer
		if err := scanOffer(rows, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOffer(s scanner, o *model.Offer) error {
	return s.Scan(&o.ID, &o.Name, &o.Slug, &o.Description, &o.Price, &o.Persons, &o.IsActive,
		&o.SortOrder, &o.Category, &o.Titre, &o.BtnLabel, &o.Alt, &o.ImagePath, &o.CreatedAt, &o.UpdatedAt)
}
