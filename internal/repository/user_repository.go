package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/jo-ticketing/internal/model"
	"github.com/iliyamo/jo-ticketing/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

const userColumns = "id,email,password_hash,role,account_key,is_active,created_at,updated_at"

// Create inserts a user with a freshly minted account key and returns its ID.
// The key is written in the same statement as the row so no account ever
// exists without one.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	accountKey, err := utils.NewAccountKey()
	if err != nil {
		return 0, fmt.Errorf("mint account key: %w", err)
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, account_key) VALUES (?,?,?,?)",
		email, hash, role, accountKey)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// AccountKey returns the user's account key, or "" when the row predates
// key provisioning.  A missing user yields ErrNotFound.
func (r *UserRepo) AccountKey(ctx context.Context, userID uint64) (string, error) {
	var key sql.NullString
	err := r.DB.QueryRowContext(ctx, "SELECT account_key FROM users WHERE id=? LIMIT 1", userID).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return key.String, nil
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var u model.User
	var key sql.NullString
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &key, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	u.AccountKey = key.String
	return u, err
}
