// internal/account/store.go
//
// SQL-backed user store.
//
// Context
//   Accounts live in one MySQL table, app_user (see conf/schema.sql).  Email
//   is unique and stored lower-cased.  Queries use sqlx with `?`
//   placeholders; the store never builds SQL from user input.
//
//------------------------------------------------------------------------------

package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("user with this email already exists")
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// User is one account row.
type User struct {
	ID           string    `db:"id"            json:"id"`
	Username     string    `db:"username"      json:"username"`
	Email        string    `db:"email"         json:"email"`
	PasswordHash []byte    `db:"password_hash" json:"-"`
	Role         Role      `db:"role"          json:"role"`
	Active       bool      `db:"active"        json:"active"`
	CreatedAt    time.Time `db:"created_at"    json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at"    json:"updatedAt"`
}

// Store persists users.
type Store interface {
	Create(ctx context.Context, u *User) error
	ByEmail(ctx context.Context, email string) (*User, error)
	ByID(ctx context.Context, id string) (*User, error)
	UpdatePassword(ctx context.Context, id string, hash []byte, at time.Time) error
}

// SQLStore implements Store on MySQL.
type SQLStore struct{ db *sqlx.DB }

func NewSQLStore(db *sqlx.DB) *SQLStore { return &SQLStore{db: db} }

const userColumns = `id, username, email, password_hash, role, active, created_at, updated_at`

func (s *SQLStore) Create(ctx context.Context, u *User) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO app_user (`+userColumns+`)
		 VALUES (:id, :username, :email, :password_hash, :role, :active, :created_at, :updated_at)`, u)
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLStore) ByEmail(ctx context.Context, email string) (*User, error) {
	return s.get(ctx, `SELECT `+userColumns+` FROM app_user WHERE email = ?`, email)
}

func (s *SQLStore) ByID(ctx context.Context, id string) (*User, error) {
	return s.get(ctx, `SELECT `+userColumns+` FROM app_user WHERE id = ?`, id)
}

func (s *SQLStore) UpdatePassword(ctx context.Context, id string, hash []byte, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE app_user SET password_hash = ?, updated_at = ? WHERE id = ?`, hash, at, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *SQLStore) get(ctx context.Context, q string, arg any) (*User, error) {
	var u User
	if err := s.db.GetContext(ctx, &u, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &u, nil
}
