package account

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

func mockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(sqlx.NewDb(db, "mysql")), mock
}

func TestSQLStore_Create(t *testing.T) {
	st, mock := mockStore(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	u := &User{ID: "u1", Username: "ravi", Email: "ravi@example.com", PasswordHash: []byte("h"),
		Role: RoleFarmer, Active: true, CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO app_user")).
		WithArgs("u1", "ravi", "ravi@example.com", []byte("h"), RoleFarmer, true, now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	if err := st.Create(context.Background(), u); err != nil {
		t.Fatalf("Create: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO app_user")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	if err := st.Create(context.Background(), u); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate err = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLStore_ByEmail(t *testing.T) {
	st, mock := mockStore(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cols := []string{"id", "username", "email", "password_hash", "role", "active", "created_at", "updated_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM app_user WHERE email = ?")).
		WithArgs("ravi@example.com").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("u1", "ravi", "ravi@example.com", []byte("h"), "buyer", true, now, now))
	u, err := st.ByEmail(context.Background(), "ravi@example.com")
	if err != nil {
		t.Fatalf("ByEmail: %v", err)
	}
	if u.ID != "u1" || u.Role != RoleBuyer || !u.Active {
		t.Fatalf("user = %+v", u)
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM app_user WHERE email = ?")).
		WithArgs("none@example.com").
		WillReturnRows(sqlmock.NewRows(cols))
	if _, err := st.ByEmail(context.Background(), "none@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("missing err = %v", err)
	}
}

func TestSQLStore_UpdatePassword(t *testing.T) {
	st, mock := mockStore(t)
	at := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE app_user SET password_hash = ?")).
		WithArgs([]byte("h2"), at, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := st.UpdatePassword(context.Background(), "u1", []byte("h2"), at); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE app_user")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := st.UpdatePassword(context.Background(), "ghost", []byte("h"), at); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("ghost err = %v", err)
	}
}
