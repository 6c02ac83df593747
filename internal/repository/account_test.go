package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/atinyakov/GophAuth/internal/models"
	"github.com/lib/pq"
)

var accountColumns = []string{"id", "username", "normalized_username", "email", "normalized_email", "password_hash", "created_at"}

func setupAccountMock(t *testing.T) (*PostgresAccountStore, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	store := NewPostgresAccountStore(db)
	cleanup := func() { db.Close() }
	return store, mock, cleanup
}

func newRecord() *models.CredentialRecord {
	return &models.CredentialRecord{
		Identity: models.AccountIdentity{
			Username:           "Alice",
			NormalizedUsername: "alice",
			Email:              "A@x.com",
		},
		PasswordHash: []byte("$2a$04$hash"),
	}
}

func TestFindByEmail_Found(t *testing.T) {
	store, mock, cleanup := setupAccountMock(t)
	defer cleanup()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM accounts WHERE normalized_email = $1`)).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow(int64(1), "Alice", "alice", "A@x.com", "a@x.com", []byte("$2a$04$hash"), created))

	rec, err := store.FindByEmail(context.Background(), " A@X.COM ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != 1 || rec.Identity.Username != "Alice" || rec.Identity.Email != "A@x.com" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if string(rec.PasswordHash) != "$2a$04$hash" {
		t.Errorf("PasswordHash = %q", rec.PasswordHash)
	}
	if !rec.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v; want %v", rec.CreatedAt, created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestFindByEmail_NotFound(t *testing.T) {
	store, mock, cleanup := setupAccountMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM accounts WHERE normalized_email = $1`)).
		WithArgs("nobody@x.com").
		WillReturnRows(sqlmock.NewRows(accountColumns))

	_, err := store.FindByEmail(context.Background(), "nobody@x.com")
	if !errors.Is(err, models.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestFindByUsername_Error(t *testing.T) {
	store, mock, cleanup := setupAccountMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM accounts WHERE normalized_username = $1`)).
		WithArgs("alice").
		WillReturnError(errors.New("connection refused"))

	_, err := store.FindByUsername(context.Background(), "alice")
	if err == nil || !regexp.MustCompile(`FindByUsername`).MatchString(err.Error()) {
		t.Errorf("expected wrapped FindByUsername error, got %v", err)
	}
	if errors.Is(err, models.ErrAccountNotFound) {
		t.Errorf("driver failure must not look like a missing account")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreateIfAbsent_Success(t *testing.T) {
	store, mock, cleanup := setupAccountMock(t)
	defer cleanup()

	created := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO accounts`)).
		WithArgs("Alice", "alice", "A@x.com", "a@x.com", []byte("$2a$04$hash")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), created))

	rec, err := store.CreateIfAbsent(context.Background(), newRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != 42 {
		t.Errorf("ID = %d; want 42", rec.ID)
	}
	if rec.Identity.NormalizedEmail != "a@x.com" {
		t.Errorf("NormalizedEmail = %q; want %q", rec.Identity.NormalizedEmail, "a@x.com")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreateIfAbsent_Conflict(t *testing.T) {
	cases := []struct {
		name       string
		constraint string
		probe      *sqlmock.Rows
		want       []models.Field
	}{
		{
			name:       "email taken",
			constraint: emailConstraint,
			probe:      sqlmock.NewRows([]string{"u", "e"}).AddRow(false, true),
			want:       []models.Field{models.FieldEmail},
		},
		{
			name:       "username taken",
			constraint: usernameConstraint,
			probe:      sqlmock.NewRows([]string{"u", "e"}).AddRow(true, false),
			want:       []models.Field{models.FieldUsername},
		},
		{
			name:       "both taken by different accounts",
			constraint: usernameConstraint,
			probe:      sqlmock.NewRows([]string{"u", "e"}).AddRow(true, false).AddRow(false, true),
			want:       []models.Field{models.FieldUsername, models.FieldEmail},
		},
		{
			name:       "row gone before probe",
			constraint: emailConstraint,
			probe:      sqlmock.NewRows([]string{"u", "e"}),
			want:       []models.Field{models.FieldEmail},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, mock, cleanup := setupAccountMock(t)
			defer cleanup()

			mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO accounts`)).
				WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: tc.constraint})
			mock.ExpectQuery(regexp.QuoteMeta(`SELECT normalized_username = $1, normalized_email = $2`)).
				WithArgs("alice", "a@x.com").
				WillReturnRows(tc.probe)

			_, err := store.CreateIfAbsent(context.Background(), newRecord())

			var conflict *models.ConflictError
			if !errors.As(err, &conflict) {
				t.Fatalf("expected ConflictError, got %v", err)
			}
			if len(conflict.Fields) != len(tc.want) {
				t.Fatalf("Fields = %v; want %v", conflict.Fields, tc.want)
			}
			for i := range tc.want {
				if conflict.Fields[i] != tc.want[i] {
					t.Errorf("Fields = %v; want %v", conflict.Fields, tc.want)
				}
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestCreateIfAbsent_DriverError(t *testing.T) {
	store, mock, cleanup := setupAccountMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO accounts`)).
		WillReturnError(errors.New("insert failed"))

	_, err := store.CreateIfAbsent(context.Background(), newRecord())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var conflict *models.ConflictError
	if errors.As(err, &conflict) {
		t.Errorf("driver failure must not be reported as conflict")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreateIfAbsent_EmptyHash(t *testing.T) {
	store, mock, cleanup := setupAccountMock(t)
	defer cleanup()

	rec := newRecord()
	rec.PasswordHash = nil

	_, err := store.CreateIfAbsent(context.Background(), rec)
	if !errors.Is(err, ErrEmptyPasswordHash) {
		t.Errorf("expected ErrEmptyPasswordHash, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected sql calls: %v", err)
	}
}
