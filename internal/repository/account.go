// Package repository provides persistence implementations of the account
// store used by the credential engine.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/GophAuth/internal/models"
	"github.com/lib/pq"
)

// ErrEmptyPasswordHash is returned when asked to store a record without a hash.
var ErrEmptyPasswordHash = errors.New("password hash is empty")

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Constraint names created by db.InitPostgres.
const (
	usernameConstraint = "accounts_normalized_username_key"
	emailConstraint    = "accounts_normalized_email_key"
)

const selectAccount = `
	SELECT id, username, normalized_username, email, normalized_email, password_hash, created_at
	FROM accounts`

// PostgresAccountStore implements the account store on top of PostgreSQL.
// Uniqueness is enforced by unique indexes on the normalized username and
// email, so concurrent inserts with a colliding identity cannot both succeed.
type PostgresAccountStore struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAccountStore creates a new PostgresAccountStore with the given database connection.
// db must be a valid *sql.DB connected to a PostgreSQL instance with the accounts schema.
func NewPostgresAccountStore(db *sql.DB) *PostgresAccountStore {
	return &PostgresAccountStore{DB: db}
}

// FindByEmail returns the account whose email matches case-insensitively.
// It returns models.ErrAccountNotFound if there is none.
func (s *PostgresAccountStore) FindByEmail(ctx context.Context, email string) (*models.CredentialRecord, error) {
	rec, err := s.findOne(ctx, selectAccount+` WHERE normalized_email = $1`, models.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("FindByEmail: %w", err)
	}
	return rec, nil
}

// FindByUsername returns the account with the given normalized username.
// It returns models.ErrAccountNotFound if there is none.
func (s *PostgresAccountStore) FindByUsername(ctx context.Context, normalizedUsername string) (*models.CredentialRecord, error) {
	rec, err := s.findOne(ctx, selectAccount+` WHERE normalized_username = $1`, normalizedUsername)
	if err != nil {
		return nil, fmt.Errorf("FindByUsername: %w", err)
	}
	return rec, nil
}

func (s *PostgresAccountStore) findOne(ctx context.Context, query string, arg string) (*models.CredentialRecord, error) {
	var rec models.CredentialRecord
	err := s.DB.QueryRowContext(ctx, query, arg).Scan(
		&rec.ID,
		&rec.Identity.Username,
		&rec.Identity.NormalizedUsername,
		&rec.Identity.Email,
		&rec.Identity.NormalizedEmail,
		&rec.PasswordHash,
		&rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIfAbsent inserts rec unless an account with the same normalized
// username or email exists, in which case it returns *models.ConflictError
// naming every colliding field. The returned record carries the assigned ID
// and creation time.
func (s *PostgresAccountStore) CreateIfAbsent(ctx context.Context, rec *models.CredentialRecord) (*models.CredentialRecord, error) {
	if len(rec.PasswordHash) == 0 {
		return nil, fmt.Errorf("CreateIfAbsent: %w", ErrEmptyPasswordHash)
	}

	created := *rec
	created.Identity.NormalizedEmail = models.NormalizeEmail(rec.Identity.Email)

	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO accounts (username, normalized_username, email, normalized_email, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`,
		created.Identity.Username,
		created.Identity.NormalizedUsername,
		created.Identity.Email,
		created.Identity.NormalizedEmail,
		created.PasswordHash,
	).Scan(&created.ID, &created.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return nil, s.conflict(ctx, created.Identity, pqErr.Constraint)
	}
	if err != nil {
		return nil, fmt.Errorf("CreateIfAbsent: %w", err)
	}
	return &created, nil
}

// conflict builds the ConflictError for a failed insert. The unique
// violation only names the first index that tripped, so the table is probed
// to report both fields when both collide.
func (s *PostgresAccountStore) conflict(ctx context.Context, id models.AccountIdentity, constraint string) error {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT normalized_username = $1, normalized_email = $2
		FROM accounts
		WHERE normalized_username = $1 OR normalized_email = $2
	`, id.NormalizedUsername, id.NormalizedEmail)
	if err != nil {
		return fmt.Errorf("CreateIfAbsent: probe conflict: %w", err)
	}
	defer rows.Close()

	var dupUsername, dupEmail bool
	for rows.Next() {
		var u, e bool
		if err := rows.Scan(&u, &e); err != nil {
			return fmt.Errorf("CreateIfAbsent: scan conflict: %w", err)
		}
		dupUsername = dupUsername || u
		dupEmail = dupEmail || e
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("CreateIfAbsent: probe conflict: %w", err)
	}

	// The colliding row may have been removed between the insert and the
	// probe; fall back to the constraint reported by the server.
	if !dupUsername && !dupEmail {
		switch constraint {
		case usernameConstraint:
			dupUsername = true
		case emailConstraint:
			dupEmail = true
		}
	}

	var fields []models.Field
	if dupUsername {
		fields = append(fields, models.FieldUsername)
	}
	if dupEmail {
		fields = append(fields, models.FieldEmail)
	}
	return &models.ConflictError{Fields: fields}
}
