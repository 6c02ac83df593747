// Package service implements the credential engine: registration of new
// accounts and password login, delegating persistence to an AccountStore.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"runtime"
	"strings"

	"github.com/atinyakov/GophAuth/internal/hasher"
	"github.com/atinyakov/GophAuth/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// AccountStore defines the persistence operations required by the
// credential engine.
type AccountStore interface {
	// FindByEmail returns the account whose email matches case-insensitively,
	// or models.ErrAccountNotFound.
	FindByEmail(ctx context.Context, email string) (*models.CredentialRecord, error)
	// FindByUsername returns the account with the given normalized username,
	// or models.ErrAccountNotFound.
	FindByUsername(ctx context.Context, normalizedUsername string) (*models.CredentialRecord, error)
	// CreateIfAbsent atomically checks username and email uniqueness and
	// inserts the record. A collision yields *models.ConflictError.
	CreateIfAbsent(ctx context.Context, rec *models.CredentialRecord) (*models.CredentialRecord, error)
}

// LoginIdentifier selects which field a login request is matched on.
type LoginIdentifier string

const (
	LoginByEmail    LoginIdentifier = "email"
	LoginByUsername LoginIdentifier = "username"
)

// Config holds the policies of the credential engine.
type Config struct {
	// UsernameCaseSensitive makes "Alice" and "alice" distinct accounts.
	UsernameCaseSensitive bool
	// LoginIdentifier is the field login requests are matched on.
	// Empty means LoginByEmail.
	LoginIdentifier LoginIdentifier
	// HideConflictFields strips the colliding field names from conflict
	// errors so registration cannot be used to probe for accounts.
	HideConflictFields bool
	// ValidateIdentity rejects blank usernames and malformed emails.
	ValidateIdentity bool
	// MaxConcurrentHashes bounds simultaneous hash and verify operations.
	// Zero means runtime.NumCPU().
	MaxConcurrentHashes int
}

// RegistrationRequest is the input of Register.
type RegistrationRequest struct {
	Username        string
	Email           string
	Password        models.Password
	ConfirmPassword models.Password
}

// LoginRequest is the input of Login. Identifier is an email or a username
// depending on Config.LoginIdentifier.
type LoginRequest struct {
	Identifier string
	Password   models.Password
}

// AuthService registers accounts and authenticates login attempts.
// It is safe for concurrent use.
type AuthService struct {
	store  AccountStore
	hasher hasher.Hasher
	cfg    Config
	sem    *semaphore.Weighted
	log    *zap.Logger

	// comparisonHash is verified against when no account was found, so an
	// unknown identifier costs as much as a wrong password.
	comparisonHash []byte
}

// NewAuthService constructs an AuthService. It hashes a random value once to
// obtain the comparison hash, which takes as long as one registration.
func NewAuthService(store AccountStore, h hasher.Hasher, cfg Config, log *zap.Logger) (*AuthService, error) {
	switch cfg.LoginIdentifier {
	case "":
		cfg.LoginIdentifier = LoginByEmail
	case LoginByEmail, LoginByUsername:
	default:
		return nil, fmt.Errorf("unsupported login identifier %q", cfg.LoginIdentifier)
	}
	if cfg.MaxConcurrentHashes <= 0 {
		cfg.MaxConcurrentHashes = runtime.NumCPU()
	}
	if log == nil {
		log = zap.NewNop()
	}

	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate comparison password: %w", err)
	}
	comparison, err := h.Hash([]byte(hex.EncodeToString(raw)))
	if err != nil {
		return nil, fmt.Errorf("hash comparison password: %w", err)
	}

	return &AuthService{
		store:          store,
		hasher:         h,
		cfg:            cfg,
		sem:            semaphore.NewWeighted(int64(cfg.MaxConcurrentHashes)),
		log:            log,
		comparisonHash: comparison,
	}, nil
}

// Register validates req, hashes the password and creates the account.
//
// Validation stops at the first failing rule, in this order: blank password,
// password/confirmation mismatch, then (with ValidateIdentity) blank
// username and malformed email, then a password longer than the hasher
// accepts. A taken username or email yields *models.ConflictError. Store
// failures are reported as *StorageError. Both passwords in req are wiped
// before Register returns.
func (s *AuthService) Register(ctx context.Context, req RegistrationRequest) (*models.Account, error) {
	defer req.Password.Wipe()
	defer req.ConfirmPassword.Wipe()

	if err := s.validate(req); err != nil {
		s.log.Info("registration rejected",
			zap.String("username", req.Username),
			zap.Stringer("reason", err.Reason),
		)
		return nil, err
	}

	hash, err := s.hash(ctx, req.Password)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	rec := &models.CredentialRecord{
		Identity: models.AccountIdentity{
			Username:           username,
			Email:              email,
			NormalizedUsername: models.NormalizeUsername(username, s.cfg.UsernameCaseSensitive),
			NormalizedEmail:    models.NormalizeEmail(email),
		},
		PasswordHash: hash,
	}

	created, err := s.store.CreateIfAbsent(ctx, rec)
	var conflict *models.ConflictError
	if errors.As(err, &conflict) {
		s.log.Info("registration conflict",
			zap.String("username", username),
			zap.String("email", email),
			zap.Error(conflict),
		)
		if s.cfg.HideConflictFields {
			return nil, &models.ConflictError{}
		}
		return nil, conflict
	}
	if err != nil {
		s.log.Error("registration failed", zap.String("username", username), zap.Error(err))
		return nil, &StorageError{Op: "create account", Err: err}
	}

	s.log.Info("account registered", zap.Int64("account_id", created.ID), zap.String("username", username))
	return created.Account(), nil
}

// Login checks the password of the account named by req.Identifier.
//
// Every failed login, including an unknown account or an over-long
// password, yields ErrInvalidCredentials after one password verification. Store failures are reported as
// *StorageError. The password in req is wiped before Login returns.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*models.Account, error) {
	defer req.Password.Wipe()

	// No stored password can be this long, and the hasher might only look
	// at a prefix of it.
	if req.Password.Len() > s.hasher.MaxPasswordBytes() {
		if _, verr := s.verify(ctx, s.comparisonHash, req.Password); isContextErr(verr) {
			return nil, verr
		}
		s.log.Info("login failed", zap.String("identifier", req.Identifier))
		return nil, ErrInvalidCredentials
	}

	rec, err := s.lookup(ctx, req.Identifier)
	if errors.Is(err, models.ErrAccountNotFound) {
		if _, verr := s.verify(ctx, s.comparisonHash, req.Password); isContextErr(verr) {
			return nil, verr
		}
		s.log.Info("login failed", zap.String("identifier", req.Identifier))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		s.log.Error("login lookup failed", zap.String("identifier", req.Identifier), zap.Error(err))
		return nil, &StorageError{Op: "find account", Err: err}
	}

	ok, err := s.verify(ctx, rec.PasswordHash, req.Password)
	if isContextErr(err) {
		return nil, err
	}
	if err != nil {
		s.log.Error("stored password hash is unreadable", zap.Int64("account_id", rec.ID), zap.Error(err))
		return nil, ErrInvalidCredentials
	}
	if !ok {
		s.log.Info("login failed", zap.String("identifier", req.Identifier))
		return nil, ErrInvalidCredentials
	}

	s.log.Info("login succeeded", zap.Int64("account_id", rec.ID))
	return rec.Account(), nil
}

func (s *AuthService) validate(req RegistrationRequest) *ValidationError {
	if req.Password.IsBlank() {
		return &ValidationError{Reason: EmptyPassword}
	}
	if !req.Password.Equal(req.ConfirmPassword) {
		return &ValidationError{Reason: PasswordMismatch}
	}
	if s.cfg.ValidateIdentity {
		if strings.TrimSpace(req.Username) == "" {
			return &ValidationError{Reason: EmptyUsername}
		}
		if !isEmailAddress(req.Email) {
			return &ValidationError{Reason: InvalidEmail}
		}
	}
	if req.Password.Len() > s.hasher.MaxPasswordBytes() {
		return &ValidationError{Reason: PasswordTooLong}
	}
	return nil
}

func (s *AuthService) lookup(ctx context.Context, identifier string) (*models.CredentialRecord, error) {
	if s.cfg.LoginIdentifier == LoginByUsername {
		return s.store.FindByUsername(ctx, models.NormalizeUsername(identifier, s.cfg.UsernameCaseSensitive))
	}
	return s.store.FindByEmail(ctx, identifier)
}

// hash and verify hold one semaphore slot each. A caller whose context ends
// while queued gives up its turn; a running hash is not interrupted.
func (s *AuthService) hash(ctx context.Context, p models.Password) ([]byte, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	hash, err := s.hasher.Hash(p.Bytes())
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (s *AuthService) verify(ctx context.Context, hash []byte, p models.Password) (bool, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer s.sem.Release(1)

	return s.hasher.Verify(hash, p.Bytes())
}

// isEmailAddress accepts only a bare address, not "Name <addr>" forms.
func isEmailAddress(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return false
	}
	return addr.Address == trimmed
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
