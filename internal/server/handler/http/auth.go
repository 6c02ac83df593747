// Package http provides HTTP handlers for account registration and login.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/atinyakov/GophAuth/internal/models"
	"github.com/atinyakov/GophAuth/internal/service"
)

// Response bodies and locations of the account endpoints.
const (
	MsgRegistered         = "User registered successfully!"
	MsgEmptyPassword      = "Password cannot be null or empty."
	MsgPasswordMismatch   = "Passwords do not match."
	MsgInvalidLogin       = "Invalid login attempt."
	MsgServiceUnavailable = "Service temporarily unavailable."
	MsgInternalError      = "Internal server error."

	HomeLocation = "/home.html"
)

// maxFormBytes bounds the size of a request body.
const maxFormBytes = 1 << 20

// AuthService defines the credential operations required by the HTTP
// handlers.
type AuthService interface {
	// Register creates an account from a registration request.
	Register(ctx context.Context, req service.RegistrationRequest) (*models.Account, error)
	// Login authenticates a login request.
	Login(ctx context.Context, req service.LoginRequest) (*models.Account, error)
}

// AuthHandler handles HTTP requests for account registration and login.
type AuthHandler struct {
	// AuthService performs the underlying credential operations.
	AuthService AuthService
	// LoginField is the form field holding the login identifier.
	// Empty means "Email".
	LoginField string
}

// IdentityError is one entry of the error list returned when registration
// fails for a reason other than the password checks.
type IdentityError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Register handles POST /account/register.
// It expects a form with UserName, Email, Password and ConfirmPassword.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	req := service.RegistrationRequest{
		Username:        r.PostForm.Get("UserName"),
		Email:           r.PostForm.Get("Email"),
		Password:        models.NewPassword(r.PostForm.Get("Password")),
		ConfirmPassword: models.NewPassword(r.PostForm.Get("ConfirmPassword")),
	}

	if _, err := h.AuthService.Register(r.Context(), req); err != nil {
		writeRegisterError(w, req, err)
		return
	}

	writeText(w, http.StatusOK, MsgRegistered)
}

// Login handles POST /account/login.
// It expects a form with the login identifier and Password. On success the
// client is redirected to the home page; no session is issued here.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	field := h.LoginField
	if field == "" {
		field = "Email"
	}
	req := service.LoginRequest{
		Identifier: r.PostForm.Get(field),
		Password:   models.NewPassword(r.PostForm.Get("Password")),
	}

	_, err := h.AuthService.Login(r.Context(), req)
	switch {
	case err == nil:
		http.Redirect(w, r, HomeLocation, http.StatusFound)
	case errors.Is(err, service.ErrInvalidCredentials):
		writeText(w, http.StatusBadRequest, MsgInvalidLogin)
	case errors.Is(err, service.ErrStorageUnavailable):
		writeText(w, http.StatusServiceUnavailable, MsgServiceUnavailable)
	default:
		writeText(w, http.StatusInternalServerError, MsgInternalError)
	}
}

// parseForm fills r.PostForm from either a urlencoded or a multipart body.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	err := r.ParseMultipartForm(maxFormBytes)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return err
	}
	return nil
}

func writeRegisterError(w http.ResponseWriter, req service.RegistrationRequest, err error) {
	var (
		verr     *service.ValidationError
		conflict *models.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		switch verr.Reason {
		case service.EmptyPassword:
			writeText(w, http.StatusBadRequest, MsgEmptyPassword)
		case service.PasswordMismatch:
			writeText(w, http.StatusBadRequest, MsgPasswordMismatch)
		default:
			writeErrorList(w, []IdentityError{validationIdentityError(verr.Reason, req)})
		}
	case errors.As(err, &conflict):
		writeErrorList(w, conflictIdentityErrors(conflict, req))
	case errors.Is(err, service.ErrStorageUnavailable):
		writeText(w, http.StatusServiceUnavailable, MsgServiceUnavailable)
	default:
		writeText(w, http.StatusInternalServerError, MsgInternalError)
	}
}

func validationIdentityError(reason service.ValidationReason, req service.RegistrationRequest) IdentityError {
	switch reason {
	case service.EmptyUsername:
		return IdentityError{Code: "InvalidUserName", Description: fmt.Sprintf("Username '%s' is invalid.", req.Username)}
	case service.InvalidEmail:
		return IdentityError{Code: "InvalidEmail", Description: fmt.Sprintf("Email '%s' is invalid.", req.Email)}
	case service.PasswordTooLong:
		return IdentityError{Code: "PasswordTooLong", Description: "Password is too long."}
	default:
		return IdentityError{Code: "InvalidRequest", Description: "The request is invalid."}
	}
}

func conflictIdentityErrors(conflict *models.ConflictError, req service.RegistrationRequest) []IdentityError {
	if len(conflict.Fields) == 0 {
		return []IdentityError{{Code: "DuplicateIdentity", Description: "Username or email is already taken."}}
	}
	var out []IdentityError
	if conflict.Has(models.FieldUsername) {
		out = append(out, IdentityError{
			Code:        "DuplicateUserName",
			Description: fmt.Sprintf("Username '%s' is already taken.", req.Username),
		})
	}
	if conflict.Has(models.FieldEmail) {
		out = append(out, IdentityError{
			Code:        "DuplicateEmail",
			Description: fmt.Sprintf("Email '%s' is already taken.", req.Email),
		})
	}
	return out
}

func writeErrorList(w http.ResponseWriter, errs []IdentityError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(errs)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
