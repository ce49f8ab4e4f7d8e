package server

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/serije/internal/auth"
	"github.com/desertthunder/serije/internal/metrics"
	"github.com/desertthunder/serije/internal/models"
	"github.com/desertthunder/serije/internal/repositories"
	"github.com/desertthunder/serije/internal/shared"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks v against its validate struct tags.
func Validate(v any) error { return validate.Struct(v) }

// ValidationResult turns validator errors into a 417 naming the first missing
// field, or a 400 for any other rule.
func ValidationResult(err error) Result {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return BadData()
	}

	first := verrs[0]
	if first.Tag() == "required" || first.Tag() == "gt" {
		return MissingField(first.Field())
	}
	return BadData()
}

// CreateUserRequest is the body accepted by POST /baza/korisnici.
type CreateUserRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Korime         string `json:"korime" validate:"required"`
	PocetnaLozinka string `json:"pocetna_lozinka" validate:"required"`
	Ime            string `json:"ime"`
	Prezime        string `json:"prezime"`
}

// Normalize trims the identifying fields and lower-cases the email.
func (c *CreateUserRequest) Normalize() {
	c.Email = NormalizeEmail(c.Email)
	c.Korime = strings.TrimSpace(c.Korime)
}

// NormalizeEmail is the stored form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserUpdate carries the replaceable user fields. Empty fields keep their value.
type UserUpdate struct {
	Email   string `json:"email" validate:"omitempty,email"`
	Ime     string `json:"ime"`
	Prezime string `json:"prezime"`
	Lozinka string `json:"lozinka"`
}

type replaceUserRequest struct {
	Korisnik *UserUpdate `json:"korisnik"`
}

type loginRequest struct {
	Lozinka string `json:"lozinka"`
}

// UserHandler serves /baza/korisnici and its login sub-resource.
type UserHandler struct {
	store                *repositories.Store
	hasher               *auth.Hasher
	logger               *log.Logger
	loginLimit           Middleware
	notFoundAsBadRequest bool
}

// Routes implements [Handler].
func (h *UserHandler) Routes(r chi.Router) {
	r.Route("/baza/korisnici", func(r chi.Router) {
		r.Get("/", Serve(h.logger, h.list))
		r.Post("/", Serve(h.logger, h.create))
		r.Put("/", Serve(h.logger, notImplemented))
		r.Delete("/", Serve(h.logger, notImplemented))

		r.Route("/{korime}", func(r chi.Router) {
			r.Get("/", Serve(h.logger, h.get))
			r.Post("/", Serve(h.logger, forbidden))
			r.Put("/", Serve(h.logger, h.replace))
			r.Delete("/", Serve(h.logger, h.delete))

			r.Route("/prijava", func(r chi.Router) {
				r.With(h.loginLimit).Get("/", Serve(h.logger, h.login))
				r.With(h.loginLimit).Post("/", Serve(h.logger, h.login))
				r.Put("/", Serve(h.logger, notImplemented))
				r.Delete("/", Serve(h.logger, notImplemented))
			})
		})
	})
}

func (h *UserHandler) list(r *http.Request) Result {
	users, err := h.store.Users().List(r.Context(), nil)
	if err != nil {
		return Internal(err)
	}
	return OK(users)
}

func (h *UserHandler) create(r *http.Request) Result {
	var req CreateUserRequest
	if IsFormRequest(r) {
		req = CreateUserRequest{
			Email:          r.FormValue("email"),
			Korime:         r.FormValue("korime"),
			PocetnaLozinka: r.FormValue("pocetna_lozinka"),
			Ime:            r.FormValue("ime"),
			Prezime:        r.FormValue("prezime"),
		}
	} else if err := DecodeJSON(r, &req); err != nil {
		return BadData()
	}
	req.Normalize()

	if err := validate.Struct(req); err != nil {
		return ValidationResult(err)
	}

	user, err := NewUserFromRequest(h.hasher, req)
	if err != nil {
		return FromError(err, false)
	}

	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return Conflict(OpisUserExists)
		}
		return FromError(err, false)
	}

	h.logger.Info("user created", "user", user.Username())
	return Created(user)
}

// NewUserFromRequest hashes the initial password and builds an unsaved user.
func NewUserFromRequest(hasher *auth.Hasher, req CreateUserRequest) (*models.User, error) {
	hash, err := hasher.Hash(req.PocetnaLozinka)
	if err != nil {
		return nil, err
	}

	user := models.NewUser(0, req.Korime, req.Email, hash)
	user.SetProfile(req.Ime, req.Prezime)
	return user, nil
}

func (h *UserHandler) get(r *http.Request) Result {
	user, err := h.store.Users().GetByUsername(r.Context(), chi.URLParam(r, "korime"))
	if err != nil {
		return FromError(err, h.notFoundAsBadRequest)
	}
	return OK(user)
}

func (h *UserHandler) replace(r *http.Request) Result {
	var req replaceUserRequest
	if IsFormRequest(r) {
		req.Korisnik = formUserUpdate(r)
	} else if err := DecodeJSON(r, &req); err != nil {
		return BadData()
	}
	if req.Korisnik == nil {
		return MissingField("korisnik")
	}

	upd := *req.Korisnik
	upd.Email = NormalizeEmail(upd.Email)
	if err := validate.Struct(upd); err != nil {
		return ValidationResult(err)
	}

	user, err := h.store.UpdateUser(r.Context(), chi.URLParam(r, "korime"), func(u *models.User) error {
		return ApplyUserUpdate(h.hasher, u, upd)
	})
	if err != nil {
		return FromError(err, h.notFoundAsBadRequest)
	}

	h.logger.Info("user updated", "user", user.Username())
	return Created(user)
}

// formUserUpdate reads the replaceable fields from form values. A form with
// none of them carries no update.
func formUserUpdate(r *http.Request) *UserUpdate {
	upd := UserUpdate{
		Email:   r.FormValue("email"),
		Ime:     r.FormValue("ime"),
		Prezime: r.FormValue("prezime"),
		Lozinka: r.FormValue("lozinka"),
	}
	if upd == (UserUpdate{}) {
		return nil
	}
	return &upd
}

// ApplyUserUpdate copies the non-empty fields of upd onto u, re-hashing a new password.
func ApplyUserUpdate(hasher *auth.Hasher, u *models.User, upd UserUpdate) error {
	if upd.Email != "" {
		u.SetEmail(upd.Email)
	}

	first, last := u.FirstName(), u.LastName()
	if upd.Ime != "" {
		first = upd.Ime
	}
	if upd.Prezime != "" {
		last = upd.Prezime
	}
	u.SetProfile(first, last)

	if upd.Lozinka != "" {
		hash, err := hasher.Hash(upd.Lozinka)
		if err != nil {
			return err
		}
		u.SetPasswordHash(hash)
	}
	return nil
}

func (h *UserHandler) delete(r *http.Request) Result {
	user, err := h.store.DeleteUser(r.Context(), chi.URLParam(r, "korime"))
	if err != nil {
		return FromError(err, h.notFoundAsBadRequest)
	}

	h.logger.Info("user deleted", "user", user.Username())
	return Created(user)
}

func (h *UserHandler) login(r *http.Request) Result {
	user, err := Authenticate(r.Context(), h.store.Users(), h.hasher, chi.URLParam(r, "korime"), loginPassword(r))
	if err != nil {
		if !errors.Is(err, shared.ErrAuthFailed) {
			h.logger.Error("login check failed", "error", err)
		}
		return BadData()
	}
	return Created(user)
}

// Authenticate verifies username and password. Any mismatch, including an
// unknown user or an empty password, yields [shared.ErrAuthFailed].
func Authenticate(ctx context.Context, users *repositories.UserRepository, hasher *auth.Hasher, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		metrics.RecordLogin(false)
		return nil, shared.ErrAuthFailed
	}

	user, err := users.GetByUsername(ctx, username)
	if err != nil {
		metrics.RecordLogin(false)
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrAuthFailed
		}
		return nil, err
	}

	if err := hasher.Verify(user.PasswordHash(), password); err != nil {
		metrics.RecordLogin(false)
		return nil, err
	}

	metrics.RecordLogin(true)
	return user, nil
}

// loginPassword reads lozinka from a JSON body, then from form or query values.
func loginPassword(r *http.Request) string {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req loginRequest
		if err := DecodeJSON(r, &req); err == nil && req.Lozinka != "" {
			return req.Lozinka
		}
		return r.URL.Query().Get("lozinka")
	}
	return r.FormValue("lozinka")
}

func notImplemented(*http.Request) Result { return NotImplemented() }
func forbidden(*http.Request) Result      { return Forbidden() }
