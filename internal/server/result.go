package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/serije/internal/shared"
)

// Response descriptions sent in the "opis" field.
const (
	OpisMissingField   = "nedostaje podatak"
	OpisBadData        = "krivi podaci"
	OpisUnauthorized   = "potrebna prijava"
	OpisNotFound       = "nema resursa"
	OpisForbidden      = "zabranjeno"
	OpisUserExists     = "korisnik vec postoji"
	OpisFavoriteExists = "favorit vec postoji"
	OpisNotImplemented = "metoda nije implementirana"
	OpisUpstream       = "tmdb nedostupan"
	OpisInternal       = "interna greska"
)

const maxBodyBytes = 1 << 20

// Message is the JSON body of every non-success response.
type Message struct {
	Opis  string `json:"opis"`
	Polje string `json:"polje,omitempty"`
}

// Result is the single outcome of a handler branch. Exactly one response is
// written per Result.
type Result struct {
	Status int
	Body   any

	raw         []byte
	contentType string
	err         error
}

func OK(body any) Result      { return Result{Status: http.StatusOK, Body: body} }
func Created(body any) Result { return Result{Status: http.StatusCreated, Body: body} }

// MissingField reports a required request field that was absent or empty.
func MissingField(field string) Result {
	return Result{Status: http.StatusExpectationFailed, Body: Message{Opis: OpisMissingField, Polje: field}}
}

func BadData() Result             { return message(http.StatusBadRequest, OpisBadData) }
func Unauthenticated() Result     { return message(http.StatusUnauthorized, OpisUnauthorized) }
func NotFound() Result            { return message(http.StatusNotFound, OpisNotFound) }
func Forbidden() Result           { return message(http.StatusMethodNotAllowed, OpisForbidden) }
func Conflict(opis string) Result { return message(http.StatusConflict, opis) }
func NotImplemented() Result      { return message(http.StatusNotImplemented, OpisNotImplemented) }

// Upstream reports a failed TMDB call; err is logged only.
func Upstream(err error) Result {
	r := message(http.StatusBadGateway, OpisUpstream)
	r.err = err
	return r
}

// Internal reports an unexpected failure; err is logged, never sent.
func Internal(err error) Result {
	r := message(http.StatusInternalServerError, OpisInternal)
	r.err = err
	return r
}

// Raw relays an already encoded body with its status and content type.
func Raw(status int, contentType string, body []byte) Result {
	return Result{Status: status, raw: body, contentType: contentType}
}

func message(status int, opis string) Result {
	return Result{Status: status, Body: Message{Opis: opis}}
}

// Err returns the underlying error of a failure result, if any.
func (res Result) Err() error { return res.err }

// FromError maps a domain error onto a Result. User lookups pass
// notFoundAsBadRequest to answer missing users with 400.
func FromError(err error, notFoundAsBadRequest bool) Result {
	switch {
	case err == nil:
		return OK(nil)
	case errors.Is(err, shared.ErrNotFound):
		if notFoundAsBadRequest {
			return BadData()
		}
		return NotFound()
	case errors.Is(err, shared.ErrConflict):
		return Conflict(OpisUserExists)
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrAuthFailed):
		return BadData()
	case errors.Is(err, shared.ErrNotAuthenticated):
		return Unauthenticated()
	case errors.Is(err, shared.ErrNotImplemented):
		return NotImplemented()
	case errors.Is(err, shared.ErrServiceUnavailable), errors.Is(err, shared.ErrAPIRequest), errors.Is(err, shared.ErrSeriesNotFound):
		return Upstream(err)
	default:
		return Internal(err)
	}
}

// Write sends the result. Internal and upstream failures are logged with the request path.
func (res Result) Write(w http.ResponseWriter, r *http.Request, logger *log.Logger) {
	if res.err != nil && logger != nil {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", res.Status, "error", res.err)
	}

	if res.raw != nil {
		ct := res.contentType
		if ct == "" {
			ct = "application/json"
		}
		w.Header().Set("Content-Type", ct)
		w.WriteHeader(res.Status)
		w.Write(res.raw)
		return
	}

	WriteJSON(w, res.Status, res.Body)
}

// WriteJSON encodes v as the JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	json.NewEncoder(w).Encode(v)
}

// DecodeJSON decodes the request body into v. An empty body leaves v untouched.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}

	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// IsFormRequest reports whether the body is urlencoded or multipart form data.
func IsFormRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}

// ResultFunc is a handler that returns its outcome instead of writing it.
type ResultFunc func(r *http.Request) Result

// Serve adapts fn to an [http.HandlerFunc] that writes exactly one response.
func Serve(logger *log.Logger, fn ResultFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(r).Write(w, r, logger)
	}
}
