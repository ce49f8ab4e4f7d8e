package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/desertthunder/serije/internal/auth"
	"github.com/desertthunder/serije/internal/models"
	"github.com/desertthunder/serije/internal/server"
	"github.com/desertthunder/serije/internal/services"
	"github.com/desertthunder/serije/internal/shared"
)

func (p *Pages) home(w http.ResponseWriter, r *http.Request) {
	p.render(w, http.StatusOK, "pocetna.html", newView(r, "Početna", nil))
}

func (p *Pages) documentation(w http.ResponseWriter, r *http.Request) {
	p.render(w, http.StatusOK, "dokumentacija.html", newView(r, "Dokumentacija", nil))
}

func (p *Pages) users(w http.ResponseWriter, r *http.Request) {
	users, err := p.store.Users().List(r.Context(), nil)
	if err != nil {
		p.logger.Error("failed to list users", "error", err)
		v := newView(r, "Korisnici", nil)
		v.Greska = server.OpisInternal
		p.render(w, http.StatusInternalServerError, "korisnici.html", v)
		return
	}
	p.render(w, http.StatusOK, "korisnici.html", newView(r, "Korisnici", users))
}

func (p *Pages) loginForm(w http.ResponseWriter, r *http.Request) {
	p.render(w, http.StatusOK, "prijava.html", newView(r, "Prijava", nil))
}

func (p *Pages) login(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("korime"))
	user, err := server.Authenticate(r.Context(), p.store.Users(), p.hasher, username, r.FormValue("lozinka"))
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, shared.ErrAuthFailed) {
			p.logger.Error("login check failed", "error", err)
			status = http.StatusInternalServerError
		}

		v := newView(r, "Prijava", map[string]string{"Korime": username})
		v.Greska = server.OpisBadData
		p.render(w, status, "prijava.html", v)
		return
	}

	if _, err := p.sessions.Start(w, r, user); err != nil {
		p.logger.Error("failed to start session", "user", user.Username(), "error", err)
		v := newView(r, "Prijava", nil)
		v.Greska = server.OpisInternal
		p.render(w, http.StatusInternalServerError, "prijava.html", v)
		return
	}

	p.logger.Info("user logged in", "user", user.Username())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (p *Pages) registerForm(w http.ResponseWriter, r *http.Request) {
	p.render(w, http.StatusOK, "registracija.html", newView(r, "Registracija", nil))
}

func (p *Pages) register(w http.ResponseWriter, r *http.Request) {
	req := server.CreateUserRequest{
		Email:          r.FormValue("email"),
		Korime:         r.FormValue("korime"),
		PocetnaLozinka: r.FormValue("lozinka"),
		Ime:            r.FormValue("ime"),
		Prezime:        r.FormValue("prezime"),
	}
	req.Normalize()

	fail := func(status int, msg string) {
		v := newView(r, "Registracija", req)
		v.Greska = msg
		p.render(w, status, "registracija.html", v)
	}

	if err := server.Validate(req); err != nil {
		res := server.ValidationResult(err)
		msg := server.OpisBadData
		if m, ok := res.Body.(server.Message); ok {
			msg = m.Opis
			if m.Polje != "" {
				msg += ": " + m.Polje
			}
		}
		fail(res.Status, msg)
		return
	}

	user, err := server.NewUserFromRequest(p.hasher, req)
	if err != nil {
		fail(http.StatusBadRequest, server.OpisBadData)
		return
	}

	if err := p.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			fail(http.StatusConflict, server.OpisUserExists)
			return
		}
		p.logger.Error("failed to register user", "error", err)
		fail(http.StatusInternalServerError, server.OpisInternal)
		return
	}

	p.logger.Info("user registered", "user", user.Username())
	http.Redirect(w, r, "/prijava", http.StatusSeeOther)
}

func (p *Pages) logout(w http.ResponseWriter, r *http.Request) {
	if err := p.sessions.Destroy(w, r); err != nil {
		p.logger.Warn("failed to destroy session", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (p *Pages) currentUser(r *http.Request) (*models.User, error) {
	s, _ := auth.FromContext(r.Context())
	return p.store.Users().Get(r.Context(), s.UserID)
}

func (p *Pages) profile(w http.ResponseWriter, r *http.Request) {
	user, err := p.currentUser(r)
	if err != nil {
		p.logger.Error("failed to load profile", "error", err)
		http.Redirect(w, r, "/prijava", http.StatusSeeOther)
		return
	}
	p.render(w, http.StatusOK, "profil.html", newView(r, "Profil", user))
}

func (p *Pages) updateProfile(w http.ResponseWriter, r *http.Request) {
	s, _ := auth.FromContext(r.Context())
	upd := server.UserUpdate{
		Email:   server.NormalizeEmail(r.FormValue("email")),
		Ime:     r.FormValue("ime"),
		Prezime: r.FormValue("prezime"),
		Lozinka: r.FormValue("lozinka"),
	}

	if err := server.Validate(upd); err != nil {
		user, _ := p.currentUser(r)
		v := newView(r, "Profil", user)
		v.Greska = server.OpisBadData
		p.render(w, http.StatusBadRequest, "profil.html", v)
		return
	}

	user, err := p.store.UpdateUser(r.Context(), s.Username, func(u *models.User) error {
		return server.ApplyUserUpdate(p.hasher, u, upd)
	})
	if err != nil {
		status, msg := http.StatusInternalServerError, server.OpisInternal
		if errors.Is(err, shared.ErrConflict) {
			status, msg = http.StatusConflict, server.OpisUserExists
		} else {
			p.logger.Error("failed to update profile", "error", err)
		}

		current, _ := p.currentUser(r)
		v := newView(r, "Profil", current)
		v.Greska = msg
		p.render(w, status, "profil.html", v)
		return
	}

	v := newView(r, "Profil", user)
	v.Poruka = "spremljeno"
	p.render(w, http.StatusOK, "profil.html", v)
}

func (p *Pages) favorites(w http.ResponseWriter, r *http.Request) {
	s, _ := auth.FromContext(r.Context())
	favorites, err := p.store.Favorites().ListByUser(r.Context(), s.UserID)
	if err != nil {
		p.logger.Error("failed to list favorites", "error", err)
		v := newView(r, "Favoriti", nil)
		v.Greska = server.OpisInternal
		p.render(w, http.StatusInternalServerError, "favoriti.html", v)
		return
	}
	p.render(w, http.StatusOK, "favoriti.html", newView(r, "Favoriti", favorites))
}

// searchView is the data of the search page.
type searchView struct {
	Trazi    string
	Stranica int
	Rezultat *services.SearchResult
}

// searchPage renders the search form. With a trazi query the first results
// are rendered server-side as well.
func (p *Pages) searchPage(w http.ResponseWriter, r *http.Request) {
	sv := searchView{
		Trazi:    strings.TrimSpace(r.URL.Query().Get("trazi")),
		Stranica: server.ParsePage(r.URL.Query().Get("stranica")),
	}
	v := newView(r, "Pretraživanje serija", &sv)

	if sv.Trazi != "" {
		result, err := p.searchResult(r, sv.Trazi, sv.Stranica)
		if err != nil {
			p.logger.Warn("series search failed", "query", sv.Trazi, "error", err)
			v.Greska = server.OpisUpstream
			p.render(w, http.StatusBadGateway, "pretrazivanje.html", v)
			return
		}
		sv.Rezultat = result
	}

	p.render(w, http.StatusOK, "pretrazivanje.html", v)
}

func (p *Pages) searchResult(r *http.Request, query string, page int) (*services.SearchResult, error) {
	resp, err := p.catalog.SearchSeries(r.Context(), query, page)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, shared.ErrAPIRequest
	}

	var result services.SearchResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (p *Pages) seriesPage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("id")))
	if err != nil || id <= 0 {
		v := newView(r, "Detalji serije", nil)
		v.Greska = server.OpisMissingField + ": id"
		p.render(w, http.StatusExpectationFailed, "serija.html", v)
		return
	}

	series, err := p.catalog.Series(r.Context(), id)
	if err != nil {
		status, msg := http.StatusBadGateway, server.OpisUpstream
		if errors.Is(err, shared.ErrSeriesNotFound) {
			status, msg = http.StatusNotFound, server.OpisNotFound
		}
		v := newView(r, "Detalji serije", nil)
		v.Greska = msg
		p.render(w, status, "serija.html", v)
		return
	}

	p.render(w, http.StatusOK, "serija.html", newView(r, series.Name, series))
}

// favoriteView is the data of the favorite detail page.
type favoriteView struct {
	Favorit *models.Favorite
	Serija  *services.Series
}

func (p *Pages) favoritePage(w http.ResponseWriter, r *http.Request) {
	s, _ := auth.FromContext(r.Context())
	detail, err := server.LoadFavoriteDetail(r.Context(), p.store.Favorites(), p.catalog, s.UserID, r.URL.Query().Get("id"))
	if err != nil {
		res := server.FromError(err, false)
		if res.Err() != nil {
			p.logger.Warn("favorite detail failed", "error", err)
		}
		v := newView(r, "Favorit", nil)
		if m, ok := res.Body.(server.Message); ok {
			v.Greska = m.Opis
		}
		p.render(w, res.Status, "favorit.html", v)
		return
	}

	var series services.Series
	if err := json.Unmarshal(detail.Serija, &series); err != nil {
		p.logger.Warn("failed to decode favorite series", "error", err)
	}

	p.render(w, http.StatusOK, "favorit.html", newView(r, detail.Favorit.Name(), favoriteView{
		Favorit: detail.Favorit,
		Serija:  &series,
	}))
}
