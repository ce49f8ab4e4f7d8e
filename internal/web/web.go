// Package web serves the server-rendered pages of the series catalog.
//
// Pages are html/template views embedded in the binary. Every view receives
// the session state (Prijavljen, Korime) so the layout can switch between
// the login and logout links. The JSON helpers used by page scripts
// (/serijePretrazivanje POST, /dajDetaljeSerije, /dajDetaljeFavoritSerije,
// /getSESSION) live next to the pages that call them.
//
// Routes
//
//	GET       /                            home
//	GET       /dokumentacija               static documentation
//	GET       /korisnici                   user list
//	GET/POST  /prijava                     login form, creates a session
//	GET/POST  /registracija                registration form
//	GET       /odjava                      destroys the session
//	GET/POST  /profil                      profile view and update (auth)
//	GET       /favoriti                    favorites list (auth)
//	GET/POST  /serijePretrazivanje         search page / JSON search
//	GET       /prikaziDetaljeSerije        series detail page
//	POST      /dajDetaljeSerije            JSON series detail
//	GET       /prikaziDetaljeFavoritSerije favorite detail page (auth)
//	POST      /dajDetaljeFavoritSerije     JSON favorite detail (auth)
//	GET       /getSESSION                  JSON session state
//
// Views that need a session redirect to /prijava with 303 See Other.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/serije/internal/auth"
	"github.com/desertthunder/serije/internal/repositories"
	"github.com/desertthunder/serije/internal/server"
	"github.com/desertthunder/serije/internal/services"
	"github.com/desertthunder/serije/internal/shared"
	"github.com/go-chi/chi/v5"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutTemplate = "templates/layout.html"

// Options are the collaborators of [Pages].
type Options struct {
	Store      *repositories.Store
	Catalog    services.Catalog
	Hasher     *auth.Hasher
	Sessions   *auth.Manager
	Logger     *log.Logger
	LoginLimit server.Middleware
}

// Pages renders the HTML views and implements [server.Handler].
type Pages struct {
	store      *repositories.Store
	catalog    services.Catalog
	hasher     *auth.Hasher
	sessions   *auth.Manager
	logger     *log.Logger
	loginLimit server.Middleware
	views      map[string]*template.Template
}

// New parses the embedded templates and returns the page handlers.
func New(opts Options) (*Pages, error) {
	views, err := parseViews(templateFS)
	if err != nil {
		return nil, err
	}

	limit := opts.LoginLimit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	return &Pages{
		store:      opts.Store,
		catalog:    opts.Catalog,
		hasher:     opts.Hasher,
		sessions:   opts.Sessions,
		logger:     shared.WithLogger(opts.Logger, "component", "web"),
		loginLimit: limit,
		views:      views,
	}, nil
}

// parseViews builds one template set per page, each sharing the layout.
func parseViews(fsys fs.FS) (map[string]*template.Template, error) {
	pages, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, err
	}

	funcs := template.FuncMap{"poster": services.PosterURL}
	views := make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		if p == layoutTemplate {
			continue
		}

		t, err := template.New(path.Base(p)).Funcs(funcs).ParseFS(fsys, layoutTemplate, p)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", p, err)
		}
		views[path.Base(p)] = t
	}
	return views, nil
}

// Routes implements [server.Handler].
func (p *Pages) Routes(r chi.Router) {
	requirePage := auth.Require(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/prijava", http.StatusSeeOther)
	})
	requireJSON := auth.Require(func(w http.ResponseWriter, r *http.Request) {
		server.Unauthenticated().Write(w, r, nil)
	})

	r.Get("/", p.home)
	r.Get("/dokumentacija", p.documentation)
	r.Get("/korisnici", p.users)

	r.Get("/prijava", p.loginForm)
	r.With(p.loginLimit).Post("/prijava", p.login)
	r.Get("/registracija", p.registerForm)
	r.Post("/registracija", p.register)
	r.Get("/odjava", p.logout)

	r.With(requirePage).Get("/profil", p.profile)
	r.With(requirePage).Post("/profil", p.updateProfile)
	r.With(requirePage).Get("/favoriti", p.favorites)

	r.Get("/serijePretrazivanje", p.searchPage)
	r.Post("/serijePretrazivanje", server.Serve(p.logger, p.search))
	r.Get("/prikaziDetaljeSerije", p.seriesPage)
	r.Post("/dajDetaljeSerije", server.Serve(p.logger, p.seriesDetail))
	r.With(requirePage).Get("/prikaziDetaljeFavoritSerije", p.favoritePage)
	r.With(requireJSON).Post("/dajDetaljeFavoritSerije", server.Serve(p.logger, p.favoriteDetail))

	r.Get("/getSESSION", p.session)
}

// view is the data passed to every template.
type view struct {
	Naslov     string
	Prijavljen bool
	Korime     string
	Greska     string
	Poruka     string
	Data       any
}

func newView(r *http.Request, title string, data any) view {
	v := view{Naslov: title, Data: data}
	if s, ok := auth.FromContext(r.Context()); ok {
		v.Prijavljen = true
		v.Korime = s.Username
	}
	return v
}

// render executes a page into a buffer first so template failures become a
// clean 500 instead of a half-written page.
func (p *Pages) render(w http.ResponseWriter, status int, name string, v view) {
	t, ok := p.views[name]
	if !ok {
		p.logger.Error("unknown template", "name", name)
		http.Error(w, "interna greska", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
		p.logger.Error("failed to render template", "name", name, "error", err)
		http.Error(w, "interna greska", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
