package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/serije/internal/auth"
	"github.com/desertthunder/serije/internal/models"
	"github.com/desertthunder/serije/internal/repositories"
	"github.com/desertthunder/serije/internal/server"
	"github.com/desertthunder/serije/internal/services"
	"github.com/desertthunder/serije/internal/shared"
	tu "github.com/desertthunder/serije/internal/testing"
	"golang.org/x/crypto/bcrypt"
)

type testSite struct {
	handler http.Handler
	store   *repositories.Store
	hasher  *auth.Hasher
	cookie  string
}

func setupSite(t *testing.T) *testSite {
	t.Helper()

	db, err := shared.NewDatabase(shared.MemoryDatabase)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	fake := tu.NewFakeTMDB(t, map[int]string{1399: "Game of Thrones"})

	cfg := shared.DefaultConfig()
	cfg.Server.LoginRateLimit = 0
	cfg.TMDB.BaseURL = fake.URL
	cfg.TMDB.MaxRetries = 0
	cfg.Security.BcryptCost = bcrypt.MinCost

	logger := log.New(io.Discard)
	store := repositories.NewStore(db)
	sessions := auth.NewManager(store.Sessions(), cfg.Session, logger)
	hasher := auth.NewHasher(cfg.Security)
	catalog := services.NewTMDBService(cfg.TMDB, nil, logger)

	srv := server.New(server.Options{
		Config:   cfg,
		Store:    store,
		Catalog:  catalog,
		Hasher:   hasher,
		Sessions: sessions,
		Logger:   logger,
	})

	pages, err := New(Options{
		Store:      store,
		Catalog:    catalog,
		Hasher:     hasher,
		Sessions:   sessions,
		Logger:     logger,
		LoginLimit: srv.LoginLimiter(),
	})
	if err != nil {
		t.Fatalf("failed to build pages: %v", err)
	}
	srv.Mount(pages)

	return &testSite{handler: srv, store: store, hasher: hasher, cookie: cfg.Session.CookieName}
}

func (s *testSite) get(t *testing.T, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	return s.serve(req, cookies)
}

func (s *testSite) postForm(t *testing.T, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.serve(req, cookies)
}

func (s *testSite) postJSON(t *testing.T, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return s.serve(req, cookies)
}

func (s *testSite) serve(req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testSite) createUser(t *testing.T, username, password string) *models.User {
	t.Helper()
	hash, err := s.hasher.Hash(password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := models.NewUser(0, username, username+"@example.com", hash)
	if err := s.store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

// login signs in through the login page and returns the session cookie.
func (s *testSite) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()
	rec := s.postForm(t, "/prijava", url.Values{"korime": {username}, "lozinka": {password}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected login redirect, got %d: %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == s.cookie {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func assertContains(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("expected body to contain %q, got:\n%s", want, rec.Body.String())
	}
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	assertStatus(t, rec, http.StatusSeeOther)
	if got := rec.Header().Get("Location"); got != location {
		t.Errorf("expected redirect to %s, got %s", location, got)
	}
}

func sessionState(t *testing.T, s *testSite, cookies ...*http.Cookie) map[string]any {
	t.Helper()
	rec := s.get(t, "/getSESSION", cookies...)
	assertStatus(t, rec, http.StatusOK)

	var state map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("failed to decode session state: %v", err)
	}
	return state
}

func TestPages(t *testing.T) {
	site := setupSite(t)
	site.createUser(t, "ana", "tajna")

	t.Run("Static Pages", func(t *testing.T) {
		for _, path := range []string{"/", "/dokumentacija", "/prijava", "/registracija", "/serijePretrazivanje"} {
			rec := site.get(t, path)
			assertStatus(t, rec, http.StatusOK)
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("%s: expected HTML, got %s", path, ct)
			}
			assertContains(t, rec, `href="/prijava"`)
		}
	})

	t.Run("User List", func(t *testing.T) {
		rec := site.get(t, "/korisnici")
		assertStatus(t, rec, http.StatusOK)
		assertContains(t, rec, "ana@example.com")
	})

	t.Run("Unmatched Path Stays JSON", func(t *testing.T) {
		rec := site.get(t, "/nepostojeca")
		assertStatus(t, rec, http.StatusNotFound)
		assertContains(t, rec, `"opis":"nema resursa"`)
	})

	t.Run("Protected Pages Redirect", func(t *testing.T) {
		for _, path := range []string{"/profil", "/favoriti", "/prikaziDetaljeFavoritSerije?id=x"} {
			assertRedirect(t, site.get(t, path), "/prijava")
		}
	})
}

func TestLoginFlow(t *testing.T) {
	site := setupSite(t)
	site.createUser(t, "ana", "tajna")

	t.Run("Wrong Password", func(t *testing.T) {
		rec := site.postForm(t, "/prijava", url.Values{"korime": {"ana"}, "lozinka": {"kriva"}})
		assertStatus(t, rec, http.StatusBadRequest)
		assertContains(t, rec, server.OpisBadData)
		assertContains(t, rec, `value="ana"`)
		if len(rec.Result().Cookies()) != 0 {
			t.Error("expected no session cookie on failed login")
		}
	})

	t.Run("Unknown User", func(t *testing.T) {
		rec := site.postForm(t, "/prijava", url.Values{"korime": {"nitko"}, "lozinka": {"tajna"}})
		assertStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("Session Lifecycle", func(t *testing.T) {
		if state := sessionState(t, site); state["prijavljen"] != false {
			t.Errorf("expected anonymous state, got %v", state)
		}

		cookie := site.login(t, "ana", "tajna")
		if !cookie.HttpOnly {
			t.Error("expected HttpOnly session cookie")
		}

		state := sessionState(t, site, cookie)
		if state["prijavljen"] != true || state["korime"] != "ana" {
			t.Errorf("expected ana logged in, got %v", state)
		}

		rec := site.get(t, "/", cookie)
		assertContains(t, rec, `href="/odjava"`)

		rec = site.get(t, "/odjava", cookie)
		assertRedirect(t, rec, "/")

		var expired bool
		for _, c := range rec.Result().Cookies() {
			if c.Name == site.cookie && c.MaxAge < 0 {
				expired = true
			}
		}
		if !expired {
			t.Error("expected session cookie to be expired")
		}

		if state := sessionState(t, site, cookie); state["prijavljen"] != false {
			t.Errorf("expected session gone after logout, got %v", state)
		}
	})
}

func TestRegistration(t *testing.T) {
	site := setupSite(t)

	form := url.Values{
		"email":   {"ivo@example.com"},
		"korime":  {"ivo"},
		"lozinka": {"lozinka"},
		"ime":     {"Ivo"},
	}

	assertRedirect(t, site.postForm(t, "/registracija", form), "/prijava")

	user, err := site.store.Users().GetByUsername(context.Background(), "ivo")
	if err != nil {
		t.Fatalf("expected registered user: %v", err)
	}
	if user.FirstName() != "Ivo" {
		t.Errorf("expected first name Ivo, got %q", user.FirstName())
	}

	site.login(t, "ivo", "lozinka")

	t.Run("Duplicate", func(t *testing.T) {
		rec := site.postForm(t, "/registracija", form)
		assertStatus(t, rec, http.StatusConflict)
		assertContains(t, rec, server.OpisUserExists)
	})

	t.Run("Missing Field", func(t *testing.T) {
		rec := site.postForm(t, "/registracija", url.Values{"korime": {"x"}, "lozinka": {"y"}})
		assertStatus(t, rec, http.StatusExpectationFailed)
		assertContains(t, rec, "email")
	})
}

func TestProfile(t *testing.T) {
	site := setupSite(t)
	site.createUser(t, "ana", "tajna")
	site.createUser(t, "ivo", "x")
	cookie := site.login(t, "ana", "tajna")

	rec := site.get(t, "/profil", cookie)
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec, "ana@example.com")

	rec = site.postForm(t, "/profil", url.Values{"ime": {"Ana"}, "prezime": {"Anić"}, "lozinka": {"nova"}}, cookie)
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec, "spremljeno")

	user, err := site.store.Users().GetByUsername(context.Background(), "ana")
	if err != nil {
		t.Fatalf("failed to load user: %v", err)
	}
	if user.FirstName() != "Ana" || user.LastName() != "Anić" {
		t.Errorf("expected profile updated, got %q %q", user.FirstName(), user.LastName())
	}
	site.login(t, "ana", "nova")

	t.Run("Email Taken", func(t *testing.T) {
		rec := site.postForm(t, "/profil", url.Values{"email": {"ivo@example.com"}}, cookie)
		assertStatus(t, rec, http.StatusConflict)
	})
}

func TestSeriesPages(t *testing.T) {
	site := setupSite(t)
	user := site.createUser(t, "ana", "tajna")
	cookie := site.login(t, "ana", "tajna")

	t.Run("Search Page", func(t *testing.T) {
		rec := site.get(t, "/serijePretrazivanje?trazi=Dexter")
		assertStatus(t, rec, http.StatusOK)
		assertContains(t, rec, "Dexter")
		assertContains(t, rec, "/prikaziDetaljeSerije?id=1")
	})

	t.Run("Search JSON", func(t *testing.T) {
		rec := site.postJSON(t, "/serijePretrazivanje", `{"trazi":"lost","stranica":3}`)
		assertStatus(t, rec, http.StatusOK)
		assertContains(t, rec, `"page":3`)
		assertContains(t, rec, `"name":"lost"`)

		rec = site.postForm(t, "/serijePretrazivanje", url.Values{"trazi": {"lost"}})
		assertStatus(t, rec, http.StatusOK)

		rec = site.postJSON(t, "/serijePretrazivanje", `{"trazi":" "}`)
		assertStatus(t, rec, http.StatusExpectationFailed)
	})

	t.Run("Detail Page", func(t *testing.T) {
		rec := site.get(t, "/prikaziDetaljeSerije?id=1399", cookie)
		assertStatus(t, rec, http.StatusOK)
		assertContains(t, rec, "Game of Thrones")
		assertContains(t, rec, "https://image.tmdb.org/t/p/w500/1399.jpg")
		assertContains(t, rec, "dodaj-favorit")

		assertStatus(t, site.get(t, "/prikaziDetaljeSerije?id=4242"), http.StatusNotFound)
		assertStatus(t, site.get(t, "/prikaziDetaljeSerije?id=abc"), http.StatusExpectationFailed)
	})

	t.Run("Detail JSON", func(t *testing.T) {
		rec := site.postJSON(t, "/dajDetaljeSerije", `{"id":1399}`)
		assertStatus(t, rec, http.StatusOK)
		assertContains(t, rec, `"name":"Game of Thrones"`)

		rec = site.postJSON(t, "/dajDetaljeSerije", `{"id":"1399"}`)
		assertStatus(t, rec, http.StatusOK)

		assertStatus(t, site.postJSON(t, "/dajDetaljeSerije", `{}`), http.StatusExpectationFailed)
	})

	fav := models.NewFavorite(0, user.ID(), 1399, "Game of Thrones", "/1399.jpg")
	if err := site.store.Favorites().Create(context.Background(), fav); err != nil {
		t.Fatalf("failed to create favorite: %v", err)
	}

	t.Run("Favorites Page", func(t *testing.T) {
		rec := site.get(t, "/favoriti", cookie)
		assertStatus(t, rec, http.StatusOK)
		assertContains(t, rec, "/prikaziDetaljeFavoritSerije?id="+fav.ID())
	})

	t.Run("Favorite Detail Page", func(t *testing.T) {
		rec := site.get(t, "/prikaziDetaljeFavoritSerije?id="+fav.ID(), cookie)
		assertStatus(t, rec, http.StatusOK)
		assertContains(t, rec, "Game of Thrones")

		assertStatus(t, site.get(t, "/prikaziDetaljeFavoritSerije?id=nema", cookie), http.StatusNotFound)
	})

	t.Run("Favorite Detail JSON", func(t *testing.T) {
		body := `{"id":"` + fav.ID() + `"}`

		assertStatus(t, site.postJSON(t, "/dajDetaljeFavoritSerije", body), http.StatusUnauthorized)

		rec := site.postJSON(t, "/dajDetaljeFavoritSerije", body, cookie)
		assertStatus(t, rec, http.StatusOK)
		assertContains(t, rec, `"favorit"`)
		assertContains(t, rec, `"serija"`)
	})
}
