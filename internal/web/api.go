package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/desertthunder/serije/internal/auth"
	"github.com/desertthunder/serije/internal/server"
)

// searchRequest is the body of POST /serijePretrazivanje.
type searchRequest struct {
	Trazi    string `json:"trazi"`
	Stranica int    `json:"stranica"`
}

// idRequest is the body of the detail lookups. Series ids arrive as numbers,
// favorite ids as strings; both decode into ID.
type idRequest struct {
	ID flexibleID `json:"id"`
}

type flexibleID string

// UnmarshalJSON implements [json.Unmarshaler].
func (f *flexibleID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	*f = flexibleID(strings.Trim(s, `"`))
	return nil
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func (p *Pages) search(r *http.Request) server.Result {
	var req searchRequest
	if isJSON(r) {
		if err := server.DecodeJSON(r, &req); err != nil {
			return server.BadData()
		}
	} else {
		req.Trazi = r.FormValue("trazi")
		req.Stranica = server.ParsePage(r.FormValue("stranica"))
	}

	query := strings.TrimSpace(req.Trazi)
	if query == "" {
		return server.MissingField("trazi")
	}

	resp, err := p.catalog.SearchSeries(r.Context(), query, max(req.Stranica, 1))
	return server.Relay(resp, err)
}

func readID(r *http.Request) (string, error) {
	if !isJSON(r) {
		return strings.TrimSpace(r.FormValue("id")), nil
	}

	var req idRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		return "", err
	}
	return strings.TrimSpace(string(req.ID)), nil
}

func (p *Pages) seriesDetail(r *http.Request) server.Result {
	raw, err := readID(r)
	if err != nil {
		return server.BadData()
	}

	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return server.MissingField("id")
	}

	resp, err := p.catalog.SeriesDetail(r.Context(), id)
	return server.Relay(resp, err)
}

func (p *Pages) favoriteDetail(r *http.Request) server.Result {
	id, err := readID(r)
	if err != nil {
		return server.BadData()
	}
	if id == "" {
		return server.MissingField("id")
	}

	s, _ := auth.FromContext(r.Context())
	detail, err := server.LoadFavoriteDetail(r.Context(), p.store.Favorites(), p.catalog, s.UserID, id)
	if err != nil {
		return server.FromError(err, false)
	}
	return server.OK(detail)
}

// sessionState is the body of GET /getSESSION.
type sessionState struct {
	Prijavljen bool   `json:"prijavljen"`
	Korime     string `json:"korime,omitempty"`
}

func (p *Pages) session(w http.ResponseWriter, r *http.Request) {
	var state sessionState
	if s, ok := auth.FromContext(r.Context()); ok {
		state = sessionState{Prijavljen: true, Korime: s.Username}
	}
	server.WriteJSON(w, http.StatusOK, state)
}
