package formatter

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/serije/internal/models"
	"github.com/desertthunder/serije/internal/shared"
	th "github.com/desertthunder/serije/internal/testing"
)

func testExport() *FavoritesExport {
	user := models.NewUser(1, "ana", "ana@example.com", "hash")
	user.SetID("user-1")

	added := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	got := models.NewFavorite(1, "user-1", 1399, "Game of Thrones", "/got.jpg")
	got.SetID("fav-1")
	got.SetCreatedAt(added)

	unnamed := models.NewFavorite(2, "user-1", 1396, "", "")
	unnamed.SetID("fav-2")
	unnamed.SetCreatedAt(added)

	return &FavoritesExport{
		User:       user,
		Favorites:  []*models.Favorite{got, unnamed},
		ExportedAt: added,
	}
}

func TestParseFormat(t *testing.T) {
	tt := []struct {
		in   string
		want Format
	}{
		{"csv", FormatCSV},
		{"CSV", FormatCSV},
		{"markdown", FormatMarkdown},
		{"md", FormatMarkdown},
		{"txt", FormatText},
		{"text", FormatText},
		{" json ", FormatJSON},
	}

	for _, tc := range tt {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseFormat(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		if _, err := ParseFormat("xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("extension", func(t *testing.T) {
		if FormatMarkdown.Extension() != "md" || FormatCSV.Extension() != "csv" {
			t.Error("unexpected extensions")
		}
	})
}

func TestExporters(t *testing.T) {
	export := testExport()

	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(export)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
		}
		if lines[0] != "ID,SeriesID,Name,Poster,Added" {
			t.Errorf("CSV missing headers, got: %s", lines[0])
		}
		if lines[1] != "fav-1,1399,Game of Thrones,https://image.tmdb.org/t/p/w500/got.jpg,2024-03-01T12:00:00Z" {
			t.Errorf("unexpected first row: %s", lines[1])
		}
		if !strings.HasPrefix(lines[2], "fav-2,1396,,,") {
			t.Errorf("unexpected second row: %s", lines[2])
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(export)
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Favoriti: ana",
			"**Serija**: 2",
			"## Serije",
			"1. Game of Thrones (TMDB 1399)",
			"![Game of Thrones](https://image.tmdb.org/t/p/w500/got.jpg)",
			"2. Serija 1396 (TMDB 1396)",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(export)
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Korisnik: ana") || !strings.Contains(output, "Favoriti: 2") {
			t.Errorf("Text missing header, got: %s", output)
		}
		if !strings.Contains(output, "1. Game of Thrones [1399]") {
			t.Errorf("Text missing first favorite")
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(export)
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var decoded struct {
			Korisnik map[string]any   `json:"korisnik"`
			Favoriti []map[string]any `json:"favoriti"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Korisnik["korime"] != "ana" {
			t.Errorf("expected korime ana, got %v", decoded.Korisnik)
		}
		if _, ok := decoded.Korisnik["lozinka"]; ok {
			t.Error("password hash must not be exported")
		}
		if len(decoded.Favoriti) != 2 || decoded.Favoriti[0]["serija_id"] != float64(1399) {
			t.Errorf("unexpected favorites %v", decoded.Favoriti)
		}
	})

	t.Run("ExportToJSON Empty", func(t *testing.T) {
		data, err := ExportToJSON(&FavoritesExport{User: export.User})
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}
		if !strings.Contains(string(data), `"favoriti": []`) {
			t.Errorf("expected empty array, got %s", data)
		}
	})

	t.Run("Export Unknown Format", func(t *testing.T) {
		if _, err := Export(export, Format("xml")); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestWriteExport(t *testing.T) {
	export := testExport()

	t.Run("WithDefaultPath", func(t *testing.T) {
		tempDir := t.TempDir()
		originalDir := th.MustGetwd(t)
		th.MustChdir(t, tempDir)
		defer th.MustChdir(t, originalDir)

		path, err := WriteExport(export, FormatMarkdown, "")
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if path != "ana_favoriti.md" {
			t.Errorf("expected ana_favoriti.md, got %s", path)
		}

		th.AssertFileExists(t, path)
		if !strings.Contains(th.MustReadFile(t, path), "# Favoriti: ana") {
			t.Error("written file missing content")
		}
	})

	t.Run("WithCustomPath", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "izvoz.csv")

		got, err := WriteExport(export, FormatCSV, path)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
		th.AssertFileExists(t, path)
	})

	t.Run("Unwritable Path", func(t *testing.T) {
		_, err := WriteExport(export, FormatText, filepath.Join(t.TempDir(), "nema", "dir", "x.txt"))
		if err == nil {
			t.Error("expected write error")
		}
	})
}
