// package formatter exports a user's favorite series to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/serije/internal/models"
	"github.com/desertthunder/serije/internal/services"
	"github.com/desertthunder/serije/internal/shared"
)

// Format names an export format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
)

// Formats lists the supported formats in display order.
var Formats = []Format{FormatCSV, FormatMarkdown, FormatText, FormatJSON}

// ParseFormat accepts a format name or a common alias ("md", "text").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Extension returns the file extension used for f.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// FavoritesExport is a user's favorites as exported at one point in time.
type FavoritesExport struct {
	User       *models.User
	Favorites  []*models.Favorite
	ExportedAt time.Time
}

// NewFavoritesExport stamps an export of favorites owned by user.
func NewFavoritesExport(user *models.User, favorites []*models.Favorite) *FavoritesExport {
	return &FavoritesExport{User: user, Favorites: favorites, ExportedAt: time.Now().UTC()}
}

// Export renders export in the given format.
func Export(export *FavoritesExport, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown:
		return ExportToMarkdown(export)
	case FormatText:
		return ExportToText(export)
	case FormatJSON:
		return ExportToJSON(export)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// ExportToCSV converts a FavoritesExport to CSV format with columns: ID, SeriesID, Name, Poster, Added
func ExportToCSV(export *FavoritesExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "SeriesID", "Name", "Poster", "Added"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, fav := range export.Favorites {
		record := []string{
			fav.ID(),
			strconv.Itoa(fav.SeriesID()),
			fav.Name(),
			services.PosterURL(fav.PosterPath()),
			fav.CreatedAt().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a FavoritesExport to Markdown with poster thumbnails
func ExportToMarkdown(export *FavoritesExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Favoriti: %s\n\n", export.User.Username())
	fmt.Fprintf(&buf, "**Serija**: %d\n", len(export.Favorites))
	fmt.Fprintf(&buf, "**Izvezeno**: %s\n\n", export.ExportedAt.Format(time.RFC3339))

	buf.WriteString("## Serije\n\n")
	for i, fav := range export.Favorites {
		fmt.Fprintf(&buf, "%d. %s (TMDB %d)\n", i+1, displayName(fav), fav.SeriesID())
		if poster := services.PosterURL(fav.PosterPath()); poster != "" {
			fmt.Fprintf(&buf, "   ![%s](%s)\n", displayName(fav), poster)
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts a FavoritesExport to plain text format
func ExportToText(export *FavoritesExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Korisnik: %s\n", export.User.Username())
	fmt.Fprintf(&buf, "Favoriti: %d\n\n", len(export.Favorites))

	for i, fav := range export.Favorites {
		fmt.Fprintf(&buf, "%d. %s [%d]\n", i+1, displayName(fav), fav.SeriesID())
	}

	return buf.Bytes(), nil
}

type exportJSON struct {
	Korisnik *models.User      `json:"korisnik"`
	Favoriti []*models.Favorite `json:"favoriti"`
	Izvezeno time.Time         `json:"izvezeno"`
}

// ExportToJSON converts a FavoritesExport to indented JSON
func ExportToJSON(export *FavoritesExport) ([]byte, error) {
	favorites := export.Favorites
	if favorites == nil {
		favorites = []*models.Favorite{}
	}

	data, err := json.MarshalIndent(exportJSON{
		Korisnik: export.User,
		Favoriti: favorites,
		Izvezeno: export.ExportedAt,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteExport renders export and writes it to path.
//
// Defaults to {username}_favoriti.{ext} as the filename.
func WriteExport(export *FavoritesExport, format Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_favoriti.%s", export.User.Username(), format.Extension())
	}

	data, err := Export(export, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}

func displayName(fav *models.Favorite) string {
	if fav.Name() != "" {
		return fav.Name()
	}
	return fmt.Sprintf("Serija %d", fav.SeriesID())
}
