package ui

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/serije/internal/models"
)

const dateLayout = "2006-01-02 15:04"

var (
	headerStyle = NewBold("#7D56F4").Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = NewStyle("#626262")
)

// NewTable returns a bordered table with the CLI header and cell styles.
func NewTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// UsersTable renders users as a table of username, email, name and creation time.
func UsersTable(users []*models.User) string {
	t := NewTable("Korime", "Email", "Ime", "Prezime", "Kreiran")
	for _, u := range users {
		t.Row(u.Username(), u.Email(), u.FirstName(), u.LastName(), u.CreatedAt().Format(dateLayout))
	}
	return t.Render()
}

// FavoritesTable renders favorites as a table of id, TMDB id, name and creation time.
func FavoritesTable(favorites []*models.Favorite) string {
	t := NewTable("ID", "TMDB", "Naziv", "Dodano")
	for _, f := range favorites {
		t.Row(f.ID(), strconv.Itoa(f.SeriesID()), f.Name(), f.CreatedAt().Format(dateLayout))
	}
	return t.Render()
}
