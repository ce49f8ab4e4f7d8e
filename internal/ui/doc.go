// Package ui styles command-line output with lipgloss.
//
// A [Palette] colors status lines (title, ok, error, warning, help) and
// [UsersTable] / [FavoritesTable] render bordered tables for the users and
// favorites commands. Colors degrade to plain text when the output is not a
// terminal, so the same renderers are used in tests.
package ui
