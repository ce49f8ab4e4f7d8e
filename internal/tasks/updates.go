package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	LoadFavorites Phase = iota
	RefreshFavorites
	LoadUsers
	ExportFavorites
	WriteManifest
)

func (p Phase) String() string {
	switch p {
	case LoadFavorites:
		return "load_favorites"
	case RefreshFavorites:
		return "refresh_favorites"
	case LoadUsers:
		return "load_users"
	case ExportFavorites:
		return "export_favorites"
	case WriteManifest:
		return "write_manifest"
	default:
		return ""
	}
}

func loadFavoritesUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadFavorites,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loaded %d favorites", total),
	}
}

func refreshedUpdate(step, total int, res RefreshItemResult) ProgressUpdate {
	var msg string
	switch {
	case res.Error != nil:
		msg = fmt.Sprintf("[%d/%d] ✗ %d: %v", step, total, res.SeriesID, res.Error)
	case res.Updated:
		msg = fmt.Sprintf("[%d/%d] ✓ %s (updated)", step, total, res.Name)
	default:
		msg = fmt.Sprintf("[%d/%d] %s", step, total, res.Name)
	}
	return ProgressUpdate{Phase: RefreshFavorites, Step: step, Total: total, Message: msg, Data: res}
}

func loadUsersUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadUsers,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Exporting favorites of %d users...", total),
	}
}

func exportCompletedUpdate(step, total int, username string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportFavorites,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d favorites)", step, total, username, count),
	}
}

func exportFailedUpdate(step, total int, username string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportFavorites,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, username, err),
	}
}

func manifestUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteManifest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Manifest written to %s", path),
	}
}
