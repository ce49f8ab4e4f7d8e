package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/serije/internal/formatter"
	"github.com/desertthunder/serije/internal/models"
)

// BulkExportOpts contains configuration for bulk favorites exports.
type BulkExportOpts struct {
	Format     formatter.Format // Export format: csv, markdown, txt, json
	OutputDir  string           // Base output directory (default: favoriti_export_{epoch})
	NumWorkers int              // Concurrent workers (default: 4, max: 10)
}

// UserExportResult is the outcome of exporting one user's favorites.
type UserExportResult struct {
	Username  string `json:"korime"`
	Favorites int    `json:"favoriti"`
	File      string `json:"datoteka,omitempty"`
	Success   bool   `json:"uspjeh"`
	Error     error  `json:"-"`
	ErrorText string `json:"greska,omitempty"`
}

// BulkExportResult summarizes a bulk export run.
type BulkExportResult struct {
	TotalUsers        int                `json:"korisnika"`
	SuccessfulExports int                `json:"uspjesnih"`
	FailedExports     int                `json:"neuspjesnih"`
	OutputDirectory   string             `json:"direktorij"`
	ManifestPath      string             `json:"-"`
	Format            formatter.Format   `json:"format"`
	ExportedAt        time.Time          `json:"izvezeno"`
	Results           []UserExportResult `json:"rezultati"`
}

// BulkExport writes one favorites file per user into opts.OutputDir and an
// export_manifest.json next to them.
func (e *Engine) BulkExport(ctx context.Context, progress chan<- ProgressUpdate, opts BulkExportOpts) (*BulkExportResult, error) {
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("favoriti_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = defaultWorkers
	}
	if opts.NumWorkers > maxWorkers {
		opts.NumWorkers = maxWorkers
	}

	users, err := e.store.Users().List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	e.sendProgress(progress, loadUsersUpdate(len(users)))

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		TotalUsers:      len(users),
		OutputDirectory: opts.OutputDir,
		Format:          opts.Format,
		ExportedAt:      time.Now().UTC(),
		Results:         make([]UserExportResult, 0, len(users)),
	}

	jobs := make(chan *models.User, len(users))
	for _, u := range users {
		jobs <- u
	}
	close(jobs)

	results := make(chan UserExportResult, len(users))
	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			e.sendProgress(progress, exportCompletedUpdate(completed, len(users), res.Username, res.Favorites))
		} else {
			result.FailedExports++
			e.sendProgress(progress, exportFailedUpdate(completed, len(users), res.Username, res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := writeManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	e.sendProgress(progress, manifestUpdate(manifestPath))

	return result, nil
}

func (e *Engine) exportWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan *models.User, results chan<- UserExportResult, opts BulkExportOpts) {
	defer wg.Done()

	for user := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		results <- e.exportOne(ctx, user, opts)
	}
}

func (e *Engine) exportOne(ctx context.Context, user *models.User, opts BulkExportOpts) UserExportResult {
	res := UserExportResult{Username: user.Username()}

	favorites, err := e.store.Favorites().ListByUser(ctx, user.ID())
	if err != nil {
		res.Error = fmt.Errorf("failed to load favorites: %w", err)
		res.ErrorText = res.Error.Error()
		return res
	}
	res.Favorites = len(favorites)

	path := filepath.Join(opts.OutputDir, fmt.Sprintf("%s_favoriti.%s", user.Username(), opts.Format.Extension()))
	file, err := formatter.WriteExport(formatter.NewFavoritesExport(user, favorites), opts.Format, path)
	if err != nil {
		res.Error = err
		res.ErrorText = err.Error()
		return res
	}

	res.File = file
	res.Success = true
	return res
}

func writeManifest(result *BulkExportResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
