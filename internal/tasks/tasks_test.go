package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/serije/internal/formatter"
	"github.com/desertthunder/serije/internal/models"
	"github.com/desertthunder/serije/internal/repositories"
	"github.com/desertthunder/serije/internal/services"
	"github.com/desertthunder/serije/internal/shared"
	tu "github.com/desertthunder/serije/internal/testing"
)

func setupStore(t *testing.T) *repositories.Store {
	t.Helper()

	db, err := shared.NewDatabase(shared.MemoryDatabase)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repositories.NewStore(db)
}

func seedUser(t *testing.T, store *repositories.Store, username string, series ...int) *models.User {
	t.Helper()
	ctx := context.Background()

	user := models.NewUser(0, username, username+"@example.com", "hash")
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	for _, id := range series {
		if err := store.Favorites().Create(ctx, models.NewFavorite(0, user.ID(), id, "", "")); err != nil {
			t.Fatalf("failed to create favorite: %v", err)
		}
	}
	return user
}

func newCatalog(t *testing.T, fake *tu.FakeTMDB) services.Catalog {
	cfg := shared.DefaultConfig().TMDB
	cfg.APIKey = "test"
	cfg.BaseURL = fake.URL
	cfg.MaxRetries = 0
	cfg.RateLimit = 0
	return services.NewTMDBService(cfg, nil, shared.NewLogger(nil))
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("Updates Changed Metadata", func(t *testing.T) {
		store := setupStore(t)
		fake := tu.NewFakeTMDB(t, map[int]string{1399: "Game of Thrones", 1396: "Breaking Bad"})
		ana := seedUser(t, store, "ana", 1399, 1396, 42)

		engine := NewEngine(store, newCatalog(t, fake), shared.NewLogger(nil))
		progress := make(chan ProgressUpdate, 16)

		result, err := engine.Refresh(ctx, progress, RefreshOpts{RateLimit: 100})
		if err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
		if result.Total != 3 || result.Updated != 2 || result.Failed != 1 {
			t.Errorf("unexpected result %+v", result)
		}

		favorites, err := store.Favorites().ListByUser(ctx, ana.ID())
		if err != nil {
			t.Fatalf("ListByUser failed: %v", err)
		}
		if favorites[0].Name() != "Game of Thrones" || favorites[0].PosterPath() != "/1399.jpg" {
			t.Errorf("favorite not refreshed: %s %s", favorites[0].Name(), favorites[0].PosterPath())
		}
		if favorites[2].Name() != "" {
			t.Errorf("unknown series should stay unnamed, got %s", favorites[2].Name())
		}

		close(progress)
		var phases []Phase
		for u := range progress {
			phases = append(phases, u.Phase)
		}
		if len(phases) != 4 || phases[0] != LoadFavorites {
			t.Errorf("unexpected progress phases %v", phases)
		}
	})

	t.Run("Second Run Unchanged", func(t *testing.T) {
		store := setupStore(t)
		fake := tu.NewFakeTMDB(t, map[int]string{1399: "Game of Thrones"})
		seedUser(t, store, "ana", 1399)
		engine := NewEngine(store, newCatalog(t, fake), nil)

		if _, err := engine.Refresh(ctx, nil, RefreshOpts{RateLimit: 100}); err != nil {
			t.Fatalf("first Refresh failed: %v", err)
		}
		result, err := engine.Refresh(ctx, nil, RefreshOpts{RateLimit: 100})
		if err != nil {
			t.Fatalf("second Refresh failed: %v", err)
		}
		if result.Unchanged != 1 || result.Updated != 0 {
			t.Errorf("expected unchanged favorite, got %+v", result)
		}
	})

	t.Run("Only Missing And Single User", func(t *testing.T) {
		store := setupStore(t)
		fake := tu.NewFakeTMDB(t, map[int]string{1399: "Game of Thrones", 1396: "Breaking Bad"})
		ana := seedUser(t, store, "ana", 1399)
		seedUser(t, store, "ivo", 1396)

		named := models.NewFavorite(0, ana.ID(), 1396, "Breaking Bad", "/1396.jpg")
		if err := store.Favorites().Create(ctx, named); err != nil {
			t.Fatalf("failed to create favorite: %v", err)
		}

		engine := NewEngine(store, newCatalog(t, fake), nil)
		result, err := engine.Refresh(ctx, nil, RefreshOpts{UserID: ana.ID(), OnlyMissing: true, RateLimit: 100})
		if err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
		if result.Total != 2 || result.Skipped != 1 || result.Updated != 1 {
			t.Errorf("unexpected result %+v", result)
		}
		if fake.Calls() != 1 {
			t.Errorf("expected 1 upstream call, got %d", fake.Calls())
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		store := setupStore(t)
		fake := tu.NewFakeTMDB(t, map[int]string{})
		seedUser(t, store, "ana", 1, 2, 3)
		engine := NewEngine(store, newCatalog(t, fake), nil)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		if _, err := engine.Refresh(cancelled, nil, RefreshOpts{}); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("No Catalog", func(t *testing.T) {
		engine := NewEngine(setupStore(t), nil, nil)
		if _, err := engine.Refresh(ctx, nil, RefreshOpts{}); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		opts := RefreshOpts{NumWorkers: 50}
		opts.defaults()
		if opts.NumWorkers != maxWorkers || opts.RateLimit != defaultRateLimit {
			t.Errorf("unexpected defaults %+v", opts)
		}
	})
}

func TestBulkExport(t *testing.T) {
	ctx := context.Background()

	t.Run("Writes Files And Manifest", func(t *testing.T) {
		store := setupStore(t)
		seedUser(t, store, "ana", 1399, 1396)
		seedUser(t, store, "ivo")

		dir := filepath.Join(t.TempDir(), "izvoz")
		engine := NewEngine(store, nil, nil)
		progress := make(chan ProgressUpdate, 8)

		result, err := engine.BulkExport(ctx, progress, BulkExportOpts{Format: formatter.FormatCSV, OutputDir: dir})
		if err != nil {
			t.Fatalf("BulkExport failed: %v", err)
		}
		if result.TotalUsers != 2 || result.SuccessfulExports != 2 || result.FailedExports != 0 {
			t.Errorf("unexpected result %+v", result)
		}

		tu.AssertDirExists(t, dir)
		tu.AssertFileExists(t, filepath.Join(dir, "ana_favoriti.csv"))
		tu.AssertFileExists(t, filepath.Join(dir, "ivo_favoriti.csv"))

		content := tu.MustReadFile(t, filepath.Join(dir, "ana_favoriti.csv"))
		if lines := strings.Split(strings.TrimSpace(content), "\n"); len(lines) != 3 {
			t.Errorf("expected header and 2 rows, got %d lines", len(lines))
		}

		var manifest map[string]any
		if err := json.Unmarshal([]byte(tu.MustReadFile(t, result.ManifestPath)), &manifest); err != nil {
			t.Fatalf("invalid manifest: %v", err)
		}
		if manifest["korisnika"] != float64(2) || manifest["format"] != "csv" {
			t.Errorf("unexpected manifest %v", manifest)
		}

		close(progress)
		last := ProgressUpdate{}
		for u := range progress {
			last = u
		}
		if last.Phase != WriteManifest {
			t.Errorf("expected manifest as last phase, got %s", last.Phase)
		}
	})

	t.Run("Default Directory And Format", func(t *testing.T) {
		store := setupStore(t)
		seedUser(t, store, "ana", 1399)

		originalDir := tu.MustGetwd(t)
		tu.MustChdir(t, t.TempDir())
		defer tu.MustChdir(t, originalDir)

		result, err := NewEngine(store, nil, nil).BulkExport(ctx, nil, BulkExportOpts{})
		if err != nil {
			t.Fatalf("BulkExport failed: %v", err)
		}
		if !strings.HasPrefix(result.OutputDirectory, "favoriti_export_") {
			t.Errorf("unexpected directory %s", result.OutputDirectory)
		}
		tu.AssertFileExists(t, filepath.Join(result.OutputDirectory, "ana_favoriti.json"))
	})

	t.Run("Unwritable Directory", func(t *testing.T) {
		store := setupStore(t)
		blocker := filepath.Join(t.TempDir(), "datoteka")
		if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := NewEngine(store, nil, nil).BulkExport(ctx, nil, BulkExportOpts{OutputDir: filepath.Join(blocker, "dir")})
		if err == nil {
			t.Error("expected error for unwritable directory")
		}
	})
}
