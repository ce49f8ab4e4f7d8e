package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/serije/internal/models"
	"github.com/desertthunder/serije/internal/repositories"
	"github.com/desertthunder/serije/internal/services"
	"github.com/desertthunder/serije/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultWorkers   = 4
	maxWorkers       = 10
	defaultRateLimit = 5.0
)

// Engine runs favorites jobs against the store and the catalog.
type Engine struct {
	store   *repositories.Store
	catalog services.Catalog
	logger  *log.Logger
}

// NewEngine creates an [Engine]. catalog may be nil for jobs that never
// contact TMDB, such as [Engine.BulkExport].
func NewEngine(store *repositories.Store, catalog services.Catalog, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Engine{store: store, catalog: catalog, logger: shared.WithLogger(logger, "component", "tasks")}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// RefreshOpts configures [Engine.Refresh].
type RefreshOpts struct {
	UserID      string  // Only refresh this user's favorites; empty means all users
	OnlyMissing bool    // Skip favorites that already have a name
	NumWorkers  int     // Concurrent workers (default: 4, max: 10)
	RateLimit   float64 // Dispatched lookups per second (default: 5)
}

func (o *RefreshOpts) defaults() {
	if o.NumWorkers <= 0 {
		o.NumWorkers = defaultWorkers
	}
	if o.NumWorkers > maxWorkers {
		o.NumWorkers = maxWorkers
	}
	if o.RateLimit <= 0 {
		o.RateLimit = defaultRateLimit
	}
}

// RefreshItemResult is the outcome for one favorite.
type RefreshItemResult struct {
	FavoriteID string
	SeriesID   int
	Name       string
	Updated    bool
	Error      error
}

// RefreshResult summarizes a refresh run.
type RefreshResult struct {
	Total     int
	Updated   int
	Unchanged int
	Skipped   int
	Failed    int
	Results   []RefreshItemResult
}

// Refresh re-fetches the TMDB name and poster of stored favorites and saves
// the ones that changed. Lookup failures are counted, not returned; the
// returned error is reserved for failures to load favorites or a cancelled ctx.
func (e *Engine) Refresh(ctx context.Context, progress chan<- ProgressUpdate, opts RefreshOpts) (*RefreshResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}
	opts.defaults()

	criteria := map[string]any{}
	if opts.UserID != "" {
		criteria["user_id"] = opts.UserID
	}
	favorites, err := e.store.Favorites().List(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to load favorites: %w", err)
	}
	e.sendProgress(progress, loadFavoritesUpdate(len(favorites)))

	result := &RefreshResult{Total: len(favorites), Results: make([]RefreshItemResult, 0, len(favorites))}

	pending := make([]*models.Favorite, 0, len(favorites))
	for _, fav := range favorites {
		if opts.OnlyMissing && fav.Name() != "" {
			result.Skipped++
			continue
		}
		pending = append(pending, fav)
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan *models.Favorite, len(pending))
	results := make(chan RefreshItemResult, len(pending))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.refreshWorker(ctx, &wg, jobs, results)
	}

	go func() {
		defer close(jobs)
		for _, fav := range pending {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			jobs <- fav
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		switch {
		case res.Error != nil:
			result.Failed++
		case res.Updated:
			result.Updated++
		default:
			result.Unchanged++
		}
		e.sendProgress(progress, refreshedUpdate(completed, len(pending), res))
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Engine) refreshWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan *models.Favorite, results chan<- RefreshItemResult) {
	defer wg.Done()

	for fav := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		results <- e.refreshOne(ctx, fav)
	}
}

func (e *Engine) refreshOne(ctx context.Context, fav *models.Favorite) RefreshItemResult {
	res := RefreshItemResult{FavoriteID: fav.ID(), SeriesID: fav.SeriesID(), Name: fav.Name()}

	series, err := e.catalog.Series(ctx, fav.SeriesID())
	if err != nil {
		if !errors.Is(err, shared.ErrSeriesNotFound) {
			e.logger.Warn("series lookup failed", "series", fav.SeriesID(), "error", err)
		}
		res.Error = err
		return res
	}

	if series.Name == fav.Name() && series.PosterPath == fav.PosterPath() {
		return res
	}

	fav.SetName(series.Name)
	fav.SetPosterPath(series.PosterPath)
	if err := e.store.Favorites().UpdateMetadata(ctx, fav); err != nil {
		res.Error = err
		return res
	}

	res.Name = fav.Name()
	res.Updated = true
	return res
}
