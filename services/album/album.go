// Package album orchestrates bookmark imports and serves the stored albums.
package album

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dselans/blastbeat-albums/backends/cache"
	"github.com/dselans/blastbeat-albums/backends/db"
	"github.com/dselans/blastbeat-albums/bookmarks"
	"github.com/dselans/blastbeat-albums/clog"
	"github.com/dselans/blastbeat-albums/services/state"
	"github.com/dselans/blastbeat-albums/util"
	"github.com/dselans/blastbeat-albums/validate"
)

const (
	DefaultLockTTL          = 30 * time.Second
	DefaultCategoryCacheTTL = 30 * time.Second
)

var ErrInvalidSort = errors.New("invalid sort key")

type IAlbum interface {
	// Import converts a bookmarks export and stores every album found under
	// the requested folder. Conversion errors are returned as-is so callers
	// can inspect them with errors.As.
	Import(ctx context.Context, req *ImportRequest) (*ImportResult, error)

	ListAlbums(ctx context.Context, params db.ListAlbumsParams) ([]db.Album, error)
	ListCategories(ctx context.Context) ([]db.Category, error)
	GetImport(ctx context.Context, id string) (*state.Import, error)
	LatestImport(ctx context.Context) (*state.Import, error)
}

// Backend is the subset of db.DB used by the album service.
type Backend interface {
	ExistingVideoIDs(ctx context.Context, ids []string) (map[string]bool, error)
	InsertAlbums(ctx context.Context, albums []db.Album) (int, error)
	ListAlbums(ctx context.Context, params db.ListAlbumsParams) ([]db.Album, error)
	ListCategories(ctx context.Context) ([]db.Category, error)
}

type Publisher interface {
	PublishAlbumsImported(ctx context.Context, imp *state.Import) error
}

type Album struct {
	opts  *Options
	log   clog.ICustomLog
	group singleflight.Group
}

type Options struct {
	Backend      Backend
	StateService state.IState
	Publisher    Publisher
	Cache        cache.ICache
	Log          clog.ICustomLog

	LockTTL          time.Duration
	CategoryCacheTTL time.Duration
}

type ImportRequest struct {
	Folder string
	Data   []byte
	DryRun bool
}

// ImportResult is the stored summary plus, on dry runs, the converted albums.
type ImportResult struct {
	*state.Import
	Albums []*bookmarks.Album `json:"albums,omitempty"`
}

func New(opts *Options) (*Album, error) {
	if err := validateOptions(opts); err != nil {
		return nil, errors.Wrap(err, "failed to validate options")
	}

	return &Album{
		opts: opts,
		log:  opts.Log.With(zap.String("pkg", "album")),
	}, nil
}

func validateOptions(opts *Options) error {
	if opts == nil {
		return errors.New("options cannot be nil")
	}

	if opts.Backend == nil {
		return errors.New("backend cannot be nil")
	}

	if opts.StateService == nil {
		return errors.New("state service cannot be nil")
	}

	if opts.Publisher == nil {
		return errors.New("publisher cannot be nil")
	}

	if opts.Cache == nil {
		return errors.New("cache cannot be nil")
	}

	if opts.Log == nil {
		return errors.New("log cannot be nil")
	}

	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}

	if opts.CategoryCacheTTL <= 0 {
		opts.CategoryCacheTTL = DefaultCategoryCacheTTL
	}

	return nil
}

func (a *Album) Import(ctx context.Context, req *ImportRequest) (*ImportResult, error) {
	txn, logger := util.MethodSetup(ctx, a.log, zap.String("method", "Import"))

	if req == nil {
		return nil, errors.New("import request cannot be nil")
	}

	if err := validate.ImportRequest(req.Folder, req.Data); err != nil {
		return nil, errors.Wrap(err, "invalid import request")
	}

	logger = logger.With(zap.String("folder", req.Folder), zap.Bool("dryRun", req.DryRun))

	if !req.DryRun {
		lock, err := a.opts.StateService.LockImports(ctx, a.opts.LockTTL)
		if err != nil {
			return nil, err
		}

		defer func() {
			if err := lock.Release(context.Background()); err != nil {
				logger.Warn("unable to release import lock", zap.Error(err))
			}
		}()
	}

	imp := &state.Import{
		ID:        uuid.New().String(),
		Folder:    req.Folder,
		DryRun:    req.DryRun,
		StartedAt: time.Now().UTC(),
	}

	logger = logger.With(zap.String("importID", imp.ID))

	albums, err := bookmarks.Convert(req.Data, req.Folder)
	if err != nil {
		logger.Debug("conversion failed", zap.Error(err))
		return nil, err
	}

	imp.Parsed = len(albums)

	if req.DryRun {
		imp.FinishedAt = time.Now().UTC()
		logger.Debug("dry run complete", zap.Int("parsed", imp.Parsed))

		return &ImportResult{Import: imp, Albums: albums}, nil
	}

	fresh, skipped, err := a.dedupe(ctx, albums)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dedupe albums")
	}

	rows := make([]db.Album, 0, len(fresh))

	for _, al := range fresh {
		if err := validate.Album(al); err != nil {
			return nil, errors.Wrapf(err, "album '%s' failed validation", al.VideoID)
		}

		rows = append(rows, ToDBAlbum(al))
	}

	inserted, err := a.opts.Backend.InsertAlbums(ctx, rows)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert albums")
	}

	imp.Inserted = inserted
	imp.Skipped = imp.Parsed - inserted
	imp.SkippedVideoIDs = skipped
	imp.FinishedAt = time.Now().UTC()

	a.opts.Cache.Remove(cache.CategoriesKey)

	// The albums are committed at this point; bookkeeping failures are
	// reported but don't fail the import.
	if err := a.opts.StateService.SaveImport(ctx, imp); err != nil {
		util.Error(txn, logger, "unable to save import summary", err)
	}

	if err := a.opts.Publisher.PublishAlbumsImported(ctx, imp); err != nil {
		util.Error(txn, logger, "unable to publish albums.imported event", err)
	}

	logger.Info("import complete",
		zap.Int("parsed", imp.Parsed),
		zap.Int("inserted", imp.Inserted),
		zap.Int("skipped", imp.Skipped),
	)

	return &ImportResult{Import: imp}, nil
}

func (a *Album) dedupe(ctx context.Context, albums []*bookmarks.Album) ([]*bookmarks.Album, []string, error) {
	ids := make([]string, 0, len(albums))
	for _, al := range albums {
		ids = append(ids, al.VideoID)
	}

	existing, err := a.opts.Backend.ExistingVideoIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	fresh, skipped := SplitNew(albums, existing)

	return fresh, skipped, nil
}

// SplitNew drops albums whose video id is in existing or repeats an earlier
// album in the same batch. Returns the remaining albums and the dropped ids.
func SplitNew(albums []*bookmarks.Album, existing map[string]bool) ([]*bookmarks.Album, []string) {
	seen := make(map[string]bool, len(albums))
	fresh := make([]*bookmarks.Album, 0, len(albums))
	skipped := make([]string, 0)

	for _, al := range albums {
		if existing[al.VideoID] || seen[al.VideoID] {
			skipped = append(skipped, al.VideoID)
			continue
		}

		seen[al.VideoID] = true
		fresh = append(fresh, al)
	}

	return fresh, skipped
}

func (a *Album) ListAlbums(ctx context.Context, params db.ListAlbumsParams) ([]db.Album, error) {
	_, logger := util.MethodSetup(ctx, a.log, zap.String("method", "ListAlbums"))

	if params.SortBy != "" {
		if _, ok := db.SortColumns[params.SortBy]; !ok {
			return nil, errors.Wrapf(ErrInvalidSort, "'%s'", params.SortBy)
		}
	}

	albums, err := a.opts.Backend.ListAlbums(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list albums")
	}

	logger.Debug("listed albums", zap.Int("count", len(albums)))

	return albums, nil
}

// ListCategories serves category counts from the local cache. Concurrent
// misses share a single database query.
func (a *Album) ListCategories(ctx context.Context) ([]db.Category, error) {
	if cached, ok := a.opts.Cache.Get(cache.CategoriesKey); ok {
		if categories, ok := cached.([]db.Category); ok {
			return categories, nil
		}
	}

	v, err, _ := a.group.Do(cache.CategoriesKey, func() (interface{}, error) {
		categories, err := a.opts.Backend.ListCategories(ctx)
		if err != nil {
			return nil, err
		}

		a.opts.Cache.Set(cache.CategoriesKey, categories, a.opts.CategoryCacheTTL)

		return categories, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list categories")
	}

	return v.([]db.Category), nil
}

func (a *Album) GetImport(ctx context.Context, id string) (*state.Import, error) {
	return a.opts.StateService.GetImport(ctx, id)
}

func (a *Album) LatestImport(ctx context.Context) (*state.Import, error) {
	return a.opts.StateService.LatestImport(ctx)
}

// ToDBAlbum converts a parsed album into a new row.
func ToDBAlbum(al *bookmarks.Album) db.Album {
	return db.Album{
		ID:        uuid.New(),
		VideoID:   al.VideoID,
		Artist:    al.Artist,
		Title:     al.Title,
		Published: al.Published,
		Category:  al.Category,
		AddDate:   al.AddDate,
	}
}
