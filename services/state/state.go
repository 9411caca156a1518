// Package state keeps import history (summaries of finished imports) and the
// import lock in the shared state backend, fronted by the local cache.
package state

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dselans/blastbeat-albums/backends/cache"
	sb "github.com/dselans/blastbeat-albums/backends/state"
	"github.com/dselans/blastbeat-albums/clog"
)

const (
	ImportPrefix = "import"
	LatestKey    = "latest"
	LockKey      = "import"

	DefaultImportTTL = 30 * 24 * time.Hour
	CacheTTL         = 5 * time.Second
)

var ErrImportInProgress = errors.New("another import is in progress")

type IState interface {
	GetImport(ctx context.Context, id string) (*Import, error)
	LatestImport(ctx context.Context) (*Import, error)
	SaveImport(ctx context.Context, imp *Import) error

	// LockImports serializes imports across replicas. Returns
	// ErrImportInProgress if the lock is held elsewhere.
	LockImports(ctx context.Context, ttl time.Duration) (Lock, error)
}

type Lock interface {
	Release(ctx context.Context) error
}

// Import is the summary of one bookmarks import.
type Import struct {
	ID              string    `json:"id"`
	Folder          string    `json:"folder"`
	DryRun          bool      `json:"dryRun"`
	Parsed          int       `json:"parsed"`
	Inserted        int       `json:"inserted"`
	Skipped         int       `json:"skipped"`
	SkippedVideoIDs []string  `json:"skippedVideoIds,omitempty"`
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt"`
}

type State struct {
	opts *Options
	log  clog.ICustomLog
}

type Options struct {
	Backend   sb.IState
	Cache     cache.ICache
	Log       clog.ICustomLog
	ImportTTL time.Duration
}

func New(opts *Options) (*State, error) {
	if err := validateOptions(opts); err != nil {
		return nil, errors.Wrap(err, "failed to validate options")
	}

	return &State{
		opts: opts,
		log:  opts.Log.With(zap.String("pkg", "state")),
	}, nil
}

func (s *State) GetImport(ctx context.Context, id string) (*Import, error) {
	if id == "" {
		return nil, errors.New("id cannot be empty")
	}

	cacheKey := cache.ImportPrefix + ":" + id

	if cached, ok := s.opts.Cache.Get(cacheKey); ok {
		if imp, ok := cached.(*Import); ok {
			s.log.Debug("found import in cache", zap.String("id", id))
			return imp, nil
		}
	}

	data, err := s.opts.Backend.Get(ctx, id, ImportPrefix)
	if err != nil {
		if errors.Is(err, sb.ErrDoesNotExist) {
			return nil, sb.ErrDoesNotExist
		}

		return nil, errors.Wrap(err, "failed to get import")
	}

	imp := &Import{}

	if err := json.Unmarshal([]byte(data), imp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal import")
	}

	s.opts.Cache.Set(cacheKey, imp, CacheTTL)

	return imp, nil
}

func (s *State) LatestImport(ctx context.Context) (*Import, error) {
	id, err := s.opts.Backend.Get(ctx, LatestKey, ImportPrefix)
	if err != nil {
		if errors.Is(err, sb.ErrDoesNotExist) {
			return nil, sb.ErrDoesNotExist
		}

		return nil, errors.Wrap(err, "failed to get latest import id")
	}

	return s.GetImport(ctx, id)
}

func (s *State) SaveImport(ctx context.Context, imp *Import) error {
	if imp == nil {
		return errors.New("import cannot be nil")
	}

	if imp.ID == "" {
		return errors.New("import id cannot be empty")
	}

	data, err := json.Marshal(imp)
	if err != nil {
		return errors.Wrap(err, "failed to marshal import")
	}

	if err := s.opts.Backend.Set(ctx, imp.ID, string(data), s.opts.ImportTTL, ImportPrefix); err != nil {
		return errors.Wrap(err, "failed to save import")
	}

	if err := s.opts.Backend.Set(ctx, LatestKey, imp.ID, s.opts.ImportTTL, ImportPrefix); err != nil {
		return errors.Wrap(err, "failed to update latest import")
	}

	s.opts.Cache.Set(cache.ImportPrefix+":"+imp.ID, imp, CacheTTL)

	return nil
}

func (s *State) LockImports(ctx context.Context, ttl time.Duration) (Lock, error) {
	lock, err := s.opts.Backend.Obtain(ctx, LockKey, ttl, nil)
	if err != nil {
		if errors.Is(err, sb.ErrNotObtained) {
			return nil, ErrImportInProgress
		}

		return nil, errors.Wrap(err, "failed to obtain import lock")
	}

	return lock, nil
}

func validateOptions(opts *Options) error {
	if opts == nil {
		return errors.New("options cannot be nil")
	}

	if opts.Backend == nil {
		return errors.New("backend cannot be nil")
	}

	if opts.Log == nil {
		return errors.New("log cannot be nil")
	}

	if opts.Cache == nil {
		return errors.New("cache cannot be nil")
	}

	if opts.ImportTTL <= 0 {
		opts.ImportTTL = DefaultImportTTL
	}

	return nil
}
