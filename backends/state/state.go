// Package state stores service state in a shared redis instance. Every key is
// namespaced under a configured prefix (plus optional sub-prefixes) so several
// services can share one redis.
package state

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/bsm/redislock"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dselans/blastbeat-albums/clog"
)

var (
	ErrAlreadyExists = errors.New("key already exists")
	ErrDoesNotExist  = errors.New("key does not exist")
	ErrNotObtained   = redislock.ErrNotObtained
	ValidPrefixRegex = regexp.MustCompile("^[a-z0-9_:-]+$")
)

type IState interface {
	// Get will return the value of the key if it exists; takes optional,
	// additional prefixes that will be appended to the pre-configured prefix.
	Get(ctx context.Context, key string, prefix ...string) (string, error)

	// Add will add the key if it does not exist, otherwise it returns
	// ErrAlreadyExists.
	Add(ctx context.Context, key, value string, ttl time.Duration, prefix ...string) error

	// Set will overwrite the value if it already exists. A zero ttl means the
	// key never expires.
	Set(ctx context.Context, key, value string, ttl time.Duration, prefix ...string) error

	// Delete will remove the key from the store.
	Delete(ctx context.Context, key string, prefix ...string) error

	// Exists returns true/false if the key exists in the store.
	Exists(ctx context.Context, key string, prefix ...string) (bool, error)

	// Obtain will obtain a redis lock with the given key and ttl. Returns
	// ErrNotObtained if someone else holds it.
	//
	// >> It is the responsibility of the caller to release the lock. <<
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

type State struct {
	opts *Options
	log  clog.ICustomLog
}

type Options struct {
	Prefix      string
	Log         clog.ICustomLog
	RedisClient *redis.Client
	RedisLock   *redislock.Client
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

func validateOptions(opts *Options) error {
	if opts == nil {
		return errors.New("options are required")
	}

	if opts.Prefix == "" {
		return errors.New("prefix is required")
	}

	if opts.Log == nil {
		return errors.New("Log is required")
	}

	if opts.RedisClient == nil {
		return errors.New("RedisClient is required")
	}

	if opts.RedisLock == nil {
		return errors.New("RedisLock is required")
	}

	if !ValidPrefixRegex.MatchString(opts.Prefix) {
		return fmt.Errorf("prefix must match '%s' regex", ValidPrefixRegex)
	}

	return nil
}

func (s *State) Get(ctx context.Context, key string, prefix ...string) (string, error) {
	key, err := buildKey(s.opts.Prefix, key, prefix)
	if err != nil {
		return "", errors.Wrap(err, "unable to build key")
	}

	data, err := s.opts.RedisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrDoesNotExist
		}

		return "", errors.Wrap(err, "unable to get key")
	}

	return data, nil
}

func (s *State) Add(ctx context.Context, key, value string, ttl time.Duration, prefix ...string) error {
	key, err := buildKey(s.opts.Prefix, key, prefix)
	if err != nil {
		return errors.Wrap(err, "unable to build key")
	}

	ok, err := s.opts.RedisClient.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return errors.Wrap(err, "unable to add key")
	}

	if !ok {
		return ErrAlreadyExists
	}

	return nil
}

func (s *State) Set(ctx context.Context, key, value string, ttl time.Duration, prefix ...string) error {
	key, err := buildKey(s.opts.Prefix, key, prefix)
	if err != nil {
		return errors.Wrap(err, "unable to build key")
	}

	if err := s.opts.RedisClient.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrap(err, "unable to set key")
	}

	return nil
}

func (s *State) Delete(ctx context.Context, key string, prefix ...string) error {
	key, err := buildKey(s.opts.Prefix, key, prefix)
	if err != nil {
		return errors.Wrap(err, "unable to build key")
	}

	if err := s.opts.RedisClient.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, "unable to delete key")
	}

	return nil
}

func (s *State) Exists(ctx context.Context, key string, prefix ...string) (bool, error) {
	key, err := buildKey(s.opts.Prefix, key, prefix)
	if err != nil {
		return false, errors.Wrap(err, "unable to build key")
	}

	exists, err := s.opts.RedisClient.Exists(ctx, key).Result()
	if err != nil {
		return false, errors.Wrap(err, "unable to check if key exists")
	}

	return exists > 0, nil
}

func (s *State) Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error) {
	key, err := buildKey(s.opts.Prefix, key, []string{"lock"})
	if err != nil {
		return nil, errors.Wrap(err, "unable to build lock key")
	}

	return s.opts.RedisLock.Obtain(ctx, key, ttl, opt)
}

// Status satisfies the go-health.ICheckable interface.
func (s *State) Status() (interface{}, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.opts.RedisClient.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "redis ping failed")
	}

	return map[string]uint32{"totalConns": s.opts.RedisClient.PoolStats().TotalConns}, nil
}

func buildKey(base, inputKey string, inputPrefix []string) (string, error) {
	if inputKey == "" {
		return "", errors.New("key cannot be empty")
	}

	prefix := base

	for _, p := range inputPrefix {
		if !ValidPrefixRegex.MatchString(p) {
			return "", fmt.Errorf("invalid additional prefix '%s'", p)
		}

		prefix = prefix + ":" + p
	}

	return prefix + ":" + inputKey, nil
}
