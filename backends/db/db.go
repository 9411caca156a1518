package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
)

type Options struct {
	User     string
	Password string
	Host     string
	Port     int
	DBName   string
	SSLMode  string
}

type DB struct {
	opts *Options
	db   *sql.DB
}

const (
	DefaultPostgreSQLPort = 5432
	DefaultSSLMode        = "disable"
)

func New(opts *Options) (*DB, error) {
	if err := validateOptions(opts); err != nil {
		return nil, errors.Wrap(err, "invalid options")
	}

	dsn := fmt.Sprintf("user=%s password=%s host=%s port=%d dbname=%s sslmode=%s",
		opts.User, opts.Password, opts.Host, opts.Port, opts.DBName, opts.SSLMode)

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse database connection string")
	}

	return &DB{
		opts: opts,
		db:   stdlib.OpenDB(*cfg.ConnConfig),
	}, nil
}

// NewWithDB wraps an already opened *sql.DB.
func NewWithDB(db *sql.DB) *DB {
	return &DB{db: db}
}

func validateOptions(opts *Options) error {
	if opts == nil {
		return errors.New("options cannot be nil")
	}

	if opts.User == "" {
		return errors.New("user cannot be empty")
	}

	if opts.Password == "" {
		return errors.New("password cannot be empty")
	}

	if opts.Host == "" {
		return errors.New("host cannot be empty")
	}

	if opts.DBName == "" {
		return errors.New("db name cannot be empty")
	}

	if opts.Port <= 0 {
		opts.Port = DefaultPostgreSQLPort
	}

	if opts.SSLMode == "" {
		opts.SSLMode = DefaultSSLMode
	}

	return nil
}

// Ping satisfies the health checker needs of deps.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Status satisfies the go-health.ICheckable interface.
func (d *DB) Status() (interface{}, error) {
	if err := d.db.Ping(); err != nil {
		return nil, errors.Wrap(err, "database ping failed")
	}

	return map[string]int{"openConnections": d.db.Stats().OpenConnections}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
