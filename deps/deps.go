package deps

import (
	"context"
	"os"
	"time"

	"github.com/InVisionApp/go-health"
	"github.com/bsm/redislock"
	"github.com/newrelic/go-agent/v3/integrations/logcontext-v2/nrzap"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/streamdal/rabbit"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dselans/blastbeat-albums/backends/cache"
	"github.com/dselans/blastbeat-albums/backends/db"
	sb "github.com/dselans/blastbeat-albums/backends/state"
	"github.com/dselans/blastbeat-albums/clog"
	"github.com/dselans/blastbeat-albums/config"
	"github.com/dselans/blastbeat-albums/services/album"
	"github.com/dselans/blastbeat-albums/services/processor"
	"github.com/dselans/blastbeat-albums/services/publisher"
	"github.com/dselans/blastbeat-albums/services/state"
)

const (
	DefaultHealthCheckIntervalSecs = 10
	DBConnectTimeout               = 10 * time.Second
)

type Dependencies struct {
	// Backends
	DBBackend              *db.DB
	StateBackend           sb.IState
	CacheBackend           cache.ICache
	ProcessorRabbitBackend rabbit.IRabbit
	PublisherRabbitBackend rabbit.IRabbit

	RedisClient *redis.Client

	// Services
	AlbumService     album.IAlbum
	StateService     state.IState
	ProcessorService processor.IProcessor
	PublisherService publisher.IPublisher

	Health health.IHealth

	// Global, shared shutdown context - all services and backends listen to
	// this context to know when to shutdown.
	ShutdownCtx context.Context

	// ShutdownCancel is the cancel function for the global shutdown context
	ShutdownCancel context.CancelFunc

	// Written to by publisher when it's done shutting down; read by the
	// shutdown handler in main() so it knows when it is safe to exit.
	PublisherShutdownDoneCh chan struct{}

	NewRelicApp *newrelic.Application
	Config      *config.Config

	// Log is the main, shared logger (you should use this for all logging)
	Log clog.ICustomLog

	// ZapLog is the zap logger (you shouldn't need this outside of deps)
	ZapLog *zap.Logger

	// ZapCore can be used to generate a brand-new logger (you shouldn't need this very often)
	ZapCore zapcore.Core
}

func New(cfg *config.Config) (*Dependencies, error) {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Dependencies{
		ShutdownCtx:             ctx,
		ShutdownCancel:          cancel,
		PublisherShutdownDoneCh: make(chan struct{}, 1),
		Config:                  cfg,
	}

	// NewRelic setup must occur before logging setup
	if err := d.setupNewRelic(); err != nil {
		return nil, errors.Wrap(err, "unable to setup newrelic")
	}

	if err := d.setupLogging(); err != nil {
		return nil, errors.Wrap(err, "unable to setup logging")
	}

	if err := d.setupBackends(cfg); err != nil {
		return nil, errors.Wrap(err, "unable to setup backends")
	}

	if err := d.setupHealth(); err != nil {
		return nil, errors.Wrap(err, "unable to setup health")
	}

	if err := d.Health.Start(); err != nil {
		return nil, errors.Wrap(err, "unable to start health runner")
	}

	if err := d.setupServices(cfg); err != nil {
		return nil, errors.Wrap(err, "unable to setup services")
	}

	return d, nil
}

func (d *Dependencies) setupNewRelic() error {
	if d.Config.NewRelicAppName == "" || d.Config.NewRelicLicenseKey == "" {
		return nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(d.Config.NewRelicAppName),
		newrelic.ConfigLicense(d.Config.NewRelicLicenseKey),
		newrelic.ConfigAppLogForwardingEnabled(true),
		newrelic.ConfigZapAttributesEncoder(true),
	)
	if err != nil {
		return errors.Wrap(err, "unable to create newrelic app")
	}

	if err := app.WaitForConnection(10 * time.Second); err != nil {
		return errors.Wrap(err, "unable to connect to newrelic")
	}

	d.NewRelicApp = app

	return nil
}

// If using New Relic, setupLogging() should be called _after_ setupNewRelic()
func (d *Dependencies) setupLogging() error {
	var core zapcore.Core

	if d.Config.LogConfig == "dev" {
		zc := zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

		core = zapcore.NewCore(zapcore.NewConsoleEncoder(zc.EncoderConfig),
			zapcore.AddSync(os.Stdout),
			zap.DebugLevel,
		)
	} else {
		core = zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(os.Stdout),
			zap.InfoLevel,
		)
	}

	if d.NewRelicApp != nil {
		var err error

		core, err = nrzap.WrapBackgroundCore(core, d.NewRelicApp)
		if err != nil {
			return errors.Wrap(err, "unable to wrap zap core with newrelic")
		}
	}

	d.ZapLog = zap.New(core)
	d.ZapCore = core

	d.Log = clog.New(d.ZapLog, zap.String("env", d.Config.EnvName))

	d.Log.Debug("Logging initialized")

	return nil
}

// setupHealth registers the database and redis checks. Both are fatal: the
// service can't import or serve albums without them.
func (d *Dependencies) setupHealth() error {
	logger := d.Log.With(zap.String("method", "setupHealth"))
	logger.Debug("Setting up health")

	interval := time.Duration(d.Config.HealthFreqSec) * time.Second
	if interval <= 0 {
		interval = DefaultHealthCheckIntervalSecs * time.Second
	}

	gohealth := health.New()
	gohealth.DisableLogging()

	checks := []*health.Config{
		{
			Name:     "postgres",
			Checker:  d.DBBackend,
			Interval: interval,
			Fatal:    true,
		},
	}

	if checker, ok := d.StateBackend.(health.ICheckable); ok {
		checks = append(checks, &health.Config{
			Name:     "redis",
			Checker:  checker,
			Interval: interval,
			Fatal:    true,
		})
	}

	if err := gohealth.AddChecks(checks); err != nil {
		return errors.Wrap(err, "unable to add health checks")
	}

	d.Health = gohealth

	return nil
}

func (d *Dependencies) setupBackends(cfg *config.Config) error {
	llog := d.Log.With(zap.String("method", "setupBackends"))

	llog.Debug("Setting up cache backend")

	cb, err := cache.New()
	if err != nil {
		return errors.Wrap(err, "unable to create new cache instance")
	}

	d.CacheBackend = cb

	llog.Debug("Setting up db backend")

	dbBackend, err := db.New(&db.Options{
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		return errors.Wrap(err, "unable to create db backend")
	}

	ctx, cancel := context.WithTimeout(d.ShutdownCtx, DBConnectTimeout)
	defer cancel()

	if err := dbBackend.Ping(ctx); err != nil {
		return errors.Wrap(err, "unable to reach database")
	}

	if err := dbBackend.Migrate(ctx, d.Log); err != nil {
		return errors.Wrap(err, "unable to run migrations")
	}

	d.DBBackend = dbBackend

	llog.Debug("Setting up state backend")

	d.RedisClient = redis.NewClient(&redis.Options{
		Addr:        cfg.RedisURL,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDatabase,
		PoolSize:    cfg.RedisPoolSize,
		DialTimeout: cfg.RedisDialTimeout,
	})

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "unable to reach redis")
	}

	stateBackend, err := sb.New(&sb.Options{
		Prefix:      cfg.StatePrefix,
		Log:         d.Log,
		RedisClient: d.RedisClient,
		RedisLock:   redislock.New(d.RedisClient),
	})
	if err != nil {
		return errors.Wrap(err, "unable to create state backend")
	}

	d.StateBackend = stateBackend

	llog.Debug("Setting up rabbit backends")

	procRabbitBackend, err := rabbit.New(&rabbit.Options{
		URLs:      cfg.ProcessorRabbitURL,
		Mode:      rabbit.Consumer,
		QueueName: cfg.ProcessorRabbitQueueName,
		Bindings: []rabbit.Binding{
			{
				ExchangeName:    cfg.ProcessorRabbitExchangeName,
				ExchangeType:    cfg.ProcessorRabbitExchangeType,
				ExchangeDeclare: cfg.ProcessorRabbitExchangeDeclare,
				ExchangeDurable: cfg.ProcessorRabbitExchangeDurable,
				BindingKeys:     cfg.ProcessorRabbitBindingKeys,
			},
		},
		RetryReconnectSec: rabbit.DefaultRetryReconnectSec,
		QueueDurable:      cfg.ProcessorRabbitQueueDurable,
		QueueExclusive:    cfg.ProcessorRabbitQueueExclusive,
		QueueAutoDelete:   cfg.ProcessorRabbitQueueAutoDelete,
		QueueDeclare:      cfg.ProcessorRabbitQueueDeclare,
		AutoAck:           cfg.ProcessorRabbitAutoAck,
		AppID:             cfg.ServiceName + "-processor",
		UseTLS:            cfg.ProcessorRabbitUseTLS,
		SkipVerifyTLS:     cfg.ProcessorRabbitSkipVerifyTLS,
		Log:               d.ZapLog.Sugar(),
	})
	if err != nil {
		return errors.Wrap(err, "unable to create rabbit backend for processor")
	}

	d.ProcessorRabbitBackend = procRabbitBackend

	pubRabbitBackend, err := rabbit.New(&rabbit.Options{
		URLs: cfg.PublisherRabbitURL,
		Bindings: []rabbit.Binding{
			{
				ExchangeName:       cfg.PublisherRabbitExchangeName,
				ExchangeType:       cfg.PublisherRabbitExchangeType,
				ExchangeDeclare:    cfg.PublisherRabbitExchangeDeclare,
				ExchangeDurable:    cfg.PublisherRabbitExchangeDurable,
				ExchangeAutoDelete: cfg.PublisherRabbitExchangeAutoDelete,
			},
		},
		Mode:              rabbit.Producer,
		RetryReconnectSec: rabbit.DefaultRetryReconnectSec,
		AppID:             cfg.ServiceName + "-publisher",
		UseTLS:            cfg.PublisherRabbitUseTLS,
		SkipVerifyTLS:     cfg.PublisherRabbitSkipVerifyTLS,
		Log:               d.ZapLog.Sugar(),
	})
	if err != nil {
		return errors.Wrap(err, "unable to create rabbit backend for publisher")
	}

	d.PublisherRabbitBackend = pubRabbitBackend

	return nil
}

func (d *Dependencies) setupServices(cfg *config.Config) error {
	logger := d.Log.With(zap.String("method", "setupServices"))
	logger.Debug("Setting up services")

	pubService, err := publisher.New(&publisher.Options{
		RabbitBackend:            d.PublisherRabbitBackend,
		NumWorkers:               cfg.PublisherNumWorkers,
		AlbumsImportedRoutingKey: cfg.AlbumsImportedRoutingKey,
		ExternalShutdownCtx:      d.ShutdownCtx,
		ExternalShutdownDoneCh:   d.PublisherShutdownDoneCh,
		NewRelic:                 d.NewRelicApp,
		Log:                      d.Log,
	})
	if err != nil {
		return errors.Wrap(err, "unable to create new publisher")
	}

	if err := pubService.Start(); err != nil {
		return errors.Wrap(err, "unable to start publisher")
	}

	d.PublisherService = pubService

	stateService, err := state.New(&state.Options{
		Backend: d.StateBackend,
		Cache:   d.CacheBackend,
		Log:     d.Log,
	})
	if err != nil {
		return errors.Wrap(err, "unable to create state service")
	}

	d.StateService = stateService

	albumService, err := album.New(&album.Options{
		Backend:          d.DBBackend,
		StateService:     d.StateService,
		Publisher:        d.PublisherService,
		Cache:            d.CacheBackend,
		Log:              d.Log,
		LockTTL:          cfg.ImportLockTTL,
		CategoryCacheTTL: cfg.CategoryCacheTTL,
	})
	if err != nil {
		return errors.Wrap(err, "unable to create album service")
	}

	d.AlbumService = albumService

	procService, err := processor.New(&processor.Options{
		RabbitMap: map[string]*processor.RabbitConfig{
			"main": {
				RabbitInstance: d.ProcessorRabbitBackend,
				NumConsumers:   cfg.ProcessorRabbitNumConsumers,
				Func:           "ConsumeFunc",
			},
		},
		AlbumService: d.AlbumService,
		ShutdownCtx:  d.ShutdownCtx,
		NewRelic:     d.NewRelicApp,
		Log:          d.Log,
	})
	if err != nil {
		return errors.Wrap(err, "unable to setup proc service")
	}

	d.ProcessorService = procService

	return nil
}
