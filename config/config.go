package config

import (
	"fmt"
	"reflect"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	EnvFile         = ".env"
	EnvConfigPrefix = "BLASTBEAT_ALBUMS"
)

type Config struct {
	Version          kong.VersionFlag `help:"Show version and exit" short:"v" env:"-"`
	EnvName          string           `kong:"help='Environment name.',default='dev'"`
	ServiceName      string           `kong:"help='Service name.',default='blastbeat-albums'"`
	HealthFreqSec    int              `kong:"help='Health check frequency in seconds.',default=10"`
	EnablePprof      bool             `kong:"help='Enable pprof endpoints (http://$apiListenAddress/debug).',default=false"`
	APIListenAddress string           `kong:"help='API listen address (serves health, metrics, version).',default=:8080"`
	LogConfig        string           `kong:"help='Logging config to use.',enum='dev,prod',default='dev'"`

	NewRelicAppName    string `kong:"help='New Relic application name.',default='blastbeat-albums (DEV)'"`
	NewRelicLicenseKey string `kong:"help='New Relic license key.'"`

	DBHost     string `kong:"help='Database host.',default=localhost"`
	DBName     string `kong:"help='Database name.',default=blastbeat"`
	DBUser     string `kong:"help='Database user.',default=blastbeat"`
	DBPassword string `kong:"help='Database password.',default=blastbeat"`
	DBPort     int    `kong:"help='Database port.',default=5432"`
	DBSSLMode  string `kong:"help='Database SSL mode.',default=disable"`

	RedisURL         string        `kong:"help='Redis URL.',default=localhost:6379"`
	RedisPassword    string        `kong:"help='Redis Password.'"`
	RedisDatabase    int           `kong:"help='Redis database.',default=0"`
	RedisPoolSize    int           `kong:"help='Redis pool size.',default=10"`
	RedisDialTimeout time.Duration `kong:"help='Redis dial timeout.',default=5s"`
	StatePrefix      string        `kong:"help='Prefix for all keys written to redis.',default=blastbeat_albums"`

	MaxUploadBytes   int64         `kong:"help='Maximum accepted bookmarks upload size in bytes.',default=5242880"`
	ImportLockTTL    time.Duration `kong:"help='How long an import may hold the import lock.',default=30s"`
	CategoryCacheTTL time.Duration `kong:"help='How long category listings are cached.',default=30s"`

	ProcessorRabbitURL             []string `kong:"help='Processor RabbitMQ URL(s).',default=amqp://localhost"`
	ProcessorRabbitExchangeName    string   `kong:"help='Processor exchange name.',default=events"`
	ProcessorRabbitExchangeType    string   `kong:"help='Processor exchange type.',default=topic"`
	ProcessorRabbitExchangeDeclare bool     `kong:"help='Declare processor exchange.',default=true"`
	ProcessorRabbitExchangeDurable bool     `kong:"help='Processor exchange durable.',default=true"`
	ProcessorRabbitBindingKeys     []string `kong:"help='Processor binding keys.',default=bookmarks.import"`
	ProcessorRabbitQueueName       string   `kong:"help='Processor queue name.',default=blastbeat-albums"`
	ProcessorRabbitQueueDurable    bool     `kong:"help='Processor queue durable.',default=true"`
	ProcessorRabbitQueueExclusive  bool     `kong:"help='Processor queue exclusive.',default=false"`
	ProcessorRabbitQueueAutoDelete bool     `kong:"help='Processor queue auto-delete.',default=false"`
	ProcessorRabbitQueueDeclare    bool     `kong:"help='Declare processor queue.',default=true"`
	ProcessorRabbitAutoAck         bool     `kong:"help='Auto-ack processor messages.',default=false"`
	ProcessorRabbitNumConsumers    int      `kong:"help='Number of processor consumers.',default=2"`
	ProcessorRabbitUseTLS          bool     `kong:"help='Use TLS for processor connection.',default=false"`
	ProcessorRabbitSkipVerifyTLS   bool     `kong:"help='Skip TLS verification for processor connection.',default=false"`

	PublisherRabbitURL                []string `kong:"help='Publisher RabbitMQ URL(s).',default=amqp://localhost"`
	PublisherRabbitExchangeName       string   `kong:"help='Publisher exchange name.',default=events"`
	PublisherRabbitExchangeType       string   `kong:"help='Publisher exchange type.',default=topic"`
	PublisherRabbitExchangeDeclare    bool     `kong:"help='Declare publisher exchange.',default=true"`
	PublisherRabbitExchangeDurable    bool     `kong:"help='Publisher exchange durable.',default=true"`
	PublisherRabbitExchangeAutoDelete bool     `kong:"help='Publisher exchange auto-delete.',default=false"`
	PublisherRabbitUseTLS             bool     `kong:"help='Use TLS for publisher connection.',default=false"`
	PublisherRabbitSkipVerifyTLS      bool     `kong:"help='Skip TLS verification for publisher connection.',default=false"`
	PublisherNumWorkers               int      `kong:"help='Number of publisher workers.',default=4"`

	AlbumsImportedRoutingKey string `kong:"help='Routing key for albums.imported events.',default=albums.imported"`

	KongContext *kong.Context `kong:"-"`
}

func New(version string) *Config {
	if err := godotenv.Load(EnvFile); err != nil {
		zap.L().Warn("unable to load dotenv file",
			zap.String("err", err.Error()))
	}

	cfg := &Config{}
	cfg.KongContext = kong.Parse(
		cfg,
		kong.Name("blastbeat-albums"),
		kong.Description("Imports album bookmarks and serves them over HTTP"),
		kong.DefaultEnvars(EnvConfigPrefix),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": version,
		},
	)

	return cfg
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("Config cannot be nil")
	}

	if c.MaxUploadBytes <= 0 {
		return errors.New("MaxUploadBytes must be greater than zero")
	}

	if c.ImportLockTTL <= 0 {
		return errors.New("ImportLockTTL must be greater than zero")
	}

	if c.AlbumsImportedRoutingKey == "" {
		return errors.New("AlbumsImportedRoutingKey cannot be empty")
	}

	if len(c.ProcessorRabbitBindingKeys) == 0 {
		return errors.New("ProcessorRabbitBindingKeys cannot be empty")
	}

	return nil
}

func (c *Config) GetMap() map[string]string {
	fields := make(map[string]string)

	val := reflect.ValueOf(c)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		value := val.Field(i)

		switch field.Name {
		case "DBPassword", "RedisPassword", "NewRelicLicenseKey":
			fields[field.Name] = "[redacted]"
		case "KongContext":
			continue
		default:
			fields[field.Name] = fmt.Sprintf("%v", value)
		}
	}

	return fields
}
