// Package processor acts on messages received from RabbitMQ
package processor

import (
	"context"
	"fmt"
	"reflect"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/streamdal/rabbit"
	"go.uber.org/zap"

	"github.com/dselans/blastbeat-albums/clog"
	"github.com/dselans/blastbeat-albums/services/album"
)

const (
	DefaultNumConsumers = 10
)

type IProcessor interface {
	StartConsumers() error
}

// Importer is the part of the album service the processor drives.
type Importer interface {
	Import(ctx context.Context, req *album.ImportRequest) (*album.ImportResult, error)
}

type Options struct {
	RabbitMap    map[string]*RabbitConfig
	Log          clog.ICustomLog
	NewRelic     *newrelic.Application
	AlbumService Importer
	ShutdownCtx  context.Context
}

type RabbitConfig struct {
	RabbitInstance rabbit.IRabbit
	NumConsumers   int
	Func           string
	funcReal       func(amqp.Delivery) error // filled out during New()
}

type Processor struct {
	options *Options
	log     clog.ICustomLog
}

func New(opt *Options) (*Processor, error) {
	if opt == nil {
		return nil, errors.New("options cannot be nil")
	}

	// validateOptions resolves consumer funcs by name, so it needs an instance
	p := &Processor{
		options: opt,
	}

	if err := p.validateOptions(opt); err != nil {
		return nil, fmt.Errorf("unable to validate input opt: %s", err)
	}

	p.log = opt.Log.With(zap.String("pkg", "proc"))

	return p, nil
}

func (p *Processor) validateOptions(opts *Options) error {
	if opts.Log == nil {
		return errors.New("Log cannot be nil")
	}

	if opts.AlbumService == nil {
		return errors.New("AlbumService cannot be nil")
	}

	if opts.ShutdownCtx == nil {
		return errors.New("ShutdownCtx cannot be nil")
	}

	if len(opts.RabbitMap) == 0 {
		return errors.New("Rabbit map cannot be empty")
	}

	for name, c := range opts.RabbitMap {
		if c.RabbitInstance == nil {
			return fmt.Errorf("rabbit instance for '%s' cannot be nil", name)
		}

		if c.Func == "" {
			return fmt.Errorf("func for '%s' cannot be empty", name)
		}

		if c.NumConsumers < 1 {
			c.NumConsumers = DefaultNumConsumers
		}

		method := reflect.ValueOf(p).MethodByName(c.Func)

		if !method.IsValid() {
			return fmt.Errorf("method for '%s' appears to be invalid", c.Func)
		}

		f, ok := method.Interface().(func(amqp.Delivery) error)
		if !ok {
			return fmt.Errorf("unable to type assert method '%s'", c.Func)
		}

		opts.RabbitMap[name].funcReal = f
	}

	return nil
}

func (p *Processor) StartConsumers() error {
	logger := p.log.With(zap.String("method", "StartConsumers"))
	consumerErrCh := make(chan *rabbit.ConsumeError, 1)

	go p.runConsumerErrorWatcher(consumerErrCh)

	for name, r := range p.options.RabbitMap {
		logger.Debug("Launching proc consumers",
			zap.Int("numConsumers", r.NumConsumers), zap.String("entryName", name))

		for n := 0; n < r.NumConsumers; n++ {
			go r.RabbitInstance.Consume(p.options.ShutdownCtx, consumerErrCh, r.funcReal)
		}
	}

	return nil
}

func (p *Processor) runConsumerErrorWatcher(errCh chan *rabbit.ConsumeError) {
	logger := p.log.With(zap.String("method", "runConsumerErrorWatcher"))

	logger.Debug("Starting")
	defer logger.Debug("Exiting")

	for {
		select {
		case <-p.options.ShutdownCtx.Done():
			return
		case err := <-errCh:
			msgID := "unknown"
			consumerTag := "unknown"

			if err.Message != nil {
				msgID = err.Message.MessageId
				consumerTag = err.Message.ConsumerTag
			}

			logger.Error("Received error from consumer",
				zap.String("error", err.Error.Error()),
				zap.String("messageId", msgID),
				zap.String("consumerTag", consumerTag),
			)
		}
	}
}
