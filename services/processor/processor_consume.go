package processor

import (
	"runtime/debug"

	"github.com/newrelic/go-agent/v3/newrelic"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/dselans/blastbeat-albums/events"
	"github.com/dselans/blastbeat-albums/util"
	"github.com/dselans/blastbeat-albums/validate"
)

// ConsumeFunc is executed by the rabbit lib for every message read from the
// processor queue.
func (p *Processor) ConsumeFunc(msg amqp.Delivery) error {
	logger := p.log.With(
		zap.String("method", "ConsumeFunc"),
		zap.String("routingKey", msg.RoutingKey),
	)

	txn := p.options.NewRelic.StartTransaction("ProcessorService.ConsumeFunc")
	defer txn.End()

	// ConsumeFunc runs in goroutine
	defer func() {
		if r := recover(); r != nil {
			util.Error(txn, logger, "recovered from panic", nil,
				zap.Any("panic", r),
				zap.String("panicTrace", string(debug.Stack())),
			)
		}
	}()

	// Imports are not retried; a failed import is logged and dropped.
	if err := msg.Ack(false); err != nil {
		util.Error(txn, logger, "unable to acknowledge message", err)
		return nil
	}

	event, err := events.Unmarshal(msg.Body)
	if err != nil {
		util.Error(txn, logger, "unable to unmarshal event", err)
		return nil
	}

	if err := validate.Event(event); err != nil {
		util.Error(txn, logger, "unable to validate event", err)
		return nil
	}

	logger = logger.With(
		zap.String("cloudEventID", event.ID),
		zap.String("cloudEventType", event.Type),
		zap.String("cloudEventSource", event.Source),
	)

	ctx := util.WithLogger(p.options.ShutdownCtx, logger)
	ctx = newrelic.NewContext(ctx, txn)

	txn.AddAttribute("cloudEventID", event.ID)
	txn.AddAttribute("cloudEventType", event.Type)
	txn.AddAttribute("cloudEventSource", event.Source)

	switch event.Type {
	case events.TypeBookmarksImport:
		err = p.handleBookmarksImport(ctx, event)
	default:
		logger.Debug("ignoring event of unknown type")
		return nil
	}

	if err != nil {
		util.Error(txn, logger, "error processing message", err)
	}

	return nil
}
