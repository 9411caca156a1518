package util

import (
	"context"
	"fmt"
	"strings"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dselans/blastbeat-albums/clog"
)

type ctxKey string

// LoggerKey is the context key under which a request- or message-scoped
// clog.ICustomLog is stored.
const LoggerKey ctxKey = "logger"

// Error is a helper log func that will log an error to NewRelic and to a custom
// logger. All fields can be nil.
//
// Examples:
//
// Error(nil, nil, "", nil) -- will return nil
// Error(txn, nil, "foo", nil) -- will notice errors.New("foo")
// Error(txn, logger, "foo", errors.New("bar")) -- will log "Foo: bar" to logger and NR + return "foo: bar"
func Error(txn *newrelic.Transaction, log clog.ICustomLog, msg string, err error, fields ...zap.Field) error {
	if err == nil && msg == "" {
		return nil
	} else if err != nil && msg != "" {
		err = errors.Wrap(err, msg)
	} else if err == nil && msg != "" {
		err = errors.New(msg)
	}

	if txn != nil {
		txn.NoticeError(err)
	}

	if log != nil {
		log.Error(CapitalizeFirstChar(err.Error()), fields...)
	}

	return err
}

func CapitalizeFirstChar(s string) string {
	if len(s) == 0 {
		return s
	}

	return strings.ToUpper(string(s[0])) + s[1:]
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger clog.ICustomLog) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// MethodSetup extracts a NewRelic txn and a logger from ctx so every method
// logs with the fields attached upstream (import id, event id, etc).
//
// A missing txn is fine; the NewRelic lib handles calls on nil transactions.
// A missing logger falls back to fallbackLogger, then to a basic logger.
func MethodSetup(ctx context.Context, fallbackLogger clog.ICustomLog, fields ...zap.Field) (*newrelic.Transaction, clog.ICustomLog) {
	if ctx == nil {
		if fallbackLogger == nil {
			fmt.Println("WARNING: CTX IS NIL AND NO FALLBACK LOGGER PROVIDED, RETURNING BASIC LOGGER")
			return nil, clog.NewBasic(fields...)
		}

		return nil, fallbackLogger.With(fields...)
	}

	txn := newrelic.FromContext(ctx)

	logger, ok := ctx.Value(LoggerKey).(clog.ICustomLog)
	if !ok {
		if fallbackLogger != nil {
			logger = fallbackLogger
		} else {
			fmt.Println("WARNING: NO LOGGER FOUND IN CTX AND NO FALLBACK LOGGER PROVIDED")
			logger = clog.NewBasic()
		}
	}

	return txn, logger.With(fields...)
}
