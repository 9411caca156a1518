// Package clog wraps zap.Logger so that fields attached via With() are kept
// as "sticky" top-level attributes and included in every subsequent call.
//
// New Relic's zap integration only forwards attributes present at the time of
// the log call, so "env", "pkg", "method" and friends are tracked here instead
// of inside the zap core.
package clog

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

type ICustomLog interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Fatal(msg string, fields ...zap.Field)
	With(fields ...zap.Field) ICustomLog
}

type CustomLog struct {
	fields    map[string]zap.Field
	fieldsMtx *sync.Mutex
	logger    *zap.Logger
}

func New(logger *zap.Logger, fields ...zap.Field) ICustomLog {
	if logger == nil {
		logger = zap.NewNop()
	}

	mtx := &sync.Mutex{}

	return &CustomLog{
		logger:    logger,
		fieldsMtx: mtx,
		fields:    UpdateMap(mtx, make(map[string]zap.Field), fields...),
	}
}

// NewBasic returns a development logger; used when nothing better is
// available (tests, CLI fallbacks).
func NewBasic(fields ...zap.Field) ICustomLog {
	logger, err := zap.NewDevelopment()
	if err != nil {
		logger = zap.NewNop()
	}

	return New(logger, fields...)
}

func (c CustomLog) Debug(msg string, fields ...zap.Field) {
	c.logger.Debug(msg, c.withSticky(fields)...)
}

func (c CustomLog) Info(msg string, fields ...zap.Field) {
	c.logger.Info(msg, c.withSticky(fields)...)
}

func (c CustomLog) Warn(msg string, fields ...zap.Field) {
	c.logger.Warn(msg, c.withSticky(fields)...)
}

func (c CustomLog) Error(msg string, fields ...zap.Field) {
	c.logger.Error(msg, c.withSticky(fields)...)
}

func (c CustomLog) Fatal(msg string, fields ...zap.Field) {
	c.logger.Fatal(msg, c.withSticky(fields)...)
}

func (c CustomLog) With(fields ...zap.Field) ICustomLog {
	newFields := make(map[string]zap.Field)

	c.fieldsMtx.Lock()
	for k, v := range c.fields {
		newFields[k] = v
	}
	c.fieldsMtx.Unlock()

	return New(c.logger, MapToFields(nil, UpdateMap(nil, newFields, fields...))...)
}

func (c CustomLog) withSticky(fields []zap.Field) []zap.Field {
	return append(MapToFields(c.fieldsMtx, c.fields), fields...)
}

// UpdateMap sets (or overwrites) fields in m keyed by field name.
func UpdateMap(mtx *sync.Mutex, m map[string]zap.Field, f ...zap.Field) map[string]zap.Field {
	if mtx != nil {
		mtx.Lock()
		defer mtx.Unlock()
	}

	for _, field := range f {
		m[field.Key] = field
	}

	return m
}

// MapToFields returns the fields in m sorted by key.
func MapToFields(mtx *sync.Mutex, m map[string]zap.Field) []zap.Field {
	if mtx != nil {
		mtx.Lock()
		defer mtx.Unlock()
	}

	fields := make([]zap.Field, 0, len(m))

	for _, field := range m {
		fields = append(fields, field)
	}

	sort.Slice(fields, func(i, j int) bool {
		return fields[i].Key < fields[j].Key
	})

	return fields
}
