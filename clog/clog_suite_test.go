package clog

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestClog(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Clog Suite")
}

var _ = Describe("CustomLog", func() {
	It("includes sticky fields in every message", func() {
		core, logs := observer.New(zap.DebugLevel)

		logger := New(zap.New(core), zap.String("env", "test")).
			With(zap.String("pkg", "bookmarks")).
			With(zap.String("method", "Convert"))

		logger.Info("converted", zap.Int("count", 3))

		Expect(logs.Len()).To(Equal(1))

		ctx := logs.All()[0].ContextMap()
		Expect(ctx).To(HaveKeyWithValue("env", "test"))
		Expect(ctx).To(HaveKeyWithValue("pkg", "bookmarks"))
		Expect(ctx).To(HaveKeyWithValue("method", "Convert"))
		Expect(ctx).To(HaveKeyWithValue("count", int64(3)))
	})

	It("does not leak fields from a child back into the parent", func() {
		core, logs := observer.New(zap.DebugLevel)

		parent := New(zap.New(core), zap.String("pkg", "api"))
		_ = parent.With(zap.String("method", "importHandler"))

		parent.Debug("hello")

		Expect(logs.All()[0].ContextMap()).ToNot(HaveKey("method"))
	})

	It("overwrites fields with the same key", func() {
		core, logs := observer.New(zap.DebugLevel)

		New(zap.New(core), zap.String("method", "a")).With(zap.String("method", "b")).Warn("x")

		Expect(logs.All()[0].ContextMap()).To(HaveKeyWithValue("method", "b"))
	})
})

var _ = Describe("TestLogger", func() {
	It("records messages with their level", func() {
		t := &TestLogger{}
		t.With(zap.String("pkg", "x")).Info("one")
		t.Error("two")

		Expect(t.Lines()).To(Equal([]string{"INFO: one", "ERROR: two"}))
	})
})
