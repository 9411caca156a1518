package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dselans/blastbeat-albums/api"
	"github.com/dselans/blastbeat-albums/config"
	"github.com/dselans/blastbeat-albums/deps"
)

const (
	ShutdownTimeout = 10 * time.Second
)

var (
	version = "v0.0.0"
)

func main() {
	cfg := config.New(version)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("unable to validate config: %s", err)
	}

	d, err := deps.New(cfg)
	if err != nil {
		log.Fatalf("Could not setup dependencies: %s", err)
	}

	d.Log.Debug("config", zap.Any("config", cfg.GetMap()))

	if err := d.ProcessorService.StartConsumers(); err != nil {
		d.Log.Fatal("unable to start processor consumers", zap.Error(err))
	}

	a, err := api.New(cfg, d, version)
	if err != nil {
		d.Log.Fatal("unable to create API instance", zap.Error(err))
	}

	// Run API server in a goroutine so that the signal listener can block the
	// main thread and orchestrate graceful shutdown.
	go func() {
		if err := a.Run(); err != nil {
			if errors.Is(err, http.ErrServerClosed) {
				return
			}

			d.Log.Fatal("API server run() failed", zap.Error(err))
		}
	}()

	d.Log.Info("blastbeat-albums started", zap.String("version", version))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	d.Log.Info("received signal - shutting down", zap.String("signal", sig.String()))

	d.ShutdownCancel()

	select {
	case <-d.PublisherShutdownDoneCh:
		d.Log.Debug("publisher shutdown complete")
	case <-time.After(ShutdownTimeout):
		d.Log.Warn("timed out waiting for publisher shutdown")
	}

	if err := d.Health.Stop(); err != nil {
		d.Log.Warn("unable to stop health runner", zap.Error(err))
	}

	if err := d.DBBackend.Close(); err != nil {
		d.Log.Warn("unable to close database", zap.Error(err))
	}

	if err := d.RedisClient.Close(); err != nil {
		d.Log.Warn("unable to close redis client", zap.Error(err))
	}

	d.Log.Info("shutdown complete")
}
