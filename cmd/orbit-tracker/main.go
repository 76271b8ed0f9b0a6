package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalsfoundry/orbit-tracker/internal/config"
	"github.com/signalsfoundry/orbit-tracker/internal/feed"
	"github.com/signalsfoundry/orbit-tracker/internal/logging"
	"github.com/signalsfoundry/orbit-tracker/internal/observability"
	"github.com/signalsfoundry/orbit-tracker/internal/server"
	"github.com/signalsfoundry/orbit-tracker/internal/track"
)

func main() {
	configPath := flag.String("config", "configs/config.yml", "Path to the YAML configuration file")
	useTLE := flag.Bool("tle", false, "Propagate positions from the configured TLE instead of polling the HTTP feed")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load config", logging.String("path", *configPath), logging.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.Logging.Level != "" || cfg.Logging.Format != "" {
		log = logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	collector, err := observability.NewTrackerCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}

	source, err := buildSource(cfg, *useTLE)
	if err != nil {
		log.Error(ctx, "failed to build position source", logging.String("error", err.Error()))
		os.Exit(1)
	}

	interval := time.Duration(cfg.Feed.PollIntervalMS) * time.Millisecond
	trail := track.NewTrail(cfg.Trail.SphereRadius, cfg.Trail.MaxPastPoints, cfg.Trail.FuturePoints)
	store := server.NewStore()

	tracker := track.New(source, track.Options{
		Interval:     interval,
		FetchTimeout: time.Duration(cfg.Feed.FetchTimeoutMS) * time.Millisecond,
		Log:          log,
		Recorder:     collector,
		OnUpdate: func(pos track.Position) {
			past, future, err := trail.Update(pos)
			if err != nil {
				// Trail rejects non-finite coordinates; keep the previous
				// snapshot and move on.
				log.Warn(ctx, "dropped invalid position",
					logging.Any("latitude", pos.Latitude),
					logging.Any("longitude", pos.Longitude))
				return
			}
			store.Set(server.Snapshot{Past: past, Future: future, Position: pos})
			collector.SetTrailSize(trail.Len())
			collector.MarkUpdate(pos.Timestamp)
		},
		// OnError left as the default no-op: the tracker logs every failure
		// itself and retries on the next tick.
	})

	stopCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stop := tracker.Start(stopCtx)
	defer stop()

	// Health goes stale after three missed intervals.
	srv := server.New(store, 3*interval, collector.Handler(), log)
	if err := srv.ListenAndServe(stopCtx, cfg.Server.Port); err != nil {
		log.Error(ctx, "http server exited", logging.String("error", err.Error()))
	}

	stop()
	select {
	case <-tracker.Done():
	case <-time.After(interval + time.Second):
	}
	log.Info(ctx, "shutdown complete")
}

// buildSource picks the position source: the HTTP feed by default, SGP4
// propagation of the configured TLE with -tle.
func buildSource(cfg config.AppConfig, useTLE bool) (track.Source, error) {
	if useTLE {
		if cfg.Feed.TLE.Line1 == "" {
			return nil, errors.New("no TLE configured; set feed.tle in the config file")
		}
		return feed.NewTLESource(cfg.Feed.TLE.Line1, cfg.Feed.TLE.Line2), nil
	}
	return feed.NewClient(cfg.Feed.URL), nil
}
