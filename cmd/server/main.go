package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/arena"
	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/comms"
	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/config"
	"github.com/JJ-Intelligence/SR-Sea-Battle/pkg/server"
)

var (
	configPath = flag.String("config", os.Getenv(config.EnvPath), "Path to the YAML config file")
	monitor    = flag.String("monitor", getEnvOrDefault("SEABATTLE_MONITOR", ""), "Address to serve the status feed on, overrides monitor.listen")
)

// getEnvOrDefault tries to get an Environment variable or returns a default
// if it doesn't exist
func getEnvOrDefault(key string, def string) string {
	env, ok := os.LookupEnv(key)
	if ok {
		return env
	}
	return def
}

func newLogger(development bool) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)
	if development {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "unable to build logger:", err)
		os.Exit(1)
	}
	return log
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	cfg, err := config.ParseConfig(config.Path(*configPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *monitor != "" {
		cfg.Monitor.Listen = *monitor
	}

	log := newLogger(cfg.Log.Development)
	defer log.Sync()

	deadlock.Opts.Disable = !cfg.Debug.DeadlockDetection
	deadlock.Opts.DeadlockTimeout = cfg.Debug.DeadlockTimeout

	a, err := arena.Create(cfg.Arena.Path, cfg.Arena.Limits(), arena.WithLogger(log))
	if err != nil {
		log.Error("Unable to create arena", zap.String("path", cfg.Arena.Path), zap.Error(err))
		return 1
	}
	log.Info("Arena ready",
		zap.String("path", a.Path()),
		zap.String("instance", a.Instance().String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var feed *server.Feed
	feedDone := make(chan error, 1)
	if cfg.Monitor.Listen != "" {
		codec, err := comms.NewCodec(cfg.Monitor.Format)
		if err != nil {
			log.Error("Invalid monitor format", zap.Error(err))
			return 1
		}
		feed = server.NewFeed(log, codec, nil)
		log.Info(fmt.Sprintf("Serving status feed on ws://%s/status", cfg.Monitor.Listen))
		go func() {
			feedDone <- server.ServeFeed(ctx, cfg.Monitor.Listen, feed)
		}()
	} else {
		feedDone <- nil
	}

	code := 0
	if err := server.NewServer(log, a, cfg.Server, feed).Run(ctx); err != nil {
		log.Error("Reconciliation loop failed", zap.Error(err))
		code = 1
	}
	stop()

	if err := <-feedDone; err != nil {
		log.Error("Status feed failed", zap.Error(err))
	}
	if err := a.Destroy(); err != nil {
		log.Error("Arena teardown failed", zap.Error(err))
		code = 1
	} else {
		log.Info("Arena destroyed", zap.String("path", cfg.Arena.Path))
	}
	return code
}
