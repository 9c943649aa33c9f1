// Command switchboard runs the local HTTP gateway that drives an IDE
// assistant extension through named commands.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/switchboard/pkg/bus"
	"github.com/odvcencio/switchboard/pkg/command"
	"github.com/odvcencio/switchboard/pkg/config"
	"github.com/odvcencio/switchboard/pkg/gateway"
	"github.com/odvcencio/switchboard/pkg/host"
	"github.com/odvcencio/switchboard/pkg/logging"
)

// Populated at build time via -ldflags.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "switchboard: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("switchboard", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to a config file (overrides the default search)")
	bind := fs.String("bind", "", "Listen address for the command gateway")
	natsURL := fs.String("nats", "", "NATS server URL for the assistant host bus")
	logLevel := fs.String("log-level", "", "Minimum log level (debug, info, warn, error)")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Printf("switchboard %s (commit %s, built %s)\n", version, commit, buildDate)
		return nil
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *bind != "" {
		cfg.Gateway.Bind = *bind
	}
	if *natsURL != "" {
		cfg.Bus.URL = *natsURL
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	events, err := logging.NewLogger(cfg.Logging.Dir)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer events.Close()
	events.SetMinLevel(logging.ParseLevel(cfg.Logging.Level))

	messageBus, err := openBus(cfg)
	if err != nil {
		return fmt.Errorf("connect host bus: %w", err)
	}
	defer messageBus.Close()

	hostClient := host.NewClient(messageBus,
		host.WithTimeout(time.Duration(cfg.Bus.TimeoutSecs)*time.Second),
		host.WithSubjectRoot(cfg.Bus.SubjectRoot),
	)
	executor := command.NewExecutor(hostClient, hostClient, events)

	server := gateway.NewServer(gateway.Config{
		BindAddress:    cfg.Gateway.Bind,
		AllowedOrigins: cfg.Gateway.AllowedOrigins,
		RequestTimeout: time.Duration(cfg.Gateway.RequestTimeoutSecs) * time.Second,
		MaxBodyBytes:   cfg.Gateway.MaxBodyBytes,
		Version:        version,
	}, executor, events)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, func(next *config.Config) {
			events.SetMinLevel(logging.ParseLevel(next.Logging.Level))
			_ = events.Info(logging.CategoryConfig, "reloaded", "", map[string]any{
				"log_level": next.Logging.Level,
			})
		})
		if err != nil {
			_ = events.Warn(logging.CategoryConfig, "watch_failed", err.Error(), nil)
		} else {
			g.Go(func() error {
				if err := watcher.Run(gctx); err != nil && gctx.Err() == nil {
					return err
				}
				return nil
			})
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		return server.Stop(shutdownCtx)
	})

	return g.Wait()
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// openBus connects to the assistant host bus. Without a NATS URL the
// in-process bus is used, which only makes sense for single-binary setups
// where the host adapter runs in the same process.
func openBus(cfg *config.Config) (bus.MessageBus, error) {
	if cfg.Bus.URL == "" {
		return bus.NewMemoryBus(), nil
	}
	return bus.NewNATSBus(bus.Config{
		URL:     cfg.Bus.URL,
		Name:    cfg.Bus.Name,
		Timeout: time.Duration(cfg.Bus.TimeoutSecs) * time.Second,
	})
}
