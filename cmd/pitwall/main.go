// Command pitwall relays live telemetry from one gRPC producer to any number
// of WebSocket and SSE observers.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/kbukum/pitwall/bootstrap"
	"github.com/kbukum/pitwall/config"
	"github.com/kbukum/pitwall/observability"
	"github.com/kbukum/pitwall/relay"
	"github.com/kbukum/pitwall/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "pitwall: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet(relay.ServiceName, pflag.ContinueOnError)
	configFile := fs.String("config", "", "path to config.yml")
	envFile := fs.String("env-file", "", "path to a .env file")
	showVersion := fs.Bool("version", false, "print version and exit")
	fs.String("grpc.host", "", "ingest listen host")
	fs.Int("grpc.port", 0, "ingest listen port")
	fs.String("server.host", "", "observer listen host")
	fs.Int("server.port", 0, "observer listen port")
	fs.Int("broadcast.capacity", 0, "frames retained by the broadcast ring")
	fs.String("observer.lag_policy", "", "terminate or resume")
	fs.Bool("ingest.exclusive", false, "reject a second concurrent producer")
	fs.Bool("mirror.enabled", false, "publish frames to Redis")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Println(version.Get().String())
		return nil
	}

	var cfg relay.Config
	err := config.LoadConfig(relay.ServiceName, &cfg,
		config.WithConfigFile(*configFile),
		config.WithEnvFile(*envFile),
		config.WithFlags(fs),
	)
	if err != nil {
		return err
	}
	if cfg.Version == "" {
		cfg.Version = version.Get().Version
	}

	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	shutdownTelemetry, err := observability.Setup(ctx, cfg.Observability, observability.Resource{
		ServiceName:    cfg.Name,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
	})
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	app.OnStop(func(ctx context.Context) error { return shutdownTelemetry(ctx) })

	r, err := relay.New(app.Cfg, app.Logger)
	if err != nil {
		return err
	}
	if err := r.Register(app.Components); err != nil {
		return err
	}
	return app.Run(ctx)
}
