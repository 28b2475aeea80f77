package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/Tyrowin/gochat/internal/broker"
	"github.com/Tyrowin/gochat/internal/config"
	"github.com/Tyrowin/gochat/internal/logging"
	"github.com/Tyrowin/gochat/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	logger := logging.New(cfg.LogLevel, cfg.IsDevelopment())
	logger.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.Origins()).
		Str("env", cfg.Env).
		Msg("starting gochat server")

	b := broker.New(logger)
	srv := server.New(cfg, b, logger)
	srv.StartHub()

	httpServer := srv.CreateServer()
	go func() {
		if err := srv.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				return srv.ShutdownServer(ctx, httpServer)
			},
			"hub": func(_ context.Context) error {
				return srv.Hub().Shutdown(cfg.ShutdownTimeout)
			},
		},
	)

	exitCode := <-wait
	logger.Info().Int("exit_code", exitCode).Msg("server exited")
	return exitCode
}
