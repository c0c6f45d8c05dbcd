// Command tasky is a terminal client for the task API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"tasky/internal/api"
	"tasky/internal/cli"
	"tasky/internal/commands"
	"tasky/internal/config"
	"tasky/internal/prompt"
	"tasky/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, newBackend)
	dispatcher.SetPrompter(prompt.NewTerminal(os.Stdin, os.Stderr))

	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// newBackend builds the HTTP client for the configured API. It shares store
// with the auth flows so refreshed tokens are persisted.
func newBackend(_ context.Context, cfg *config.Config, store *session.Store, logger *zap.Logger) (commands.Backend, error) {
	return api.New(api.Options{
		BaseURL:        cfg.Settings.BaseURL,
		TokenHeader:    cfg.Settings.AccessTokenHeader,
		Timeout:        cfg.Settings.Timeout,
		RefreshTimeout: cfg.Settings.RefreshTimeout,
		Logger:         logger,
	}, store)
}
