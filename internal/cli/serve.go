package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/plannerd/internal/api"
	"github.com/nhle/plannerd/internal/credential"
	"github.com/nhle/plannerd/internal/ident"
	"github.com/nhle/plannerd/internal/model"
	"github.com/nhle/plannerd/internal/planner"
	"github.com/nhle/plannerd/internal/runner"
	"github.com/nhle/plannerd/internal/scheduler"
	"github.com/nhle/plannerd/internal/store"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the planner API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts)
		},
	}
}

func runServe(opts *RootOptions) error {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := model.LoadConfig(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Runner.BaseURL == "" {
		return fmt.Errorf("runner.base_url is not configured (edit %s)", opts.ConfigPath)
	}

	runnerToken, err := credential.Get(credential.KeyRunnerToken)
	if err != nil {
		return fmt.Errorf("reading runner token: %w (set it with 'plannerd credential set %s')",
			err, credential.KeyRunnerToken)
	}

	// Prefer the keyring entry; the config value is a fallback for
	// environments without a usable keyring backend.
	jwtSecret, err := credential.Get(credential.KeyJWTSecret)
	if err != nil {
		jwtSecret = cfg.Auth.JWTSecret
	}
	if jwtSecret == "" {
		return fmt.Errorf("no JWT secret configured (set it with 'plannerd credential set %s')",
			credential.KeyJWTSecret)
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	ids, err := ident.New()
	if err != nil {
		return fmt.Errorf("building id registry: %w", err)
	}

	rc := runner.NewClient(cfg.Runner.BaseURL, runnerToken)
	sched := scheduler.New(rc, ids, cfg.Runner.TaskName, log)
	svc := planner.New(st, ids, sched, log)

	app := api.NewApp(svc, jwtSecret, log)
	log.Info("starting server",
		slog.String("addr", cfg.ListenAddr),
		slog.String("db", cfg.DBPath))
	return app.Listen(cfg.ListenAddr)
}
