package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/tindahan/marketplace-backend/pkg/config"
	"github.com/tindahan/marketplace-backend/pkg/db"
	"github.com/tindahan/marketplace-backend/pkg/logger"
	"github.com/tindahan/marketplace-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
	force   bool
}

var errUsage = errors.New("usage")

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate|embedded-up")
	fs.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	fs.StringVar(&opts.name, "name", "", "migration name (for create)")
	fs.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	fs.BoolVar(&opts.force, "force", false, "allow down/version in prod")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	// create and validate work on files only and need no config
	if handled, err := runFileCommand(opts, os.Stdout, time.Now()); handled {
		exitOn(err)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"dir": opts.dir,
	})

	exitOn(runDBCommand(ctx, cfg, logg, opts))
}

func exitOn(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "migrate:", err)
	if errors.Is(err, errUsage) {
		os.Exit(2)
	}
	os.Exit(1)
}

func runFileCommand(opts options, stdout io.Writer, now time.Time) (bool, error) {
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return true, fmt.Errorf("%w: -name is required for create", errUsage)
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name, now)
		if err != nil {
			return true, err
		}
		fmt.Fprintln(stdout, "created migration:", path)
		return true, nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return true, fmt.Errorf("migration validation failed: %w", err)
		}
		if err := migrate.ValidateFS(migrate.Embedded, "migrations"); err != nil {
			return true, fmt.Errorf("embedded migrations invalid: %w", err)
		}
		fmt.Fprintln(stdout, "migration validation passed")
		return true, nil
	}
	return false, nil
}

// destructive reports whether the command can drop order history.
func destructive(cmd string) bool {
	return cmd == "down" || cmd == "version"
}

func runDBCommand(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) (err error) {
	if destructive(opts.cmd) && cfg.App.IsProd() && !opts.force {
		return fmt.Errorf("%w: -cmd=%s in %s requires -force", errUsage, opts.cmd, cfg.App.Env)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer func() {
		if cerr := dbClient.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql database: %w", err)
	}
	logg.Info(ctx, "migrate ready")

	switch opts.cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, opts.dir, opts.cmd)
	case "embedded-up":
		return migrate.RunEmbedded(ctx, sqlDB, "up")
	case "version":
		if opts.version == "" {
			return fmt.Errorf("%w: -version is required for version", errUsage)
		}
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	}
	return fmt.Errorf("%w: unknown -cmd value %q", errUsage, opts.cmd)
}
