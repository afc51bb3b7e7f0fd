package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backoffice/pkg/config"
	"github.com/angelmondragon/storefront-backoffice/pkg/db"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	"github.com/angelmondragon/storefront-backoffice/pkg/migrate"
)

// invocation is one parsed command line.
type invocation struct {
	cmd     string
	dir     string
	name    string
	version string
}

// offline commands only touch the migrations directory.
var offline = map[string]func(inv invocation, out io.Writer) error{
	"create": func(inv invocation, out io.Writer) error {
		if inv.name == "" {
			return errors.New("-name is required for create")
		}
		path, err := migrate.CreateSQLMigration(inv.dir, inv.name)
		if err != nil {
			return fmt.Errorf("create migration: %w", err)
		}
		fmt.Fprintln(out, "created migration:", path)
		return nil
	},
	"validate": func(inv invocation, out io.Writer) error {
		if err := migrate.ValidateDir(inv.dir); err != nil {
			return fmt.Errorf("validate migrations: %w", err)
		}
		fmt.Fprintln(out, "migration validation passed")
		return nil
	},
	"list": func(inv invocation, out io.Writer) error {
		migrations, err := migrate.Scan(inv.dir)
		if err != nil {
			return fmt.Errorf("scan migrations: %w", err)
		}
		for _, m := range migrations {
			fmt.Fprintf(out, "%d\t%s\n", m.Version, m.Name)
		}
		return nil
	},
}

// gooseCommands run against postgres through goose.
var gooseCommands = map[string]bool{"up": true, "down": true, "status": true, "version": true}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	inv := invocation{}
	flag.StringVar(&inv.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate|list|automigrate")
	flag.StringVar(&inv.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&inv.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&inv.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	if command, ok := offline[inv.cmd]; ok {
		if err := command(inv, os.Stdout); err != nil {
			logg.Error(context.Background(), "migration command failed", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": inv.cmd, "dir": inv.dir})

	if err := runOnline(ctx, cfg, logg, inv); err != nil {
		logg.Error(ctx, "migration command failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration command finished")
}

func runOnline(ctx context.Context, cfg *config.Config, logg *logger.Logger, inv invocation) error {
	if inv.cmd != "automigrate" && !gooseCommands[inv.cmd] {
		return fmt.Errorf("unknown -cmd value %q", inv.cmd)
	}
	if inv.cmd == "version" && strings.TrimSpace(inv.version) == "" {
		return errors.New("-version is required for -cmd=version")
	}

	sqlite := cfg.FeatureFlags.UseSQLite
	if sqlite {
		cfg.DB.Driver = db.DriverSQLite
		if inv.cmd != "automigrate" && inv.cmd != "up" {
			return fmt.Errorf("goose %s is not supported on sqlite; use -cmd=automigrate", inv.cmd)
		}
	}

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer client.Close()

	if sqlite || inv.cmd == "automigrate" {
		if err := client.DB().WithContext(ctx).AutoMigrate(migrate.Models...); err != nil {
			return fmt.Errorf("automigrate: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("unwrap sql database: %w", err)
	}
	if inv.cmd == "version" {
		return migrate.MigrateToVersion(ctx, sqlDB, inv.dir, inv.version)
	}
	return migrate.Run(ctx, sqlDB, inv.dir, inv.cmd)
}
