package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/nabd-ai/vertex-backend/pkg/config"
	"github.com/nabd-ai/vertex-backend/pkg/db"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
	"github.com/nabd-ai/vertex-backend/pkg/migrate"
)

const usage = `usage: migrate [-dir path] <command> [arg]

commands:
  up               apply all pending migrations
  down             roll back the latest migration
  status           list migrations and whether they are applied
  to <version>     migrate up or down to version (YYYYMMDDHHMMSS)
  create <name>    write a new empty migration into -dir
  validate         check file names and goose annotations

Without -dir the migrations embedded in the binary are used.
`

func main() {
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, arg := flag.Arg(0), flag.Arg(1)

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	if err := run(context.Background(), logg, cmd, arg, *dir); err != nil {
		logg.Error(logg.WithField(context.Background(), "cmd", cmd), "migrate failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger, cmd, arg, dir string) error {
	// offline commands never touch config or the database
	switch cmd {
	case "create":
		if arg == "" {
			return errors.New("create needs a migration name")
		}
		target := dir
		if target == "" {
			target = migrate.SourceDir
		}
		path, err := migrate.Create(target, arg, time.Now())
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	case "validate":
		fsys := migrate.DirFS(dir)
		if fsys == nil {
			fsys = migrate.Embedded()
		}
		if err := migrate.Validate(fsys); err != nil {
			return err
		}
		fmt.Println("migrations ok")
		return nil
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	runner, err := migrate.NewRunner(sqlDB, migrate.DirFS(dir))
	if err != nil {
		return err
	}

	var applied []migrate.Applied
	switch cmd {
	case "up":
		applied, err = runner.Up(ctx)
	case "down":
		applied, err = runner.Down(ctx)
	case "to":
		version, parseErr := strconv.ParseInt(arg, 10, 64)
		if parseErr != nil {
			return fmt.Errorf("to needs a numeric version, got %q", arg)
		}
		applied, err = runner.To(ctx, version)
	case "status":
		rows, statusErr := runner.Status(ctx)
		if statusErr != nil {
			return statusErr
		}
		for _, row := range rows {
			state := "pending"
			if row.Applied {
				state = "applied"
			}
			fmt.Printf("%-8s %d %s\n", state, row.Version, row.Path)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	for _, m := range applied {
		direction := "up"
		if m.Down {
			direction = "down"
		}
		logg.Info(logg.WithFields(ctx, map[string]any{"version": m.Version, "file": m.Path, "direction": direction}), "migration applied")
	}
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "count", len(applied)), "migrate done")
	return nil
}
