package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/target/mmk-items-api/config"
	"github.com/target/mmk-items-api/internal/bootstrap"
	"github.com/target/mmk-items-api/internal/data"
	"github.com/target/mmk-items-api/internal/devseed"
	"github.com/target/mmk-items-api/internal/domain/model"
	"github.com/target/mmk-items-api/internal/service"
	"github.com/target/mmk-items-api/internal/util"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultProcessTimeout   = 30 * time.Minute
	defaultRunsLimit        = 20
)

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
		"migrate-status": {
			name:        "migrate-status",
			description: "List embedded migrations and whether each is applied",
			run:         runMigrationStatus,
		},
		"db-reset": {
			name:        "db-reset",
			description: "Drop the database schema, run migrations, and optionally seed items",
			run:         runDBReset,
		},
		"db-seed": {
			name:        "db-seed",
			description: "Run database migrations and seed development items",
			run:         runDBSeed,
		},
		"process": {
			name:        "process",
			description: "Run one process-all batch and print its summary",
			run:         runProcess,
		},
		"runs": {
			name:        "runs",
			description: "List recent batch runs, or show one with --id",
			run:         runListRuns,
		},
		"list-cache-keys": {
			name:        "list-cache-keys",
			description: "Inspect cached item keys in Redis",
			run:         runListCacheKeys,
		},
		"clear-item-cache": {
			name:        "clear-item-cache",
			description: "Remove cached items from Redis",
			run:         runClearItemCache,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: items-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := writef(w, "  %-24s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

type migrateOptions struct {
	Timeout time.Duration
}

type dbResetOptions struct {
	Timeout     time.Duration
	Yes         bool
	Seed        bool
	Count       int
	AllowRemote bool
}

type dbSeedOptions struct {
	Timeout     time.Duration
	Count       int
	AllowRemote bool
}

type processOptions struct {
	Timeout     time.Duration
	JSON        bool
	AllowRemote bool
}

type runsOptions struct {
	ID     string
	Limit  int
	Offset int
	Status string
	JSON   bool
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		cmdCtx.Logger.Info("running database migrations")
		if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
			return fmt.Errorf("run migrations: %w", migrateErr)
		}
		cmdCtx.Logger.Info("migrations completed successfully")
		return nil
	})
}

func runMigrationStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		statuses, statusErr := data.MigrationStatus(ctx, db)
		if statusErr != nil {
			return fmt.Errorf("migration status: %w", statusErr)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		if writeErr := writeln(tw, "VERSION\tFILE\tAPPLIED"); writeErr != nil {
			return writeErr
		}
		for _, st := range statuses {
			if writeErr := writef(tw, "%s\t%s\t%t\n", st.Version, st.File, st.Applied); writeErr != nil {
				return writeErr
			}
		}
		return tw.Flush()
	})
}

func runDBReset(cmdCtx *commandContext, args []string) error {
	opts, err := parseDBResetFlags(args)
	if err != nil {
		return err
	}

	target := fmt.Sprintf(
		"database %q on %s:%d",
		cmdCtx.Config.Postgres.Name,
		cmdCtx.Config.Postgres.Host,
		cmdCtx.Config.Postgres.Port,
	)

	remote, err := guardRemoteHost(cmdCtx, opts.AllowRemote, "drop and recreate the public schema")
	if err != nil {
		return err
	}

	confirmOpts := dbResetConfirmOptions{
		yes:    opts.Yes,
		target: target,
	}
	if remote {
		confirmOpts.remoteHost = cmdCtx.Config.Postgres.Host
	}
	if confirmErr := confirmAction(confirmOpts, "reset database schema"); confirmErr != nil {
		return confirmErr
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		cmdCtx.Logger.Info("dropping public schema", "database", cmdCtx.Config.Postgres.Name)
		if resetErr := cmdCtx.resetDatabase(ctx, db); resetErr != nil {
			return resetErr
		}

		cmdCtx.Logger.Info("re-running database migrations")
		if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
			return fmt.Errorf("run migrations: %w", migrateErr)
		}

		if opts.Seed {
			cmdCtx.Logger.Info("seeding development items after reset")
			if seedErr := seedItems(ctx, db, opts.Count, cmdCtx.Logger); seedErr != nil {
				return seedErr
			}
		}

		cmdCtx.Logger.Info("database reset completed successfully")
		return nil
	})
}

func runDBSeed(cmdCtx *commandContext, args []string) error {
	opts, err := parseDBSeedFlags(args)
	if err != nil {
		return err
	}

	if _, guardErr := guardRemoteHost(cmdCtx, opts.AllowRemote, "seed development items on the configured database"); guardErr != nil {
		return guardErr
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		cmdCtx.Logger.Info("ensuring database migrations are current")
		if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
			return fmt.Errorf("run migrations: %w", migrateErr)
		}

		if seedErr := seedItems(ctx, db, opts.Count, cmdCtx.Logger); seedErr != nil {
			return seedErr
		}

		cmdCtx.Logger.Info("database seeding completed successfully")
		return nil
	})
}

// seedItems writes straight to Postgres so seeding never touches a shared cache.
func seedItems(ctx context.Context, db *sql.DB, count int, logger *slog.Logger) error {
	items, err := service.NewItemService(service.ItemServiceOptions{Repo: data.NewItemRepo(db)})
	if err != nil {
		return err
	}
	if seedErr := devseed.Run(ctx, items, count, logger); seedErr != nil {
		return fmt.Errorf("seed data: %w", seedErr)
	}
	return nil
}

func runProcess(cmdCtx *commandContext, args []string) error {
	opts, err := parseProcessFlags(args)
	if err != nil {
		return err
	}
	if _, guardErr := guardRemoteHost(cmdCtx, opts.AllowRemote, "mark every item PROCESSED"); guardErr != nil {
		return guardErr
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	db, redisClient, err := connectInfraWithOptions(&connectInfraOptions{
		Logger:    cmdCtx.Logger,
		Config:    &cmdCtx.Config,
		WantDB:    true,
		WantRedis: cmdCtx.Config.Cache.Enabled,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeInfra(db, redisClient); closeErr != nil {
			cmdCtx.Logger.Warn("close infrastructure failed", "error", closeErr)
		}
	}()

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		DB:          db,
		RedisClient: redisClient,
		Config:      &cmdCtx.Config,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer closeCancel()
		if closeErr := services.Close(closeCtx); closeErr != nil {
			cmdCtx.Logger.Warn("close services failed", "error", closeErr)
		}
	}()

	handle := services.Engine.ProcessAll(ctx)
	cmdCtx.Logger.Info("batch run started", "run_id", handle.RunID())
	<-handle.Done()

	result, batchErr := handle.Result()
	if result != nil {
		if printErr := printRunSummary(os.Stdout, &result.Summary, opts.JSON); printErr != nil {
			return printErr
		}
	}
	if batchErr != nil {
		return fmt.Errorf("batch run %s: %w", handle.RunID(), batchErr)
	}
	return nil
}

func runListRuns(cmdCtx *commandContext, args []string) error {
	opts, err := parseRunsFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, time.Minute, func(ctx context.Context, db *sql.DB) error {
		svc, svcErr := service.NewBatchRunService(service.BatchRunServiceOptions{Repo: data.NewBatchRunRepo(db)})
		if svcErr != nil {
			return svcErr
		}

		if opts.ID != "" {
			run, getErr := svc.GetByID(ctx, opts.ID)
			if getErr != nil {
				return fmt.Errorf("get batch run: %w", getErr)
			}
			return printRunSummary(os.Stdout, run, opts.JSON)
		}

		listOpts := model.BatchRunListOptions{Limit: opts.Limit, Offset: opts.Offset}
		if opts.Status != "" {
			status := model.BatchRunStatus(opts.Status)
			listOpts.Status = &status
		}
		runs, listErr := svc.List(ctx, listOpts)
		if listErr != nil {
			return fmt.Errorf("list batch runs: %w", listErr)
		}
		if opts.JSON {
			return writeJSON(os.Stdout, runs)
		}
		return renderRunsTable(os.Stdout, runs)
	})
}

func printRunSummary(w io.Writer, run *model.BatchRunSummary, asJSON bool) error {
	if asJSON {
		return writeJSON(w, run)
	}

	if err := writef(w, "Run %s: %s\n", run.ID, run.Status); err != nil {
		return err
	}
	if err := writef(w, "  total=%d succeeded=%d failed=%d duration=%s\n",
		run.Total, run.Succeeded, run.Failed, util.FormatDuration(run.Duration())); err != nil {
		return err
	}
	if run.Error != nil {
		if err := writef(w, "  error: %s\n", *run.Error); err != nil {
			return err
		}
	}
	for _, f := range run.Failures {
		line := fmt.Sprintf("  - %s %s", f.ItemID, f.Reason)
		if f.Error != "" {
			line += ": " + f.Error
		}
		if err := writeln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func renderRunsTable(w io.Writer, runs []*model.BatchRunSummary) error {
	if len(runs) == 0 {
		return writeln(w, "(no batch runs found)")
	}
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	if err := writeln(tw, "ID\tSTATUS\tTOTAL\tSUCCEEDED\tFAILED\tFINISHED"); err != nil {
		return err
	}
	for _, run := range runs {
		if err := writef(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			run.ID, run.Status, run.Total, run.Succeeded, run.Failed,
			run.FinishedAt.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{}
	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete",
	)

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}

	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

func parseDBResetFlags(args []string) (dbResetOptions, error) {
	fs := flag.NewFlagSet("db-reset", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := dbResetOptions{}
	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultMigrationTimeout,
		"Maximum duration to wait for reset operations to complete",
	)
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")
	fs.BoolVar(&opts.Seed, "seed", false, "Run database seeding after reset completes")
	fs.IntVar(&opts.Count, "count", devseed.DefaultCount, "Number of items to seed with --seed")
	fs.BoolVar(
		&opts.AllowRemote,
		"allow-remote",
		false,
		"Permit running against database hosts that do not look local",
	)

	if err := fs.Parse(args); err != nil {
		return dbResetOptions{}, err
	}

	if opts.Timeout <= 0 {
		return dbResetOptions{}, errors.New("--timeout must be greater than zero")
	}
	if opts.Count <= 0 {
		return dbResetOptions{}, errors.New("--count must be greater than zero")
	}

	return opts, nil
}

func parseDBSeedFlags(args []string) (dbSeedOptions, error) {
	fs := flag.NewFlagSet("db-seed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := dbSeedOptions{}
	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultMigrationTimeout,
		"Maximum duration to wait for seeding to complete",
	)
	fs.IntVar(&opts.Count, "count", devseed.DefaultCount, "Number of items to seed")
	fs.BoolVar(
		&opts.AllowRemote,
		"allow-remote",
		false,
		"Permit running against database hosts that do not look local",
	)

	if err := fs.Parse(args); err != nil {
		return dbSeedOptions{}, err
	}

	if opts.Timeout <= 0 {
		return dbSeedOptions{}, errors.New("--timeout must be greater than zero")
	}
	if opts.Count <= 0 {
		return dbSeedOptions{}, errors.New("--count must be greater than zero")
	}

	return opts, nil
}

func parseProcessFlags(args []string) (processOptions, error) {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := processOptions{}
	fs.DurationVar(&opts.Timeout, "timeout", defaultProcessTimeout, "Maximum duration to wait for the batch")
	fs.BoolVar(&opts.JSON, "json", false, "Print the run summary as JSON")
	fs.BoolVar(
		&opts.AllowRemote,
		"allow-remote",
		false,
		"Permit running against database hosts that do not look local",
	)

	if err := fs.Parse(args); err != nil {
		return processOptions{}, err
	}

	if opts.Timeout <= 0 {
		return processOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

func parseRunsFlags(args []string) (runsOptions, error) {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := runsOptions{}
	fs.StringVar(&opts.ID, "id", "", "Show a single batch run")
	fs.IntVar(&opts.Limit, "limit", defaultRunsLimit, "Maximum runs to list")
	fs.IntVar(&opts.Offset, "offset", 0, "Runs to skip")
	fs.StringVar(&opts.Status, "status", "", "Filter by status (COMPLETED, PARTIAL_FAILURE, FAILED)")
	fs.BoolVar(&opts.JSON, "json", false, "Print JSON instead of a table")

	if err := fs.Parse(args); err != nil {
		return runsOptions{}, err
	}

	opts.ID = strings.TrimSpace(opts.ID)
	opts.Status = strings.ToUpper(strings.TrimSpace(opts.Status))
	if opts.Status != "" && !model.BatchRunStatus(opts.Status).Valid() {
		return runsOptions{}, fmt.Errorf("--status %q is not a batch run status", opts.Status)
	}
	if opts.Limit <= 0 {
		return runsOptions{}, errors.New("--limit must be greater than zero")
	}
	if opts.Offset < 0 {
		return runsOptions{}, errors.New("--offset cannot be negative")
	}

	return opts, nil
}

func withDatabase(
	cmdCtx *commandContext,
	timeout time.Duration,
	f func(context.Context, *sql.DB) error,
) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", cerr)
		}
	}()

	return f(ctx, db)
}

func guardRemoteHost(cmdCtx *commandContext, allow bool, action string) (bool, error) {
	remote := isLikelyRemoteHost(cmdCtx.Config.Postgres.Host)
	if !remote {
		return false, nil
	}
	if !allow {
		return true, fmt.Errorf(
			"refusing to run against potentially remote database host %q; re-run with --allow-remote if this is intentional",
			cmdCtx.Config.Postgres.Host,
		)
	}
	if err := requireRemoteHostConfirmation(action, cmdCtx.Config.Postgres.Host); err != nil {
		return true, err
	}
	return true, nil
}

func (cmdCtx *commandContext) resetDatabase(ctx context.Context, db *sql.DB) error {
	if cmdCtx == nil {
		return errors.New("command context is required")
	}

	cfg := &cmdCtx.Config.Postgres
	statements := []string{
		"DROP SCHEMA public CASCADE",
		"CREATE SCHEMA public",
		"GRANT ALL ON SCHEMA public TO public",
	}
	if user := strings.TrimSpace(cfg.User); user != "" && !strings.EqualFold(user, "public") {
		statements = append(statements, "GRANT ALL ON SCHEMA public TO "+quoteIdentifier(user))
	}

	for _, stmt := range statements {
		if cmdCtx.Logger != nil {
			cmdCtx.Logger.DebugContext(ctx, "executing reset statement", "sql", stmt)
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func isLikelyRemoteHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "" {
		return false
	}
	if h == "localhost" || h == "127.0.0.1" || h == "::1" {
		return false
	}
	if strings.HasSuffix(h, ".local") {
		return false
	}
	if ip := net.ParseIP(h); ip != nil {
		return !ip.IsLoopback()
	}
	return true
}

func requireRemoteHostConfirmation(action, host string) error {
	if err := writef(
		os.Stderr,
		"\nWARNING: database host %q does not look like a local address.\n"+
			"This operation will %s.\n",
		host,
		action,
	); err != nil {
		return fmt.Errorf("print remote host warning: %w", err)
	}
	if err := writef(os.Stderr, "Type %q to continue or press enter to abort: ", host); err != nil {
		return fmt.Errorf("print remote host prompt: %w", err)
	}
	reader := bufio.NewReader(os.Stdin)
	resp, err := reader.ReadString('\n')
	if err != nil {
		if writeErr := writef(os.Stderr, "\nFailed to read confirmation input: %v\n", err); writeErr != nil {
			return fmt.Errorf("aborted by user: report write failed: %w", writeErr)
		}
		return errors.New("aborted by user")
	}
	if strings.TrimSpace(resp) != host {
		if writeErr := writeln(os.Stderr, "\nRemote safeguard check failed; aborting."); writeErr != nil {
			return fmt.Errorf("print remote safeguard failure: %w", writeErr)
		}
		return errors.New("aborted by user")
	}
	return nil
}
