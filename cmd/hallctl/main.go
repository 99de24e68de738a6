// hallctl is the operator CLI for the hall calendar database: schema
// migration, seeding, account bootstrap, backup, restore and CSV export.
// It talks to the database directly and needs only the DB_* settings.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/iliyamo/hall-calendar/internal/backup"
	"github.com/iliyamo/hall-calendar/internal/clock"
	"github.com/iliyamo/hall-calendar/internal/config"
	"github.com/iliyamo/hall-calendar/internal/database"
	"github.com/iliyamo/hall-calendar/internal/model"
	"github.com/iliyamo/hall-calendar/internal/report"
	"github.com/iliyamo/hall-calendar/internal/repository"
	"github.com/iliyamo/hall-calendar/internal/schema"
)

const usage = `Usage: hallctl <command> [flags]

Commands:
  migrate                         create missing tables
  seed [--data data.json]         insert default halls, or load a data file into an empty database
  create-user --username U --password P [--name N] [--role user|admin]
  backup --out backup.zip         write a backup archive
  restore --archive backup.zip    replace all data from an archive
  restore --schema schema.json --data data.json
  export-csv --out bookings.csv   export every booking
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// env is what every command needs once the database is open.
type env struct {
	db      *sql.DB
	dialect database.Dialect
	log     *slog.Logger
}

type command func(ctx context.Context, e env, args []string) error

var commands = map[string]command{
	"migrate":     runMigrate,
	"seed":        runSeed,
	"create-user": runCreateUser,
	"backup":      runBackup,
	"restore":     runRestore,
	"export-csv":  runExportCSV,
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(os.Stderr, usage)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := config.LoadDB() // also loads .env
	logger := config.NewLogger(os.Stderr, os.Getenv("LOG_LEVEL"), "text")
	db, d, err := database.Open(opts)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return cmd(ctx, env{db: db, dialect: d, log: logger}, args[1:])
}

// parse parses args into fs and rejects positional leftovers.
func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if rest := fs.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return nil
}

func runMigrate(ctx context.Context, e env, args []string) error {
	if err := parse(pflag.NewFlagSet("migrate", pflag.ContinueOnError), args); err != nil {
		return err
	}
	if err := schema.Migrate(ctx, e.db, e.dialect); err != nil {
		return err
	}
	e.log.Info("schema ready", "version", schema.Version, "driver", e.dialect.DriverName())
	return nil
}

func runSeed(ctx context.Context, e env, args []string) error {
	var dataPath string
	fs := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	fs.StringVar(&dataPath, "data", "", "JSON data file to load into an empty database")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := schema.Migrate(ctx, e.db, e.dialect); err != nil {
		return err
	}

	halls := repository.NewHallRepo(e.db, e.dialect)
	users := repository.NewUserRepo(e.db, e.dialect)
	hallCount, err := halls.Count(ctx)
	if err != nil {
		return err
	}

	if dataPath != "" {
		userCount, err := users.Count(ctx)
		if err != nil {
			return err
		}
		if hallCount > 0 || userCount > 0 {
			e.log.Warn("database not empty, data file ignored", "halls", hallCount, "users", userCount)
			return nil
		}
		f, err := os.Open(dataPath)
		if err != nil {
			return err
		}
		defer f.Close()
		data, err := backup.ReadData(f)
		if err != nil {
			return err
		}
		res, err := backup.NewService(e.db, e.dialect, clock.NewSystem(), e.log).RestoreData(ctx, data)
		if err != nil {
			return err
		}
		e.log.Info("seeded from data file", "tables", res.Tables)
		return nil
	}

	if hallCount > 0 {
		e.log.Info("halls already present", "count", hallCount)
		return nil
	}
	for _, name := range model.DefaultHalls {
		h, err := halls.Create(ctx, name)
		if errors.Is(err, repository.ErrHallExists) {
			continue
		}
		if err != nil {
			return err
		}
		e.log.Info("hall created", "id", h.ID, "name", name)
	}
	return nil
}

func runCreateUser(ctx context.Context, e env, args []string) error {
	var username, name, password, role string
	var cost int
	fs := pflag.NewFlagSet("create-user", pflag.ContinueOnError)
	fs.StringVar(&username, "username", "", "login name (required)")
	fs.StringVar(&name, "name", "", "display name (defaults to username)")
	fs.StringVar(&password, "password", "", "password (required)")
	fs.StringVar(&role, "role", string(model.RoleUser), "user or admin")
	fs.IntVar(&cost, "bcrypt-cost", 12, "bcrypt cost")
	if err := parse(fs, args); err != nil {
		return err
	}

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return errors.New("--username and --password are required")
	}
	r, ok := model.ParseRole(role)
	if !ok {
		return fmt.Errorf("invalid role %q", role)
	}
	if name == "" {
		name = username
	}
	id, err := repository.NewUserRepo(e.db, e.dialect).Create(ctx, username, name, password, r, cost)
	if err != nil {
		return err
	}
	e.log.Info("user created", "id", id, "username", username, "role", r)
	return nil
}

func runBackup(ctx context.Context, e env, args []string) error {
	var out string
	fs := pflag.NewFlagSet("backup", pflag.ContinueOnError)
	fs.StringVarP(&out, "out", "o", "", "archive path (required)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if out == "" {
		return errors.New("--out is required")
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	m, err := backup.NewService(e.db, e.dialect, clock.NewSystem(), e.log).Backup(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(out)
		return err
	}
	e.log.Info("backup written", "path", out, "id", m.ID, "tables", m.Tables)
	return nil
}

func runRestore(ctx context.Context, e env, args []string) error {
	var archivePath, schemaPath, dataPath string
	fs := pflag.NewFlagSet("restore", pflag.ContinueOnError)
	fs.StringVar(&archivePath, "archive", "", "zip archive written by backup")
	fs.StringVar(&schemaPath, "schema", "", "schema.json (with --data)")
	fs.StringVar(&dataPath, "data", "", "data.json (with --schema)")
	if err := parse(fs, args); err != nil {
		return err
	}

	var (
		a   backup.Archive
		err error
	)
	switch {
	case archivePath != "" && schemaPath == "" && dataPath == "":
		a, err = backup.ReadArchiveFile(archivePath)
	case archivePath == "" && schemaPath != "" && dataPath != "":
		a, err = readParts(schemaPath, dataPath)
	default:
		return errors.New("use either --archive or both --schema and --data")
	}
	if err != nil {
		return err
	}

	res, err := backup.NewService(e.db, e.dialect, clock.NewSystem(), e.log).Restore(ctx, a)
	if err != nil {
		return err
	}
	if len(res.Skipped) > 0 {
		e.log.Warn("tables skipped", "tables", res.Skipped)
	}
	e.log.Info("restore complete", "tables", res.Tables)
	return nil
}

func readParts(schemaPath, dataPath string) (backup.Archive, error) {
	sf, err := os.Open(schemaPath)
	if err != nil {
		return backup.Archive{}, err
	}
	defer sf.Close()
	df, err := os.Open(dataPath)
	if err != nil {
		return backup.Archive{}, err
	}
	defer df.Close()
	return backup.ReadParts(sf, df)
}

func runExportCSV(ctx context.Context, e env, args []string) error {
	var out string
	fs := pflag.NewFlagSet("export-csv", pflag.ContinueOnError)
	fs.StringVarP(&out, "out", "o", "-", "CSV path, - for stdout")
	if err := parse(fs, args); err != nil {
		return err
	}

	rows, err := repository.NewBookingRepo(e.db, e.dialect).List(ctx, repository.ListQuery{})
	if err != nil {
		return err
	}
	if out == "-" {
		return report.WriteCSV(os.Stdout, rows)
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := report.WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	e.log.Info("bookings exported", "path", out, "rows", len(rows))
	return nil
}
