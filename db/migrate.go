package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Schema migration tool. The API server migrates up on boot; this covers the
// operational cases that should never run automatically: stepping down,
// forcing past a dirty state, and checking the recorded version.

type cliOptions struct {
	direction string
	steps     int
	forceTo   int
	repair    bool
	status    bool
}

// schemaMigrator is the slice of *migrate.Migrate this tool uses. Tests
// substitute a fake through openMigrator.
type schemaMigrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Version() (version uint, dirty bool, err error)
}

var openMigrator = func(db *sql.DB) (schemaMigrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://db/migrations", "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migrate instance: %w", err)
	}
	return m, nil
}

// toolEnv carries the process-level collaborators so runTool is testable
// without a live database.
type toolEnv struct {
	loadDotenv func(...string) error
	getenv     func(string) string
	openDB     func(driverName, dataSourceName string) (*sql.DB, error)
}

func realEnv() toolEnv {
	return toolEnv{
		loadDotenv: godotenv.Load,
		getenv:     os.Getenv,
		openDB:     sql.Open,
	}
}

func main() {
	msg, err := runTool(os.Args[1:], realEnv())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(msg)
}

func parseFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	var o cliOptions
	fs.StringVar(&o.direction, "direction", "up", "migration direction: up or down")
	fs.IntVar(&o.steps, "steps", 0, "number of migration steps (0 = all)")
	fs.IntVar(&o.forceTo, "force", -1, "force the schema version (clears the dirty flag), e.g. -force=3")
	fs.BoolVar(&o.repair, "repair", false, "if the schema is dirty, force it back to its recorded version")
	fs.BoolVar(&o.status, "status", false, "print the recorded schema version and exit")
	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	if o.direction != "up" && o.direction != "down" {
		return cliOptions{}, fmt.Errorf("invalid direction %q (must be up or down)", o.direction)
	}
	return o, nil
}

func runTool(args []string, env toolEnv) (string, error) {
	o, err := parseFlags(args)
	if err != nil {
		return "", err
	}

	if env.loadDotenv != nil {
		_ = env.loadDotenv()
	}
	databaseURL := env.getenv("DATABASE_URL")
	if databaseURL == "" {
		return "", fmt.Errorf("DATABASE_URL environment variable is required")
	}

	db, err := env.openDB("postgres", databaseURL)
	if err != nil {
		return "", fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	m, err := openMigrator(db)
	if err != nil {
		return "", err
	}
	return apply(m, o)
}

func apply(m schemaMigrator, o cliOptions) (string, error) {
	switch {
	case o.status:
		v, dirty, err := m.Version()
		if err == migrate.ErrNilVersion {
			return "no schema version recorded", nil
		}
		if err != nil {
			return "", fmt.Errorf("read schema version: %w", err)
		}
		return fmt.Sprintf("schema version %d (dirty=%v)", v, dirty), nil

	case o.repair:
		v, dirty, err := m.Version()
		if err != nil {
			return "", fmt.Errorf("read schema version: %w", err)
		}
		if !dirty {
			return "schema is not dirty, nothing to repair", nil
		}
		if err := m.Force(int(v)); err != nil {
			return "", fmt.Errorf("repair version %d: %w", v, err)
		}
		return fmt.Sprintf("cleared dirty flag at version %d", v), nil

	case o.forceTo >= 0:
		if err := m.Force(o.forceTo); err != nil {
			return "", fmt.Errorf("force version %d: %w", o.forceTo, err)
		}
		return fmt.Sprintf("forced schema to version %d", o.forceTo), nil
	}

	var err error
	switch {
	case o.direction == "up" && o.steps > 0:
		err = m.Steps(o.steps)
	case o.direction == "up":
		err = m.Up()
	case o.steps > 0:
		err = m.Steps(-o.steps)
	default:
		err = m.Down()
	}
	if err == migrate.ErrNoChange {
		return "no migrations to apply", nil
	}
	if err != nil {
		return "", fmt.Errorf("migration %s failed: %w", o.direction, err)
	}
	return fmt.Sprintf("migration %s completed", o.direction), nil
}
