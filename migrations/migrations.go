package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/danthegoodman1/joinplanner/gologger"
	// ensure "pgx" driver is loaded
	_ "github.com/jackc/pgx/v4/stdlib"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	//go:embed *.sql
	migrations embed.FS

	ErrMigrationsNotRun = fmt.Errorf("not all migrations applied")

	logger = gologger.NewComponentLogger("migrations")

	source = migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrations,
		Root:       ".",
	}
	set = migrate.MigrationSet{
		TableName: "migrations",
	}
)

func RunMigrations(crdbDsn string) (int, error) {
	db, err := sql.Open("pgx", crdbDsn)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	n, err := set.Exec(db, "postgres", source, migrate.Up)
	if err != nil {
		return n, fmt.Errorf("error applying migrations: %w", err)
	}
	logger.Info().Int("applied", n).Msg("ran migrations")
	return n, nil
}

func CheckMigrations(crdbDsn string) error {
	db, err := sql.Open("pgx", crdbDsn)
	if err != nil {
		return err
	}
	defer db.Close()
	planned, _, err := set.PlanMigration(db, "postgres", source, migrate.Up, 0)
	if err != nil {
		return err
	}
	if len(planned) > 0 {
		for _, mig := range planned {
			logger.Warn().Str("migrationID", mig.Id).Msg("missing migration")
		}
		return ErrMigrationsNotRun
	}
	return nil
}

// Ensure applies pending migrations when auto is set, otherwise it only checks
// that none are pending.
func Ensure(crdbDsn string, auto bool) error {
	if auto {
		_, err := RunMigrations(crdbDsn)
		return err
	}
	return CheckMigrations(crdbDsn)
}
