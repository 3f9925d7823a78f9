package crdb

import (
	"context"
	"fmt"
	"time"

	"github.com/danthegoodman1/joinplanner/gologger"
	"github.com/danthegoodman1/joinplanner/utils"
	"github.com/jackc/pgx/v4/pgxpool"
)

var (
	PGPool                 *pgxpool.Pool
	StandardContextTimeout = 10 * time.Second

	logger = gologger.NewComponentLogger("crdb")
)

// ConnectToDB opens the shared pool used by the plan store.
func ConnectToDB() error {
	logger.Debug().Msg("connecting to CRDB...")
	config, err := pgxpool.ParseConfig(utils.CRDB_DSN)
	if err != nil {
		return fmt.Errorf("error parsing CRDB_DSN: %w", err)
	}

	config.MaxConns = int32(utils.CRDB_MAX_CONNS)
	config.MinConns = 1
	config.HealthCheckPeriod = time.Second * 5
	config.MaxConnLifetime = time.Minute * 30
	config.MaxConnIdleTime = time.Minute * 30

	ctx, cancel := context.WithTimeout(context.Background(), StandardContextTimeout)
	defer cancel()
	PGPool, err = pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("error in pgxpool.ConnectConfig: %w", err)
	}
	logger.Debug().Int32("maxConns", config.MaxConns).Msg("connected to CRDB")
	return nil
}

func Close() {
	if PGPool != nil {
		PGPool.Close()
		logger.Debug().Msg("closed CRDB pool")
	}
}
