package planstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danthegoodman1/joinplanner/utils"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const uniqueViolation = "23505"

type CRDBPlanStore struct {
	pool       *pgxpool.Pool
	tryTimeout time.Duration
}

func NewCRDBPlanStore(pool *pgxpool.Pool, tryTimeout time.Duration) *CRDBPlanStore {
	logger.Debug().Str("tryTimeout", tryTimeout.String()).Msg("using crdb plan store")
	return &CRDBPlanStore{
		pool:       pool,
		tryTimeout: tryTimeout,
	}
}

func (cps *CRDBPlanStore) Put(ctx context.Context, r Record) error {
	desc, err := json.Marshal(r.Description)
	if err != nil {
		return fmt.Errorf("error in json.Marshal: %w", err)
	}
	return utils.ReliableExecInTx(ctx, cps.pool, cps.tryTimeout, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO plans (id, name, description, created_at) VALUES ($1, $2, $3, $4)`, r.ID, r.Name, string(desc), r.CreatedAt)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, r.ID)
		}
		if err != nil {
			return fmt.Errorf("error inserting plan: %w", err)
		}
		return nil
	})
}

func (cps *CRDBPlanStore) Get(ctx context.Context, id string) (Record, error) {
	var r Record
	err := utils.ReliableExec(ctx, cps.pool, cps.tryTimeout, func(ctx context.Context, conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `SELECT id, name, description, created_at FROM plans WHERE id = $1`, id)
		var err error
		r, err = scanRecord(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	})
	return r, err
}

func (cps *CRDBPlanStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []Record
	err := utils.ReliableExec(ctx, cps.pool, cps.tryTimeout, func(ctx context.Context, conn *pgxpool.Conn) error {
		records = records[:0]
		rows, err := conn.Query(ctx, `SELECT id, name, description, created_at FROM plans ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
		if err != nil {
			return fmt.Errorf("error querying plans: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			r, err := scanRecord(rows)
			if err != nil {
				return err
			}
			records = append(records, r)
		}
		return rows.Err()
	})
	return records, err
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		r    Record
		desc []byte
	)
	if err := row.Scan(&r.ID, &r.Name, &desc, &r.CreatedAt); err != nil {
		return r, err
	}
	if err := json.Unmarshal(desc, &r.Description); err != nil {
		return r, fmt.Errorf("error in json.Unmarshal of plan %s: %w", r.ID, err)
	}
	return r, nil
}

// Shutdown is a no-op, the pool is owned by the crdb package.
func (cps *CRDBPlanStore) Shutdown(_ context.Context) error {
	return nil
}
