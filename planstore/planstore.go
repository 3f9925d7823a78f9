package planstore

import (
	"context"
	"time"

	"github.com/danthegoodman1/joinplanner/gologger"
	"github.com/danthegoodman1/joinplanner/optimizer"
	"github.com/danthegoodman1/joinplanner/utils"
)

var (
	logger = gologger.NewComponentLogger("planstore")

	ErrNotFound      = utils.PermError("plan not found")
	ErrAlreadyExists = utils.PermError("plan already exists")
)

type (
	// PlanStore persists compiled plan descriptions. Records are immutable once put.
	PlanStore interface {
		Put(ctx context.Context, r Record) error
		Get(ctx context.Context, id string) (Record, error)
		// List returns the most recent records first.
		List(ctx context.Context, limit int) ([]Record, error)

		Shutdown(ctx context.Context) error
	}

	Record struct {
		ID          string                    `json:"id"`
		Name        string                    `json:"name"`
		CreatedAt   time.Time                 `json:"created_at"`
		Description optimizer.PlanDescription `json:"plan"`
	}
)

func NewRecord(op *optimizer.OptimizedPlan) Record {
	return Record{
		ID:          op.ID,
		Name:        op.Name,
		CreatedAt:   time.Now().UTC(),
		Description: op.Describe(),
	}
}
