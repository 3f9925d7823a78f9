package main

import (
	"context"
	"fmt"

	"github.com/danthegoodman1/joinplanner/crdb"
	"github.com/danthegoodman1/joinplanner/migrations"
	"github.com/danthegoodman1/joinplanner/planstore"
	"github.com/danthegoodman1/joinplanner/s3_helper"
	"github.com/danthegoodman1/joinplanner/utils"
)

// newPlanStore picks the store named by PLAN_STORE, wrapped with an S3
// archive when S3_BUCKET_NAME is set.
func newPlanStore(ctx context.Context) (planstore.PlanStore, error) {
	var (
		store planstore.PlanStore
		err   error
	)
	switch utils.PLAN_STORE {
	case "memory":
		store = planstore.NewMemoryPlanStore()
	case "redis":
		store, err = planstore.NewRedisPlanStore(ctx)
		if err != nil {
			return nil, fmt.Errorf("error in NewRedisPlanStore: %w", err)
		}
	case "crdb":
		if err = crdb.ConnectToDB(); err != nil {
			return nil, fmt.Errorf("error connecting to CRDB: %w", err)
		}
		if err = migrations.Ensure(utils.CRDB_DSN, utils.AUTO_MIGRATE); err != nil {
			return nil, fmt.Errorf("error checking migrations: %w", err)
		}
		store = planstore.NewCRDBPlanStore(crdb.PGPool, crdb.StandardContextTimeout)
	default:
		return nil, fmt.Errorf("unknown PLAN_STORE %q", utils.PLAN_STORE)
	}

	if utils.S3_BUCKET_NAME == "" {
		return store, nil
	}
	bucket, err := s3_helper.NewBucket(utils.S3_BUCKET_NAME)
	if err != nil {
		return nil, fmt.Errorf("error in NewBucket: %w", err)
	}
	return planstore.NewArchivedPlanStore(store, bucket), nil
}
