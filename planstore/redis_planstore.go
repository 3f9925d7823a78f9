package planstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/danthegoodman1/joinplanner/utils"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const redisPlansByTime = "plans_by_time"

type RedisPlanStore struct {
	client *redis.Client
}

func NewRedisPlanStore(ctx context.Context) (*RedisPlanStore, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Msg("connecting to redis plan store")
	rps := &RedisPlanStore{
		client: redis.NewClient(&redis.Options{
			Addr:        utils.REDIS_ADDR,
			Password:    utils.REDIS_PASSWORD,
			DB:          0,
			DialTimeout: time.Second * 3,
		}),
	}

	// Ping test first to ensure valid connection
	if os.Getenv("REDIS_PING_TEST") == "1" {
		logger.Debug().Msg("running redis ping test")
		s := time.Now()
		_, err := rps.client.Ping(ctx).Result()
		if err != nil {
			rps.client.Close()
			return nil, fmt.Errorf("error pinging redis: %w", err)
		}
		logger.Debug().Msgf("redis ping test successful in %s", time.Since(s))
	}

	return rps, nil
}

func (rps *RedisPlanStore) PlanKey(id string) string {
	return "p_" + id
}

func (rps *RedisPlanStore) Put(ctx context.Context, r Record) error {
	jsonBytes, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("error in json.Marshal: %w", err)
	}

	set, err := rps.client.SetNX(ctx, rps.PlanKey(r.ID), string(jsonBytes), 0).Result()
	if err != nil {
		return fmt.Errorf("error in redis SETNX: %w", err)
	}
	if !set {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, r.ID)
	}

	err = rps.client.ZAdd(ctx, redisPlansByTime, &redis.Z{
		Score:  float64(r.CreatedAt.UnixMilli()),
		Member: r.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("error in redis ZADD: %w", err)
	}
	return nil
}

func (rps *RedisPlanStore) Get(ctx context.Context, id string) (Record, error) {
	r := Record{}
	raw, err := rps.client.Get(ctx, rps.PlanKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return r, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return r, fmt.Errorf("error in redis GET: %w", err)
	}

	err = json.Unmarshal([]byte(raw), &r)
	if err != nil {
		return r, fmt.Errorf("error in json.Unmarshal: %w", err)
	}
	return r, nil
}

func (rps *RedisPlanStore) List(ctx context.Context, limit int) ([]Record, error) {
	logger := zerolog.Ctx(ctx)
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := rps.client.ZRevRange(ctx, redisPlansByTime, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("error in redis ZREVRANGE: %w", err)
	}

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		r, err := rps.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			logger.Warn().Str("planID", id).Msg("plan index points to a missing plan")
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

func (rps *RedisPlanStore) Shutdown(_ context.Context) error {
	err := rps.client.Close()
	if err != nil {
		return fmt.Errorf("error closing redis client: %w", err)
	}
	return nil
}
