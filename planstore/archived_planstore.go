package planstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

type (
	// Archive is a blob store holding a JSON copy of every plan, see s3_helper.Bucket.
	Archive interface {
		WriteBytes(ctx context.Context, key string, data []byte, contentType string) error
		ReadBytes(ctx context.Context, key string) ([]byte, error)
	}

	// ArchivedPlanStore exports every put record to an Archive and falls back
	// to it when the primary store misses.
	ArchivedPlanStore struct {
		PlanStore
		archive Archive
	}
)

func NewArchivedPlanStore(primary PlanStore, archive Archive) *ArchivedPlanStore {
	return &ArchivedPlanStore{PlanStore: primary, archive: archive}
}

func ArchiveKey(id string) string {
	return fmt.Sprintf("plans/%s.json", id)
}

func (a *ArchivedPlanStore) Put(ctx context.Context, r Record) error {
	if err := a.PlanStore.Put(ctx, r); err != nil {
		return err
	}
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("error in json.Marshal: %w", err)
	}
	if err = a.archive.WriteBytes(ctx, ArchiveKey(r.ID), b, "application/json"); err != nil {
		return fmt.Errorf("error archiving plan %s: %w", r.ID, err)
	}
	return nil
}

func (a *ArchivedPlanStore) Get(ctx context.Context, id string) (Record, error) {
	r, err := a.PlanStore.Get(ctx, id)
	if !errors.Is(err, ErrNotFound) {
		return r, err
	}

	zerolog.Ctx(ctx).Debug().Str("planID", id).Msg("plan not in primary store, reading archive")
	b, archiveErr := a.archive.ReadBytes(ctx, ArchiveKey(id))
	if archiveErr != nil {
		zerolog.Ctx(ctx).Debug().Err(archiveErr).Str("planID", id).Msg("plan not archived")
		return Record{}, err
	}
	if err = json.Unmarshal(b, &r); err != nil {
		return Record{}, fmt.Errorf("error in json.Unmarshal of archived plan %s: %w", id, err)
	}
	return r, nil
}
