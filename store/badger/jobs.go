package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/parchmint/corpora/core"
	"github.com/parchmint/corpora/store"
)

// JobStore implements store.JobStore for BadgerDB.
type JobStore struct {
	backend *Backend
}

var _ store.JobStore = (*JobStore)(nil)

// NewJobStore creates a job store on the given backend.
func NewJobStore(backend *Backend) (store.JobStore, error) {
	return &JobStore{backend: backend}, nil
}

// PutJob stores a job. A zero job ID is derived from the spec name.
func (j *JobStore) PutJob(ctx context.Context, job *core.Job) (*core.Job, error) {
	if err := core.ValidateJobSpec(&job.Spec); err != nil {
		return nil, err
	}
	if job.ID == 0 {
		job.ID = core.IDFromContent(job.Spec.Name)
	}
	err := j.backend.WithTx(func(tx *badger.Txn) error {
		value, err := store.MarshalJob(job)
		if err != nil {
			return err
		}
		if err := tx.Set(makeJobKey(job.ID), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob retrieves a job by ID.
func (j *JobStore) GetJob(ctx context.Context, id core.ID) (*core.Job, error) {
	var job *core.Job
	err := j.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeJobKey(id))
		if err == badger.ErrKeyNotFound {
			return store.ErrNotFound
		} else if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			job, err = store.UnmarshalJob(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns all stored jobs, ordered by ID.
func (j *JobStore) ListJobs(ctx context.Context) ([]*core.Job, error) {
	var jobs []*core.Job
	err := j.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobRecordPrefix + ":")
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				job, err := store.UnmarshalJob(val)
				if err != nil {
					return err
				}
				jobs = append(jobs, job)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// DeleteJob removes a job. Missing IDs are ignored.
func (j *JobStore) DeleteJob(ctx context.Context, id core.ID) error {
	return j.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeJobKey(id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// TouchLastRun records the time a job last started.
func (j *JobStore) TouchLastRun(ctx context.Context, id core.ID) error {
	job, err := j.GetJob(ctx, id)
	if err != nil {
		return err
	}
	job.LastRun = time.Now().UTC()
	_, err = j.PutJob(ctx, job)
	return err
}
