package badger

import "github.com/parchmint/corpora/store"

// NewMemoryStores creates in-memory record, job and term stores for
// testing. Caller must close the record store and backend when done.
func NewMemoryStores() (store.RecordStore, store.JobStore, store.TermStore, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	records, err := NewRecordStore(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, nil, err
	}

	jobs, err := NewJobStore(backend)
	if err != nil {
		records.Close()
		backend.Close()
		return nil, nil, nil, nil, err
	}

	terms, err := NewTermStore(backend)
	if err != nil {
		records.Close()
		backend.Close()
		return nil, nil, nil, nil, err
	}

	return records, jobs, terms, backend, nil
}
