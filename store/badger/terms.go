package badger

import (
	"context"
	"encoding/json"

	"github.com/dgraph-io/badger/v4"

	"github.com/parchmint/corpora/store"
)

// TermStore implements store.TermStore for BadgerDB. Alias sets are
// stored under the owning term; every alias carries a reverse index
// entry back to it.
type TermStore struct {
	backend *Backend
}

var _ store.TermStore = (*TermStore)(nil)

// NewTermStore creates a term store on the given backend.
func NewTermStore(backend *Backend) (store.TermStore, error) {
	return &TermStore{backend: backend}, nil
}

// PutTerm stores a term and its aliases.
func (t *TermStore) PutTerm(ctx context.Context, term string, aliases ...string) error {
	value, err := json.Marshal(aliases)
	if err != nil {
		return err
	}
	return t.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeTermKey(term), value); err != nil {
			return err
		}
		for _, alias := range aliases {
			if err := tx.Set(makeTermAliasKey(alias), []byte(term)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Resolve returns the full alias set any set the word belongs to, with
// the owning term first, or nil for unknown words.
func (t *TermStore) Resolve(ctx context.Context, word string) ([]string, error) {
	var result []string
	err := t.backend.WithTx(func(tx *badger.Txn) error {
		term := word
		aliases, err := t.readTerm(tx, term)
		if err != nil {
			return err
		}
		if aliases == nil {
			// Not a term; try the reverse index.
			item, err := tx.Get(makeTermAliasKey(word))
			if err == badger.ErrKeyNotFound {
				return nil
			} else if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				term = string(val)
				return nil
			}); err != nil {
				return err
			}
			aliases, err = t.readTerm(tx, term)
			if err != nil {
				return err
			}
		}
		result = append([]string{term}, aliases...)
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (t *TermStore) readTerm(tx *badger.Txn, term string) ([]string, error) {
	item, err := tx.Get(makeTermKey(term))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var aliases []string
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &aliases)
	}); err != nil {
		return nil, err
	}
	if aliases == nil {
		aliases = []string{}
	}
	return aliases, nil
}
