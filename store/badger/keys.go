package badger

import (
	"encoding/binary"
	"strings"

	"github.com/parchmint/corpora/core"
)

// Key prefixes for different data types
const (
	recordPrefix     = "rec"
	recordIDSeq      = "recseq"
	jobRecordPrefix  = "job"
	termRecordPrefix = "trm"
	termAliasPrefix  = "trma"

	defaultCollection = "default"
)

// collectionName maps the empty collection to its storage name and
// rejects names that would break key parsing.
func collectionName(collection string) (string, bool) {
	if collection == "" {
		return defaultCollection, true
	}
	if strings.ContainsAny(collection, ":\n") {
		return "", false
	}
	return collection, true
}

// makeRecordKey generates a key for a record by collection and ID.
// Format: prefix:collection:id, ID in BigEndian so iteration order
// follows ID order.
func makeRecordKey(collection string, id core.ID) []byte {
	prefix := recordPrefix + ":" + collection + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeCollectionPrefix generates the scan prefix for a collection.
func makeCollectionPrefix(collection string) []byte {
	return []byte(recordPrefix + ":" + collection + ":")
}

// makeSequenceKey generates the per-collection ID sequence key.
func makeSequenceKey(collection string) string {
	return recordIDSeq + ":" + collection
}

// makeJobKey generates a key for a job by ID.
func makeJobKey(id core.ID) []byte {
	prefix := jobRecordPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeTermKey generates a key for a term alias set.
func makeTermKey(term string) []byte {
	return []byte(termRecordPrefix + ":" + term)
}

// makeTermAliasKey generates a reverse-index key from an alias to its
// owning term.
func makeTermAliasKey(alias string) []byte {
	return []byte(termAliasPrefix + ":" + alias)
}
