// Package docstore holds the metadata table used for filtering and
// result hydration: doc-id → attribute bag, plus filter-predicate
// evaluation over it.
//
// Values use a tagged-variant representation (Kind + one populated
// field) rather than reflection or fmt-based stringification, following
// the teacher's metadata.Value/Kind strategy, narrowed to exactly the
// kinds §3.1 calls for: Null, Int, Float, String, Bool, StringSet.
package docstore

import (
	"strings"
	"sync"
	"time"

	"github.com/corvidsearch/retrieval/core"
)

// Kind identifies the concrete type stored in a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindStringSet
)

// Value is a small typed value used for metadata documents and filters.
type Value struct {
	Kind Kind
	I64  int64
	F64  float64
	Str  string
	Bool bool
	Set  map[string]struct{}
}

// IntValue wraps an int64 as a Value.
func IntValue(i int64) Value { return Value{Kind: KindInt, I64: i} }

// FloatValue wraps a float64 as a Value.
func FloatValue(f float64) Value { return Value{Kind: KindFloat, F64: f} }

// StringValue wraps a string as a Value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// BoolValue wraps a bool as a Value.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// StringSetValue wraps a set of strings as a Value. Membership checks
// performed through filters against a StringSet are case-insensitive.
func StringSetValue(items ...string) Value {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[strings.ToLower(it)] = struct{}{}
	}
	return Value{Kind: KindStringSet, Set: set}
}

// Record is the attribute bag stored for one document, plus the
// free-form hydration fields returned verbatim in search results.
type Record struct {
	Seniority       Value // string
	ExperienceYears Value // int
	Skills          Value // string set
	PostedAt        Value // derived from time.Time via PostedAtUnix below
	Hydration       map[string]string
}

// PostedAtUnix returns r.PostedAt's underlying timestamp as a Value
// carrying the Unix second count, used by the date_range filter.
func PostedAtUnix(t time.Time) Value {
	return Value{Kind: KindInt, I64: t.Unix()}
}

// Store is the doc-id → Record table used for filter evaluation and
// result hydration.
type Store struct {
	mu      sync.RWMutex
	records map[core.LocalID]Record
}

// New creates an empty metadata store.
func New() *Store {
	return &Store{records: make(map[core.LocalID]Record)}
}

// Put inserts or replaces id's record.
func (s *Store) Put(id core.LocalID, r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = r
}

// Get returns id's record, if any.
func (s *Store) Get(id core.LocalID) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	return r, ok
}

// Remove drops id's record.
func (s *Store) Remove(id core.LocalID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

// Len returns the number of records currently stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
