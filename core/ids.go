package core

import "sync"

// LocalID is a dense, internal identifier for a document within a single
// engine instance. It is strictly 32-bit, allowing for max 4 billion
// documents per engine. Used for all hot-path structures (graph
// adjacency, bitsets, heaps).
type LocalID uint32

// MaxLocalID is the maximum possible value for a LocalID.
const MaxLocalID = ^LocalID(0)

// DocID is the stable, caller-supplied identifier for a document. It is
// the only identifier that crosses the engine's public boundary; LocalID
// never does.
type DocID string

// Registry maps between caller-facing DocIDs and the dense LocalIDs used
// by hnsw and lsh. Freed ids are recycled so the LocalID space tracks
// live document count rather than growing without bound across deletes.
type Registry struct {
	mu sync.RWMutex

	toLocal map[DocID]LocalID
	toDoc   map[LocalID]DocID
	free    []LocalID
	next    LocalID
}

// NewRegistry creates an empty id registry.
func NewRegistry() *Registry {
	return &Registry{
		toLocal: make(map[DocID]LocalID),
		toDoc:   make(map[LocalID]DocID),
	}
}

// Ensure returns the LocalID for id, allocating one if id has not been
// seen before. The second return value reports whether a new LocalID was
// allocated.
func (r *Registry) Ensure(id DocID) (LocalID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lid, ok := r.toLocal[id]; ok {
		return lid, false
	}

	var lid LocalID
	if n := len(r.free); n > 0 {
		lid = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		lid = r.next
		r.next++
	}

	r.toLocal[id] = lid
	r.toDoc[lid] = id

	return lid, true
}

// Lookup returns the LocalID for id, if any.
func (r *Registry) Lookup(id DocID) (LocalID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lid, ok := r.toLocal[id]
	return lid, ok
}

// DocOf returns the DocID for a LocalID, if any.
func (r *Registry) DocOf(lid LocalID) (DocID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.toDoc[lid]
	return id, ok
}

// Release frees id's LocalID for reuse and removes the mapping.
func (r *Registry) Release(id DocID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lid, ok := r.toLocal[id]
	if !ok {
		return
	}

	delete(r.toLocal, id)
	delete(r.toDoc, lid)
	r.free = append(r.free, lid)
}

// Len returns the number of live mappings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.toLocal)
}

// Each calls fn once for every live DocID<->LocalID mapping, in no
// particular order. Used by the persistence codec to flatten the
// registry into a snapshot section.
func (r *Registry) Each(fn func(DocID, LocalID)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, lid := range r.toLocal {
		fn(id, lid)
	}
}

// Restore installs a DocID<->LocalID mapping loaded from a snapshot,
// advancing the allocator so a subsequent Ensure never collides with a
// restored id.
func (r *Registry) Restore(id DocID, lid LocalID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.toLocal[id] = lid
	r.toDoc[lid] = id
	if lid >= r.next {
		r.next = lid + 1
	}
}
