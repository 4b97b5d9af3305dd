// Package registry implements an in-memory registry where partition objects
// are published for downstream consumers.
package registry

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/desertwitch/gopart/internal/storage"
	"github.com/google/uuid"
)

// Policy decides whether an object may be attached. A non-nil error rejects
// the object.
type Policy func(obj storage.Published) error

// Entry is the published view of one attached object.
type Entry struct {
	Handle      storage.Handle
	PartitionID storage.PartitionID
	Base        uint64
	Live        bool
}

// Registry holds non-owning references to attached objects. It never
// controls their lifetime. It is safe for concurrent use.
type Registry struct {
	sync.RWMutex
	objects map[storage.Handle]storage.Published
	handles map[storage.Published]storage.Handle
	policy  Policy
}

// New returns a pointer to a new [Registry]. The policy is optional.
func New(policy Policy) *Registry {
	return &Registry{
		objects: make(map[storage.Handle]storage.Published),
		handles: make(map[storage.Published]storage.Handle),
		policy:  policy,
	}
}

// Attach publishes the object and returns its handle.
func (r *Registry) Attach(obj storage.Published) (storage.Handle, error) {
	if r.policy != nil {
		if err := r.policy(obj); err != nil {
			return "", fmt.Errorf("(registry) %w: %w", ErrRejected, err)
		}
	}

	r.Lock()
	defer r.Unlock()

	if h, ok := r.handles[obj]; ok {
		return "", fmt.Errorf("(registry) %w: partition %s as %s", ErrAlreadyAttached, obj.PartitionID(), h)
	}

	h := storage.Handle(uuid.NewString())
	r.objects[h] = obj
	r.handles[obj] = h

	slog.Debug("Registry attached partition.",
		"partition", obj.PartitionID(),
		"handle", h,
	)

	return h, nil
}

// Detach unpublishes the object behind the handle.
func (r *Registry) Detach(h storage.Handle) error {
	r.Lock()
	defer r.Unlock()

	obj, ok := r.objects[h]
	if !ok {
		return fmt.Errorf("(registry) %w: %s", ErrUnknownHandle, h)
	}

	delete(r.objects, h)
	delete(r.handles, obj)

	slog.Debug("Registry detached partition.",
		"partition", obj.PartitionID(),
		"handle", h,
	)

	return nil
}

// Lookup returns the object behind the handle.
func (r *Registry) Lookup(h storage.Handle) (storage.Published, bool) {
	r.RLock()
	defer r.RUnlock()

	obj, ok := r.objects[h]

	return obj, ok
}

// LookupPartition returns the attached object with the partition identifier.
func (r *Registry) LookupPartition(id storage.PartitionID) (storage.Published, storage.Handle, bool) {
	r.RLock()
	defer r.RUnlock()

	for h, obj := range r.objects {
		if obj.PartitionID() == id {
			return obj, h, true
		}
	}

	return nil, "", false
}

// Len returns the number of attached objects.
func (r *Registry) Len() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.objects)
}

// Snapshot returns the published properties of all attached objects, ordered
// by partition identifier.
func (r *Registry) Snapshot() []Entry {
	r.RLock()
	defer r.RUnlock()

	entries := make([]Entry, 0, len(r.objects))
	for h, obj := range r.objects {
		entries = append(entries, Entry{
			Handle:      h,
			PartitionID: obj.PartitionID(),
			Base:        obj.Base(),
			Live:        obj.Live(),
		})
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return cmp.Compare(a.PartitionID, b.PartitionID)
	})

	return entries
}

var _ storage.Registry = (*Registry)(nil)
