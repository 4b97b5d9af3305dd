// Package reconcile implements the reconciliation of a partition set with a
// freshly scanned table. It mutates partition objects in place but never
// talks to a registry, publication is left to the caller.
package reconcile

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/desertwitch/gopart/internal/partition"
	"github.com/desertwitch/gopart/internal/storage"
)

// Factory creates the partition object for a newly discovered descriptor.
type Factory func(desc partition.Descriptor) *partition.Object

// Result is the outcome of a [Reconcile] call. Every object of the old set
// ends up in exactly one of Updated, Unchanged, Stale and Removed.
type Result struct {
	// Set is the new authoritative set: updated, unchanged and stale objects
	// plus the added ones.
	Set map[storage.PartitionID]*partition.Object

	// Added holds the newly created objects, staged for publication.
	Added []*partition.Object

	// Updated holds old objects whose descriptor changed in place.
	Updated []*partition.Object

	// Unchanged holds old objects whose descriptor was identical.
	Unchanged []*partition.Object

	// Stale holds objects no longer in the table that were retained because
	// they are still in use.
	Stale []*partition.Object

	// Removed holds objects no longer in the table that were retired and
	// dropped from the set. Published ones still need to be detached.
	Removed []*partition.Object
}

// Stats is a summary of a [Result].
type Stats struct {
	Added     int
	Updated   int
	Unchanged int
	Stale     int
	Removed   int
	Total     int
}

// Stats returns the counts of a [Result].
func (r Result) Stats() Stats {
	return Stats{
		Added:     len(r.Added),
		Updated:   len(r.Updated),
		Unchanged: len(r.Unchanged),
		Stale:     len(r.Stale),
		Removed:   len(r.Removed),
		Total:     len(r.Set),
	}
}

// Changed reports whether the result differs from the old set in any way.
func (r Result) Changed() bool {
	return len(r.Added) > 0 || len(r.Updated) > 0 || len(r.Removed) > 0 || len(r.Stale) > 0
}

// Reconcile folds the fresh descriptors into the old set. Identity is by
// partition identifier only:
//
//   - present in both: identical descriptors keep the object untouched,
//     different ones (including a stale object reappearing) update it in
//     place. Access state and publication survive either way.
//   - present only in old: the object is marked stale. It is retired and
//     removed if nobody uses it, otherwise it is retained in the set.
//   - present only in fresh: a new object is created by the factory.
//
// Neither input is modified. The returned slices are ordered by identifier.
func Reconcile(old map[storage.PartitionID]*partition.Object, fresh map[storage.PartitionID]partition.Descriptor, factory Factory) Result {
	res := Result{
		Set: make(map[storage.PartitionID]*partition.Object, max(len(old), len(fresh))),
	}

	for _, id := range sortedKeys(old) {
		obj := old[id]

		desc, ok := fresh[id]
		if !ok {
			if obj.MarkStale() {
				slog.Debug("Partition no longer in table.", "partition", id)
			}

			if obj.Retire() {
				res.Removed = append(res.Removed, obj)

				continue
			}

			res.Stale = append(res.Stale, obj)
			res.Set[id] = obj

			continue
		}

		desc.ID = id
		desc.Live = true

		if obj.Update(desc) {
			slog.Debug("Partition updated in place.",
				"partition", id,
				"base", desc.Base,
				"size", desc.Size,
				"live", true,
			)
			res.Updated = append(res.Updated, obj)
		} else {
			res.Unchanged = append(res.Unchanged, obj)
		}

		res.Set[id] = obj
	}

	for _, id := range sortedKeys(fresh) {
		if _, ok := old[id]; ok {
			continue
		}

		desc := fresh[id]
		desc.ID = id

		obj := factory(desc)
		res.Added = append(res.Added, obj)
		res.Set[id] = obj
	}

	return res
}

func sortedKeys[V any](m map[storage.PartitionID]V) []storage.PartitionID {
	return slices.Sorted(maps.Keys(m))
}
