package reconcile

import (
	"testing"

	"github.com/desertwitch/gopart/internal/medium"
	"github.com/desertwitch/gopart/internal/partition"
	"github.com/desertwitch/gopart/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	medium  *medium.Memory
	created int
}

func newHarness() *harness {
	return &harness{medium: medium.NewMemory(4096, 512)}
}

func (h *harness) factory(desc partition.Descriptor) *partition.Object {
	h.created++

	return partition.New(desc, h.medium, nil, nil)
}

func (h *harness) set(descs ...partition.Descriptor) map[storage.PartitionID]*partition.Object {
	set := make(map[storage.PartitionID]*partition.Object, len(descs))
	for _, desc := range descs {
		set[desc.ID] = h.factory(desc)
	}

	return set
}

func table(descs ...partition.Descriptor) map[storage.PartitionID]partition.Descriptor {
	fresh := make(map[storage.PartitionID]partition.Descriptor, len(descs))
	for _, desc := range descs {
		fresh[desc.ID] = desc
	}

	return fresh
}

// TestReconcile_Success_Idempotent tests that reconciling a set with itself
// preserves every object.
func TestReconcile_Success_Idempotent(t *testing.T) {
	t.Parallel()

	h := newHarness()
	descs := []partition.Descriptor{
		{ID: "1", Base: 0, Size: 1024, Metadata: map[string]string{"name": "boot"}},
		{ID: "2", Base: 1024, Size: 1024},
		{ID: "3", Base: 2048, Size: 2048},
	}

	old := h.set(descs...)
	created := h.created

	res := Reconcile(old, table(descs...), h.factory)

	assert.Equal(t, created, h.created, "no object must be created")
	assert.Empty(t, res.Added)
	assert.Empty(t, res.Updated)
	assert.Empty(t, res.Stale)
	assert.Empty(t, res.Removed)
	assert.Len(t, res.Unchanged, 3)
	assert.False(t, res.Changed())

	require.Len(t, res.Set, 3)
	for id, obj := range old {
		assert.Same(t, obj, res.Set[id])
	}

	again := Reconcile(res.Set, table(descs...), h.factory)
	assert.False(t, again.Changed())
	assert.Equal(t, created, h.created)
}

// TestReconcile_Success_UpdateInPlace tests that a changed geometry keeps
// the object and its access state.
func TestReconcile_Success_UpdateInPlace(t *testing.T) {
	t.Parallel()

	h := newHarness()
	old := h.set(partition.Descriptor{ID: "1", Base: 0, Size: 100})

	obj := old["1"]
	require.NoError(t, obj.Open("fs", storage.LevelReadOnly))
	obj.SetPublished("h-1")

	res := Reconcile(old, table(partition.Descriptor{ID: "1", Base: 0, Size: 200}), h.factory)

	require.Len(t, res.Updated, 1)
	assert.Same(t, obj, res.Updated[0])
	assert.Same(t, obj, res.Set["1"])
	assert.Equal(t, uint64(200), obj.Size())
	assert.True(t, obj.Live())

	assert.True(t, obj.IsOpen("fs"))
	assert.Equal(t, storage.LevelReadOnly, obj.Controller().Level("fs"))

	state, handle := obj.PublishState()
	assert.Equal(t, partition.Published, state)
	assert.Equal(t, storage.Handle("h-1"), handle)

	assert.Same(t, obj, old["1"])
}

// TestReconcile_Success_BaseMoved tests that a moved partition with the same
// identifier is an update, never a replace.
func TestReconcile_Success_BaseMoved(t *testing.T) {
	t.Parallel()

	h := newHarness()
	old := h.set(partition.Descriptor{ID: "1", Base: 0, Size: 1024})
	created := h.created

	res := Reconcile(old, table(partition.Descriptor{ID: "1", Base: 2048, Size: 512}), h.factory)

	assert.Equal(t, created, h.created)
	require.Len(t, res.Updated, 1)
	assert.Equal(t, uint64(2048), res.Set["1"].Base())
	assert.Equal(t, uint64(512), res.Set["1"].Size())
}

// TestReconcile_Success_AddRemove tests the {1,2} to {2,3} transition with
// an unused partition 1.
func TestReconcile_Success_AddRemove(t *testing.T) {
	t.Parallel()

	h := newHarness()
	old := h.set(
		partition.Descriptor{ID: "1", Base: 0, Size: 1024},
		partition.Descriptor{ID: "2", Base: 1024, Size: 1024},
	)
	one, two := old["1"], old["2"]

	res := Reconcile(old, table(
		partition.Descriptor{ID: "2", Base: 1024, Size: 1024},
		partition.Descriptor{ID: "3", Base: 2048, Size: 1024},
	), h.factory)

	require.Len(t, res.Removed, 1)
	assert.Same(t, one, res.Removed[0])
	assert.False(t, one.Live())
	assert.True(t, one.Retired())
	assert.NotContains(t, res.Set, storage.PartitionID("1"))

	require.Len(t, res.Unchanged, 1)
	assert.Same(t, two, res.Set["2"])

	require.Len(t, res.Added, 1)
	assert.Same(t, res.Added[0], res.Set["3"])
	assert.True(t, res.Set["3"].Live())

	state, _ := res.Set["3"].PublishState()
	assert.Equal(t, partition.Unpublished, state)

	assert.Empty(t, res.Stale)
	assert.Len(t, res.Set, 2)
	assert.Len(t, old, 2, "old set must not be modified")
}

// TestReconcile_Success_AddRemoveOpen tests the {1,2} to {2,3} transition
// with partition 1 still open.
func TestReconcile_Success_AddRemoveOpen(t *testing.T) {
	t.Parallel()

	h := newHarness()
	old := h.set(
		partition.Descriptor{ID: "1", Base: 0, Size: 1024},
		partition.Descriptor{ID: "2", Base: 1024, Size: 1024},
	)
	one := old["1"]
	require.NoError(t, one.Open("fs", storage.LevelReadOnly))

	res := Reconcile(old, table(
		partition.Descriptor{ID: "2", Base: 1024, Size: 1024},
		partition.Descriptor{ID: "3", Base: 2048, Size: 1024},
	), h.factory)

	require.Len(t, res.Stale, 1)
	assert.Same(t, one, res.Stale[0])
	assert.Same(t, one, res.Set["1"])
	assert.False(t, one.Live())
	assert.False(t, one.Retired())
	assert.True(t, one.IsOpen("fs"))
	assert.Empty(t, res.Removed)
	assert.Len(t, res.Set, 3)

	require.NoError(t, one.Close("fs"))

	later := Reconcile(res.Set, table(
		partition.Descriptor{ID: "2", Base: 1024, Size: 1024},
		partition.Descriptor{ID: "3", Base: 2048, Size: 1024},
	), h.factory)

	require.Len(t, later.Removed, 1)
	assert.Same(t, one, later.Removed[0])
	assert.Len(t, later.Set, 2)
}

// TestReconcile_Success_StaleReappears tests that a retained stale partition
// reappearing in the table becomes live again in place.
func TestReconcile_Success_StaleReappears(t *testing.T) {
	t.Parallel()

	h := newHarness()
	desc := partition.Descriptor{ID: "1", Base: 0, Size: 1024}
	old := h.set(desc)
	obj := old["1"]
	require.NoError(t, obj.Open("fs", storage.LevelReadOnly))

	res := Reconcile(old, table(), h.factory)
	require.Len(t, res.Stale, 1)
	assert.False(t, obj.Live())

	res = Reconcile(res.Set, table(desc), h.factory)
	require.Len(t, res.Updated, 1)
	assert.Same(t, obj, res.Set["1"])
	assert.True(t, obj.Live())
	assert.Empty(t, res.Added)
}

// TestReconcile_Success_PhysicalLockRetains tests that a held physical
// extent lock keeps a stale partition.
func TestReconcile_Success_PhysicalLockRetains(t *testing.T) {
	t.Parallel()

	h := newHarness()
	old := h.set(partition.Descriptor{ID: "1", Base: 0, Size: 1024})
	obj := old["1"]

	require.NoError(t, obj.Open("fs", storage.LevelReadOnly))
	require.NoError(t, obj.LockPhysicalExtents("fs"))
	require.NoError(t, obj.Close("fs"))

	res := Reconcile(old, table(), h.factory)
	require.Len(t, res.Stale, 1)
	assert.Contains(t, res.Set, storage.PartitionID("1"))

	require.NoError(t, obj.UnlockPhysicalExtents("fs"))

	res = Reconcile(res.Set, table(), h.factory)
	require.Len(t, res.Removed, 1)
	assert.Empty(t, res.Set)
}

// TestReconcile_Success_Metadata tests that metadata changes are updates.
func TestReconcile_Success_Metadata(t *testing.T) {
	t.Parallel()

	h := newHarness()
	old := h.set(partition.Descriptor{ID: "1", Base: 0, Size: 1024, Metadata: map[string]string{"name": "a"}})

	res := Reconcile(old, table(partition.Descriptor{ID: "1", Base: 0, Size: 1024, Metadata: map[string]string{"name": "b"}}), h.factory)

	require.Len(t, res.Updated, 1)
	assert.Equal(t, "b", res.Set["1"].Descriptor().Metadata["name"])
}

// TestResultStats_Success tests the result summary.
func TestResultStats_Success(t *testing.T) {
	t.Parallel()

	h := newHarness()
	old := h.set(
		partition.Descriptor{ID: "1", Base: 0, Size: 1024},
		partition.Descriptor{ID: "2", Base: 1024, Size: 1024},
		partition.Descriptor{ID: "3", Base: 2048, Size: 1024},
	)
	require.NoError(t, old["3"].Open("fs", storage.LevelReadOnly))

	res := Reconcile(old, table(
		partition.Descriptor{ID: "1", Base: 0, Size: 1024},
		partition.Descriptor{ID: "2", Base: 1024, Size: 512},
		partition.Descriptor{ID: "4", Base: 3072, Size: 1024},
	), h.factory)

	assert.Equal(t, Stats{Added: 1, Updated: 1, Unchanged: 1, Stale: 1, Removed: 0, Total: 4}, res.Stats())
	assert.True(t, res.Changed())
}
