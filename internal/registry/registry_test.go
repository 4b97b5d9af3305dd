package registry

import (
	"errors"
	"testing"

	"github.com/desertwitch/gopart/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	id   storage.PartitionID
	base uint64
	live bool
}

func (p *published) PartitionID() storage.PartitionID { return p.id }
func (p *published) Base() uint64                     { return p.base }
func (p *published) Live() bool                       { return p.live }

// TestAttach_Success tests attaching and looking up objects.
func TestAttach_Success(t *testing.T) {
	t.Parallel()

	r := New(nil)
	a := &published{id: "1", base: 0, live: true}
	b := &published{id: "2", base: 4096, live: false}

	ha, err := r.Attach(a)
	require.NoError(t, err)
	hb, err := r.Attach(b)
	require.NoError(t, err)

	assert.NotEqual(t, ha, hb)
	assert.Equal(t, 2, r.Len())

	obj, ok := r.Lookup(ha)
	require.True(t, ok)
	assert.Same(t, a, obj)

	obj, h, ok := r.LookupPartition("2")
	require.True(t, ok)
	assert.Same(t, b, obj)
	assert.Equal(t, hb, h)

	assert.Equal(t, []Entry{
		{Handle: ha, PartitionID: "1", Base: 0, Live: true},
		{Handle: hb, PartitionID: "2", Base: 4096, Live: false},
	}, r.Snapshot())
}

// TestAttach_Fail_AlreadyAttached tests attaching the same object twice.
func TestAttach_Fail_AlreadyAttached(t *testing.T) {
	t.Parallel()

	r := New(nil)
	a := &published{id: "1"}

	_, err := r.Attach(a)
	require.NoError(t, err)

	_, err = r.Attach(a)
	require.ErrorIs(t, err, ErrAlreadyAttached)
	assert.Equal(t, 1, r.Len())
}

// TestAttach_Fail_Policy tests a policy rejecting an object.
func TestAttach_Fail_Policy(t *testing.T) {
	t.Parallel()

	policyErr := errors.New("no stale partitions")
	r := New(func(obj storage.Published) error {
		if !obj.Live() {
			return policyErr
		}

		return nil
	})

	_, err := r.Attach(&published{id: "1", live: false})
	require.ErrorIs(t, err, ErrRejected)
	require.ErrorIs(t, err, policyErr)
	assert.Zero(t, r.Len())

	_, err = r.Attach(&published{id: "2", live: true})
	require.NoError(t, err)
}

// TestDetach_Success tests detaching an attached object.
func TestDetach_Success(t *testing.T) {
	t.Parallel()

	r := New(nil)
	a := &published{id: "1"}

	h, err := r.Attach(a)
	require.NoError(t, err)
	require.NoError(t, r.Detach(h))

	_, ok := r.Lookup(h)
	assert.False(t, ok)
	assert.Zero(t, r.Len())

	_, err = r.Attach(a)
	require.NoError(t, err, "a detached object can be attached again")
}

// TestDetach_Fail_UnknownHandle tests detaching twice.
func TestDetach_Fail_UnknownHandle(t *testing.T) {
	t.Parallel()

	r := New(nil)

	h, err := r.Attach(&published{id: "1"})
	require.NoError(t, err)
	require.NoError(t, r.Detach(h))

	require.ErrorIs(t, r.Detach(h), ErrUnknownHandle)
	require.ErrorIs(t, r.Detach("bogus"), ErrUnknownHandle)
}
