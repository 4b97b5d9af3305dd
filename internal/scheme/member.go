package scheme

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/desertwitch/gopart/internal/partition"
	"github.com/desertwitch/gopart/internal/storage"
)

const memberPrefix = "partition/"

var memberSeq atomic.Uint64

// member is the provider of one partition object. The partition's aggregate
// open is held against the scheme as an internal client, so all partitions
// share the scheme's single open of the medium.
type member struct {
	scheme *Scheme
	client storage.ClientID
}

func newMemberClient(id storage.PartitionID) storage.ClientID {
	return storage.ClientID(memberPrefix + string(id) + "#" + strconv.FormatUint(memberSeq.Add(1), 10))
}

func isMemberClient(client storage.ClientID) bool {
	return strings.HasPrefix(string(client), memberPrefix)
}

// SetAccess raises or lowers the partition's open on the scheme. Raising is
// only possible while the scheme is active.
func (m *member) SetAccess(level storage.Level) error {
	s := m.scheme

	held := s.access.Level(m.client)
	if level == held {
		return nil
	}

	if level < held {
		if err := s.access.Lower(m.client, level); err != nil && !errors.Is(err, storage.ErrNotOpen) {
			return err //nolint:wrapcheck
		}

		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Active {
		return fmt.Errorf("(scheme) %w: scheme is %s", storage.ErrAccessDenied, s.state)
	}

	return s.access.Open(m.client, level) //nolint:wrapcheck
}

// newMember creates a partition object owned by the scheme.
func (s *Scheme) newMember(desc partition.Descriptor) *partition.Object {
	m := &member{
		scheme: s,
		client: newMemberClient(desc.ID),
	}

	var obj *partition.Object
	obj = partition.New(desc, s.medium, m, func() {
		s.memberClosed(obj)
	})

	if s.opts.Observer != nil {
		obj.SetObserver(s.opts.Observer)
	}

	return obj
}

// memberClosed runs every time the last client of a partition closed.
func (s *Scheme) memberClosed(obj *partition.Object) {
	switch s.State() {
	case Terminating:
		s.finalize()
	case Active:
		if !obj.Live() {
			s.reap(obj)
		}
	case Uninitialized, Destroyed:
	}
}
