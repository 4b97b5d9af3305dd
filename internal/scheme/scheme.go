// Package scheme implements the partition scheme: the storage object that
// subdivides a medium into partition objects, keeps them reconciled with the
// partition table and publishes them to a registry.
package scheme

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/desertwitch/gopart/internal/access"
	"github.com/desertwitch/gopart/internal/partition"
	"github.com/desertwitch/gopart/internal/reconcile"
	"github.com/desertwitch/gopart/internal/storage"
	"github.com/dustin/go-humanize"
)

// Scanner reads the partition table of a medium. Descriptors must carry
// unique identifiers, their liveness flag is ignored.
type Scanner interface {
	Scan(ctx context.Context, medium storage.Medium) ([]partition.Descriptor, error)
}

// Recorder is notified about the outcome of every rescan and every change
// of the number of owned partitions.
type Recorder interface {
	ObserveRescan(stats reconcile.Stats, err error)
	SetPartitions(n int)
}

// Options are the optional collaborators of a [Scheme].
type Options struct {
	// Registry partitions are published to. Without a registry partitions
	// stay unpublished.
	Registry storage.Registry

	// Observer is set on every partition object.
	Observer partition.Observer

	// Recorder receives rescan outcomes.
	Recorder Recorder
}

// Scheme is a partition scheme over one medium. It is itself a storage
// object covering the whole medium and owns the partition objects found on
// it. It is safe for concurrent use.
//
// Partition objects are internal clients of the scheme, their opens are
// multiplexed onto the scheme's single open of the medium. Locks are always
// taken in the order partition, scheme lifecycle, scheme access, medium.
type Scheme struct {
	medium  storage.Medium
	scanner Scanner
	opts    Options

	access  *access.Controller
	forward *partition.Forwarder

	mu      sync.Mutex
	state   State
	initial chan struct{}
	done    chan struct{}

	rescanMu sync.Mutex

	setMu sync.RWMutex
	set   map[storage.PartitionID]*partition.Object
}

// New returns a pointer to a new [Scheme] in the [Uninitialized] state.
func New(medium storage.Medium, scanner Scanner, opts Options) *Scheme {
	s := &Scheme{
		medium:  medium,
		scanner: scanner,
		opts:    opts,
		initial: make(chan struct{}),
		done:    make(chan struct{}),
		set:     make(map[storage.PartitionID]*partition.Object),
	}

	s.access = access.NewController(medium, nil)
	s.forward = partition.NewForwarder(medium, s.access, s.window)

	if opts.Observer != nil {
		s.forward.SetObserver(opts.Observer)
	}

	return s
}

func (s *Scheme) window() storage.Extent {
	return storage.Extent{Offset: 0, Length: s.medium.Size()}
}

// State returns the lifecycle state.
func (s *Scheme) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Done returns a channel that is closed once the scheme is destroyed.
func (s *Scheme) Done() <-chan struct{} {
	return s.done
}

// Medium returns the medium the scheme subdivides.
func (s *Scheme) Medium() storage.Medium {
	return s.medium
}

// Open grants an external client access to the scheme. The first open
// activates the scheme and runs the initial scan, every open returns only
// after that scan. A failing initial scan is logged and leaves the scheme
// active without partitions.
func (s *Scheme) Open(client storage.ClientID, level storage.Level) error {
	if isMemberClient(client) {
		return fmt.Errorf("(scheme) %w: client identity %q is reserved", storage.ErrInvalidState, client)
	}

	s.mu.Lock()

	if s.state == Terminating || s.state == Destroyed {
		state := s.state
		s.mu.Unlock()

		return fmt.Errorf("(scheme) %w: scheme is %s", storage.ErrAccessDenied, state)
	}

	if err := s.access.Open(client, level); err != nil {
		s.mu.Unlock()

		return err //nolint:wrapcheck
	}

	first := s.state == Uninitialized
	if first {
		s.state = Active
	}

	s.mu.Unlock()

	if first {
		slog.Info("Partition scheme active.",
			"size", humanize.IBytes(s.medium.Size()),
			"blockSize", s.medium.BlockSize(),
		)

		if _, err := s.Rescan(context.Background()); err != nil {
			slog.Error("Initial partition scan failed.", "err", err)
		}

		close(s.initial)
	}

	<-s.initial

	return nil
}

// Close releases an external client's access. When the last external client
// closed, the scheme starts terminating and is destroyed as soon as no
// partition is in use anymore.
func (s *Scheme) Close(client storage.ClientID) error {
	if isMemberClient(client) {
		return fmt.Errorf("(scheme) %w: client identity %q is reserved", storage.ErrNotOpen, client)
	}

	s.mu.Lock()

	if err := s.access.Close(client); err != nil {
		s.mu.Unlock()

		return err //nolint:wrapcheck
	}

	terminate := s.state == Active && !s.hasExternalClients()
	if terminate {
		s.state = Terminating
	}

	s.mu.Unlock()

	if terminate {
		slog.Info("Partition scheme terminating.")
		s.finalize()
	}

	return nil
}

func (s *Scheme) hasExternalClients() bool {
	for client := range s.access.Holders() {
		if !isMemberClient(client) {
			return true
		}
	}

	return false
}

// IsOpen reports whether the client holds access to the scheme. With
// [storage.AnyClient] open partitions count as well.
func (s *Scheme) IsOpen(client storage.ClientID) bool {
	return s.access.IsOpen(client)
}

// Size returns the size of the medium.
func (s *Scheme) Size() uint64 {
	return s.medium.Size()
}

// Lookup returns the owned partition with the identifier.
func (s *Scheme) Lookup(id storage.PartitionID) (*partition.Object, bool) {
	s.setMu.RLock()
	defer s.setMu.RUnlock()

	obj, ok := s.set[id]

	return obj, ok
}

// Partitions returns all owned partitions, ordered by identifier.
func (s *Scheme) Partitions() []*partition.Object {
	set := s.snapshot()

	objs := make([]*partition.Object, 0, len(set))
	for _, id := range slices.Sorted(maps.Keys(set)) {
		objs = append(objs, set[id])
	}

	return objs
}

// OpenPartitions returns the identifiers of all owned partitions that are
// in use, ordered.
func (s *Scheme) OpenPartitions() []storage.PartitionID {
	var open []storage.PartitionID

	for _, obj := range s.Partitions() {
		if obj.Busy() {
			open = append(open, obj.PartitionID())
		}
	}

	return open
}

func (s *Scheme) snapshot() map[storage.PartitionID]*partition.Object {
	s.setMu.RLock()
	defer s.setMu.RUnlock()

	return s.set
}

// swap replaces the owned set. Sets are never modified after a swap.
func (s *Scheme) swap(set map[storage.PartitionID]*partition.Object) {
	s.setMu.Lock()
	s.set = set
	s.setMu.Unlock()

	if s.opts.Recorder != nil {
		s.opts.Recorder.SetPartitions(len(set))
	}
}

// Rescan scans the medium and reconciles the owned partitions with the
// result. New partitions are attached to the registry, partitions gone from
// the table are detached and released unless still in use. An invalid scan
// result fails with [storage.ErrInvalidState] and changes nothing.
func (s *Scheme) Rescan(ctx context.Context) (reconcile.Result, error) {
	s.rescanMu.Lock()
	defer s.rescanMu.Unlock()

	if state := s.State(); state != Active {
		return reconcile.Result{}, fmt.Errorf("(scheme) %w: cannot rescan while %s", storage.ErrInvalidState, state)
	}

	res, err := s.rescan(ctx)
	if s.opts.Recorder != nil {
		s.opts.Recorder.ObserveRescan(res.Stats(), err)
	}

	return res, err
}

func (s *Scheme) rescan(ctx context.Context) (reconcile.Result, error) {
	descs, err := s.scanner.Scan(ctx, s.medium)
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("(scheme) failed to scan medium: %w", err)
	}

	fresh, err := s.validate(descs)
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("(scheme) rejected scan result: %w", err)
	}

	res := reconcile.Reconcile(s.snapshot(), fresh, s.newMember)
	s.swap(res.Set)

	for _, obj := range res.Removed {
		s.unpublish(obj)
		slog.Info("Partition removed.", "partition", obj.PartitionID())
	}

	for _, obj := range res.Stale {
		slog.Warn("Partition gone from table but still in use.", "partition", obj.PartitionID())
	}

	for _, obj := range s.Partitions() {
		if state, _ := obj.PublishState(); state == partition.Unpublished && obj.Live() {
			s.publish(obj)
		}
	}

	stats := res.Stats()
	slog.Debug("Partition table reconciled.",
		"partitions", stats.Total,
		"added", stats.Added,
		"updated", stats.Updated,
		"unchanged", stats.Unchanged,
		"stale", stats.Stale,
		"removed", stats.Removed,
	)

	return res, nil
}

func (s *Scheme) validate(descs []partition.Descriptor) (map[storage.PartitionID]partition.Descriptor, error) {
	size := s.medium.Size()
	fresh := make(map[storage.PartitionID]partition.Descriptor, len(descs))

	for _, desc := range descs {
		if err := desc.Validate(size); err != nil {
			return nil, err //nolint:wrapcheck
		}

		if _, ok := fresh[desc.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate partition %s", storage.ErrInvalidState, desc.ID)
		}

		fresh[desc.ID] = desc
	}

	return fresh, nil
}

func (s *Scheme) publish(obj *partition.Object) {
	if s.opts.Registry == nil {
		return
	}

	h, err := s.opts.Registry.Attach(obj)
	if err != nil {
		slog.Warn("Registry rejected partition (retrying on next rescan).",
			"partition", obj.PartitionID(),
			"err", err,
		)

		return
	}

	obj.SetPublished(h)

	slog.Info("Partition published.",
		"partition", obj.PartitionID(),
		"base", obj.Base(),
		"size", humanize.IBytes(obj.Size()),
	)
}

func (s *Scheme) unpublish(obj *partition.Object) {
	state, h := obj.PublishState()
	if state != partition.Published {
		return
	}

	if s.opts.Registry != nil {
		if err := s.opts.Registry.Detach(h); err != nil {
			slog.Warn("Registry failed to detach partition.",
				"partition", obj.PartitionID(),
				"err", err,
			)
		}
	}

	obj.SetUnpublished()
}

// reap releases a stale partition once its last client closed.
func (s *Scheme) reap(obj *partition.Object) {
	s.rescanMu.Lock()
	defer s.rescanMu.Unlock()

	id := obj.PartitionID()

	set := s.snapshot()
	if set[id] != obj || obj.Live() || !obj.Retire() {
		return
	}

	next := maps.Clone(set)
	delete(next, id)
	s.swap(next)

	s.unpublish(obj)

	slog.Info("Stale partition released.", "partition", id)
}

// finalize destroys a terminating scheme unless a partition is still in
// use, in which case it is retried when that partition closes.
func (s *Scheme) finalize() {
	s.rescanMu.Lock()
	defer s.rescanMu.Unlock()

	if s.State() != Terminating {
		return
	}

	set := s.snapshot()

	var busy []storage.PartitionID
	for _, id := range slices.Sorted(maps.Keys(set)) {
		if !set[id].Retire() {
			set[id].Drain()
			busy = append(busy, id)
		}
	}

	if len(busy) > 0 {
		slog.Warn("Partition scheme termination blocked by open partitions.", "partitions", busy)

		return
	}

	for _, id := range slices.Sorted(maps.Keys(set)) {
		set[id].MarkStale()
		s.unpublish(set[id])
	}

	s.swap(make(map[storage.PartitionID]*partition.Object))

	s.mu.Lock()
	s.state = Destroyed
	s.mu.Unlock()

	close(s.done)

	slog.Info("Partition scheme destroyed.")
}

// Wait blocks until the scheme is destroyed. Should the context end first,
// it fails with [storage.ErrBusy] naming the partitions still in use.
func (s *Scheme) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("(scheme) %w: partitions %v still in use: %w", storage.ErrBusy, s.OpenPartitions(), ctx.Err())
	}
}

// Watch rescans the medium every interval while the scheme is active. It
// returns once the context ends or the scheme left the active state.
func (s *Scheme) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("(scheme) %w: rescan interval %s", storage.ErrInvalidState, interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case <-ticker.C:
			if s.State() != Active {
				return nil
			}

			res, err := s.Rescan(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}

				slog.Warn("Periodic rescan failed.", "err", err)

				continue
			}

			if res.Changed() {
				slog.Info("Partition table changed.",
					"partitions", len(res.Set),
					"added", len(res.Added),
					"updated", len(res.Updated),
					"stale", len(res.Stale),
					"removed", len(res.Removed),
				)
			}
		}
	}
}

// checkClient rejects the scheme's own partitions, which reach the medium
// directly and never hold access to the scheme.
func checkClient(client storage.ClientID) error {
	if isMemberClient(client) {
		return fmt.Errorf("(scheme) %w: client %q is a partition of the scheme", storage.ErrNotOpen, client)
	}

	return nil
}

func (s *Scheme) Read(client storage.ClientID, byteStart uint64, buf []byte, attrs *storage.Attributes, done storage.Completion) error {
	if err := checkClient(client); err != nil {
		return err
	}

	return s.forward.Read(client, byteStart, buf, attrs, done)
}

func (s *Scheme) Write(client storage.ClientID, byteStart uint64, buf []byte, attrs *storage.Attributes, done storage.Completion) error {
	if err := checkClient(client); err != nil {
		return err
	}

	return s.forward.Write(client, byteStart, buf, attrs, done)
}

func (s *Scheme) Synchronize(client storage.ClientID, offset, length uint64, opts storage.SyncOptions) error {
	if err := checkClient(client); err != nil {
		return err
	}

	return s.forward.Synchronize(client, offset, length, opts)
}

func (s *Scheme) Unmap(client storage.ClientID, extents []storage.Extent, opts storage.UnmapOptions) error {
	if err := checkClient(client); err != nil {
		return err
	}

	return s.forward.Unmap(client, extents, opts)
}

func (s *Scheme) SetPriority(client storage.ClientID, extents []storage.Extent, priority storage.Priority) error {
	if err := checkClient(client); err != nil {
		return err
	}

	return s.forward.SetPriority(client, extents, priority)
}

func (s *Scheme) GetProvisionStatus(client storage.ClientID, offset, length uint64, opts storage.ProvisionOptions) ([]storage.ProvisionExtent, error) {
	if err := checkClient(client); err != nil {
		return nil, err
	}

	return s.forward.GetProvisionStatus(client, offset, length, opts)
}

func (s *Scheme) LockPhysicalExtents(client storage.ClientID) error {
	if err := checkClient(client); err != nil {
		return err
	}

	return s.forward.LockPhysicalExtents(client)
}

func (s *Scheme) CopyPhysicalExtent(client storage.ClientID, offset, length uint64) (uint64, uint64, error) {
	if err := checkClient(client); err != nil {
		return 0, 0, err
	}

	return s.forward.CopyPhysicalExtent(client, offset, length)
}

func (s *Scheme) UnlockPhysicalExtents(client storage.ClientID) error {
	if err := checkClient(client); err != nil {
		return err
	}

	return s.forward.UnlockPhysicalExtents(client)
}

var _ storage.Object = (*Scheme)(nil)
