package partition

import (
	"fmt"
	"sync"

	"github.com/desertwitch/gopart/internal/storage"
)

// Operation names reported to an [Observer].
const (
	OpRead        = "read"
	OpWrite       = "write"
	OpSynchronize = "synchronize"
	OpUnmap       = "unmap"
)

// Gate reports the access level a client holds on the forwarding object.
type Gate interface {
	Level(client storage.ClientID) storage.Level
}

// Observer is notified about every forwarded operation once it completed.
type Observer interface {
	ObserveIO(op string, bytes uint64, err error)
}

// Forwarder is the generic passthrough of a storage object onto a
// contiguous window of its medium. Offsets are translated by the window base
// and transfers are bound-checked against the window size before anything
// reaches the medium.
//
// The window is queried on every request, so geometry updated in place takes
// effect for the next request without any coordination.
type Forwarder struct {
	medium   storage.Medium
	gate     Gate
	window   func() storage.Extent
	observer Observer

	locksMu sync.Mutex
	locks   map[storage.ClientID]int
}

// NewForwarder returns a pointer to a new [Forwarder].
func NewForwarder(medium storage.Medium, gate Gate, window func() storage.Extent) *Forwarder {
	return &Forwarder{
		medium: medium,
		gate:   gate,
		window: window,
		locks:  make(map[storage.ClientID]int),
	}
}

// SetObserver sets an [Observer] for forwarded operations. It must be called
// before the forwarder is used concurrently.
func (f *Forwarder) SetObserver(observer Observer) {
	f.observer = observer
}

// Medium returns the medium the forwarder forwards to.
func (f *Forwarder) Medium() storage.Medium {
	return f.medium
}

// Read forwards a read of len(buf) bytes at byteStart to the medium. The
// completion is invoked exactly once, on its own goroutine, with the
// medium's result.
func (f *Forwarder) Read(client storage.ClientID, byteStart uint64, buf []byte, attrs *storage.Attributes, done storage.Completion) error {
	if done == nil {
		return fmt.Errorf("(forward) %w: read without completion", storage.ErrInvalidState)
	}

	if err := f.checkAccess(client, storage.LevelReadOnly); err != nil {
		return err
	}

	w := f.window()
	if err := checkRange(byteStart, uint64(len(buf)), w.Length); err != nil {
		return err
	}

	f.medium.Read(w.Offset+byteStart, buf, attrs, f.completion(OpRead, done))

	return nil
}

// Write forwards a write of buf at byteStart to the medium. It requires
// read-write access, otherwise it behaves like [Forwarder.Read].
func (f *Forwarder) Write(client storage.ClientID, byteStart uint64, buf []byte, attrs *storage.Attributes, done storage.Completion) error {
	if done == nil {
		return fmt.Errorf("(forward) %w: write without completion", storage.ErrInvalidState)
	}

	if err := f.checkAccess(client, storage.LevelReadWrite); err != nil {
		return err
	}

	w := f.window()
	if err := checkRange(byteStart, uint64(len(buf)), w.Length); err != nil {
		return err
	}

	f.medium.Write(w.Offset+byteStart, buf, attrs, f.completion(OpWrite, done))

	return nil
}

// Synchronize flushes the given range of the window. A zero length extends
// the range to the end of the window.
func (f *Forwarder) Synchronize(client storage.ClientID, offset, length uint64, opts storage.SyncOptions) error {
	if err := f.checkAccess(client, storage.LevelReadOnly); err != nil {
		return err
	}

	w := f.window()

	ext, err := clip(storage.Extent{Offset: offset, Length: length}, w.Length)
	if err != nil {
		return err
	}

	err = f.medium.Synchronize(w.Offset+ext.Offset, ext.Length, opts)
	f.observe(OpSynchronize, ext.Length, err)

	return err //nolint:wrapcheck
}

// Unmap releases the given extents of the window. Without extents the whole
// window is released. Any extent starting outside the window rejects the
// whole request, extents reaching past the end are clipped.
func (f *Forwarder) Unmap(client storage.ClientID, extents []storage.Extent, opts storage.UnmapOptions) error {
	if err := f.checkAccess(client, storage.LevelReadWrite); err != nil {
		return err
	}

	w := f.window()

	translated, err := translate(extents, w)
	if err != nil {
		return err
	}

	var total uint64
	for _, ext := range translated {
		total += ext.Length
	}

	err = f.medium.Unmap(translated, opts)
	f.observe(OpUnmap, total, err)

	return err //nolint:wrapcheck
}

// SetPriority forwards a scheduling hint for the given extents, if the medium
// supports it. Without extents the hint applies to the whole window.
func (f *Forwarder) SetPriority(client storage.ClientID, extents []storage.Extent, priority storage.Priority) error {
	if err := f.checkAccess(client, storage.LevelReadOnly); err != nil {
		return err
	}

	w := f.window()

	translated, err := translate(extents, w)
	if err != nil {
		return err
	}

	setter, ok := f.medium.(storage.PrioritySetter)
	if !ok {
		return nil
	}

	return setter.SetPriority(translated, priority) //nolint:wrapcheck
}

// GetProvisionStatus queries the allocation state of the given range. The
// returned extents are relative to the window and never reach outside of it.
func (f *Forwarder) GetProvisionStatus(client storage.ClientID, offset, length uint64, opts storage.ProvisionOptions) ([]storage.ProvisionExtent, error) {
	if err := f.checkAccess(client, storage.LevelReadOnly); err != nil {
		return nil, err
	}

	w := f.window()

	ext, err := clip(storage.Extent{Offset: offset, Length: length}, w.Length)
	if err != nil {
		return nil, err
	}

	status, err := f.medium.GetProvisionStatus(w.Offset+ext.Offset, ext.Length, opts)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	result := make([]storage.ProvisionExtent, 0, len(status))
	for _, s := range status {
		start := max(s.Offset, w.Offset)
		end := min(s.End(), w.End())
		if start >= end {
			continue
		}

		result = append(result, storage.ProvisionExtent{
			Extent: storage.Extent{Offset: start - w.Offset, Length: end - start},
			Status: s.Status,
		})
	}

	return result, nil
}

// LockPhysicalExtents pins the physical mapping of the window for the client.
// Locks nest, every successful call must be paired with
// [Forwarder.UnlockPhysicalExtents].
func (f *Forwarder) LockPhysicalExtents(client storage.ClientID) error {
	if err := f.checkAccess(client, storage.LevelReadOnly); err != nil {
		return err
	}

	if pe, ok := f.medium.(storage.PhysicalExtents); ok {
		if !pe.LockPhysicalExtents() {
			return fmt.Errorf("(forward) %w: medium refused to lock physical extents", storage.ErrAccessDenied)
		}
	}

	f.locksMu.Lock()
	f.locks[client]++
	f.locksMu.Unlock()

	return nil
}

// CopyPhysicalExtent translates a window-relative range into a physical
// range. The returned length never exceeds the part of the range that lies
// inside the window. The client must hold a physical extent lock.
func (f *Forwarder) CopyPhysicalExtent(client storage.ClientID, offset, length uint64) (uint64, uint64, error) {
	f.locksMu.Lock()
	held := f.locks[client]
	f.locksMu.Unlock()

	if held == 0 {
		return 0, 0, fmt.Errorf("(forward) %w: client %q holds no physical extent lock", storage.ErrInvalidState, client)
	}

	w := f.window()

	ext, err := clip(storage.Extent{Offset: offset, Length: length}, w.Length)
	if err != nil {
		return 0, 0, err
	}

	pe, ok := f.medium.(storage.PhysicalExtents)
	if !ok {
		return w.Offset + ext.Offset, ext.Length, nil
	}

	physOffset, physLength, err := pe.CopyPhysicalExtent(w.Offset+ext.Offset, ext.Length)
	if err != nil {
		return 0, 0, err //nolint:wrapcheck
	}

	return physOffset, min(physLength, ext.Length), nil
}

// UnlockPhysicalExtents releases one physical extent lock of the client.
func (f *Forwarder) UnlockPhysicalExtents(client storage.ClientID) error {
	f.locksMu.Lock()

	if f.locks[client] == 0 {
		f.locksMu.Unlock()

		return fmt.Errorf("(forward) %w: client %q holds no physical extent lock", storage.ErrInvalidState, client)
	}

	f.locks[client]--
	if f.locks[client] == 0 {
		delete(f.locks, client)
	}

	f.locksMu.Unlock()

	if pe, ok := f.medium.(storage.PhysicalExtents); ok {
		pe.UnlockPhysicalExtents()
	}

	return nil
}

// LocksHeld returns the number of physical extent locks held by all clients.
func (f *Forwarder) LocksHeld() int {
	f.locksMu.Lock()
	defer f.locksMu.Unlock()

	var held int
	for _, n := range f.locks {
		held += n
	}

	return held
}

func (f *Forwarder) checkAccess(client storage.ClientID, want storage.Level) error {
	if held := f.gate.Level(client); !held.Satisfies(want) {
		return fmt.Errorf("(forward) %w: client %q holds %s, needs %s", storage.ErrNotOpen, client, held, want)
	}

	return nil
}

// completion wraps done so that it runs exactly once and never on the
// goroutine the medium completes on.
func (f *Forwarder) completion(op string, done storage.Completion) storage.Completion {
	var once sync.Once

	return func(res storage.Result) {
		once.Do(func() {
			f.observe(op, res.Count, res.Err)
			go done(res)
		})
	}
}

func (f *Forwarder) observe(op string, n uint64, err error) {
	if f.observer != nil {
		f.observer.ObserveIO(op, n, err)
	}
}

// checkRange rejects a transfer of length bytes at start that does not fit
// into size bytes.
func checkRange(start, length, size uint64) error {
	if start > size || length > size-start {
		return fmt.Errorf("(forward) %w: transfer [%d, +%d) exceeds size %d", storage.ErrOutOfRange, start, length, size)
	}

	return nil
}

// clip limits an extent to size bytes. A zero length extends the extent to
// the end. Extents starting at or past the end are rejected, except for the
// empty extent at offset zero of an empty window.
func clip(ext storage.Extent, size uint64) (storage.Extent, error) {
	if ext.Offset >= size && !(ext.Offset == 0 && size == 0) {
		return storage.Extent{}, fmt.Errorf("(forward) %w: offset %d exceeds size %d", storage.ErrOutOfRange, ext.Offset, size)
	}

	remaining := size - ext.Offset
	if ext.Length == 0 || ext.Length > remaining {
		ext.Length = remaining
	}

	return ext, nil
}

// translate clips window-relative extents and shifts them onto the medium.
// An empty list stands for the whole window.
func translate(extents []storage.Extent, w storage.Extent) ([]storage.Extent, error) {
	if len(extents) == 0 {
		return []storage.Extent{w}, nil
	}

	translated := make([]storage.Extent, 0, len(extents))
	for _, ext := range extents {
		if ext.Length == 0 {
			continue
		}

		clipped, err := clip(ext, w.Length)
		if err != nil {
			return nil, err
		}

		clipped.Offset += w.Offset
		translated = append(translated, clipped)
	}

	return translated, nil
}
