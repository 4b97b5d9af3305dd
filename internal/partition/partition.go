// Package partition implements the per-partition storage object: a
// contiguous window of a medium, exposed with its own access accounting and
// forwarded to the medium with offset translation.
package partition

import (
	"sync"

	"github.com/desertwitch/gopart/internal/access"
	"github.com/desertwitch/gopart/internal/storage"
)

// PublishState tells whether an [Object] is attached to a registry.
type PublishState int

const (
	Unpublished PublishState = iota
	Published
)

func (s PublishState) String() string {
	if s == Published {
		return "published"
	}

	return "unpublished"
}

// Object is a partition as a storage object. It exclusively owns its
// descriptor and its access controller.
type Object struct {
	access  *access.Controller
	forward *Forwarder

	sync.RWMutex
	desc   Descriptor
	fp     uint64
	state  PublishState
	handle storage.Handle
}

// New returns a pointer to a new [Object] for the descriptor. The provider is
// what the object's aggregate open is raised against, usually the owning
// scheme. The optional onClosed function runs every time the last client of
// the object closes.
func New(desc Descriptor, medium storage.Medium, provider access.Provider, onClosed func()) *Object {
	obj := &Object{
		desc: desc.Clone(),
	}
	obj.desc.Live = true
	obj.fp = obj.desc.Fingerprint()

	obj.access = access.NewController(provider, onClosed)
	obj.forward = NewForwarder(medium, obj.access, obj.window)

	return obj
}

func (o *Object) window() storage.Extent {
	o.RLock()
	defer o.RUnlock()

	return o.desc.Extent()
}

// SetObserver sets an [Observer] for the object's forwarded operations.
func (o *Object) SetObserver(observer Observer) {
	o.forward.SetObserver(observer)
}

// Descriptor returns a copy of the current descriptor.
func (o *Object) Descriptor() Descriptor {
	o.RLock()
	defer o.RUnlock()

	return o.desc.Clone()
}

// PartitionID returns the scheme-relative partition identifier.
func (o *Object) PartitionID() storage.PartitionID {
	o.RLock()
	defer o.RUnlock()

	return o.desc.ID
}

// Base returns the byte offset of the partition on the medium.
func (o *Object) Base() uint64 {
	o.RLock()
	defer o.RUnlock()

	return o.desc.Base
}

// Live reports whether the partition matched the table as of the last scan.
func (o *Object) Live() bool {
	o.RLock()
	defer o.RUnlock()

	return o.desc.Live
}

// Size returns the size of the partition in bytes.
func (o *Object) Size() uint64 {
	o.RLock()
	defer o.RUnlock()

	return o.desc.Size
}

// Update replaces the descriptor in place. The partition is live afterwards.
// Access state and publication are left as they are. It returns whether
// anything changed.
func (o *Object) Update(desc Descriptor) bool {
	next := desc.Clone()
	next.ID = o.PartitionID()
	next.Live = true
	fp := next.Fingerprint()

	o.Lock()
	defer o.Unlock()

	if fp == o.fp && o.desc.Equal(next) {
		return false
	}

	o.desc = next
	o.fp = fp

	return true
}

// Fingerprint returns the [Descriptor.Fingerprint] of the current descriptor.
func (o *Object) Fingerprint() uint64 {
	o.RLock()
	defer o.RUnlock()

	return o.fp
}

// MarkStale marks the partition as no longer matching the table. It returns
// whether the partition was live before.
func (o *Object) MarkStale() bool {
	o.Lock()
	defer o.Unlock()

	wasLive := o.desc.Live
	o.desc.Live = false
	if wasLive {
		o.fp = o.desc.Fingerprint()
	}

	return wasLive
}

// PublishState returns the publication state and the registry handle.
func (o *Object) PublishState() (PublishState, storage.Handle) {
	o.RLock()
	defer o.RUnlock()

	return o.state, o.handle
}

// SetPublished records the handle a registry returned on attach.
func (o *Object) SetPublished(handle storage.Handle) {
	o.Lock()
	defer o.Unlock()

	o.state = Published
	o.handle = handle
}

// SetUnpublished records that the object was detached from its registry.
func (o *Object) SetUnpublished() {
	o.Lock()
	defer o.Unlock()

	o.state = Unpublished
	o.handle = ""
}

// Busy reports whether the object may not be destroyed, because a client
// holds access or a physical extent lock.
func (o *Object) Busy() bool {
	return o.access.IsOpen(storage.AnyClient) || o.forward.LocksHeld() > 0
}

// Retire seals the object against new opens, unless a client holds access
// or a physical extent lock. It returns whether the object was retired.
func (o *Object) Retire() bool {
	if o.forward.LocksHeld() > 0 || !o.access.Seal() {
		return false
	}

	// A lock taken by a client closing concurrently.
	if o.forward.LocksHeld() > 0 {
		o.access.Unseal()

		return false
	}

	return true
}

// Drain rejects opens by new clients and upgrades, while current clients
// keep their access until they close.
func (o *Object) Drain() {
	o.access.Drain()
}

// Retired reports whether the object was retired.
func (o *Object) Retired() bool {
	return o.access.Sealed()
}

// Controller returns the object's access controller.
func (o *Object) Controller() *access.Controller {
	return o.access
}

// Forwarder returns the object's generic forwarder.
func (o *Object) Forwarder() *Forwarder {
	return o.forward
}

// Open grants a client access to the partition.
func (o *Object) Open(client storage.ClientID, level storage.Level) error {
	return o.access.Open(client, level) //nolint:wrapcheck
}

// Close releases a client's access to the partition.
func (o *Object) Close(client storage.ClientID) error {
	return o.access.Close(client) //nolint:wrapcheck
}

// IsOpen reports whether the client, or with [storage.AnyClient] any client,
// holds access.
func (o *Object) IsOpen(client storage.ClientID) bool {
	return o.access.IsOpen(client)
}

func (o *Object) Read(client storage.ClientID, byteStart uint64, buf []byte, attrs *storage.Attributes, done storage.Completion) error {
	return o.forward.Read(client, byteStart, buf, attrs, done)
}

func (o *Object) Write(client storage.ClientID, byteStart uint64, buf []byte, attrs *storage.Attributes, done storage.Completion) error {
	return o.forward.Write(client, byteStart, buf, attrs, done)
}

func (o *Object) Synchronize(client storage.ClientID, offset, length uint64, opts storage.SyncOptions) error {
	return o.forward.Synchronize(client, offset, length, opts)
}

func (o *Object) Unmap(client storage.ClientID, extents []storage.Extent, opts storage.UnmapOptions) error {
	return o.forward.Unmap(client, extents, opts)
}

func (o *Object) SetPriority(client storage.ClientID, extents []storage.Extent, priority storage.Priority) error {
	return o.forward.SetPriority(client, extents, priority)
}

func (o *Object) GetProvisionStatus(client storage.ClientID, offset, length uint64, opts storage.ProvisionOptions) ([]storage.ProvisionExtent, error) {
	return o.forward.GetProvisionStatus(client, offset, length, opts)
}

func (o *Object) LockPhysicalExtents(client storage.ClientID) error {
	return o.forward.LockPhysicalExtents(client)
}

func (o *Object) CopyPhysicalExtent(client storage.ClientID, offset, length uint64) (uint64, uint64, error) {
	return o.forward.CopyPhysicalExtent(client, offset, length)
}

func (o *Object) UnlockPhysicalExtents(client storage.ClientID) error {
	return o.forward.UnlockPhysicalExtents(client)
}

var (
	_ storage.Object    = (*Object)(nil)
	_ storage.Published = (*Object)(nil)
)
