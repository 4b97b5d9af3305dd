// Package storage defines the capability interfaces shared by all layers of
// the partition stack: the provider [Medium] underneath, the storage [Object]
// presented to clients, and the [Registry] partitions are published to.
package storage

// Medium is the provider storage object a partition scheme subdivides.
//
// Read and Write are asynchronous and must invoke the given [Completion]
// exactly once. A Synchronize with zero length applies to the whole medium.
type Medium interface {
	Size() uint64
	BlockSize() uint64
	SetAccess(level Level) error
	Read(offset uint64, buf []byte, attrs *Attributes, done Completion)
	Write(offset uint64, buf []byte, attrs *Attributes, done Completion)
	Synchronize(offset, length uint64, opts SyncOptions) error
	Unmap(extents []Extent, opts UnmapOptions) error
	GetProvisionStatus(offset, length uint64, opts ProvisionOptions) ([]ProvisionExtent, error)
}

// PrioritySetter is an optional [Medium] capability.
type PrioritySetter interface {
	SetPriority(extents []Extent, priority Priority) error
}

// PhysicalExtents is an optional [Medium] capability for mediums which are
// themselves mapped onto a physical device. LockPhysicalExtents pins the
// current logical to physical mapping until UnlockPhysicalExtents.
type PhysicalExtents interface {
	LockPhysicalExtents() bool
	CopyPhysicalExtent(offset, length uint64) (physOffset, physLength uint64, err error)
	UnlockPhysicalExtents()
}

// Object is a storage object as presented to its clients. Every operation is
// gated by the access the calling client holds.
type Object interface {
	Open(client ClientID, level Level) error
	Close(client ClientID) error
	IsOpen(client ClientID) bool

	Size() uint64
	Read(client ClientID, byteStart uint64, buf []byte, attrs *Attributes, done Completion) error
	Write(client ClientID, byteStart uint64, buf []byte, attrs *Attributes, done Completion) error
	Synchronize(client ClientID, offset, length uint64, opts SyncOptions) error
	Unmap(client ClientID, extents []Extent, opts UnmapOptions) error
	SetPriority(client ClientID, extents []Extent, priority Priority) error
	GetProvisionStatus(client ClientID, offset, length uint64, opts ProvisionOptions) ([]ProvisionExtent, error)

	LockPhysicalExtents(client ClientID) error
	CopyPhysicalExtent(client ClientID, offset, length uint64) (physOffset, physLength uint64, err error)
	UnlockPhysicalExtents(client ClientID) error
}

// Published is the view of a partition handed to a [Registry]. These three
// values are the complete contract downstream consumers may rely on.
type Published interface {
	PartitionID() PartitionID
	Base() uint64
	Live() bool
}

// Registry publishes partitions to the rest of the system. It holds only a
// non-owning reference to attached objects.
type Registry interface {
	Attach(obj Published) (Handle, error)
	Detach(handle Handle) error
}
