package storage

// Level is an access level a client holds on a storage object, or the
// aggregate level a storage object holds against its own provider. Levels
// are ordered, a stronger level implies all weaker ones.
type Level int

const (
	LevelClosed Level = iota
	LevelReadOnly
	LevelReadWrite
)

func (l Level) String() string {
	switch l {
	case LevelClosed:
		return "closed"
	case LevelReadOnly:
		return "read-only"
	case LevelReadWrite:
		return "read-write"
	default:
		return "unknown"
	}
}

// Satisfies reports whether holding level l is sufficient for the wanted
// level.
func (l Level) Satisfies(want Level) bool {
	return l >= want
}

// ClientID identifies a client of a storage object.
type ClientID string

// AnyClient is used with IsOpen to ask whether any client holds access.
const AnyClient ClientID = ""

// PartitionID is a scheme-relative partition identifier.
type PartitionID string

// Handle is returned by a [Registry] for an attached object.
type Handle string

// Priority is an I/O scheduling hint.
type Priority uint8

const (
	PriorityHigh Priority = iota
	PriorityNormal
	PriorityLow
)

// Attributes are passed through with a read or write request.
type Attributes struct {
	ForceUnitAccess bool
	NoCache         bool
	Priority        Priority
}

// Result is the outcome of an asynchronous read or write request.
type Result struct {
	Count uint64
	Err   error
}

// Completion is invoked exactly once with the outcome of a request.
type Completion func(Result)

// Extent is a byte range.
type Extent struct {
	Offset uint64
	Length uint64
}

// End returns the first byte offset past the extent.
func (e Extent) End() uint64 {
	return e.Offset + e.Length
}

// ProvisionStatus describes the allocation state of an extent.
type ProvisionStatus uint8

const (
	ProvisionMapped ProvisionStatus = iota
	ProvisionDeallocated
)

func (s ProvisionStatus) String() string {
	if s == ProvisionMapped {
		return "mapped"
	}

	return "deallocated"
}

// ProvisionExtent is an extent with its allocation state.
type ProvisionExtent struct {
	Extent
	Status ProvisionStatus
}

// SyncOptions modify a synchronize request.
type SyncOptions uint32

const (
	SyncBarrier SyncOptions = 1 << iota
)

// UnmapOptions modify an unmap request.
type UnmapOptions uint32

// ProvisionOptions modify a provisioning status query.
type ProvisionOptions uint32
