package partition

import (
	"encoding/binary"
	"fmt"
	"maps"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/desertwitch/gopart/internal/storage"
)

// Descriptor describes one partition discovered on a medium. Metadata is an
// opaque bag owned by the scheme which produced the descriptor.
type Descriptor struct {
	ID       storage.PartitionID
	Base     uint64
	Size     uint64
	Live     bool
	Metadata map[string]string
}

// End returns the first medium offset past the partition.
func (d Descriptor) End() uint64 {
	return d.Base + d.Size
}

// Extent returns the partition as an extent of the medium.
func (d Descriptor) Extent() storage.Extent {
	return storage.Extent{Offset: d.Base, Length: d.Size}
}

// Validate checks the descriptor against the size of its medium.
func (d Descriptor) Validate(mediumSize uint64) error {
	if d.ID == "" {
		return fmt.Errorf("%w: partition without identifier", storage.ErrInvalidState)
	}

	if d.Size == 0 {
		return fmt.Errorf("%w: partition %s has zero size", storage.ErrInvalidState, d.ID)
	}

	if d.Base > mediumSize || d.Size > mediumSize-d.Base {
		return fmt.Errorf("%w: partition %s [%d, +%d) exceeds medium size %d",
			storage.ErrInvalidState, d.ID, d.Base, d.Size, mediumSize)
	}

	return nil
}

// Equal compares two descriptors field by field.
func (d Descriptor) Equal(other Descriptor) bool {
	return d.ID == other.ID &&
		d.Base == other.Base &&
		d.Size == other.Size &&
		d.Live == other.Live &&
		maps.Equal(d.Metadata, other.Metadata)
}

// Clone returns a deep copy of the descriptor.
func (d Descriptor) Clone() Descriptor {
	c := d
	c.Metadata = maps.Clone(d.Metadata)

	return c
}

// Fingerprint returns a hash over all descriptor fields. Descriptors with
// different fingerprints are never equal, equal fingerprints still need
// [Descriptor.Equal] for certainty.
func (d Descriptor) Fingerprint() uint64 {
	h := xxhash.New()

	var buf [17]byte
	binary.LittleEndian.PutUint64(buf[0:8], d.Base)
	binary.LittleEndian.PutUint64(buf[8:16], d.Size)
	if d.Live {
		buf[16] = 1
	}
	_, _ = h.Write(buf[:])

	_, _ = h.WriteString(string(d.ID))
	_, _ = h.Write([]byte{0})

	for _, key := range slices.Sorted(maps.Keys(d.Metadata)) {
		_, _ = h.WriteString(key)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(d.Metadata[key])
		_, _ = h.Write([]byte{0})
	}

	return h.Sum64()
}
