package fec

import (
	"fmt"

	"github.com/desertwitch/gopart/internal/storage"
)

// Layout places the stripes of a protected object on its partition. The
// data of all stripes comes first and is addressed without translation, the
// parity of all stripes follows it in stripe order.
type Layout struct {
	DataShards   int
	ParityShards int
	ShardSize    uint64
	Stripes      uint64
}

// NewLayout returns the [Layout] fitting the most stripes into size bytes.
func NewLayout(size uint64, dataShards, parityShards int, shardSize uint64) (Layout, error) {
	if dataShards <= 0 || parityShards <= 0 || shardSize == 0 {
		return Layout{}, fmt.Errorf("(fec) %w: %d+%d shards of %d bytes", storage.ErrInvalidState, dataShards, parityShards, shardSize)
	}

	l := Layout{
		DataShards:   dataShards,
		ParityShards: parityShards,
		ShardSize:    shardSize,
	}
	l.Stripes = size / (l.StripeData() + l.StripeParity())

	if l.Stripes == 0 {
		return Layout{}, fmt.Errorf("(fec) %w: %d bytes hold no stripe of %d bytes", storage.ErrInvalidState, size, l.StripeData()+l.StripeParity())
	}

	return l, nil
}

// StripeData returns the number of data bytes per stripe.
func (l Layout) StripeData() uint64 {
	return uint64(l.DataShards) * l.ShardSize
}

// StripeParity returns the number of parity bytes per stripe.
func (l Layout) StripeParity() uint64 {
	return uint64(l.ParityShards) * l.ShardSize
}

// DataSize returns the number of data bytes of all stripes.
func (l Layout) DataSize() uint64 {
	return l.Stripes * l.StripeData()
}

// ParityOffset returns the partition offset of the parity of a stripe.
func (l Layout) ParityOffset(stripe uint64) uint64 {
	return l.DataSize() + stripe*l.StripeParity()
}

// Aligned reports whether the range covers whole stripes only.
func (l Layout) Aligned(offset, length uint64) bool {
	return offset%l.StripeData() == 0 && length%l.StripeData() == 0
}
