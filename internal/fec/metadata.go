package fec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/desertwitch/gopart/internal/partition"
	"github.com/desertwitch/gopart/internal/storage"
	"github.com/dustin/go-humanize"
)

// Metadata keys of a protected partition, as in PART_<id>_FEC=4+2 and
// PART_<id>_FEC_SHARD=64KiB of a manifest.
const (
	MetaScheme = "fec"
	MetaShard  = "fec_shard"
)

// DefaultShardSize is used when a partition names no shard size.
const DefaultShardSize = 4096

// Params are the Reed-Solomon parameters of a protected partition.
type Params struct {
	DataShards   int
	ParityShards int
	ShardSize    uint64
}

// ParseParams reads the parameters from partition metadata. It returns false
// for a partition that is not protected.
func ParseParams(meta map[string]string) (Params, bool, error) {
	value, ok := meta[MetaScheme]
	if !ok || strings.TrimSpace(value) == "" {
		return Params{}, false, nil
	}

	dataStr, parityStr, found := strings.Cut(strings.TrimSpace(value), "+")
	if !found {
		return Params{}, true, fmt.Errorf("(fec) %w: scheme %q is not <data>+<parity>", storage.ErrInvalidState, value)
	}

	data, err := strconv.Atoi(dataStr)
	if err != nil {
		return Params{}, true, fmt.Errorf("(fec) %w: data shards %q: %w", storage.ErrInvalidState, dataStr, err)
	}

	parity, err := strconv.Atoi(parityStr)
	if err != nil {
		return Params{}, true, fmt.Errorf("(fec) %w: parity shards %q: %w", storage.ErrInvalidState, parityStr, err)
	}

	p := Params{DataShards: data, ParityShards: parity, ShardSize: DefaultShardSize}

	if s, ok := meta[MetaShard]; ok {
		if p.ShardSize, err = humanize.ParseBytes(s); err != nil {
			return Params{}, true, fmt.Errorf("(fec) %w: shard size %q: %w", storage.ErrInvalidState, s, err)
		}
	}

	return p, true, nil
}

// FromPartition returns a new [Object] over a partition whose metadata marks
// it as protected. It returns nil without error for unprotected partitions.
func FromPartition(inner *partition.Object) (*Object, error) {
	p, ok, err := ParseParams(inner.Descriptor().Metadata)
	if err != nil || !ok {
		return nil, err
	}

	return New(inner, p.DataShards, p.ParityShards, p.ShardSize)
}
