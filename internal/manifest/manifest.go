// Package manifest implements a partition table scanner reading a Unix-type
// key/value manifest file. The manifest is read again on every scan, so a
// rewritten table shows up on the next rescan.
//
// A manifest lists the partition identifiers and, per partition, its base
// and size. Every other key of a partition becomes its metadata:
//
//	PARTITIONS=boot,root
//	PART_boot_BASE=1MiB
//	PART_boot_SIZE=256MiB
//	PART_boot_NAME=EFI
//	PART_root_BASE=257MiB
//	PART_root_SIZE=rest
//
// Sizes accept plain byte counts and humanized units. A size of "rest"
// extends the partition to the end of the medium.
package manifest

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/desertwitch/gopart/internal/partition"
	"github.com/desertwitch/gopart/internal/storage"
)

const (
	keyPartitions = "PARTITIONS"
	keyPrefix     = "PART_"
	suffixBase    = "BASE"
	suffixSize    = "SIZE"
	sizeRest      = "rest"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9]+$`)

type configProvider interface {
	ReadGeneric(filenames ...string) (map[string]string, error)
	MapKeyToString(envMap map[string]string, key string) string
	MapKeyToBytes(envMap map[string]string, key string) (uint64, bool)
}

// Scanner reads partition descriptors from a manifest file.
type Scanner struct {
	path   string
	config configProvider
}

// NewScanner returns a pointer to a new [Scanner] for the manifest file.
func NewScanner(path string, config configProvider) *Scanner {
	return &Scanner{
		path:   path,
		config: config,
	}
}

// Path returns the path of the manifest file.
func (s *Scanner) Path() string {
	return s.path
}

// Scan reads the manifest and returns its partitions in manifest order. Every
// partition must be aligned to the block size of the medium.
func (s *Scanner) Scan(ctx context.Context, medium storage.Medium) ([]partition.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck
	}

	envMap, err := s.config.ReadGeneric(s.path)
	if err != nil {
		return nil, fmt.Errorf("(manifest) failed to read %s: %w", s.path, err)
	}

	ids, err := s.partitionIDs(envMap)
	if err != nil {
		return nil, err
	}

	descs := make([]partition.Descriptor, 0, len(ids))
	for _, id := range ids {
		desc, err := s.descriptor(envMap, id, medium)
		if err != nil {
			return nil, err
		}
		descs = append(descs, desc)
	}

	return descs, nil
}

func (s *Scanner) partitionIDs(envMap map[string]string) ([]string, error) {
	list := s.config.MapKeyToString(envMap, keyPartitions)
	if list == "" {
		return nil, nil
	}

	var ids []string
	for _, id := range strings.Split(list, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}

		if !validID.MatchString(id) {
			return nil, fmt.Errorf("(manifest) %w: invalid partition identifier %q", ErrMalformed, id)
		}

		if slices.Contains(ids, id) {
			return nil, fmt.Errorf("(manifest) %w: duplicate partition identifier %q", ErrMalformed, id)
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func (s *Scanner) descriptor(envMap map[string]string, id string, medium storage.Medium) (partition.Descriptor, error) {
	prefix := keyPrefix + id + "_"

	base, ok := s.config.MapKeyToBytes(envMap, prefix+suffixBase)
	if !ok {
		return partition.Descriptor{}, fmt.Errorf("(manifest) %w: partition %s has no valid %s", ErrMalformed, id, prefix+suffixBase)
	}

	var size uint64
	if strings.EqualFold(s.config.MapKeyToString(envMap, prefix+suffixSize), sizeRest) {
		if base >= medium.Size() {
			return partition.Descriptor{}, fmt.Errorf("(manifest) %w: partition %s starts past the medium end", ErrMalformed, id)
		}
		size = medium.Size() - base
	} else if size, ok = s.config.MapKeyToBytes(envMap, prefix+suffixSize); !ok {
		return partition.Descriptor{}, fmt.Errorf("(manifest) %w: partition %s has no valid %s", ErrMalformed, id, prefix+suffixSize)
	}

	if bs := medium.BlockSize(); bs > 0 && (base%bs != 0 || size%bs != 0) {
		return partition.Descriptor{}, fmt.Errorf("(manifest) %w: partition %s [%d, +%d) with block size %d", ErrMisaligned, id, base, size, bs)
	}

	desc := partition.Descriptor{
		ID:   storage.PartitionID(id),
		Base: base,
		Size: size,
	}

	for key := range envMap {
		name, ok := strings.CutPrefix(key, prefix)
		if !ok || name == suffixBase || name == suffixSize || name == "" {
			continue
		}

		if desc.Metadata == nil {
			desc.Metadata = make(map[string]string)
		}
		desc.Metadata[strings.ToLower(name)] = s.config.MapKeyToString(envMap, key)
	}

	return desc, nil
}

// Encode renders descriptors as a manifest map, the inverse of [Scanner.Scan].
func Encode(descs []partition.Descriptor) map[string]string {
	envMap := make(map[string]string)

	ids := make([]string, 0, len(descs))
	for _, desc := range descs {
		id := string(desc.ID)
		prefix := keyPrefix + id + "_"

		ids = append(ids, id)
		envMap[prefix+suffixBase] = strconv.FormatUint(desc.Base, 10)
		envMap[prefix+suffixSize] = strconv.FormatUint(desc.Size, 10)

		for name, value := range desc.Metadata {
			envMap[prefix+strings.ToUpper(name)] = value
		}
	}

	envMap[keyPartitions] = strings.Join(ids, ",")

	return envMap
}
