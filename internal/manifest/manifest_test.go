package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertwitch/gopart/internal/configuration"
	"github.com/desertwitch/gopart/internal/medium"
	"github.com/desertwitch/gopart/internal/partition"
	"github.com/desertwitch/gopart/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mediumSize = 8 << 20

func writeManifest(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "disk.table")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func newScanner(path string) *Scanner {
	return NewScanner(path, configuration.NewHandler(&configuration.GodotenvProvider{}))
}

// TestScan_Success tests reading a manifest with units and metadata.
func TestScan_Success(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, `
# test table
PARTITIONS=boot, root
PART_boot_BASE=1MiB
PART_boot_SIZE=512KiB
PART_boot_NAME="EFI System"
PART_root_BASE=2MiB
PART_root_SIZE=rest
PART_root_TYPE=linux
`)

	descs, err := newScanner(path).Scan(t.Context(), medium.NewMemory(mediumSize, 512))
	require.NoError(t, err)

	assert.Equal(t, []partition.Descriptor{
		{ID: "boot", Base: 1 << 20, Size: 512 << 10, Metadata: map[string]string{"name": "EFI System"}},
		{ID: "root", Base: 2 << 20, Size: 6 << 20, Metadata: map[string]string{"type": "linux"}},
	}, descs)
}

// TestScan_Success_Empty tests a manifest without partitions.
func TestScan_Success_Empty(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, "OTHER=1\n")

	descs, err := newScanner(path).Scan(t.Context(), medium.NewMemory(mediumSize, 512))
	require.NoError(t, err)
	assert.Empty(t, descs)
}

// TestScan_Success_Reread tests that a rewritten manifest is picked up.
func TestScan_Success_Reread(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, "PARTITIONS=1\nPART_1_BASE=0\nPART_1_SIZE=4096\n")
	s := newScanner(path)
	m := medium.NewMemory(mediumSize, 512)

	descs, err := s.Scan(t.Context(), m)
	require.NoError(t, err)
	require.Len(t, descs, 1)

	require.NoError(t, os.WriteFile(path, []byte("PARTITIONS=1,2\nPART_1_BASE=0\nPART_1_SIZE=8192\nPART_2_BASE=8192\nPART_2_SIZE=512\n"), 0o600))

	descs, err = s.Scan(t.Context(), m)
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.Equal(t, uint64(8192), descs[0].Size)
}

// TestScan_Success_EncodeRoundTrip tests that encoded descriptors scan back.
func TestScan_Success_EncodeRoundTrip(t *testing.T) {
	t.Parallel()

	want := []partition.Descriptor{
		{ID: "1", Base: 0, Size: 1 << 20, Metadata: map[string]string{"label": "data"}},
		{ID: "2", Base: 1 << 20, Size: 1 << 20},
	}

	data, err := (&configuration.GodotenvProvider{}).Marshal(Encode(want))
	require.NoError(t, err)

	descs, err := newScanner(writeManifest(t, data)).Scan(t.Context(), medium.NewMemory(mediumSize, 512))
	require.NoError(t, err)
	assert.Equal(t, want, descs)
}

// TestScan_Fail_Table tests malformed manifests.
func TestScan_Fail_Table(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		content string
		wantErr error
	}{
		{"InvalidID", "PARTITIONS=a_b\n", ErrMalformed},
		{"DuplicateID", "PARTITIONS=1,1\nPART_1_BASE=0\nPART_1_SIZE=512\n", ErrMalformed},
		{"NoBase", "PARTITIONS=1\nPART_1_SIZE=512\n", ErrMalformed},
		{"BadSize", "PARTITIONS=1\nPART_1_BASE=0\nPART_1_SIZE=huge\n", ErrMalformed},
		{"RestPastEnd", "PARTITIONS=1\nPART_1_BASE=16MiB\nPART_1_SIZE=rest\n", ErrMalformed},
		{"MisalignedBase", "PARTITIONS=1\nPART_1_BASE=100\nPART_1_SIZE=512\n", ErrMisaligned},
		{"MisalignedSize", "PARTITIONS=1\nPART_1_BASE=0\nPART_1_SIZE=1000\n", ErrMisaligned},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := newScanner(writeManifest(t, tc.content)).Scan(t.Context(), medium.NewMemory(mediumSize, 512))
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

// TestScan_Fail_Missing tests a missing manifest file.
func TestScan_Fail_Missing(t *testing.T) {
	t.Parallel()

	_, err := newScanner(filepath.Join(t.TempDir(), "absent")).Scan(t.Context(), medium.NewMemory(mediumSize, 512))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestScan_Fail_Canceled tests scanning with an ended context.
func TestScan_Fail_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := newScanner("unused").Scan(ctx, medium.NewMemory(mediumSize, 512))
	require.ErrorIs(t, err, context.Canceled)
}

var _ interface {
	Scan(ctx context.Context, medium storage.Medium) ([]partition.Descriptor, error)
} = (*Scanner)(nil)
