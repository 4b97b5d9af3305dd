package configuration

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapProvider struct {
	envMap map[string]string
	err    error
}

func (p *mapProvider) Read(_ ...string) (map[string]string, error) {
	return p.envMap, p.err
}

// TestMapKeyTo_Table tests the typed value helpers.
func TestMapKeyTo_Table(t *testing.T) {
	t.Parallel()

	envMap := map[string]string{
		"STR":      "  value ",
		"INT":      "42",
		"BADINT":   "x",
		"UINT":     "18446744073709551615",
		"BOOL":     "yes",
		"TRUE":     "true",
		"DURATION": "1m30s",
		"BYTES":    "1 MiB",
		"BADBYTES": "lots",
	}

	c := NewHandler(&mapProvider{})

	assert.Equal(t, "value", c.MapKeyToString(envMap, "STR"))
	assert.Empty(t, c.MapKeyToString(envMap, "MISSING"))

	assert.Equal(t, 42, c.MapKeyToInt(envMap, "INT"))
	assert.Equal(t, -1, c.MapKeyToInt(envMap, "BADINT"))
	assert.Equal(t, -1, c.MapKeyToInt(envMap, "MISSING"))

	assert.Equal(t, uint64(18446744073709551615), c.MapKeyToUInt64(envMap, "UINT"))
	assert.Zero(t, c.MapKeyToUInt64(envMap, "BADINT"))

	assert.False(t, c.MapKeyToBool(envMap, "BOOL"))
	assert.True(t, c.MapKeyToBool(envMap, "TRUE"))

	assert.Equal(t, 90*time.Second, c.MapKeyToDuration(envMap, "DURATION"))
	assert.Zero(t, c.MapKeyToDuration(envMap, "STR"))

	n, ok := c.MapKeyToBytes(envMap, "BYTES")
	require.True(t, ok)
	assert.Equal(t, uint64(1<<20), n)

	_, ok = c.MapKeyToBytes(envMap, "BADBYTES")
	assert.False(t, ok)
}

// TestLoad_Success tests loading a configuration file.
func TestLoad_Success(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gopart.conf")
	require.NoError(t, os.WriteFile(path, []byte(
		"GOPART_MEDIUM=/srv/disk.img\n"+
			"GOPART_TABLE=\"/srv/disk.table\"\n"+
			"GOPART_READONLY=false\n"+
			"GOPART_BLOCKSIZE=4KiB\n"+
			"GOPART_RESCAN_INTERVAL=5s\n"+
			"GOPART_WORKERS=8\n"+
			"GOPART_METRICS_ADDR=:9100\n",
	), 0o600))

	cfg, err := NewHandler(&GodotenvProvider{}).Load(path)
	require.NoError(t, err)

	assert.Equal(t, &AppConfiguration{
		MediumPath:     "/srv/disk.img",
		TablePath:      "/srv/disk.table",
		ReadOnly:       false,
		BlockSize:      4096,
		RescanInterval: 5 * time.Second,
		Workers:        8,
		MetricsAddr:    ":9100",
	}, cfg)
}

// TestLoad_Success_Missing tests that a missing file yields the defaults.
func TestLoad_Success_Missing(t *testing.T) {
	t.Parallel()

	cfg, err := NewHandler(&GodotenvProvider{}).Load(filepath.Join(t.TempDir(), "absent.conf"))
	require.NoError(t, err)
	assert.Equal(t, NewAppConfiguration(), cfg)
}

// TestLoad_Success_InvalidValues tests that invalid values keep the
// defaults.
func TestLoad_Success_InvalidValues(t *testing.T) {
	t.Parallel()

	c := NewHandler(&mapProvider{envMap: map[string]string{
		KeyRescanInterval: "soon",
		KeyWorkers:        "-3",
		KeyBlockSize:      "big",
	}})

	cfg, err := c.Load("any")
	require.NoError(t, err)
	assert.Equal(t, DefaultRescanInterval, cfg.RescanInterval)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Zero(t, cfg.BlockSize)
	assert.True(t, cfg.ReadOnly)
}

// TestLoad_Fail_Read tests a failing configuration reader.
func TestLoad_Fail_Read(t *testing.T) {
	t.Parallel()

	readErr := errors.New("permission denied")

	_, err := NewHandler(&mapProvider{err: readErr}).Load("any")
	require.ErrorIs(t, err, readErr)
}

// TestGodotenvProvider_Success_Marshal tests rendering a map.
func TestGodotenvProvider_Success_Marshal(t *testing.T) {
	t.Parallel()

	p := &GodotenvProvider{}

	data, err := p.Marshal(map[string]string{"B": "2", "A": "one"})
	require.NoError(t, err)
	assert.Equal(t, "A=\"one\"\nB=2", data)
}
