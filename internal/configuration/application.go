package configuration

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// Keys of the application configuration file.
const (
	KeyMedium         = "GOPART_MEDIUM"
	KeyTable          = "GOPART_TABLE"
	KeyReadOnly       = "GOPART_READONLY"
	KeyBlockSize      = "GOPART_BLOCKSIZE"
	KeyRescanInterval = "GOPART_RESCAN_INTERVAL"
	KeyWorkers        = "GOPART_WORKERS"
	KeyMetricsAddr    = "GOPART_METRICS_ADDR"
)

// Defaults of the application configuration.
const (
	DefaultRescanInterval = 30 * time.Second
	DefaultWorkers        = 2
)

// AppConfiguration is the principal structure holding the application configuration.
type AppConfiguration struct {
	MediumPath     string
	TablePath      string
	ReadOnly       bool
	BlockSize      uint64
	RescanInterval time.Duration
	Workers        int
	MetricsAddr    string
}

// NewAppConfiguration returns a pointer to a new [AppConfiguration] holding
// the defaults.
func NewAppConfiguration() *AppConfiguration {
	return &AppConfiguration{
		ReadOnly:       true,
		RescanInterval: DefaultRescanInterval,
		Workers:        DefaultWorkers,
	}
}

// Load reads the configuration file into a new [AppConfiguration]. A missing
// file yields the defaults, unset or invalid keys keep theirs.
func (c *Handler) Load(path string) (*AppConfiguration, error) {
	cfg := NewAppConfiguration()

	envMap, err := c.ReadGeneric(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}

		return nil, fmt.Errorf("(config) failed to read %s: %w", path, err)
	}

	cfg.MediumPath = c.MapKeyToString(envMap, KeyMedium)
	cfg.TablePath = c.MapKeyToString(envMap, KeyTable)
	cfg.MetricsAddr = c.MapKeyToString(envMap, KeyMetricsAddr)

	if _, ok := envMap[KeyReadOnly]; ok {
		cfg.ReadOnly = c.MapKeyToBool(envMap, KeyReadOnly)
	}

	if n, ok := c.MapKeyToBytes(envMap, KeyBlockSize); ok {
		cfg.BlockSize = n
	}

	if d := c.MapKeyToDuration(envMap, KeyRescanInterval); d > 0 {
		cfg.RescanInterval = d
	}

	if n := c.MapKeyToInt(envMap, KeyWorkers); n > 0 {
		cfg.Workers = n
	}

	return cfg, nil
}
