// Package configuration reads Unix-type key/value configuration files and
// maps their values to typed settings.
package configuration

import (
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

type genericConfigProvider interface {
	Read(filenames ...string) (envMap map[string]string, err error)
}

// Handler is the principal implementation for configuration reading.
type Handler struct {
	GenericHandler genericConfigProvider
}

// NewHandler returns a pointer to a new [Handler].
func NewHandler(genericHandler genericConfigProvider) *Handler {
	return &Handler{
		GenericHandler: genericHandler,
	}
}

// ReadGeneric reads configuration files into a map (map[key]value).
func (c *Handler) ReadGeneric(filenames ...string) (map[string]string, error) {
	return c.GenericHandler.Read(filenames...) //nolint:wrapcheck
}

func (c *Handler) MapKeyToString(envMap map[string]string, key string) string {
	if value, exists := envMap[key]; exists {
		return strings.TrimSpace(value)
	}

	return ""
}

func (c *Handler) MapKeyToInt(envMap map[string]string, key string) int {
	value := c.MapKeyToString(envMap, key)
	if value == "" {
		return -1
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}

	return intValue
}

func (c *Handler) MapKeyToUInt64(envMap map[string]string, key string) uint64 {
	value := c.MapKeyToString(envMap, key)
	if value == "" {
		return 0
	}
	intValue, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}

	return intValue
}

// MapKeyToBool maps a value to a boolean, returning false unless the value
// parses as true.
func (c *Handler) MapKeyToBool(envMap map[string]string, key string) bool {
	value, err := strconv.ParseBool(c.MapKeyToString(envMap, key))
	if err != nil {
		return false
	}

	return value
}

// MapKeyToDuration maps a value such as "30s" to a [time.Duration],
// returning 0 when unset or invalid.
func (c *Handler) MapKeyToDuration(envMap map[string]string, key string) time.Duration {
	value := c.MapKeyToString(envMap, key)
	if value == "" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}

	return d
}

// MapKeyToBytes maps a size such as "4096", "1 MiB" or "2G" to bytes. The
// second return value is false when unset or invalid.
func (c *Handler) MapKeyToBytes(envMap map[string]string, key string) (uint64, bool) {
	value := c.MapKeyToString(envMap, key)
	if value == "" {
		return 0, false
	}
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, false
	}

	return n, true
}
