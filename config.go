package stackalloc

import (
	"os"
	"strconv"

	"github.com/alecthomas/units"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ByteSize is a byte quantity written with power-of-two units, e.g. "1KiB",
// "4MB" or "512B". It can be used as a flag value and in YAML.
type ByteSize units.Base2Bytes

// Set parses s into b.
func (b *ByteSize) Set(s string) error {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*b = ByteSize(n)
		return nil
	}
	v, err := units.ParseBase2Bytes(s)
	if err != nil {
		return errors.Wrapf(err, "parse byte size %q", s)
	}
	*b = ByteSize(v)
	return nil
}

// String formats the size with a binary unit suffix, "0B" for zero.
func (b ByteSize) String() string {
	if b == 0 {
		return "0B"
	}
	return units.Base2Bytes(b).String()
}

// UnmarshalYAML accepts both plain integers and unit strings.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	return b.Set(value.Value)
}

// MarshalYAML writes the size with a binary unit suffix.
func (b ByteSize) MarshalYAML() (interface{}, error) {
	return b.String(), nil
}

// Config configures a StackFallback.
type Config struct {
	// ArenaSize is the capacity of the arena buffer.
	ArenaSize ByteSize `yaml:"arena_size"`
	// HeapLimit caps the bytes the heap may hold at once. 0 means unlimited.
	HeapLimit ByteSize `yaml:"heap_limit"`
}

// DefaultConfig returns a Config with a DefaultArenaSize arena and no heap
// limit.
func DefaultConfig() Config {
	return Config{ArenaSize: DefaultArenaSize}
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	if c.ArenaSize <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "arena_size must be positive, got %s", c.ArenaSize)
	}
	if c.HeapLimit < 0 {
		return errors.Wrapf(ErrInvalidConfig, "heap_limit must not be negative, got %s", c.HeapLimit)
	}
	return nil
}

// LoadConfig reads a YAML config file. Fields missing from the file keep
// their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	buf, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config file")
	}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config file %s", path)
	}
	return cfg, cfg.Validate()
}
