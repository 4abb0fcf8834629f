// Package config holds the benchmark arguments: a flat map of named options
// read from a YAML file, a .env file and SBENCH_* environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/LynnColeArt/sbench"
)

// EnvPrefix marks environment variables that override options.
// SBENCH_I_BLOCKSIZE sets "i-blocksize".
const EnvPrefix = "SBENCH_"

// Defaults are the values every recognised option starts from.
var Defaults = map[string]string{
	"isize":            strconv.Itoa(sbench.DefaultISize),
	"jsize":            strconv.Itoa(sbench.DefaultJSize),
	"ksize":            strconv.Itoa(sbench.DefaultKSize),
	"halo":             strconv.Itoa(sbench.DefaultHalo),
	"alignment":        strconv.Itoa(sbench.DefaultAlignment),
	"layout":           "ijk",
	"precision":        "float64",
	"platform":         "host",
	"memory":           "",
	"workers":          "0",
	"stencil":          "hdiff",
	"strategy":         "auto",
	"i-blocksize":      strconv.Itoa(sbench.DefaultIBlockSize),
	"j-blocksize":      strconv.Itoa(sbench.DefaultJBlockSize),
	"ishift":           "1",
	"jshift":           "0",
	"runs":             strconv.Itoa(sbench.DefaultRuns),
	"verify":           "true",
	"seed":             "42",
	"cache-modulus":    strconv.Itoa(sbench.DefaultCacheModulus),
	"flush-size":       strconv.Itoa(sbench.DefaultFlushSize),
	"strict":           "false",
	"tile-index-limit": strconv.Itoa(sbench.TileIndexLimit),
	"log-file":         "",
	"log-level":        "info",
	"development":      "false",
}

// Args is the arguments map handed to variants at construction.
type Args struct {
	values map[string]string
}

// New returns the defaults.
func New() *Args {
	a := &Args{values: make(map[string]string, len(Defaults))}
	for k, v := range Defaults {
		a.values[k] = v
	}
	return a
}

// Load builds Args from defaults, the YAML file at path (skipped when path
// is empty), the .env file in the working directory if present, and the
// process environment.
func Load(path string) (*Args, error) {
	a := New()
	if path != "" {
		if err := a.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, sbench.NewConfigurationError("config.Load", fmt.Sprintf(".env: %v", err))
	}
	if err := a.ApplyEnv(os.Environ()); err != nil {
		return nil, err
	}
	return a, nil
}

// LoadFile merges a YAML document of scalar options.
func (a *Args) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return sbench.NewConfigurationError("config.LoadFile", err.Error())
	}
	return a.LoadYAML(data)
}

// LoadYAML merges a YAML document of scalar options.
func (a *Args) LoadYAML(data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return sbench.NewConfigurationError("config.LoadYAML", err.Error())
	}
	for k, v := range doc {
		switch v.(type) {
		case map[string]any, []any:
			return sbench.NewConfigurationError("config.LoadYAML", fmt.Sprintf("option %q must be a scalar", k))
		case nil:
			a.values[k] = ""
		default:
			a.values[k] = fmt.Sprint(v)
		}
	}
	return nil
}

// ApplyEnv merges KEY=VALUE pairs carrying EnvPrefix.
func (a *Args) ApplyEnv(environ []string) error {
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		k, v, ok := strings.Cut(kv[len(EnvPrefix):], "=")
		if !ok || k == "" {
			return sbench.NewConfigurationError("config.ApplyEnv", fmt.Sprintf("malformed variable %q", kv))
		}
		a.values[strings.ReplaceAll(strings.ToLower(k), "_", "-")] = v
	}
	return nil
}

// Set overrides one option.
func (a *Args) Set(key, value string) { a.values[key] = value }

// Has reports whether the option is set.
func (a *Args) Has(key string) bool {
	_, ok := a.values[key]
	return ok
}

// Keys returns the option names in sorted order.
func (a *Args) Keys() []string {
	keys := make([]string, 0, len(a.values))
	for k := range a.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns an option.
func (a *Args) String(key string) (string, error) {
	v, ok := a.values[key]
	if !ok {
		return "", sbench.NewConfigurationError("config.Get", fmt.Sprintf("missing option %q", key))
	}
	return v, nil
}

// Int returns an integer option.
func (a *Args) Int(key string) (int, error) {
	v, err := a.String(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, sbench.NewConfigurationError("config.Get", fmt.Sprintf("option %q: %q is not an integer", key, v))
	}
	return n, nil
}

// Int64 returns an integer option that may exceed 32 bits.
func (a *Args) Int64(key string) (int64, error) {
	v, err := a.String(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, sbench.NewConfigurationError("config.Get", fmt.Sprintf("option %q: %q is not an integer", key, v))
	}
	return n, nil
}

// Bool returns a boolean option.
func (a *Args) Bool(key string) (bool, error) {
	v, err := a.String(key)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, sbench.NewConfigurationError("config.Get", fmt.Sprintf("option %q: %q is not a boolean", key, v))
	}
	return b, nil
}
