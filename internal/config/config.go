// Package config handles the optional shprep.toml settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/opal-lang/shprep/internal/manifest"
	"github.com/opal-lang/shprep/internal/oracle"
	"github.com/opal-lang/shprep/internal/shell"
)

// FileName is the settings file looked up in the working directory when no
// explicit path is given.
const FileName = "shprep.toml"

// Config holds run defaults. Command-line flags override every field.
type Config struct {
	Runtime        string `toml:"runtime"`
	Dialect        string `toml:"dialect"`
	Strategy       string `toml:"strategy"`
	TempDir        string `toml:"temp_dir"`
	Debug          int    `toml:"debug"`
	Manifest       string `toml:"manifest"`
	ManifestFormat string `toml:"manifest_format"`
	LogFile        string `toml:"log_file"`

	// Path is the file the config was loaded from (set at load time).
	Path string `toml:"-"`
}

// Default returns the settings used when no file is present.
func Default() Config {
	return Config{
		Dialect:        "posix",
		Strategy:       oracle.StrategyDataflow,
		ManifestFormat: string(manifest.FormatYAML),
	}
}

// Load reads path on top of Default. Unknown keys are an error so typos do
// not go unnoticed. Relative temp_dir and manifest paths are resolved
// against the directory of the file.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	dir := filepath.Dir(path)
	cfg.TempDir = resolve(dir, cfg.TempDir)
	cfg.Manifest = resolve(dir, cfg.Manifest)
	cfg.LogFile = resolve(dir, cfg.LogFile)
	cfg.Path = path
	return cfg, nil
}

// LoadOptional loads path when set; otherwise it loads FileName from dir if
// it exists and falls back to Default.
func LoadOptional(path, dir string) (Config, error) {
	if path != "" {
		return Load(path)
	}
	candidate := filepath.Join(dir, FileName)
	if _, err := os.Stat(candidate); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("checking %s: %w", candidate, err)
	}
	return Load(candidate)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Runtime) == "" {
		errs = append(errs, errors.New("runtime executable is required (--runtime-executable or runtime in "+FileName+")"))
	}
	if _, err := shell.ParseDialect(c.Dialect); err != nil {
		errs = append(errs, err)
	}
	if _, err := oracle.New(c.Strategy, nil); err != nil {
		errs = append(errs, err)
	}
	if _, err := manifest.ParseFormat(c.ManifestFormat); err != nil {
		errs = append(errs, err)
	}
	if c.Debug < 0 {
		errs = append(errs, fmt.Errorf("debug level must not be negative, got %d", c.Debug))
	}
	return errors.Join(errs...)
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
