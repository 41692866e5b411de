// Package manifest records what a preprocessing run extracted: one entry per
// region file, with enough information to check the files later.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/opal-lang/shprep/internal/invariant"
	"github.com/opal-lang/shprep/internal/transform"
)

// Format is a manifest encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatCBOR Format = "cbor"
)

// ParseFormat resolves a format name. Empty means yaml.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "yaml", "yml":
		return FormatYAML, nil
	case "cbor":
		return FormatCBOR, nil
	default:
		return "", fmt.Errorf("unknown manifest format %q (valid: yaml, cbor)", name)
	}
}

// FormatForPath picks the format from a file extension.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		return FormatCBOR
	}
	return FormatYAML
}

// Run describes the run a manifest belongs to.
type Run struct {
	ID       string `yaml:"id" cbor:"id"`
	Input    string `yaml:"input" cbor:"input"`
	Output   string `yaml:"output" cbor:"output"`
	Runtime  string `yaml:"runtime" cbor:"runtime"`
	Dialect  string `yaml:"dialect" cbor:"dialect"`
	Strategy string `yaml:"strategy" cbor:"strategy"`
}

// Entry is one extracted region.
type Entry struct {
	ID        int    `yaml:"id" cbor:"id"`
	Path      string `yaml:"path" cbor:"path"`
	Bytes     int    `yaml:"bytes" cbor:"bytes"`
	Digest    string `yaml:"sha3_256" cbor:"sha3_256"`
	StartLine int    `yaml:"start_line,omitempty" cbor:"start_line,omitempty"`
	EndLine   int    `yaml:"end_line,omitempty" cbor:"end_line,omitempty"`
	Literal   bool   `yaml:"literal,omitempty" cbor:"literal,omitempty"`
	Phase     string `yaml:"phase" cbor:"phase"`
}

// Manifest is the sidecar document of one run.
type Manifest struct {
	Run         Run       `yaml:"run" cbor:"run"`
	GeneratedAt time.Time `yaml:"generated_at" cbor:"generated_at"`
	Regions     []Entry   `yaml:"regions" cbor:"regions"`
}

// New builds the manifest of a run from its region records.
func New(run Run, regions []transform.Region) *Manifest {
	m := &Manifest{
		Run:         run,
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
		Regions:     make([]Entry, 0, len(regions)),
	}
	for _, r := range regions {
		m.Regions = append(m.Regions, Entry{
			ID:        r.ID,
			Path:      r.Path,
			Bytes:     r.Bytes,
			Digest:    r.Digest,
			StartLine: r.StartLine,
			EndLine:   r.EndLine,
			Literal:   r.Literal,
			Phase:     r.Phase.String(),
		})
	}
	return m
}

// Marshal encodes the manifest. CBOR output uses the canonical encoding so
// the same manifest always yields the same bytes.
func (m *Manifest) Marshal(format Format) ([]byte, error) {
	switch format {
	case FormatCBOR:
		encMode, err := cbor.CanonicalEncOptions().EncMode()
		invariant.ExpectNoError(err, "canonical CBOR encoder")
		data, err := encMode.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("CBOR encoding failed: %w", err)
		}
		return data, nil
	case FormatYAML, "":
		data, err := yaml.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("YAML encoding failed: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown manifest format %q", format)
	}
}

// Unmarshal decodes a manifest.
func Unmarshal(data []byte, format Format) (*Manifest, error) {
	var m Manifest
	switch format {
	case FormatCBOR:
		if err := cbor.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("CBOR decoding failed: %w", err)
		}
	case FormatYAML, "":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("YAML decoding failed: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown manifest format %q", format)
	}
	return &m, nil
}

// Load reads a manifest. The file extension picks the format tried first;
// when that fails the other format is tried, so a manifest written under any
// name can be read back.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	first := FormatForPath(path)
	m, err := Unmarshal(data, first)
	if err == nil {
		return m, nil
	}
	if alt, altErr := Unmarshal(data, first.other()); altErr == nil {
		return alt, nil
	}
	return nil, fmt.Errorf("%s: %w", path, err)
}

// LoadFormat reads a manifest written in format.
func LoadFormat(path string, format Format) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := Unmarshal(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func (f Format) other() Format {
	if f == FormatCBOR {
		return FormatYAML
	}
	return FormatCBOR
}

// Verify checks that every region file still exists and holds the bytes it
// was written with. All mismatches are reported together.
func (m *Manifest) Verify() error {
	var errs []error
	for _, e := range m.Regions {
		data, err := os.ReadFile(e.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("region %d: %w", e.ID, err))
			continue
		}
		if len(data) != e.Bytes {
			errs = append(errs, fmt.Errorf("region %d: %s has %d bytes, manifest says %d", e.ID, e.Path, len(data), e.Bytes))
			continue
		}
		if got := transform.Digest(string(data)); got != e.Digest {
			errs = append(errs, fmt.Errorf("region %d: %s digest %s, manifest says %s", e.ID, e.Path, got, e.Digest))
		}
	}
	return errors.Join(errs...)
}
