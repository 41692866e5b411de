package manifest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opal-lang/shprep/internal/transform"
)

func writeRegion(t *testing.T, dir, text string) transform.Region {
	t.Helper()
	path := filepath.Join(dir, "region.sh")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))
	return transform.Region{
		ID:        0,
		Path:      path,
		Bytes:     len(text),
		Digest:    transform.Digest(text),
		StartLine: 2,
		EndLine:   3,
		Phase:     transform.PhaseSpliced,
	}
}

func sample(t *testing.T) *Manifest {
	t.Helper()
	run := Run{ID: "r1", Input: "in.sh", Output: "out.sh", Runtime: "/opt/jit.sh", Dialect: "posix", Strategy: "whole"}
	return New(run, []transform.Region{writeRegion(t, t.TempDir(), "echo hi | sort\n")})
}

func TestNewCopiesRegions(t *testing.T) {
	m := sample(t)
	require.Len(t, m.Regions, 1)
	assert.Equal(t, "spliced", m.Regions[0].Phase)
	assert.Equal(t, 2, m.Regions[0].StartLine)
	assert.False(t, m.GeneratedAt.IsZero())
}

func TestMarshalRoundTrip(t *testing.T) {
	m := sample(t)
	for _, format := range []Format{FormatYAML, FormatCBOR} {
		t.Run(string(format), func(t *testing.T) {
			data, err := m.Marshal(format)
			require.NoError(t, err)

			got, err := Unmarshal(data, format)
			require.NoError(t, err)
			if diff := cmp.Diff(m, got); diff != "" {
				t.Errorf("manifest mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCBORIsDeterministic(t *testing.T) {
	m := sample(t)
	a, err := m.Marshal(FormatCBOR)
	require.NoError(t, err)
	b, err := m.Marshal(FormatCBOR)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b))
}

func TestYAMLFieldNames(t *testing.T) {
	data, err := sample(t).Marshal(FormatYAML)
	require.NoError(t, err)
	for _, key := range []string{"run:", "generated_at:", "regions:", "sha3_256:", "start_line: 2", "phase: spliced"} {
		assert.Contains(t, string(data), key)
	}
	assert.NotContains(t, string(data), "literal:")
}

func TestLoadPicksFormatFromExtension(t *testing.T) {
	m := sample(t)
	dir := t.TempDir()
	for _, format := range []Format{FormatYAML, FormatCBOR} {
		data, err := m.Marshal(format)
		require.NoError(t, err)
		path := filepath.Join(dir, "run."+string(format))
		require.NoError(t, os.WriteFile(path, data, 0o600))

		got, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "r1", got.Run.ID)
	}

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDetectsFormatFromContent(t *testing.T) {
	m := sample(t)
	dir := t.TempDir()
	for _, format := range []Format{FormatYAML, FormatCBOR} {
		t.Run(string(format), func(t *testing.T) {
			data, err := m.Marshal(format)
			require.NoError(t, err)
			path := filepath.Join(dir, string(format)+".manifest")
			require.NoError(t, os.WriteFile(path, data, 0o600))

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, "r1", got.Run.ID)
			require.Len(t, got.Regions, 1)

			got, err = LoadFormat(path, format)
			require.NoError(t, err)
			assert.Equal(t, "r1", got.Run.ID)
		})
	}

	garbage := filepath.Join(dir, "garbage.cbor")
	require.NoError(t, os.WriteFile(garbage, []byte{0xff, 0x00, 0xfe}, 0o600))
	_, err := Load(garbage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CBOR decoding failed")
}

func TestVerify(t *testing.T) {
	m := sample(t)
	require.NoError(t, m.Verify())

	path := m.Regions[0].Path
	require.NoError(t, os.WriteFile(path, []byte("echo HI | sort\n"), 0o600))
	err := m.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "digest")

	require.NoError(t, os.WriteFile(path, []byte("rm -rf /\n"), 0o600))
	err = m.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bytes")

	require.NoError(t, os.Remove(path))
	err = m.Verify()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatYAML},
		{in: "YAML", want: FormatYAML},
		{in: "yml", want: FormatYAML},
		{in: "cbor", want: FormatCBOR},
		{in: "json", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, FormatCBOR, FormatForPath("run.CBOR"))
	assert.Equal(t, FormatYAML, FormatForPath("run.yaml"))
	assert.Equal(t, FormatYAML, FormatForPath("run"))
}
