package pipeline

import (
	"os"
	"path/filepath"

	shperrors "github.com/opal-lang/shprep/internal/errors"
)

const outputMode = 0o644

// pendingFile is data written next to its final path, waiting for a rename.
type pendingFile struct {
	tmp   string
	final string
}

// stageFile writes data to a temporary file in the directory of path. The
// final path is untouched until commit.
//
// A symlink at path is followed, so the commit replaces its target and the
// link survives. An existing regular file keeps its permission bits; a new
// file gets outputMode.
func stageFile(path string, data []byte) (*pendingFile, error) {
	final := path
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		final = resolved
	}
	mode := os.FileMode(outputMode)
	if info, err := os.Stat(final); err == nil && info.Mode().IsRegular() {
		mode = info.Mode().Perm()
	}

	f, err := os.CreateTemp(filepath.Dir(final), "."+filepath.Base(final)+".tmp-*")
	if err != nil {
		return nil, shperrors.NewIOError("cannot create output file", path, err).WithStage(shperrors.StageWrite)
	}
	p := &pendingFile{tmp: f.Name(), final: final}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		p.abort()
		return nil, shperrors.NewIOError("cannot write output file", path, err).WithStage(shperrors.StageWrite)
	}
	if err := f.Close(); err != nil {
		p.abort()
		return nil, shperrors.NewIOError("cannot close output file", path, err).WithStage(shperrors.StageWrite)
	}
	if err := os.Chmod(p.tmp, mode); err != nil {
		p.abort()
		return nil, shperrors.NewIOError("cannot set output file mode", path, err).WithStage(shperrors.StageWrite)
	}
	return p, nil
}

func (p *pendingFile) commit() error {
	if err := os.Rename(p.tmp, p.final); err != nil {
		p.abort()
		return shperrors.NewIOError("cannot move output file into place", p.final, err).WithStage(shperrors.StageWrite)
	}
	return nil
}

func (p *pendingFile) abort() {
	_ = os.Remove(p.tmp)
}
