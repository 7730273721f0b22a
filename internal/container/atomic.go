package container

import (
	"os"
	"path/filepath"

	"github.com/chippr-robotics/sigil/internal/errs"
)

// WriteAtomic writes a disk image as a crash-safe commit point: write
// temp -> fsync temp -> rename -> fsync dir. Mirrors the teacher's
// writeManifestAtomic (node/store/manifest.go); the ordering guarantee
// in spec §5 ("Fresh -> Used and append_log are atomic together") rests
// on this being the only way disk images are persisted.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return errs.Wrap(errs.KindIO, err, "open temp disk image")
	}
	_, werr := f.Write(data)
	serr := f.Sync()
	cerr := f.Close()
	if werr != nil {
		return errs.Wrap(errs.KindIO, werr, "write temp disk image")
	}
	if serr != nil {
		return errs.Wrap(errs.KindIO, serr, "fsync temp disk image")
	}
	if cerr != nil {
		return errs.Wrap(errs.KindIO, cerr, "close temp disk image")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.Wrap(errs.KindIO, err, "rename disk image")
	}

	d, err := os.Open(dir)
	if err != nil {
		return errs.Wrap(errs.KindIO, err, "open disk dir for fsync")
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return errs.Wrap(errs.KindIO, err, "fsync disk dir")
	}
	if err := d.Close(); err != nil {
		return errs.Wrap(errs.KindIO, err, "close disk dir")
	}
	return nil
}

// ReadFile reads a disk image from path.
func ReadFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "read disk image")
	}
	return b, nil
}
