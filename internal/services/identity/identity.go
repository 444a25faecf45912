// Package identity persists the device identifier used to namespace every
// broker topic. The identifier is generated once and then only ever loaded.
package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const Prefix = "smartbin-"

// ErrPersistence: the identity record could not be read or written.
var ErrPersistence = errors.New("identity: persistence error")

type Identity string

func (id Identity) String() string { return string(id) }

// Generate returns a fresh random identifier.
func Generate() Identity {
	return Identity(Prefix + uuid.NewString())
}

// LoadOrCreate returns the identity stored at path. When the file does not
// exist a new identity is generated and written before returning, and created
// is true. An existing record is never replaced.
func LoadOrCreate(path string) (id Identity, created bool, err error) {
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		s := strings.TrimSpace(string(raw))
		if s == "" || strings.ContainsAny(s, "\n\r/+#") {
			return "", false, fmt.Errorf("%w: %s holds no valid identity", ErrPersistence, path)
		}
		return Identity(s), false, nil
	case errors.Is(err, fs.ErrNotExist):
	default:
		return "", false, fmt.Errorf("%w: read %s: %v", ErrPersistence, path, err)
	}

	id = Generate()
	if err := writeAtomic(path, []byte(id.String()+"\n")); err != nil {
		return "", false, fmt.Errorf("%w: write %s: %v", ErrPersistence, path, err)
	}
	return id, true, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".bin_id-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after the rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
