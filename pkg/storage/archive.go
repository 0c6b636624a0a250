package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// Archive is the on-disk mirror. All paths are relative to the archive root.
type Archive struct {
	fs  billy.Filesystem
	loc *time.Location
}

// New wraps an existing filesystem
func New(fs billy.Filesystem, loc *time.Location) *Archive {
	if loc == nil {
		loc = time.Local
	}
	return &Archive{fs: fs, loc: loc}
}

// NewOS opens an archive rooted at dir, creating it if needed
func NewOS(dir string, loc *time.Location) (*Archive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive root: %w", err)
	}
	return New(osfs.New(dir), loc), nil
}

// NewInMemory creates an archive backed by memory
func NewInMemory(loc *time.Location) *Archive {
	return New(memfs.New(), loc)
}

// Root returns the archive root as seen by the filesystem
func (a *Archive) Root() string {
	return a.fs.Root()
}

// Date formats a post timestamp in the archive's time zone
func (a *Archive) Date(ts int64) string {
	return DateString(ts, a.loc)
}

// Exists reports whether p exists
func (a *Archive) Exists(p string) (bool, error) {
	_, err := a.fs.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %q: %w", p, err)
	}
}

// EnsureDir creates p and its parents
func (a *Archive) EnsureDir(p string) error {
	if err := a.fs.MkdirAll(p, 0755); err != nil {
		return fmt.Errorf("mkdir %q: %w", p, err)
	}
	return nil
}

// SaveStream copies r into p through a temporary file in the same directory,
// so p only ever appears complete.
func (a *Archive) SaveStream(p string, r io.Reader) (int64, error) {
	dir := path.Dir(p)
	if err := a.EnsureDir(dir); err != nil {
		return 0, err
	}

	tmp, err := a.fs.TempFile(dir, ".partial-")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	n, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil {
		_ = a.fs.Remove(tmpName)
		return n, fmt.Errorf("failed to write %q: %w", p, copyErr)
	}
	if closeErr != nil {
		_ = a.fs.Remove(tmpName)
		return n, fmt.Errorf("failed to close %q: %w", p, closeErr)
	}

	if err := a.fs.Rename(tmpName, p); err != nil {
		_ = a.fs.Remove(tmpName)
		return n, fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return n, nil
}

// WriteFile atomically replaces p with data
func (a *Archive) WriteFile(p string, data []byte) error {
	_, err := a.SaveStream(p, bytes.NewReader(data))
	return err
}

// WriteFileIfAbsent writes data to p unless p already exists
func (a *Archive) WriteFileIfAbsent(p string, data []byte) (bool, error) {
	exists, err := a.Exists(p)
	if err != nil || exists {
		return false, err
	}
	return true, a.WriteFile(p, data)
}

// MarshalJSON renders v the way every archive JSON file is laid out
func MarshalJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON atomically replaces p with the JSON encoding of v
func (a *Archive) WriteJSON(p string, v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %q: %w", p, err)
	}
	return a.WriteFile(p, data)
}

// WriteJSONIfAbsent writes v to p unless p already exists
func (a *Archive) WriteJSONIfAbsent(p string, v interface{}) (bool, error) {
	exists, err := a.Exists(p)
	if err != nil || exists {
		return false, err
	}
	return true, a.WriteJSON(p, v)
}

// ReadFile returns the contents of p
func (a *Archive) ReadFile(p string) ([]byte, error) {
	data, err := util.ReadFile(a.fs, p)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", p, err)
	}
	return data, nil
}

// ReadJSON decodes p into v
func (a *Archive) ReadJSON(p string, v interface{}) error {
	data, err := a.ReadFile(p)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %q: %w", p, err)
	}
	return nil
}

// Remove deletes p; a missing file is not an error
func (a *Archive) Remove(p string) error {
	if err := a.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %q: %w", p, err)
	}
	return nil
}

// ListDirs returns the sorted names of the directories directly under p
func (a *Archive) ListDirs(p string) ([]string, error) {
	return a.list(p, func(info os.FileInfo) bool { return info.IsDir() })
}

// ListFiles returns the sorted names of regular files under p ending in suffix
func (a *Archive) ListFiles(p, suffix string) ([]string, error) {
	return a.list(p, func(info os.FileInfo) bool {
		return !info.IsDir() && strings.HasSuffix(info.Name(), suffix)
	})
}

func (a *Archive) list(p string, keep func(os.FileInfo) bool) ([]string, error) {
	infos, err := a.fs.ReadDir(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("readdir %q: %w", p, err)
	}

	var names []string
	for _, info := range infos {
		if keep(info) {
			names = append(names, info.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
