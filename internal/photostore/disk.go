package photostore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Area is the sub-directory person photos are written to.
const Area = "user"

// Disk keeps photos under Root/user and serves them from BaseURL/files.
type Disk struct {
	Root    string
	BaseURL string
	now     func() time.Time
}

// NewDisk creates the storage area if it does not exist yet.
func NewDisk(root, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(filepath.Join(root, Area), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Disk{Root: root, BaseURL: strings.TrimRight(baseURL, "/"), now: time.Now}, nil
}

// Save writes data under a timestamp-prefixed name and returns its relative
// reference, e.g. "user/1718000000000-face.jpg".
func (d *Disk) Save(ctx context.Context, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var (
		ref string
		f   *os.File
		err error
	)
	at := d.now()
	for attempt := 0; attempt < 5; attempt++ {
		ref = path.Join(Area, uniqueName(at, filename))
		f, err = os.OpenFile(filepath.Join(d.Root, filepath.FromSlash(ref)), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if !errors.Is(err, os.ErrExist) {
			break
		}
		at = at.Add(time.Millisecond)
	}
	if err != nil {
		return "", fmt.Errorf("create photo: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write photo: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close photo: %w", err)
	}
	return ref, nil
}

// Delete removes a previously saved photo. Missing files are ignored.
func (d *Disk) Delete(ctx context.Context, ref string) error {
	full, err := d.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove photo: %w", err)
	}
	return nil
}

// URL returns the public address of ref.
func (d *Disk) URL(ref string) string {
	return d.BaseURL + "/files/" + ref
}

// resolve maps ref onto the filesystem, refusing anything outside Root.
func (d *Disk) resolve(ref string) (string, error) {
	clean := path.Clean("/" + ref)
	if ref == "" || clean == "/" || strings.Contains(ref, "..") {
		return "", fmt.Errorf("invalid photo reference %q", ref)
	}
	return filepath.Join(d.Root, filepath.FromSlash(clean)), nil
}

func uniqueName(now time.Time, filename string) string {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stem = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, stem)
	if stem == "" {
		stem = "photo"
	}
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), stem, strings.ToLower(ext))
}
