package task

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/core/common/validation"
)

const maxNameAttempts = 100

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Attachments stores task images on local disk under a single directory.
type Attachments struct {
	dir     string
	maxSize int64
	allowed []string
	now     func() time.Time
}

func NewAttachments(cfg internal.UploadsConfig) *Attachments {
	return &Attachments{
		dir:     cfg.Dir,
		maxSize: cfg.MaxSize,
		allowed: cfg.AllowedExtensions,
		now:     time.Now,
	}
}

// SetClock replaces the clock used for filename prefixes.
func (a *Attachments) SetClock(now func() time.Time) {
	a.now = now
}

// MaxSize is the largest accepted upload in bytes.
func (a *Attachments) MaxSize() int64 { return a.maxSize }

// Save writes r under a timestamp-prefixed sanitized name and returns that
// name.
func (a *Attachments) Save(filename string, r io.Reader) (string, error) {
	if !validation.HasAllowedExtension(filename, a.allowed) {
		return "", internal.NewValidationError("invalid file type", internal.ErrCodeInvalidFileType)
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", internal.NewInternalError("failed to prepare upload directory", err)
	}

	name, f, err := a.create(SanitizeFilename(filename))
	if err != nil {
		return "", internal.NewInternalError("failed to store attachment", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, a.maxSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil || n > a.maxSize {
		_ = os.Remove(f.Name())
		if err != nil {
			return "", internal.NewInternalError("failed to store attachment", err)
		}
		return "", internal.NewValidationError("file is too large", internal.ErrCodeFileTooLarge)
	}
	return name, nil
}

// create opens a new file named <unix>_<base>, adding a counter after the
// timestamp when uploads of the same name land in the same second.
func (a *Attachments) create(base string) (string, *os.File, error) {
	stamp := a.now().Unix()
	name := fmt.Sprintf("%d_%s", stamp, base)
	for i := 1; ; i++ {
		f, err := os.OpenFile(filepath.Join(a.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return name, f, nil
		}
		if !os.IsExist(err) || i > maxNameAttempts {
			return "", nil, err
		}
		name = fmt.Sprintf("%d_%d_%s", stamp, i, base)
	}
}

// Open returns the stored file. Names that would leave the upload
// directory are treated as missing.
func (a *Attachments) Open(name string) (*os.File, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, os.ErrNotExist
	}
	return os.Open(filepath.Join(a.dir, name))
}

// Remove deletes a stored file; a missing file is not an error.
func (a *Attachments) Remove(name string) error {
	f, err := a.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	path := f.Name()
	f.Close()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SanitizeFilename keeps the base name and replaces anything outside
// [A-Za-z0-9._-] with an underscore.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, "._")
	if name == "" {
		return "file"
	}
	return name
}
