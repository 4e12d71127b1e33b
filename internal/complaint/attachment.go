package complaint

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrAttachmentType = errors.New("attachment type not allowed")

// allowedExtensions is the upload allow-list enforced at the form boundary.
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// AttachmentStore keeps complaint attachments on local disk. Complaints only
// hold the returned reference; serving files is someone else's job.
type AttachmentStore struct {
	dir string
}

func NewAttachmentStore(dir string) *AttachmentStore {
	return &AttachmentStore{dir: dir}
}

// Save validates the extension against the allow-list and stores the content
// under a fresh name, returning the reference to persist.
func (s *AttachmentStore) Save(filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", ErrAttachmentType
	}

	if err := os.MkdirAll(filepath.Join(s.dir, "complaints"), 0o755); err != nil {
		return "", err
	}

	ref := filepath.Join("complaints", uuid.NewString()+ext)
	f, err := os.Create(filepath.Join(s.dir, ref))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return ref, nil
}
