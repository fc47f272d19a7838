package chatsync

import (
	"fmt"
	"mime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// DefaultMaxAttachmentBytes is the attachment size ceiling.
const DefaultMaxAttachmentBytes = 5 * 1024 * 1024

// AttachmentClass groups accepted MIME types.
type AttachmentClass string

const (
	AttachmentImage    AttachmentClass = "image"
	AttachmentDocument AttachmentClass = "document"
)

var (
	imageTypes    = []string{"image/jpeg", "image/png", "image/gif"}
	documentTypes = []string{
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"text/plain",
	}
)

// ClassifyAttachment returns the class of an accepted MIME type.
func ClassifyAttachment(mimeType string) (AttachmentClass, bool) {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}
	switch {
	case slices.Contains(imageTypes, mt):
		return AttachmentImage, true
	case slices.Contains(documentTypes, mt):
		return AttachmentDocument, true
	}
	return "", false
}

// ValidateAttachment checks type and size before anything is sent.
func ValidateAttachment(mimeType string, size, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxAttachmentBytes
	}
	if _, ok := ClassifyAttachment(mimeType); !ok {
		return userError("validate attachment",
			"Only JPEG, PNG or GIF images and PDF, Word or text documents can be attached",
			fmt.Errorf("%w: %q", ErrUnsupportedAttachment, mimeType))
	}
	if size > maxBytes {
		return userError("validate attachment",
			fmt.Sprintf("File size must be less than %s", humanize.IBytes(uint64(maxBytes))),
			fmt.Errorf("%w: %s", ErrAttachmentTooLarge, humanize.IBytes(uint64(size))))
	}
	return nil
}

type preview struct {
	tempID    string
	filename  string
	createdAt time.Time
}

// PreviewRegistry tracks local preview handles issued for attachments that
// have not been confirmed yet. Every handle must be released once the
// provisional entry is replaced, removed or cancelled.
type PreviewRegistry struct {
	mu      sync.Mutex
	handles map[string]preview
}

// NewPreviewRegistry creates an empty registry.
func NewPreviewRegistry() *PreviewRegistry {
	return &PreviewRegistry{handles: make(map[string]preview)}
}

// Create issues a blob: handle for filename.
func (r *PreviewRegistry) Create(filename string) string {
	handle := "blob:" + uuid.NewString()
	r.mu.Lock()
	r.handles[handle] = preview{filename: filename, createdAt: time.Now()}
	r.mu.Unlock()
	return handle
}

// Bind associates handle with a provisional message.
func (r *PreviewRegistry) Bind(handle, tempID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.handles[handle]
	if !ok {
		return false
	}
	p.tempID = tempID
	r.handles[handle] = p
	return true
}

// Release frees handle. It reports whether the handle was live.
func (r *PreviewRegistry) Release(handle string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handles[handle]; !ok {
		return false
	}
	delete(r.handles, handle)
	return true
}

// ReleaseFor frees every handle bound to tempID.
func (r *PreviewRegistry) ReleaseFor(tempID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for h, p := range r.handles {
		if p.tempID == tempID {
			delete(r.handles, h)
			n++
		}
	}
	return n
}

// Len returns the number of live handles.
func (r *PreviewRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
