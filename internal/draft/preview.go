package draft

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrPreviewReleased is returned when a preview handle is released twice.
var ErrPreviewReleased = errors.New("preview handle already released")

// PreviewHandle is the local-only preview resource for an attached image,
// backed by a temp file created from the in-memory upload bytes. It is
// owned by the draft manager, which releases it exactly once.
type PreviewHandle struct {
	path     string
	released bool
	mu       sync.Mutex
}

// NewPreviewHandle materializes the upload bytes into a temp file.
func NewPreviewHandle(data []byte) (*PreviewHandle, error) {
	f, err := os.CreateTemp("", "webcarros-preview-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create preview file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to write preview file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to close preview file: %w", err)
	}
	return &PreviewHandle{path: f.Name()}, nil
}

// Path returns the local preview location, or "" after release.
func (h *PreviewHandle) Path() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return ""
	}
	return h.path
}

// Release frees the preview resource. The second and any further call
// returns ErrPreviewReleased and touches nothing.
func (h *PreviewHandle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return ErrPreviewReleased
	}
	h.released = true
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove preview file: %w", err)
	}
	return nil
}

// Released reports whether the handle has been released.
func (h *PreviewHandle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}
