// Package media stores rendered artifacts on local disk and turns stored
// references into absolute URLs.
package media

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Store writes files under Root.  References handed back to callers are
// slash-separated paths relative to Root, e.g. "tickets/ticket_7.png".
type Store struct {
	Root string
}

// NewStore returns a Store rooted at root.
func NewStore(root string) *Store { return &Store{Root: root} }

// Save writes data to rel under the root, creating directories as needed.
// The file is written to a temporary name first and renamed into place so a
// reader never sees a half-written image.
func (s *Store) Save(rel string, data []byte) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(rel, "\\", "/"))[1:]
	if clean == "" || clean == "." {
		return "", fmt.Errorf("media: empty path %q", rel)
	}
	full := filepath.Join(s.Root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("media: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("media: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("media: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("media: close: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("media: chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", fmt.Errorf("media: rename: %w", err)
	}
	return clean, nil
}

// TicketQRPath is the storage-relative path of a ticket's QR image.
func TicketQRPath(ticketID uint64) string {
	return fmt.Sprintf("tickets/ticket_%d.png", ticketID)
}
