package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// UploadFileName is the archive name inside every ticket directory.
	UploadFileName = "dataset.zip"
	// OutputFileName is the produced archive name inside every ticket directory.
	OutputFileName = "output.zip"
)

// LocalStore owns the upload root and hands out per-ticket paths. Each
// ticket gets one directory; no files are shared across tickets.
type LocalStore struct {
	root string
}

// NewLocalStore creates the upload root if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Root returns the upload root directory.
func (s *LocalStore) Root() string { return s.root }

// ValidTicketID reports whether id is safe to use as a directory name.
func ValidTicketID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, "/\\")
}

// TicketDir returns the directory owned by one ticket.
func (s *LocalStore) TicketDir(id string) string {
	return filepath.Join(s.root, id)
}

// EnsureTicketDir creates the ticket directory, rejecting unsafe ids.
func (s *LocalStore) EnsureTicketDir(id string) (string, error) {
	if !ValidTicketID(id) {
		return "", fmt.Errorf("invalid ticket id %q", id)
	}
	dir := s.TicketDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create ticket directory: %w", err)
	}
	return dir, nil
}

// UploadPath returns where the uploaded archive lives for one ticket.
func (s *LocalStore) UploadPath(id string) string {
	return filepath.Join(s.TicketDir(id), UploadFileName)
}

// OutputPath returns where the output archive lives for one ticket.
func (s *LocalStore) OutputPath(id string) string {
	return filepath.Join(s.TicketDir(id), OutputFileName)
}

// Remove deletes the ticket directory and everything beneath it.
func (s *LocalStore) Remove(id string) error {
	if !ValidTicketID(id) {
		return fmt.Errorf("invalid ticket id %q", id)
	}
	return os.RemoveAll(s.TicketDir(id))
}
