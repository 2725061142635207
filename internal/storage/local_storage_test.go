package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidTicketID(t *testing.T) {
	valid := []string{"abc", "session-42", "a.b.c", "UUID-1234"}
	for _, id := range valid {
		if !ValidTicketID(id) {
			t.Errorf("ValidTicketID(%q) = false, want true", id)
		}
	}

	invalid := []string{"", ".", "..", "a/b", `a\b`, "../escape", "/abs"}
	for _, id := range invalid {
		if ValidTicketID(id) {
			t.Errorf("ValidTicketID(%q) = true, want false", id)
		}
	}
}

func TestLocalStorePaths(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(filepath.Join(root, "uploads"))
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	dir, err := store.EnsureTicketDir("t1")
	if err != nil {
		t.Fatalf("EnsureTicketDir: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("ticket dir not created: %v", err)
	}

	if got := store.UploadPath("t1"); got != filepath.Join(dir, UploadFileName) {
		t.Errorf("UploadPath = %s", got)
	}
	if got := store.OutputPath("t1"); got != filepath.Join(dir, OutputFileName) {
		t.Errorf("OutputPath = %s", got)
	}

	if _, err := store.EnsureTicketDir("../escape"); err == nil {
		t.Error("EnsureTicketDir accepted a traversal id")
	}
	if err := store.Remove("../escape"); err == nil {
		t.Error("Remove accepted a traversal id")
	}
}

func TestLocalStoreRemove(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	dir, err := store.EnsureTicketDir("t1")
	if err != nil {
		t.Fatalf("EnsureTicketDir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, UploadFileName), []byte("zip"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := store.Remove("t1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("ticket dir still exists after Remove")
	}

	// Removing a ticket that never existed is not an error.
	if err := store.Remove("ghost"); err != nil {
		t.Errorf("Remove(ghost): %v", err)
	}
}
