package local

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveAndOpenRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	key, size, mimeType, err := store.Save(ctx, "nda.txt", strings.NewReader("Hello"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(key, "documents/") || !strings.HasSuffix(key, "_nda.txt") {
		t.Fatalf("unexpected key %q", key)
	}
	if size != 5 {
		t.Fatalf("expected size 5, got %d", size)
	}
	if !strings.HasPrefix(mimeType, "text/plain") {
		t.Fatalf("unexpected mime type %q", mimeType)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "Hello" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Open(context.Background(), "../secret"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}

func TestSaveRejectsBadName(t *testing.T) {
	store := New(t.TempDir())
	if _, _, _, err := store.Save(context.Background(), " ... ", strings.NewReader("x")); err == nil {
		t.Fatalf("expected invalid name error")
	}
}

func TestSaveKeepsTraversalNamesInsideBase(t *testing.T) {
	store := New(t.TempDir())
	key, _, _, err := store.Save(context.Background(), "../x.pdf", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if strings.Contains(key, "..") || !strings.HasSuffix(key, "_x.pdf") {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestSaveHonorsCanceledContext(t *testing.T) {
	store := New(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, _, err := store.Save(ctx, "a.txt", strings.NewReader("x")); err == nil {
		t.Fatalf("expected context error")
	}
}
