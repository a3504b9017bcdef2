package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(LocalConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	return s
}

func TestLocalWriteReadDelete(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	key := "chatroom/room-1/message/k1"

	err := s.Write(ctx, key, strings.NewReader("image bytes"), -1, "image/jpeg")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	exists, err := s.Exists(ctx, key)
	if err != nil || !exists {
		t.Fatalf("Exists = %v, %v", exists, err)
	}

	rc, err := s.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil || string(data) != "image bytes" {
		t.Fatalf("content = %q, err = %v", data, err)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	exists, err = s.Exists(ctx, key)
	if err != nil || exists {
		t.Fatalf("Exists after delete = %v, %v", exists, err)
	}
}

func TestLocalGetURL(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	key := "chatroom/room-1/message/k1"

	if _, err := s.GetURL(ctx, key, time.Minute); err == nil {
		t.Fatal("GetURL succeeded for missing key")
	}

	if err := s.Write(ctx, key, strings.NewReader("x"), -1, "image/jpeg"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	url, err := s.GetURL(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("GetURL: %v", err)
	}
	if url != "/"+key {
		t.Errorf("url = %q", url)
	}
}

func TestLocalRejectsTraversal(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	// A key escaping the base path must never produce a file outside it.
	if err := s.Write(ctx, "../escape", strings.NewReader("x"), -1, "image/jpeg"); err == nil {
		t.Fatal("Write accepted a traversal key")
	}
}
