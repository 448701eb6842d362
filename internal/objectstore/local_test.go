package objectstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "receipts", "u1/r1.jpg", []byte("jpeg-bytes"), "image/jpeg"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	u, err := store.RetrievalURL(ctx, "receipts", "u1/r1.jpg", time.Minute, "")
	if err != nil {
		t.Fatalf("RetrievalURL: %v", err)
	}
	if u != "file:///receipts/u1/r1.jpg" {
		t.Fatalf("unexpected url %q", u)
	}

	client := &http.Client{Transport: store.Transport()}
	resp, err := client.Get(u)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "jpeg-bytes" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, body)
	}

	if err := store.Ping(ctx, "receipts"); err != nil {
		t.Fatalf("Ping existing bucket: %v", err)
	}
	if err := store.Ping(ctx, "exports"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalStoreRejectsEscapes(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	if err := store.Put(context.Background(), "..", "etc/passwd", []byte("x"), ""); err == nil {
		t.Fatalf("expected escaping path to be rejected")
	}
	if _, err := store.RetrievalURL(context.Background(), "receipts", "missing.jpg", time.Minute, ""); err == nil {
		t.Fatalf("expected missing object to fail")
	}
}
