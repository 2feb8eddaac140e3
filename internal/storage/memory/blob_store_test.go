package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/JakeFAU/coffee-map-sync/internal/crawler"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "path/cache.json", "application/json", payload)
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://path/cache.json" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = 'C'
	stored := string(store.data["path/cache.json"])
	if stored != "content" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
	if store.Puts() != 1 {
		t.Fatalf("expected 1 put, got %d", store.Puts())
	}
}

func TestBlobStoreGetObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	if _, err := store.GetObject(context.Background(), "missing"); !errors.Is(err, crawler.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	if _, err := store.PutObject(context.Background(), "k", "", []byte("v")); err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	got, err := store.GetObject(context.Background(), "k")
	if err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}
	got[0] = 'X'
	again, _ := store.GetObject(context.Background(), "k")
	if string(again) != "v" {
		t.Fatalf("expected returned slice to be a copy, got %q", again)
	}
}

func TestBlobStoreFailPuts(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	boom := errors.New("disk full")
	store.FailPuts(boom)
	if _, err := store.PutObject(context.Background(), "k", "", []byte("v")); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	store.FailPuts(nil)
	if _, err := store.PutObject(context.Background(), "k", "", []byte("v")); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
}
