package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
)

func TestMemory_CreateOnlyAndCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	md := map[string]string{"direction": "export"}
	if _, err := m.Put(ctx, "a.omex", bytes.NewReader([]byte("one")), PutOptions{Metadata: md}); err != nil {
		t.Fatalf("put: %v", err)
	}
	md["direction"] = "mutated"
	if _, err := m.Put(ctx, "a.omex", bytes.NewReader([]byte("two")), PutOptions{}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	info, rc, err := m.Get(ctx, "a.omex")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	raw, _ := io.ReadAll(rc)
	if string(raw) != "one" || info.Metadata["direction"] != "export" {
		t.Fatalf("unexpected object %q %+v", raw, info)
	}
	info.Metadata["direction"] = "changed"
	again, err := m.Head(ctx, "a.omex")
	if err != nil || again.Metadata["direction"] != "export" {
		t.Fatalf("metadata leaked: %+v %v", again, err)
	}
	if _, err := m.Head(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.PresignURL(ctx, "missing", SignedURLOptions{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from presign, got %v", err)
	}
	if ok, _ := m.Delete(ctx, "a.omex"); !ok {
		t.Fatalf("expected delete to report true")
	}
	if ok, _ := m.Delete(ctx, "a.omex"); ok {
		t.Fatalf("expected second delete to report false")
	}
}

func TestMemory_ConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("runs/%02d.omex", i)
			if _, err := m.Put(ctx, key, bytes.NewReader([]byte(key)), PutOptions{}); err != nil {
				t.Errorf("put %s: %v", key, err)
			}
		}(i)
	}
	wg.Wait()
	list, err := m.List(ctx, "runs/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 16 || list[0].Key != "runs/00.omex" || list[15].Key != "runs/15.omex" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestOpen_SelectsDriver(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{Driver: DriverMemory})
	if err != nil || s.Driver() != DriverMemory {
		t.Fatalf("memory: %v %v", s, err)
	}
	s, err = Open(ctx, Config{Root: t.TempDir()})
	if err != nil || s.Driver() != DriverFilesystem {
		t.Fatalf("fs default: %v %v", s, err)
	}
	if _, err := Open(ctx, Config{Driver: "gcs"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}
