package artifacts

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestMemoryStoreVersioning(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := Key{AppName: "knowsee", UserID: "alice", SessionID: "s1", Filename: "report.md"}

	v0, err := store.Save(ctx, key, Artifact{Data: []byte("first"), MIMEType: "text/markdown"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if v0 != 0 {
		t.Errorf("first Save() version = %d, want 0", v0)
	}
	v1, err := store.Save(ctx, key, Artifact{Data: []byte("second"), MIMEType: "text/markdown"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if v1 != 1 {
		t.Errorf("second Save() version = %d, want 1", v1)
	}

	latest, err := store.Load(ctx, key, -1)
	if err != nil {
		t.Fatalf("Load(latest) error = %v", err)
	}
	if string(latest.Data) != "second" {
		t.Errorf("latest data = %q, want %q", latest.Data, "second")
	}

	old, err := store.Load(ctx, key, 0)
	if err != nil {
		t.Fatalf("Load(0) error = %v", err)
	}
	if string(old.Data) != "first" {
		t.Errorf("version 0 data = %q, want %q", old.Data, "first")
	}

	versions, err := store.Versions(ctx, key)
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}
	if !reflect.DeepEqual(versions, []int{0, 1}) {
		t.Errorf("Versions() = %v, want [0 1]", versions)
	}
}

func TestMemoryStoreLoadMissing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := Key{AppName: "knowsee", UserID: "alice", SessionID: "s1", Filename: "missing.md"}

	if _, err := store.Load(ctx, key, -1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
	}

	if _, err := store.Save(ctx, key, Artifact{Data: []byte("x")}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := store.Load(ctx, key, 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(version 5) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreListScopedToSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	save := func(session, name string) {
		t.Helper()
		key := Key{AppName: "knowsee", UserID: "alice", SessionID: session, Filename: name}
		if _, err := store.Save(ctx, key, Artifact{Data: []byte("x")}); err != nil {
			t.Fatalf("Save(%s/%s) error = %v", session, name, err)
		}
	}
	save("s1", "b.txt")
	save("s1", "a.txt")
	save("s2", "other.txt")

	names, err := store.List(ctx, "knowsee", "alice", "s1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if !reflect.DeepEqual(names, []string{"a.txt", "b.txt"}) {
		t.Errorf("List() = %v, want [a.txt b.txt]", names)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := Key{AppName: "knowsee", UserID: "alice", SessionID: "s1", Filename: "f.txt"}

	if _, err := store.Save(ctx, key, Artifact{Data: []byte("x")}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Load(ctx, key, -1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after delete error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreCopiesData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := Key{AppName: "knowsee", UserID: "alice", SessionID: "s1", Filename: "f.txt"}

	input := []byte("original")
	if _, err := store.Save(ctx, key, Artifact{Data: input}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	input[0] = 'X'

	got, err := store.Load(ctx, key, -1)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got.Data) != "original" {
		t.Errorf("stored data mutated: %q", got.Data)
	}
	got.Data[0] = 'Y'

	again, err := store.Load(ctx, key, -1)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(again.Data) != "original" {
		t.Errorf("returned data aliases store: %q", again.Data)
	}
}
