package state_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-statemap/pkg/state"
)

func TestRefIdentifier(t *testing.T) {
	cases := []struct {
		name string
		ref  state.Ref
		want string
		err  bool
	}{
		{name: "domain only", ref: state.Ref{Domain: "resumes"}, want: "resumes"},
		{name: "with partition", ref: state.Ref{Domain: "resumes", Partition: "2024"}, want: "resumes/2024"},
		{name: "trims whitespace", ref: state.Ref{Domain: " resumes ", Partition: " "}, want: "resumes"},
		{name: "missing domain", ref: state.Ref{Partition: "2024"}, err: true},
		{name: "nested domain", ref: state.Ref{Domain: "a/b"}, err: true},
		{name: "parent partition", ref: state.Ref{Domain: "resumes", Partition: ".."}, err: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.ref.Identifier()
			if tc.err {
				if !errors.Is(err, state.ErrInvalidRef) {
					t.Fatalf("expected ErrInvalidRef, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore[map[string]any]()
	ref := state.Ref{Domain: "resumes", Partition: "2024"}

	if _, _, ok, err := store.Load(ctx, ref); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%t err=%v", ok, err)
	}

	snapshot := map[string]any{"1": map[string]any{"Name": "alpha"}}
	meta, err := store.Save(ctx, ref, snapshot, state.Meta{Extra: map[string]string{"source": "test"}})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if meta.SnapshotID == "" || meta.ETag == "" || meta.UpdatedAt.IsZero() {
		t.Fatalf("expected stamped meta, got %+v", meta)
	}

	snapshot["1"].(map[string]any)["Name"] = "mutated"

	loaded, loadedMeta, ok, err := store.Load(ctx, ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%t err=%v", ok, err)
	}
	if loaded["1"].(map[string]any)["Name"] != "alpha" {
		t.Fatalf("expected stored snapshot detached from caller, got %v", loaded)
	}
	if loadedMeta.SnapshotID != meta.SnapshotID || loadedMeta.Extra["source"] != "test" {
		t.Fatalf("unexpected loaded meta %+v", loadedMeta)
	}

	next, err := store.Save(ctx, ref, loaded, state.Meta{})
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if next.SnapshotID == meta.SnapshotID || next.ETag == meta.ETag {
		t.Fatalf("expected a new revision, got %+v", next)
	}

	deleted, err := store.Delete(ctx, ref)
	if err != nil || !deleted {
		t.Fatalf("delete: %t %v", deleted, err)
	}
	if _, _, ok, _ := store.Load(ctx, ref); ok {
		t.Fatalf("expected snapshot removed")
	}
}

func TestMemoryStoreSaveChecksETag(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore[[]string]()
	ref := state.Ref{Domain: "tags"}

	first, err := store.Save(ctx, ref, []string{"a"}, state.Meta{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Save(ctx, ref, []string{"b"}, state.Meta{ETag: first.ETag}); err != nil {
		t.Fatalf("expected matching etag to save, got %v", err)
	}
	if _, err := store.Save(ctx, ref, []string{"c"}, state.Meta{ETag: first.ETag}); !errors.Is(err, state.ErrETagMismatch) {
		t.Fatalf("expected ErrETagMismatch for stale etag, got %v", err)
	}
}

func TestMemoryStoreHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := state.NewMemoryStore[int]()
	if _, err := store.Save(ctx, state.Ref{Domain: "n"}, 1, state.Meta{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
