package statemap

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-statemap/pkg/activity"
)

func TestSlotCommitSkipsIdenticalValue(t *testing.T) {
	capture := &activity.CaptureHook{}
	emitter := activity.NewEmitter(activity.Hooks{capture}, activity.Config{Enabled: true})
	slot := NewSlot[Map[item]]("items", nil, WithSlotActivity(emitter))

	if slot.Get() == nil {
		t.Fatalf("expected nil initial value to become an empty map")
	}
	items := []item{{ID: 1, Name: "alpha"}, {ID: 2, Name: "beta"}}
	ctx := context.Background()

	changed, err := slot.Commit(ctx, Change{Kind: ChangeReplace}, Replace(slot.Get(), items, cfg1D))
	if err != nil || !changed {
		t.Fatalf("expected first replace to change the slot, got %v (%v)", changed, err)
	}
	changed, err = slot.Commit(ctx, Change{Kind: ChangeReplace}, Replace(slot.Get(), items, cfg1D))
	if err != nil || changed {
		t.Fatalf("expected identical replace to be skipped, got %v (%v)", changed, err)
	}
	if slot.Version() != 1 {
		t.Fatalf("expected version 1, got %d", slot.Version())
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected a single activity event, got %d", len(capture.Events))
	}
	event := capture.Events[0]
	if event.Verb != "statemap.replaced" || event.ObjectID != "items" || event.Channel != "statemap" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Metadata["records"] != 2 || event.Metadata["version"] != uint64(1) {
		t.Fatalf("unexpected event metadata %+v", event.Metadata)
	}
}

func TestSlotUpdateEmitsByKind(t *testing.T) {
	capture := &activity.CaptureHook{}
	emitter := activity.NewEmitter(activity.Hooks{capture}, activity.Config{Enabled: true})
	slot := NewSlot("resumes", Map2D[item]{}, WithSlotActivity(emitter))
	ctx := context.Background()

	_, changed, err := slot.Update(ctx, Change{Kind: ChangeUpsert, Partition: "2024", ActorID: "user-1"}, func(current Map2D[item]) Map2D[item] {
		return Upsert2D(current, []item{{Year: "2024", ID: 1}}, cfg2D)
	})
	if err != nil || !changed {
		t.Fatalf("expected upsert to change the slot, got %v (%v)", changed, err)
	}
	_, changed, err = slot.Update(ctx, Change{Kind: ChangeRemove, Partition: "2024"}, func(current Map2D[item]) Map2D[item] {
		return Remove2D(current, []item{{Year: "2024", ID: 1}}, cfg2D)
	})
	if err != nil || !changed {
		t.Fatalf("expected remove to change the slot, got %v (%v)", changed, err)
	}
	_, changed, err = slot.Update(ctx, Change{Kind: ChangeUpsert}, func(current Map2D[item]) Map2D[item] {
		return current
	})
	if err != nil || changed {
		t.Fatalf("expected returning current value to be a no-op, got %v (%v)", changed, err)
	}

	if len(capture.Events) != 2 {
		t.Fatalf("expected two events, got %d", len(capture.Events))
	}
	if capture.Events[0].Verb != "statemap.upserted" || capture.Events[0].ActorID != "user-1" {
		t.Fatalf("unexpected upsert event %+v", capture.Events[0])
	}
	if capture.Events[0].Metadata["partition"] != "2024" {
		t.Fatalf("expected partition metadata, got %+v", capture.Events[0].Metadata)
	}
	if capture.Events[1].Verb != "statemap.removed" {
		t.Fatalf("unexpected remove event %+v", capture.Events[1])
	}
	if _, ok := slot.Get()[CoerceKey(2024)]; !ok {
		t.Fatalf("expected emptied partition to remain after remove")
	}
}

func TestSlotEventsCountRecordsNotPartitions(t *testing.T) {
	capture := &activity.CaptureHook{}
	emitter := activity.NewEmitter(activity.Hooks{capture}, activity.Config{Enabled: true})
	slot := NewSlot("resumes", Map2D[item]{}, WithSlotActivity(emitter))
	items := []item{{Year: "2024", ID: 1}, {Year: "2024", ID: 2}, {Year: "2024", ID: 3}}

	if _, err := slot.Commit(context.Background(), Change{Kind: ChangeUpsert}, Upsert2D(slot.Get(), items, cfg2D)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	_, _, err := slot.Update(context.Background(), Change{Kind: ChangeRemove}, func(current Map2D[item]) Map2D[item] {
		return Remove2D(current, items[:1], cfg2D)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(capture.Events) != 2 {
		t.Fatalf("expected two events, got %d", len(capture.Events))
	}
	if got := capture.Events[0].Metadata["records"]; got != 3 {
		t.Fatalf("expected 3 records after upsert, got %v", got)
	}
	if got := capture.Events[1].Metadata["records"]; got != 2 {
		t.Fatalf("expected 2 records after remove, got %v", got)
	}
}

func TestSlotUpdateReleasesLockWhenFnPanics(t *testing.T) {
	slot := NewSlot[Map[item]]("items", nil)
	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_, _, _ = slot.Update(context.Background(), Change{Kind: ChangeUpsert}, func(Map[item]) Map[item] {
			panic("boom")
		})
	}()

	changed, err := slot.Commit(context.Background(), Change{Kind: ChangeUpsert}, Upsert(slot.Get(), []item{{ID: 1}}, cfg1D))
	if err != nil || !changed {
		t.Fatalf("expected slot usable after panic, got %v (%v)", changed, err)
	}
	if slot.Version() != 1 {
		t.Fatalf("expected version 1, got %d", slot.Version())
	}
}

func TestSlotCommitReturnsHookErrors(t *testing.T) {
	hookErr := errors.New("sink offline")
	capture := &activity.CaptureHook{Err: hookErr}
	emitter := activity.NewEmitter(activity.Hooks{capture}, activity.Config{Enabled: true})
	slot := NewSlot[Map[item]]("items", nil, WithSlotActivity(emitter))

	next := Upsert(slot.Get(), []item{{ID: 1}}, cfg1D)
	changed, err := slot.Commit(context.Background(), Change{Kind: ChangeUpsert}, next)
	if !changed {
		t.Fatalf("expected value stored despite hook failure")
	}
	if !errors.Is(err, hookErr) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if !Same(slot.Get(), next) {
		t.Fatalf("expected committed value to be held")
	}
}

func TestSlotWithoutEmitter(t *testing.T) {
	slot := NewSlot[Map[item]]("items", Map[item]{})
	changed, err := slot.Commit(context.Background(), Change{Kind: ChangeUpsert}, Upsert(slot.Get(), []item{{ID: 1}}, cfg1D))
	if err != nil || !changed {
		t.Fatalf("expected commit without emitter, got %v (%v)", changed, err)
	}
	if slot.Domain() != "items" {
		t.Fatalf("unexpected domain %q", slot.Domain())
	}
}
