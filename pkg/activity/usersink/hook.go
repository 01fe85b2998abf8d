// Package usersink forwards state map activity to a go-users ActivitySink.
package usersink

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-statemap/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Namespace seeds the name based UUIDs produced by DeriveID.
var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/goliatone/go-statemap"))

// IDResolver maps an activity identifier onto the UUID go-users expects.
type IDResolver func(string) uuid.UUID

// ParseID accepts canonical UUIDs only; anything else maps to uuid.Nil.
func ParseID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// DeriveID keeps canonical UUIDs and turns other non empty identifiers, such
// as CLI actor names, into stable SHA1 UUIDs under Namespace.
func DeriveID(input string) uuid.UUID {
	value := strings.TrimSpace(input)
	if value == "" {
		return uuid.Nil
	}
	if id, err := uuid.Parse(value); err == nil {
		return id
	}
	return uuid.NewSHA1(Namespace, []byte(value))
}

// Hook adapts activity events to a go-users ActivitySink. Resolve defaults to
// ParseID.
type Hook struct {
	Sink    usertypes.ActivitySink
	Resolve IDResolver
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
// Events without a verb or object id are dropped.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	event = activity.NormalizeEvent(event)
	if event.Verb == "" || event.ObjectID == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	resolve := h.Resolve
	if resolve == nil {
		resolve = ParseID
	}

	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	var data map[string]any
	if len(event.Metadata) > 0 {
		data = make(map[string]any, len(event.Metadata)+1)
		for key, value := range event.Metadata {
			data[key] = value
		}
		if _, ok := data["actor"]; !ok && event.ActorID != "" && ParseID(event.ActorID) == uuid.Nil {
			data["actor"] = event.ActorID
		}
	}
	return h.Sink.Log(ctx, usertypes.ActivityRecord{
		ActorID:    resolve(event.ActorID),
		UserID:     resolve(event.UserID),
		TenantID:   resolve(event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: occurred,
	})
}
