package activity

import (
	"strings"
	"time"
)

// MapEventInput describes a committed change to a keyed state map.
type MapEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	Channel    string
	Domain     string
	Partition  string
	Version    uint64
	Records    int
	SnapshotID string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildMapUpsertedEvent constructs an event for records inserted or updated.
func BuildMapUpsertedEvent(input MapEventInput) Event {
	return buildMapEvent("statemap.upserted", input)
}

// BuildMapReplacedEvent constructs an event for a full or partial reload.
func BuildMapReplacedEvent(input MapEventInput) Event {
	return buildMapEvent("statemap.replaced", input)
}

// BuildMapRemovedEvent constructs an event for records removed.
func BuildMapRemovedEvent(input MapEventInput) Event {
	return buildMapEvent("statemap.removed", input)
}

func buildMapEvent(verb string, input MapEventInput) Event {
	metadata := make(map[string]any, len(input.Metadata)+4)
	for key, value := range input.Metadata {
		metadata[key] = value
	}
	metadata["version"] = input.Version
	metadata["records"] = input.Records
	if partition := strings.TrimSpace(input.Partition); partition != "" {
		metadata["partition"] = partition
	}
	if input.SnapshotID != "" {
		metadata["snapshot_id"] = input.SnapshotID
	}

	objectID := strings.TrimSpace(input.Domain)
	if objectID == "" {
		objectID = "statemap"
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: DefaultObjectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}
