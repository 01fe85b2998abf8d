package activity

import (
	"context"
	"strings"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "statemap"

// Config controls activity emission.
type Config struct {
	Enabled bool
	Channel string
	// Verbs restricts emission to the listed verbs. Empty means all.
	Verbs []string
}

// Emitter fans out events to hooks while applying defaults.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
	verbs   map[string]struct{}
}

// NewEmitter constructs an emitter from hooks and configuration.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	normalizedHooks := cloneHooks(hooks)
	var verbs map[string]struct{}
	for _, verb := range cfg.Verbs {
		if verb = strings.TrimSpace(verb); verb == "" {
			continue
		}
		if verbs == nil {
			verbs = make(map[string]struct{}, len(cfg.Verbs))
		}
		verbs[verb] = struct{}{}
	}
	return &Emitter{
		hooks:   normalizedHooks,
		enabled: cfg.Enabled && len(normalizedHooks) > 0,
		channel: channel,
		verbs:   verbs,
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled && len(e.hooks) > 0
}

// Allows reports whether verb passes the configured verb filter.
func (e *Emitter) Allows(verb string) bool {
	if !e.Enabled() {
		return false
	}
	if len(e.verbs) == 0 {
		return true
	}
	_, ok := e.verbs[strings.TrimSpace(verb)]
	return ok
}

// Emit forwards the event to all hooks, applying the default channel when
// missing. Filtered verbs are dropped silently.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Allows(event.Verb) {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.hooks.Notify(ctx, event)
}

func cloneHooks(hooks Hooks) Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	return Hooks(normalized)
}
