package hook

import "context"

// Event names a point in a sync run where a hook script may run.
type Event string

// Supported hook events.
const (
	CatalogChanged Event = "catalog-changed"
	SyncFailed     Event = "sync-failed"
)

// Events lists every supported event.
var Events = []Event{CatalogChanged, SyncFailed}

// Hook is a script bound to an event.
type Hook struct {
	Event   Event
	Content string
}

// Context carries the variables a script sees.
type Context struct {
	Vars map[string]interface{}
}

// HookManager defines the interface for managing hooks.
type HookManager interface {
	// Execute runs the script bound to event, if any.
	Execute(ctx context.Context, event Event, hctx Context) error

	AddHook(hook Hook) error
	RemoveHook(event Event) error
	HasHook(event Event) bool
}
