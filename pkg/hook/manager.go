package hook

import (
	"context"
	"sync"

	"github.com/glorpus-work/appcat/pkg/errors"
)

// DefaultHookManager is the default implementation of HookManager.
type DefaultHookManager struct {
	executor *TengoExecutor
	mutex    sync.RWMutex
}

// NewHookManager creates a new hook manager.
func NewHookManager() *DefaultHookManager {
	return &DefaultHookManager{
		executor: NewTengoExecutor(),
	}
}

// Execute runs the hook bound to event with the given context.
func (m *DefaultHookManager) Execute(ctx context.Context, event Event, hctx Context) error {
	if !m.HasHook(event) {
		return nil
	}
	if hctx.Vars == nil {
		hctx.Vars = make(map[string]interface{})
	}
	return m.executor.Execute(ctx, event, hctx)
}

// AddHook adds a new hook, replacing any hook bound to the same event.
func (m *DefaultHookManager) AddHook(hook Hook) error {
	if hook.Event == "" {
		return errors.ErrHookTypeEmpty
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.executor.AddScript(hook.Event, hook.Content)
	return nil
}

// RemoveHook removes the hook bound to event.
func (m *DefaultHookManager) RemoveHook(event Event) error {
	if event == "" {
		return errors.ErrHookTypeEmpty
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.executor.RemoveScript(event)
	return nil
}

// HasHook checks if a hook is bound to event.
func (m *DefaultHookManager) HasHook(event Event) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.executor.HasScript(event)
}
