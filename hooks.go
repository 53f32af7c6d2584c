package collection

import (
	"sync"

	"github.com/agentstation/collection/pkg/items"
	"github.com/agentstation/collection/pkg/reconciler"
)

// Hook function types for item events
type (
	// ItemAddedHook is called for every new item after the artifacts are written
	ItemAddedHook func(item items.Item)

	// ItemRemovedHook is called when an item vanished from its source
	ItemRemovedHook func(item items.Item)
)

// hooks manages event callbacks for collection changes
type hooks struct {
	mu            sync.RWMutex
	onItemAdded   []ItemAddedHook
	onItemRemoved []ItemRemovedHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

// OnItemAdded registers a callback for when items are added
func (h *hooks) OnItemAdded(fn ItemAddedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onItemAdded = append(h.onItemAdded, fn)
}

// OnItemRemoved registers a callback for when items are removed
func (h *hooks) OnItemRemoved(fn ItemRemovedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onItemRemoved = append(h.onItemRemoved, fn)
}

// trigger replays the changes of a finished run
func (h *hooks) trigger(result *reconciler.Result) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, it := range result.New {
		for _, hook := range h.onItemAdded {
			hook(it)
		}
	}

	for _, it := range result.Removed {
		for _, hook := range h.onItemRemoved {
			hook(it)
		}
	}
}
