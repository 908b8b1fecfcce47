package channel

import (
	"fmt"
	"sync"
)

// Registry holds registered channel senders keyed by type. It must be
// created via NewRegistry and passed explicitly to components that need it.
type Registry struct {
	mu      sync.RWMutex
	senders map[Type]Sender
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		senders: map[Type]Sender{},
	}
}

// Register adds a sender to the registry.
func (r *Registry) Register(sender Sender) error {
	if sender == nil {
		return fmt.Errorf("sender is nil")
	}
	t := normalizeType(sender.Type().String())
	if t == "" {
		return fmt.Errorf("channel type is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.senders[t]; exists {
		return fmt.Errorf("channel type already registered: %s", t)
	}
	r.senders[t] = sender
	return nil
}

// MustRegister calls Register and panics on error.
func (r *Registry) MustRegister(sender Sender) {
	if err := r.Register(sender); err != nil {
		panic(err)
	}
}

// Get returns the sender for the given channel type.
func (r *Registry) Get(channelType Type) (Sender, bool) {
	t := normalizeType(channelType.String())
	r.mu.RLock()
	defer r.mu.RUnlock()
	sender, ok := r.senders[t]
	return sender, ok
}

// Types returns all registered channel types.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]Type, 0, len(r.senders))
	for t := range r.senders {
		items = append(items, t)
	}
	return items
}
