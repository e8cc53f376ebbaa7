package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryEventBus is the default in-process lifecycle event bus. Handlers run
// synchronously in subscription order; a failing handler does not stop the
// others, the first error is returned.
type MemoryEventBus struct {
	mu       sync.RWMutex
	handlers []LifecycleEventHandler
}

func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{}
}

func (b *MemoryEventBus) Subscribe(handler LifecycleEventHandler) {
	if b == nil || handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

func (b *MemoryEventBus) Publish(ctx context.Context, event LifecycleEvent) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	handlers := make([]LifecycleEventHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	var firstErr error
	for _, handler := range handlers {
		if err := handler.Handle(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ LifecycleEventBus = (*MemoryEventBus)(nil)

// LifecycleEventHandlerFunc adapts a function to LifecycleEventHandler.
type LifecycleEventHandlerFunc func(ctx context.Context, event LifecycleEvent) error

func (f LifecycleEventHandlerFunc) Handle(ctx context.Context, event LifecycleEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

func newLifecycleEvent(name string, instanceID string, metadata map[string]any) LifecycleEvent {
	return LifecycleEvent{
		ID:         uuid.NewString(),
		Name:       name,
		InstanceID: instanceID,
		Source:     "mfa",
		OccurredAt: time.Now().UTC(),
		Metadata:   metadata,
	}
}
