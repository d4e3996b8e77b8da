// Package errors - event bus integration
package errors

import (
	"sync/atomic"
)

// EventPublisher is an interface for publishing error events.
// It allows the errors package to hand errors to the events package
// without importing it, avoiding circular dependencies.
type EventPublisher interface {
	TryPublish(event any) bool
}

var (
	globalEventPublisher atomic.Pointer[EventPublisher]
	hasActiveReporting   atomic.Bool
)

// SetEventPublisher sets the global event publisher. Called by the events
// package during initialization; pass nil to disable reporting again.
func SetEventPublisher(publisher EventPublisher) {
	if publisher == nil {
		globalEventPublisher.Store(nil)
		hasActiveReporting.Store(false)
		return
	}
	globalEventPublisher.Store(&publisher)
	hasActiveReporting.Store(true)
}

// publishToBus publishes an error to the event bus if one is registered
func publishToBus(ee *EnhancedError) {
	publisherPtr := globalEventPublisher.Load()
	if publisherPtr == nil {
		return
	}

	publisher := *publisherPtr
	if publisher == nil {
		return
	}

	publisher.TryPublish(ee)
}
