// Copyright 2025 Voxtor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package output

import "sync"

// Subscriber consumes output events from an OutputEventStream.
// Each subscriber decides which events it cares about via ShouldHandle,
// so a single stream can fan out to human, JSON and diagnostic renderers.
type Subscriber interface {
	// Name returns a stable identifier for the subscriber (used in diagnostics).
	Name() string

	// ShouldHandle reports whether this subscriber wants to process the event.
	ShouldHandle(event OutputEvent) bool

	// Handle processes a single output event.
	Handle(event OutputEvent)
}

// OutputEventStream fans output events out to registered subscribers.
// Emit is synchronous: subscribers run in registration order on the
// caller's goroutine, so ordering between events is preserved.
type OutputEventStream struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

// NewOutputEventStream creates an empty event stream.
func NewOutputEventStream() *OutputEventStream {
	return &OutputEventStream{
		subscribers: make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber to receive future events.
func (s *OutputEventStream) Subscribe(subscriber Subscriber) {
	if subscriber == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, subscriber)
}

// SubscriberCount returns the number of registered subscribers.
func (s *OutputEventStream) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// Emit delivers the event to every subscriber that wants it.
func (s *OutputEventStream) Emit(event OutputEvent) {
	s.mu.RLock()
	subs := make([]Subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.RUnlock()

	for _, sub := range subs {
		if sub.ShouldHandle(event) {
			sub.Handle(event)
		}
	}
}
