// Package memory provides an in-process event publisher for development and
// testing.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Event is one published message, retained for inspection.
type Event struct {
	Topic   string
	Payload any
}

// Publisher records events in memory.
type Publisher struct {
	mu     sync.Mutex
	events []Event
	nextID int
}

// NewPublisher constructs a Publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish appends the event and returns a synthetic message ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	if topic == "" {
		return "", fmt.Errorf("topic is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.events = append(p.events, Event{Topic: topic, Payload: payload})
	return fmt.Sprintf("mem-%d", p.nextID), nil
}

// Events returns a copy of everything published so far.
func (p *Publisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}
