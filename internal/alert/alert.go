// internal/alert/alert.go
//
// Package alert is the single process-wide surface for user-facing status
// messages. One slot, replace-on-write, no queue: game-state correctness
// never depends on alert delivery, only on the mirror.
package alert

import "sync"

// Kind classifies an alert for presentation.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Alert is one user-facing message.
type Alert struct {
	Active  bool   `json:"status"`
	Kind    Kind   `json:"type"`
	Message string `json:"message"`
}

// Channel holds the current alert. A rapid second Publish preempts the
// first; how long an alert stays visible is the UI collaborator's call.
type Channel struct {
	mu      sync.Mutex
	current Alert
	changes chan struct{}
}

// NewChannel creates an empty alert channel.
func NewChannel() *Channel {
	return &Channel{
		changes: make(chan struct{}, 1),
	}
}

// Publish replaces the current alert.
func (c *Channel) Publish(kind Kind, message string) {
	c.mu.Lock()
	c.current = Alert{Active: true, Kind: kind, Message: message}
	c.mu.Unlock()

	// Non-blocking nudge; a pending nudge already covers this change.
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// Success, Error and Info are convenience wrappers used by the flows.
func (c *Channel) Success(message string) { c.Publish(KindSuccess, message) }
func (c *Channel) Error(message string)   { c.Publish(KindError, message) }
func (c *Channel) Info(message string)    { c.Publish(KindInfo, message) }

// Current returns the alert in the slot.
func (c *Channel) Current() Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Clear empties the slot (e.g. after the UI dismisses the alert).
func (c *Channel) Clear() {
	c.mu.Lock()
	c.current = Alert{}
	c.mu.Unlock()
}

// Changes signals that the slot content changed. Receivers read Current()
// for the value; notifications coalesce.
func (c *Channel) Changes() <-chan struct{} {
	return c.changes
}
