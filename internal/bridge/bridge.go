// Package bridge hands finalized utterances from the capture goroutine to
// polling consumers.
package bridge

import (
	"strings"
	"sync"
)

// Bridge is an unbounded FIFO of trimmed, non-empty messages.
// The zero value is ready to use.
type Bridge struct {
	mu       sync.Mutex
	messages []string
}

// New returns an empty bridge.
func New() *Bridge {
	return &Bridge{}
}

// Push trims text and appends it. Empty input is dropped and reports false.
func (b *Bridge) Push(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	b.mu.Lock()
	b.messages = append(b.messages, text)
	b.mu.Unlock()
	return true
}

// DrainAll removes every queued message and returns them joined by a single
// space in push order. It never blocks waiting for new messages.
func (b *Bridge) DrainAll() string {
	b.mu.Lock()
	messages := b.messages
	b.messages = nil
	b.mu.Unlock()

	return strings.Join(messages, " ")
}

// Len reports how many messages are queued.
func (b *Bridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}
