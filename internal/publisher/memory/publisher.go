// Package memory contains an in-memory publisher for tests and local runs.
package memory

import (
	"context"
	"sync"
)

// Message captures one publish call.
type Message struct {
	ChatID int64
	Text   string
}

// Publisher records messages instead of sending them.
type Publisher struct {
	mu       sync.RWMutex
	messages []Message
}

func New() *Publisher {
	return &Publisher{}
}

// Publish records the message.
func (p *Publisher) Publish(_ context.Context, chatID int64, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, Message{ChatID: chatID, Text: text})
	return nil
}

// Messages returns a copy of everything published so far.
func (p *Publisher) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}
