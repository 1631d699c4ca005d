// Package pubsub publishes subscriber messages to a Google Cloud Pub/Sub
// topic. A downstream worker owns the actual chat transport; this service
// only emits addressed message envelopes.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
)

// Envelope is the message shape placed on the topic.
type Envelope struct {
	ChatID int64     `json:"chat_id"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// Publisher wraps one Pub/Sub topic.
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// New connects to the project and binds the named topic.
func New(ctx context.Context, projectID, topicName string) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	return &Publisher{
		client: client,
		topic:  client.Topic(topicName),
	}, nil
}

// Publish emits one addressed message envelope and waits for the server ack.
func (p *Publisher) Publish(ctx context.Context, chatID int64, text string) error {
	data, err := json.Marshal(Envelope{
		ChatID: chatID,
		Text:   text,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.topic.ID(), err)
	}
	return nil
}

// Close flushes pending publishes and releases the client.
func (p *Publisher) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("closing pubsub client: %w", err)
	}
	return nil
}
