// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bus is the in-process event fan-out between the orchestration core
// and its observers (websocket clients, the history ledger, remote effect
// bridges).
package bus

import (
	"context"
	"time"
)

// Topics published by the orchestration core.
const (
	TopicSession     = "session"
	TopicAutonomy    = "autonomy"
	TopicInteraction = "interaction"
	TopicEffects     = "effects"
	TopicProgress    = "progress"

	// TopicAll subscribes to every topic.
	TopicAll = "*"
)

// Message is a single event on the bus.
type Message struct {
	Topic   string    `json:"topic"`
	Type    string    `json:"type"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// Publisher emits messages. Implementations never block the caller.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg Message) error
}

// Subscriber receives messages for one subscription.
type Subscriber interface {
	C() <-chan Message
	Close() error
}

// Bus is a topic based pub/sub.
type Bus interface {
	Publisher
	Subscribe(ctx context.Context, topic string, opts ...SubscribeOption) (Subscriber, error)
}

// SubscribeOption tunes a single subscription.
type SubscribeOption func(*SubscribeOptions)

// SubscribeOptions is the resolved form of a subscription's options.
type SubscribeOptions struct {
	Buffer int
	Types  map[string]bool
}

// WithBuffer overrides the subscriber's channel capacity.
func WithBuffer(n int) SubscribeOption {
	return func(o *SubscribeOptions) { o.Buffer = n }
}

// WithTypes delivers only messages whose Type is listed. Other messages are
// skipped before they reach the subscriber's buffer.
func WithTypes(types ...string) SubscribeOption {
	return func(o *SubscribeOptions) {
		if o.Types == nil {
			o.Types = make(map[string]bool, len(types))
		}
		for _, t := range types {
			o.Types[t] = true
		}
	}
}

// ResolveSubscribeOptions applies opts over a default buffer size.
func ResolveSubscribeOptions(buffer int, opts ...SubscribeOption) SubscribeOptions {
	o := SubscribeOptions{Buffer: buffer}
	for _, fn := range opts {
		fn(&o)
	}
	if o.Buffer <= 0 {
		o.Buffer = buffer
	}
	return o
}

// Accepts reports whether a message of type typ passes the type filter.
func (o SubscribeOptions) Accepts(typ string) bool {
	return len(o.Types) == 0 || o.Types[typ]
}

// Discard is a Publisher that drops everything.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, string, Message) error { return nil }
