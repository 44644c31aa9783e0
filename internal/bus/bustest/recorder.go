// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bustest provides a synchronous recording publisher for tests.
package bustest

import (
	"context"
	"sync"

	"github.com/luuxx/ccp/internal/bus"
)

// Recorder keeps every published message in order.
type Recorder struct {
	mu   sync.Mutex
	msgs []bus.Message
}

func (r *Recorder) Publish(_ context.Context, topic string, msg bus.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.Topic = topic
	r.msgs = append(r.msgs, msg)
	return nil
}

// Messages returns a copy of everything recorded.
func (r *Recorder) Messages() []bus.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bus.Message(nil), r.msgs...)
}

// Types returns the message types recorded on topic, in order. Pass
// bus.TopicAll for every topic.
func (r *Recorder) Types(topic string) []string {
	var out []string
	for _, m := range r.Messages() {
		if topic == bus.TopicAll || m.Topic == topic {
			out = append(out, m.Type)
		}
	}
	return out
}

// Count returns how many messages of typ were recorded.
func (r *Recorder) Count(typ string) int {
	n := 0
	for _, m := range r.Messages() {
		if m.Type == typ {
			n++
		}
	}
	return n
}

// Last returns the most recent message of typ.
func (r *Recorder) Last(typ string) (bus.Message, bool) {
	msgs := r.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == typ {
			return msgs[i], true
		}
	}
	return bus.Message{}, false
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = nil
}

var _ bus.Publisher = (*Recorder)(nil)
